// Package proxy is a caching reverse proxy. It forwards every request to a
// single upstream through an http.RoundTripper, normally an
// httpcache.Transport, so repeated idempotent calls are answered from the
// cache without reaching the upstream.
//
// Each request carries an X-Request-ID. A client-supplied ID is kept and a
// new UUID is generated otherwise. The ID is echoed on the response and
// forwarded upstream.
package proxy
