// Package httpcache caches HTTP responses by decorating an
// http.RoundTripper with a cache.Interceptor.
//
// Transport keys each request by "METHOD URL" and its body. Successful (2xx)
// responses are serialized whole, headers included, and replayed on later
// identical requests. Non-2xx responses, transport errors, streamed
// requests, and methods outside the configured set never touch the store.
// Requests with Authorization or Cookie bypass the cache unless the header
// is listed in KeyHeaders, and responses marked no-store or private, or
// carrying Set-Cookie, are passed through without being stored.
//
// Responses carry an X-Cache header: HIT when no upstream call was made for
// this request, MISS when one was, BYPASS when the cache was not consulted.
// Cached and fresh responses also carry X-Cache-Key.
package httpcache
