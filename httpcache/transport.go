package httpcache

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jonwraymond/respcache/cache"
)

// Response headers set by Transport.
const (
	HeaderCache    = "X-Cache"
	HeaderCacheKey = "X-Cache-Key"
)

// X-Cache values.
const (
	StatusHit    = "HIT"
	StatusMiss   = "MISS"
	StatusBypass = "BYPASS"
)

// DefaultMethods are the methods cached when Transport.Methods is empty.
var DefaultMethods = []string{http.MethodGet, http.MethodHead}

// Transport is an http.RoundTripper that serves repeated requests from a
// cache.Interceptor.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: transport errors from Base are returned unchanged.
type Transport struct {
	// Base performs real requests. Defaults to http.DefaultTransport.
	Base http.RoundTripper

	// Cache stores responses. Required.
	Cache *cache.Interceptor

	// Methods lists cacheable methods. Defaults to DefaultMethods. Add POST
	// for RPC-style endpoints whose POSTs are idempotent.
	Methods []string

	// KeyHeaders are request headers whose values become part of the key,
	// such as Authorization for per-caller responses. Requests carrying
	// Authorization or Cookie bypass the cache unless that header is listed.
	KeyHeaders []string
}

// NewTransport returns a Transport over base. A nil base uses
// http.DefaultTransport.
func NewTransport(base http.RoundTripper, c *cache.Interceptor, methods ...string) *Transport {
	return &Transport{Base: base, Cache: c, Methods: methods}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.cacheableMethod(req.Method) || noStore(req.Header) || isStreamingRequest(req.Header) {
		return t.bypass(req)
	}
	if t.unkeyedCredentials(req.Header) {
		return t.bypass(req)
	}

	body, err := readBody(req)
	if err != nil {
		return nil, err
	}
	if isStreamingBody(body) {
		return t.bypass(withBody(req, body))
	}

	target := req.Method + " " + req.URL.String()
	creq := cache.Request{
		Target: target,
		Body:   t.keyBody(req, body),
	}

	var fetched bool
	data, err := t.Cache.Handle(req.Context(), creq, func(ctx context.Context) ([]byte, error) {
		fetched = true
		return t.fetch(withBody(req.WithContext(ctx), body))
	})

	var se *statusError
	if errors.As(err, &se) {
		// A private reply belongs to the leader's caller only
		if se.private && !fetched {
			resp, rerr := t.base().RoundTrip(withBody(req, body))
			if rerr != nil {
				return nil, rerr
			}
			resp.Header.Set(HeaderCache, StatusMiss)
			return resp, nil
		}
		resp, rerr := rebuild(se.dump, req)
		if rerr != nil {
			return nil, rerr
		}
		resp.Header.Set(HeaderCache, StatusMiss)
		return resp, nil
	}
	if err != nil {
		return nil, err
	}

	resp, err := rebuild(data, req)
	if err != nil {
		return nil, err
	}
	status := StatusHit
	if fetched {
		status = StatusMiss
	}
	resp.Header.Set(HeaderCache, status)
	if key, err := t.Cache.Key(creq); err == nil {
		resp.Header.Set(HeaderCacheKey, key)
	}
	return resp, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) bypass(req *http.Request) (*http.Response, error) {
	resp, err := t.base().RoundTrip(req)
	if err != nil {
		return nil, err
	}
	resp.Header.Set(HeaderCache, StatusBypass)
	return resp, nil
}

// fetch performs the real request and serializes the whole response.
// A non-2xx or private response is returned as a *statusError so it is
// never stored.
func (t *Transport) fetch(req *http.Request) ([]byte, error) {
	resp, err := t.base().RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	dump, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return nil, fmt.Errorf("httpcache: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode, dump: dump}
	}
	if privateResponse(resp.Header) {
		return nil, &statusError{code: resp.StatusCode, dump: dump, private: true}
	}
	return dump, nil
}

func (t *Transport) cacheableMethod(method string) bool {
	methods := t.Methods
	if len(methods) == 0 {
		methods = DefaultMethods
	}
	return slices.Contains(methods, method)
}

// unkeyedCredentials reports whether the request carries Authorization or
// Cookie without that header being part of the key.
func (t *Transport) unkeyedCredentials(h http.Header) bool {
	for _, name := range []string{"Authorization", "Cookie"} {
		if h.Get(name) == "" {
			continue
		}
		keyed := slices.ContainsFunc(t.KeyHeaders, func(k string) bool {
			return http.CanonicalHeaderKey(k) == name
		})
		if !keyed {
			return true
		}
	}
	return false
}

func (t *Transport) keyBody(req *http.Request, body []byte) any {
	if len(t.KeyHeaders) == 0 {
		return body
	}
	headers := make(map[string]any, len(t.KeyHeaders))
	for _, name := range t.KeyHeaders {
		headers[http.CanonicalHeaderKey(name)] = strings.Join(req.Header.Values(name), ",")
	}
	return map[string]any{
		"body":    string(body),
		"headers": headers,
	}
}

// statusError carries a response that must not be stored through the
// interceptor: a non-2xx reply, or a private one.
type statusError struct {
	code    int
	dump    []byte
	private bool
}

func (e *statusError) Error() string {
	if e.private {
		return fmt.Sprintf("httpcache: response not cacheable: private %d %s", e.code, http.StatusText(e.code))
	}
	return fmt.Sprintf("httpcache: upstream returned %d %s", e.code, http.StatusText(e.code))
}

// StatusCode returns the upstream status.
func (e *statusError) StatusCode() int { return e.code }

// readBody drains and closes req.Body.
func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("httpcache: read request body: %w", err)
	}
	return body, nil
}

// withBody returns a shallow clone of req whose body replays body.
func withBody(req *http.Request, body []byte) *http.Request {
	out := req.Clone(req.Context())
	if body == nil {
		out.Body = http.NoBody
		out.GetBody = nil
		return out
	}
	out.Body = io.NopCloser(bytes.NewReader(body))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	out.ContentLength = int64(len(body))
	return out
}

func rebuild(dump []byte, req *http.Request) (*http.Response, error) {
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(dump)), req)
	if err != nil {
		return nil, fmt.Errorf("httpcache: decode cached response: %w", err)
	}
	return resp, nil
}

func noStore(h http.Header) bool {
	for _, v := range h.Values("Cache-Control") {
		for _, directive := range strings.Split(v, ",") {
			switch strings.ToLower(strings.TrimSpace(directive)) {
			case "no-store", "no-cache":
				return true
			}
		}
	}
	return false
}

// privateResponse reports whether a reply is marked no-store or private,
// or sets a cookie.
func privateResponse(h http.Header) bool {
	if len(h.Values("Set-Cookie")) > 0 {
		return true
	}
	for _, v := range h.Values("Cache-Control") {
		for _, directive := range strings.Split(v, ",") {
			d := strings.ToLower(strings.TrimSpace(directive))
			if d == "no-store" || d == "private" || strings.HasPrefix(d, "private=") {
				return true
			}
		}
	}
	return false
}

func isStreamingRequest(h http.Header) bool {
	if h.Get("Upgrade") != "" {
		return true
	}
	for _, v := range h.Values("Accept") {
		if strings.Contains(strings.ToLower(v), "text/event-stream") {
			return true
		}
	}
	return false
}

// isStreamingBody reports whether a JSON body asks for a streamed reply.
func isStreamingBody(body []byte) bool {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return false
	}
	return gjson.GetBytes(body, "stream").Bool()
}

var _ http.RoundTripper = (*Transport)(nil)
