package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/jonwraymond/respcache/httpcache"
	"github.com/jonwraymond/respcache/observe"
)

// DefaultShutdownTimeout bounds graceful shutdown in ListenAndServe.
const DefaultShutdownTimeout = 5 * time.Second

// ErrNoUpstream is returned by New without an upstream URL.
var ErrNoUpstream = errors.New("proxy: upstream URL is required")

// Config configures a Server.
type Config struct {
	// Listen is the address ListenAndServe binds.
	Listen string

	// Upstream is the base URL requests are forwarded to.
	Upstream *url.URL

	// Transport performs upstream calls. Defaults to http.DefaultTransport.
	Transport http.RoundTripper

	// Logger receives one access line per request. Defaults to no-op.
	Logger observe.Logger
}

// Server is the caching reverse proxy.
type Server struct {
	cfg     Config
	logger  observe.Logger
	handler http.Handler
}

// New creates a proxy Server for cfg.
func New(cfg Config) (*Server, error) {
	if cfg.Upstream == nil || cfg.Upstream.Host == "" {
		return nil, ErrNoUpstream
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	s := &Server{cfg: cfg, logger: logger.With(observe.F("component", "proxy"))}

	upstream := cfg.Upstream
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
			if id := RequestIDFromContext(pr.In.Context()); id != "" {
				pr.Out.Header.Set(RequestIDHeader, id)
			}
		},
		Transport:    cfg.Transport,
		ErrorHandler: s.upstreamError,
	}
	s.handler = RequestID(s.accessLog(rp))
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on cfg.Listen until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	return ListenAndServe(ctx, s.cfg.Listen, s, s.logger)
}

// ListenAndServe runs an http.Server on addr and shuts it down gracefully
// when ctx is done.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, logger observe.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", observe.F("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			return fmt.Errorf("shutdown %s: %w", addr, err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error(r.Context(), "upstream request failed",
		observe.F("request_id", RequestIDFromContext(r.Context())),
		observe.F("method", r.Method),
		observe.F("path", r.URL.Path),
		observe.F("error", err),
	)
	code := http.StatusBadGateway
	if errors.Is(err, context.DeadlineExceeded) {
		code = http.StatusGatewayTimeout
	}
	writeJSONError(w, code, "upstream unavailable")
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		s.logger.Info(r.Context(), "request",
			observe.F("request_id", RequestIDFromContext(r.Context())),
			observe.F("method", r.Method),
			observe.F("path", r.URL.Path),
			observe.F("status", sw.code),
			observe.F("cache", w.Header().Get(httpcache.HeaderCache)),
			observe.F("duration_ms", float64(time.Since(start).Microseconds())/1000),
		)
	})
}

// statusWriter records the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"code":%d}}`, message, code)
}
