package admin

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jonwraymond/respcache/auth"
	"github.com/jonwraymond/respcache/cache"
	"github.com/jonwraymond/respcache/observe"
)

// maxBodyBytes bounds request bodies accepted by mutating routes.
const maxBodyBytes = 1 << 10

// StatsResponse is the body of GET /cache/stats.
type StatsResponse struct {
	cache.StatsSnapshot
	Enabled    bool   `json:"enabled"`
	Entries    int    `json:"entries"`
	MaxEntries int    `json:"maxEntries"`
	MaxAge     string `json:"maxAge"`
	Eviction   string `json:"eviction"`
}

// EntriesResponse is the body of GET /cache/entries.
type EntriesResponse struct {
	Entries []cache.Summary `json:"entries"`
	Count   int             `json:"count"`
}

// EnabledRequest is the body of PUT /cache/enabled.
type EnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// Handler serves the admin API for one Interceptor.
type Handler struct {
	cache  *cache.Interceptor
	auth   *auth.Middleware
	logger observe.Logger
	mux    *http.ServeMux
}

// NewHandler builds the admin routes. A nil mw leaves the API open and a nil
// logger discards.
func NewHandler(c *cache.Interceptor, mw *auth.Middleware, logger observe.Logger) *Handler {
	if mw == nil {
		mw = auth.NewMiddleware(nil)
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	h := &Handler{
		cache:  c,
		auth:   mw,
		logger: logger.With(observe.F("component", "admin")),
		mux:    http.NewServeMux(),
	}
	h.Register(h.mux)
	return h
}

// Register adds the admin routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	read := func(f http.HandlerFunc) http.Handler { return h.auth.Require(auth.RoleRead, f) }
	admin := func(f http.HandlerFunc) http.Handler { return h.auth.Require(auth.RoleAdmin, f) }

	mux.Handle("GET /cache/stats", read(h.stats))
	mux.Handle("GET /cache/entries", read(h.listEntries))
	mux.Handle("GET /cache/snapshot", read(h.snapshot))
	mux.Handle("DELETE /cache/entries/{key...}", admin(h.deleteEntry))
	mux.Handle("POST /cache/clear", admin(h.clear))
	mux.Handle("POST /cache/stats/reset", admin(h.resetStats))
	mux.Handle("PUT /cache/enabled", admin(h.setEnabled))
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	p := h.cache.Policy()
	writeJSON(w, http.StatusOK, StatsResponse{
		StatsSnapshot: h.cache.Stats(),
		Enabled:       h.cache.Enabled(),
		Entries:       h.cache.Len(),
		MaxEntries:    p.MaxEntries,
		MaxAge:        p.MaxAge.String(),
		Eviction:      p.Eviction.String(),
	})
}

func (h *Handler) listEntries(w http.ResponseWriter, _ *http.Request) {
	entries := h.cache.ListEntries()
	writeJSON(w, http.StatusOK, EntriesResponse{Entries: entries, Count: len(entries)})
}

func (h *Handler) snapshot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Disposition", `attachment; filename="respcache-snapshot.json"`)
	writeJSON(w, http.StatusOK, h.cache.ExportSnapshot())
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	deleted, err := h.cache.DeleteEntry(r.Context(), key)
	switch {
	case errors.Is(err, cache.ErrInvalidKey), errors.Is(err, cache.ErrKeyTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	case !deleted:
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	h.audit(r, "cache entry deleted", observe.F("key", key))
	writeJSON(w, http.StatusOK, map[string]any{"deleted": key})
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	n := h.cache.Clear(r.Context())
	h.audit(r, "cache cleared via admin", observe.F("entries", n))
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

func (h *Handler) resetStats(w http.ResponseWriter, r *http.Request) {
	h.cache.ResetStats(r.Context())
	h.audit(r, "cache stats reset via admin")
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) setEnabled(w http.ResponseWriter, r *http.Request) {
	var req EnabledRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, `"enabled" is required`)
		return
	}

	h.cache.SetEnabled(*req.Enabled)
	h.audit(r, "cache toggled", observe.F("enabled", *req.Enabled))
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": h.cache.Enabled()})
}

func (h *Handler) audit(r *http.Request, msg string, fields ...observe.Field) {
	fields = append(fields, observe.F("principal", auth.PrincipalFromContext(r.Context())))
	h.logger.Info(r.Context(), msg, fields...)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
