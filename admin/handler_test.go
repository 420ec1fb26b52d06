package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/respcache/auth"
	"github.com/jonwraymond/respcache/cache"
)

func newCache(t *testing.T) *cache.Interceptor {
	t.Helper()
	c, err := cache.NewInterceptor(context.Background(), cache.InterceptorConfig{Policy: cache.DefaultPolicy()})
	if err != nil {
		t.Fatalf("NewInterceptor() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

// seed stores one entry for target and serves it once from the cache.
func seed(t *testing.T, c *cache.Interceptor, target string) string {
	t.Helper()
	ctx := context.Background()
	req := cache.Request{Target: target}
	fetch := func(context.Context) ([]byte, error) { return []byte("resp:" + target), nil }
	for range 2 {
		if _, err := c.Handle(ctx, req, fetch); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
	}
	key, err := c.Key(req)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func do(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHandler_Stats(t *testing.T) {
	c := newCache(t)
	seed(t, c, "GET /a")
	h := NewHandler(c, nil, nil)

	rec := do(t, h, http.MethodGet, "/cache/stats", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	got := decode[StatsResponse](t, rec)
	if got.Hits != 1 || got.Misses != 1 || got.HitRate != 50 {
		t.Errorf("stats = %+v, want 1 hit, 1 miss, 50%%", got)
	}
	if !got.Enabled || got.Entries != 1 || got.MaxEntries != cache.DefaultMaxEntries || got.Eviction != "fifo" {
		t.Errorf("stats = %+v", got)
	}
}

func TestHandler_ListEntriesAndSnapshot(t *testing.T) {
	c := newCache(t)
	keyA := seed(t, c, "GET /a")
	keyB := seed(t, c, "GET /b")
	h := NewHandler(c, nil, nil)

	rec := do(t, h, http.MethodGet, "/cache/entries", "", nil)
	list := decode[EntriesResponse](t, rec)
	if list.Count != 2 || list.Entries[0].Key != keyA || list.Entries[1].Key != keyB {
		t.Fatalf("entries = %+v, want [%s %s]", list, keyA, keyB)
	}
	if list.Entries[0].Hits != 1 || list.Entries[0].Query != "GET /a" {
		t.Errorf("entry[0] = %+v", list.Entries[0])
	}

	rec = do(t, h, http.MethodGet, "/cache/snapshot", "", nil)
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	snap := decode[cache.Snapshot](t, rec)
	if len(snap.Entries) != 2 || string(snap.Entries[1].Response) != "resp:GET /b" {
		t.Errorf("snapshot entries = %+v", snap.Entries)
	}
	if snap.HitCount != 2 || snap.MissCount != 2 {
		t.Errorf("snapshot counters = %d/%d, want 2/2", snap.HitCount, snap.MissCount)
	}
}

func TestHandler_DeleteEntry(t *testing.T) {
	c := newCache(t)
	key := seed(t, c, "GET /a")
	h := NewHandler(c, nil, nil)

	if rec := do(t, h, http.MethodDelete, "/cache/entries/"+key, "", nil); rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body %s", rec.Code, rec.Body)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after delete", c.Len())
	}
	if rec := do(t, h, http.MethodDelete, "/cache/entries/"+key, "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/cache/entries/%20%20", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("blank key status = %d, want 400", rec.Code)
	}
}

func TestHandler_ClearAndResetStats(t *testing.T) {
	c := newCache(t)
	seed(t, c, "GET /a")
	seed(t, c, "GET /b")
	h := NewHandler(c, nil, nil)

	rec := do(t, h, http.MethodPost, "/cache/clear", "", nil)
	if got := decode[map[string]int](t, rec); got["cleared"] != 2 {
		t.Errorf("clear = %v, want 2", got)
	}
	if c.Len() != 0 || c.Stats().Hits != 2 {
		t.Errorf("after clear: len %d, stats %+v", c.Len(), c.Stats())
	}

	rec = do(t, h, http.MethodPost, "/cache/stats/reset", "", nil)
	if got := decode[cache.StatsSnapshot](t, rec); got.Lookups != 0 {
		t.Errorf("reset = %+v, want zero", got)
	}
}

func TestHandler_SetEnabled(t *testing.T) {
	c := newCache(t)
	h := NewHandler(c, nil, nil)

	tests := []struct {
		name        string
		body        string
		wantCode    int
		wantEnabled bool
	}{
		{"disable", `{"enabled":false}`, http.StatusOK, false},
		{"enable", `{"enabled":true}`, http.StatusOK, true},
		{"missing field", `{}`, http.StatusBadRequest, true},
		{"unknown field", `{"enabled":true,"x":1}`, http.StatusBadRequest, true},
		{"not json", `yes`, http.StatusBadRequest, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPut, "/cache/enabled", tt.body, nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body)
			}
			if c.Enabled() != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", c.Enabled(), tt.wantEnabled)
			}
		})
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := NewHandler(newCache(t), nil, nil)
	if rec := do(t, h, http.MethodGet, "/cache/clear", "", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /cache/clear = %d, want 405", rec.Code)
	}
}

func TestHandler_Auth(t *testing.T) {
	secret := []byte("test-secret")
	store := auth.NewMemoryAPIKeyStore()
	store.AddKey("ro", "read-key", "viewer", auth.RoleRead)
	store.AddKey("rw", "admin-key", "operator", auth.RoleAdmin)
	authn := auth.NewCompositeAuthenticator(
		auth.NewJWTAuthenticator(auth.JWTConfig{}, auth.NewStaticKeyProvider(secret)),
		auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, store),
	)
	h := NewHandler(newCache(t), auth.NewMiddleware(authn), nil)

	adminToken, err := auth.SignToken(secret, "", "alice", []string{auth.RoleAdmin}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	apiKey := func(k string) http.Header { return http.Header{"X-Api-Key": {k}} }
	bearer := http.Header{"Authorization": {"Bearer " + adminToken}}

	tests := []struct {
		name     string
		method   string
		path     string
		header   http.Header
		wantCode int
	}{
		{"no credentials", http.MethodGet, "/cache/stats", nil, http.StatusUnauthorized},
		{"wrong key", http.MethodGet, "/cache/stats", apiKey("nope"), http.StatusUnauthorized},
		{"read key reads", http.MethodGet, "/cache/stats", apiKey("read-key"), http.StatusOK},
		{"read key cannot clear", http.MethodPost, "/cache/clear", apiKey("read-key"), http.StatusForbidden},
		{"admin key clears", http.MethodPost, "/cache/clear", apiKey("admin-key"), http.StatusOK},
		{"admin key reads", http.MethodGet, "/cache/entries", apiKey("admin-key"), http.StatusOK},
		{"admin jwt clears", http.MethodPost, "/cache/clear", bearer, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, "", tt.header)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body)
			}
		})
	}
}
