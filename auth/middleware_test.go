package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func protected(m *Middleware, role string) http.Handler {
	return m.Require(role, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(PrincipalFromContext(r.Context())))
	}))
}

func TestMiddleware_Require(t *testing.T) {
	keys := NewMemoryAPIKeyStore()
	keys.AddKey("r", "reader-key", "reader", RoleRead)
	keys.AddKey("a", "admin-key", "admin", RoleAdmin)
	m := NewMiddleware(NewCompositeAuthenticator(
		NewAPIKeyAuthenticator(APIKeyConfig{}, keys),
		NewJWTAuthenticator(JWTConfig{}, NewStaticKeyProvider(testKey)),
	))

	adminToken, err := SignToken(testKey, "", "jwt-admin", []string{RoleAdmin}, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		role     string
		header   [2]string
		wantCode int
		wantBody string
	}{
		{"no credentials", RoleRead, [2]string{}, http.StatusUnauthorized, ""},
		{"bad key", RoleRead, [2]string{"X-API-Key", "wrong"}, http.StatusUnauthorized, ""},
		{"reader reads", RoleRead, [2]string{"X-API-Key", "reader-key"}, http.StatusOK, "reader"},
		{"reader cannot admin", RoleAdmin, [2]string{"X-API-Key", "reader-key"}, http.StatusForbidden, ""},
		{"admin reads", RoleRead, [2]string{"X-API-Key", "admin-key"}, http.StatusOK, "admin"},
		{"admin admins", RoleAdmin, [2]string{"X-API-Key", "admin-key"}, http.StatusOK, "admin"},
		{"jwt admin", RoleAdmin, [2]string{"Authorization", "Bearer " + adminToken}, http.StatusOK, "jwt-admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/cache/stats", nil)
			if tt.header[0] != "" {
				req.Header.Set(tt.header[0], tt.header[1])
			}
			rec := httptest.NewRecorder()
			protected(m, tt.role).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if rec.Code == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate")
			}
		})
	}
}

func TestMiddleware_Open(t *testing.T) {
	m := NewMiddleware(nil)
	if !m.Open() {
		t.Fatal("Open() = false with nil authenticator")
	}

	rec := httptest.NewRecorder()
	protected(m, RoleAdmin).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cache/clear", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Errorf("open mode = %d %q", rec.Code, rec.Body.String())
	}
}
