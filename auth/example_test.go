package auth_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/jonwraymond/respcache/auth"
)

func ExampleMiddleware_Require() {
	keys := auth.NewMemoryAPIKeyStore()
	keys.AddKey("dash", "read-only-key", "dashboard", auth.RoleRead)

	m := auth.NewMiddleware(auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, keys))
	handler := m.Require(auth.RoleAdmin, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "cleared")
	}))

	req := httptest.NewRequest(http.MethodPost, "/cache/clear", nil)
	req.Header.Set("X-API-Key", "read-only-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	fmt.Println(rec.Code)
	// Output:
	// 403
}
