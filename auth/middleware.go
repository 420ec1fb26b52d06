package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Middleware authenticates and authorizes HTTP requests.
//
// With a nil Authenticator every request runs as an anonymous identity that
// holds all roles. This is the unauthenticated local mode.
type Middleware struct {
	Authenticator Authenticator
	Authorizer    Authorizer
}

// NewMiddleware returns a Middleware using a RoleAuthorizer.
func NewMiddleware(authn Authenticator) *Middleware {
	return &Middleware{Authenticator: authn, Authorizer: NewRoleAuthorizer()}
}

// Open reports whether requests skip authentication.
func (m *Middleware) Open() bool {
	return m.Authenticator == nil
}

// Require wraps next so it runs only for identities holding role. Failed
// authentication is a 401, a missing role a 403. The identity is attached
// to the request context.
func (m *Middleware) Require(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if m.Open() {
			id := AnonymousIdentity()
			id.Roles = []string{RoleAdmin, RoleRead}
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
			return
		}

		areq := &AuthRequest{Headers: r.Header, Resource: r.URL.Path}
		if !m.Authenticator.Supports(ctx, areq) {
			unauthorized(w, ErrMissingCredentials)
			return
		}
		result, err := m.Authenticator.Authenticate(ctx, areq)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "authentication unavailable")
			return
		}
		if !result.Authenticated {
			unauthorized(w, result.Error)
			return
		}
		id := result.Identity
		if id.IsExpired() {
			unauthorized(w, ErrTokenExpired)
			return
		}

		authz := m.Authorizer
		if authz == nil {
			authz = NewRoleAuthorizer()
		}
		if err := authz.Authorize(ctx, &AuthzRequest{
			Subject:  id,
			Resource: r.Method + " " + r.URL.Path,
			Role:     role,
		}); err != nil {
			if errors.Is(err, ErrForbidden) {
				writeError(w, http.StatusForbidden, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "authorization unavailable")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
	})
}

func unauthorized(w http.ResponseWriter, err error) {
	if err == nil {
		err = ErrInvalidCredentials
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="respcache"`)
	writeError(w, http.StatusUnauthorized, err.Error())
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
