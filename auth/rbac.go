package auth

import (
	"context"
	"fmt"
	"slices"
)

// Admin API roles.
const (
	RoleRead  = "cache.read"
	RoleAdmin = "cache.admin"
)

// DefaultImplications makes RoleAdmin grant RoleRead.
var DefaultImplications = map[string][]string{
	RoleAdmin: {RoleRead},
}

// Authorizer determines if an identity may use a resource.
type Authorizer interface {
	// Authorize returns nil if permitted, or an error (typically *AuthzError).
	Authorize(ctx context.Context, req *AuthzRequest) error
}

// AuthzRequest contains the information needed for authorization.
type AuthzRequest struct {
	Subject  *Identity
	Resource string // e.g. "DELETE /cache/entries/{key}"
	Role     string // role required for Resource
}

// AuthzError represents an authorization failure.
type AuthzError struct {
	Subject  string
	Resource string
	Role     string
	Reason   string
}

// Error returns the error message.
func (e *AuthzError) Error() string {
	return fmt.Sprintf("authorization denied: subject=%q resource=%q role=%q reason=%q",
		e.Subject, e.Resource, e.Role, e.Reason)
}

// Is reports whether this error matches the target.
func (e *AuthzError) Is(target error) bool {
	return target == ErrForbidden
}

// RoleAuthorizer permits a request when the subject holds the required role
// directly or through Implications.
type RoleAuthorizer struct {
	// Implications maps a role to the roles it grants. Defaults to
	// DefaultImplications.
	Implications map[string][]string
}

// NewRoleAuthorizer returns a RoleAuthorizer with DefaultImplications.
func NewRoleAuthorizer() *RoleAuthorizer {
	return &RoleAuthorizer{Implications: DefaultImplications}
}

// Authorize implements Authorizer.
func (a *RoleAuthorizer) Authorize(_ context.Context, req *AuthzRequest) error {
	if req.Subject == nil {
		return &AuthzError{Resource: req.Resource, Role: req.Role, Reason: "no identity provided"}
	}
	if slices.Contains(a.EffectiveRoles(req.Subject.Roles), req.Role) {
		return nil
	}
	return &AuthzError{
		Subject:  req.Subject.Principal,
		Resource: req.Resource,
		Role:     req.Role,
		Reason:   "role not granted",
	}
}

// EffectiveRoles expands roles through Implications, transitively.
func (a *RoleAuthorizer) EffectiveRoles(roles []string) []string {
	implications := a.Implications
	if implications == nil {
		implications = DefaultImplications
	}

	seen := make(map[string]bool, len(roles))
	queue := slices.Clone(roles)
	var out []string
	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
		queue = append(queue, implications[r]...)
	}
	return out
}

var _ Authorizer = (*RoleAuthorizer)(nil)
