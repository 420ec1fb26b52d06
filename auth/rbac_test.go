package auth

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestRoleAuthorizer(t *testing.T) {
	a := NewRoleAuthorizer()

	tests := []struct {
		name    string
		roles   []string
		role    string
		allowed bool
	}{
		{"read with read", []string{RoleRead}, RoleRead, true},
		{"admin with admin", []string{RoleAdmin}, RoleAdmin, true},
		{"admin implies read", []string{RoleAdmin}, RoleRead, true},
		{"read does not imply admin", []string{RoleRead}, RoleAdmin, false},
		{"no roles", nil, RoleRead, false},
		{"unrelated role", []string{"billing"}, RoleRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Authorize(context.Background(), &AuthzRequest{
				Subject:  &Identity{Principal: "p", Roles: tt.roles},
				Resource: "GET /cache/stats",
				Role:     tt.role,
			})
			if tt.allowed {
				if err != nil {
					t.Errorf("Authorize() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrForbidden) {
				t.Errorf("Authorize() error = %v, want ErrForbidden", err)
			}
			var ae *AuthzError
			if !errors.As(err, &ae) || ae.Role != tt.role || ae.Subject != "p" {
				t.Errorf("AuthzError = %+v", ae)
			}
		})
	}
}

func TestRoleAuthorizer_NoSubject(t *testing.T) {
	err := NewRoleAuthorizer().Authorize(context.Background(), &AuthzRequest{Role: RoleRead})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Authorize() error = %v, want ErrForbidden", err)
	}
}

func TestRoleAuthorizer_EffectiveRoles(t *testing.T) {
	a := &RoleAuthorizer{Implications: map[string][]string{
		"owner":   {RoleAdmin},
		RoleAdmin: {RoleRead},
		RoleRead:  {RoleAdmin}, // cycles terminate
	}}

	got := a.EffectiveRoles([]string{"owner"})
	if !slices.Equal(got, []string{"owner", RoleAdmin, RoleRead}) {
		t.Errorf("EffectiveRoles() = %v", got)
	}
}
