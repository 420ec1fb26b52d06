package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func apiKeyReq(key string) *AuthRequest {
	h := http.Header{}
	if key != "" {
		h.Set("X-API-Key", key)
	}
	return &AuthRequest{Headers: h}
}

func TestAPIKeyAuthenticator(t *testing.T) {
	store := NewMemoryAPIKeyStore()
	store.AddKey("k1", "secret-read", "dashboard", RoleRead)
	store.Add(&APIKeyInfo{
		ID:        "k2",
		KeyHash:   HashAPIKey("secret-old"),
		Principal: "old",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	a := NewAPIKeyAuthenticator(APIKeyConfig{}, store)

	if a.Name() != "api_key" {
		t.Errorf("Name() = %q", a.Name())
	}
	if a.Supports(context.Background(), apiKeyReq("")) {
		t.Error("Supports() = true without header")
	}

	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{name: "valid", key: "secret-read"},
		{name: "valid with whitespace", key: "  secret-read "},
		{name: "unknown", key: "nope", wantErr: ErrInvalidCredentials},
		{name: "expired", key: "secret-old", wantErr: ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := a.Authenticate(context.Background(), apiKeyReq(tt.key))
			if err != nil {
				t.Fatalf("Authenticate() internal error = %v", err)
			}
			if tt.wantErr != nil {
				if result.Authenticated || !errors.Is(result.Error, tt.wantErr) {
					t.Errorf("result = %+v, want %v", result, tt.wantErr)
				}
				return
			}
			if !result.Authenticated {
				t.Fatalf("Authenticate() failed: %v", result.Error)
			}
			if result.Identity.Principal != "dashboard" || !result.Identity.HasRole(RoleRead) {
				t.Errorf("identity = %+v", result.Identity)
			}
			if result.Identity.Claims["key_id"] != "k1" {
				t.Errorf("key_id = %v", result.Identity.Claims["key_id"])
			}
		})
	}
}

func TestMemoryAPIKeyStore_Remove(t *testing.T) {
	store := NewMemoryAPIKeyStore()
	store.AddKey("k1", "secret", "p")
	store.Remove(HashAPIKey("secret"))

	info, err := store.Lookup(context.Background(), HashAPIKey("secret"))
	if err != nil || info != nil {
		t.Errorf("Lookup() = %v, %v; want nil, nil", info, err)
	}
}

func TestHashAPIKey(t *testing.T) {
	if got := HashAPIKey("abc"); got != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("HashAPIKey(abc) = %s", got)
	}
}
