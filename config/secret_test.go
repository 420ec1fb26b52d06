package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseSecretRef(t *testing.T) {
	tests := []struct {
		in       string
		provider string
		ref      string
		ok       bool
	}{
		{"secretref:env:TOKEN", "env", "TOKEN", true},
		{"secretref:file:/run/secrets/a:b", "file", "/run/secrets/a:b", true},
		{"secretref:env:", "", "", false},
		{"secretref::x", "", "", false},
		{"plain", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, r, ok := ParseSecretRef(tt.in)
			if p != tt.provider || r != tt.ref || ok != tt.ok {
				t.Errorf("ParseSecretRef() = %q, %q, %v", p, r, ok)
			}
		})
	}
}

func TestSecretResolver(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "from-env")
	t.Setenv("EMPTY_TOKEN", "")
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	r := NewSecretResolver()
	ctx := context.Background()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "literal", want: "literal"},
		{name: "env", in: "secretref:env:ADMIN_TOKEN", want: "from-env"},
		{name: "file", in: "secretref:file:" + path, want: "from-file"},
		{name: "missing env", in: "secretref:env:NOPE_NOT_SET", wantErr: true},
		{name: "empty env", in: "secretref:env:EMPTY_TOKEN", wantErr: true},
		{name: "missing file", in: "secretref:file:" + path + ".missing", wantErr: true},
		{name: "unknown provider", in: "secretref:vault:x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(ctx, tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrMissingSecret) {
					t.Errorf("Resolve() error = %v, want ErrMissingSecret", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}
