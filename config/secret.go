package config

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// SecretProvider resolves a secret by reference.
//
// Implementations must be safe for concurrent use and must not log secret
// values.
type SecretProvider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
}

// EnvSecrets resolves "secretref:env:NAME" from the environment.
type EnvSecrets struct{}

// Name implements SecretProvider.
func (EnvSecrets) Name() string { return "env" }

// Resolve implements SecretProvider.
func (EnvSecrets) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("%w: env %s", ErrMissingSecret, ref)
	}
	return v, nil
}

// FileSecrets resolves "secretref:file:/path" from a file, trimming one
// trailing newline. It suits mounted secret volumes.
type FileSecrets struct{}

// Name implements SecretProvider.
func (FileSecrets) Name() string { return "file" }

// Resolve implements SecretProvider.
func (FileSecrets) Resolve(_ context.Context, ref string) (string, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("%w: file %s: %w", ErrMissingSecret, ref, err)
	}
	return strings.TrimSuffix(strings.TrimSuffix(string(data), "\n"), "\r"), nil
}

// SecretResolver replaces values of the form "secretref:<provider>:<ref>"
// with the provider's answer. Other values pass through.
type SecretResolver struct {
	providers map[string]SecretProvider
}

// NewSecretResolver registers providers by name. With none it registers
// EnvSecrets and FileSecrets.
func NewSecretResolver(providers ...SecretProvider) *SecretResolver {
	if len(providers) == 0 {
		providers = []SecretProvider{EnvSecrets{}, FileSecrets{}}
	}
	r := &SecretResolver{providers: make(map[string]SecretProvider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// ParseSecretRef splits "secretref:<provider>:<ref>".
func ParseSecretRef(value string) (provider, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, "secretref:")
	if !found {
		return "", "", false
	}
	provider, ref, found = strings.Cut(rest, ":")
	if !found || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

// Resolve returns value, or the secret it references. An empty secret is
// an error.
func (r *SecretResolver) Resolve(ctx context.Context, value string) (string, error) {
	name, ref, ok := ParseSecretRef(value)
	if !ok {
		return value, nil
	}
	p, found := r.providers[name]
	if !found {
		return "", fmt.Errorf("%w: provider %q is not registered", ErrMissingSecret, name)
	}
	out, err := p.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", fmt.Errorf("%w: provider %q returned empty value", ErrMissingSecret, name)
	}
	return out, nil
}

// resolveAll resolves each pointed-to string in place.
func (r *SecretResolver) resolveAll(ctx context.Context, fields ...*string) error {
	for _, f := range fields {
		v, err := r.Resolve(ctx, *f)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}
