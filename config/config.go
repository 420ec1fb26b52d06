// Package config loads the respcache service configuration from YAML.
package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/respcache/auth"
	"github.com/jonwraymond/respcache/cache"
	"github.com/jonwraymond/respcache/observe"
	"github.com/jonwraymond/respcache/persist"
)

// Sentinel errors.
var (
	ErrMissingEnv    = errors.New("config: missing required environment variables")
	ErrMissingSecret = errors.New("config: secret unavailable")
	ErrInvalid       = errors.New("config: invalid")
)

// Config holds all respcache configuration.
type Config struct {
	Listen      string         `yaml:"listen"`
	AdminListen string         `yaml:"admin_listen"`
	Upstream    string         `yaml:"upstream"`
	Cache       CacheConfig    `yaml:"cache"`
	Persistence persist.Config `yaml:"persistence"`
	Observe     observe.Config `yaml:"observe"`
	Admin       AdminConfig    `yaml:"admin"`
}

// CacheConfig controls the interceptor and the HTTP transport.
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled"`
	MaxEntries      int           `yaml:"max_entries"`
	MaxAge          time.Duration `yaml:"max_age"`
	Eviction        string        `yaml:"eviction"` // fifo|lru
	KeyMode         string        `yaml:"key_mode"` // sha256|truncated
	KeyLength       int           `yaml:"key_length"`
	Methods         []string      `yaml:"methods"`
	KeyHeaders      []string      `yaml:"key_headers"`
	TargetPrefixes  []string      `yaml:"target_prefixes"`
	PersistDebounce time.Duration `yaml:"persist_debounce"`
}

// AdminConfig configures admin API credentials. With neither a JWT secret
// nor API keys the admin API is open.
type AdminConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	JWTIssuer string        `yaml:"jwt_issuer"`
	APIKeys   []AdminAPIKey `yaml:"api_keys"`
}

// AdminAPIKey is one static admin API key.
type AdminAPIKey struct {
	ID        string   `yaml:"id"`
	Key       string   `yaml:"key"`
	Principal string   `yaml:"principal"`
	Roles     []string `yaml:"roles"`
}

// DefaultPersistDebounce bounds how often a serving process rewrites the
// persisted cache.
const DefaultPersistDebounce = time.Second

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen:      ":8080",
		AdminListen: "127.0.0.1:9090",
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: cache.DefaultMaxEntries,
			MaxAge:     cache.DefaultMaxAge,
			Eviction:   cache.EvictFIFO.String(),
			KeyMode:    cache.KeyModeHash,
			Methods:    []string{"GET", "HEAD"},

			PersistDebounce: DefaultPersistDebounce,
		},
		Persistence: persist.Config{
			Driver: persist.DriverFile,
			Path:   "respcache.json",
		},
		Observe: observe.Config{
			ServiceName: "respcache",
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

// Load reads the YAML file at path, expands ${VAR} references strictly,
// resolves secret references, and validates the result.
func Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(ctx, data)
}

// Parse is Load without the file read.
func Parse(ctx context.Context, data []byte) (*Config, error) {
	expanded, err := ExpandEnvStrict(string(data))
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.resolveSecrets(ctx, NewSecretResolver()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolveSecrets(ctx context.Context, r *SecretResolver) error {
	fields := []*string{&c.Admin.JWTSecret, &c.Persistence.RedisPassword}
	for i := range c.Admin.APIKeys {
		fields = append(fields, &c.Admin.APIKeys[i].Key)
	}
	return r.resolveAll(ctx, fields...)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("%w: listen is required", ErrInvalid)
	}
	if c.Upstream != "" {
		u, err := url.Parse(c.Upstream)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: upstream %q must be an absolute URL", ErrInvalid, c.Upstream)
		}
	}
	if _, err := c.Cache.Policy(); err != nil {
		return err
	}
	if _, err := c.Cache.Keyer(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	for _, m := range c.Cache.Methods {
		if m != strings.ToUpper(m) || m == "" {
			return fmt.Errorf("%w: method %q must be upper case", ErrInvalid, m)
		}
	}
	if c.Cache.PersistDebounce < 0 {
		return fmt.Errorf("%w: persist_debounce must not be negative", ErrInvalid)
	}
	if err := c.Persistence.Validate(); err != nil {
		return err
	}
	if err := c.Observe.Validate(); err != nil {
		return err
	}
	for i, k := range c.Admin.APIKeys {
		if k.Key == "" {
			return fmt.Errorf("%w: admin.api_keys[%d].key is empty", ErrInvalid, i)
		}
		for _, role := range k.Roles {
			if role != auth.RoleRead && role != auth.RoleAdmin {
				return fmt.Errorf("%w: admin.api_keys[%d] has unknown role %q", ErrInvalid, i, role)
			}
		}
	}
	return nil
}

// Policy builds the cache policy.
func (c CacheConfig) Policy() (cache.Policy, error) {
	eviction, err := cache.ParseEvictionPolicy(c.Eviction)
	if err != nil {
		return cache.Policy{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	p := cache.Policy{
		MaxEntries:     c.MaxEntries,
		MaxAge:         c.MaxAge,
		Eviction:       eviction,
		TargetPrefixes: slices.Clone(c.TargetPrefixes),
	}
	if err := p.Validate(); err != nil {
		return cache.Policy{}, err
	}
	return p, nil
}

// Keyer builds the key deriver named by KeyMode.
func (c CacheConfig) Keyer() (cache.Keyer, error) {
	k, err := cache.NewKeyer(c.KeyMode)
	if err != nil {
		return nil, err
	}
	if tk, ok := k.(*cache.TruncatedKeyer); ok {
		tk.Length = c.KeyLength
	}
	return k, nil
}

// Authenticator builds the admin authenticator, or nil when no credentials
// are configured.
func (a AdminConfig) Authenticator() auth.Authenticator {
	var auths []auth.Authenticator
	if a.JWTSecret != "" {
		auths = append(auths, auth.NewJWTAuthenticator(
			auth.JWTConfig{Issuer: a.JWTIssuer},
			auth.NewStaticKeyProvider([]byte(a.JWTSecret)),
		))
	}
	if len(a.APIKeys) > 0 {
		store := auth.NewMemoryAPIKeyStore()
		for _, k := range a.APIKeys {
			store.AddKey(k.ID, k.Key, k.Principal, k.Roles...)
		}
		auths = append(auths, auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, store))
	}

	switch len(auths) {
	case 0:
		return nil
	case 1:
		return auths[0]
	default:
		return auth.NewCompositeAuthenticator(auths...)
	}
}
