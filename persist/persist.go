package persist

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/jonwraymond/respcache/cache"
	"github.com/jonwraymond/respcache/resilience"
)

// Driver names accepted by Open.
const (
	DriverNone   = "none"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// DefaultRedisKey is the key used by RedisStore when none is configured.
const DefaultRedisKey = "respcache:state"

// Sentinel errors.
var (
	ErrUnknownDriver = errors.New("persist: unknown driver")
	ErrMissingPath   = errors.New("persist: path is required")
	ErrCorrupt       = errors.New("persist: stored state is corrupt")
)

// Backend is a cache.Persister that holds resources.
type Backend interface {
	cache.Persister

	// Name returns the driver name.
	Name() string

	// Close releases the backend's resources.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver        string      `yaml:"driver"`
	Path          string      `yaml:"path"`
	DSN           string      `yaml:"dsn"` // sqlite only; overrides Path
	RedisAddr     string      `yaml:"redis_addr"`
	RedisPassword string      `yaml:"redis_password"`
	RedisDB       int         `yaml:"redis_db"`
	RedisKey      string      `yaml:"redis_key"`
	Guard         GuardConfig `yaml:"guard"`
}

// Validate checks that the driver is known and has what it needs.
func (c Config) Validate() error {
	switch c.Driver {
	case "", DriverNone:
		return nil
	case DriverFile, DriverSQLite:
		if c.Path == "" && (c.Driver == DriverFile || c.DSN == "") {
			return fmt.Errorf("%w for driver %q", ErrMissingPath, c.Driver)
		}
		return nil
	case DriverRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("persist: redis_addr is required for driver %q", c.Driver)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Driver)
	}
}

// Open builds the backend named by cfg.Driver. Driver "none" or "" returns
// a nil Backend and a nil error. With cfg.Guard.Enabled the backend is
// wrapped in a Guard.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		b   Backend
		err error
	)
	switch cfg.Driver {
	case "", DriverNone:
		return nil, nil
	case DriverFile:
		b = NewFileStore(cfg.Path)
	case DriverSQLite:
		b, err = NewSQLiteStore(ctx, cmp.Or(cfg.DSN, cfg.Path))
	case DriverRedis:
		b, err = DialRedis(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.RedisKey)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Guard.Enabled {
		return NewGuard(b, cfg.Guard), nil
	}
	return b, nil
}

// encodeState marshals st. Marshal failures are permanent.
func encodeState(st *cache.State) ([]byte, error) {
	if st.Entries == nil {
		cp := *st
		cp.Entries = []cache.Entry{}
		st = &cp
	}
	data, err := json.Marshal(st)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("persist: encode state: %w", err))
	}
	return data, nil
}

// decodeState unmarshals a stored record. Empty input means no state.
func decodeState(data []byte) (*cache.State, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var st cache.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return &st, nil
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
