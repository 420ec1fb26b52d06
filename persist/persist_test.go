package persist

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "empty", cfg: Config{}},
		{name: "none", cfg: Config{Driver: DriverNone}},
		{name: "file", cfg: Config{Driver: DriverFile, Path: "x.json"}},
		{name: "file without path", cfg: Config{Driver: DriverFile}, wantErr: ErrMissingPath},
		{name: "sqlite without path", cfg: Config{Driver: DriverSQLite}, wantErr: ErrMissingPath},
		{name: "unknown", cfg: Config{Driver: "s3"}, wantErr: ErrUnknownDriver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := (Config{Driver: DriverRedis}).Validate(); err == nil {
		t.Error("Validate() redis without addr: error = nil")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("none", func(t *testing.T) {
		b, err := Open(ctx, Config{Driver: DriverNone})
		if err != nil || b != nil {
			t.Errorf("Open() = %v, %v; want nil, nil", b, err)
		}
	})

	t.Run("file", func(t *testing.T) {
		b, err := Open(ctx, Config{Driver: DriverFile, Path: filepath.Join(dir, "c.json")})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if _, ok := b.(*FileStore); !ok {
			t.Errorf("Open() = %T, want *FileStore", b)
		}
	})

	t.Run("sqlite guarded", func(t *testing.T) {
		b, err := Open(ctx, Config{
			Driver: DriverSQLite,
			Path:   filepath.Join(dir, "c.db"),
			Guard:  GuardConfig{Enabled: true},
		})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer b.Close()

		g, ok := b.(*Guard)
		if !ok {
			t.Fatalf("Open() = %T, want *Guard", b)
		}
		if g.Name() != DriverSQLite {
			t.Errorf("Name() = %q, want %q", g.Name(), DriverSQLite)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := Open(ctx, Config{Driver: "tape"}); !errors.Is(err, ErrUnknownDriver) {
			t.Errorf("Open() error = %v, want ErrUnknownDriver", err)
		}
	})
}
