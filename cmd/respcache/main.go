// Command respcache runs the caching reverse proxy and manages persisted
// cache state offline.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/respcache/cache"
	"github.com/jonwraymond/respcache/config"
	"github.com/jonwraymond/respcache/observe"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "respcache",
		Short:         "respcache: response cache and caching reverse proxy",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "respcache.yaml", "path to config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newStatsCmd(&configPath),
		newListCmd(&configPath),
		newExportCmd(&configPath),
		newClearCmd(&configPath),
		newDeleteCmd(&configPath),
		newResetStatsCmd(&configPath),
		newTokenCmd(&configPath),
	)
	return root
}

// loadConfig reads the config file. A missing file at the default path
// falls back to the built-in defaults.
func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	cfg, err := config.Load(cmd.Context(), path)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg = config.Default()
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newInterceptor(ctx context.Context, cfg *config.Config, p cache.Persister, debounce time.Duration, mw *observe.Middleware) (*cache.Interceptor, error) {
	policy, err := cfg.Cache.Policy()
	if err != nil {
		return nil, err
	}
	keyer, err := cfg.Cache.Keyer()
	if err != nil {
		return nil, err
	}
	return cache.NewInterceptor(ctx, cache.InterceptorConfig{
		Policy:          policy,
		Keyer:           keyer,
		Persister:       p,
		PersistDebounce: debounce,
		Disabled:        !cfg.Cache.Enabled,
		Middleware:      mw,
	})
}
