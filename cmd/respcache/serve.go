package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/respcache/admin"
	"github.com/jonwraymond/respcache/auth"
	"github.com/jonwraymond/respcache/cache"
	"github.com/jonwraymond/respcache/config"
	"github.com/jonwraymond/respcache/health"
	"github.com/jonwraymond/respcache/httpcache"
	"github.com/jonwraymond/respcache/observe"
	"github.com/jonwraymond/respcache/persist"
	"github.com/jonwraymond/respcache/proxy"
	"github.com/jonwraymond/respcache/resilience"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	var upstream, listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the caching reverse proxy and the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *configPath)
			if err != nil {
				return err
			}
			if upstream != "" {
				cfg.Upstream = upstream
			}
			if listen != "" {
				cfg.Listen = listen
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&upstream, "upstream", "", "upstream base URL (overrides config)")
	cmd.Flags().StringVar(&listen, "listen", "", "proxy listen address (overrides config)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	if cfg.Upstream == "" {
		return errors.New("serve: upstream is required")
	}
	target, err := url.Parse(cfg.Upstream)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = obs.Shutdown(shutCtx)
	}()
	logger := obs.Logger()

	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	var (
		persister cache.Persister
		breaker   *resilience.CircuitBreaker
	)
	backend, err := persist.Open(ctx, cfg.Persistence)
	switch {
	case err != nil:
		logger.Warn(ctx, "persistence unavailable; cache is memory only",
			observe.F("driver", cfg.Persistence.Driver),
			observe.F("error", err),
		)
	case backend != nil:
		defer func() { _ = backend.Close() }()
		persister = backend
		if g, ok := backend.(*persist.Guard); ok {
			breaker = g.Breaker()
		}
		logger.Info(ctx, "persistence ready", observe.F("driver", backend.Name()))
	}

	c, err := newInterceptor(ctx, cfg, persister, cfg.Cache.PersistDebounce, mw)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := c.Close(closeCtx); err != nil {
			logger.Warn(closeCtx, "final cache persist failed", observe.F("error", err))
		}
	}()

	if err := observe.RegisterEntriesGauge(obs.Meter(), func() int64 { return int64(c.Len()) }); err != nil {
		return fmt.Errorf("register entries gauge: %w", err)
	}

	transport := httpcache.NewTransport(nil, c, cfg.Cache.Methods...)
	transport.KeyHeaders = cfg.Cache.KeyHeaders

	px, err := proxy.New(proxy.Config{
		Listen:    cfg.Listen,
		Upstream:  target,
		Transport: transport,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	agg := health.NewAggregator()
	agg.Register(health.NewCacheChecker(c, breaker))

	authn := cfg.Admin.Authenticator()
	if authn == nil && !isLoopback(cfg.AdminListen) {
		logger.Warn(ctx, "admin API has no credentials and is not bound to loopback",
			observe.F("addr", cfg.AdminListen))
	}

	adminMux := http.NewServeMux()
	admin.NewHandler(c, auth.NewMiddleware(authn), logger).Register(adminMux)
	health.RegisterHandlers(adminMux, agg)
	if cfg.Observe.Metrics.Enabled && cfg.Observe.Metrics.Exporter == "prometheus" {
		adminMux.Handle("GET /metrics", promhttp.Handler())
	}

	logger.Info(ctx, "respcache starting",
		observe.F("version", version),
		observe.F("upstream", target.String()),
		observe.F("cache_enabled", c.Enabled()),
		observe.F("entries", c.Len()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return px.ListenAndServe(gctx) })
	g.Go(func() error { return proxy.ListenAndServe(gctx, cfg.AdminListen, adminMux, logger) })
	return g.Wait()
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
