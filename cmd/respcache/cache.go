package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/respcache/cache"
	"github.com/jonwraymond/respcache/config"
	"github.com/jonwraymond/respcache/persist"
)

// readOnly drops writes so inspection commands never rewrite the store.
type readOnly struct{ cache.Persister }

func (readOnly) Save(context.Context, *cache.State) error { return nil }

// openCache restores an Interceptor from the configured backend. The
// returned close func saves the final state unless readonly is set.
func openCache(ctx context.Context, cfg *config.Config, readonly bool) (*cache.Interceptor, func() error, error) {
	backend, err := persist.Open(ctx, cfg.Persistence)
	if err != nil {
		return nil, nil, fmt.Errorf("open persistence: %w", err)
	}
	if backend == nil {
		return nil, nil, errors.New("persistence driver is none: there is no stored cache")
	}

	var p cache.Persister = backend
	if readonly {
		p = readOnly{backend}
	}
	c, err := newInterceptor(ctx, cfg, p, 0, nil)
	if err != nil {
		_ = backend.Close()
		return nil, nil, err
	}
	closeFn := func() error {
		return errors.Join(c.Close(context.WithoutCancel(ctx)), backend.Close())
	}
	return c, closeFn, nil
}

// withCache loads the config, opens the cache, runs fn, and closes.
func withCache(cmd *cobra.Command, configPath string, readonly bool, fn func(*cache.Interceptor, io.Writer) error) (err error) {
	cfg, err := loadConfig(cmd, configPath)
	if err != nil {
		return err
	}
	c, closeFn, err := openCache(cmd.Context(), cfg, readonly)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeFn()) }()
	return fn(c, cmd.OutOrStdout())
}

func newStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, *configPath, true, func(c *cache.Interceptor, out io.Writer) error {
				st := c.Stats()
				p := c.Policy()

				var size int
				var oldest time.Time
				for _, e := range c.ListEntries() {
					size += e.Size
					if oldest.IsZero() || e.Timestamp.Before(oldest) {
						oldest = e.Timestamp
					}
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "Entries:\t%d / %d\n", c.Len(), p.MaxEntries)
				fmt.Fprintf(w, "Size:\t%s\n", humanize.Bytes(uint64(size)))
				fmt.Fprintf(w, "Hits:\t%d\n", st.Hits)
				fmt.Fprintf(w, "Misses:\t%d\n", st.Misses)
				fmt.Fprintf(w, "Hit rate:\t%.1f%%\n", st.HitRate)
				fmt.Fprintf(w, "Max age:\t%s\n", p.MaxAge)
				fmt.Fprintf(w, "Eviction:\t%s\n", p.Eviction)
				if !oldest.IsZero() {
					fmt.Fprintf(w, "Oldest:\t%s\n", humanize.Time(oldest))
				}
				return w.Flush()
			})
		},
	}
}

func newListCmd(configPath *string) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached entries, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, *configPath, true, func(c *cache.Interceptor, out io.Writer) error {
				entries := c.ListEntries()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No cache entries.")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "KEY\tQUERY\tSIZE\tHITS\tCREATED")
				for _, e := range entries {
					key, query := e.Key, e.Query
					if !full {
						key = truncate(key, 16)
						query = truncate(query, 60)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
						key, query, humanize.Bytes(uint64(e.Size)), e.Hits, humanize.Time(e.Timestamp))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "show full keys and queries")
	return cmd
}

func newExportCmd(configPath *string) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export entries and counters as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, *configPath, true, func(c *cache.Interceptor, out io.Writer) error {
				data, err := json.MarshalIndent(c.ExportSnapshot(), "", "  ")
				if err != nil {
					return err
				}
				data = append(data, '\n')
				if output == "" || output == "-" {
					_, err = out.Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o600); err != nil {
					return err
				}
				fmt.Fprintf(out, "Exported %d entries to %s\n", c.Len(), output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newClearCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached entry (counters are kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, *configPath, false, func(c *cache.Interceptor, out io.Writer) error {
				n := c.Clear(cmd.Context())
				fmt.Fprintf(out, "Cleared %d entries.\n", n)
				return nil
			})
		},
	}
}

func newDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete KEY",
		Short: "Remove one cached entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, *configPath, false, func(c *cache.Interceptor, out io.Writer) error {
				deleted, err := c.DeleteEntry(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("no entry with key %q", args[0])
				}
				fmt.Fprintf(out, "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newResetStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stats",
		Short: "Zero the hit and miss counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, *configPath, false, func(c *cache.Interceptor, out io.Writer) error {
				c.ResetStats(cmd.Context())
				fmt.Fprintln(out, "Hit and miss counters reset.")
				return nil
			})
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
