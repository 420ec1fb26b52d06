package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/respcache/auth"
)

func newTokenCmd(configPath *string) *cobra.Command {
	var (
		principal string
		roles     []string
		ttl       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an admin API token with the configured JWT secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *configPath)
			if err != nil {
				return err
			}
			if cfg.Admin.JWTSecret == "" {
				return errors.New("admin.jwt_secret is not configured")
			}
			for _, r := range roles {
				if r != auth.RoleRead && r != auth.RoleAdmin {
					return fmt.Errorf("unknown role %q", r)
				}
			}

			token, err := auth.SignToken([]byte(cfg.Admin.JWTSecret), cfg.Admin.JWTIssuer, principal, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&principal, "principal", "admin", "token subject")
	cmd.Flags().StringSliceVar(&roles, "role", []string{auth.RoleRead}, "granted roles (cache.read, cache.admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
