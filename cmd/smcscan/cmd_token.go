package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"smc-signal-engine/internal/auth"
)

func newTokenCmd(opts *options) *cobra.Command {
	var subject, role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for the guarded API routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.AuthConfig.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not set")
			}
			if role != auth.RoleOperator && role != auth.RoleViewer {
				return fmt.Errorf("role must be %s or %s", auth.RoleOperator, auth.RoleViewer)
			}

			m, err := auth.NewJWTManager(cfg.AuthConfig.JWTSecret, cfg.AuthConfig.Issuer, cfg.AuthConfig.AccessTokenDuration)
			if err != nil {
				return err
			}
			token, err := m.GenerateAccessToken(subject, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "operator", "Token subject")
	cmd.Flags().StringVar(&role, "role", auth.RoleOperator, "Token role (operator, viewer)")
	return cmd
}
