package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"spedflow/internal/config"
	"spedflow/internal/domain"
	"spedflow/internal/service"
)

func newTokenCmd() *cobra.Command {
	var (
		flags   companyFlags
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for a company",
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := flags.companyID()
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("failed to load config: %w", err))
			}
			token, err := service.NewTokenService(cfg.JWT).IssueToken(subject, companyID, domain.Role(role), ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	flags.register(cmd, false)
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject, usually the operator e-mail (required)")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleOperator), "Role: operator|viewer")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
