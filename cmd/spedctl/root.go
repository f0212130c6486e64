package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"spedflow/internal/app"
	"spedflow/internal/config"
	"spedflow/internal/observability"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "spedctl",
		Short:         "SPED EFD import and ICMS rate resolution tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newRestoreCmd())
	cmd.AddCommand(newPrepareCmd())
	cmd.AddCommand(newFinalizeCmd())
	cmd.AddCommand(newPendingCmd())
	cmd.AddCommand(newSetRateCmd())
	cmd.AddCommand(newLedgerCmd())
	cmd.AddCommand(newTokenCmd())
	return cmd
}

// Execute runs the root command and exits with the mapped status code.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}

// companyFlags holds the flags shared by every company-scoped command.
type companyFlags struct {
	company string
	periods []string
}

func (f *companyFlags) register(cmd *cobra.Command, withPeriods bool) {
	cmd.Flags().StringVar(&f.company, "company", "", "Company UUID (required)")
	_ = cmd.MarkFlagRequired("company")
	if withPeriods {
		cmd.Flags().StringSliceVar(&f.periods, "period", nil, "Period MM/YYYY; repeatable (default: all active periods)")
	}
}

func (f *companyFlags) companyID() (uuid.UUID, error) {
	id, err := uuid.Parse(f.company)
	if err != nil {
		return uuid.Nil, withCode(exitUsage, fmt.Errorf("invalid --company: %w", err))
	}
	return id, nil
}

// withApp loads configuration, wires the services and hands them to fn.
func withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("failed to load config: %w", err))
	}
	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("failed to build logger: %w", err))
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(cmd.Context(), cfg, logger.With(zap.String("cmd", cmd.Name())))
	if err != nil {
		return withCode(exitDB, err)
	}
	defer a.Close(cmd.Context())
	return fn(a)
}
