package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"spedflow/internal/app"
	"spedflow/internal/domain"
)

type commandOutput struct {
	Command    string `json:"command"`
	DurationMS int64  `json:"duration_ms"`
	Result     any    `json:"result"`
}

func emit(command string, start time.Time, result any) error {
	return writeJSON(commandOutput{
		Command:    command,
		DurationMS: time.Since(start).Milliseconds(),
		Result:     result,
	})
}

func newImportCmd() *cobra.Command {
	var (
		flags companyFlags
		force bool
	)

	cmd := &cobra.Command{
		Use:   "import FILE [FILE...]",
		Short: "Import SPED EFD files (local paths or s3://bucket/key) as one run",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := flags.companyID()
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app.App) error {
				start := time.Now()
				res := a.Pipeline.ImportFiles(cmd.Context(), companyID, args, force)
				if err := emit("import", start, res); err != nil {
					return err
				}
				return importExit(res)
			})
		},
	}

	flags.register(cmd, false)
	cmd.Flags().BoolVar(&force, "force", false, "Deactivate rows of an already imported period before inserting")
	return cmd
}

func importExit(res domain.ImportResult) error {
	switch res.Status {
	case domain.ImportStatusOK:
		return nil
	case domain.ImportStatusConflict:
		return withCode(exitConflict, errors.New(res.Message))
	default:
		return withCode(exitValidation, errors.New(res.Message))
	}
}

func newRestoreCmd() *cobra.Command {
	var (
		flags  companyFlags
		period string
		runID  string
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Reactivate the rows of a previously replaced import run",
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := flags.companyID()
			if err != nil {
				return err
			}
			rid, err := uuid.Parse(runID)
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("invalid --run: %w", err))
			}
			return withApp(cmd, func(a *app.App) error {
				start := time.Now()
				n, err := a.Pipeline.RestoreRun(cmd.Context(), companyID, period, rid)
				if err != nil {
					return err
				}
				return emit("restore", start, map[string]any{"period": period, "run_id": rid, "restored": n})
			})
		},
	}

	flags.register(cmd, false)
	cmd.Flags().StringVar(&period, "period", "", "Period MM/YYYY (required)")
	cmd.Flags().StringVar(&runID, "run", "", "Run UUID to restore (required)")
	_ = cmd.MarkFlagRequired("period")
	_ = cmd.MarkFlagRequired("run")
	return cmd
}

func newPrepareCmd() *cobra.Command {
	var flags companyFlags

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Enrich suppliers and list catalog entries still missing a rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := flags.companyID()
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app.App) error {
				start := time.Now()
				res := a.Pipeline.Prepare(cmd.Context(), companyID, flags.periods)
				if err := emit("prepare", start, res); err != nil {
					return err
				}
				return prepareExit(res)
			})
		},
	}

	flags.register(cmd, true)
	return cmd
}

func prepareExit(res domain.PrepareResult) error {
	switch res.Status {
	case domain.PrepareStatusReadyToFinalize:
		return nil
	case domain.PrepareStatusNeedsInput:
		return withCode(exitNeedsInput, fmt.Errorf("%d catalog entries need a rate", len(res.PendingItems)))
	default:
		return withCode(exitFailure, errors.New(res.Message))
	}
}

func newFinalizeCmd() *cobra.Command {
	var flags companyFlags

	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Rebuild the working ledger and resolve rates and results",
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := flags.companyID()
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app.App) error {
				start := time.Now()
				res := a.Pipeline.Finalize(cmd.Context(), companyID, flags.periods)
				if err := emit("finalize", start, res); err != nil {
					return err
				}
				if res.Status != domain.FinalizeStatusOK {
					return withCode(exitFailure, errors.New(res.Message))
				}
				return nil
			})
		},
	}

	flags.register(cmd, true)
	return cmd
}
