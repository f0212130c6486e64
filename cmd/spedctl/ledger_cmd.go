package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"spedflow/internal/app"
	"spedflow/internal/csvexport"
	"spedflow/internal/domain"
)

func newLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Working ledger tools",
	}
	cmd.AddCommand(newLedgerExportCmd())
	return cmd
}

func newLedgerExportCmd() *cobra.Command {
	var (
		flags companyFlags
		out   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the finalized working ledger as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := flags.companyID()
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app.App) error {
				lines, err := a.Pipeline.WorkingLedger(cmd.Context(), companyID, flags.periods)
				if err != nil {
					return err
				}
				if out == "" {
					return renderLedgerCSV(os.Stdout, lines)
				}
				f, err := os.Create(out)
				if err != nil {
					return withCode(exitFailure, fmt.Errorf("create %s: %w", out, err))
				}
				if err := renderLedgerCSV(f, lines); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			})
		},
	}

	flags.register(cmd, true)
	cmd.Flags().StringVar(&out, "out", "", "Write CSV to this file instead of stdout")
	return cmd
}

func renderLedgerCSV(w io.Writer, lines []domain.WorkingLedgerLine) error {
	if _, err := w.Write(csvexport.BOM); err != nil {
		return err
	}
	cw := csvexport.NewWriter(w)
	if err := cw.WriteLedger(lines); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
