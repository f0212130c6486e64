package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"spedflow/internal/app"
	"spedflow/internal/csvexport"
	"spedflow/internal/domain"
	"spedflow/internal/service"
)

func newPendingCmd() *cobra.Command {
	var (
		flags  companyFlags
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List catalog entries waiting for a rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := flags.companyID()
			if err != nil {
				return err
			}
			if format != "json" && format != "csv" {
				return withCode(exitUsage, fmt.Errorf("invalid --format %q (json|csv)", format))
			}
			return withApp(cmd, func(a *app.App) error {
				start := time.Now()
				items, err := a.Pipeline.PendingRates(cmd.Context(), companyID, flags.periods)
				if err != nil {
					return err
				}
				if format == "json" {
					return emit("pending", start, map[string]any{"pending_items": items, "total": len(items)})
				}
				return writePendingCSV(out, items)
			})
		},
	}

	flags.register(cmd, true)
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json|csv")
	cmd.Flags().StringVar(&out, "out", "", "Write CSV to this file instead of stdout")
	return cmd
}

func writePendingCSV(path string, items []domain.PendingItem) error {
	if path == "" {
		return renderPendingCSV(os.Stdout, items)
	}
	f, err := os.Create(path)
	if err != nil {
		return withCode(exitFailure, fmt.Errorf("create %s: %w", path, err))
	}
	if err := renderPendingCSV(f, items); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func renderPendingCSV(w io.Writer, items []domain.PendingItem) error {
	if _, err := w.Write(csvexport.BOM); err != nil {
		return err
	}
	cw := csvexport.NewWriter(w)
	if err := cw.WritePending(items); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func newSetRateCmd() *cobra.Command {
	var (
		flags  companyFlags
		legacy bool
	)

	cmd := &cobra.Command{
		Use:   "set-rate ENTRY_ID RATE",
		Short: `Set the rate of a catalog entry (percentage, ST, ISENTO, PAUTA or "" to clear)`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := flags.companyID()
			if err != nil {
				return err
			}
			entryID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || entryID <= 0 {
				return withCode(exitUsage, fmt.Errorf("invalid entry id %q", args[0]))
			}
			return withApp(cmd, func(a *app.App) error {
				start := time.Now()
				entry, err := a.Catalog.SetRate(cmd.Context(), &service.SetRateInput{
					CompanyID: companyID,
					EntryID:   entryID,
					Value:     args[1],
					Legacy:    legacy,
				})
				if err != nil {
					return err
				}
				return emit("set-rate", start, entry)
			})
		},
	}

	flags.register(cmd, false)
	cmd.Flags().BoolVar(&legacy, "legacy", false, "Write the rate used by periods before the rate change")
	return cmd
}
