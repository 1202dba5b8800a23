package main

import (
	"context"
	"fmt"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/worker"
	"github.com/spf13/cobra"
)

func reconcileCmd(configPath *string) *cobra.Command {
	var (
		olderThan string
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Re-verify stale pending donations and resend missed receipts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			a, err := loadApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			age := a.cfg.Reconcile.OlderThan
			if olderThan != "" {
				if age, err = parseDuration(olderThan); err != nil {
					return err
				}
			}
			size := a.cfg.Reconcile.BatchSize
			if batchSize > 0 {
				size = batchSize
			}

			report := worker.NewReconciler(a.repo, a.orchestrator, a.receipts, age, size, a.logger).RunOnce(ctx)

			fmt.Fprintf(cmd.OutOrStdout(),
				"checked=%d completed=%d failed=%d pending=%d verify_errors=%d receipts_sent=%d receipt_errors=%d\n",
				report.Checked, report.Completed, report.Failed, report.StillPending,
				report.VerifyErrors, report.ReceiptsSent, report.ReceiptErrors)
			return nil
		},
	}

	cmd.Flags().StringVar(&olderThan, "older-than", "", "only re-verify donations pending longer than this (default from config)")
	cmd.Flags().IntVarP(&batchSize, "batch", "n", 0, "maximum donations per pass (default from config)")

	return cmd
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid --older-than %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("--older-than must be positive")
	}
	return d, nil
}
