package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/brain-access/internal/lifecycle"
)

func maintainCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Run maintenance (prune old upload counters, remind approvers of stale requests)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("maintain: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			n, closeNotifier, err := newNotifier(logger)
			if err != nil {
				return fmt.Errorf("maintain: connecting notifier: %w", err)
			}
			defer func() { _ = closeNotifier() }()

			turnaround := time.Duration(cfg.BrainAccess.TurnaroundHours) * time.Hour
			report, err := lifecycle.NewManager(st, n, turnaround, logger).Run(ctx, dryRun)
			if err != nil {
				return fmt.Errorf("maintain: %w", err)
			}

			fmt.Printf("Maintenance report:\n")
			fmt.Printf("  Upload periods pruned: %d\n", report.PrunedPeriods)
			fmt.Printf("  Stale requests:        %d\n", report.StaleRequests)
			fmt.Printf("  Approvers reminded:    %d\n", report.Reminded)
			if dryRun {
				fmt.Println("  (dry run, no changes applied)")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview changes without applying")
	return cmd
}
