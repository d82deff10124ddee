package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/brain-access/internal/catalog"
	"github.com/ajitpratap0/brain-access/internal/quota"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Inspect and update stored user records",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <user-id>",
		Short: "Print a user's stored record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("user show: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			rec, err := st.GetUser(ctx, args[0])
			if err != nil {
				return fmt.Errorf("user show: %w", err)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-plan <user-id> <plan>",
		Short: "Set a user's subscription plan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, ok := catalog.ParsePlan(args[1])
			if !ok {
				return fmt.Errorf("user set-plan: unknown plan %q", args[1])
			}
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("user set-plan: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			if err := st.SetUserPlan(ctx, args[0], plan); err != nil {
				return fmt.Errorf("user set-plan: %w", err)
			}
			fmt.Printf("%s is now on %s\n", args[0], plan)
			return nil
		},
	})

	return cmd
}

func quotaCmd() *cobra.Command {
	var record bool
	cmd := &cobra.Command{
		Use:   "quota <user-id>",
		Short: "Show a user's upload quota, optionally recording one upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("quota: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			checker := newChecker(st, logger)
			var d *quota.Decision
			if record {
				d, err = checker.Record(ctx, args[0])
			} else {
				d, err = checker.Check(ctx, args[0])
			}

			fmt.Printf("Plan:      %s\n", d.Plan)
			fmt.Printf("Used:      %d\n", d.Used)
			fmt.Printf("Limit:     %s\n", d.Limit)
			fmt.Printf("Remaining: %s\n", d.Remaining)
			fmt.Printf("Allowed:   %t\n", d.Allowed)
			if d.Degraded {
				fmt.Println("Warning: decision based on fallback state")
			}

			switch {
			case errors.Is(err, quota.ErrQuotaExceeded):
				return fmt.Errorf("quota: %w", err)
			case err != nil && !d.Recorded && record:
				return fmt.Errorf("quota: %w", err)
			case err != nil:
				logger.Warn("quota: degraded", "error", err)
			}
			if record && d.Recorded {
				fmt.Println("Upload recorded.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&record, "record", false, "record one upload if the quota allows it")
	return cmd
}
