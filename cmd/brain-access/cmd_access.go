package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/brain-access/internal/brainaccess"
	"github.com/ajitpratap0/brain-access/internal/models"
)

// withWorkflow opens the store and notifier, runs fn, and waits for any
// notification it started before closing them.
func withWorkflow(cmd *cobra.Command, name string, fn func(wf *brainaccess.Workflow) error) error {
	logger := newLogger()
	ctx := cmd.Context()

	st, err := newStore(ctx, logger)
	if err != nil {
		return fmt.Errorf("%s: connecting to store: %w", name, err)
	}
	defer func() { _ = st.Close() }()

	n, closeNotifier, err := newNotifier(logger)
	if err != nil {
		return fmt.Errorf("%s: connecting notifier: %w", name, err)
	}
	defer func() { _ = closeNotifier() }()

	wf := newWorkflow(st, n, logger)
	defer wf.Wait()
	return fn(wf)
}

func accessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Brain access request workflow",
	}
	cmd.AddCommand(accessStatusCmd(), accessRequestCmd(), accessApproveCmd(), accessRejectCmd())
	return cmd
}

func accessStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <user-id>",
		Short: "Show a user's Brain access status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkflow(cmd, "access status", func(wf *brainaccess.Workflow) error {
				rec, err := wf.GetStatus(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("access status: %w", err)
				}
				printBrainAccess(rec)
				return nil
			})
		},
	}
}

func accessRequestCmd() *cobra.Command {
	var name, email, org string
	cmd := &cobra.Command{
		Use:   "request <user-id>",
		Short: "Request Brain provisioning for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || email == "" {
				return fmt.Errorf("access request: --name and --email are required")
			}
			return withWorkflow(cmd, "access request", func(wf *brainaccess.Workflow) error {
				res, err := wf.RequestAccess(cmd.Context(), args[0], models.RequesterInfo{
					Name:         name,
					Email:        email,
					Organization: org,
				})
				var already *brainaccess.AlreadyRequestedError
				if errors.As(err, &already) {
					fmt.Printf("Brain access is already %s for %s.\n", already.Status, args[0])
					return nil
				}
				if err != nil {
					return fmt.Errorf("access request: %w", err)
				}
				fmt.Printf("Requested (id %s). Expect a decision within about %s.\n",
					res.Request.RequestID, res.EstimatedTurnaround.Round(time.Hour))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "requester name")
	cmd.Flags().StringVar(&email, "email", "", "requester email")
	cmd.Flags().StringVar(&org, "org", "", "requester organization")
	return cmd
}

func accessApproveCmd() *cobra.Command {
	var approver, notes string
	cmd := &cobra.Command{
		Use:   "approve <user-id>",
		Short: "Approve a pending Brain access request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkflow(cmd, "access approve", func(wf *brainaccess.Workflow) error {
				rec, err := wf.Approve(cmd.Context(), args[0], approver, notes)
				if err != nil {
					return fmt.Errorf("access approve: %w", err)
				}
				printBrainAccess(rec)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&approver, "approver", "", "approver id")
	cmd.Flags().StringVar(&notes, "notes", "", "notes for the user")
	return cmd
}

func accessRejectCmd() *cobra.Command {
	var approver, reason string
	cmd := &cobra.Command{
		Use:   "reject <user-id>",
		Short: "Reject a pending Brain access request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkflow(cmd, "access reject", func(wf *brainaccess.Workflow) error {
				rec, err := wf.Reject(cmd.Context(), args[0], approver, reason)
				if err != nil {
					return fmt.Errorf("access reject: %w", err)
				}
				printBrainAccess(rec)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&approver, "approver", "", "approver id")
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason (required)")
	return cmd
}

func printBrainAccess(rec *models.BrainAccessRequest) {
	fmt.Printf("User:   %s\n", rec.UserID)
	fmt.Printf("Status: %s\n", rec.Status)
	if !rec.RequestedAt.IsZero() {
		fmt.Printf("Requested: %s\n", rec.RequestedAt.Format(time.RFC3339))
	}
	if !rec.ApprovedAt.IsZero() {
		fmt.Printf("Approved:  %s by %s\n", rec.ApprovedAt.Format(time.RFC3339), rec.ApproverID)
	}
	if !rec.RejectedAt.IsZero() {
		fmt.Printf("Rejected:  %s by %s: %s\n", rec.RejectedAt.Format(time.RFC3339), rec.ApproverID, rec.RejectionReason)
	}
}
