package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/brain-access/internal/catalog"
	"github.com/ajitpratap0/brain-access/internal/entitlement"
	"github.com/ajitpratap0/brain-access/internal/sharing"
)

func plansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List subscription plans in rank order",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("%-4s %-12s %-12s %-12s %s\n", "RANK", "PLAN", "UPLOADS", "QUERIES", "FEATURES")
			for _, p := range catalog.Plans() {
				fmt.Printf("%-4d %-12s %-12s %-12s %d\n",
					p.Rank,
					p.Plan,
					p.UploadQuota.String()+"/"+string(p.UploadPeriod),
					p.QueryQuota.String()+"/"+string(p.QueryPeriod),
					len(catalog.FeaturesFor(p.Plan)),
				)
			}
			return nil
		},
	}
}

func featuresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "List features with the lowest plan that grants each",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("%-24s %-12s %s\n", "FEATURE", "REQUIRES", "NAME")
			for _, f := range catalog.Features() {
				fmt.Printf("%-24s %-12s %s\n", f.Feature, f.RequiredPlan, f.Name)
			}
			return nil
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <plan> <feature>",
		Short: "Check whether a plan grants a feature",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := entitlement.NewEngine()
			plan, feature := args[0], args[1]
			if e.HasFeatureAccess(plan, feature) {
				fmt.Printf("%s: granted on %s\n", feature, plan)
				return nil
			}
			p, ok := e.UpgradePrompt(plan, feature)
			if !ok {
				fmt.Printf("%s: denied on %s (no plan grants it)\n", feature, plan)
				return nil
			}
			fmt.Printf("%s: denied on %s; requires %s\n", feature, plan, p.RequiredPlan.DisplayName)
			fmt.Printf("Upgrading to %s also unlocks:\n", p.RequiredPlan.DisplayName)
			for _, u := range p.Unlocks {
				fmt.Printf("  - %s\n", u.Name)
			}
			return nil
		},
	}
}

func upgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade <from> <to>",
		Short: "List the features gained by moving between plans",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gained := entitlement.NewEngine().UpgradeFeatures(args[0], args[1])
			if len(gained) == 0 {
				fmt.Println("No new features.")
				return nil
			}
			for _, f := range gained {
				info, _ := catalog.Feature(f)
				fmt.Printf("  + %-24s %s\n", f, info.Name)
			}
			return nil
		},
	}
}

func sharingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sharing <plan>",
		Short: "Show the sharing destinations a plan may use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := sharing.ForPlan(args[0])
			names := make([]string, 0, 4)
			for _, d := range opts.Destinations() {
				names = append(names, string(d))
			}
			fmt.Printf("Destinations: %s\n", strings.Join(names, ", "))
			if forced, ok := opts.ForcedDestination(); ok {
				fmt.Printf("Forced: %s (cannot be deselected)\n", forced)
			}
			return nil
		},
	}
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Catalog maintenance commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the plan and feature tables for consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := catalog.Validate(); err != nil {
				return fmt.Errorf("catalog validate: %w", err)
			}
			fmt.Println("Catalog: OK")
			return nil
		},
	})
	return cmd
}
