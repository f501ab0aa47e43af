package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"neuroflow/internal/quota"
	"neuroflow/internal/ux"
)

// quotaCmd groups allowance subcommands
var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show or change the monthly breakdown allowance",
	RunE:  runQuotaStatus,
}

var quotaUpgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Switch to the premium allowance",
	Long: `Raises the monthly allowance to the premium limit, effective
immediately. Already-used requests this month still count; the reset
date does not move.`,
	RunE: runQuotaUpgrade,
}

func init() {
	quotaCmd.AddCommand(quotaUpgradeCmd)
}

func runQuotaStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	// Lazy rollover so a stale record shows the fresh month.
	if err := a.quota.ResetIfDue(ctx, userID, time.Now()); err != nil {
		fmt.Println(ux.Message(err))
		return err
	}

	rec, err := a.store.GetQuota(ctx, userID)
	if err != nil {
		fmt.Println(ux.Message(err))
		return err
	}

	fmt.Printf("Plan:       %s\n", rec.Tier)
	fmt.Printf("This month: %d of %d used, %d left\n", rec.Used, rec.Limit, rec.Remaining())
	fmt.Printf("Renews:     %s\n", rec.ResetAt.Format("Jan 2, 2006"))
	if quota.StateOf(rec) == quota.StateExhausted {
		fmt.Println("\nYou can still break tasks down with the built-in planner until then.")
	}
	return nil
}

func runQuotaUpgrade(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.quota.Upgrade(ctx, userID, a.cfg.LimitForTier("premium")); err != nil {
		fmt.Println(ux.Message(err))
		return err
	}
	rec, err := a.store.GetQuota(ctx, userID)
	if err != nil {
		fmt.Println(ux.Message(err))
		return err
	}
	fmt.Printf("Upgraded. %d requests available this month.\n", rec.Remaining())
	return nil
}
