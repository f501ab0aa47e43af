package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"neuroflow/internal/types"
	"neuroflow/internal/ux"
)

var breakdownOffline bool

// breakdownCmd requests an adaptive breakdown for a task
var breakdownCmd = &cobra.Command{
	Use:   "breakdown [task-id]",
	Short: "Break a task into small, state-appropriate steps",
	Long: `Requests an AI breakdown of the task, tuned to your latest check-in.
Each request draws on the monthly allowance; if the AI is unreachable the
app builds a simple local breakdown instead, at no cost to the allowance.

With --offline the request is queued and replayed on the next sync.`,
	Args: cobra.ExactArgs(1),
	RunE: runBreakdown,
}

func init() {
	breakdownCmd.Flags().BoolVar(&breakdownOffline, "offline", false, "Queue the request for the next sync")
}

func runBreakdown(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	task, err := a.store.GetTask(ctx, userID, args[0])
	if err != nil {
		fmt.Println(ux.Message(err))
		return err
	}

	state, err := a.store.GetCurrentState(ctx, userID)
	if err != nil {
		fmt.Println(ux.Message(err))
		return err
	}

	if breakdownOffline {
		req := types.BreakdownRequest{
			TaskID:   task.ID,
			UserID:   userID,
			State:    state,
			QueuedAt: time.Now(),
		}
		if err := a.cache.QueueWrite(types.EntityBreakdownRequest, "breakdown_request:"+task.ID, req, time.Time{}); err != nil {
			fmt.Println(ux.Message(err))
			return err
		}
		fmt.Printf("Queued a breakdown of %q for the next sync\n", task.Title)
		return nil
	}

	res, err := a.orchestrator.RequestBreakdown(ctx, task, state)
	if err != nil {
		fmt.Println(ux.Message(err))
		return err
	}
	if res.Denied {
		fmt.Println(ux.Message(&types.QuotaExceededError{Tier: res.Tier, Remaining: res.Remaining}))
		return nil
	}

	if err := a.store.SaveTask(ctx, task); err != nil {
		fmt.Println(ux.Message(err))
		return err
	}
	logger.Info("breakdown attached",
		zap.String("task", task.ID),
		zap.String("source", string(res.Breakdown.Source)))

	printBreakdown(task.Title, res.Breakdown)
	return nil
}

func printBreakdown(title string, b *types.Breakdown) {
	fmt.Printf("%q in %d steps (about %d minutes):\n", title, len(b.Steps), b.TotalMinutes)
	for i, s := range b.Steps {
		fmt.Printf("  %d. %s (%d min)\n", i+1, s.Title, s.Minutes)
	}
	if b.Encouragement != "" {
		fmt.Printf("\n%s\n", b.Encouragement)
	}
}
