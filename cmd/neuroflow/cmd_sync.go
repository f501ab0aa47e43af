package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	synci "neuroflow/internal/sync"
)

var syncWatch bool

// syncCmd reconciles queued offline work with the store
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile queued offline changes",
	Long: `Pushes queued offline edits, replays queued breakdown requests through
the real allowance check, and refreshes cached figures from the store.
Conflicting task edits keep the server copy; your version is retained
for review.

With --watch the command keeps running and reconciles whenever the local
cache changes.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncWatch, "watch", false, "Keep watching the cache and reconcile on change")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	// Roll over any quota periods that lapsed while the app was closed.
	if n, err := a.store.ResetExpiredQuotas(ctx, time.Now()); err != nil {
		logger.Warn("quota rollover failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("quota periods rolled over", zap.Int("count", n))
	}

	if err := reconcileOnce(ctx, a); err != nil {
		return err
	}
	if !syncWatch {
		return nil
	}

	watcher, err := synci.NewCacheWatcher(a.cache.Dir(), a.cfg.GetSyncDebounce(), func() {
		if err := reconcileOnce(ctx, a); err != nil {
			logger.Warn("reconcile failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	fmt.Println("Watching for changes. Ctrl-C to stop.")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		logger.Info("shutting down")
	case <-ctx.Done():
	}
	return nil
}

func reconcileOnce(ctx context.Context, a *app) error {
	res, err := a.reconciler.ReconcilePending(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Sync: %d applied, %d replayed, %d dropped, %d conflicts\n",
		res.Applied, res.Replayed, res.Discarded, len(res.Conflicts))
	for _, c := range res.Conflicts {
		fmt.Printf("  kept the newer copy of %s; your edit is saved for review\n", c.Key)
	}
	return nil
}
