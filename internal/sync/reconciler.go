// Package sync reconciles offline cache entries with server truth once
// connectivity returns. Each entity type carries its own merge policy:
// cognitive states are last-write-wins, tasks are merged with remote
// priority on concurrent edits, and quota records flow strictly one way,
// from the server down. Queued breakdown requests are replayed through the
// live orchestrator so the real reservation path decides them.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"neuroflow/internal/breakdown"
	"neuroflow/internal/cache"
	"neuroflow/internal/logging"
	"neuroflow/internal/types"
)

// fetchConcurrency bounds parallel server reads during the snapshot phase.
const fetchConcurrency = 4

// Server is the authoritative persistence collaborator the reconciler
// merges into. *store.Store satisfies it.
type Server interface {
	GetCurrentState(ctx context.Context, userID string) (*types.CognitiveState, error)
	SaveState(ctx context.Context, state *types.CognitiveState) error
	GetTask(ctx context.Context, userID, taskID string) (*types.Task, error)
	SaveTask(ctx context.Context, task *types.Task) error
	GetQuota(ctx context.Context, userID string) (*types.QuotaRecord, error)
}

// BreakdownRequester replays queued breakdown asks. *breakdown.Orchestrator
// satisfies it; the replay goes through its real quota reservation.
type BreakdownRequester interface {
	RequestBreakdown(ctx context.Context, task *types.Task, state *types.CognitiveState) (*breakdown.Result, error)
}

// Result summarizes one reconciliation pass.
type Result struct {
	Applied   int // local entries pushed to the server
	Discarded int // stale or superseded entries dropped
	Replayed  int // queued breakdown requests executed
	Conflicts []types.Conflict
}

// Reconciler merges pending cache entries with server truth.
type Reconciler struct {
	server     Server
	cache      *cache.Cache
	breakdowns BreakdownRequester
}

// NewReconciler wires the reconciler. breakdowns may be nil when the AI
// path is not configured; queued requests then stay pending.
func NewReconciler(server Server, c *cache.Cache, breakdowns BreakdownRequester) *Reconciler {
	return &Reconciler{server: server, cache: c, breakdowns: breakdowns}
}

// ReconcilePending runs Reconcile over everything the cache still holds as
// pending, oldest first.
func (r *Reconciler) ReconcilePending(ctx context.Context) (*Result, error) {
	return r.Reconcile(ctx, r.cache.Pending())
}

// Reconcile merges the given entries with server truth. Entries are applied
// in local-timestamp order; the server snapshots they are compared against
// are fetched up front in parallel. A server fetch failure aborts the pass
// with every entry left pending, so a flaky reconnect loses nothing.
func (r *Reconciler) Reconcile(ctx context.Context, entries []types.CacheEntry) (*Result, error) {
	res := &Result{}
	if len(entries) == 0 {
		return res, nil
	}

	snap, err := r.fetchSnapshots(ctx, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch server snapshots: %w", err)
	}

	for _, entry := range entries {
		var err error
		switch entry.EntityType {
		case types.EntityState:
			err = r.reconcileState(ctx, entry, snap, res)
		case types.EntityTask:
			err = r.reconcileTask(ctx, entry, snap, res)
		case types.EntityQuota:
			err = r.reconcileQuota(entry, snap, res)
		case types.EntityBreakdownRequest:
			err = r.replayBreakdown(ctx, entry, snap, res)
		default:
			logging.Sync("dropping entry %s with unknown entity type %q", entry.Key, entry.EntityType)
			r.cache.Remove(entry.Key)
			res.Discarded++
		}
		if err != nil {
			return nil, err
		}
	}

	logging.Sync("reconciled %d entries: applied=%d discarded=%d replayed=%d conflicts=%d",
		len(entries), res.Applied, res.Discarded, res.Replayed, len(res.Conflicts))
	return res, nil
}

// snapshot holds the server records the pending entries will be merged
// against, keyed the way each entity is looked up.
type snapshot struct {
	mu     gosync.Mutex
	states map[string]*types.CognitiveState // by user id, nil when server has none
	tasks  map[string]*types.Task           // by task id, nil when server has none
	quotas map[string]*types.QuotaRecord    // by user id, nil when server has none
}

func (r *Reconciler) fetchSnapshots(ctx context.Context, entries []types.CacheEntry) (*snapshot, error) {
	snap := &snapshot{
		states: make(map[string]*types.CognitiveState),
		tasks:  make(map[string]*types.Task),
		quotas: make(map[string]*types.QuotaRecord),
	}

	// Deduplicate lookups first so each server record is fetched once.
	stateUsers := map[string]bool{}
	taskRefs := map[string]string{} // task id -> user id
	quotaUsers := map[string]bool{}
	for _, entry := range entries {
		switch entry.EntityType {
		case types.EntityState:
			var s types.CognitiveState
			if json.Unmarshal(entry.Payload, &s) == nil {
				stateUsers[s.UserID] = true
			}
		case types.EntityTask:
			var t types.Task
			if json.Unmarshal(entry.Payload, &t) == nil {
				taskRefs[t.ID] = t.UserID
			}
		case types.EntityQuota:
			var q types.QuotaRecord
			if json.Unmarshal(entry.Payload, &q) == nil {
				quotaUsers[q.UserID] = true
			}
		case types.EntityBreakdownRequest:
			var req types.BreakdownRequest
			if json.Unmarshal(entry.Payload, &req) == nil {
				taskRefs[req.TaskID] = req.UserID
				quotaUsers[req.UserID] = true
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	for userID := range stateUsers {
		g.Go(func() error {
			state, err := r.server.GetCurrentState(gctx, userID)
			if err != nil {
				return err
			}
			snap.mu.Lock()
			snap.states[userID] = state
			snap.mu.Unlock()
			return nil
		})
	}
	for taskID, userID := range taskRefs {
		g.Go(func() error {
			task, err := r.server.GetTask(gctx, userID, taskID)
			if err != nil && !errors.Is(err, types.ErrNotFound) {
				return err
			}
			snap.mu.Lock()
			snap.tasks[taskID] = task
			snap.mu.Unlock()
			return nil
		})
	}
	for userID := range quotaUsers {
		g.Go(func() error {
			rec, err := r.server.GetQuota(gctx, userID)
			if err != nil && !errors.Is(err, types.ErrNotFound) {
				return err
			}
			snap.mu.Lock()
			snap.quotas[userID] = rec
			snap.mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// reconcileState applies last-write-wins by captured-at. A local entry that
// lost the race is discarded without ceremony: a newer reading already
// describes the user better than the stale one would.
func (r *Reconciler) reconcileState(ctx context.Context, entry types.CacheEntry, snap *snapshot, res *Result) error {
	var local types.CognitiveState
	if err := json.Unmarshal(entry.Payload, &local); err != nil {
		logging.Sync("dropping undecodable state entry %s: %v", entry.Key, err)
		r.cache.Remove(entry.Key)
		res.Discarded++
		return nil
	}

	remote := snap.states[local.UserID]
	if remote != nil && !local.CapturedAt.After(remote.CapturedAt) {
		logging.SyncDebug("state %s superseded by server copy from %s", entry.Key, remote.CapturedAt)
		r.cache.Remove(entry.Key)
		res.Discarded++
		return nil
	}

	if err := r.server.SaveState(ctx, &local); err != nil {
		return fmt.Errorf("failed to push state %s: %w", entry.Key, err)
	}
	snap.states[local.UserID] = &local
	r.cache.MarkSynced(entry.Key)
	res.Applied++
	return nil
}

// reconcileTask applies the local edit when the remote copy is unchanged
// since the entry's base version. When both sides changed, the remote copy
// wins whole-record and the local edit is retained in a conflict for user
// review rather than silently merged field by field.
func (r *Reconciler) reconcileTask(ctx context.Context, entry types.CacheEntry, snap *snapshot, res *Result) error {
	var local types.Task
	if err := json.Unmarshal(entry.Payload, &local); err != nil {
		logging.Sync("dropping undecodable task entry %s: %v", entry.Key, err)
		r.cache.Remove(entry.Key)
		res.Discarded++
		return nil
	}

	remote := snap.tasks[local.ID]
	if remote != nil && remote.UpdatedAt.After(entry.BaseVersion) {
		remoteJSON, err := json.Marshal(remote)
		if err != nil {
			return fmt.Errorf("failed to encode remote task %s: %w", local.ID, err)
		}
		res.Conflicts = append(res.Conflicts, types.Conflict{
			EntityType: types.EntityTask,
			Key:        entry.Key,
			Local:      entry.Payload,
			Remote:     remoteJSON,
			DetectedAt: time.Now(),
			Reason:     (&types.SyncConflictError{EntityType: types.EntityTask, Key: entry.Key}).Error(),
		})
		r.cache.MarkConflict(entry.Key)
		logging.Sync("task %s edited on both sides, remote copy kept", local.ID)
		return nil
	}

	if err := r.server.SaveTask(ctx, &local); err != nil {
		return fmt.Errorf("failed to push task %s: %w", local.ID, err)
	}
	snap.tasks[local.ID] = &local
	r.cache.MarkSynced(entry.Key)
	res.Applied++
	return nil
}

// reconcileQuota never pushes anything. The server figure replaces the
// cached one; a locally cached remaining count is display material, not
// admission evidence.
func (r *Reconciler) reconcileQuota(entry types.CacheEntry, snap *snapshot, res *Result) error {
	var local types.QuotaRecord
	if err := json.Unmarshal(entry.Payload, &local); err != nil {
		r.cache.Remove(entry.Key)
		res.Discarded++
		return nil
	}

	remote := snap.quotas[local.UserID]
	if remote == nil {
		r.cache.Remove(entry.Key)
		res.Discarded++
		return nil
	}

	remoteJSON, err := json.Marshal(remote)
	if err != nil {
		return fmt.Errorf("failed to encode quota for %s: %w", local.UserID, err)
	}
	r.cache.Set(types.CacheEntry{
		Key:            entry.Key,
		EntityType:     types.EntityQuota,
		Payload:        remoteJSON,
		LocalTimestamp: time.Now(),
		SyncState:      types.SyncSynced,
		BaseVersion:    time.Now(),
	})
	res.Discarded++
	return nil
}

// replayBreakdown runs a queued request through the orchestrator. The
// reservation decision is made fresh by the server-side counter; whatever
// allowance the cache remembered from before going offline has no say.
func (r *Reconciler) replayBreakdown(ctx context.Context, entry types.CacheEntry, snap *snapshot, res *Result) error {
	if r.breakdowns == nil {
		logging.SyncDebug("no breakdown requester configured, leaving %s queued", entry.Key)
		return nil
	}

	var req types.BreakdownRequest
	if err := json.Unmarshal(entry.Payload, &req); err != nil {
		logging.Sync("dropping undecodable breakdown request %s: %v", entry.Key, err)
		r.cache.Remove(entry.Key)
		res.Discarded++
		return nil
	}

	task := snap.tasks[req.TaskID]
	if task == nil {
		// The task was deleted, or never reached the server. Nothing to
		// break down.
		logging.Sync("queued breakdown %s references missing task %s, dropping", entry.Key, req.TaskID)
		r.cache.Remove(entry.Key)
		res.Discarded++
		return nil
	}

	outcome, err := r.breakdowns.RequestBreakdown(ctx, task, req.State)
	if err != nil {
		return fmt.Errorf("failed to replay breakdown for task %s: %w", req.TaskID, err)
	}
	if outcome.Denied {
		logging.Sync("queued breakdown for task %s denied on replay (remaining=%d)", req.TaskID, outcome.Remaining)
		r.cache.Remove(entry.Key)
		res.Discarded++
		return nil
	}

	if err := r.server.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to persist replayed breakdown for %s: %w", req.TaskID, err)
	}
	r.cache.Remove(entry.Key)
	res.Replayed++
	return nil
}
