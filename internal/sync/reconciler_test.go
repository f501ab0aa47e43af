package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"neuroflow/internal/breakdown"
	"neuroflow/internal/cache"
	"neuroflow/internal/quota"
	"neuroflow/internal/types"
)

// fakeServer is an in-memory stand-in for the authoritative store.
type fakeServer struct {
	mu     gosync.Mutex
	states map[string]*types.CognitiveState
	tasks  map[string]*types.Task
	quotas map[string]*types.QuotaRecord

	taskErr error // returned by GetTask when set
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		states: make(map[string]*types.CognitiveState),
		tasks:  make(map[string]*types.Task),
		quotas: make(map[string]*types.QuotaRecord),
	}
}

func (s *fakeServer) GetCurrentState(ctx context.Context, userID string) (*types.CognitiveState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[userID], nil
}

func (s *fakeServer) SaveState(ctx context.Context, state *types.CognitiveState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *state
	s.states[state.UserID] = &cp
	return nil
}

func (s *fakeServer) GetTask(ctx context.Context, userID, taskID string) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taskErr != nil {
		return nil, s.taskErr
	}
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, types.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *fakeServer) SaveTask(ctx context.Context, task *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *fakeServer) GetQuota(ctx context.Context, userID string) (*types.QuotaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotas[userID]
	if !ok {
		return nil, fmt.Errorf("quota for %s: %w", userID, types.ErrNotFound)
	}
	cp := *q
	return &cp, nil
}

func (s *fakeServer) task(id string) *types.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id]
}

// reservationStore backs a real quota.Manager in replay tests.
type reservationStore struct {
	mu  gosync.Mutex
	rec types.QuotaRecord
}

func (s *reservationStore) GetQuota(ctx context.Context, userID string) (*types.QuotaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := s.rec
	return &cp, nil
}

func (s *reservationStore) AtomicReserveQuota(ctx context.Context, userID string) (bool, *types.QuotaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	allowed := s.rec.Used < s.rec.Limit
	if allowed {
		s.rec.Used++
	}
	cp := s.rec
	return allowed, &cp, nil
}

func (s *reservationStore) ReleaseQuota(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec.Used > 0 {
		s.rec.Used--
	}
	return nil
}

func (s *reservationStore) ResetQuota(ctx context.Context, userID string, nextReset time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Used = 0
	s.rec.ResetAt = nextReset
	return nil
}

func (s *reservationStore) UpgradeQuota(ctx context.Context, userID string, newLimit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Limit = newLimit
	return nil
}

// countingClient fails every completion and counts attempts.
type countingClient struct {
	mu    gosync.Mutex
	calls int
}

func (c *countingClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return `{"steps":[{"title":"a","minutes":10},{"title":"b","minutes":10},{"title":"c","minutes":10}]}`, nil
}

func (c *countingClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func testCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	return c
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestReconcileEmptyIsNoop(t *testing.T) {
	r := NewReconciler(newFakeServer(), testCache(t), nil)
	res, err := r.Reconcile(context.Background(), nil)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Applied != 0 || res.Discarded != 0 || res.Replayed != 0 || len(res.Conflicts) != 0 {
		t.Fatalf("empty reconcile produced %+v", res)
	}
}

func TestReconcileStateLastWriteWins(t *testing.T) {
	server := newFakeServer()
	server.states["u_1"] = &types.CognitiveState{
		ID: "s_old", UserID: "u_1", Energy: 5, Focus: 5, Mood: 5,
		CapturedAt: time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC),
	}
	c := testCache(t)
	r := NewReconciler(server, c, nil)

	newer := types.CognitiveState{
		ID: "s_new", UserID: "u_1", Energy: 7, Focus: 6, Mood: 6,
		CapturedAt: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
	}
	stale := types.CognitiveState{
		ID: "s_stale", UserID: "u_1", Energy: 2, Focus: 2, Mood: 2,
		CapturedAt: time.Date(2026, 8, 25, 7, 0, 0, 0, time.UTC),
	}
	entries := []types.CacheEntry{
		{Key: "state:s_stale", EntityType: types.EntityState, Payload: mustJSON(t, stale), SyncState: types.SyncPending},
		{Key: "state:s_new", EntityType: types.EntityState, Payload: mustJSON(t, newer), SyncState: types.SyncPending},
	}
	for _, e := range entries {
		c.Set(e)
	}

	res, err := r.Reconcile(context.Background(), entries)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Applied != 1 || res.Discarded != 1 {
		t.Fatalf("applied=%d discarded=%d, want 1/1", res.Applied, res.Discarded)
	}

	got, err := server.GetCurrentState(context.Background(), "u_1")
	if err != nil {
		t.Fatalf("GetCurrentState: %v", err)
	}
	if diff := cmp.Diff(&newer, got); diff != "" {
		t.Fatalf("server state mismatch (-want +got):\n%s", diff)
	}

	if _, ok := c.Get("state:s_stale"); ok {
		t.Fatalf("stale entry should be discarded silently")
	}
	if e, ok := c.Get("state:s_new"); !ok || e.SyncState != types.SyncSynced {
		t.Fatalf("winning entry should be marked synced, got %+v", e)
	}
}

func TestReconcileTaskLocalOnlyEditApplies(t *testing.T) {
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	server := newFakeServer()
	server.tasks["t_1"] = &types.Task{
		ID: "t_1", UserID: "u_1", Title: "Water plants", Complexity: 1, UpdatedAt: base,
	}
	c := testCache(t)
	r := NewReconciler(server, c, nil)

	local := types.Task{
		ID: "t_1", UserID: "u_1", Title: "Water all the plants", Complexity: 2,
		UpdatedAt: base.Add(2 * time.Hour),
	}
	entry := types.CacheEntry{
		Key: "task:t_1", EntityType: types.EntityTask,
		Payload: mustJSON(t, local), SyncState: types.SyncPending, BaseVersion: base,
	}
	c.Set(entry)

	res, err := r.Reconcile(context.Background(), []types.CacheEntry{entry})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Applied != 1 || len(res.Conflicts) != 0 {
		t.Fatalf("applied=%d conflicts=%d, want 1/0", res.Applied, len(res.Conflicts))
	}
	if diff := cmp.Diff(&local, server.task("t_1")); diff != "" {
		t.Fatalf("server task mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileTaskConcurrentEditRemoteWins(t *testing.T) {
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	remote := &types.Task{
		ID: "t_1", UserID: "u_1", Title: "Remote title", Complexity: 3,
		UpdatedAt: base.Add(time.Hour), // changed after the local base
	}
	server := newFakeServer()
	server.tasks["t_1"] = remote
	c := testCache(t)
	r := NewReconciler(server, c, nil)

	local := types.Task{
		ID: "t_1", UserID: "u_1", Title: "Local title", Complexity: 4,
		UpdatedAt: base.Add(30 * time.Minute),
	}
	entry := types.CacheEntry{
		Key: "task:t_1", EntityType: types.EntityTask,
		Payload: mustJSON(t, local), SyncState: types.SyncPending, BaseVersion: base,
	}
	c.Set(entry)

	res, err := r.Reconcile(context.Background(), []types.CacheEntry{entry})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Applied != 0 || len(res.Conflicts) != 1 {
		t.Fatalf("applied=%d conflicts=%d, want 0/1", res.Applied, len(res.Conflicts))
	}

	// Remote copy is untouched.
	if diff := cmp.Diff(remote, server.task("t_1")); diff != "" {
		t.Fatalf("remote task should win unchanged (-want +got):\n%s", diff)
	}

	// The losing local edit is retained in the conflict, not discarded.
	var retained types.Task
	if err := json.Unmarshal(res.Conflicts[0].Local, &retained); err != nil {
		t.Fatalf("conflict local payload: %v", err)
	}
	if diff := cmp.Diff(local, retained); diff != "" {
		t.Fatalf("retained local edit mismatch (-want +got):\n%s", diff)
	}

	if e, ok := c.Get("task:t_1"); !ok || e.SyncState != types.SyncConflict {
		t.Fatalf("entry should be marked conflict, got %+v", e)
	}
}

func TestReconcileQuotaServerAuthoritative(t *testing.T) {
	server := newFakeServer()
	server.quotas["u_1"] = &types.QuotaRecord{
		UserID: "u_1", Tier: types.TierFree, Used: 10, Limit: 10,
		ResetAt: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}
	c := testCache(t)
	r := NewReconciler(server, c, nil)

	// The cache optimistically remembers plenty of allowance.
	cached := types.QuotaRecord{UserID: "u_1", Tier: types.TierFree, Used: 1, Limit: 10}
	entry := types.CacheEntry{
		Key: "quota:u_1", EntityType: types.EntityQuota,
		Payload: mustJSON(t, cached), SyncState: types.SyncPending,
	}
	c.Set(entry)

	if _, err := r.Reconcile(context.Background(), []types.CacheEntry{entry}); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	got, ok := c.Get("quota:u_1")
	if !ok || got.SyncState != types.SyncSynced {
		t.Fatalf("quota entry should be refreshed and synced, got %+v", got)
	}
	var refreshed types.QuotaRecord
	if err := json.Unmarshal(got.Payload, &refreshed); err != nil {
		t.Fatalf("refreshed payload: %v", err)
	}
	if diff := cmp.Diff(*server.quotas["u_1"], refreshed); diff != "" {
		t.Fatalf("cache should mirror the server figure (-want +got):\n%s", diff)
	}
	// The optimistic local count never reached the server.
	if server.quotas["u_1"].Used != 10 {
		t.Fatalf("server quota mutated to used=%d", server.quotas["u_1"].Used)
	}
}

func TestReplayDeniedByRealReservationDespiteCachedAllowance(t *testing.T) {
	server := newFakeServer()
	task := &types.Task{
		ID: "t_1", UserID: "u_1", Title: "Declutter desk", Complexity: 2,
		EstimatedMinutes: 30, UpdatedAt: time.Now(),
	}
	server.tasks["t_1"] = task
	server.quotas["u_1"] = &types.QuotaRecord{UserID: "u_1", Tier: types.TierFree, Used: 10, Limit: 10}

	// The server-side counter is exhausted even though the cache still
	// remembers allowance from before going offline.
	rstore := &reservationStore{rec: types.QuotaRecord{
		UserID: "u_1", Tier: types.TierFree, Used: 10, Limit: 10,
		ResetAt: time.Now().AddDate(0, 1, 0),
	}}
	client := &countingClient{}
	o := breakdown.NewOrchestrator(quota.NewManager(rstore), client, "gemini-2.5-flash", time.Second, 1024)

	c := testCache(t)
	r := NewReconciler(server, c, o)

	req := types.BreakdownRequest{
		TaskID: "t_1", UserID: "u_1",
		State:    &types.CognitiveState{Energy: 6, Focus: 6, Mood: 6, CapturedAt: time.Now()},
		QueuedAt: time.Now().Add(-time.Hour),
	}
	staleQuota := types.QuotaRecord{UserID: "u_1", Tier: types.TierFree, Used: 5, Limit: 10}
	entries := []types.CacheEntry{
		{Key: "quota:u_1", EntityType: types.EntityQuota, Payload: mustJSON(t, staleQuota), SyncState: types.SyncPending},
		{Key: "breakdown_request:t_1", EntityType: types.EntityBreakdownRequest, Payload: mustJSON(t, req), SyncState: types.SyncPending},
	}
	for _, e := range entries {
		c.Set(e)
	}

	res, err := r.Reconcile(context.Background(), entries)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Replayed != 0 {
		t.Fatalf("exhausted user replayed %d breakdowns", res.Replayed)
	}
	if client.callCount() != 0 {
		t.Fatalf("denied replay reached the AI %d times", client.callCount())
	}
	if server.task("t_1").Breakdown != nil {
		t.Fatalf("denied replay attached a breakdown")
	}
	if _, ok := c.Get("breakdown_request:t_1"); ok {
		t.Fatalf("denied request should be dropped, not retried forever")
	}
}

func TestReplayQueuedBreakdownSucceeds(t *testing.T) {
	server := newFakeServer()
	server.tasks["t_1"] = &types.Task{
		ID: "t_1", UserID: "u_1", Title: "Declutter desk", Complexity: 2,
		EstimatedMinutes: 30, UpdatedAt: time.Now(),
	}

	rstore := &reservationStore{rec: types.QuotaRecord{
		UserID: "u_1", Tier: types.TierFree, Used: 0, Limit: 10,
		ResetAt: time.Now().AddDate(0, 1, 0),
	}}
	client := &countingClient{}
	o := breakdown.NewOrchestrator(quota.NewManager(rstore), client, "gemini-2.5-flash", time.Second, 1024)

	c := testCache(t)
	r := NewReconciler(server, c, o)

	req := types.BreakdownRequest{
		TaskID: "t_1", UserID: "u_1",
		State:    &types.CognitiveState{Energy: 6, Focus: 6, Mood: 6, CapturedAt: time.Now()},
		QueuedAt: time.Now(),
	}
	entry := types.CacheEntry{
		Key: "breakdown_request:t_1", EntityType: types.EntityBreakdownRequest,
		Payload: mustJSON(t, req), SyncState: types.SyncPending,
	}
	c.Set(entry)

	res, err := r.Reconcile(context.Background(), []types.CacheEntry{entry})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Replayed != 1 {
		t.Fatalf("replayed=%d, want 1", res.Replayed)
	}
	got := server.task("t_1")
	if got.Breakdown == nil || got.Breakdown.Source != types.SourceAI {
		t.Fatalf("replay should persist an AI breakdown, got %+v", got.Breakdown)
	}
	if _, ok := c.Get("breakdown_request:t_1"); ok {
		t.Fatalf("replayed request should be removed from the queue")
	}
}

func TestReconcileFetchFailureLeavesEntriesPending(t *testing.T) {
	server := newFakeServer()
	server.taskErr = errors.New("connection refused")
	c := testCache(t)
	r := NewReconciler(server, c, nil)

	local := types.Task{ID: "t_1", UserID: "u_1", Title: "T", Complexity: 1, UpdatedAt: time.Now()}
	entry := types.CacheEntry{
		Key: "task:t_1", EntityType: types.EntityTask,
		Payload: mustJSON(t, local), SyncState: types.SyncPending,
	}
	c.Set(entry)

	if _, err := r.Reconcile(context.Background(), []types.CacheEntry{entry}); err == nil {
		t.Fatalf("unreachable server should abort the pass")
	}
	if e, ok := c.Get("task:t_1"); !ok || e.SyncState != types.SyncPending {
		t.Fatalf("entry should stay pending for the next attempt, got %+v", e)
	}
}

func TestReconcileTaskFirstPushCreatesRemote(t *testing.T) {
	server := newFakeServer()
	c := testCache(t)
	r := NewReconciler(server, c, nil)

	local := types.Task{ID: "t_9", UserID: "u_1", Title: "New offline task", Complexity: 2, UpdatedAt: time.Now()}
	entry := types.CacheEntry{
		Key: "task:t_9", EntityType: types.EntityTask,
		Payload: mustJSON(t, local), SyncState: types.SyncPending,
	}
	c.Set(entry)

	res, err := r.Reconcile(context.Background(), []types.CacheEntry{entry})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Applied != 1 {
		t.Fatalf("applied=%d, want 1", res.Applied)
	}
	if server.task("t_9") == nil {
		t.Fatalf("offline-created task never reached the server")
	}
}
