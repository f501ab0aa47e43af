// Package quota tracks the monthly AI-request allowance per user. All
// mutation of the used counter flows through a single conditional-increment
// primitive at the persistence boundary; no caller ever computes used+1 on
// its own, which is what removes the check-then-act race across devices.
package quota

import (
	"context"
	"fmt"
	"time"

	"neuroflow/internal/logging"
	"neuroflow/internal/types"
)

// =============================================================================
// QUOTA MANAGER
// =============================================================================
//
// Per-user lifecycle:
//   - active:    used < limit, reservations succeed
//   - exhausted: used == limit, reservations denied until upgrade or reset
//   - resetting: transient server-side state during the monthly rollover
//
// Failed AI calls hand their reservation back via Release, so they never
// count against the allowance.

// State is a user's position in the quota lifecycle.
type State int

const (
	// StateActive - reservations are being granted.
	StateActive State = iota
	// StateExhausted - the allowance is fully reserved.
	StateExhausted
	// StateResetting - the monthly rollover transaction is in flight.
	StateResetting
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateExhausted:
		return "exhausted"
	case StateResetting:
		return "resetting"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Reservation is the outcome of a CheckAndReserve call.
type Reservation struct {
	Allowed   bool
	Remaining int
	Tier      types.QuotaTier
}

// ReservationStore is the persistence boundary for quota records. The
// AtomicReserve implementation must be a single server-side conditional
// update: increment used by one only if the pre-increment value is below the
// limit, reporting whether the increment happened, as one indivisible
// operation.
type ReservationStore interface {
	GetQuota(ctx context.Context, userID string) (*types.QuotaRecord, error)
	AtomicReserveQuota(ctx context.Context, userID string) (allowed bool, rec *types.QuotaRecord, err error)
	ReleaseQuota(ctx context.Context, userID string) error
	ResetQuota(ctx context.Context, userID string, nextReset time.Time) error
	UpgradeQuota(ctx context.Context, userID string, newLimit int) error
}

// Manager coordinates quota operations for all users against a single store.
type Manager struct {
	store ReservationStore
}

// NewManager creates a quota manager over the given store.
func NewManager(store ReservationStore) *Manager {
	return &Manager{store: store}
}

// StateOf classifies a record into the lifecycle state.
func StateOf(rec *types.QuotaRecord) State {
	if rec.Used >= rec.Limit {
		return StateExhausted
	}
	return StateActive
}

// CheckAndReserve atomically reserves one request from the user's monthly
// allowance. Denials carry the remaining figure and tier so callers can
// render them. If the store itself is unreachable the reservation fails
// closed: the system never grants AI access it cannot confirm was counted.
func (m *Manager) CheckAndReserve(ctx context.Context, userID string) (Reservation, error) {
	// Lazy rollover: an overdue record resets before it is consulted.
	if err := m.ResetIfDue(ctx, userID, time.Now()); err != nil {
		logging.Quota("reserve %s: reset check failed, failing closed: %v", userID, err)
		return Reservation{Allowed: false}, fmt.Errorf("quota reservation unavailable: %w", err)
	}

	allowed, rec, err := m.store.AtomicReserveQuota(ctx, userID)
	if err != nil {
		logging.Quota("reserve %s: store error, failing closed: %v", userID, err)
		return Reservation{Allowed: false}, fmt.Errorf("quota reservation unavailable: %w", err)
	}

	res := Reservation{Allowed: allowed, Remaining: rec.Remaining(), Tier: rec.Tier}
	if !allowed {
		logging.Quota("reserve %s: denied (used=%d, limit=%d)", userID, rec.Used, rec.Limit)
		return res, &types.QuotaExceededError{Tier: rec.Tier, Remaining: res.Remaining}
	}
	logging.QuotaDebug("reserve %s: granted (used=%d, limit=%d)", userID, rec.Used, rec.Limit)
	return res, nil
}

// Release hands back a reservation after a failed AI call so the attempt
// never counts against the allowance. Releasing with nothing reserved is a
// no-op at the store.
func (m *Manager) Release(ctx context.Context, userID string) error {
	if err := m.store.ReleaseQuota(ctx, userID); err != nil {
		return fmt.Errorf("quota release: %w", err)
	}
	logging.QuotaDebug("release %s: reservation returned", userID)
	return nil
}

// ResetIfDue performs the monthly rollover when the record's reset time has
// passed. The next reset time rolls forward from the previous ResetAt (never
// from now) so repeated resets cannot drift; a record more than one interval
// overdue advances month by month until the reset time is in the future.
// Calling when no reset is due is a no-op.
func (m *Manager) ResetIfDue(ctx context.Context, userID string, now time.Time) error {
	rec, err := m.store.GetQuota(ctx, userID)
	if err != nil {
		return fmt.Errorf("quota reset check: %w", err)
	}
	if now.Before(rec.ResetAt) {
		return nil
	}

	next := NextReset(rec.ResetAt, now)
	if err := m.store.ResetQuota(ctx, userID, next); err != nil {
		return fmt.Errorf("quota reset: %w", err)
	}
	logging.Quota("reset %s: used zeroed, next reset %s", userID, next.Format(time.RFC3339))
	return nil
}

// Upgrade raises the user's limit immediately. Used and ResetAt are
// untouched, so an exhausted user becomes active without losing billing
// alignment.
func (m *Manager) Upgrade(ctx context.Context, userID string, newLimit int) error {
	if newLimit <= 0 {
		return &types.ValidationError{Field: "limit", Reason: "must be positive"}
	}
	if err := m.store.UpgradeQuota(ctx, userID, newLimit); err != nil {
		return fmt.Errorf("quota upgrade: %w", err)
	}
	logging.Quota("upgrade %s: limit now %d", userID, newLimit)
	return nil
}

// Remaining returns the current unreserved allowance for display purposes.
func (m *Manager) Remaining(ctx context.Context, userID string) (int, error) {
	rec, err := m.store.GetQuota(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("quota read: %w", err)
	}
	return rec.Remaining(), nil
}

// NextReset rolls a reset time forward by whole billing intervals (calendar
// months) from prev until it lands after now.
func NextReset(prev, now time.Time) time.Time {
	next := prev.AddDate(0, 1, 0)
	for !next.After(now) {
		next = next.AddDate(0, 1, 0)
	}
	return next
}
