// Package types holds the core domain records shared across the policy,
// quota, breakdown, and sync layers. Values here are plain data: all
// behavior that derives from them lives in the packages that consume them.
package types

import "time"

// =============================================================================
// COGNITIVE STATE
// =============================================================================

// CognitiveState is a user's self-reported energy/focus/mood snapshot.
// Instances are immutable once created; a new check-in produces a new
// instance and the latest by CapturedAt is the authoritative current state.
type CognitiveState struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Energy     int       `json:"energy"` // 1-10
	Focus      int       `json:"focus"`  // 1-10
	Mood       int       `json:"mood"`   // 1-10
	Note       string    `json:"note,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// =============================================================================
// ADAPTATION RECORD
// =============================================================================

// Tier buckets the energy-focus average into three adaptation bands.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Spacing controls list density in the UI layer.
type Spacing string

const (
	SpacingRelaxed Spacing = "relaxed"
	SpacingNormal  Spacing = "normal"
	SpacingCompact Spacing = "compact"
)

// Tone selects the register of user-facing copy.
type Tone string

const (
	ToneGentle    Tone = "gentle"
	ToneStandard  Tone = "standard"
	ToneEnergetic Tone = "energetic"
)

// TouchTargetClass sizes interactive elements for the user's current
// motor/attention precision.
type TouchTargetClass string

const (
	TouchTargetLarge   TouchTargetClass = "large"
	TouchTargetNormal  TouchTargetClass = "normal"
	TouchTargetCompact TouchTargetClass = "compact"
)

// AdaptationRecord is the derived UI/behavior parameter set for a cognitive
// state. It is recomputed on every read and never persisted, so there are no
// staleness concerns.
type AdaptationRecord struct {
	Tier              Tier             `json:"tier"`
	ComplexityCeiling int              `json:"complexity_ceiling"` // 1-5
	Spacing           Spacing          `json:"spacing"`
	Tone              Tone             `json:"tone"`
	TouchTargetClass  TouchTargetClass `json:"touch_target_class"`
}

// =============================================================================
// TASKS AND BREAKDOWNS
// =============================================================================

// Task is a user-created unit of work. Complexity and Completed are never
// null; Breakdown is attached only by the breakdown orchestrator.
type Task struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Title            string     `json:"title"`       // non-empty, <=255
	Description      string     `json:"description"` // <=1000
	Complexity       int        `json:"complexity"`  // 1-5
	EstimatedMinutes int        `json:"estimated_minutes"`
	Completed        bool       `json:"completed"`
	Breakdown        *Breakdown `json:"breakdown,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// BreakdownSource records which path produced a breakdown.
type BreakdownSource string

const (
	// SourceAI marks a breakdown produced by the external AI collaborator.
	SourceAI BreakdownSource = "ai"
	// SourceFallback marks a deterministic, locally generated breakdown.
	SourceFallback BreakdownSource = "fallback"
)

// Step is one element of a breakdown with its own time estimate.
type Step struct {
	Title   string `json:"title"`
	Minutes int    `json:"minutes"`
}

// Breakdown is a 3-6 step decomposition of a task, tuned to the user's
// adaptation record at request time.
type Breakdown struct {
	Steps         []Step          `json:"steps"`
	TotalMinutes  int             `json:"total_minutes"`
	Adapted       bool            `json:"adapted"`
	Source        BreakdownSource `json:"source"`
	Model         string          `json:"model,omitempty"`
	Encouragement string          `json:"encouragement,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// =============================================================================
// QUOTA
// =============================================================================

// QuotaTier is the billing tier governing the monthly allowance.
type QuotaTier string

const (
	TierFree    QuotaTier = "free"
	TierPremium QuotaTier = "premium"
)

// QuotaRecord tracks a user's monthly AI-request allowance. Used never
// exceeds Limit and is monotonically non-decreasing between resets; a reset
// zeroes Used and advances ResetAt by exactly one billing interval. One
// record per user, mutated only through atomic store operations.
type QuotaRecord struct {
	UserID  string    `json:"user_id"`
	Tier    QuotaTier `json:"tier"`
	Used    int       `json:"used"`
	Limit   int       `json:"limit"`
	ResetAt time.Time `json:"reset_at"`
}

// Remaining returns the unreserved allowance, never negative.
func (q *QuotaRecord) Remaining() int {
	if q.Used >= q.Limit {
		return 0
	}
	return q.Limit - q.Used
}

// =============================================================================
// OFFLINE CACHE
// =============================================================================

// SyncState tracks a cache entry's position in the reconciliation lifecycle.
type SyncState string

const (
	SyncPending  SyncState = "pending"
	SyncSynced   SyncState = "synced"
	SyncConflict SyncState = "conflict"
)

// EntityType tags the payload of a cache entry.
type EntityType string

const (
	EntityState            EntityType = "state"
	EntityTask             EntityType = "task"
	EntityQuota            EntityType = "quota"
	EntityBreakdownRequest EntityType = "breakdown_request"
)

// CacheEntry is a locally persisted write awaiting reconciliation with
// server truth. Payload is the JSON encoding of the entity.
type CacheEntry struct {
	Key            string     `json:"key"`
	EntityType     EntityType `json:"entity_type"`
	Payload        []byte     `json:"payload"`
	LocalTimestamp time.Time  `json:"local_timestamp"`
	SyncState      SyncState  `json:"sync_state"`
	// BaseVersion is the UpdatedAt of the last known-synced server copy,
	// used by the reconciler to detect concurrent remote edits.
	BaseVersion time.Time `json:"base_version,omitempty"`
}

// BreakdownRequest is a breakdown ask captured while offline. It is queued
// as a pending cache entry and replayed through the orchestrator, and its
// real quota reservation, once connectivity returns. A cached quota figure
// is never admission evidence for the replay.
type BreakdownRequest struct {
	TaskID   string          `json:"task_id"`
	UserID   string          `json:"user_id"`
	State    *CognitiveState `json:"state,omitempty"`
	QueuedAt time.Time       `json:"queued_at"`
}

// Conflict records a local edit that lost to a concurrent remote change.
// The local payload is retained here for user review; it is never silently
// discarded.
type Conflict struct {
	EntityType EntityType `json:"entity_type"`
	Key        string     `json:"key"`
	Local      []byte     `json:"local"`
	Remote     []byte     `json:"remote"`
	DetectedAt time.Time  `json:"detected_at"`
	Reason     string     `json:"reason"`
}
