package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"neuroflow/internal/logging"
	"neuroflow/internal/quota"
	"neuroflow/internal/types"
)

// ErrNoQuota is returned when a user has no quota record. Records are
// created at account creation, so this indicates a provisioning gap.
var ErrNoQuota = fmt.Errorf("no quota record for user: %w", types.ErrNotFound)

// CreateQuota provisions a quota record at account creation. It is a no-op
// if the record already exists.
func (s *Store) CreateQuota(ctx context.Context, rec *types.QuotaRecord) error {
	if rec.Limit <= 0 {
		return &types.ValidationError{Field: "limit", Reason: "must be positive"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quotas (user_id, tier, used, max_monthly, reset_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		rec.UserID, string(rec.Tier), rec.Used, rec.Limit, encodeTime(rec.ResetAt))
	if err != nil {
		return fmt.Errorf("failed to create quota: %w", err)
	}
	return nil
}

// GetQuota returns the user's quota record.
func (s *Store) GetQuota(ctx context.Context, userID string) (*types.QuotaRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getQuotaLocked(ctx, userID)
}

func (s *Store) getQuotaLocked(ctx context.Context, userID string) (*types.QuotaRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, tier, used, max_monthly, reset_at
		FROM quotas WHERE user_id = ?`, userID)

	var rec types.QuotaRecord
	var tier, resetAt string
	err := row.Scan(&rec.UserID, &tier, &rec.Used, &rec.Limit, &resetAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoQuota
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read quota: %w", err)
	}
	rec.Tier = types.QuotaTier(tier)
	if rec.ResetAt, err = decodeTime(resetAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// AtomicReserveQuota increments used by one only if the pre-increment value
// is below the limit, as one indivisible statement. The row count of the
// conditional UPDATE is the reservation decision: there is no window between
// a read and a write for a concurrent caller to slip through.
func (s *Store) AtomicReserveQuota(ctx context.Context, userID string) (bool, *types.QuotaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE quotas SET used = used + 1
		WHERE user_id = ? AND used < max_monthly`, userID)
	if err != nil {
		return false, nil, fmt.Errorf("failed to reserve quota: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, nil, fmt.Errorf("failed to confirm reservation: %w", err)
	}

	rec, err := s.getQuotaLocked(ctx, userID)
	if err != nil {
		return false, nil, err
	}
	allowed := n == 1
	logging.StoreDebug("atomic reserve %s: allowed=%v used=%d/%d", userID, allowed, rec.Used, rec.Limit)
	return allowed, rec, nil
}

// ReleaseQuota decrements used by one, never below zero.
func (s *Store) ReleaseQuota(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE quotas SET used = used - 1
		WHERE user_id = ? AND used > 0`, userID)
	if err != nil {
		return fmt.Errorf("failed to release quota: %w", err)
	}
	return nil
}

// ResetQuota zeroes used and moves the reset time forward for one user.
func (s *Store) ResetQuota(ctx context.Context, userID string, nextReset time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE quotas SET used = 0, reset_at = ?
		WHERE user_id = ?`, encodeTime(nextReset), userID)
	if err != nil {
		return fmt.Errorf("failed to reset quota: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNoQuota
	}
	return nil
}

// UpgradeQuota raises the limit immediately without touching used or
// reset_at.
func (s *Store) UpgradeQuota(ctx context.Context, userID string, newLimit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE quotas SET max_monthly = ?, tier = ?
		WHERE user_id = ?`, newLimit, string(types.TierPremium), userID)
	if err != nil {
		return fmt.Errorf("failed to upgrade quota: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNoQuota
	}
	return nil
}

// ResetExpiredQuotas is the batch entry point for the monthly rollover job.
// Each due record rolls forward from its own previous reset_at, so the batch
// never introduces drift for users whose reset fell mid-run.
func (s *Store) ResetExpiredQuotas(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, reset_at FROM quotas WHERE reset_at <= ?`, encodeTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to list due quotas: %w", err)
	}

	type due struct {
		userID  string
		resetAt time.Time
	}
	var dues []due
	for rows.Next() {
		var d due
		var raw string
		if err := rows.Scan(&d.userID, &raw); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan due quota: %w", err)
		}
		if d.resetAt, err = decodeTime(raw); err != nil {
			rows.Close()
			return 0, err
		}
		dues = append(dues, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	reset := 0
	for _, d := range dues {
		next := quota.NextReset(d.resetAt, now)
		if _, err := s.db.ExecContext(ctx, `
			UPDATE quotas SET used = 0, reset_at = ? WHERE user_id = ?`,
			encodeTime(next), d.userID); err != nil {
			return reset, fmt.Errorf("failed to reset quota for %s: %w", d.userID, err)
		}
		reset++
	}
	if reset > 0 {
		logging.Store("monthly rollover reset %d quota records", reset)
	}
	return reset, nil
}
