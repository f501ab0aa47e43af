package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"neuroflow/internal/logging"
	"neuroflow/internal/types"
)

// SaveState persists a new check-in. States are immutable: saves are always
// inserts, and the latest CapturedAt wins on read.
func (s *Store) SaveState(ctx context.Context, state *types.CognitiveState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cognitive_states (id, user_id, energy, focus, mood, note, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		state.ID, state.UserID, state.Energy, state.Focus, state.Mood,
		state.Note, encodeTime(state.CapturedAt))
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	logging.StoreDebug("saved state %s for %s", state.ID, state.UserID)
	return nil
}

// GetCurrentState returns the user's most recent check-in by CapturedAt, or
// (nil, nil) when the user has never checked in.
func (s *Store) GetCurrentState(ctx context.Context, userID string) (*types.CognitiveState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, energy, focus, mood, note, captured_at
		FROM cognitive_states
		WHERE user_id = ?
		ORDER BY captured_at DESC
		LIMIT 1`, userID)

	var st types.CognitiveState
	var captured string
	err := row.Scan(&st.ID, &st.UserID, &st.Energy, &st.Focus, &st.Mood, &st.Note, &captured)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read current state: %w", err)
	}
	if st.CapturedAt, err = decodeTime(captured); err != nil {
		return nil, err
	}
	return &st, nil
}
