package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"neuroflow/internal/logging"
	"neuroflow/internal/types"
)

// SaveTask inserts or replaces a task. The breakdown, when present, is
// stored as a JSON column rather than its own table: it is written once by
// the orchestrator and only ever read whole.
func (s *Store) SaveTask(ctx context.Context, task *types.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	var breakdownJSON sql.NullString
	if task.Breakdown != nil {
		data, err := json.Marshal(task.Breakdown)
		if err != nil {
			return fmt.Errorf("failed to encode breakdown: %w", err)
		}
		breakdownJSON = sql.NullString{String: string(data), Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, title, description, complexity,
			estimated_minutes, completed, breakdown, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			complexity = excluded.complexity,
			estimated_minutes = excluded.estimated_minutes,
			completed = excluded.completed,
			breakdown = excluded.breakdown,
			updated_at = excluded.updated_at`,
		task.ID, task.UserID, task.Title, task.Description, task.Complexity,
		task.EstimatedMinutes, boolToInt(task.Completed), breakdownJSON,
		encodeTime(task.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	logging.StoreDebug("saved task %s for %s", task.ID, task.UserID)
	return nil
}

// GetTask returns one task by id, scoped to the user.
func (s *Store) GetTask(ctx context.Context, userID, taskID string) (*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, description, complexity, estimated_minutes,
			completed, breakdown, updated_at
		FROM tasks WHERE user_id = ? AND id = ?`, userID, taskID)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", taskID, types.ErrNotFound)
	}
	return task, err
}

// GetTasks returns all of a user's tasks in insertion order.
func (s *Store) GetTasks(ctx context.Context, userID string) ([]types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, description, complexity, estimated_minutes,
			completed, breakdown, updated_at
		FROM tasks WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}
	defer rows.Close()

	var out []types.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *task)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*types.Task, error) {
	var t types.Task
	var completed int
	var breakdownJSON sql.NullString
	var updated string

	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Complexity,
		&t.EstimatedMinutes, &completed, &breakdownJSON, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	t.Completed = completed != 0
	if t.UpdatedAt, err = decodeTime(updated); err != nil {
		return nil, err
	}
	if breakdownJSON.Valid {
		var b types.Breakdown
		if err := json.Unmarshal([]byte(breakdownJSON.String), &b); err != nil {
			return nil, fmt.Errorf("failed to decode breakdown: %w", err)
		}
		t.Breakdown = &b
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
