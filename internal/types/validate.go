package types

import "strings"

// Field length limits enforced at the boundary.
const (
	MaxNoteLength        = 500
	MaxTitleLength       = 255
	MaxDescriptionLength = 1000
	MaxEstimatedMinutes  = 1440
)

// Validate checks a check-in against the level and length bounds. Invalid
// states never reach the policy layer.
func (s *CognitiveState) Validate() error {
	if s.Energy < 1 || s.Energy > 10 {
		return &ValidationError{Field: "energy", Reason: "must be between 1 and 10"}
	}
	if s.Focus < 1 || s.Focus > 10 {
		return &ValidationError{Field: "focus", Reason: "must be between 1 and 10"}
	}
	if s.Mood < 1 || s.Mood > 10 {
		return &ValidationError{Field: "mood", Reason: "must be between 1 and 10"}
	}
	if len(s.Note) > MaxNoteLength {
		return &ValidationError{Field: "note", Reason: "must be at most 500 characters"}
	}
	if s.CapturedAt.IsZero() {
		return &ValidationError{Field: "captured_at", Reason: "must be set"}
	}
	return nil
}

// Validate checks a task against the field bounds.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if len(t.Title) > MaxTitleLength {
		return &ValidationError{Field: "title", Reason: "must be at most 255 characters"}
	}
	if len(t.Description) > MaxDescriptionLength {
		return &ValidationError{Field: "description", Reason: "must be at most 1000 characters"}
	}
	if t.Complexity < 1 || t.Complexity > 5 {
		return &ValidationError{Field: "complexity", Reason: "must be between 1 and 5"}
	}
	if t.EstimatedMinutes < 0 || t.EstimatedMinutes > MaxEstimatedMinutes {
		return &ValidationError{Field: "estimated_minutes", Reason: "must be between 0 and 1440"}
	}
	return nil
}
