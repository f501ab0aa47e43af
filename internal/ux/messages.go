// Package ux maps the internal error taxonomy to the copy users actually
// see. Every call site renders errors through Message, which keeps tone
// consistent and testable independent of any UI layer. No raw error text,
// no technical jargon, no punitive phrasing ever reaches the user.
package ux

import (
	"errors"

	"neuroflow/internal/types"
)

// Copy for each error class. Deliberately free of the words "quota",
// "limit", "error", and anything else that reads as a system scolding the
// user.
const (
	msgQuotaExceeded = "You've used all your AI assists for this month. They'll refresh soon - and you can always break tasks down yourself, one small piece at a time."
	msgAIFallback    = "The assistant is taking a break, so here's a simple plan to get you started."
	msgSyncConflict  = "A task was updated on another device. We kept the newest version and saved your edit so nothing is lost."
	msgStorage       = "Offline copies aren't available right now. Everything still works - it may just feel a little slower."
	msgValidation    = "That didn't quite work - one of the values is outside the expected range."
	msgGeneric       = "Something didn't go as planned. It's not you - please try again in a moment."
)

// Message translates an error into user-facing copy.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var (
		quotaErr      *types.QuotaExceededError
		aiErr         *types.AIServiceError
		conflictErr   *types.SyncConflictError
		storageErr    *types.StorageError
		validationErr *types.ValidationError
	)
	switch {
	case errors.As(err, &quotaErr):
		return msgQuotaExceeded
	case errors.As(err, &aiErr):
		return msgAIFallback
	case errors.As(err, &conflictErr):
		return msgSyncConflict
	case errors.As(err, &storageErr):
		return msgStorage
	case errors.As(err, &validationErr):
		return msgValidation
	default:
		return msgGeneric
	}
}

// Encouragement returns the tone-matched line attached to fallback
// breakdowns.
func Encouragement(tone types.Tone) string {
	switch tone {
	case types.ToneGentle:
		return "One small step is plenty. Rest when you need to."
	case types.ToneEnergetic:
		return "You're on a roll - knock these out!"
	default:
		return "Take it one step at a time. You've got this."
	}
}
