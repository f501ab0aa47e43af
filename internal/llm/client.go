// Package llm wraps the external text-generation collaborator behind a
// minimal interface so the orchestrator can be exercised against a test
// double.
package llm

import "context"

// Client is the minimal surface the breakdown orchestrator needs from a
// text-generation provider. Implementations must honor ctx cancellation and
// deadlines; the caller owns the timeout policy.
type Client interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}
