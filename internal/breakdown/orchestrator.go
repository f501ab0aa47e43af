// Package breakdown coordinates quota reservation, state-adapted prompt
// construction, the external AI call, and deterministic fallback generation.
//
// The two-path design (server AI vs. local fallback) is the central
// failure-handling contract here: a transient AI failure releases the
// reservation before falling back, so failed attempts never count against
// the user's monthly allowance.
package breakdown

import (
	"context"
	"fmt"
	"time"

	"neuroflow/internal/llm"
	"neuroflow/internal/logging"
	"neuroflow/internal/policy"
	"neuroflow/internal/quota"
	"neuroflow/internal/types"
)

// Orchestrator drives a single breakdown request end to end.
type Orchestrator struct {
	quota     *quota.Manager
	client    llm.Client
	model     string
	timeout   time.Duration
	maxTokens int
}

// Result is the outcome of a breakdown request. Exactly one of Denied or
// Breakdown is meaningful: a denial carries the figures the caller needs to
// render shame-free copy, and never reflects an AI call.
type Result struct {
	Denied    bool
	Remaining int
	Tier      types.QuotaTier
	Breakdown *types.Breakdown
}

// NewOrchestrator wires the orchestrator. timeout bounds the provider call;
// 8-10 seconds is the intended range.
func NewOrchestrator(qm *quota.Manager, client llm.Client, model string, timeout time.Duration, maxTokens int) *Orchestrator {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Orchestrator{
		quota:     qm,
		client:    client,
		model:     model,
		timeout:   timeout,
		maxTokens: maxTokens,
	}
}

// RequestBreakdown produces a breakdown for the task under the user's
// current cognitive state and attaches it to the task.
//
// Sequence: reserve quota, adapt, prompt, bounded AI call. Any AI failure
// (timeout, transport, malformed response, cancellation) releases the
// reservation and degrades to the deterministic fallback. A denial returns
// early with no AI call made.
func (o *Orchestrator) RequestBreakdown(ctx context.Context, task *types.Task, state *types.CognitiveState) (*Result, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}

	res, err := o.quota.CheckAndReserve(ctx, task.UserID)
	if err != nil {
		if types.IsQuotaExceeded(err) {
			logging.Breakdown("request for task %s denied (remaining=%d)", task.ID, res.Remaining)
			return &Result{Denied: true, Remaining: res.Remaining, Tier: res.Tier}, nil
		}
		// Store unreachable: fail closed, no fallback. Granting a local
		// breakdown here would be fine, but granting an AI call would not,
		// and the caller cannot tell which side of the line it is on yet.
		return nil, err
	}

	adaptation := policy.Adapt(state)
	prompt := BuildPrompt(task, adaptation)

	b, aiErr := o.callAI(ctx, prompt)
	if aiErr != nil {
		// The reservation must be handed back even when the request's own
		// context is already cancelled, so the release runs on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if relErr := o.quota.Release(releaseCtx, task.UserID); relErr != nil {
			logging.Breakdown("release after AI failure also failed for %s: %v", task.UserID, relErr)
		}
		logging.Breakdown("AI path failed for task %s, using fallback: %v", task.ID, aiErr)
		b = Fallback(task, adaptation)
	}

	task.Breakdown = b
	task.UpdatedAt = time.Now()
	logging.Breakdown("task %s broken into %d steps (source=%s)", task.ID, len(b.Steps), b.Source)
	return &Result{Breakdown: b, Remaining: res.Remaining, Tier: res.Tier}, nil
}

// callAI performs the bounded provider call and parses the response.
func (o *Orchestrator) callAI(ctx context.Context, prompt string) (*types.Breakdown, error) {
	if o.client == nil {
		return nil, &types.AIServiceError{Op: "complete", Err: fmt.Errorf("no AI client configured")}
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	raw, err := o.client.Complete(callCtx, prompt, o.maxTokens)
	if err != nil {
		return nil, &types.AIServiceError{Op: "complete", Err: err}
	}

	b, err := parseResponse(raw, o.model)
	if err != nil {
		return nil, &types.AIServiceError{Op: "parse", Err: err}
	}
	return b, nil
}
