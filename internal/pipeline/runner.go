// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jeranaias/crewplan/internal/provider"
	"github.com/jeranaias/crewplan/internal/telemetry"
)

const (
	// DefaultCallTimeout bounds a single provider call.
	DefaultCallTimeout = 120 * time.Second

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay caps the backoff delay.
	retryMaxDelay = 10 * time.Second
)

// =============================================================================
// PROGRESS CALLBACK
// =============================================================================

// Phase is a stage lifecycle event reported to a ProgressFunc.
type Phase string

const (
	PhaseStarted   Phase = "started"
	PhaseRetrying  Phase = "retrying"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// ProgressFunc is called as stages start and finish. stage is 1-based.
type ProgressFunc func(stage, total int, role string, phase Phase)

// =============================================================================
// RESULT
// =============================================================================

// StageResult is the outcome of one successful stage.
type StageResult struct {
	Stage        int                `json:"stage"`
	Role         string             `json:"role"`
	OutputKey    string             `json:"output_key"`
	Instructions string             `json:"instructions"`
	Output       string             `json:"output"`
	Usage        telemetry.Estimate `json:"usage"`
	Attempts     int                `json:"attempts"`
	Duration     time.Duration      `json:"duration"`
}

// Result is the outcome of a fully successful run.
type Result struct {
	RunID    string                  `json:"run_id"`
	Context  map[string]string       `json:"context"`
	Stages   []StageResult           `json:"stages"`
	Records  []telemetry.UsageRecord `json:"records"`
	Duration time.Duration           `json:"duration"`
}

// Output returns the context value written under key.
func (r *Result) Output(key string) string {
	return r.Context[key]
}

// Final returns the output of the last stage.
func (r *Result) Final() string {
	if len(r.Stages) == 0 {
		return ""
	}
	return r.Stages[len(r.Stages)-1].Output
}

// =============================================================================
// RUNNER
// =============================================================================

// Runner executes pipelines against a provider. A Runner holds no per-run
// state and may be shared.
type Runner struct {
	provider   provider.Provider
	estimator  telemetry.CostEstimator
	timeout    time.Duration
	maxRetries int
	onProgress ProgressFunc
	now        func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithEstimator sets the cost estimator.
func WithEstimator(e telemetry.CostEstimator) Option {
	return func(r *Runner) { r.estimator = e }
}

// WithCallTimeout sets the per-call deadline. Non-positive values keep the default.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxRetries sets how many extra attempts a stage gets after a transient
// provider failure. Zero disables retries.
func WithMaxRetries(n int) Option {
	return func(r *Runner) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Runner) { r.onProgress = fn }
}

// NewRunner creates a runner for p.
func NewRunner(p provider.Provider, opts ...Option) *Runner {
	r := &Runner{
		provider:  p,
		estimator: telemetry.NewCostEstimator(),
		timeout:   DefaultCallTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every stage of p in order. Each stage's instructions are
// rendered from the context built so far, sent to the provider, and the
// output is added to the context under the stage's output key. Usage for
// each call is estimated over the rendered instructions plus the output.
//
// Run is all or nothing: on any failure it returns a nil Result and an
// error, and the caller must discard everything from this run.
func (r *Runner) Run(ctx context.Context, p *Pipeline, initial map[string]string) (*Result, error) {
	if p == nil {
		return nil, configErrorf(0, "nil pipeline")
	}
	if r.provider == nil {
		return nil, configErrorf(0, "no generation provider configured")
	}
	if err := p.checkInitial(initial); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	start := r.now()
	total := p.Len()

	values := make(map[string]string, len(p.initialKeys)+total)
	for _, k := range p.initialKeys {
		values[k] = initial[k]
	}

	res := &Result{
		RunID:   runID,
		Stages:  make([]StageResult, 0, total),
		Records: make([]telemetry.UsageRecord, 0, total),
	}

	log.Printf("pipeline: run %s started (%d stages)", runID, total)

	for i, st := range p.stages {
		pos := i + 1
		r.notify(pos, total, st.Role.Name, PhaseStarted)

		if err := ctx.Err(); err != nil {
			r.notify(pos, total, st.Role.Name, PhaseFailed)
			return nil, &ProviderError{Stage: pos, Role: st.Role.Name, Err: err}
		}

		instructions, err := p.templates[i].Render(values)
		if err != nil {
			// Assemble guarantees every placeholder is available.
			r.notify(pos, total, st.Role.Name, PhaseFailed)
			return nil, &ConfigurationError{Stage: pos, Reason: "render failed", Err: err}
		}

		req := provider.Request{
			RoleName:       st.Role.Name,
			Objective:      st.Role.Objective,
			Framing:        st.Role.Framing,
			Instructions:   instructions,
			ExpectedOutput: st.ExpectedOutput,
		}

		callStart := r.now()
		resp, attempts, err := r.call(ctx, pos, total, req)
		if err != nil {
			r.notify(pos, total, st.Role.Name, PhaseFailed)
			perr := &ProviderError{Stage: pos, Role: st.Role.Name, Attempts: attempts, Err: err}
			perr.Timeout = errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
			log.Printf("pipeline: run %s stage %d/%d %s failed: %v", runID, pos, total, st.Role.Name, err)
			return nil, perr
		}
		elapsed := r.now().Sub(callStart)

		inChars := utf8.RuneCountInString(instructions)
		outChars := utf8.RuneCountInString(resp.Text)
		est := r.estimator.Estimate(inChars + outChars)
		values[st.OutputKey] = resp.Text

		res.Stages = append(res.Stages, StageResult{
			Stage:        pos,
			Role:         st.Role.Name,
			OutputKey:    st.OutputKey,
			Instructions: instructions,
			Output:       resp.Text,
			Usage:        est,
			Attempts:     attempts,
			Duration:     elapsed,
		})
		res.Records = append(res.Records, telemetry.UsageRecord{
			Timestamp:   r.now(),
			RunID:       runID,
			Operation:   st.Role.Name,
			Units:       est.Units,
			Cost:        est.Cost,
			InputChars:  inChars,
			OutputChars: outChars,
			Duration:    elapsed,
		})

		log.Printf("pipeline: run %s stage %d/%d %s completed (units=%d)", runID, pos, total, st.Role.Name, est.Units)
		r.notify(pos, total, st.Role.Name, PhaseCompleted)
	}

	res.Context = values
	res.Duration = r.now().Sub(start)
	return res, nil
}

// call invokes the provider with a per-call deadline, retrying transient
// failures and expired deadlines up to maxRetries times. It returns the number of attempts made.
func (r *Runner) call(ctx context.Context, pos, total int, req provider.Request) (provider.Response, int, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			r.notify(pos, total, req.RoleName, PhaseRetrying)
			select {
			case <-ctx.Done():
				return provider.Response{}, attempt, ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		resp, err := r.provider.Generate(callCtx, req)
		timedOut := callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
		cancel()

		if err == nil {
			return resp, attempt + 1, nil
		}
		if timedOut && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		lastErr = err
		// An expired per-call deadline is retried while the run itself is live.
		if !timedOut && !provider.IsTransient(err) {
			return provider.Response{}, attempt + 1, err
		}
	}
	return provider.Response{}, r.maxRetries + 1, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (r *Runner) notify(stage, total int, role string, phase Phase) {
	if r.onProgress != nil {
		r.onProgress(stage, total, role, phase)
	}
}

// backoff returns the delay before retry attempt n (n >= 1).
func backoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}
