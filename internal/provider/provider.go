// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// =============================================================================
// REQUEST / RESPONSE
// =============================================================================

// Request is one agent turn sent to a generation backend.
type Request struct {
	// RoleName is the agent's display name, e.g. "Project Planner".
	RoleName string

	// Objective is what the agent is trying to achieve.
	Objective string

	// Framing is the agent's backstory and behaviour.
	Framing string

	// Instructions is the fully rendered task text.
	Instructions string

	// ExpectedOutput describes the shape of a good answer.
	ExpectedOutput string
}

// Response is the text produced for a Request.
type Response struct {
	Text             string
	Model            string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

// Provider generates text for a single agent turn. Implementations must be
// safe for concurrent use and must honour ctx cancellation.
type Provider interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// Func adapts an ordinary function to the Provider interface.
type Func func(ctx context.Context, req Request) (Response, error)

// Generate calls f(ctx, req).
func (f Func) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// =============================================================================
// MESSAGE BUILDING
// =============================================================================

// SystemPrompt renders the agent identity for the system message.
func (r Request) SystemPrompt() string {
	var sb strings.Builder
	if r.RoleName != "" {
		fmt.Fprintf(&sb, "You are the %s.", r.RoleName)
	}
	if r.Objective != "" {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "Your goal: %s.", strings.TrimSuffix(r.Objective, "."))
	}
	if r.Framing != "" {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(r.Framing)
	}
	return sb.String()
}

// UserPrompt renders the task text followed by the expected output.
func (r Request) UserPrompt() string {
	if r.ExpectedOutput == "" {
		return r.Instructions
	}
	return r.Instructions + "\n\nExpected output: " + r.ExpectedOutput
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

// transient is implemented by errors that know whether a retry may succeed.
type transient interface {
	Transient() bool
}

// IsTransient reports whether err is worth retrying: rate limiting,
// server-side failures and network errors such as a refused or reset
// connection. Cancellation and deadlines are never transient here; the
// runner decides about its own per-call deadline.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var t transient
	if errors.As(err, &t) {
		return t.Transient()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
