// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for the three failure kinds. Match with errors.Is.
var (
	// ErrConfiguration marks an unsatisfiable pipeline or missing credentials.
	ErrConfiguration = errors.New("configuration error")

	// ErrProvider marks a failed, timed out or cancelled provider call.
	ErrProvider = errors.New("provider error")

	// ErrProviderTimeout marks a provider call that exceeded its deadline.
	ErrProviderTimeout = errors.New("provider call timed out")

	// ErrValidation marks missing or empty caller input.
	ErrValidation = errors.New("validation error")
)

// =============================================================================
// CONFIGURATION ERROR
// =============================================================================

// ConfigurationError reports a pipeline that cannot run as assembled, or a
// missing precondition such as a provider credential.
type ConfigurationError struct {
	// Stage is the 1-based stage position, or 0 when not stage-specific.
	Stage  int
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	msg := "configuration error: "
	if e.Stage > 0 {
		msg += fmt.Sprintf("stage %d: ", e.Stage)
	}
	msg += e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Unwrap returns the underlying cause, if any.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configErrorf(stage int, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Stage: stage, Reason: fmt.Sprintf(format, args...)}
}

// =============================================================================
// PROVIDER ERROR
// =============================================================================

// ProviderError reports a failed provider call. The run that produced it
// committed nothing.
type ProviderError struct {
	// Stage is the 1-based position of the failing stage.
	Stage int

	// Role is the name of the agent whose call failed.
	Role string

	// Timeout is set when the per-call deadline expired.
	Timeout bool

	// Attempts is the number of calls made for this stage.
	Attempts int

	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	what := "failed"
	if e.Timeout {
		what = "timed out"
	}
	return fmt.Sprintf("provider error: stage %d (%s) %s: %v", e.Stage, e.Role, what, e.Err)
}

// Is matches ErrProvider, and ErrProviderTimeout for timeouts.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider || (e.Timeout && target == ErrProviderTimeout)
}

// Unwrap returns the provider's error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// =============================================================================
// VALIDATION ERROR
// =============================================================================

// ValidationError reports empty or missing caller input.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("validation error: %s is required", e.Field)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
