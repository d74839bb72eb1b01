// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/crewplan/internal/config"
	"github.com/jeranaias/crewplan/internal/pipeline"
	"github.com/jeranaias/crewplan/internal/provider"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid usage or missing input text
	ExitUsageError = 2
	// ExitConfigError indicates bad configuration or a missing credential
	ExitConfigError = 3
	// ExitAuthError indicates the provider rejected the credential
	ExitAuthError = 4
	// ExitProviderError indicates a failed provider call
	ExitProviderError = 5
	// ExitTimeoutError indicates a provider call exceeded its deadline
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError reports a failed command with context.
type CommandError struct {
	Command string // e.g. "plan", "config"
	Action  string // e.g. "run", "export"
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError reports a malformed command line.
type UsageError struct {
	Reason string
	Usage  string // optional usage line
	Err    error
}

func (e *UsageError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Usage != "" {
		msg += "\nUsage: " + e.Usage
	}
	return msg
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// ErrMissingArgument reports a required positional argument.
func ErrMissingArgument(argName, usage string) error {
	return &UsageError{Reason: "missing required argument: " + argName, Usage: usage}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode maps an error to the process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	var cfgErrs config.ValidationErrors
	switch {
	case errors.As(err, &usageErr), errors.Is(err, pipeline.ErrValidation):
		return ExitUsageError
	case errors.Is(err, pipeline.ErrConfiguration), errors.As(err, &cfgErrs):
		return ExitConfigError
	case errors.Is(err, provider.ErrAuthFailed), errors.Is(err, provider.ErrNotConfigured):
		return ExitAuthError
	case errors.Is(err, pipeline.ErrProviderTimeout):
		return ExitTimeoutError
	case errors.Is(err, pipeline.ErrProvider):
		return ExitProviderError
	default:
		return ExitGeneralError
	}
}

// errorType names the error category in JSON output.
func errorType(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrValidation):
		return "validation_error"
	case errors.Is(err, pipeline.ErrConfiguration):
		return "configuration_error"
	case errors.Is(err, pipeline.ErrProviderTimeout):
		return "provider_timeout"
	case errors.Is(err, pipeline.ErrProvider):
		return "provider_error"
	}
	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return "usage_error"
	}
	return "error"
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError writes err to w as a styled line, or as a JSON error
// response in JSON mode.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	if err == nil {
		return
	}

	if jsonMode {
		resp := NewJSONErrorResponse(command, err)
		resp.ErrorType = errorType(err)
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			resp.Field = verr.Field
		}
		resp.Write(w)
		return
	}

	fmt.Fprintf(w, "%s %s\n", RenderConditional(ErrorStyle, "[ERROR]"), err.Error())

	var perr *pipeline.ProviderError
	if errors.As(err, &perr) {
		fmt.Fprintln(w, RenderConditional(DimStyle, "Nothing was added to the report or the usage ledger."))
	}
	if errors.Is(err, config.ErrMissingCredential) {
		fmt.Fprintln(w, RenderConditional(DimStyle, "Hint: run with --offline to use the built-in echo provider."))
	}
}

// jsonEncode writes v as indented JSON.
func jsonEncode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
