// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"time"

	"github.com/jeranaias/crewplan/internal/pipeline"
	"github.com/jeranaias/crewplan/internal/telemetry"
)

// JSONResponse is the envelope every command prints in --json mode.
type JSONResponse struct {
	Success   bool    `json:"success"`
	Data      any     `json:"data"`
	Error     *string `json:"error"`
	ErrorType string  `json:"error_type,omitempty"`
	Field     string  `json:"field,omitempty"`
	Timestamp string  `json:"timestamp"`
	Command   string  `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates an error response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response to w.
func (r *JSONResponse) Write(w io.Writer) error {
	return jsonEncode(w, r)
}

// =============================================================================
// COMMAND DATA
// =============================================================================

// RunData is the --json payload of plan, status and run.
type RunData struct {
	SessionID  string            `json:"session_id"`
	Runs       []RunSummary      `json:"runs"`
	Usage      telemetry.Summary `json:"usage"`
	ExportPath string            `json:"export_path,omitempty"`
}

// RunSummary describes one committed pipeline run.
type RunSummary struct {
	Pipeline string        `json:"pipeline"`
	RunID    string        `json:"run_id"`
	Stages   []StageData   `json:"stages"`
	Duration time.Duration `json:"duration_ns"`
}

// StageData describes one stage of a run.
type StageData struct {
	Stage     int     `json:"stage"`
	Role      string  `json:"role"`
	OutputKey string  `json:"output_key"`
	Output    string  `json:"output"`
	Units     int64   `json:"units"`
	Cost      float64 `json:"cost"`
	Attempts  int     `json:"attempts"`
}

func newRunSummary(name string, res *pipeline.Result) RunSummary {
	rs := RunSummary{Pipeline: name, RunID: res.RunID, Duration: res.Duration}
	for _, st := range res.Stages {
		rs.Stages = append(rs.Stages, StageData{
			Stage:     st.Stage,
			Role:      st.Role,
			OutputKey: st.OutputKey,
			Output:    st.Output,
			Units:     st.Usage.Units,
			Cost:      st.Usage.Cost,
			Attempts:  st.Attempts,
		})
	}
	return rs
}

// VersionData is the --json payload of version.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}
