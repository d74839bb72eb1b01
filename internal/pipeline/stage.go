// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"github.com/jeranaias/crewplan/internal/agent"
)

// Stage is one agent invocation in a pipeline. Stages are values; the
// builder methods return modified copies.
type Stage struct {
	// Role is the agent that runs this stage.
	Role agent.Role

	// Template is the instruction text with {name} placeholders.
	Template string

	// ExpectedOutput describes what a good answer looks like.
	ExpectedOutput string

	// Inputs are the context keys this stage reads.
	Inputs []string

	// OutputKey is the context key this stage writes.
	OutputKey string
}

// BuildStage creates a stage for role that renders template and writes its
// output under outputKey. Placeholders are checked by Assemble, not here.
func BuildStage(role agent.Role, template, outputKey string, inputs ...string) Stage {
	return Stage{
		Role:      role,
		Template:  template,
		Inputs:    append([]string(nil), inputs...),
		OutputKey: outputKey,
	}
}

// WithExpectedOutput returns a copy of s with the expected output set.
func (s Stage) WithExpectedOutput(desc string) Stage {
	s.Inputs = append([]string(nil), s.Inputs...)
	s.ExpectedOutput = desc
	return s
}
