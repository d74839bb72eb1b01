// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"sort"
	"strings"
)

// Pipeline is a validated, ordered list of stages. Build one with Assemble.
type Pipeline struct {
	stages      []Stage
	templates   []Template
	initialKeys []string
}

// Assemble validates stages against the keys the caller will supply in the
// initial context. Every check happens here, before any provider call:
//
//   - at least one stage, each with a role
//   - every template parses
//   - output keys are non-empty, unique and distinct from initial keys
//   - declared inputs exist at that position (initial keys plus earlier outputs)
//   - every placeholder is declared as an input or available at that position
func Assemble(stages []Stage, initialKeys ...string) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, configErrorf(0, "pipeline has no stages")
	}

	available := make(map[string]bool, len(initialKeys)+len(stages))
	for _, k := range initialKeys {
		if strings.TrimSpace(k) == "" {
			return nil, configErrorf(0, "empty initial context key")
		}
		if available[k] {
			return nil, configErrorf(0, "duplicate initial context key %q", k)
		}
		available[k] = true
	}

	p := &Pipeline{
		stages:      make([]Stage, len(stages)),
		templates:   make([]Template, len(stages)),
		initialKeys: append([]string(nil), initialKeys...),
	}

	for i, st := range stages {
		pos := i + 1
		if st.Role.IsZero() {
			return nil, configErrorf(pos, "stage has no role")
		}
		if strings.TrimSpace(st.OutputKey) == "" {
			return nil, configErrorf(pos, "%s: empty output key", st.Role.Name)
		}
		if available[st.OutputKey] {
			return nil, configErrorf(pos, "%s: output key %q already present in context", st.Role.Name, st.OutputKey)
		}

		declared := make(map[string]bool, len(st.Inputs))
		for _, in := range st.Inputs {
			if !available[in] {
				return nil, configErrorf(pos, "%s: input %q is not available at this position", st.Role.Name, in)
			}
			declared[in] = true
		}

		tmpl, err := ParseTemplate(st.Template)
		if err != nil {
			return nil, &ConfigurationError{Stage: pos, Reason: st.Role.Name + ": malformed template", Err: err}
		}
		for _, name := range tmpl.Placeholders() {
			if !declared[name] && !available[name] {
				return nil, configErrorf(pos, "%s: placeholder {%s} is neither a declared input nor available in context", st.Role.Name, name)
			}
		}

		st.Inputs = append([]string(nil), st.Inputs...)
		p.stages[i] = st
		p.templates[i] = tmpl
		available[st.OutputKey] = true
	}

	return p, nil
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	return len(p.stages)
}

// Stages returns a copy of the stages in execution order.
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// InitialKeys returns the keys the initial context must supply.
func (p *Pipeline) InitialKeys() []string {
	return append([]string(nil), p.initialKeys...)
}

// OutputKeys returns the keys written by the stages, in order.
func (p *Pipeline) OutputKeys() []string {
	keys := make([]string, len(p.stages))
	for i, st := range p.stages {
		keys[i] = st.OutputKey
	}
	return keys
}

// checkInitial verifies the caller supplied every declared key.
func (p *Pipeline) checkInitial(initial map[string]string) error {
	var missing []string
	for _, k := range p.initialKeys {
		if _, ok := initial[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return configErrorf(0, "initial context missing keys: %s", strings.Join(missing, ", "))
	}
	return nil
}
