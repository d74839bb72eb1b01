// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pipeline executes fixed sequences of agent stages.
//
// A Stage binds an agent role to an instruction template, the context keys it
// reads and the single key it writes. Assemble checks that every placeholder
// and declared input is satisfiable at its position before anything runs, so
// a malformed pipeline fails with a ConfigurationError without a single
// provider call. The Runner then executes stages strictly in order, threading
// each output into the context of the stages after it and metering every call.
//
// The runner never commits anything: it returns the final context and the
// usage records, and the caller decides what to keep. A failed run returns
// only an error.
//
// # Usage
//
//	p, err := pipeline.Assemble([]pipeline.Stage{
//	    pipeline.BuildStage(planner, "Plan: {description}", "plan", "description"),
//	    pipeline.BuildStage(allocator, "Assign {plan} to {team}", "allocation", "plan", "team"),
//	}, "description", "team")
//	res, err := pipeline.NewRunner(provider.Echo{}).Run(ctx, p, map[string]string{
//	    "description": "Build a to-do app",
//	    "team":        "2 devs, 1 designer",
//	})
package pipeline
