// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides the session-scoped orchestrator behind every
// front-end.
//
// A Session owns exactly one usage ledger and one report state. Its two entry
// points, RunProjectPlanning and AnalyzeProjectStatus, validate the caller's
// text, assemble a fixed pipeline and run it. Results are committed to the
// ledger and report only when every stage succeeded; a failed run leaves the
// session exactly as it was.
//
// # Key Types
//
//   - Session: orchestrator owning ledger, report state and runner
//   - Config: report windows and title
//
// # Usage
//
//	s, err := session.New(provider.Echo{}, session.DefaultConfig())
//	res, err := s.RunProjectPlanning(ctx, "Build a to-do app", "2 devs, 1 designer")
//	fmt.Print(s.UsageSummary().Format())
//	snap := s.Snapshot()
//
// Sessions are independent: two sessions never share a ledger or report, so
// they may run concurrently. Within one session only one run may be in
// flight; a second concurrent call fails with ErrRunInProgress.
package session
