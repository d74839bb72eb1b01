// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides usage metering for crewplan.
//
// Every provider invocation made by a pipeline stage is metered: the
// CostEstimator turns character volume into approximate units and a dollar
// cost, and the UsageLedger accumulates the resulting records for the
// lifetime of a session.
//
// # Key Types
//
//   - CostEstimator: pure chars-to-units-to-dollars conversion
//   - UsageRecord: one metered operation, immutable once appended
//   - UsageLedger: append-only, session-scoped log with running totals
//   - Summary: totals plus a recent-records window for display and export
//
// # Usage
//
//	est := telemetry.NewCostEstimator()
//	e := est.EstimateText(instructions, output)
//
//	ledger := telemetry.NewUsageLedger()
//	ledger.Append(telemetry.UsageRecord{
//	    Operation: "Project Planner",
//	    Units:     e.Units,
//	    Cost:      e.Cost,
//	})
//	fmt.Println(ledger.Summary(telemetry.DefaultInlineWindow).Format())
//
// # Privacy
//
// Usage tracking is local-only. Prompt and response text are never stored,
// only their character counts.
package telemetry
