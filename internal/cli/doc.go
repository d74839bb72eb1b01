// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and execution for crewplan.
//
// # Key Types
//
//   - Command: Enumeration of the CLI commands
//   - Args: Parsed global flags and the command's own arguments
//   - App: One invocation, wiring config, provider and session
//   - JSONResponse: Envelope for --json output
//
// # Usage
//
//	os.Exit(cli.Run(os.Args[1:], os.Stdout, os.Stderr))
//
// # Commands Overview
//
//   - plan: Planner then Allocator for a description and team
//   - status: Monitor then Reviewer for a status and deliverables
//   - run: both pipelines in one session, with optional report export
//   - shell: interactive session sharing one report and usage ledger
//   - roles, config, version, help
//
// Exit codes: 2 for usage and validation errors, 3 for configuration
// errors, 4 for rejected credentials, 5 for provider failures and 8 for
// provider timeouts.
package cli
