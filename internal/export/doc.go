// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders report snapshots to files.
//
// Each exporter turns a *report.Snapshot into a byte stream. Only the
// sections present in the snapshot are rendered; the usage summary and the
// recent operation history always follow them.
//
// # Key Types
//
//   - Exporter: interface implemented by every format
//   - Options: output directory, theme and metadata switches
//
// # Supported Formats
//
//   - Markdown: YAML frontmatter plus headed sections and usage tables
//   - HTML: self-contained page with embedded CSS and a theme toggle
//   - JSON: the snapshot itself, machine-readable
//
// # Usage
//
//	exp, err := export.ForFormat("markdown", nil)
//	path, err := export.ExportToFile(sess.Snapshot(), exp, &export.Options{OutputDir: "reports"})
package export
