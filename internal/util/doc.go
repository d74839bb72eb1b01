// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the crewplan packages.
//
// # Atomic Writes
//
// AtomicWriteFile writes through a temp file in the target directory,
// fsyncs it and renames it into place, so reports and config files are
// never left half written.
//
// # Display Width
//
// TruncateWidth, PadRight and StringWidth measure terminal cells with
// go-runewidth so CJK text and emoji line up in usage tables.
package util
