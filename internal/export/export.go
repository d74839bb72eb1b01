// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/crewplan/internal/report"
	"github.com/jeranaias/crewplan/internal/util"
)

// ErrNilSnapshot is returned when an exporter is given no snapshot.
var ErrNilSnapshot = errors.New("snapshot is nil")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders a report snapshot.
type Exporter interface {
	// Export converts a snapshot to the target format and returns the content.
	Export(snap *report.Snapshot) ([]byte, error)

	// FileExtension returns the file extension, e.g. ".md".
	FileExtension() string

	// MimeType returns the MIME type of the exported format.
	MimeType() string
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is the directory where files will be saved.
	// Default: current working directory
	OutputDir string

	// IncludeMetadata includes the frontmatter / header block.
	IncludeMetadata bool

	// IncludeHistory includes the recent operations table.
	IncludeHistory bool

	// Theme for HTML export ("light" or "dark").
	// Default: "light"
	Theme string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:       ".",
		IncludeMetadata: true,
		IncludeHistory:  true,
		Theme:           "light",
	}
}

// Formats lists the supported format names.
func Formats() []string {
	return []string{"markdown", "html", "json"}
}

// ForFormat returns the exporter for a format name.
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "markdown", "md", "":
		return NewMarkdownExporter(opts), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile renders snap with exporter and writes it atomically to
// OutputDir as project_report_YYYYMMDD_HHMMSS<ext>. Returns the file path.
func ExportToFile(snap *report.Snapshot, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if snap == nil {
		return "", ErrNilSnapshot
	}

	content, err := exporter.Export(snap)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	outputPath := filepath.Join(dir, ReportFilename(snap.GeneratedAt, exporter.FileExtension()))

	if err := util.AtomicWriteFile(outputPath, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// ReportFilename returns the file name for a report generated at t.
func ReportFilename(t time.Time, ext string) string {
	if t.IsZero() {
		t = time.Now()
	}
	return fmt.Sprintf("project_report_%s%s", t.Format("20060102_150405"), ext)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for table rows.
func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}

// formatReportDate formats the generation date for headers and footers.
func formatReportDate(t time.Time) string {
	return t.Format("January 2, 2006 at 3:04 PM")
}
