// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/crewplan/internal/report"
	"github.com/jeranaias/crewplan/internal/telemetry"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports snapshots to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a snapshot to Markdown.
func (e *MarkdownExporter) Export(snap *report.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, ErrNilSnapshot
	}

	var sb strings.Builder

	// YAML frontmatter with metadata
	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(snap.Title)))
		if snap.SessionID != "" {
			sb.WriteString(fmt.Sprintf("session: %s\n", snap.SessionID))
		}
		if !snap.StartedAt.IsZero() {
			sb.WriteString(fmt.Sprintf("started: %s\n", snap.StartedAt.Format(time.RFC3339)))
		}
		sb.WriteString(fmt.Sprintf("date: %s\n", snap.GeneratedAt.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("sections: %d\n", len(snap.Sections)))
		sb.WriteString(fmt.Sprintf("operations: %d\n", snap.Usage.OperationCount))
		sb.WriteString("generator: crewplan\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(snap.Title)))
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n\n", formatReportDate(snap.GeneratedAt)))

	for _, sec := range snap.Sections {
		sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdown(sec.Title)))
		sb.WriteString(strings.TrimSpace(sec.Body))
		sb.WriteString("\n\n")
	}

	sb.WriteString(e.formatUsage(snap.Usage))

	sb.WriteString("---\n\n")
	sb.WriteString(fmt.Sprintf("*Generated by crewplan on %s*\n", formatReportDate(snap.GeneratedAt)))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// formatUsage renders the usage summary and recent history tables.
func (e *MarkdownExporter) formatUsage(u report.UsageView) string {
	var sb strings.Builder

	sb.WriteString("## Token Usage Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|---|---|\n")
	sb.WriteString(fmt.Sprintf("| Total Units Used | %s |\n", telemetry.FormatUnits(u.TotalUnits)))
	sb.WriteString(fmt.Sprintf("| Estimated Cost | %s |\n", telemetry.FormatCost(u.TotalCost)))
	sb.WriteString(fmt.Sprintf("| Operations Performed | %d |\n\n", u.OperationCount))

	if e.options.IncludeHistory && len(u.Recent) > 0 {
		sb.WriteString("## Operation History\n\n")
		sb.WriteString("| Time | Operation | Units | Cost |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, r := range u.Recent {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s |\n",
				formatShortTimestamp(r.Timestamp),
				escapeTableCell(r.Operation),
				r.Units,
				telemetry.FormatCost(r.Cost)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	// Only escape characters that would break formatting in titles/headings
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeTableCell keeps a value on one table row.
func escapeTableCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

// escapeYAML escapes special YAML characters in values.
func escapeYAML(s string) string {
	// Quote if contains special characters (including backslash)
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
