// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/crewplan/internal/agent"
	"github.com/jeranaias/crewplan/internal/pipeline"
	"github.com/jeranaias/crewplan/internal/report"
	"github.com/jeranaias/crewplan/internal/telemetry"
	"github.com/jeranaias/crewplan/internal/util"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdownRenderer renders agent output, which is usually markdown.
type markdownRenderer struct {
	tr *glamour.TermRenderer
}

// newMarkdownRenderer returns a renderer, or a pass-through one when
// rendering is disabled or glamour cannot initialise.
func newMarkdownRenderer(enabled bool, width int) *markdownRenderer {
	if !enabled {
		return &markdownRenderer{}
	}
	if width > MaxRenderWidth {
		width = MaxRenderWidth
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &markdownRenderer{}
	}
	return &markdownRenderer{tr: tr}
}

// Render returns content rendered for the terminal. Rendering errors fall
// back to the raw text.
func (r *markdownRenderer) Render(content string) string {
	if r == nil || r.tr == nil {
		return strings.TrimRight(content, "\n") + "\n"
	}
	out, err := r.tr.Render(content)
	if err != nil {
		return strings.TrimRight(content, "\n") + "\n"
	}
	return out
}

// =============================================================================
// RUN OUTPUT
// =============================================================================

// renderResult writes each stage's output under its section title.
func renderResult(w io.Writer, md *markdownRenderer, res *pipeline.Result) {
	for _, st := range res.Stages {
		title := report.Section(st.OutputKey).Title()
		fmt.Fprintln(w, RenderConditional(SectionStyle, fmt.Sprintf("## %s  (%s)", title, st.Role)))
		fmt.Fprint(w, md.Render(st.Output))
	}
}

// renderSummary writes the inline usage summary block.
func renderSummary(w io.Writer, s telemetry.Summary) {
	fmt.Fprintln(w)
	lines := strings.Split(s.Format(), "\n")
	if len(lines) > 0 {
		lines[0] = RenderConditional(TitleStyle, lines[0])
	}
	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

// =============================================================================
// USAGE TABLE
// =============================================================================

const (
	colTime      = 10
	colOperation = 22
	colUnits     = 10
	colCost      = 10
)

// renderUsageTable writes every ledger record as an aligned table followed
// by the totals.
func renderUsageTable(w io.Writer, records []telemetry.UsageRecord, s telemetry.Summary) {
	if len(records) == 0 {
		fmt.Fprintln(w, RenderConditional(DimStyle, "No usage recorded yet."))
		return
	}

	header := util.PadRight("Time", colTime) + util.PadRight("Operation", colOperation) +
		padLeft("Units", colUnits) + padLeft("Cost", colCost)
	fmt.Fprintln(w, RenderConditional(TitleStyle, header))
	fmt.Fprintln(w, RenderConditional(SeparatorStyle, strings.Repeat("-", colTime+colOperation+colUnits+colCost)))

	for _, rec := range records {
		fmt.Fprintln(w,
			util.PadRight(rec.Timestamp.Format("15:04:05"), colTime)+
				util.PadRight(rec.Operation, colOperation)+
				padLeft(telemetry.FormatUnits(rec.Units), colUnits)+
				RenderConditional(CostStyle, padLeft(telemetry.FormatCost(rec.Cost), colCost)))
	}

	fmt.Fprintln(w, RenderConditional(SeparatorStyle, strings.Repeat("-", colTime+colOperation+colUnits+colCost)))
	fmt.Fprintln(w,
		util.PadRight("Total", colTime)+
			util.PadRight(fmt.Sprintf("%d operations", s.OperationCount), colOperation)+
			padLeft(telemetry.FormatUnits(s.TotalUnits), colUnits)+
			RenderConditional(CostStyle, padLeft(telemetry.FormatCost(s.TotalCost), colCost)))
}

func padLeft(s string, width int) string {
	s = util.TruncateWidth(s, width)
	if gap := width - util.StringWidth(s); gap > 0 {
		return strings.Repeat(" ", gap) + s
	}
	return s
}

// =============================================================================
// ROLES
// =============================================================================

// renderRoles writes the agent catalog.
func renderRoles(w io.Writer, c agent.Catalog) {
	fmt.Fprintln(w, RenderConditional(TitleStyle, "Agent Roles"))
	fmt.Fprintln(w, RenderSeparator(60))
	for _, r := range c.Roles() {
		fmt.Fprintf(w, "%s%s\n", RenderLabel(r.Kind.String()), RenderConditional(ValueStyle, r.Name))
		fmt.Fprintf(w, "%s%s\n", RenderLabel(""), RenderConditional(DimStyle, util.TruncateWidth(r.Objective, 72)))
	}
}
