// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/crewplan/internal/report"
	"github.com/jeranaias/crewplan/internal/telemetry"
)

var testTime = time.Date(2025, 6, 1, 14, 30, 5, 0, time.UTC)

func testSnapshot() *report.Snapshot {
	ledger := telemetry.NewUsageLedger()
	ledger.Append(telemetry.UsageRecord{Timestamp: testTime, Operation: "Project Planner", Units: 1500, Cost: 0.0135})
	ledger.Append(telemetry.UsageRecord{Timestamp: testTime, Operation: "Task Allocator", Units: 500, Cost: 0.0045})

	c := report.Compiler{SessionID: "sess-1", StartedAt: testTime.Add(-time.Hour), Now: func() time.Time { return testTime }}
	return c.Snapshot(map[report.Section]string{
		report.SectionDescription: "Build a <to-do> app",
		report.SectionTeam:        "2 devs, 1 designer",
		report.SectionPlan:        "Phase 1\nDesign\n\n```go\nfunc main() {}\n```\n\nUse `go test`.",
	}, ledger.Summary(telemetry.DefaultExportWindow))
}

func TestMarkdownExporter(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(testSnapshot())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	md := string(out)

	for _, want := range []string{
		"---\ntitle: Project Management Report\n",
		"session: sess-1",
		"started: 2025-06-01T13:30:05Z",
		"date: 2025-06-01T14:30:05Z",
		"# Project Management Report",
		"## Project Description\n\nBuild a <to-do> app",
		"## Team",
		"## Project Plan",
		"| Total Units Used | 2,000 |",
		"| Estimated Cost | $0.0180 |",
		"| Operations Performed | 2 |",
		"## Operation History",
		"| 14:30:05 | Project Planner | 1500 | $0.0135 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}

	if strings.Contains(md, "Status Analysis") {
		t.Error("absent sections must not be rendered")
	}
	if strings.Index(md, "## Project Description") > strings.Index(md, "## Project Plan") {
		t.Error("sections out of report order")
	}
}

func TestMarkdownExporter_NoMetadataNoHistory(t *testing.T) {
	out, err := NewMarkdownExporter(&Options{}).Export(testSnapshot())
	if err != nil {
		t.Fatal(err)
	}
	md := string(out)
	if strings.HasPrefix(md, "---") {
		t.Error("frontmatter should be omitted")
	}
	if strings.Contains(md, "Operation History") {
		t.Error("history should be omitted")
	}
	if !strings.Contains(md, "Token Usage Summary") {
		t.Error("usage summary is always rendered")
	}
}

func TestHTMLExporter(t *testing.T) {
	out, err := NewHTMLExporter(&Options{IncludeMetadata: true, IncludeHistory: true, Theme: "dark"}).Export(testSnapshot())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	page := string(out)

	for _, want := range []string{
		"<!DOCTYPE html>",
		"<title>Project Management Report</title>",
		`<body class="dark-theme">`,
		"Build a &lt;to-do&gt; app",
		`<section class="section input-section" id="description">`,
		`<section class="section agent-section" id="plan">`,
		`<code class="language-go">func main() {}</code>`,
		`<code class="inline-code">go test</code>`,
		"<p>Phase 1<br>\nDesign</p>",
		"<td>Total Units Used</td><td>2,000</td>",
		"<td>Task Allocator</td>",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("html missing %q", want)
		}
	}
	if strings.Contains(page, "<to-do>") {
		t.Error("section text must be HTML-escaped")
	}
}

func TestHTMLExporter_UnknownThemeFallsBack(t *testing.T) {
	out, err := NewHTMLExporter(&Options{Theme: "neon"}).Export(testSnapshot())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `<body class="light-theme">`) {
		t.Error("unknown theme should fall back to light")
	}
}

func TestJSONExporter(t *testing.T) {
	out, err := NewJSONExporter(nil).Export(testSnapshot())
	if err != nil {
		t.Fatal(err)
	}

	var decoded report.Snapshot
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded.Sections) != 3 {
		t.Errorf("sections = %d, want 3", len(decoded.Sections))
	}
	if decoded.Usage.TotalUnits != 2000 {
		t.Errorf("total units = %d, want 2000", decoded.Usage.TotalUnits)
	}
}

func TestExportersRejectNil(t *testing.T) {
	for _, f := range Formats() {
		exp, err := ForFormat(f, nil)
		if err != nil {
			t.Fatalf("ForFormat(%q) error = %v", f, err)
		}
		if _, err := exp.Export(nil); !errors.Is(err, ErrNilSnapshot) {
			t.Errorf("%s: Export(nil) error = %v, want ErrNilSnapshot", f, err)
		}
	}
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantExt string
		wantErr bool
	}{
		{"markdown", ".md", false},
		{"MD", ".md", false},
		{"", ".md", false},
		{"html", ".html", false},
		{"json", ".json", false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		exp, err := ForFormat(tt.format, nil)
		if (err != nil) != tt.wantErr {
			t.Errorf("ForFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			continue
		}
		if err == nil && exp.FileExtension() != tt.wantExt {
			t.Errorf("ForFormat(%q).FileExtension() = %q, want %q", tt.format, exp.FileExtension(), tt.wantExt)
		}
	}
}

func TestExportToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	path, err := ExportToFile(testSnapshot(), NewMarkdownExporter(nil), &Options{OutputDir: dir, IncludeMetadata: true})
	if err != nil {
		t.Fatalf("ExportToFile() error = %v", err)
	}

	if want := filepath.Join(dir, "project_report_20250601_143005.md"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "# Project Management Report") {
		t.Error("exported file has unexpected content")
	}

	if _, err := ExportToFile(nil, NewJSONExporter(nil), nil); !errors.Is(err, ErrNilSnapshot) {
		t.Errorf("ExportToFile(nil) error = %v", err)
	}
}

func TestEscapeYAML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a: b", `"a: b"`},
		{"line\nbreak", `"line\nbreak"`},
		{`quote"d`, `"quote\"d"`},
	}
	for _, tt := range tests {
		if got := escapeYAML(tt.in); got != tt.want {
			t.Errorf("escapeYAML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
