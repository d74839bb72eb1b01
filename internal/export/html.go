// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/jeranaias/crewplan/internal/report"
	"github.com/jeranaias/crewplan/internal/telemetry"
)

var (
	codeBlockRegex  = regexp.MustCompile("```([a-zA-Z0-9_+-]*)\n([\\s\\S]*?)```")
	inlineCodeRegex = regexp.MustCompile("`([^`]+)`")
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports snapshots to a self-contained HTML page.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export converts a snapshot to HTML.
func (e *HTMLExporter) Export(snap *report.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, ErrNilSnapshot
	}

	theme := e.options.Theme
	if theme != "dark" {
		theme = "light"
	}

	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", html.EscapeString(snap.Title)))
	sb.WriteString("    <meta name=\"generator\" content=\"crewplan\">\n")
	sb.WriteString(fmt.Sprintf("    <meta name=\"date\" content=\"%s\">\n", snap.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(e.getCSS())
	sb.WriteString("</head>\n")
	sb.WriteString(fmt.Sprintf("<body class=\"%s-theme\">\n", theme))
	sb.WriteString("    <div class=\"container\">\n")

	sb.WriteString(e.renderHeader(snap))

	sb.WriteString("        <main class=\"report\">\n")
	for _, sec := range snap.Sections {
		sb.WriteString(e.renderSection(sec))
	}
	sb.WriteString(e.renderUsage(snap.Usage))
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	sb.WriteString(fmt.Sprintf("            <p>Generated by <strong>crewplan</strong> on %s</p>\n",
		formatReportDate(snap.GeneratedAt)))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")

	sb.WriteString(e.getScript())
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderHeader(snap *report.Snapshot) string {
	var sb strings.Builder

	sb.WriteString("        <header class=\"header\">\n")
	sb.WriteString(fmt.Sprintf("            <h1>%s</h1>\n", html.EscapeString(snap.Title)))
	if e.options.IncludeMetadata {
		sb.WriteString("            <div class=\"metadata\">\n")
		sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Generated:</strong> %s</span>\n", formatTimestamp(snap.GeneratedAt)))
		if snap.SessionID != "" {
			sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Session:</strong> %s</span>\n", html.EscapeString(snap.SessionID)))
		}
		if !snap.StartedAt.IsZero() {
			sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Started:</strong> %s</span>\n", formatTimestamp(snap.StartedAt)))
		}
		sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Operations:</strong> %d</span>\n", snap.Usage.OperationCount))
		sb.WriteString("                <button class=\"theme-toggle\" onclick=\"toggleTheme()\" title=\"Toggle theme\">[Theme]</button>\n")
		sb.WriteString("            </div>\n")
	}
	sb.WriteString("        </header>\n")

	return sb.String()
}

func (e *HTMLExporter) renderSection(sec report.SectionView) string {
	var sb strings.Builder

	class := "section agent-section"
	if sec.Input {
		class = "section input-section"
	}
	sb.WriteString(fmt.Sprintf("            <section class=\"%s\" id=\"%s\">\n", class, html.EscapeString(string(sec.Name))))
	sb.WriteString(fmt.Sprintf("                <h2>%s</h2>\n", html.EscapeString(sec.Title)))
	sb.WriteString("                <div class=\"section-content\">\n")
	sb.WriteString(e.formatContent(sec.Body))
	sb.WriteString("\n                </div>\n")
	sb.WriteString("            </section>\n")

	return sb.String()
}

func (e *HTMLExporter) renderUsage(u report.UsageView) string {
	var sb strings.Builder

	sb.WriteString("            <section class=\"section usage-section\" id=\"usage\">\n")
	sb.WriteString("                <h2>Token Usage Summary</h2>\n")
	sb.WriteString("                <table class=\"usage-table\">\n")
	sb.WriteString("                    <tr><th>Metric</th><th>Value</th></tr>\n")
	sb.WriteString(fmt.Sprintf("                    <tr><td>Total Units Used</td><td>%s</td></tr>\n", telemetry.FormatUnits(u.TotalUnits)))
	sb.WriteString(fmt.Sprintf("                    <tr><td>Estimated Cost</td><td>%s</td></tr>\n", telemetry.FormatCost(u.TotalCost)))
	sb.WriteString(fmt.Sprintf("                    <tr><td>Operations Performed</td><td>%d</td></tr>\n", u.OperationCount))
	sb.WriteString("                </table>\n")

	if e.options.IncludeHistory && len(u.Recent) > 0 {
		sb.WriteString("                <h3>Operation History</h3>\n")
		sb.WriteString("                <table class=\"history-table\">\n")
		sb.WriteString("                    <tr><th>Time</th><th>Operation</th><th>Units</th><th>Cost</th></tr>\n")
		for _, r := range u.Recent {
			sb.WriteString(fmt.Sprintf("                    <tr><td>%s</td><td>%s</td><td>%d</td><td>%s</td></tr>\n",
				formatShortTimestamp(r.Timestamp),
				html.EscapeString(r.Operation),
				r.Units,
				telemetry.FormatCost(r.Cost)))
		}
		sb.WriteString("                </table>\n")
	}

	sb.WriteString("            </section>\n")
	return sb.String()
}

// =============================================================================
// CONTENT FORMATTING
// =============================================================================

// formatContent escapes agent text and converts fenced code, inline code
// and blank-line paragraphs to HTML.
func (e *HTMLExporter) formatContent(content string) string {
	content = html.EscapeString(strings.TrimSpace(content))

	content = codeBlockRegex.ReplaceAllStringFunc(content, func(match string) string {
		parts := codeBlockRegex.FindStringSubmatch(match)
		if len(parts) != 3 {
			return match
		}
		lang, code := parts[1], parts[2]

		langLabel := ""
		if lang != "" {
			langLabel = fmt.Sprintf("<div class=\"code-lang\">%s</div>", lang)
		}
		// Newlines inside the block are protected from paragraph splitting.
		code = strings.ReplaceAll(strings.TrimSpace(code), "\n", "&#10;")
		return fmt.Sprintf("<div class=\"code-block\">%s<pre><code class=\"language-%s\">%s</code></pre></div>",
			langLabel, lang, code)
	})

	content = inlineCodeRegex.ReplaceAllString(content, "<code class=\"inline-code\">$1</code>")

	var formatted []string
	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if strings.HasPrefix(para, "<div class=\"code-block\">") {
			formatted = append(formatted, para)
			continue
		}
		formatted = append(formatted, "<p>"+strings.ReplaceAll(para, "\n", "<br>\n")+"</p>")
	}

	return strings.Join(formatted, "\n")
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

// getCSS returns the embedded CSS for the HTML export.
func (e *HTMLExporter) getCSS() string {
	return `    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }

        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            --font-mono: "SF Mono", "Monaco", "Inconsolata", "Fira Code", "Source Code Pro", monospace;
        }

        .dark-theme {
            --bg-primary: #1a1b26;
            --bg-secondary: #24283b;
            --bg-tertiary: #414868;
            --text-primary: #c0caf5;
            --text-secondary: #a9b1d6;
            --border-color: #414868;
            --input-bg: #1f2335;
            --code-bg: #1a1b26;
            --accent: #7aa2f7;
        }

        .light-theme {
            --bg-primary: #ffffff;
            --bg-secondary: #f7f8fa;
            --bg-tertiary: #e1e4e8;
            --text-primary: #24292e;
            --text-secondary: #586069;
            --border-color: #e1e4e8;
            --input-bg: #f6f8fa;
            --code-bg: #f6f8fa;
            --accent: #1f3a93;
        }

        body {
            font-family: var(--font-sans);
            font-size: 16px;
            line-height: 1.6;
            color: var(--text-primary);
            background: var(--bg-primary);
            padding: 20px;
        }

        .container {
            max-width: 900px;
            margin: 0 auto;
            background: var(--bg-secondary);
            border-radius: 12px;
            box-shadow: 0 4px 6px rgba(0, 0, 0, 0.1);
            overflow: hidden;
        }

        .header {
            padding: 32px;
            background: var(--bg-tertiary);
            border-bottom: 2px solid var(--border-color);
        }

        .header h1 {
            font-size: 28px;
            color: var(--accent);
            margin-bottom: 16px;
        }

        .metadata {
            display: flex;
            flex-wrap: wrap;
            gap: 16px;
            font-size: 14px;
            color: var(--text-secondary);
            align-items: center;
        }

        .theme-toggle {
            margin-left: auto;
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 6px;
            padding: 6px 12px;
            cursor: pointer;
        }

        .report {
            padding: 24px 32px;
        }

        .section {
            margin-bottom: 28px;
        }

        .section h2 {
            font-size: 20px;
            color: var(--accent);
            border-bottom: 1px solid var(--border-color);
            padding-bottom: 6px;
            margin-bottom: 12px;
        }

        .input-section .section-content {
            background: var(--input-bg);
            border-left: 3px solid var(--accent);
            padding: 12px 16px;
        }

        .section-content p {
            margin-bottom: 12px;
        }

        .code-block {
            background: var(--code-bg);
            border: 1px solid var(--border-color);
            border-radius: 6px;
            margin: 12px 0;
            overflow-x: auto;
        }

        .code-lang {
            font-size: 12px;
            padding: 4px 12px;
            color: var(--text-secondary);
            border-bottom: 1px solid var(--border-color);
        }

        pre {
            padding: 12px;
            font-family: var(--font-mono);
            font-size: 14px;
            white-space: pre-wrap;
        }

        .inline-code {
            font-family: var(--font-mono);
            background: var(--code-bg);
            padding: 1px 4px;
            border-radius: 3px;
        }

        table {
            border-collapse: collapse;
            margin: 8px 0 16px;
            min-width: 50%;
        }

        th, td {
            border: 1px solid var(--border-color);
            padding: 6px 12px;
            text-align: left;
        }

        th {
            background: var(--accent);
            color: #ffffff;
        }

        .footer {
            padding: 16px 32px;
            font-size: 13px;
            text-align: center;
            color: var(--text-secondary);
            border-top: 1px solid var(--border-color);
        }
    </style>
`
}

// getScript returns the embedded JavaScript for theme toggling.
func (e *HTMLExporter) getScript() string {
	return `    <script>
        function toggleTheme() {
            const body = document.body;
            if (body.classList.contains('dark-theme')) {
                body.classList.remove('dark-theme');
                body.classList.add('light-theme');
                localStorage.setItem('theme', 'light');
            } else {
                body.classList.remove('light-theme');
                body.classList.add('dark-theme');
                localStorage.setItem('theme', 'dark');
            }
        }

        document.addEventListener('DOMContentLoaded', function() {
            const savedTheme = localStorage.getItem('theme');
            if (savedTheme) {
                document.body.classList.remove('dark-theme', 'light-theme');
                document.body.classList.add(savedTheme + '-theme');
            }
        });
    </script>
`
}
