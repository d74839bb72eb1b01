// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/crewplan/internal/config"
	"github.com/jeranaias/crewplan/internal/export"
	"github.com/jeranaias/crewplan/internal/session"
	"github.com/jeranaias/crewplan/internal/telemetry"
	"github.com/jeranaias/crewplan/internal/util"
)

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader reads one line of input. *liner.State implements it.
type lineReader interface {
	Prompt(prompt string) (string, error)
}

// shellInput wraps liner with a persistent history file.
type shellInput struct {
	line        *liner.State
	historyFile string
}

func newShellInput() *shellInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeCommand)

	in := &shellInput{line: line}
	if dir, err := config.ConfigDir(); err == nil {
		in.historyFile = filepath.Join(dir, "shell_history")
		if f, err := os.Open(in.historyFile); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}
	return in
}

// Prompt reads a line and records non-empty input in the history.
func (in *shellInput) Prompt(prompt string) (string, error) {
	text, err := in.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) != "" {
		in.line.AppendHistory(text)
	}
	return text, nil
}

// Close saves the history with 0600 permissions and restores the terminal.
func (in *shellInput) Close() {
	if in.historyFile != "" {
		var buf bytes.Buffer
		if _, err := in.line.WriteHistory(&buf); err == nil {
			if err := util.AtomicWriteFileWithDir(in.historyFile, buf.Bytes(), 0600, 0700); err != nil {
				log.Printf("shell: cannot save history: %v", err)
			}
		}
	}
	in.line.Close()
}

var shellCommands = []string{"plan", "status", "usage", "report", "roles", "help", "quit"}

func completeCommand(line string) []string {
	var out []string
	for _, c := range shellCommands {
		if strings.HasPrefix(c, strings.ToLower(line)) {
			out = append(out, c)
		}
	}
	return out
}

// =============================================================================
// SHELL
// =============================================================================

const shellHelp = `Commands:
  plan             Plan a project (prompts for description and team)
  status           Analyse status (prompts for status and deliverables)
  usage            Show every usage record with totals
  report [fmt] [dir]  Export the report (markdown, html, json)
  roles            List the agent roles
  help             Show this help
  quit             Leave the shell

Answer a prompt with @path to read the text from a file.
`

// shell is an interactive session. Every command shares one report and
// one usage ledger.
type shell struct {
	app  *App
	sess *session.Session
	in   lineReader
	out  io.Writer
}

func (a *App) cmdShell() error {
	if a.args.JSON {
		return &UsageError{Reason: "shell does not support --json"}
	}
	sess, err := a.newSession()
	if err != nil {
		return err
	}

	in := newShellInput()
	defer in.Close()

	sh := &shell{app: a, sess: sess, in: in, out: a.out}
	return sh.loop()
}

// loop reads commands until quit, EOF or Ctrl+C at the prompt.
func (sh *shell) loop() error {
	fmt.Fprintln(sh.out, RenderConditional(TitleStyle, "crewplan shell")+
		RenderConditional(DimStyle, fmt.Sprintf("  session %s  (type help)", sh.sess.ID())))

	for {
		input, err := sh.in.Prompt("crewplan> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(sh.out)
				sh.farewell()
				return nil
			}
			return err
		}

		fields := strings.Fields(input)
		if len(fields) == 0 {
			continue
		}

		quit, err := sh.execute(fields[0], fields[1:])
		if err != nil {
			DisplayError(sh.app.errOut, fields[0], err, false)
		}
		if quit {
			sh.farewell()
			return nil
		}
	}
}

// execute runs one shell command. Each pipeline run gets its own
// interrupt context so Ctrl+C cancels the run, not the shell.
func (sh *shell) execute(cmd string, args []string) (quit bool, err error) {
	switch strings.ToLower(cmd) {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		fmt.Fprint(sh.out, shellHelp)
	case "roles":
		renderRoles(sh.out, sh.sess.Catalog())
	case "usage":
		renderUsageTable(sh.out, sh.sess.UsageRecords(), sh.sess.UsageSummary())
	case "plan":
		return false, sh.runPipeline("Project description", "Team", sh.app.runPlanning)
	case "status":
		return false, sh.runPipeline("Current status", "Deliverables", sh.app.runStatus)
	case "report":
		return false, sh.export(args)
	default:
		return false, &UsageError{Reason: "unknown command: " + cmd, Usage: "help"}
	}
	return false, nil
}

type runFunc func(ctx context.Context, sess *session.Session, first, second string) (namedResult, error)

func (sh *shell) runPipeline(firstLabel, secondLabel string, run runFunc) error {
	first, err := sh.ask(firstLabel)
	if err != nil {
		return err
	}
	second, err := sh.ask(secondLabel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	nr, err := run(ctx, sh.sess, first, second)
	if err != nil {
		return err
	}
	renderResult(sh.out, sh.app.markdown(), nr.res)
	renderSummary(sh.out, sh.sess.UsageSummary())
	return nil
}

// ask prompts for one input. "@path" reads the file instead.
func (sh *shell) ask(label string) (string, error) {
	text, err := sh.in.Prompt(label + ": ")
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if path, ok := strings.CutPrefix(text, "@"); ok && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", &UsageError{Reason: "cannot read " + path, Err: err}
		}
		return string(data), nil
	}
	return text, nil
}

func (sh *shell) export(args []string) error {
	var format, dir string
	if len(args) > 0 {
		format = args[0]
	}
	if len(args) > 1 {
		dir = args[1]
	}

	snap := sh.sess.Snapshot()
	if !snap.HasContent() {
		return NewCommandError("report", "export", "nothing to report yet, run plan or status first", nil)
	}

	exporter, opts, err := sh.app.exporterFor(format, dir)
	if err != nil {
		return err
	}
	path, err := export.ExportToFile(snap, exporter, opts)
	if err != nil {
		return NewCommandError("report", "export", "cannot write report", err)
	}
	fmt.Fprintf(sh.out, "%s Report written to %s\n", RenderConditional(SuccessStyle, "[OK]"), path)
	return nil
}

func (sh *shell) farewell() {
	s := sh.sess.UsageSummary()
	fmt.Fprintln(sh.out, RenderConditional(DimStyle, fmt.Sprintf("Session %s: %d operations, %s units, %s in %s",
		sh.sess.ID(), s.OperationCount, telemetry.FormatUnits(s.TotalUnits), telemetry.FormatCost(s.TotalCost),
		sh.sess.Duration().Round(time.Second))))
}
