// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
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

	"golang.org/x/term"

	"github.com/jeranaias/crewplan/internal/agent"
	"github.com/jeranaias/crewplan/internal/config"
	"github.com/jeranaias/crewplan/internal/export"
	"github.com/jeranaias/crewplan/internal/pipeline"
	"github.com/jeranaias/crewplan/internal/provider"
	"github.com/jeranaias/crewplan/internal/session"
)

// =============================================================================
// APP
// =============================================================================

// App runs one CLI invocation.
type App struct {
	args   Args
	cfg    *config.Config
	out    io.Writer
	errOut io.Writer

	stdoutTTY bool
	stderrTTY bool
}

// Run executes argv (without the program name) and returns the exit code.
func Run(argv []string, stdout, stderr io.Writer) int {
	cmd, args := Parse(argv)

	if args.Verbose {
		log.SetOutput(stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	app := &App{
		args:      args,
		out:       stdout,
		errOut:    stderr,
		stdoutTTY: isTerminal(stdout),
		stderrTTY: isTerminal(stderr),
	}

	err := app.dispatch(cmd)
	if err != nil {
		// JSON consumers read stdout only.
		target := stderr
		if args.JSON {
			target = stdout
		}
		DisplayError(target, cmd.String(), err, args.JSON)
	}
	return GetExitCode(err)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (a *App) dispatch(cmd Command) error {
	switch cmd {
	case CmdHelp:
		PrintUsage(a.out)
		return nil
	case CmdVersion:
		if a.args.JSON {
			return NewJSONResponse("version", versionData()).Write(a.out)
		}
		PrintVersion(a.out)
		return nil
	case CmdRoles:
		return a.cmdRoles()
	case CmdConfig:
		return a.cmdConfig()
	case CmdShell:
		return a.cmdShell()
	case CmdPlan, CmdStatus, CmdRun:
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		switch cmd {
		case CmdPlan:
			return a.cmdPlan(ctx)
		case CmdStatus:
			return a.cmdStatus(ctx)
		default:
			return a.cmdRun(ctx)
		}
	default:
		return &UsageError{Reason: fmt.Sprintf("unknown command: %s", a.args.Name), Usage: "crewplan help"}
	}
}

// =============================================================================
// WIRING
// =============================================================================

// loadConfig reads .env, then the config file, then applies --model.
func (a *App) loadConfig() error {
	if a.cfg != nil {
		return nil
	}
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("config: %v", err)
	}

	var (
		cfg *config.Config
		err error
	)
	if a.args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(a.args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return &pipeline.ConfigurationError{Reason: "cannot load configuration", Err: err}
	}

	if a.args.Model != "" {
		cfg.Provider.Model = a.args.Model
	}
	a.cfg = cfg
	return nil
}

// httpTimeoutSlack keeps the HTTP client timeout behind the runner's
// per-call deadline, so an expired call is reported as a timeout.
const httpTimeoutSlack = 5 * time.Second

// buildProvider returns the echo provider in offline mode, otherwise an
// OpenRouter client. A missing API key is a ConfigurationError.
func (a *App) buildProvider() (provider.Provider, error) {
	if a.args.Offline {
		log.Printf("provider: offline echo")
		return provider.Echo{}, nil
	}
	if err := a.cfg.RequireCredential(); err != nil {
		return nil, err
	}

	pc := a.cfg.Provider
	client := provider.NewOpenRouterClient(pc.APIKey).
		WithBaseURL(pc.BaseURL).
		WithModel(pc.Model).
		WithTemperature(pc.Temperature).
		WithTimeout(a.cfg.CallTimeout()+httpTimeoutSlack).
		WithRequestsPerMinute(pc.RequestsPerMinute)

	log.Printf("provider: openrouter model=%s key=%s", client.Model(), client.KeyFingerprint())
	return client, nil
}

// newSession builds a session from the loaded configuration.
func (a *App) newSession() (*session.Session, error) {
	if err := a.loadConfig(); err != nil {
		return nil, err
	}
	p, err := a.buildProvider()
	if err != nil {
		return nil, err
	}

	return session.New(p, session.Config{
		InlineWindow: a.cfg.Report.InlineWindow,
		ExportWindow: a.cfg.Report.ExportWindow,
		RunnerOptions: []pipeline.Option{
			pipeline.WithEstimator(a.cfg.Estimator()),
			pipeline.WithCallTimeout(a.cfg.CallTimeout()),
			pipeline.WithMaxRetries(a.cfg.Provider.MaxRetries),
		},
	})
}

// track shows progress for one run and returns the function that ends it.
// The display starts with the first stage, after input validation.
func (a *App) track(sess *session.Session) func() {
	rep := newLazyProgress(func() progressReporter {
		return newProgressReporter(a.errOut, a.args, a.stderrTTY)
	})
	sess.SetProgressFunc(rep.Update)
	return func() {
		sess.SetProgressFunc(nil)
		rep.Stop()
	}
}

func (a *App) markdown() *markdownRenderer {
	return newMarkdownRenderer(a.stdoutTTY, GetTerminalWidth())
}

// =============================================================================
// PIPELINE COMMANDS
// =============================================================================

type namedResult struct {
	name string
	res  *pipeline.Result
}

func (a *App) runPlanning(ctx context.Context, sess *session.Session, description, team string) (namedResult, error) {
	done := a.track(sess)
	res, err := sess.RunProjectPlanning(ctx, description, team)
	done()
	return namedResult{"planning", res}, err
}

func (a *App) runStatus(ctx context.Context, sess *session.Session, status, deliverables string) (namedResult, error) {
	done := a.track(sess)
	res, err := sess.AnalyzeProjectStatus(ctx, status, deliverables)
	done()
	return namedResult{"status", res}, err
}

func (a *App) cmdPlan(ctx context.Context) error {
	p := NewArgParser(a.args.Raw)
	inputs, err := readTextFlags(p, "description", "team")
	if err != nil {
		return err
	}
	sess, err := a.newSession()
	if err != nil {
		return err
	}

	nr, err := a.runPlanning(ctx, sess, inputs[0], inputs[1])
	if err != nil {
		return err
	}
	return a.emit("plan", sess, []namedResult{nr}, "")
}

func (a *App) cmdStatus(ctx context.Context) error {
	p := NewArgParser(a.args.Raw)
	inputs, err := readTextFlags(p, "status", "deliverables")
	if err != nil {
		return err
	}
	sess, err := a.newSession()
	if err != nil {
		return err
	}

	nr, err := a.runStatus(ctx, sess, inputs[0], inputs[1])
	if err != nil {
		return err
	}
	return a.emit("status", sess, []namedResult{nr}, "")
}

// cmdRun runs planning then status in one session and optionally exports
// the combined report. All four inputs are checked before any call.
func (a *App) cmdRun(ctx context.Context) error {
	p := NewArgParser(a.args.Raw)
	fields := []string{"description", "team", "status", "deliverables"}
	inputs, err := readTextFlags(p, fields...)
	if err != nil {
		return err
	}
	for i, v := range inputs {
		if strings.TrimSpace(v) == "" {
			return &pipeline.ValidationError{Field: fields[i]}
		}
	}

	sess, err := a.newSession()
	if err != nil {
		return err
	}

	var exporter export.Exporter
	var opts *export.Options
	if p.HasFlag("export") {
		exporter, opts, err = a.exporterFor(p.Flag("format"), p.Flag("export"))
		if err != nil {
			return err
		}
	}

	planning, err := a.runPlanning(ctx, sess, inputs[0], inputs[1])
	if err != nil {
		return err
	}
	status, err := a.runStatus(ctx, sess, inputs[2], inputs[3])
	if err != nil {
		return err
	}

	var exportPath string
	if exporter != nil {
		exportPath, err = export.ExportToFile(sess.Snapshot(), exporter, opts)
		if err != nil {
			return NewCommandError("run", "export", "cannot write report", err)
		}
	}
	return a.emit("run", sess, []namedResult{planning, status}, exportPath)
}

// exporterFor resolves a format and directory, falling back to the
// [report] config section.
func (a *App) exporterFor(format, dir string) (export.Exporter, *export.Options, error) {
	if format == "" {
		format = a.cfg.Report.Format
	}
	opts := export.DefaultOptions()
	opts.OutputDir = a.cfg.Report.OutputDir
	if dir != "" {
		opts.OutputDir = dir
	}
	opts.Theme = a.cfg.Report.Theme

	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return nil, nil, &UsageError{
			Reason: err.Error(),
			Usage:  "--format " + strings.Join(export.Formats(), "|"),
		}
	}
	return exporter, opts, nil
}

// emit prints the results of a command's runs.
func (a *App) emit(command string, sess *session.Session, runs []namedResult, exportPath string) error {
	if a.args.JSON {
		data := RunData{SessionID: sess.ID(), Usage: sess.UsageSummary(), ExportPath: exportPath}
		for _, nr := range runs {
			data.Runs = append(data.Runs, newRunSummary(nr.name, nr.res))
		}
		return NewJSONResponse(command, data).Write(a.out)
	}

	md := a.markdown()
	for _, nr := range runs {
		renderResult(a.out, md, nr.res)
	}
	renderSummary(a.out, sess.UsageSummary())
	if exportPath != "" {
		fmt.Fprintf(a.out, "\n%s Report written to %s\n", RenderConditional(SuccessStyle, "[OK]"), exportPath)
	}
	return nil
}

// readTextFlags reads each named text flag in order.
func readTextFlags(p *ArgParser, names ...string) ([]string, error) {
	out := make([]string, len(names))
	for i, name := range names {
		v, err := p.TextFlag(name)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// =============================================================================
// INFORMATIONAL COMMANDS
// =============================================================================

func (a *App) cmdRoles() error {
	catalog := agent.NewCatalog()
	if a.args.JSON {
		return NewJSONResponse("roles", catalog.Roles()).Write(a.out)
	}
	renderRoles(a.out, catalog)
	return nil
}

func (a *App) cmdConfig() error {
	p := NewArgParser(a.args.Raw)
	switch p.Subcommand() {
	case "", "show":
		return a.configShow(p.Positional(1))
	case "init":
		return a.configInit(p.BoolFlag("force"))
	case "path":
		path, err := a.configPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, path)
		return nil
	default:
		return &UsageError{
			Reason: "unknown config subcommand: " + p.Subcommand(),
			Usage:  "crewplan config show [key] | init [--force] | path",
		}
	}
}

func (a *App) configPath() (string, error) {
	if a.args.ConfigPath != "" {
		return a.args.ConfigPath, nil
	}
	return config.ConfigPathTOML()
}

func (a *App) configShow(key string) error {
	if err := a.loadConfig(); err != nil {
		return err
	}

	redacted := a.cfg.Clone()
	if redacted.Provider.APIKey != "" {
		redacted.Provider.APIKey = "[REDACTED]"
	}

	if key != "" {
		val, err := redacted.Get(key)
		if err != nil {
			return &UsageError{Reason: err.Error(), Usage: "keys: " + strings.Join(config.Keys(), ", ")}
		}
		if a.args.JSON {
			return NewJSONResponse("config", map[string]any{key: val}).Write(a.out)
		}
		fmt.Fprintf(a.out, "%v\n", val)
		return nil
	}

	if a.args.JSON {
		return NewJSONResponse("config", redacted).Write(a.out)
	}
	fmt.Fprintln(a.out, RenderConditional(TitleStyle, "crewplan configuration"))
	fmt.Fprintln(a.out, RenderSeparator(40))
	for _, k := range config.Keys() {
		val, _ := redacted.Get(k)
		fmt.Fprintf(a.out, "%s%v\n", RenderLabel(k), val)
	}
	return nil
}

func (a *App) configInit(force bool) error {
	path, err := a.configPath()
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); statErr == nil && !force {
		return NewCommandError("config", "init", "config file already exists (use --force)", errors.New(path))
	}
	save := config.SaveTOML
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		save = config.SaveYAML
	case ".json":
		save = config.SaveJSON
	}
	if err := save(config.Default(), path); err != nil {
		return NewCommandError("config", "init", "cannot write config file", err)
	}

	if a.args.JSON {
		return NewJSONResponse("config", map[string]string{"path": path}).Write(a.out)
	}
	fmt.Fprintf(a.out, "%s Wrote %s\n", RenderConditional(SuccessStyle, "[OK]"), path)
	return nil
}
