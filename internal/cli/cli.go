// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdHelp Command = iota
	CmdPlan
	CmdStatus
	CmdRun
	CmdRoles
	CmdShell
	CmdConfig
	CmdVersion
	CmdUnknown
)

var commandNames = map[Command]string{
	CmdHelp:    "help",
	CmdPlan:    "plan",
	CmdStatus:  "status",
	CmdRun:     "run",
	CmdRoles:   "roles",
	CmdShell:   "shell",
	CmdConfig:  "config",
	CmdVersion: "version",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	Model      string
	Offline    bool
	Verbose    bool
	JSON       bool
	NoSpinner  bool

	// Name is the command word as typed.
	Name string

	// Raw holds the arguments after the command word, global flags removed.
	Raw []string
}

const usageText = `crewplan - multi-agent project planning and status analysis
Version: %s

USAGE:
  crewplan [global flags] <command> [flags]

COMMANDS:
  plan      Plan a project: Project Planner, then Task Allocator
              --description TEXT   Project description (or --description-file PATH)
              --team TEXT          Team members and skills (or --team-file PATH)
  status    Analyse progress: Progress Monitor, then Quality Reviewer
              --status TEXT        Current status (or --status-file PATH)
              --deliverables TEXT  Deliverables to review (or --deliverables-file PATH)
  run       Both pipelines in one session, then an optional report
              (all flags of plan and status)
              --export DIR         Write the report to DIR
              --format FMT         markdown (default), html or json
  roles     List the agent roles
  shell     Interactive session with a shared report and usage ledger
  config    show [key] | init [--force] | path
  version   Show version information
  help      Show this help

GLOBAL FLAGS:
  --config PATH   Config file, .toml, .yaml or .json (default ~/.crewplan/config.toml)
  --model NAME    Model id or alias (sonnet, haiku, opus, gpt4o, auto)
  --offline       Use the built-in echo provider; no network, no API key
  --verbose       Log requests and stage lifecycle to stderr
  --json          Machine-readable output
  --no-spinner    Plain progress lines instead of the spinner

ENVIRONMENT:
  OPENROUTER_API_KEY         API key (a .env file in the working directory is read)
  CREWPLAN_MODEL             Model override
  CREWPLAN_BASE_URL          API base URL override
  CREWPLAN_TIMEOUT           Per-call timeout, seconds or duration
  CREWPLAN_RATE_PER_MILLION  Cost per million units

EXAMPLES:
  crewplan plan --description "Build a to-do app" --team "Ana: backend, Bo: frontend"
  crewplan --offline run --description-file brief.md --team-file team.txt \
      --status "Sprint 2 of 4" --deliverables "API, UI mockups" --export reports
`

// PrintUsage writes the usage text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "crewplan version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
	fmt.Fprintf(w, "  Platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func versionData() VersionData {
	return VersionData{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Parse splits argv (without the program name) into a command and its args.
func Parse(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdHelp, args
	}

	args.Name = remaining[0]
	args.Raw = remaining[1:]

	switch strings.ToLower(args.Name) {
	case "plan":
		return CmdPlan, args
	case "status":
		return CmdStatus, args
	case "run":
		return CmdRun, args
	case "roles", "agents":
		return CmdRoles, args
	case "shell", "repl":
		return CmdShell, args
	case "config":
		return CmdConfig, args
	case "version", "-v", "--version":
		return CmdVersion, args
	case "help", "-h", "--help":
		return CmdHelp, args
	default:
		return CmdUnknown, args
	}
}

// parseGlobalFlags extracts global flags wherever they appear.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	var args Args

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--offline":
			args.Offline = true
		case arg == "--verbose":
			args.Verbose = true
		case arg == "--json":
			args.JSON = true
		case arg == "--no-spinner":
			args.NoSpinner = true
		case arg == "--model" || arg == "--config":
			if i+1 < len(argv) {
				i++
				if arg == "--model" {
					args.Model = argv[i]
				} else {
					args.ConfigPath = argv[i]
				}
			}
		case strings.HasPrefix(arg, "--model="):
			args.Model = strings.TrimPrefix(arg, "--model=")
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			remaining = append(remaining, arg)
		}
	}

	return remaining, args
}
