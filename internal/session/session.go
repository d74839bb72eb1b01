// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/crewplan/internal/agent"
	"github.com/jeranaias/crewplan/internal/pipeline"
	"github.com/jeranaias/crewplan/internal/provider"
	"github.com/jeranaias/crewplan/internal/report"
	"github.com/jeranaias/crewplan/internal/telemetry"
)

// ErrRunInProgress is returned when an entry point is called while another
// run of the same session has not finished.
var ErrRunInProgress = errors.New("a pipeline run is already in progress for this session")

// =============================================================================
// CONFIG
// =============================================================================

// Config holds configuration for a session.
type Config struct {
	// InlineWindow is the recent-records window for UsageSummary (default: 5).
	InlineWindow int

	// ExportWindow is the recent-records window for Snapshot (default: 10).
	ExportWindow int

	// Title is the report heading.
	Title string

	// RunnerOptions configure the pipeline runner (timeout, retries, estimator).
	RunnerOptions []pipeline.Option
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		InlineWindow: telemetry.DefaultInlineWindow,
		ExportWindow: telemetry.DefaultExportWindow,
		Title:        report.DefaultTitle,
	}
}

// =============================================================================
// SESSION
// =============================================================================

// Session is the orchestrator for one user session. It owns the usage
// ledger and report state; nothing else writes to them.
type Session struct {
	id        string
	startTime time.Time
	cfg       Config
	catalog   agent.Catalog
	runner    *pipeline.Runner

	// commitMu makes a commit to ledger and state appear atomic to readers.
	commitMu sync.RWMutex
	ledger   *telemetry.UsageLedger
	state    *report.State

	running  atomic.Bool
	progress atomic.Pointer[pipeline.ProgressFunc]
}

// New creates a session that generates text with p.
func New(p provider.Provider, cfg Config) (*Session, error) {
	if p == nil {
		return nil, &pipeline.ConfigurationError{Reason: "no generation provider configured"}
	}
	if cfg.InlineWindow <= 0 {
		cfg.InlineWindow = telemetry.DefaultInlineWindow
	}
	if cfg.ExportWindow <= 0 {
		cfg.ExportWindow = telemetry.DefaultExportWindow
	}
	if cfg.Title == "" {
		cfg.Title = report.DefaultTitle
	}

	s := &Session{
		id:        uuid.New().String(),
		startTime: time.Now(),
		cfg:       cfg,
		catalog:   agent.NewCatalog(),
		ledger:    telemetry.NewUsageLedger(),
		state:     report.NewState(),
	}

	opts := append([]pipeline.Option(nil), cfg.RunnerOptions...)
	opts = append(opts, pipeline.WithProgress(s.notify))
	s.runner = pipeline.NewRunner(p, opts...)

	log.Printf("session: %s started", s.id)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// StartTime returns when the session was created.
func (s *Session) StartTime() time.Time {
	return s.startTime
}

// Duration returns how long the session has existed.
func (s *Session) Duration() time.Duration {
	return time.Since(s.startTime)
}

// Catalog returns the agent roles used by this session.
func (s *Session) Catalog() agent.Catalog {
	return s.catalog
}

// Running reports whether a run is in flight.
func (s *Session) Running() bool {
	return s.running.Load()
}

// SetProgressFunc installs a callback for stage progress of subsequent runs.
// Pass nil to remove it.
func (s *Session) SetProgressFunc(fn pipeline.ProgressFunc) {
	if fn == nil {
		s.progress.Store(nil)
		return
	}
	s.progress.Store(&fn)
}

func (s *Session) notify(stage, total int, role string, phase pipeline.Phase) {
	if fn := s.progress.Load(); fn != nil {
		(*fn)(stage, total, role, phase)
	}
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

// RunProjectPlanning runs the Planner then the Allocator. On success the
// description, team, plan and allocation sections are committed together
// with one usage record per stage.
func (s *Session) RunProjectPlanning(ctx context.Context, description, team string) (*pipeline.Result, error) {
	description, err := requireText(keyDescription, description)
	if err != nil {
		return nil, err
	}
	team, err = requireText(keyTeam, team)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, "planning", planningStages(s.catalog), map[string]string{
		keyDescription: description,
		keyTeam:        team,
	}, keyDescription, keyTeam)
}

// AnalyzeProjectStatus runs the Monitor then the Reviewer. On success the
// status, deliverables, statusAnalysis and qualityReview sections are
// committed together with one usage record per stage.
func (s *Session) AnalyzeProjectStatus(ctx context.Context, status, deliverables string) (*pipeline.Result, error) {
	status, err := requireText(keyStatus, status)
	if err != nil {
		return nil, err
	}
	deliverables, err = requireText(keyDeliverables, deliverables)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, "status", statusStages(s.catalog), map[string]string{
		keyStatus:       status,
		keyDeliverables: deliverables,
	}, keyStatus, keyDeliverables)
}

// run assembles and executes one pipeline and commits its result.
func (s *Session) run(ctx context.Context, name string, stages []pipeline.Stage, inputs map[string]string, initialKeys ...string) (*pipeline.Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	p, err := pipeline.Assemble(stages, initialKeys...)
	if err != nil {
		return nil, err
	}

	res, err := s.runner.Run(ctx, p, inputs)
	if err != nil {
		log.Printf("session: %s %s run failed, nothing committed: %v", s.id, name, err)
		return nil, err
	}

	s.commit(res, append(initialKeys, p.OutputKeys()...))
	log.Printf("session: %s %s run %s committed (%d records)", s.id, name, res.RunID, len(res.Records))
	return res, nil
}

// commit writes the named context keys into the report and appends the
// run's records to the ledger as one step.
func (s *Session) commit(res *pipeline.Result, keys []string) {
	sections := make(map[report.Section]string, len(keys))
	for _, k := range keys {
		sections[report.Section(k)] = res.Context[k]
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	s.state.Merge(sections)
	s.ledger.AppendAll(res.Records)
}

// requireText trims and NFC-normalises v and rejects empty input.
func requireText(field, v string) (string, error) {
	v = norm.NFC.String(strings.TrimSpace(v))
	if v == "" {
		return "", &pipeline.ValidationError{Field: field}
	}
	return v, nil
}

// =============================================================================
// READ ACCESS
// =============================================================================

// UsageSummary returns the ledger summary with the inline window.
func (s *Session) UsageSummary() telemetry.Summary {
	return s.ledger.Summary(s.cfg.InlineWindow)
}

// UsageRecords returns a copy of every usage record in this session.
func (s *Session) UsageRecords() []telemetry.UsageRecord {
	return s.ledger.Records()
}

// Section returns the committed text of one report section.
func (s *Session) Section(sec report.Section) (string, bool) {
	return s.state.Get(sec)
}

// Snapshot compiles the current report state and ledger, using the export
// window for recent records.
func (s *Session) Snapshot() *report.Snapshot {
	s.commitMu.RLock()
	values := s.state.Values()
	summary := s.ledger.Summary(s.cfg.ExportWindow)
	s.commitMu.RUnlock()

	c := report.Compiler{Title: s.cfg.Title, SessionID: s.id, StartedAt: s.StartTime()}
	return c.Snapshot(values, summary)
}
