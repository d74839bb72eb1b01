// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/crewplan/internal/pipeline"
	"github.com/jeranaias/crewplan/internal/provider"
	"github.com/jeranaias/crewplan/internal/report"
)

// stub echoes "<role>:<instructions-length>" and records every request.
// fail, when set, is consulted first and may return an error for a call.
type stub struct {
	mu   sync.Mutex
	reqs []provider.Request
	fail func(call int, req provider.Request) error
}

func (s *stub) Generate(ctx context.Context, req provider.Request) (provider.Response, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	call := len(s.reqs)
	s.mu.Unlock()

	if s.fail != nil {
		if err := s.fail(call, req); err != nil {
			return provider.Response{}, err
		}
	}
	return provider.Echo{}.Generate(ctx, req)
}

func (s *stub) calls() []provider.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]provider.Request(nil), s.reqs...)
}

func newSession(t *testing.T, p provider.Provider) *Session {
	t.Helper()
	s, err := New(p, DefaultConfig())
	require.NoError(t, err)
	return s
}

func TestRunProjectPlanning_TodoApp(t *testing.T) {
	p := &stub{}
	s := newSession(t, p)

	res, err := s.RunProjectPlanning(context.Background(), "Build a to-do app", "2 devs, 1 designer")
	require.NoError(t, err)

	calls := p.calls()
	require.Len(t, calls, 2, "provider must be invoked exactly twice")
	assert.Equal(t, "Project Planner", calls[0].RoleName)
	assert.Equal(t, "Task Allocator", calls[1].RoleName)

	plannerOut := fmt.Sprintf("Project Planner:%d", utf8.RuneCountInString(calls[0].Instructions))
	assert.Contains(t, calls[1].Instructions, plannerOut, "planner output must be threaded into the allocator")
	assert.Contains(t, calls[1].Instructions, "2 devs, 1 designer")
	assert.Contains(t, calls[0].Instructions, "Build a to-do app")

	plan, ok := s.Section(report.SectionPlan)
	require.True(t, ok, "plan section must be populated")
	assert.Equal(t, plannerOut, plan)
	assert.Equal(t, plannerOut, res.Output("plan"))

	for _, sec := range []report.Section{report.SectionDescription, report.SectionTeam, report.SectionAllocation} {
		_, ok := s.Section(sec)
		assert.True(t, ok, "section %s should be committed", sec)
	}

	records := s.UsageRecords()
	require.Len(t, records, 2)
	assert.Equal(t, "Project Planner", records[0].Operation)
	assert.Equal(t, "Task Allocator", records[1].Operation)
	for _, r := range records {
		assert.GreaterOrEqual(t, r.Units, int64(0))
		assert.Equal(t, res.RunID, r.RunID)
	}
}

func TestRunProjectPlanning_NonASCIIMetering(t *testing.T) {
	s := newSession(t, provider.Echo{})

	res, err := s.RunProjectPlanning(context.Background(),
		"สร้างแอปพลิเคชันรายการสิ่งที่ต้องทำสำหรับทีมขนาดเล็ก",
		"นักพัฒนาสองคน และนักออกแบบหนึ่งคน")
	require.NoError(t, err)

	first := res.Stages[0]
	runes := utf8.RuneCountInString(first.Instructions)
	require.Less(t, runes, len(first.Instructions), "instructions must contain multi-byte text")
	assert.Equal(t, fmt.Sprintf("Project Planner:%d", runes), first.Output)

	var total int64
	for _, st := range res.Stages {
		want := int64((utf8.RuneCountInString(st.Instructions) + utf8.RuneCountInString(st.Output)) / 4)
		assert.Equal(t, want, st.Usage.Units, st.Role)
		total += want
	}
	assert.Equal(t, total, s.UsageSummary().TotalUnits)
}

func TestRunProjectPlanning_MonitorNotScheduled(t *testing.T) {
	p := &stub{}
	s := newSession(t, p)
	_, err := s.RunProjectPlanning(context.Background(), "d", "t")
	require.NoError(t, err)

	for _, c := range p.calls() {
		assert.NotEqual(t, "Progress Monitor", c.RoleName)
	}
	_, ok := s.Section(report.SectionStatusAnalysis)
	assert.False(t, ok)
}

func TestAnalyzeProjectStatus(t *testing.T) {
	p := &stub{}
	s := newSession(t, p)

	_, err := s.AnalyzeProjectStatus(context.Background(), "Backend 80% done", "API spec, wireframes")
	require.NoError(t, err)

	calls := p.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "Progress Monitor", calls[0].RoleName)
	assert.Equal(t, "Quality Reviewer", calls[1].RoleName)
	assert.Contains(t, calls[1].Instructions, "API spec, wireframes")
	assert.Contains(t, calls[1].Instructions, provider.EchoText(calls[0]))

	analysis, ok := s.Section(report.SectionStatusAnalysis)
	require.True(t, ok)
	assert.Equal(t, provider.EchoText(calls[0]), analysis)
	assert.Len(t, s.UsageRecords(), 2)
}

func TestValidation_NoProviderCalls(t *testing.T) {
	tests := []struct {
		name      string
		run       func(s *Session) error
		wantField string
	}{
		{"empty status", func(s *Session) error {
			_, err := s.AnalyzeProjectStatus(context.Background(), "", "deliverables")
			return err
		}, "status"},
		{"blank deliverables", func(s *Session) error {
			_, err := s.AnalyzeProjectStatus(context.Background(), "status", "  \n\t ")
			return err
		}, "deliverables"},
		{"empty description", func(s *Session) error {
			_, err := s.RunProjectPlanning(context.Background(), "", "team")
			return err
		}, "description"},
		{"empty team", func(s *Session) error {
			_, err := s.RunProjectPlanning(context.Background(), "desc", "")
			return err
		}, "team"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &stub{}
			s := newSession(t, p)

			err := tt.run(s)
			require.Error(t, err)
			assert.True(t, errors.Is(err, pipeline.ErrValidation), "error %v should be a validation error", err)

			var verr *pipeline.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.Field)

			assert.Empty(t, p.calls(), "no provider call may happen")
			assert.Equal(t, 0, s.UsageSummary().OperationCount)
			assert.False(t, s.Snapshot().HasContent())
		})
	}
}

func TestAtomicity_StageTwoFailure(t *testing.T) {
	boom := errors.New("reviewer backend down")
	p := &stub{}
	s := newSession(t, p)

	_, err := s.RunProjectPlanning(context.Background(), "Build a to-do app", "2 devs")
	require.NoError(t, err)

	beforeValues := s.Snapshot().Sections
	beforeRecords := s.UsageRecords()
	beforeSummary := s.UsageSummary()

	p.fail = func(call int, req provider.Request) error {
		if req.RoleName == "Quality Reviewer" {
			return boom
		}
		return nil
	}

	_, err = s.AnalyzeProjectStatus(context.Background(), "on track", "spec")
	require.Error(t, err)
	assert.True(t, errors.Is(err, pipeline.ErrProvider))
	assert.True(t, errors.Is(err, boom))

	var perr *pipeline.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Stage)

	assert.Equal(t, beforeValues, s.Snapshot().Sections, "report state must be unchanged")
	assert.Equal(t, beforeRecords, s.UsageRecords(), "ledger must be unchanged")
	after := s.UsageSummary()
	assert.Equal(t, beforeSummary.TotalUnits, after.TotalUnits)
	assert.Equal(t, beforeSummary.TotalCost, after.TotalCost)

	_, ok := s.Section(report.SectionStatusAnalysis)
	assert.False(t, ok, "stage 1 output of a failed run must not be committed")
	_, ok = s.Section(report.SectionStatus)
	assert.False(t, ok, "inputs of a failed run must not be committed")
}

func TestLedgerGrowsByStageCount(t *testing.T) {
	s := newSession(t, &stub{})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := s.RunProjectPlanning(ctx, fmt.Sprintf("project %d", i), "team")
		require.NoError(t, err)
		assert.Equal(t, 2*i, s.UsageSummary().OperationCount)
	}

	desc, _ := s.Section(report.SectionDescription)
	assert.Equal(t, "project 3", desc, "later runs overwrite sections")

	var units int64
	for _, r := range s.UsageRecords() {
		units += r.Units
	}
	assert.Equal(t, units, s.UsageSummary().TotalUnits)
	assert.Len(t, s.UsageSummary().Recent, 5)
	assert.Len(t, s.Snapshot().Usage.Recent, 6)
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	const n = 8
	sessions := make([]*Session, n)
	for i := range sessions {
		sessions[i] = newSession(t, &stub{})
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i, s := range sessions {
		wg.Add(1)
		go func(i int, s *Session) {
			defer wg.Done()
			ctx := context.Background()
			if i%2 == 0 {
				_, err := s.RunProjectPlanning(ctx, fmt.Sprintf("project-%d", i), "team")
				errs <- err
				return
			}
			_, err := s.AnalyzeProjectStatus(ctx, fmt.Sprintf("status-%d", i), "deliverables")
			errs <- err
		}(i, s)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for i, s := range sessions {
		assert.Len(t, s.UsageRecords(), 2, "session %d", i)
		snap := s.Snapshot()
		assert.Len(t, snap.Sections, 4, "session %d", i)
		if i%2 == 0 {
			desc, _ := s.Section(report.SectionDescription)
			assert.Equal(t, fmt.Sprintf("project-%d", i), desc)
			_, ok := s.Section(report.SectionStatus)
			assert.False(t, ok)
		} else {
			st, _ := s.Section(report.SectionStatus)
			assert.Equal(t, fmt.Sprintf("status-%d", i), st)
			_, ok := s.Section(report.SectionPlan)
			assert.False(t, ok)
		}
	}
	assert.NotEqual(t, sessions[0].ID(), sessions[1].ID())
}

func TestRunInProgress(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	p := provider.Func(func(ctx context.Context, req provider.Request) (provider.Response, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return provider.Response{Text: "ok"}, nil
	})
	s := newSession(t, p)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunProjectPlanning(context.Background(), "d", "t")
		done <- err
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never reached the provider")
	}
	assert.True(t, s.Running())

	_, err := s.AnalyzeProjectStatus(context.Background(), "s", "d")
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, s.Running())
	assert.Len(t, s.UsageRecords(), 2, "the rejected run must not add records")
}

func TestNew_NilProvider(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.ErrorIs(t, err, pipeline.ErrConfiguration)
}

func TestInputNormalisation(t *testing.T) {
	s := newSession(t, &stub{})
	_, err := s.RunProjectPlanning(context.Background(), "  Cafe\u0301 ordering app \n", "one dev")
	require.NoError(t, err)

	desc, _ := s.Section(report.SectionDescription)
	assert.Equal(t, "Caf\u00e9 ordering app", desc)
}

func TestSnapshot_FullReport(t *testing.T) {
	s := newSession(t, &stub{})
	ctx := context.Background()
	_, err := s.RunProjectPlanning(ctx, "desc", "team")
	require.NoError(t, err)
	_, err = s.AnalyzeProjectStatus(ctx, "status", "deliverables")
	require.NoError(t, err)

	snap := s.Snapshot()
	names := make([]string, len(snap.Sections))
	for i, v := range snap.Sections {
		names[i] = string(v.Name)
	}
	assert.Equal(t, "description,team,plan,allocation,status,deliverables,statusAnalysis,qualityReview",
		strings.Join(names, ","))
	assert.Equal(t, 4, snap.Usage.OperationCount)
	assert.Equal(t, s.ID(), snap.SessionID)
	assert.Equal(t, report.DefaultTitle, snap.Title)
	assert.True(t, snap.StartedAt.Equal(s.StartTime()))
	assert.False(t, snap.GeneratedAt.Before(snap.StartedAt))
}

func TestProgressFunc(t *testing.T) {
	s := newSession(t, &stub{})
	var mu sync.Mutex
	var events []string
	s.SetProgressFunc(func(stage, total int, role string, phase pipeline.Phase) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, fmt.Sprintf("%d/%d:%s:%s", stage, total, role, phase))
	})

	_, err := s.RunProjectPlanning(context.Background(), "d", "t")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"1/2:Project Planner:started",
		"1/2:Project Planner:completed",
		"2/2:Task Allocator:started",
		"2/2:Task Allocator:completed",
	}, events)

	s.SetProgressFunc(nil)
	_, err = s.RunProjectPlanning(context.Background(), "d", "t")
	require.NoError(t, err)
	assert.Len(t, events, 4)
}
