// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package report

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/crewplan/internal/telemetry"
)

func TestState_MergeOverwrites(t *testing.T) {
	s := NewState()
	s.Merge(map[Section]string{SectionPlan: "v1", SectionTeam: "two devs"})
	s.Merge(map[Section]string{SectionPlan: "v2"})

	plan, ok := s.Get(SectionPlan)
	require.True(t, ok)
	assert.Equal(t, "v2", plan)

	team, ok := s.Get(SectionTeam)
	require.True(t, ok)
	assert.Equal(t, "two devs", team)

	_, ok = s.Get(SectionStatusAnalysis)
	assert.False(t, ok)
	assert.Equal(t, 2, s.Len())
}

func TestState_IgnoresUnknownSections(t *testing.T) {
	s := NewState()
	s.Merge(map[Section]string{"bogus": "x", SectionStatus: "on track"})
	assert.Equal(t, 1, s.Len())
}

func TestState_ValuesIsCopy(t *testing.T) {
	s := NewState()
	s.Merge(map[Section]string{SectionPlan: "v1"})
	vals := s.Values()
	vals[SectionPlan] = "mutated"

	got, _ := s.Get(SectionPlan)
	assert.Equal(t, "v1", got)
}

func TestState_Concurrent(t *testing.T) {
	s := NewState()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Merge(map[Section]string{SectionPlan: "p"})
				_ = s.Values()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, s.Len())
}

func TestSection_Metadata(t *testing.T) {
	assert.Equal(t, "Project Plan", SectionPlan.Title())
	assert.Equal(t, "unknown", Section("unknown").Title())
	assert.True(t, SectionDescription.IsInput())
	assert.False(t, SectionQualityReview.IsInput())
	assert.Len(t, Sections(), 8)
}

func TestCompiler_OmitsAbsentSections(t *testing.T) {
	fixed := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	c := Compiler{SessionID: "s-1", Now: func() time.Time { return fixed }}

	snap := c.Snapshot(map[Section]string{
		SectionPlan:        "the plan",
		SectionDescription: "Build a to-do app",
	}, telemetry.Summary{})

	require.Len(t, snap.Sections, 2)
	assert.Equal(t, SectionDescription, snap.Sections[0].Name, "report order puts description first")
	assert.Equal(t, SectionPlan, snap.Sections[1].Name)
	assert.Equal(t, "Project Plan", snap.Sections[1].Title)
	assert.Equal(t, DefaultTitle, snap.Title)
	assert.Equal(t, "s-1", snap.SessionID)
	assert.True(t, snap.GeneratedAt.Equal(fixed))
	assert.True(t, snap.StartedAt.IsZero())

	_, ok := snap.Section(SectionStatusAnalysis)
	assert.False(t, ok)
	assert.True(t, snap.HasContent())
}

func TestCompiler_EmptyState(t *testing.T) {
	snap := Compiler{}.Snapshot(nil, telemetry.Summary{})
	assert.False(t, snap.HasContent())
	assert.Empty(t, snap.Sections)
	assert.Equal(t, 0, snap.Usage.OperationCount)
}

func TestCompiler_CarriesUsage(t *testing.T) {
	ledger := telemetry.NewUsageLedger()
	for i := 0; i < 12; i++ {
		ledger.Append(telemetry.UsageRecord{Operation: "op", Units: 10, Cost: 0.01})
	}

	summary := ledger.Summary(telemetry.DefaultExportWindow)
	snap := Compiler{}.Snapshot(map[Section]string{SectionPlan: "p"}, summary)

	assert.Equal(t, int64(120), snap.Usage.TotalUnits)
	assert.InDelta(t, 0.12, snap.Usage.TotalCost, 1e-9)
	assert.Equal(t, 12, snap.Usage.OperationCount)
	assert.Len(t, snap.Usage.Recent, 10)

	summary.Recent[0].Operation = "mutated"
	assert.Equal(t, "op", snap.Usage.Recent[0].Operation, "snapshot must not share the summary's slice")
}
