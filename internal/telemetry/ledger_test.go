// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(op string, units int64, cost float64) UsageRecord {
	return UsageRecord{Operation: op, Units: units, Cost: cost}
}

func TestUsageLedger_Empty(t *testing.T) {
	l := NewUsageLedger()
	s := l.Summary(DefaultInlineWindow)

	assert.Equal(t, int64(0), s.TotalUnits)
	assert.Equal(t, 0.0, s.TotalCost)
	assert.Equal(t, 0, s.OperationCount)
	assert.Empty(t, s.Recent)
}

func TestUsageLedger_TotalsEqualSum(t *testing.T) {
	l := NewUsageLedger()

	var wantUnits int64
	var wantCost float64
	for i := 0; i < 37; i++ {
		r := rec(fmt.Sprintf("op-%d", i), int64(i*13), float64(i)*0.0007)
		l.Append(r)
		wantUnits += r.Units
		wantCost += r.Cost
	}

	s := l.Summary(0)
	assert.Equal(t, wantUnits, s.TotalUnits)
	assert.InDelta(t, wantCost, s.TotalCost, 1e-9)
	assert.Equal(t, 37, s.OperationCount)

	var sumUnits int64
	var sumCost float64
	for _, r := range l.Records() {
		sumUnits += r.Units
		sumCost += r.Cost
	}
	assert.Equal(t, sumUnits, s.TotalUnits)
	assert.InDelta(t, sumCost, s.TotalCost, 1e-9)
}

func TestUsageLedger_RecentWindow(t *testing.T) {
	tests := []struct {
		name     string
		appended int
		limit    int
		wantOps  []string
	}{
		{"fewer than window", 3, 5, []string{"op-0", "op-1", "op-2"}},
		{"exactly window", 5, 5, []string{"op-0", "op-1", "op-2", "op-3", "op-4"}},
		{"more than window", 8, 5, []string{"op-3", "op-4", "op-5", "op-6", "op-7"}},
		{"default window", 7, 0, []string{"op-2", "op-3", "op-4", "op-5", "op-6"}},
		{"export window", 12, DefaultExportWindow, []string{
			"op-2", "op-3", "op-4", "op-5", "op-6", "op-7", "op-8", "op-9", "op-10", "op-11",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewUsageLedger()
			for i := 0; i < tt.appended; i++ {
				l.Append(rec(fmt.Sprintf("op-%d", i), 1, 0))
			}

			s := l.Summary(tt.limit)
			got := make([]string, len(s.Recent))
			for i, r := range s.Recent {
				got[i] = r.Operation
			}
			assert.Equal(t, tt.wantOps, got)
			assert.Equal(t, tt.appended, s.OperationCount)
		})
	}
}

func TestUsageLedger_NegativeValuesClamped(t *testing.T) {
	l := NewUsageLedger()
	l.Append(rec("a", 10, 0.5))
	l.Append(rec("b", -5, -1))

	s := l.Summary(5)
	assert.Equal(t, int64(10), s.TotalUnits)
	assert.InDelta(t, 0.5, s.TotalCost, 1e-12)
	assert.Equal(t, int64(0), s.Recent[1].Units)
	assert.Equal(t, 0.0, s.Recent[1].Cost)
}

func TestUsageLedger_RecordsAreCopies(t *testing.T) {
	l := NewUsageLedger()
	l.Append(rec("a", 1, 0))

	out := l.Records()
	out[0].Operation = "mutated"
	s := l.Summary(1)
	s.Recent[0].Units = 999

	assert.Equal(t, "a", l.Records()[0].Operation)
	assert.Equal(t, int64(1), l.Records()[0].Units)
}

func TestUsageLedger_TimestampDefaulted(t *testing.T) {
	l := NewUsageLedger()
	before := time.Now()
	l.Append(rec("a", 1, 0))

	ts := l.Records()[0].Timestamp
	assert.False(t, ts.Before(before), "timestamp %v earlier than %v", ts, before)

	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	l.Append(UsageRecord{Timestamp: fixed, Operation: "b"})
	assert.True(t, l.Records()[1].Timestamp.Equal(fixed))
}

func TestUsageLedger_AppendAll(t *testing.T) {
	l := NewUsageLedger()
	l.AppendAll(nil)
	require.Equal(t, 0, l.Len())

	l.AppendAll([]UsageRecord{rec("a", 2, 0.1), rec("b", 3, 0.2)})
	require.Equal(t, 2, l.Len())
	s := l.Summary(5)
	assert.Equal(t, int64(5), s.TotalUnits)
	assert.InDelta(t, 0.3, s.TotalCost, 1e-12)
}

func TestUsageLedger_Concurrent(t *testing.T) {
	l := NewUsageLedger()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				l.Append(rec("op", 2, 0.001))
				_ = l.Summary(5)
			}
		}()
	}
	wg.Wait()

	s := l.Summary(5)
	assert.Equal(t, 800, s.OperationCount)
	assert.Equal(t, int64(1600), s.TotalUnits)
	assert.True(t, math.Abs(s.TotalCost-0.8) < 1e-9, "TotalCost = %v", s.TotalCost)
}

func TestSummary_Format(t *testing.T) {
	l := NewUsageLedger()
	ts := time.Date(2025, 6, 1, 14, 30, 5, 0, time.Local)
	l.Append(UsageRecord{Timestamp: ts, Operation: "Project Planner", Units: 1234, Cost: 0.0111})

	out := l.FormatSummary(DefaultInlineWindow)
	for _, want := range []string{
		"Token Usage Summary",
		"Total Units Used: 1,234",
		"Estimated Cost:   $0.0111",
		"Operations:       1",
		"Recent Operations:",
		"14:30:05 - Project Planner: 1234 units ($0.0111)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}

	empty := NewUsageLedger().FormatSummary(5)
	if strings.Contains(empty, "Recent Operations") {
		t.Errorf("empty summary should omit recent section:\n%s", empty)
	}
}

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-1000, "-1,000"},
		{-12, "-12"},
	}
	for _, tt := range tests {
		if got := FormatUnits(tt.in); got != tt.want {
			t.Errorf("FormatUnits(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
