// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// USAGE RECORD
// =============================================================================

const (
	// DefaultInlineWindow is the recent-records window for inline summaries.
	DefaultInlineWindow = 5

	// DefaultExportWindow is the recent-records window for exported reports.
	DefaultExportWindow = 10
)

// UsageRecord is one metered operation. Records are immutable once appended.
type UsageRecord struct {
	Timestamp   time.Time     `json:"timestamp"`
	RunID       string        `json:"run_id,omitempty"`
	Operation   string        `json:"operation"`
	Units       int64         `json:"units"`
	Cost        float64       `json:"cost"`
	InputChars  int           `json:"input_chars,omitempty"`
	OutputChars int           `json:"output_chars,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// =============================================================================
// USAGE LEDGER
// =============================================================================

// UsageLedger is an append-only log of usage records with running totals.
// Totals are only ever incremented by Append, so they always equal the sum
// over the records. A ledger belongs to exactly one session.
type UsageLedger struct {
	mu         sync.RWMutex
	records    []UsageRecord
	totalUnits int64
	totalCost  float64
}

// Summary is a read-only projection of a ledger.
type Summary struct {
	TotalUnits     int64         `json:"total_units"`
	TotalCost      float64       `json:"total_cost"`
	OperationCount int           `json:"operation_count"`
	Recent         []UsageRecord `json:"recent"`
}

// NewUsageLedger creates an empty ledger.
func NewUsageLedger() *UsageLedger {
	return &UsageLedger{
		records: make([]UsageRecord, 0, 16),
	}
}

// Append adds a record and updates the totals. Negative units or cost are
// clamped to zero so the totals can never decrease.
func (l *UsageLedger) Append(rec UsageRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appendLocked(rec)
}

// AppendAll adds a batch of records under a single lock, so readers observe
// either none or all of them.
func (l *UsageLedger) AppendAll(recs []UsageRecord) {
	if len(recs) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range recs {
		l.appendLocked(rec)
	}
}

func (l *UsageLedger) appendLocked(rec UsageRecord) {
	if rec.Units < 0 {
		rec.Units = 0
	}
	if rec.Cost < 0 {
		rec.Cost = 0
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	l.records = append(l.records, rec)
	l.totalUnits += rec.Units
	l.totalCost += rec.Cost
}

// Len returns the number of records.
func (l *UsageLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Records returns a copy of every record in insertion order.
func (l *UsageLedger) Records() []UsageRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]UsageRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Summary returns the totals and the last limit records, most recent last.
// A non-positive limit uses DefaultInlineWindow.
func (l *UsageLedger) Summary(limit int) Summary {
	if limit <= 0 {
		limit = DefaultInlineWindow
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	start := len(l.records) - limit
	if start < 0 {
		start = 0
	}
	recent := make([]UsageRecord, len(l.records)-start)
	copy(recent, l.records[start:])

	return Summary{
		TotalUnits:     l.totalUnits,
		TotalCost:      l.totalCost,
		OperationCount: len(l.records),
		Recent:         recent,
	}
}

// =============================================================================
// FORMATTING
// =============================================================================

// Format renders the summary as the plain-text block shown after each run.
func (s Summary) Format() string {
	var sb strings.Builder

	sb.WriteString("Token Usage Summary\n")
	sb.WriteString(fmt.Sprintf("  Total Units Used: %s\n", FormatUnits(s.TotalUnits)))
	sb.WriteString(fmt.Sprintf("  Estimated Cost:   %s\n", FormatCost(s.TotalCost)))
	sb.WriteString(fmt.Sprintf("  Operations:       %d\n", s.OperationCount))

	if len(s.Recent) > 0 {
		sb.WriteString("\nRecent Operations:\n")
		for _, r := range s.Recent {
			sb.WriteString(fmt.Sprintf("  - %s - %s: %d units (%s)\n",
				r.Timestamp.Format("15:04:05"), r.Operation, r.Units, FormatCost(r.Cost)))
		}
	}

	return sb.String()
}

// FormatCost formats a dollar amount with four decimals.
func FormatCost(cost float64) string {
	return fmt.Sprintf("$%.4f", cost)
}

// FormatUnits formats a unit count with thousands separators.
func FormatUnits(units int64) string {
	neg := units < 0
	if neg {
		units = -units
	}
	s := fmt.Sprintf("%d", units)
	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	pre := len(s) % 3
	if pre > 0 {
		sb.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if sb.Len() > 0 && !(neg && sb.Len() == 1) {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}

// FormatSummary is shorthand for l.Summary(limit).Format().
func (l *UsageLedger) FormatSummary(limit int) string {
	return l.Summary(limit).Format()
}
