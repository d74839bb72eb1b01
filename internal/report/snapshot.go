// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package report

import (
	"time"

	"github.com/jeranaias/crewplan/internal/telemetry"
)

// DefaultTitle is the report heading.
const DefaultTitle = "Project Management Report"

// SectionView is one populated section in a snapshot.
type SectionView struct {
	Name  Section `json:"name"`
	Title string  `json:"title"`
	Body  string  `json:"body"`
	Input bool    `json:"input"`
}

// UsageView is the ledger part of a snapshot.
type UsageView struct {
	TotalUnits     int64                   `json:"total_units"`
	TotalCost      float64                 `json:"total_cost"`
	OperationCount int                     `json:"operation_count"`
	Recent         []telemetry.UsageRecord `json:"recent"`
}

// Snapshot is an immutable, render-ready view of a session's report. Only
// populated sections are present, in report order.
type Snapshot struct {
	Title       string        `json:"title"`
	SessionID   string        `json:"session_id,omitempty"`
	StartedAt   time.Time     `json:"session_started,omitzero"`
	GeneratedAt time.Time     `json:"generated_at"`
	Sections    []SectionView `json:"sections"`
	Usage       UsageView     `json:"usage"`
}

// Section returns the view for name, if present.
func (s *Snapshot) Section(name Section) (SectionView, bool) {
	for _, v := range s.Sections {
		if v.Name == name {
			return v, true
		}
	}
	return SectionView{}, false
}

// HasContent reports whether any section is populated.
func (s *Snapshot) HasContent() bool {
	return len(s.Sections) > 0
}

// Compiler builds snapshots.
type Compiler struct {
	Title     string
	SessionID string
	// StartedAt is when the session began. Zero omits it.
	StartedAt time.Time

	// Now defaults to time.Now.
	Now func() time.Time
}

// Snapshot combines the populated sections of values with the ledger
// summary. Sections that are missing or unknown are left out. The result
// shares no memory with its inputs.
func (c Compiler) Snapshot(values map[Section]string, summary telemetry.Summary) *Snapshot {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	title := c.Title
	if title == "" {
		title = DefaultTitle
	}

	snap := &Snapshot{
		Title:       title,
		SessionID:   c.SessionID,
		StartedAt:   c.StartedAt,
		GeneratedAt: now(),
		Sections:    make([]SectionView, 0, len(values)),
		Usage: UsageView{
			TotalUnits:     summary.TotalUnits,
			TotalCost:      summary.TotalCost,
			OperationCount: summary.OperationCount,
			Recent:         append([]telemetry.UsageRecord(nil), summary.Recent...),
		},
	}

	for _, sec := range sectionOrder {
		body, ok := values[sec]
		if !ok {
			continue
		}
		snap.Sections = append(snap.Sections, SectionView{
			Name:  sec,
			Title: sec.Title(),
			Body:  body,
			Input: sec.IsInput(),
		})
	}

	return snap
}
