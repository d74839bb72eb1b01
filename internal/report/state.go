// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package report holds the accumulated outputs of committed pipeline runs and
// compiles them, together with the usage ledger, into render-ready snapshots.
package report

import (
	"sync"
)

// =============================================================================
// SECTIONS
// =============================================================================

// Section names a piece of report state.
type Section string

const (
	SectionDescription    Section = "description"
	SectionTeam           Section = "team"
	SectionPlan           Section = "plan"
	SectionAllocation     Section = "allocation"
	SectionStatus         Section = "status"
	SectionDeliverables   Section = "deliverables"
	SectionStatusAnalysis Section = "statusAnalysis"
	SectionQualityReview  Section = "qualityReview"
)

// sectionOrder is the order sections appear in a report.
var sectionOrder = []Section{
	SectionDescription,
	SectionTeam,
	SectionPlan,
	SectionAllocation,
	SectionStatus,
	SectionDeliverables,
	SectionStatusAnalysis,
	SectionQualityReview,
}

var sectionTitles = map[Section]string{
	SectionDescription:    "Project Description",
	SectionTeam:           "Team",
	SectionPlan:           "Project Plan",
	SectionAllocation:     "Task Allocation",
	SectionStatus:         "Current Status",
	SectionDeliverables:   "Deliverables",
	SectionStatusAnalysis: "Status Analysis",
	SectionQualityReview:  "Quality Review",
}

// Sections returns every known section in report order.
func Sections() []Section {
	return append([]Section(nil), sectionOrder...)
}

// Title returns the display heading for s.
func (s Section) Title() string {
	if t, ok := sectionTitles[s]; ok {
		return t
	}
	return string(s)
}

// Valid reports whether s is a known section.
func (s Section) Valid() bool {
	_, ok := sectionTitles[s]
	return ok
}

// IsInput reports whether s holds caller-supplied text rather than agent output.
func (s Section) IsInput() bool {
	switch s {
	case SectionDescription, SectionTeam, SectionStatus, SectionDeliverables:
		return true
	}
	return false
}

// =============================================================================
// STATE
// =============================================================================

// State maps sections to the latest committed text. A later commit overwrites
// the sections it names and leaves the rest untouched.
type State struct {
	mu     sync.RWMutex
	values map[Section]string
}

// NewState returns an empty report state.
func NewState() *State {
	return &State{values: make(map[Section]string)}
}

// Merge writes every entry of values in one step. Unknown sections are ignored.
func (s *State) Merge(values map[Section]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		if k.Valid() {
			s.values[k] = v
		}
	}
}

// Get returns the text of a section and whether it is populated.
func (s *State) Get(sec Section) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[sec]
	return v, ok
}

// Values returns a copy of all populated sections.
func (s *State) Values() map[Section]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Section]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Len returns the number of populated sections.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
