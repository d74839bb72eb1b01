// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent defines the specialised agent roles that drive the crewplan pipelines.
//
// A Role is the identity handed to the generation provider on every invocation:
// who the agent is, what it is trying to achieve and how it should behave.
// Roles are plain values; the Catalog is built once and passed by value into
// pipeline assembly, so there is no mutable agent state anywhere.
package agent

import (
	"fmt"
	"strings"
)

// =============================================================================
// ROLE KIND
// =============================================================================

// Kind identifies one of the four specialised agents.
type Kind int

const (
	// Planner breaks a project description into a plan with milestones.
	Planner Kind = iota

	// Allocator assigns planned work to team members.
	Allocator

	// Monitor analyses project status and surfaces risks.
	Monitor

	// Reviewer assesses deliverables against quality standards.
	Reviewer
)

// String returns the short lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case Planner:
		return "planner"
	case Allocator:
		return "allocator"
	case Monitor:
		return "monitor"
	case Reviewer:
		return "reviewer"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the four defined kinds.
func (k Kind) Valid() bool {
	return k >= Planner && k <= Reviewer
}

// Kinds returns every kind in canonical pipeline order.
func Kinds() []Kind {
	return []Kind{Planner, Allocator, Monitor, Reviewer}
}

// ParseKind parses a kind name case-insensitively. Both the short name
// ("planner") and the role title ("Project Planner") are accepted.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds() {
		if name == k.String() || name == strings.ToLower(defaultRoles[k].Name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown agent kind %q", s)
}

// =============================================================================
// ROLE
// =============================================================================

// Role is the identity of a specialised agent.
type Role struct {
	Kind      Kind   `json:"kind"`
	Name      string `json:"name"`
	Objective string `json:"objective"`
	Framing   string `json:"framing"`
}

// IsZero reports whether r is the zero Role.
func (r Role) IsZero() bool {
	return r == Role{}
}

// =============================================================================
// CATALOG
// =============================================================================

// defaultRoles holds the four built-in role definitions, indexed by Kind.
var defaultRoles = [...]Role{
	Planner: {
		Kind:      Planner,
		Name:      "Project Planner",
		Objective: "Create comprehensive project plans with clear objectives and milestones",
		Framing: "You are an experienced project planner with 10+ years of experience in " +
			"breaking down complex projects into manageable tasks. You excel at identifying " +
			"dependencies and creating realistic timelines.",
	},
	Allocator: {
		Kind:      Allocator,
		Name:      "Task Allocator",
		Objective: "Efficiently allocate tasks based on team capabilities and availability",
		Framing: "You are a resource management specialist who understands team dynamics " +
			"and can match tasks with the right team members based on their skills and workload.",
	},
	Monitor: {
		Kind:      Monitor,
		Name:      "Progress Monitor",
		Objective: "Track project progress and identify potential risks or delays",
		Framing: "You are a detail-oriented project monitor who tracks progress, identifies " +
			"bottlenecks, and suggests corrective actions to keep projects on schedule.",
	},
	Reviewer: {
		Kind:      Reviewer,
		Name:      "Quality Reviewer",
		Objective: "Ensure project deliverables meet quality standards",
		Framing: "You are a quality assurance expert who reviews project outputs and ensures " +
			"they meet the defined standards and requirements.",
	},
}

// Catalog is an immutable set of role definitions. The zero value is not
// usable; construct one with NewCatalog.
type Catalog struct {
	roles [len(defaultRoles)]Role
}

// NewCatalog returns the catalog of the four built-in roles.
func NewCatalog() Catalog {
	return Catalog{roles: defaultRoles}
}

// RoleFor returns the role for kind. Unknown kinds yield the zero Role;
// use Lookup when the kind comes from user input.
func (c Catalog) RoleFor(kind Kind) Role {
	r, _ := c.Lookup(kind)
	return r
}

// Lookup returns the role for kind and whether it is defined.
func (c Catalog) Lookup(kind Kind) (Role, bool) {
	if !kind.Valid() {
		return Role{}, false
	}
	r := c.roles[kind]
	return r, !r.IsZero()
}

// Roles returns all roles in canonical order.
func (c Catalog) Roles() []Role {
	out := make([]Role, 0, len(c.roles))
	for _, k := range Kinds() {
		out = append(out, c.roles[k])
	}
	return out
}
