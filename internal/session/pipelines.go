// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"github.com/jeranaias/crewplan/internal/agent"
	"github.com/jeranaias/crewplan/internal/pipeline"
	"github.com/jeranaias/crewplan/internal/report"
)

// Context keys shared by the pipelines and the report sections.
const (
	keyDescription    = string(report.SectionDescription)
	keyTeam           = string(report.SectionTeam)
	keyPlan           = string(report.SectionPlan)
	keyAllocation     = string(report.SectionAllocation)
	keyStatus         = string(report.SectionStatus)
	keyDeliverables   = string(report.SectionDeliverables)
	keyStatusAnalysis = string(report.SectionStatusAnalysis)
	keyQualityReview  = string(report.SectionQualityReview)
)

// =============================================================================
// INSTRUCTION TEMPLATES
// =============================================================================

const planTemplate = `Create a detailed project plan for: {description}

Your plan should include:
1. Project objectives and scope
2. Key milestones and deliverables
3. Timeline with phases
4. Required resources
5. Success criteria
6. Potential risks and mitigation strategies`

const allocateTemplate = `Based on the project plan and team information, allocate tasks:

Project Plan: {plan}
Team Information: {team}

Create task assignments that consider:
1. Team member skills and expertise
2. Current workload and availability
3. Task dependencies
4. Priority levels
5. Estimated effort for each task`

const monitorTemplate = `Analyze the current project status and provide insights:

Current Status: {status}

Your analysis should include:
1. Overall progress assessment
2. Completed vs pending tasks
3. Identified bottlenecks or delays
4. Risk assessment
5. Recommended actions to stay on track`

const reviewTemplate = `Review the project deliverables for quality:

Deliverables: {deliverables}

Status analysis for context:
{statusAnalysis}

Your review should assess:
1. Completeness of deliverables
2. Compliance with requirements
3. Quality standards met
4. Areas for improvement
5. Final recommendations`

// =============================================================================
// PIPELINE DEFINITIONS
// =============================================================================

// planningStages runs Planner then Allocator. The Monitor is not scheduled.
func planningStages(c agent.Catalog) []pipeline.Stage {
	return []pipeline.Stage{
		pipeline.BuildStage(c.RoleFor(agent.Planner), planTemplate, keyPlan, keyDescription).
			WithExpectedOutput("A comprehensive project plan with all required elements"),
		pipeline.BuildStage(c.RoleFor(agent.Allocator), allocateTemplate, keyAllocation, keyPlan, keyTeam).
			WithExpectedOutput("Detailed task allocation with assignments and timelines"),
	}
}

// statusStages runs Monitor then Reviewer.
func statusStages(c agent.Catalog) []pipeline.Stage {
	return []pipeline.Stage{
		pipeline.BuildStage(c.RoleFor(agent.Monitor), monitorTemplate, keyStatusAnalysis, keyStatus).
			WithExpectedOutput("Progress report with analysis and recommendations"),
		pipeline.BuildStage(c.RoleFor(agent.Reviewer), reviewTemplate, keyQualityReview, keyDeliverables, keyStatusAnalysis).
			WithExpectedOutput("Quality review report with detailed assessment"),
	}
}
