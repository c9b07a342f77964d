package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// StageCategory partitions the workflow stages into the three behaviors
// the coordinator cares about.
type StageCategory string

const (
	// CategoryHumanAction marks stages waiting on a person; never dispatched.
	CategoryHumanAction StageCategory = "human_action"
	// CategoryBotPickup marks stages ready for automation; eligible for dispatch.
	CategoryBotPickup StageCategory = "bot_pickup"
	// CategoryBotBusy marks stages with work already in flight; never dispatched.
	CategoryBotBusy StageCategory = "bot_busy"
)

// WorkflowStage is one of the ten status labels driving the issue lifecycle.
type WorkflowStage string

const (
	StageCreated         WorkflowStage = "status-01:created"
	StageAwaitingPlan    WorkflowStage = "status-02:awaiting-planning"
	StagePlanning        WorkflowStage = "status-03:planning"
	StagePlanReview      WorkflowStage = "status-04:plan-review"
	StagePlanReady       WorkflowStage = "status-05:plan-ready"
	StageImplementing    WorkflowStage = "status-06:implementing"
	StageCodeReview      WorkflowStage = "status-07:code-review"
	StageReadyPR         WorkflowStage = "status-08:ready-pr"
	StagePRCreating      WorkflowStage = "status-09:pr-creating"
	StageDone            WorkflowStage = "status-10:done"
)

// stageCategories is the closed category map over the ten stages.
var stageCategories = map[WorkflowStage]StageCategory{
	StageCreated:      CategoryHumanAction,
	StageAwaitingPlan: CategoryBotPickup,
	StagePlanning:     CategoryBotBusy,
	StagePlanReview:   CategoryHumanAction,
	StagePlanReady:    CategoryBotPickup,
	StageImplementing: CategoryBotBusy,
	StageCodeReview:   CategoryHumanAction,
	StageReadyPR:      CategoryBotPickup,
	StagePRCreating:   CategoryBotBusy,
	StageDone:         CategoryHumanAction,
}

// AllStages returns the ten stages in lifecycle order.
func AllStages() []WorkflowStage {
	stages := make([]WorkflowStage, 0, len(stageCategories))
	for s := range stageCategories {
		stages = append(stages, s)
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i].Number() < stages[j].Number() })
	return stages
}

// ParseStage reports whether label is one of the ten workflow stages.
func ParseStage(label string) (WorkflowStage, bool) {
	s := WorkflowStage(label)
	_, ok := stageCategories[s]
	return s, ok
}

// IsStatusLabel reports whether label carries the status prefix, whether or
// not it names a known stage. Used to detect malformed or stale labels.
func IsStatusLabel(label string) bool {
	return strings.HasPrefix(label, "status-")
}

// Number returns the numeric prefix of the stage (1-10), or 0 for a
// malformed stage value.
func (s WorkflowStage) Number() int {
	name := string(s)
	if !strings.HasPrefix(name, "status-") {
		return 0
	}
	rest := strings.TrimPrefix(name, "status-")
	idx := strings.IndexByte(rest, ':')
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(rest[:idx])
	if err != nil {
		return 0
	}
	return n
}

// Category returns the stage's category. Unknown stages classify as
// human_action so the coordinator never touches them.
func (s WorkflowStage) Category() StageCategory {
	if c, ok := stageCategories[s]; ok {
		return c
	}
	return CategoryHumanAction
}

func (s WorkflowStage) String() string { return string(s) }

// Transition is one row of the fixed workflow map: picking up an issue at
// Source enqueues Workflow and advances the label to Target.
type Transition struct {
	Source         WorkflowStage
	Target         WorkflowStage
	Workflow       string
	RequiresBranch bool
}

// transitions is the full automated workflow map. Stages missing from this
// table are never dispatched.
var transitions = map[WorkflowStage]Transition{
	StageAwaitingPlan: {Source: StageAwaitingPlan, Target: StagePlanning, Workflow: "create-plan", RequiresBranch: false},
	StagePlanReady:    {Source: StagePlanReady, Target: StageImplementing, Workflow: "implement", RequiresBranch: true},
	StageReadyPR:      {Source: StageReadyPR, Target: StagePRCreating, Workflow: "create-pr", RequiresBranch: true},
}

// TransitionFor returns the dispatch row for a bot_pickup stage.
func TransitionFor(stage WorkflowStage) (Transition, bool) {
	t, ok := transitions[stage]
	return t, ok
}

// MustTransition is TransitionFor for call sites that have already verified
// eligibility; a miss there is a programming error.
func MustTransition(stage WorkflowStage) Transition {
	t, ok := transitions[stage]
	if !ok {
		panic(fmt.Sprintf("no workflow transition defined for stage %q", stage))
	}
	return t
}
