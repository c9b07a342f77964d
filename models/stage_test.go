package models

import (
	"testing"
)

func TestParseStage(t *testing.T) {
	tests := []struct {
		label string
		ok    bool
	}{
		{"status-02:awaiting-planning", true},
		{"status-05:plan-ready", true},
		{"status-10:done", true},
		{"status-11:bogus", false},
		{"status-02", false},
		{"bug", false},
		{"", false},
	}
	for _, tt := range tests {
		if _, ok := ParseStage(tt.label); ok != tt.ok {
			t.Errorf("ParseStage(%q) ok = %v, want %v", tt.label, ok, tt.ok)
		}
	}
}

func TestStageNumber(t *testing.T) {
	if got := StageReadyPR.Number(); got != 8 {
		t.Errorf("Number() = %d, want 8", got)
	}
	if got := WorkflowStage("garbage").Number(); got != 0 {
		t.Errorf("Number() on malformed stage = %d, want 0", got)
	}
}

func TestStageCategories(t *testing.T) {
	wantPickup := []WorkflowStage{StageAwaitingPlan, StagePlanReady, StageReadyPR}
	for _, s := range wantPickup {
		if s.Category() != CategoryBotPickup {
			t.Errorf("%s category = %s, want bot_pickup", s, s.Category())
		}
	}
	wantBusy := []WorkflowStage{StagePlanning, StageImplementing, StagePRCreating}
	for _, s := range wantBusy {
		if s.Category() != CategoryBotBusy {
			t.Errorf("%s category = %s, want bot_busy", s, s.Category())
		}
	}
	wantHuman := []WorkflowStage{StageCreated, StagePlanReview, StageCodeReview, StageDone}
	for _, s := range wantHuman {
		if s.Category() != CategoryHumanAction {
			t.Errorf("%s category = %s, want human_action", s, s.Category())
		}
	}
	// Unknown labels never dispatch.
	if WorkflowStage("status-99:wat").Category() != CategoryHumanAction {
		t.Error("unknown stage should classify as human_action")
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		source   WorkflowStage
		target   WorkflowStage
		workflow string
		branch   bool
	}{
		{StageAwaitingPlan, StagePlanning, "create-plan", false},
		{StagePlanReady, StageImplementing, "implement", true},
		{StageReadyPR, StagePRCreating, "create-pr", true},
	}
	for _, tt := range tests {
		tr, ok := TransitionFor(tt.source)
		if !ok {
			t.Fatalf("TransitionFor(%s) not found", tt.source)
		}
		if tr.Target != tt.target || tr.Workflow != tt.workflow || tr.RequiresBranch != tt.branch {
			t.Errorf("TransitionFor(%s) = %+v", tt.source, tr)
		}
	}

	// Bot-busy and human-action stages have no transition.
	for _, s := range []WorkflowStage{StageCreated, StagePlanning, StageDone} {
		if _, ok := TransitionFor(s); ok {
			t.Errorf("TransitionFor(%s) should not exist", s)
		}
	}
}

func TestAllStagesOrdered(t *testing.T) {
	stages := AllStages()
	if len(stages) != 10 {
		t.Fatalf("AllStages() returned %d stages, want 10", len(stages))
	}
	for i, s := range stages {
		if s.Number() != i+1 {
			t.Errorf("AllStages()[%d] = %s, want stage number %d", i, s, i+1)
		}
	}
}

func TestIssueStatusLabels(t *testing.T) {
	is := Issue{
		Number: 7,
		State:  "open",
		Labels: []Label{{Name: "bug"}, {Name: "status-02:awaiting-planning"}, {Name: "status-999"}},
	}
	got := is.StatusLabels()
	if len(got) != 2 {
		t.Fatalf("StatusLabels() = %v, want 2 entries", got)
	}
	if !is.HasLabel("bug") || is.HasLabel("feature") {
		t.Error("HasLabel misbehaving")
	}
}
