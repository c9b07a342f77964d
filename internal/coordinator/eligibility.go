package coordinator

import (
	"log/slog"
	"sort"

	"github.com/mcpcoder/coordinator/internal/labels"
	"github.com/mcpcoder/coordinator/models"
)

// pickupStages is the eligibility set from the embedded label manifest.
// Loading it here means a malformed manifest aborts the process before any
// poll cycle runs.
var pickupStages = labels.MustBotPickup()

// PickupStage returns the issue's single bot_pickup stage when the issue is
// a well-formed dispatch candidate. ok is false for issues with zero pickup
// labels (silently ignored) and for issues with conflicting status labels
// (dropped with a warning; the coordinator refuses to guess).
func PickupStage(issue models.Issue) (models.WorkflowStage, bool) {
	if issue.State != "open" {
		return "", false
	}
	var pickups []models.WorkflowStage
	for _, name := range issue.LabelNames() {
		stage, isStage := models.ParseStage(name)
		if !isStage {
			continue
		}
		if _, pickup := pickupStages[stage]; pickup {
			pickups = append(pickups, stage)
		}
	}
	if len(pickups) == 0 {
		return "", false
	}
	if len(pickups) > 1 {
		slog.Warn("issue has multiple bot_pickup labels, dropping from consideration",
			"issue", issue.Number, "labels", issue.StatusLabels())
		return "", false
	}
	// One pickup label plus any other status label is still ambiguous.
	if status := issue.StatusLabels(); len(status) > 1 {
		slog.Warn("issue has multiple status labels, dropping from consideration",
			"issue", issue.Number, "labels", status)
		return "", false
	}
	return pickups[0], true
}

// SelectEligible filters the cache snapshot down to dispatch candidates:
// open issues with exactly one bot_pickup status label.
func SelectEligible(issues []models.Issue) []models.Issue {
	var out []models.Issue
	for _, is := range issues {
		if _, ok := PickupStage(is); ok {
			out = append(out, is)
		}
	}
	return out
}

// Rank orders eligible issues for dispatch: descending stage number so
// finishing work (PR creation) beats starting work, then ascending issue
// number as the tie-break.
func Rank(issues []models.Issue) []models.Issue {
	ranked := make([]models.Issue, len(issues))
	copy(ranked, issues)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, _ := PickupStage(ranked[i])
		sj, _ := PickupStage(ranked[j])
		if si.Number() != sj.Number() {
			return si.Number() > sj.Number()
		}
		return ranked[i].Number < ranked[j].Number
	})
	return ranked
}
