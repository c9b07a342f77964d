package models

// CIStatus is the coordinator's view of the latest CI run on a branch.
type CIStatus string

const (
	CIPassed        CIStatus = "PASSED"
	CIFailed        CIStatus = "FAILED"
	CIPending       CIStatus = "PENDING"
	CINotConfigured CIStatus = "NOT_CONFIGURED"
)

// BranchStatusReport is a point-in-time aggregate of everything a worker or
// operator needs to decide whether a branch is ready to advance. It is never
// persisted.
type BranchStatusReport struct {
	Branch        string   `json:"branch"`
	BaseBranch    string   `json:"base_branch"`
	CIStatus      CIStatus `json:"ci_status"`
	CIDetails     string   `json:"ci_details,omitempty"`
	RebaseNeeded  bool     `json:"rebase_needed"`
	RebaseReason  string   `json:"rebase_reason,omitempty"`
	TasksComplete bool     `json:"tasks_complete"`
	// TrackerFound distinguishes "all boxes checked" from "no tracker file".
	TrackerFound    bool     `json:"tracker_found"`
	StatusLabel     string   `json:"status_label,omitempty"`
	Recommendations []string `json:"recommendations"`
}

// Recommendations in priority order; Compose picks the applicable ones.
const (
	RecommendFixCI         = "Fix the failing CI build before continuing"
	RecommendWaitCI        = "Wait for the pending CI run to finish"
	RecommendConfigureCI   = "No CI is configured for this branch; configure a workflow or proceed manually"
	RecommendCompleteTasks = "Complete the remaining task tracker items"
	RecommendRebase        = "Rebase onto the base branch before pushing"
	RecommendReadyToMerge  = "All checks passed and tasks are complete; ready to merge"
	RecommendContinue      = "Continue working on the branch"
)

// ComposeRecommendations derives the ordered recommendation list from the
// other report fields. Priority: fix CI, wait for CI, configure CI, finish
// tasks, rebase, then the ready/continue verdict.
func (r *BranchStatusReport) ComposeRecommendations() {
	var recs []string
	switch r.CIStatus {
	case CIFailed:
		recs = append(recs, RecommendFixCI)
	case CIPending:
		recs = append(recs, RecommendWaitCI)
	case CINotConfigured:
		recs = append(recs, RecommendConfigureCI)
	}
	if r.TrackerFound && !r.TasksComplete {
		recs = append(recs, RecommendCompleteTasks)
	}
	if r.RebaseNeeded {
		recs = append(recs, RecommendRebase)
	}
	if len(recs) == 0 && r.CIStatus == CIPassed && r.TasksComplete {
		recs = append(recs, RecommendReadyToMerge)
	}
	if len(recs) == 0 {
		recs = append(recs, RecommendContinue)
	}
	r.Recommendations = recs
}

// Ready reports whether the branch can advance without further work.
func (r *BranchStatusReport) Ready() bool {
	return r.CIStatus == CIPassed && r.TasksComplete && !r.RebaseNeeded
}
