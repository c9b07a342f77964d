package branch

import (
	"context"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/mcpcoder/coordinator/models"
)

// CIService reports the latest CI outcome for a branch, with the failure
// excerpt when the outcome is FAILED.
type CIService interface {
	BranchCI(ctx context.Context, branch string) (models.CIStatus, string, error)
}

// LabelService resolves the current status label for an issue, preferring
// supplied cached data over a fresh fetch.
type LabelService interface {
	CurrentStatusLabel(ctx context.Context, number int, cached []models.Issue) string
}

// Collector assembles BranchStatusReports. Every sub-collection failure
// degrades only its own field; Collect never fails as a whole.
type Collector struct {
	git     *Manager
	ci      CIService
	labels  LabelService
	fs      afero.Fs
	workDir string
}

// NewCollector wires a collector for one working copy. ci and labels may be
// nil, in which case those fields degrade (NOT_CONFIGURED, empty label).
func NewCollector(git *Manager, ci CIService, labels LabelService, fs afero.Fs, workDir string) *Collector {
	return &Collector{git: git, ci: ci, labels: labels, fs: fs, workDir: workDir}
}

// CollectOptions narrows a collection run.
type CollectOptions struct {
	// Branch overrides current-branch detection.
	Branch string
	// BaseOverride forces the base branch.
	BaseOverride string
	// CachedIssues, when set, avoids a fresh GitHub fetch for the label.
	CachedIssues []models.Issue
}

// Collect builds the report for a working branch.
func (c *Collector) Collect(ctx context.Context, opts CollectOptions) models.BranchStatusReport {
	report := models.BranchStatusReport{CIStatus: models.CINotConfigured}

	branchName := opts.Branch
	if branchName == "" {
		current, err := c.git.CurrentBranch()
		if err != nil {
			slog.Warn("could not determine current branch", "error", err)
		} else {
			branchName = current
		}
	}
	report.Branch = branchName

	var issue *models.Issue
	issueNumber, linked := IssueForBranch(branchName)
	if linked {
		for i := range opts.CachedIssues {
			if opts.CachedIssues[i].Number == issueNumber {
				issue = &opts.CachedIssues[i]
				break
			}
		}
	}
	report.BaseBranch = c.git.BaseBranch(opts.BaseOverride, issue)

	if c.ci != nil && branchName != "" {
		status, details, err := c.ci.BranchCI(ctx, branchName)
		if err != nil {
			slog.Warn("could not collect CI status", "branch", branchName, "error", err)
		} else {
			report.CIStatus = status
			report.CIDetails = details
		}
	}

	if branchName != "" && report.BaseBranch != "" {
		needed, reason, err := c.git.NeedsRebase(branchName, report.BaseBranch)
		if err != nil {
			slog.Warn("could not determine rebase need", "branch", branchName, "error", err)
			report.RebaseReason = "unknown"
		} else {
			report.RebaseNeeded = needed
			report.RebaseReason = reason
		}
	}

	items, found, _ := LoadTracker(c.fs, c.workDir)
	report.TrackerFound = found
	report.TasksComplete = found && TrackerComplete(items)

	if linked && c.labels != nil {
		report.StatusLabel = c.labels.CurrentStatusLabel(ctx, issueNumber, opts.CachedIssues)
	}

	report.ComposeRecommendations()
	return report
}
