package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mcpcoder/coordinator/internal/logx"
	"github.com/mcpcoder/coordinator/models"
	"github.com/mcpcoder/coordinator/types"
)

// BuildService enqueues one parameterized job on the build server.
type BuildService interface {
	SubmitJob(ctx context.Context, jobPath string, params map[string]string) (int64, error)
}

// IssueService covers the GitHub writes and branch reads dispatch needs.
type IssueService interface {
	AdvanceLabels(ctx context.Context, issue models.Issue, oldLabel, newLabel string) error
	LinkedBranches(ctx context.Context, issueNumber int) ([]string, error)
}

// CacheUpdater propagates a committed label transition into the local cache.
type CacheUpdater interface {
	UpdateIssueLabelsInCache(repo string, number int, oldLabel, newLabel string)
}

// Dispatcher hands eligible issues to the build server one at a time.
type Dispatcher struct {
	repo          string
	cfg           types.RepoConfig
	build         BuildService
	github        IssueService
	cache         CacheUpdater
	defaultBranch string
}

// NewDispatcher wires a dispatcher for one repository.
func NewDispatcher(repo string, cfg types.RepoConfig, build BuildService, github IssueService, cache CacheUpdater, defaultBranch string) *Dispatcher {
	if defaultBranch == "" {
		defaultBranch = "main"
	}
	return &Dispatcher{repo: repo, cfg: cfg, build: build, github: github, cache: cache, defaultBranch: defaultBranch}
}

// Dispatch runs the five-step contract for one eligible issue:
// resolve the branch, compose the job, submit it, advance the labels on
// GitHub (the commit point), then patch the local cache. Returns whether a
// job was submitted.
//
// Failure model: a missing linked branch is a soft skip (no state change);
// a build-server submission error is fatal for the cycle; a label-update
// error after submission is logged and propagated so the operator can
// reconcile; a cache failure is absorbed downstream.
func (d *Dispatcher) Dispatch(ctx context.Context, issue models.Issue) (bool, error) {
	stage, ok := PickupStage(issue)
	if !ok {
		return false, fmt.Errorf("issue #%d is not in a dispatchable state", issue.Number)
	}
	transition, ok := models.TransitionFor(stage)
	if !ok {
		return false, fmt.Errorf("no workflow transition for stage %q on issue #%d", stage, issue.Number)
	}

	dispatchID := uuid.NewString()[:8]
	log := slog.With("repo", d.repo, "issue", issue.Number, "dispatch_id", dispatchID)

	branchName := d.defaultBranch
	if transition.RequiresBranch {
		branches, err := d.github.LinkedBranches(ctx, issue.Number)
		if err != nil {
			return false, fmt.Errorf("query linked branches for issue #%d: %w", issue.Number, err)
		}
		if len(branches) == 0 {
			log.Warn(fmt.Sprintf("No linked branch found for issue #%d, skipping workflow dispatch", issue.Number))
			return false, nil
		}
		branchName = branches[0]
	}

	params := map[string]string{
		"REPO_URL":              d.cfg.RepoURL,
		"BRANCH":                branchName,
		"GITHUB_CREDENTIALS_ID": d.cfg.GitHubCredentialsID,
		"COMMAND":               buildCommand(d.cfg.ExecutorOS, transition.Workflow, branchName, issue.Number),
	}
	log.Debug("composed job parameters", "workflow", transition.Workflow,
		"params", logx.Redact(toAnyMap(params)))

	queueID, err := d.build.SubmitJob(ctx, d.cfg.ExecutorJobPath, params)
	if err != nil {
		return false, fmt.Errorf("submit %s job for issue #%d: %w", transition.Workflow, issue.Number, err)
	}
	log.Info("submitted workflow job", "workflow", transition.Workflow,
		"branch", branchName, "queue_id", queueID)

	if err := d.github.AdvanceLabels(ctx, issue, string(transition.Source), string(transition.Target)); err != nil {
		// The job is already in flight; labels are now inconsistent and the
		// operator must reconcile before the next cycle.
		log.Error("label update failed after job submission", "error", err,
			"source", transition.Source, "target", transition.Target)
		return true, fmt.Errorf("update labels for issue #%d after dispatch: %w", issue.Number, err)
	}

	d.cache.UpdateIssueLabelsInCache(d.repo, issue.Number, string(transition.Source), string(transition.Target))
	log.Info("advanced workflow stage", "from", transition.Source, "to", transition.Target)
	return true, nil
}

// buildCommand composes the shell command the executor runs: check out the
// branch, install dependencies, run the workflow on the issue. The final
// command's exit code is the job's exit code. Fields are quoted for the
// executor's shell; untrusted values are never interpolated bare.
func buildCommand(executorOS, workflow, branchName string, issueNumber int) string {
	if strings.EqualFold(executorOS, "windows") {
		return fmt.Sprintf("git checkout %s && python -m pip install --quiet -e . && mcp-coder %s %d",
			windowsQuote(branchName), workflow, issueNumber)
	}
	return fmt.Sprintf("git checkout %s && python -m pip install --quiet -e . && mcp-coder %s %d",
		posixQuote(branchName), workflow, issueNumber)
}

// posixQuote single-quotes a value for POSIX sh.
func posixQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// windowsQuote double-quotes a value for cmd.exe.
func windowsQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func toAnyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
