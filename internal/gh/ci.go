package gh

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/go-github/v68/github"

	"github.com/mcpcoder/coordinator/models"
)

const (
	// maxLogBudget bounds the total log lines embedded in a failure excerpt.
	maxLogBudget = 300
	// headLines is the head portion of a head-plus-tail truncation.
	headLines = 50
	// logRedirects bounds redirect-following when downloading run logs.
	logRedirects = 4
)

// LatestRunForBranch returns the most recent workflow run on branch, or nil
// when the branch has no runs at all.
func (c *Client) LatestRunForBranch(ctx context.Context, branch string) (*github.WorkflowRun, error) {
	opts := &github.ListWorkflowRunsOptions{
		Branch:      branch,
		ListOptions: github.ListOptions{PerPage: 1},
	}
	runs, _, err := c.gh.Actions.ListRepositoryWorkflowRuns(ctx, c.owner, c.name, opts)
	if err != nil {
		return nil, fmt.Errorf("list workflow runs for branch %q: %w", branch, err)
	}
	if runs == nil || len(runs.WorkflowRuns) == 0 {
		return nil, nil
	}
	return runs.WorkflowRuns[0], nil
}

// StatusForRun maps a workflow run onto the report's CI enum. A nil run
// (no runs found for the branch) is NOT_CONFIGURED, not PENDING, so a
// just-created branch does not look like it is waiting on anything.
func StatusForRun(run *github.WorkflowRun) models.CIStatus {
	if run == nil {
		return models.CINotConfigured
	}
	switch run.GetStatus() {
	case "queued", "in_progress", "pending", "waiting":
		return models.CIPending
	}
	switch run.GetConclusion() {
	case "success":
		return models.CIPassed
	case "failure":
		return models.CIFailed
	default:
		return models.CINotConfigured
	}
}

// BranchCI resolves the latest CI outcome for a branch in one call: the
// mapped status, plus the structured failure excerpt when the run failed.
func (c *Client) BranchCI(ctx context.Context, branch string) (models.CIStatus, string, error) {
	run, err := c.LatestRunForBranch(ctx, branch)
	if err != nil {
		return models.CINotConfigured, "", err
	}
	status := StatusForRun(run)
	if status != models.CIFailed {
		return status, "", nil
	}
	details, err := c.FailureDetails(ctx, run)
	if err != nil {
		// The verdict stands even when the excerpt cannot be fetched.
		return status, fmt.Sprintf("(failed to fetch CI logs: %v)", err), nil
	}
	return status, details, nil
}

// failedJob pairs a failed job with its first failed step.
type failedJob struct {
	name       string
	stepNumber int64
	stepName   string
}

// FailureDetails builds the structured excerpt for a failed run: a summary
// line naming every failed job, then per-job sections with the
// timestamp-stripped log of the first failed step, head-plus-tail truncated
// under the shared line budget. Jobs that no longer fit are listed by name.
func (c *Client) FailureDetails(ctx context.Context, run *github.WorkflowRun) (string, error) {
	jobs, err := c.failedJobs(ctx, run.GetID())
	if err != nil {
		return "", err
	}
	if len(jobs) == 0 {
		return "## CI Failure Summary\nNo failed jobs reported.\n", nil
	}

	logs, err := c.runLogArchive(ctx, run.GetID())
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## CI Failure Summary\nFailed jobs (%d): %s\n", len(jobs), strings.Join(names, ", "))

	budget := maxLogBudget
	var overflow []string
	for _, j := range jobs {
		if budget <= 0 {
			overflow = append(overflow, j.name)
			continue
		}
		lines := stepLogLines(logs, j)
		if lines == nil {
			overflow = append(overflow, j.name)
			continue
		}
		out, elided := TruncateHeadTail(lines, budget, headLines)
		fmt.Fprintf(&b, "\n## Job: %s\nFailed step: %s\n```\n%s\n```\n",
			j.name, j.stepName, strings.Join(out, "\n"))
		emitted := len(out)
		if elided > 0 {
			emitted-- // the truncation marker does not count against the budget
		}
		budget -= emitted
	}
	if len(overflow) > 0 {
		fmt.Fprintf(&b, "\n## Other failed jobs\n")
		for _, name := range overflow {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}
	return b.String(), nil
}

func (c *Client) failedJobs(ctx context.Context, runID int64) ([]failedJob, error) {
	opts := &github.ListWorkflowJobsOptions{
		Filter:      "latest",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	jobs, _, err := c.gh.Actions.ListWorkflowJobs(ctx, c.owner, c.name, runID, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs for run %d: %w", runID, err)
	}
	var out []failedJob
	for _, j := range jobs.Jobs {
		if j.GetConclusion() != "failure" {
			continue
		}
		fj := failedJob{name: j.GetName()}
		for _, s := range j.Steps {
			if s.GetConclusion() == "failure" {
				fj.stepNumber = s.GetNumber()
				fj.stepName = s.GetName()
				break
			}
		}
		out = append(out, fj)
	}
	return out, nil
}

// runLogArchive downloads the run's log ZIP (one text file per step) into a
// name->content map.
func (c *Client) runLogArchive(ctx context.Context, runID int64) (map[string]string, error) {
	logURL, _, err := c.gh.Actions.GetWorkflowRunLogs(ctx, c.owner, c.name, runID, logRedirects)
	if err != nil {
		return nil, fmt.Errorf("resolve log archive for run %d: %w", runID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, logURL.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download log archive for run %d: %w", runID, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download log archive for run %d: HTTP %d", runID, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return ExtractLogArchive(data)
}

// ExtractLogArchive unpacks a workflow-run log ZIP into a filename->content
// map. Entries are named "<job>/<step-number>_<step-name>.txt".
func ExtractLogArchive(data []byte) (map[string]string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open log archive: %w", err)
	}
	out := make(map[string]string, len(r.File))
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open log entry %q: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read log entry %q: %w", f.Name, err)
		}
		out[f.Name] = string(content)
	}
	return out, nil
}

// stepLogLines finds the failed step's log in the archive and strips the
// per-line timestamps GitHub prepends. Returns nil when the archive has no
// matching entry.
func stepLogLines(archive map[string]string, j failedJob) []string {
	prefix := j.name + "/"
	stepPrefix := fmt.Sprintf("%s%d_", prefix, j.stepNumber)
	var content string
	for name, body := range archive {
		if strings.HasPrefix(name, stepPrefix) {
			content = body
			break
		}
	}
	if content == "" {
		// Fall back to any entry for the job.
		for name, body := range archive {
			if strings.HasPrefix(name, prefix) {
				content = body
				break
			}
		}
	}
	if content == "" {
		return nil
	}
	raw := strings.Split(strings.TrimRight(content, "\n"), "\n")
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = StripLogTimestamp(l)
	}
	return lines
}

// StripLogTimestamp removes the leading ISO-8601 timestamp GitHub Actions
// prepends to each log line, when present.
func StripLogTimestamp(line string) string {
	ts, rest, ok := strings.Cut(line, " ")
	if !ok {
		return line
	}
	if len(ts) >= 20 && strings.Contains(ts, "T") && strings.HasSuffix(ts, "Z") {
		return rest
	}
	return line
}

// TruncateHeadTail keeps the first head lines and the trailing remainder of
// a maxLines budget, with a marker for the elided middle. Inputs within the
// budget pass through untouched; otherwise the output has exactly
// maxLines+1 lines. Returns the output and the number of elided lines.
func TruncateHeadTail(lines []string, maxLines, head int) ([]string, int) {
	if len(lines) <= maxLines {
		return lines, 0
	}
	if head > maxLines {
		head = maxLines
	}
	tail := maxLines - head
	elided := len(lines) - maxLines
	out := make([]string, 0, maxLines+1)
	out = append(out, lines[:head]...)
	out = append(out, fmt.Sprintf("[... truncated %d lines ...]", elided))
	out = append(out, lines[len(lines)-tail:]...)
	return out, elided
}
