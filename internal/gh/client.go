// Package gh wraps the GitHub REST API for the coordinator: issue listing
// for the cache, label primitives for dispatch, and workflow-run access for
// the branch status collector.
package gh

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"

	"github.com/mcpcoder/coordinator/models"
)

const requestTimeout = 30 * time.Second

// Client holds an authenticated GitHub client scoped to one repository.
type Client struct {
	gh    *github.Client
	owner string
	name  string
}

// NewClient builds a client for "owner/name" authenticated with token.
func NewClient(token, repo string) (*Client, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("repo must be owner/name, got %q", repo)
	}
	httpClient := &http.Client{Timeout: requestTimeout}
	c := github.NewClient(httpClient)
	if token != "" {
		c = c.WithAuthToken(token)
	}
	return &Client{gh: c, owner: owner, name: name}, nil
}

// Repo returns "owner/name".
func (c *Client) Repo() string { return c.owner + "/" + c.name }

// ListOpenIssues fetches every open issue in the repository, excluding pull
// requests, across all pages.
func (c *Client) ListOpenIssues(ctx context.Context) ([]models.Issue, error) {
	owner, name := c.owner, c.name
	opts := &github.IssueListByRepoOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var out []models.Issue
	for {
		issues, resp, err := c.gh.Issues.ListByRepo(ctx, owner, name, opts)
		if err != nil {
			return nil, fmt.Errorf("list open issues for %s/%s: %w", owner, name, err)
		}
		for _, is := range issues {
			if is.IsPullRequest() {
				continue
			}
			out = append(out, convertIssue(is))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// GetIssue fetches a single issue by number.
func (c *Client) GetIssue(ctx context.Context, number int) (models.Issue, error) {
	is, _, err := c.gh.Issues.Get(ctx, c.owner, c.name, number)
	if err != nil {
		return models.Issue{}, fmt.Errorf("get issue #%d: %w", number, err)
	}
	return convertIssue(is), nil
}

// SetLabels replaces the issue's full label set.
func (c *Client) SetLabels(ctx context.Context, number int, labels []string) error {
	if _, _, err := c.gh.Issues.ReplaceLabelsForIssue(ctx, c.owner, c.name, number, labels); err != nil {
		return fmt.Errorf("set labels on issue #%d: %w", number, err)
	}
	return nil
}

// AddLabel attaches one label to the issue.
func (c *Client) AddLabel(ctx context.Context, number int, label string) error {
	if _, _, err := c.gh.Issues.AddLabelsToIssue(ctx, c.owner, c.name, number, []string{label}); err != nil {
		return fmt.Errorf("add label %q to issue #%d: %w", label, number, err)
	}
	return nil
}

// RemoveLabel detaches one label from the issue. A 404 (label not present)
// is not an error.
func (c *Client) RemoveLabel(ctx context.Context, number int, label string) error {
	resp, err := c.gh.Issues.RemoveLabelForIssue(ctx, c.owner, c.name, number, label)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("remove label %q from issue #%d: %w", label, number, err)
	}
	return nil
}

// AdvanceLabels moves an issue from oldLabel to newLabel on GitHub. Every
// workflow label present is removed, not just oldLabel, so a mislabeled
// issue converges to a single status label.
func (c *Client) AdvanceLabels(ctx context.Context, issue models.Issue, oldLabel, newLabel string) error {
	kept := make([]string, 0, len(issue.Labels)+1)
	for _, l := range issue.Labels {
		if _, isStage := models.ParseStage(l.Name); isStage || l.Name == oldLabel {
			continue
		}
		kept = append(kept, l.Name)
	}
	kept = append(kept, newLabel)
	return c.SetLabels(ctx, issue.Number, kept)
}

// UpdateWorkflowLabel sets the workflow label for the issue linked to
// branch. Branches without a leading "<issue-number>-" prefix are not linked
// to any issue; the update is refused with no API write and false returned.
func (c *Client) UpdateWorkflowLabel(ctx context.Context, branch, target string) (bool, error) {
	number, ok := IssueNumberFromBranch(branch)
	if !ok {
		slog.Warn("branch is not linked to an issue, refusing label update", "branch", branch)
		return false, nil
	}
	issue, err := c.GetIssue(ctx, number)
	if err != nil {
		return false, err
	}
	if err := c.AdvanceLabels(ctx, issue, "", target); err != nil {
		return false, err
	}
	return true, nil
}

// CurrentStatusLabel returns the issue's status label, preferring supplied
// cached data over a fresh fetch. Empty when the issue has none or the
// lookup fails.
func (c *Client) CurrentStatusLabel(ctx context.Context, number int, cached []models.Issue) string {
	for _, is := range cached {
		if is.Number == number {
			return firstStatusLabel(is)
		}
	}
	issue, err := c.GetIssue(ctx, number)
	if err != nil {
		slog.Debug("could not fetch issue for status label", "issue", number, "error", err)
		return ""
	}
	return firstStatusLabel(issue)
}

func firstStatusLabel(is models.Issue) string {
	labels := is.StatusLabels()
	if len(labels) == 0 {
		return ""
	}
	return labels[0]
}

// LinkedBranches lists the repository branches linked to an issue: those
// whose name begins "<issue-number>-".
func (c *Client) LinkedBranches(ctx context.Context, issueNumber int) ([]string, error) {
	opts := &github.BranchListOptions{ListOptions: github.ListOptions{PerPage: 100}}
	prefix := strconv.Itoa(issueNumber) + "-"
	var out []string
	for {
		branches, resp, err := c.gh.Repositories.ListBranches(ctx, c.owner, c.name, opts)
		if err != nil {
			return nil, fmt.Errorf("list branches: %w", err)
		}
		for _, b := range branches {
			if strings.HasPrefix(b.GetName(), prefix) {
				out = append(out, b.GetName())
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	sort.Strings(out)
	return out, nil
}

// DefaultBranch returns the repository's default branch, falling back to
// main when the lookup fails.
func (c *Client) DefaultBranch(ctx context.Context) string {
	repo, _, err := c.gh.Repositories.Get(ctx, c.owner, c.name)
	if err != nil || repo.GetDefaultBranch() == "" {
		return "main"
	}
	return repo.GetDefaultBranch()
}

// IssueNumberFromBranch parses the linked issue number from a branch name.
// Only branches shaped "<number>-rest" are linked.
func IssueNumberFromBranch(branch string) (int, bool) {
	prefix, _, ok := strings.Cut(branch, "-")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(prefix)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func convertIssue(is *github.Issue) models.Issue {
	out := models.Issue{
		Number:    is.GetNumber(),
		Title:     is.GetTitle(),
		Body:      is.GetBody(),
		State:     is.GetState(),
		HTMLURL:   is.GetHTMLURL(),
		Locked:    is.GetLocked(),
		CreatedAt: is.GetCreatedAt().Time,
		UpdatedAt: is.GetUpdatedAt().Time,
		Author:    models.IssueUser{Login: is.GetUser().GetLogin()},
	}
	for _, l := range is.Labels {
		out.Labels = append(out.Labels, models.Label{Name: l.GetName(), Color: l.GetColor()})
	}
	for _, a := range is.Assignees {
		out.Assignees = append(out.Assignees, models.IssueUser{Login: a.GetLogin()})
	}
	return out
}
