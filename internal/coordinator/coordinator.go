// Package coordinator implements the poll loop: per cycle it loads each
// configured repo, asks the issue cache for a current-enough snapshot,
// filters and ranks the eligible issues, and dispatches one bounded build
// job per issue.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/mcpcoder/coordinator/internal/gh"
	"github.com/mcpcoder/coordinator/internal/jenkins"
	"github.com/mcpcoder/coordinator/internal/logger"
	"github.com/mcpcoder/coordinator/models"
	"github.com/mcpcoder/coordinator/store"
	"github.com/mcpcoder/coordinator/types"
)

// validate is a single instance; it caches struct info.
var validate = validator.New()

// GitHubAPI is everything the loop needs from GitHub for one repo.
type GitHubAPI interface {
	ListOpenIssues(ctx context.Context) ([]models.Issue, error)
	AdvanceLabels(ctx context.Context, issue models.Issue, oldLabel, newLabel string) error
	LinkedBranches(ctx context.Context, issueNumber int) ([]string, error)
	DefaultBranch(ctx context.Context) string
}

// Coordinator orchestrates poll cycles over the configured repositories.
type Coordinator struct {
	cfg          types.AppConfig
	cache        *store.IssueCache
	forceRefresh bool

	// Client factories; tests swap these for fakes.
	NewGitHubClient func(token, repo string) (GitHubAPI, error)
	NewBuildClient  func(cfg types.JenkinsConfig) BuildService

	githubClients map[string]GitHubAPI
	buildClient   BuildService
}

// New builds a coordinator over the given configuration and cache.
func New(cfg types.AppConfig, cache *store.IssueCache, forceRefresh bool) *Coordinator {
	return &Coordinator{
		cfg:          cfg,
		cache:        cache,
		forceRefresh: forceRefresh,
		NewGitHubClient: func(token, repo string) (GitHubAPI, error) {
			return gh.NewClient(token, repo)
		},
		NewBuildClient: func(jc types.JenkinsConfig) BuildService {
			return jenkins.NewClient(jc.ServerURL, jc.Username, jc.APIToken)
		},
		githubClients: make(map[string]GitHubAPI),
	}
}

// RunRepo executes one poll cycle for a single configured repository.
// Any configuration, GitHub, or build-server failure is fatal for the
// cycle; a dispatch soft-skip (no linked branch) is not.
func (c *Coordinator) RunRepo(ctx context.Context, name string) error {
	repoCfg, ok := c.cfg.Coordinator.Repos[name]
	if !ok {
		return fmt.Errorf("repo %q is not configured under coordinator.repos", name)
	}
	if err := repoCfg.NormalizeOS(); err != nil {
		return fmt.Errorf("repo %q: %w", name, err)
	}
	if err := validate.Struct(repoCfg); err != nil {
		return fmt.Errorf("repo %q has invalid configuration: %w", name, err)
	}
	fullName, err := repoCfg.FullName()
	if err != nil {
		return fmt.Errorf("repo %q: %w", name, err)
	}
	logger.SetRepo(fullName)

	ghClient, err := c.githubFor(fullName)
	if err != nil {
		return err
	}
	buildClient, err := c.buildFor()
	if err != nil {
		return err
	}

	issues, err := c.cache.GetAllCachedIssues(ctx, fullName,
		c.cfg.Coordinator.CacheRefreshMinutes, c.forceRefresh, ghClient)
	if err != nil {
		return fmt.Errorf("repo %q: %w", name, err)
	}

	eligible := Rank(SelectEligible(issues))
	slog.Info("poll cycle", "repo", fullName, "issues", len(issues), "eligible", len(eligible))
	if len(eligible) == 0 {
		return nil
	}

	dispatcher := NewDispatcher(fullName, repoCfg, buildClient, ghClient, c.cache,
		ghClient.DefaultBranch(ctx))
	for _, issue := range eligible {
		if _, err := dispatcher.Dispatch(ctx, issue); err != nil {
			return fmt.Errorf("repo %q: %w", name, err)
		}
	}
	return nil
}

// RunAll executes one poll cycle for every configured repository, in stable
// (sorted) order. A failed repo is logged and the loop continues; the
// aggregate error reports how many repos failed.
func (c *Coordinator) RunAll(ctx context.Context) error {
	names := make([]string, 0, len(c.cfg.Coordinator.Repos))
	for name := range c.cfg.Coordinator.Repos {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := 0
	for _, name := range names {
		if err := c.RunRepo(ctx, name); err != nil {
			slog.Error("repo cycle failed", "repo", name, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d repo(s) failed this cycle", failed, len(names))
	}
	return nil
}

// githubFor returns the per-repo GitHub client, creating it on first use.
func (c *Coordinator) githubFor(fullName string) (GitHubAPI, error) {
	if client, ok := c.githubClients[fullName]; ok {
		return client, nil
	}
	client, err := c.NewGitHubClient(c.cfg.GitHub.Token, fullName)
	if err != nil {
		return nil, fmt.Errorf("create GitHub client for %s: %w", fullName, err)
	}
	c.githubClients[fullName] = client
	return client, nil
}

// buildFor returns the shared build-server client, creating it on first use.
func (c *Coordinator) buildFor() (BuildService, error) {
	if c.buildClient != nil {
		return c.buildClient, nil
	}
	if c.cfg.Jenkins.ServerURL == "" {
		return nil, fmt.Errorf("jenkins.server_url is not configured")
	}
	c.buildClient = c.NewBuildClient(c.cfg.Jenkins)
	return c.buildClient, nil
}
