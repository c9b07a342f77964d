package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpcoder/coordinator/models"
	"github.com/mcpcoder/coordinator/store"
	"github.com/mcpcoder/coordinator/types"
)

func testAppConfig(repos map[string]types.RepoConfig) types.AppConfig {
	return types.AppConfig{
		Coordinator: types.CoordinatorConfig{
			CacheRefreshMinutes: 1440,
			Repos:               repos,
		},
		Jenkins: types.JenkinsConfig{
			ServerURL: "https://jenkins.example.com",
			Username:  "bot",
			APIToken:  "secret",
		},
		GitHub: types.GitHubConfig{Token: "ghp_test"},
	}
}

func newTestCoordinator(t *testing.T, cfg types.AppConfig, github *fakeGitHub, build *fakeBuild) (*Coordinator, *store.IssueCache, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	cache := store.NewIssueCache(fs, "/cache")
	c := New(cfg, cache, false)
	c.NewGitHubClient = func(token, repo string) (GitHubAPI, error) {
		return github, nil
	}
	c.NewBuildClient = func(jc types.JenkinsConfig) BuildService {
		return build
	}
	return c, cache, fs
}

func TestRunRepo_DispatchesAndPersistsCache(t *testing.T) {
	cfg := testAppConfig(map[string]types.RepoConfig{
		"svc": testRepoConfig(),
	})
	github := &fakeGitHub{
		issues: []models.Issue{
			issueWith(42, "open", "status-02:awaiting-planning"),
		},
	}
	build := &fakeBuild{}
	c, _, fs := newTestCoordinator(t, cfg, github, build)

	require.NoError(t, c.RunRepo(context.Background(), "svc"))

	require.Len(t, build.submits, 1)
	assert.Contains(t, build.submits[0].params["COMMAND"], "create-plan 42")
	require.Len(t, github.advanced, 1)
	assert.Equal(t, "status-03:planning", github.advanced[0].newLabel)

	// Cache file on disk reflects the advanced label.
	data, err := afero.ReadFile(fs, "/cache/acme_svc.issues.json")
	require.NoError(t, err)
	var cf models.CacheFile
	require.NoError(t, json.Unmarshal(data, &cf))
	require.NotNil(t, cf.LastChecked)
	require.Contains(t, cf.Issues, "42")
	assert.Contains(t, cf.Issues["42"].LabelNames(), "status-03:planning")
	assert.NotContains(t, cf.Issues["42"].LabelNames(), "status-02:awaiting-planning")
}

func TestRunRepo_DispatchOrderFollowsRanking(t *testing.T) {
	cfg := testAppConfig(map[string]types.RepoConfig{
		"svc": testRepoConfig(),
	})
	github := &fakeGitHub{
		issues: []models.Issue{
			issueWith(10, "open", "status-02:awaiting-planning"),
			issueWith(20, "open", "status-05:plan-ready"),
			issueWith(30, "open", "status-08:ready-pr"),
			issueWith(40, "open", "status-03:planning"), // busy, not eligible
		},
		branches: map[int][]string{
			20: {"20-feature"},
			30: {"30-release"},
		},
	}
	build := &fakeBuild{}
	c, _, _ := newTestCoordinator(t, cfg, github, build)

	require.NoError(t, c.RunRepo(context.Background(), "svc"))

	// Later stages first, so nearly finished work lands before new work starts.
	require.Len(t, build.submits, 3)
	assert.Contains(t, build.submits[0].params["COMMAND"], "create-pr 30")
	assert.Contains(t, build.submits[1].params["COMMAND"], "implement 20")
	assert.Contains(t, build.submits[2].params["COMMAND"], "create-plan 10")
}

func TestRunRepo_UnknownRepo(t *testing.T) {
	c, _, _ := newTestCoordinator(t, testAppConfig(nil), &fakeGitHub{}, &fakeBuild{})
	err := c.RunRepo(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestRunRepo_InvalidRepoConfig(t *testing.T) {
	cfg := testAppConfig(map[string]types.RepoConfig{
		"svc": {RepoURL: "https://github.com/acme/svc.git"}, // missing job path and credentials
	})
	c, _, _ := newTestCoordinator(t, cfg, &fakeGitHub{}, &fakeBuild{})
	require.Error(t, c.RunRepo(context.Background(), "svc"))
}

func TestRunRepo_FetchFailureIsFatal(t *testing.T) {
	cfg := testAppConfig(map[string]types.RepoConfig{
		"svc": testRepoConfig(),
	})
	github := &fakeGitHub{listErr: errors.New("github unavailable")}
	build := &fakeBuild{}
	c, _, _ := newTestCoordinator(t, cfg, github, build)

	err := c.RunRepo(context.Background(), "svc")
	require.Error(t, err)
	assert.Empty(t, build.submits)
}

func TestRunRepo_NoEligibleIssuesIsClean(t *testing.T) {
	cfg := testAppConfig(map[string]types.RepoConfig{
		"svc": testRepoConfig(),
	})
	github := &fakeGitHub{
		issues: []models.Issue{
			issueWith(7, "open", "status-01:created"),
			issueWith(8, "open", "status-03:planning"),
		},
	}
	build := &fakeBuild{}
	c, _, _ := newTestCoordinator(t, cfg, github, build)

	require.NoError(t, c.RunRepo(context.Background(), "svc"))
	assert.Empty(t, build.submits)
}

func TestRunAll_ContinuesPastFailedRepo(t *testing.T) {
	broken := testRepoConfig()
	broken.ExecutorJobPath = "" // fails validation
	cfg := testAppConfig(map[string]types.RepoConfig{
		"broken": broken,
		"svc":    testRepoConfig(),
	})
	github := &fakeGitHub{
		issues: []models.Issue{
			issueWith(42, "open", "status-02:awaiting-planning"),
		},
	}
	build := &fakeBuild{}
	c, _, _ := newTestCoordinator(t, cfg, github, build)

	err := c.RunAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 repo(s) failed")
	// The healthy repo still ran.
	require.Len(t, build.submits, 1)
	assert.Contains(t, build.submits[0].params["COMMAND"], "create-plan 42")
}

func TestRunAll_AllHealthy(t *testing.T) {
	cfg := testAppConfig(map[string]types.RepoConfig{
		"svc": testRepoConfig(),
	})
	github := &fakeGitHub{}
	c, _, _ := newTestCoordinator(t, cfg, github, &fakeBuild{})
	require.NoError(t, c.RunAll(context.Background()))
}

func TestBuildForRequiresServerURL(t *testing.T) {
	cfg := testAppConfig(map[string]types.RepoConfig{
		"svc": testRepoConfig(),
	})
	cfg.Jenkins.ServerURL = ""
	c, _, _ := newTestCoordinator(t, cfg, &fakeGitHub{}, &fakeBuild{})
	err := c.RunRepo(context.Background(), "svc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jenkins.server_url")
}
