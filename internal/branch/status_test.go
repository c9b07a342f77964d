package branch

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpcoder/coordinator/models"
)

type fakeCI struct {
	status  models.CIStatus
	details string
	err     error
}

func (f *fakeCI) BranchCI(ctx context.Context, branch string) (models.CIStatus, string, error) {
	if f.err != nil {
		return models.CINotConfigured, "", f.err
	}
	return f.status, f.details, nil
}

type fakeLabels struct {
	label string
}

func (f *fakeLabels) CurrentStatusLabel(ctx context.Context, number int, cached []models.Issue) string {
	return f.label
}

// statusGit returns a Manager whose git answers describe a branch that is
// checked out, behind its base by the given count, on a repo whose default
// branch is main.
func statusGit(branch string, behind string) *Manager {
	return NewManagerWithCommander("/work", &fakeCommander{responses: map[string]string{
		"git rev-parse --abbrev-ref HEAD":                   branch,
		"git symbolic-ref refs/remotes/origin/HEAD --short": "origin/main",
		"git rev-list --count " + branch + "..main":         behind,
	}})
}

func writeTracker(t *testing.T, fs afero.Fs, content string) {
	t.Helper()
	path := filepath.Join("/work", TrackerPath)
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func TestCollectReadyBranch(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTracker(t, fs, "### Tasks\n- [x] everything\n")
	c := NewCollector(statusGit("42-fix-bug", "0"),
		&fakeCI{status: models.CIPassed},
		&fakeLabels{label: "status-06:implementing"},
		fs, "/work")

	report := c.Collect(context.Background(), CollectOptions{})

	assert.Equal(t, "42-fix-bug", report.Branch)
	assert.Equal(t, "main", report.BaseBranch)
	assert.Equal(t, models.CIPassed, report.CIStatus)
	assert.False(t, report.RebaseNeeded)
	assert.True(t, report.TrackerFound)
	assert.True(t, report.TasksComplete)
	assert.Equal(t, "status-06:implementing", report.StatusLabel)
	assert.True(t, report.Ready())
	assert.Equal(t, []string{models.RecommendReadyToMerge}, report.Recommendations)
}

func TestCollectFailingCIWithOpenTasks(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTracker(t, fs, "### Tasks\n- [x] one\n- [ ] two\n")
	c := NewCollector(statusGit("42-fix-bug", "2"),
		&fakeCI{status: models.CIFailed, details: "## CI Failure Summary\n..."},
		&fakeLabels{label: "status-06:implementing"},
		fs, "/work")

	report := c.Collect(context.Background(), CollectOptions{})

	assert.Equal(t, models.CIFailed, report.CIStatus)
	assert.Contains(t, report.CIDetails, "CI Failure Summary")
	assert.True(t, report.RebaseNeeded)
	assert.False(t, report.TasksComplete)
	assert.False(t, report.Ready())
	assert.Equal(t, []string{
		models.RecommendFixCI,
		models.RecommendCompleteTasks,
		models.RecommendRebase,
	}, report.Recommendations)
}

func TestCollectDegradesWithoutServices(t *testing.T) {
	fs := afero.NewMemMapFs() // no tracker file either
	c := NewCollector(statusGit("42-fix-bug", "0"), nil, nil, fs, "/work")

	report := c.Collect(context.Background(), CollectOptions{})

	assert.Equal(t, models.CINotConfigured, report.CIStatus)
	assert.Empty(t, report.StatusLabel)
	assert.False(t, report.TrackerFound)
	assert.False(t, report.TasksComplete)
}

func TestCollectCIFailureDegradesOnlyCI(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTracker(t, fs, "### Tasks\n- [x] done\n")
	c := NewCollector(statusGit("42-fix-bug", "0"),
		&fakeCI{err: errors.New("api down")}, nil, fs, "/work")

	report := c.Collect(context.Background(), CollectOptions{})

	assert.Equal(t, models.CINotConfigured, report.CIStatus)
	assert.True(t, report.TasksComplete, "tracker collection must survive a CI error")
}

func TestCollectBranchAndBaseOverrides(t *testing.T) {
	fs := afero.NewMemMapFs()
	git := NewManagerWithCommander("/work", &fakeCommander{responses: map[string]string{
		"git rev-list --count 9-spike..release-1": "0",
	}})
	c := NewCollector(git, nil, nil, fs, "/work")

	report := c.Collect(context.Background(), CollectOptions{
		Branch:       "9-spike",
		BaseOverride: "release-1",
	})

	assert.Equal(t, "9-spike", report.Branch)
	assert.Equal(t, "release-1", report.BaseBranch)
}

func TestCollectUsesCachedIssueForBase(t *testing.T) {
	fs := afero.NewMemMapFs()
	git := NewManagerWithCommander("/work", &fakeCommander{responses: map[string]string{
		"git rev-list --count 42-fix-bug..hotfix-base": "0",
	}})
	c := NewCollector(git, nil, &fakeLabels{label: "status-05:plan-ready"}, fs, "/work")

	report := c.Collect(context.Background(), CollectOptions{
		Branch: "42-fix-bug",
		CachedIssues: []models.Issue{
			{Number: 42, Body: "Base branch: hotfix-base"},
		},
	})

	assert.Equal(t, "hotfix-base", report.BaseBranch)
	assert.Equal(t, "status-05:plan-ready", report.StatusLabel)
}

func TestCollectUnlinkedBranchSkipsLabel(t *testing.T) {
	fs := afero.NewMemMapFs()
	git := NewManagerWithCommander("/work", &fakeCommander{responses: map[string]string{
		"git symbolic-ref refs/remotes/origin/HEAD --short": "origin/main",
		"git rev-list --count scratch..main":                "0",
	}})
	c := NewCollector(git, nil, &fakeLabels{label: "should-not-appear"}, fs, "/work")

	report := c.Collect(context.Background(), CollectOptions{Branch: "scratch"})
	assert.Empty(t, report.StatusLabel)
}
