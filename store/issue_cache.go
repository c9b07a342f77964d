// Package store implements the per-repo issue cache: an on-disk JSON
// snapshot of a repository's open issues that absorbs the cost of GitHub
// listing between poll cycles.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"

	"github.com/mcpcoder/coordinator/models"
)

const (
	cacheDirName    = "coordinator_cache"
	configDirName   = ".mcp_coder"
	cacheFileSuffix = ".issues.json"
)

// IssueFetcher lists the repository's open issues from the authoritative
// source. Pull requests are excluded. The fetcher is already scoped to the
// repo whose cache is being refreshed.
type IssueFetcher interface {
	ListOpenIssues(ctx context.Context) ([]models.Issue, error)
}

// IssueCache serves current-enough issue snapshots and propagates local
// label edits. One JSON file per repo under the cache directory.
type IssueCache struct {
	fs  afero.Fs
	dir string
	// now is swappable for tests.
	now func() time.Time
}

// NewIssueCache creates a cache rooted at dir on the given filesystem.
func NewIssueCache(fs afero.Fs, dir string) *IssueCache {
	return &IssueCache{fs: fs, dir: dir, now: time.Now}
}

// DefaultDir returns <user-home>/.mcp_coder/coordinator_cache.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home for cache dir: %w", err)
	}
	return filepath.Join(home, configDirName, cacheDirName), nil
}

// FilePath returns the cache file path for "owner/name".
func (c *IssueCache) FilePath(repo string) string {
	return filepath.Join(c.dir, strings.ReplaceAll(repo, "/", "_")+cacheFileSuffix)
}

// GetAllCachedIssues returns the repo's open issues, refreshing from GitHub
// when the cache file is absent, corrupt, older than refreshMinutes, or
// forceRefresh is set. A refresh persists atomically; persistence failure is
// logged and the fresh in-memory data returned anyway. A GitHub read error
// during refresh propagates to the caller.
func (c *IssueCache) GetAllCachedIssues(ctx context.Context, repo string, refreshMinutes int, forceRefresh bool, fetcher IssueFetcher) ([]models.Issue, error) {
	if refreshMinutes <= 0 {
		return nil, fmt.Errorf("refreshMinutes must be positive, got %d", refreshMinutes)
	}
	cached := c.load(repo)

	stale := cached.LastChecked == nil ||
		c.now().Sub(*cached.LastChecked) > time.Duration(refreshMinutes)*time.Minute
	if !stale && !forceRefresh {
		return issueList(cached), nil
	}

	fresh, err := fetcher.ListOpenIssues(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh issue cache for %s: %w", repo, err)
	}

	logDrift(repo, cached, fresh)

	next := models.EmptyCacheFile()
	now := c.now().UTC()
	next.LastChecked = &now
	for _, is := range fresh {
		next.Issues[strconv.Itoa(is.Number)] = is
	}
	if err := c.persist(repo, next); err != nil {
		slog.Warn("failed to persist issue cache, serving in-memory data",
			"repo", repo, "error", err)
	}
	return issueList(next), nil
}

// UpdateIssueLabelsInCache rewrites the cache file for one issue: oldLabel
// removed if present, newLabel added, everything else untouched.
// last_checked is never advanced. I/O errors are logged at warning and
// swallowed; GitHub already holds the authoritative state and the next
// TTL refresh heals any divergence.
func (c *IssueCache) UpdateIssueLabelsInCache(repo string, number int, oldLabel, newLabel string) {
	cached := c.load(repo)
	key := strconv.Itoa(number)
	is, ok := cached.Issues[key]
	if !ok {
		slog.Warn("issue not present in cache, skipping label update",
			"repo", repo, "issue", number)
		return
	}

	kept := make([]models.Label, 0, len(is.Labels)+1)
	for _, l := range is.Labels {
		if l.Name == oldLabel || l.Name == newLabel {
			continue
		}
		kept = append(kept, l)
	}
	kept = append(kept, models.Label{Name: newLabel})
	is.Labels = kept
	cached.Issues[key] = is

	if err := c.persist(repo, cached); err != nil {
		slog.Warn("failed to write label update to issue cache",
			"repo", repo, "issue", number, "error", err)
	}
}

// load reads the repo's cache file. A missing or corrupt file reads as the
// empty snapshot; that is not an error.
func (c *IssueCache) load(repo string) models.CacheFile {
	path := c.FilePath(repo)
	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return models.EmptyCacheFile()
	}
	var cf models.CacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		slog.Debug("issue cache file unreadable, treating as empty",
			"path", path, "error", err)
		return models.EmptyCacheFile()
	}
	if cf.Issues == nil {
		cf.Issues = make(map[string]models.Issue)
	}
	return cf
}

// persist writes the snapshot to a sibling temp file and renames it into
// place. Concurrent coordinators race on the rename but never tear a file.
func (c *IssueCache) persist(repo string, cf models.CacheFile) error {
	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir %s: %w", c.dir, err)
	}
	path := c.FilePath(repo)

	if lock := c.tryFlock(path); lock != nil {
		defer func() { _ = lock.Unlock() }()
	}

	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal issue cache: %w", err)
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(c.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp cache file %s: %w", tmp, err)
	}
	if err := c.fs.Rename(tmp, path); err != nil {
		_ = c.fs.Remove(tmp)
		return fmt.Errorf("rename cache file into place: %w", err)
	}
	return nil
}

// tryFlock acquires an advisory lock when the cache lives on the real
// filesystem. In-memory filesystems used by tests have no lock support.
func (c *IssueCache) tryFlock(path string) *flock.Flock {
	if _, ok := c.fs.(*afero.OsFs); !ok {
		return nil
	}
	lock := flock.New(path + ".lock")
	if locked, err := lock.TryLock(); err != nil || !locked {
		if err := lock.Lock(); err != nil {
			slog.Debug("could not acquire cache file lock", "path", path, "error", err)
			return nil
		}
	}
	return lock
}

// logDrift emits one info line per diverging field for every issue whose
// cached state or label set differs from the fresh fetch. Operators use
// these to spot out-of-band changes; the fresh data always wins.
func logDrift(repo string, cached models.CacheFile, fresh []models.Issue) {
	for _, f := range fresh {
		old, ok := cached.Issues[strconv.Itoa(f.Number)]
		if !ok {
			continue
		}
		if old.State != f.State {
			slog.Info(fmt.Sprintf("Issue #%d: cached state %q differs from fetched %q",
				f.Number, old.State, f.State), "repo", repo)
		}
		if !sameLabelSet(old.Labels, f.Labels) {
			slog.Info(fmt.Sprintf("Issue #%d: cached labels %v differ from fetched %v",
				f.Number, labelNames(old.Labels), labelNames(f.Labels)), "repo", repo)
		}
	}
}

func labelNames(labels []models.Label) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.Name)
	}
	sort.Strings(names)
	return names
}

func sameLabelSet(a, b []models.Label) bool {
	an, bn := labelNames(a), labelNames(b)
	if len(an) != len(bn) {
		return false
	}
	for i := range an {
		if an[i] != bn[i] {
			return false
		}
	}
	return true
}

func issueList(cf models.CacheFile) []models.Issue {
	out := make([]models.Issue, 0, len(cf.Issues))
	for _, is := range cf.Issues {
		out = append(out, is)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
