// Package branch provides branch plumbing for the coordinator: discovery of
// issue-linked branches, base-branch detection, rebase checks, the task
// tracker contract, and the branch status collector.
//
// Git runs through os/exec rather than a go-git reimplementation so the
// user's SSH keys, credential helpers, and other shell configuration apply.
package branch

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/mcpcoder/coordinator/models"
)

var (
	ErrNotGitRepository = errors.New("not a git repository")
	ErrBranchNotFound   = errors.New("branch not found")
)

// Commander is an interface for executing commands. It allows mocking in
// tests.
type Commander interface {
	Run(name string, args ...string) (string, error)
	RunInDir(dir, name string, args ...string) (string, error)
}

// ShellCommander executes real shell commands.
type ShellCommander struct{}

// Run executes a command in the current directory.
func (c *ShellCommander) Run(name string, args ...string) (string, error) {
	return c.RunInDir("", name, args...)
}

// RunInDir executes a command in the specified directory.
func (c *ShellCommander) RunInDir(dir, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg != "" {
			return "", fmt.Errorf("%w: %s", err, errMsg)
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Manager answers branch questions for one working copy.
type Manager struct {
	commander Commander
	workDir   string
}

// NewManager creates a branch manager for the given directory.
func NewManager(workDir string) *Manager {
	return &Manager{commander: &ShellCommander{}, workDir: workDir}
}

// NewManagerWithCommander creates a manager with a custom commander (for
// testing).
func NewManagerWithCommander(workDir string, commander Commander) *Manager {
	return &Manager{commander: commander, workDir: workDir}
}

func (m *Manager) git(args ...string) (string, error) {
	out, err := m.commander.RunInDir(m.workDir, "git", args...)
	if err != nil {
		return "", translateGitError(err)
	}
	return out, nil
}

// translateGitError maps well-known git failure messages onto the package
// sentinels so callers can match with errors.Is.
func translateGitError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not a git repository"):
		return fmt.Errorf("%w: %v", ErrNotGitRepository, err)
	case strings.Contains(msg, "unknown revision"), strings.Contains(msg, "bad revision"):
		return fmt.Errorf("%w: %v", ErrBranchNotFound, err)
	}
	return err
}

// LinkedBranches returns all local and remote branches linked to the issue:
// those whose name begins "<issue-number>-". Remote prefixes are stripped
// and duplicates collapsed.
func (m *Manager) LinkedBranches(issueNumber int) ([]string, error) {
	out, err := m.git("branch", "-a", "--format=%(refname:short)")
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	prefix := strconv.Itoa(issueNumber) + "-"
	seen := make(map[string]struct{})
	for _, line := range strings.Split(out, "\n") {
		name := strings.TrimSpace(line)
		if name == "" || strings.Contains(name, "HEAD") {
			continue
		}
		if idx := strings.Index(name, "/"); idx >= 0 {
			// origin/42-fix-bug -> 42-fix-bug
			name = name[idx+1:]
		}
		if strings.HasPrefix(name, prefix) {
			seen[name] = struct{}{}
		}
	}
	branches := make([]string, 0, len(seen))
	for b := range seen {
		branches = append(branches, b)
	}
	sort.Strings(branches)
	return branches, nil
}

// CurrentBranch returns the checked-out branch name.
func (m *Manager) CurrentBranch() (string, error) {
	out, err := m.git("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve current branch: %w", err)
	}
	return out, nil
}

// DefaultBranch resolves the remote's default branch, falling back to main.
func (m *Manager) DefaultBranch() string {
	out, err := m.git("symbolic-ref", "refs/remotes/origin/HEAD", "--short")
	if err != nil {
		return "main"
	}
	if idx := strings.Index(out, "/"); idx >= 0 {
		return out[idx+1:]
	}
	return out
}

// BaseBranch picks the base for a working branch: an explicit override
// first, then a base named in the linked issue's body, then the remote
// default.
func (m *Manager) BaseBranch(override string, issue *models.Issue) string {
	if override != "" {
		return override
	}
	if issue != nil {
		if base := baseFromIssueBody(issue.Body); base != "" {
			return base
		}
	}
	return m.DefaultBranch()
}

// baseFromIssueBody scans an issue body for a "Base branch: <name>" line.
func baseFromIssueBody(body string) string {
	const marker = "base branch:"
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) >= len(marker) && strings.EqualFold(trimmed[:len(marker)], marker) {
			return strings.TrimSpace(trimmed[len(marker):])
		}
	}
	return ""
}

// NeedsRebase reports whether base has commits the branch tip lacks, with a
// human-readable reason.
func (m *Manager) NeedsRebase(branch, base string) (bool, string, error) {
	out, err := m.git("rev-list", "--count", branch+".."+base)
	if err != nil {
		return false, "", fmt.Errorf("compare %s against %s: %w", branch, base, err)
	}
	behind, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return false, "", fmt.Errorf("unexpected rev-list output %q: %w", out, err)
	}
	if behind == 0 {
		return false, "up to date with " + base, nil
	}
	return true, fmt.Sprintf("%s has %d commit(s) not on %s", base, behind, branch), nil
}

// IssueForBranch returns the issue number a branch is linked to, or false
// for branches without the "<number>-" prefix.
func IssueForBranch(branch string) (int, bool) {
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
