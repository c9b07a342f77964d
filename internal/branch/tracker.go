package branch

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

// TrackerPath is the task tracker location relative to the working copy.
const TrackerPath = "pr_info/TASK_TRACKER.md"

// TrackerItem is one checkbox line from the tracker's implementation-steps
// section.
type TrackerItem struct {
	Indent int
	Done   bool
	Name   string
}

var (
	sectionRe  = regexp.MustCompile(`(?i)^###\s+(implementation steps|tasks)\s*$`)
	stopRe     = regexp.MustCompile(`(?i)^###\s+pull request\s*$`)
	checkboxRe = regexp.MustCompile(`^(\s*)-\s\[( |x|X)\]\s*(.*)$`)
)

// ParseTracker extracts the checkbox items from the implementation-steps
// section of a TASK_TRACKER.md body. The section header is
// "### Implementation Steps" or "### Tasks", case-insensitive; parsing
// stops at "### Pull Request" or end of file. found is false when no
// section header is present.
func ParseTracker(content string) (items []TrackerItem, found bool) {
	inSection := false
	for _, line := range strings.Split(content, "\n") {
		if sectionRe.MatchString(line) {
			inSection = true
			found = true
			continue
		}
		if !inSection {
			continue
		}
		if stopRe.MatchString(line) {
			break
		}
		m := checkboxRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		items = append(items, TrackerItem{
			Indent: indentLevel(m[1]),
			Done:   m[2] == "x" || m[2] == "X",
			Name:   StripMarkdown(m[3]),
		})
	}
	return items, found
}

// indentLevel counts nesting from leading whitespace, two columns per level
// with tabs expanded.
func indentLevel(ws string) int {
	cols := 0
	for _, r := range ws {
		if r == '\t' {
			cols += 2
		} else {
			cols++
		}
	}
	return cols / 2
}

// StripMarkdown removes bold and code markers from an item name.
func StripMarkdown(name string) string {
	name = strings.ReplaceAll(name, "**", "")
	name = strings.ReplaceAll(name, "`", "")
	return strings.TrimSpace(name)
}

// RenderTracker regenerates an implementation-steps section from items.
// Parsing the output yields the same (indent, done, name) tuples.
func RenderTracker(items []TrackerItem) string {
	var b strings.Builder
	b.WriteString("### Implementation Steps\n\n")
	for _, it := range items {
		mark := " "
		if it.Done {
			mark = "x"
		}
		fmt.Fprintf(&b, "%s- [%s] %s\n", strings.Repeat("  ", it.Indent), mark, it.Name)
	}
	return b.String()
}

// TrackerComplete reports whether no incomplete items remain.
func TrackerComplete(items []TrackerItem) bool {
	for _, it := range items {
		if !it.Done {
			return false
		}
	}
	return true
}

// LoadTracker reads and parses the tracker for a working copy. found is
// false when the file or its section is absent; that is not an error.
func LoadTracker(fs afero.Fs, workDir string) (items []TrackerItem, found bool, err error) {
	data, err := afero.ReadFile(fs, filepath.Join(workDir, TrackerPath))
	if err != nil {
		return nil, false, nil
	}
	items, found = ParseTracker(string(data))
	return items, found, nil
}
