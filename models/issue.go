package models

import (
	"time"
)

// Label is a GitHub issue label as stored in the cache.
type Label struct {
	Name  string `json:"name" validate:"required"`
	Color string `json:"color,omitempty"`
}

// IssueUser is the subset of a GitHub account the coordinator records.
type IssueUser struct {
	Login string `json:"login"`
}

// Issue is the cached snapshot of one GitHub issue. The coordinator reads
// only State, Labels, Number, and HTMLURL; the rest is kept so operators can
// inspect cache files without a round-trip to GitHub.
type Issue struct {
	Number    int         `json:"number" validate:"required,min=1"`
	Title     string      `json:"title"`
	Body      string      `json:"body,omitempty"`
	State     string      `json:"state" validate:"required,oneof=open closed"`
	Labels    []Label     `json:"labels"`
	Assignees []IssueUser `json:"assignees,omitempty"`
	Author    IssueUser   `json:"author"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	HTMLURL   string      `json:"html_url"`
	Locked    bool        `json:"locked"`
}

// LabelNames returns the label names in cached order.
func (i Issue) LabelNames() []string {
	names := make([]string, 0, len(i.Labels))
	for _, l := range i.Labels {
		names = append(names, l.Name)
	}
	return names
}

// HasLabel reports whether the issue carries the named label.
func (i Issue) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if l.Name == name {
			return true
		}
	}
	return false
}

// StatusLabels returns every label carrying the status prefix, known stage
// or not. Eligibility requires exactly one.
func (i Issue) StatusLabels() []string {
	var out []string
	for _, l := range i.Labels {
		if IsStatusLabel(l.Name) {
			out = append(out, l.Name)
		}
	}
	return out
}

// CacheFile is the on-disk shape of one repo's issue cache:
// a last-refresh timestamp plus the issue records keyed by number.
type CacheFile struct {
	LastChecked *time.Time       `json:"last_checked"`
	Issues      map[string]Issue `json:"issues"`
}

// EmptyCacheFile is the snapshot a missing or corrupt cache file reads as.
func EmptyCacheFile() CacheFile {
	return CacheFile{Issues: make(map[string]Issue)}
}
