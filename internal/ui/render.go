// Package ui renders branch status reports: a styled human layout for
// terminals, and a plain structured layout for LLM consumers.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mcpcoder/coordinator/models"
)

var (
	colorSuccess = lipgloss.Color("42")
	colorError   = lipgloss.Color("160")
	colorWarning = lipgloss.Color("214")
	colorSubtle  = lipgloss.Color("241")

	styleTitle   = lipgloss.NewStyle().Bold(true)
	styleSection = lipgloss.NewStyle().Bold(true).Underline(true)
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess)
	styleError   = lipgloss.NewStyle().Foreground(colorError)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarning)
	styleSubtle  = lipgloss.NewStyle().Foreground(colorSubtle)
)

func ciIcon(status models.CIStatus) string {
	switch status {
	case models.CIPassed:
		return styleSuccess.Render("✔")
	case models.CIFailed:
		return styleError.Render("✘")
	case models.CIPending:
		return styleWarning.Render("…")
	default:
		return styleSubtle.Render("—")
	}
}

func boolIcon(ok bool) string {
	if ok {
		return styleSuccess.Render("✔")
	}
	return styleWarning.Render("✘")
}

// RenderHuman lays the report out for an operator's terminal.
func RenderHuman(r models.BranchStatusReport) string {
	var b strings.Builder

	b.WriteString(styleTitle.Render(fmt.Sprintf("Branch %s (base: %s)", r.Branch, r.BaseBranch)))
	b.WriteString("\n\n")

	b.WriteString(styleSection.Render("Checks"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %s CI: %s\n", ciIcon(r.CIStatus), r.CIStatus)
	if r.TrackerFound {
		fmt.Fprintf(&b, "  %s Tasks complete\n", boolIcon(r.TasksComplete))
	} else {
		fmt.Fprintf(&b, "  %s No task tracker found\n", styleSubtle.Render("—"))
	}
	fmt.Fprintf(&b, "  %s Rebase needed", boolIcon(!r.RebaseNeeded))
	if r.RebaseReason != "" {
		fmt.Fprintf(&b, " (%s)", r.RebaseReason)
	}
	b.WriteString("\n")
	if r.StatusLabel != "" {
		fmt.Fprintf(&b, "  %s Label: %s\n", styleSubtle.Render("•"), r.StatusLabel)
	}

	if r.CIDetails != "" {
		b.WriteString("\n")
		b.WriteString(styleSection.Render("CI Failure"))
		b.WriteString("\n")
		b.WriteString(r.CIDetails)
		if !strings.HasSuffix(r.CIDetails, "\n") {
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(styleSection.Render("Recommendations"))
	b.WriteString("\n")
	for i, rec := range r.Recommendations {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, rec)
	}
	return b.String()
}

// RenderLLM lays the report out for machine consumers: a one-line summary,
// the failure excerpt when present, and a summary-and-action footer.
func RenderLLM(r models.BranchStatusReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "branch=%s base=%s ci=%s tasks_complete=%t rebase_needed=%t label=%s\n",
		r.Branch, r.BaseBranch, r.CIStatus, r.TasksComplete, r.RebaseNeeded, r.StatusLabel)

	if r.CIDetails != "" {
		b.WriteString("\n")
		b.WriteString(r.CIDetails)
		if !strings.HasSuffix(r.CIDetails, "\n") {
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if r.Ready() {
		b.WriteString("SUMMARY: branch is ready to advance.\n")
	} else {
		b.WriteString("SUMMARY: branch is not ready.\n")
	}
	if len(r.Recommendations) > 0 {
		fmt.Fprintf(&b, "ACTION: %s\n", r.Recommendations[0])
	}
	return b.String()
}
