package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/faulty-technology/homelab/internal/dag"
	"github.com/faulty-technology/homelab/internal/util/change"
)

// RenderOutputs renders key/value pairs as an aligned two-column table.
func RenderOutputs(title string, pairs [][2]string) string {
	width := 0
	for _, p := range pairs {
		width = max(width, lipgloss.Width(p[0]))
	}
	keyCol := keyStyle.Width(width + 2)

	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	for _, p := range pairs {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, keyCol.Render(p[0]), p[1]))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderSummary renders the mutating records of set, any failed or skipped
// steps of report, and a one-line count of every action. report may be nil.
func RenderSummary(title string, set *change.Set, report *dag.Report) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	var changed []string
	for _, r := range set.Records() {
		if !r.Action.Mutating() {
			continue
		}
		changed = append(changed, actionLine(r))
	}
	if len(changed) > 0 {
		b.WriteString(sectionStyle.Render("Changes"))
		b.WriteString("\n")
		b.WriteString(strings.Join(changed, "\n"))
		b.WriteString("\n")
	}

	if report != nil {
		renderSteps(&b, report)
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(set.Summary()))
	b.WriteString("\n")
	return b.String()
}

func actionLine(r change.Record) string {
	switch r.Action {
	case change.Created:
		return createdStyle.Render(createdMark) + " " + r.Resource
	case change.Updated:
		return updatedStyle.Render(updatedMark) + " " + r.Resource
	default:
		return deletedStyle.Render(deletedMark) + " " + r.Resource
	}
}

func renderSteps(b *strings.Builder, report *dag.Report) {
	var failed, skipped []string
	for _, name := range report.Completed {
		res := report.Results[name]
		switch res.Status {
		case dag.StatusFailed:
			failed = append(failed, fmt.Sprintf("%s %s: %v", failedStyle.Render(failedMark), name, res.Err))
		case dag.StatusSkipped:
			skipped = append(skipped, dimStyle.Render(skippedMark+" "+name))
		}
	}

	if len(failed) > 0 {
		b.WriteString(sectionStyle.Render("Failed"))
		b.WriteString("\n")
		b.WriteString(strings.Join(failed, "\n"))
		b.WriteString("\n")
	}
	if len(skipped) > 0 {
		b.WriteString(sectionStyle.Render("Not run"))
		b.WriteString("\n")
		b.WriteString(strings.Join(skipped, "\n"))
		b.WriteString("\n")
	}
}
