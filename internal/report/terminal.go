package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wonny/f1dq/internal/contracts"
	"github.com/wonny/f1dq/internal/quality"
)

// Colors
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
)

const termRule = "  ─────────────────────────────────────────────────────"

func mark(passed bool) string {
	if passed {
		return successStyle.Render("✓ PASS")
	}
	return accentStyle.Render("✗ FAIL")
}

// Summary renders the scorecard for the terminal
func Summary(res *quality.Result) string {
	var b strings.Builder

	b.WriteString(accentStyle.Render("▸ DATA QUALITY SCORECARD") + "\n")
	b.WriteString(mutedStyle.Render(termRule) + "\n")
	fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("Source:     "), titleStyle.Render(res.Source))
	fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("Rows:       "), titleStyle.Render(num(res.TotalRows())))
	fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("Fingerprint:"), titleStyle.Render(short(res.Fingerprint)))
	fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("Rules:      "), titleStyle.Render(res.RulesName+" "+res.RulesVersion+" ("+short(res.RulesHash)+")"))
	b.WriteString(mutedStyle.Render(termRule) + "\n")

	width := 0
	for _, c := range res.Scorecard {
		if w := lipgloss.Width(c.Name); w > width {
			width = w
		}
	}
	name := lipgloss.NewStyle().Width(width)
	passed := 0
	for i, c := range res.Scorecard {
		if c.Passed {
			passed++
		}
		fmt.Fprintf(&b, "  %d. %s  %s  %s\n", i+1, name.Render(c.Name), mark(c.Passed), mutedStyle.Render(c.Detail))
	}

	b.WriteString(mutedStyle.Render(termRule) + "\n")
	overall := successStyle.Render(fmt.Sprintf("  %d/%d checks passed", passed, len(res.Scorecard)))
	if !res.Passed {
		overall = accentStyle.Render(fmt.Sprintf("  %d/%d checks passed", passed, len(res.Scorecard)))
	}
	b.WriteString(overall + "\n")
	return b.String()
}

// History renders stored snapshots, newest first
func History(snapshots []*contracts.QualitySnapshot) string {
	var b strings.Builder
	b.WriteString(accentStyle.Render("▸ VALIDATION HISTORY") + "\n")
	b.WriteString(mutedStyle.Render(termRule) + "\n")
	if len(snapshots) == 0 {
		b.WriteString(mutedStyle.Render("  No runs recorded.") + "\n")
		return b.String()
	}
	for _, s := range snapshots {
		fmt.Fprintf(&b, "  %s  %s  %s  %s  %s\n",
			titleStyle.Render(s.CreatedAt.Format("2006-01-02 15:04")),
			mark(s.Passed),
			mutedStyle.Render(fmt.Sprintf("%d/%d", s.PassedCount(), len(s.Checks))),
			mutedStyle.Render("data "+short(s.Fingerprint)+" rules "+short(s.RulesHash)),
			mutedStyle.Render(s.RunID),
		)
		if failed := s.FailedChecks(); len(failed) > 0 {
			b.WriteString(accentStyle.Render("      ✗ "+strings.Join(failed, "; ")) + "\n")
		}
	}
	b.WriteString(mutedStyle.Render(termRule) + "\n")
	return b.String()
}
