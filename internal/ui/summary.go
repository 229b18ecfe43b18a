package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/klauern/assetsync/internal/sync"
)

var summaryStyles = struct {
	Panel   lipgloss.Style
	Title   lipgloss.Style
	Label   lipgloss.Style
	Failure lipgloss.Style
}{
	Panel:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
	Label:   lipgloss.NewStyle().Width(14),
	Failure: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
}

var titleCaser = cases.Title(language.English)

// Title title-cases a label such as an outcome or decision name.
func Title(s string) string {
	return titleCaser.String(strings.ReplaceAll(s, "-", " "))
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// RenderSummary renders a finished run as a bordered panel.
func RenderSummary(r *sync.Result) string {
	var b strings.Builder

	title := "Sync complete"
	if !r.Success() {
		title = "Sync incomplete"
	}
	b.WriteString(summaryStyles.Title.Render(title))
	fmt.Fprintf(&b, "\n%s %s\n", Dim("platform"), r.Platform)
	fmt.Fprintf(&b, "%s %s\n", Dim("root"), r.Root)
	fmt.Fprintf(&b, "%s %s\n\n", Dim("took"), r.Duration.Round(time.Millisecond))

	rows := []struct {
		outcome sync.Outcome
		count   int
		extra   string
	}{
		{sync.OutcomeFetched, len(r.Fetched()), FormatBytes(r.Stats.BytesTransferred)},
		{sync.OutcomeMaterialized, len(r.Materialized()), ""},
		{sync.OutcomeSkipped, len(r.Skipped()), ""},
		{sync.OutcomeFailed, len(r.Failed()), ""},
		{sync.OutcomeNotRun, len(r.NotRun()), ""},
	}
	for _, row := range rows {
		if row.count == 0 && (row.outcome == sync.OutcomeFailed || row.outcome == sync.OutcomeNotRun) {
			continue
		}
		line := StatusOutcome(row.outcome, summaryStyles.Label.Render(Title(string(row.outcome)))) + fmt.Sprintf("%d", row.count)
		if row.extra != "" && row.count > 0 {
			line += Dim(" (" + row.extra + ")")
		}
		b.WriteString(line + "\n")
	}

	if failed := r.Failed(); len(failed) > 0 {
		b.WriteString("\n")
		for _, f := range failed {
			b.WriteString(summaryStyles.Failure.Render(fmt.Sprintf("%s: %v", f.Task.Artifact.Path, f.Error)))
			b.WriteString("\n")
		}
	}

	return summaryStyles.Panel.Render(strings.TrimRight(b.String(), "\n"))
}

// RenderPlan lists the tasks that would change the tree followed by the
// totals per decision.
func RenderPlan(tasks []sync.Task) string {
	var b strings.Builder
	counts := make(map[sync.Decision]int)
	var fetchBytes uint64

	for _, t := range tasks {
		counts[t.Decision]++
		switch t.Decision {
		case sync.DecisionFetch:
			fetchBytes += t.Artifact.Size
			b.WriteString(StatusDecision(t.Decision, t.Artifact.Path))
			b.WriteString(Dim(" (" + FormatBytes(t.Artifact.Size) + ")"))
			b.WriteString("\n")
		case sync.DecisionMaterialize:
			b.WriteString(StatusDecision(t.Decision, t.Artifact.Path))
			b.WriteString(Dim(" (" + t.Artifact.Kind.String() + ")"))
			b.WriteString("\n")
		}
	}

	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(Header("Plan"))
	fmt.Fprintf(&b, ": %d to fetch (%s), %d to materialize, %d up to date",
		counts[sync.DecisionFetch], FormatBytes(fetchBytes),
		counts[sync.DecisionMaterialize], counts[sync.DecisionSkip])
	b.WriteString("\n")
	return b.String()
}
