package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/harrisonrobin/taskslot/pkg/config"
	"github.com/harrisonrobin/taskslot/pkg/model"
	"github.com/harrisonrobin/taskslot/pkg/rank"
	"github.com/harrisonrobin/taskslot/pkg/scheduler"
	"github.com/harrisonrobin/taskslot/pkg/store"
)

const slotLayout = "Mon 02 Jan 15:04"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))

	highStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderResult(w io.Writer, res *scheduler.Result, loc *time.Location) {
	verb := "Booked"
	if res.DryRun {
		verb = "Would book"
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s %d work units for %d tasks", verb, len(res.Placements), len(res.Considered))))
	if res.Deleted > 0 {
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("Removed %d previously scheduled events", res.Deleted)))
	}
	if len(res.Deduplicated) > 0 {
		fmt.Fprintln(w, mutedStyle.Render("Already on calendar: "+strings.Join(res.Deduplicated, ", ")))
	}

	for _, p := range res.Placements {
		fmt.Fprintf(w, "  %s  %s %s\n",
			okStyle.Render(p.Start.In(loc).Format(slotLayout)),
			p.Title,
			mutedStyle.Render(fmt.Sprintf("(%d/%d)", p.Unit, p.Units)),
		)
	}
	if res.HorizonReached {
		fmt.Fprintln(w, mutedStyle.Render("Stopped at the scheduling horizon"))
	}
}

func renderRanking(w io.Writer, ranked []rank.Scored, p config.Policy) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%3s  %-10s  %4s  %-10s  %5s  %s", "#", "SCORE", "TIER", "DUE", "UNITS", "TITLE")))
	for i, r := range ranked {
		title := r.Task.Title
		if r.Task.Importance == model.ImportanceHigh {
			title = highStyle.Render("! " + title)
		}
		fmt.Fprintf(w, "%3d  %-10.4g  %4d  %-10s  %5d  %s\n",
			i+1, r.Score, r.Tier, r.Task.EffectiveDue().Format("2006-01-02"),
			scheduler.UnitCount(r.Task, p), title)
	}
	if len(ranked) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No uncompleted tasks"))
	}
}

func renderEvents(w io.Writer, events []model.Event, loc *time.Location) {
	for _, ev := range events {
		fmt.Fprintf(w, "%s  %s  %s\n",
			okStyle.Render(ev.Start.In(loc).Format(slotLayout)),
			mutedStyle.Render(ev.End.Sub(ev.Start).String()),
			ev.Subject,
		)
	}
	if len(events) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No events"))
	}
}

func renderLocalTasks(w io.Writer, tasks []store.LocalTask) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%4s  %8s  %-8s  %s", "ID", "PRIORITY", "ESTIMATE", "TASK")))
	for _, t := range tasks {
		line := fmt.Sprintf("%4d  %8d  %-8s  %s", t.ID, t.Priority, t.Estimate, t.Task)
		if t.Done {
			line = mutedStyle.Render(line + " (done)")
		}
		fmt.Fprintln(w, line)
	}
}
