package dispatch

import (
	"fmt"
	"strings"

	"github.com/eskovalev/taskbot/internal/database"
	"github.com/eskovalev/taskbot/internal/timezone"
)

// digestTopN bounds how many overdue and due-today tasks a digest lists
// by name; the rest are summarized as a count.
const digestTopN = 5

var priorityMarks = map[int]string{1: "🔴", 2: "🟡", 3: "🟢"}

// RenderReminder builds the reminder message for a task.
func RenderReminder(task database.Task, conv *timezone.Converter) string {
	var b strings.Builder
	b.WriteString("⏰ Reminder: ")
	b.WriteString(task.Title)
	if task.DueAt.Valid {
		fmt.Fprintf(&b, "\nDue %s", conv.FormatLocal(task.DueAt.Time))
	}
	if task.Description != "" {
		b.WriteString("\n")
		b.WriteString(task.Description)
	}
	return b.String()
}

// RenderDigest builds the daily digest: open-task counts per column
// plus the overdue and due-today sets for the local date.
func RenderDigest(date timezone.Date, columns []database.Column, open, overdue, today []database.Task, conv *timezone.Converter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Daily digest for %s\n", date)
	fmt.Fprintf(&b, "Open tasks: %d", len(open))
	if summary := columnSummary(columns, open); summary != "" {
		fmt.Fprintf(&b, " (%s)", summary)
	}
	b.WriteString("\n")

	writeSection(&b, "❗ Overdue", overdue, conv)
	writeSection(&b, "📅 Due today", today, conv)

	if len(overdue) == 0 && len(today) == 0 {
		b.WriteString("\nNothing due today. 🎉")
	}
	return b.String()
}

// columnSummary renders "Inbox 2 · Doing 1", skipping empty columns.
func columnSummary(columns []database.Column, open []database.Task) string {
	counts := make(map[int64]int, len(columns))
	for _, task := range open {
		if task.ColumnID.Valid {
			counts[task.ColumnID.Int64]++
		}
	}

	var parts []string
	for _, col := range columns {
		if n := counts[col.ID]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", col.Name, n))
		}
	}
	return strings.Join(parts, " · ")
}

func writeSection(b *strings.Builder, heading string, tasks []database.Task, conv *timezone.Converter) {
	if len(tasks) == 0 {
		return
	}

	fmt.Fprintf(b, "\n%s (%d):\n", heading, len(tasks))
	for i, task := range tasks {
		if i == digestTopN {
			fmt.Fprintf(b, "  … and %d more\n", len(tasks)-digestTopN)
			break
		}
		mark := priorityMarks[task.Priority]
		if mark == "" {
			mark = "•"
		}
		fmt.Fprintf(b, "  %s %s", mark, task.Title)
		if task.DueAt.Valid {
			fmt.Fprintf(b, " — %s", conv.FormatLocal(task.DueAt.Time))
		}
		b.WriteString("\n")
	}
}
