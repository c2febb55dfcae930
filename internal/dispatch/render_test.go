package dispatch_test

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/eskovalev/taskbot/internal/database"
	"github.com/eskovalev/taskbot/internal/dispatch"
	"github.com/eskovalev/taskbot/internal/timezone"
)

func utcConverter(t *testing.T) *timezone.Converter {
	t.Helper()
	conv, err := timezone.NewResolver().Resolve("UTC")
	if err != nil {
		t.Fatalf("failed to resolve UTC: %v", err)
	}
	return conv
}

func TestRenderReminder(t *testing.T) {
	t.Parallel()

	task := database.Task{
		Title:       "Ship release",
		Description: "Tag and announce",
		DueAt:       sql.NullTime{Time: time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC), Valid: true},
	}

	text := dispatch.RenderReminder(task, utcConverter(t))
	for _, want := range []string{"⏰ Reminder: Ship release", "Due 10.03.2026 17:00", "Tag and announce"} {
		if !strings.Contains(text, want) {
			t.Errorf("reminder text missing %q:\n%s", want, text)
		}
	}
}

func TestRenderDigest(t *testing.T) {
	t.Parallel()

	conv := utcConverter(t)
	date := timezone.Date{Year: 2026, Month: time.March, Day: 10}
	columns := []database.Column{
		{ID: 1, Name: "Inbox"},
		{ID: 2, Name: "Doing"},
	}
	inCol := func(id int64, title string) database.Task {
		return database.Task{Title: title, ColumnID: sql.NullInt64{Int64: id, Valid: true}}
	}
	open := []database.Task{inCol(1, "a"), inCol(1, "b"), inCol(2, "c")}

	text := dispatch.RenderDigest(date, columns, open, nil, []database.Task{open[2]}, conv)
	for _, want := range []string{
		"📋 Daily digest for 2026-03-10",
		"Open tasks: 3 (Inbox 2 · Doing 1)",
		"📅 Due today (1):",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("digest text missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Overdue") {
		t.Errorf("digest lists an overdue section with no overdue tasks:\n%s", text)
	}
}

func TestRenderDigestTruncatesLongSections(t *testing.T) {
	t.Parallel()

	var overdue []database.Task
	for i := 0; i < 8; i++ {
		overdue = append(overdue, database.Task{Title: fmt.Sprintf("task %d", i)})
	}

	date := timezone.Date{Year: 2026, Month: time.March, Day: 10}
	text := dispatch.RenderDigest(date, nil, overdue, overdue, nil, utcConverter(t))
	if !strings.Contains(text, "❗ Overdue (8):") {
		t.Errorf("digest missing overdue count:\n%s", text)
	}
	if !strings.Contains(text, "… and 3 more") {
		t.Errorf("digest does not truncate past the top entries:\n%s", text)
	}
	if strings.Contains(text, "task 5") {
		t.Errorf("digest lists entries past the cutoff:\n%s", text)
	}
}

func TestRenderDigestEmptyDay(t *testing.T) {
	t.Parallel()

	date := timezone.Date{Year: 2026, Month: time.March, Day: 10}
	text := dispatch.RenderDigest(date, nil, nil, nil, nil, utcConverter(t))
	if !strings.Contains(text, "Nothing due today. 🎉") {
		t.Errorf("empty digest missing the all-clear line:\n%s", text)
	}
}
