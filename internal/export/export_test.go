// Package export_test tests board rendering.
package export_test

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/eskovalev/taskbot/internal/database"
	"github.com/eskovalev/taskbot/internal/export"
	"github.com/eskovalev/taskbot/internal/timezone"
)

func testBoard(t *testing.T) (*database.Board, []database.Column, []database.Task, *timezone.Converter) {
	t.Helper()

	conv, err := timezone.NewResolver().Resolve("Europe/Berlin")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	board := &database.Board{ID: 1, Name: "My board"}
	columns := []database.Column{
		{ID: 10, BoardID: 1, Name: "Todo", Position: 0},
		{ID: 11, BoardID: 1, Name: "Done", Position: 1, IsDone: true},
	}
	due := time.Date(2026, 3, 10, 16, 30, 0, 0, time.UTC)
	tasks := []database.Task{
		{
			ID:       1,
			BoardID:  1,
			ColumnID: sql.NullInt64{Int64: 10, Valid: true},
			Title:    "Write report",
			Priority: 1,
			Status:   database.StatusActive,
			DueAt:    sql.NullTime{Time: due, Valid: true},
			Tags:     []string{"work"},
		},
		{
			ID:          2,
			BoardID:     1,
			ColumnID:    sql.NullInt64{Int64: 11, Valid: true},
			Title:       "Book flights",
			Description: "window seat",
			Priority:    2,
			Status:      database.StatusDone,
			CompletedAt: sql.NullTime{Time: due, Valid: true},
		},
	}
	return board, columns, tasks, conv
}

func TestBuildMarkdown(t *testing.T) {
	t.Parallel()

	board, columns, tasks, conv := testBoard(t)
	now := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)

	payload, err := export.Build(export.FormatMarkdown, board, columns, tasks, conv, now)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if payload.FileName != "board-20260311.md" {
		t.Errorf("file name = %q", payload.FileName)
	}

	text := string(payload.Data)
	for _, want := range []string{
		"# My board",
		"## Todo",
		"## Done",
		"- [ ] Write report (due 10.03.2026 17:30) #work",
		"- [x] Book flights",
		"  window seat",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("markdown missing %q:\n%s", want, text)
		}
	}
}

func TestBuildCSV(t *testing.T) {
	t.Parallel()

	board, columns, tasks, conv := testBoard(t)
	now := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)

	payload, err := export.Build(export.FormatCSV, board, columns, tasks, conv, now)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if payload.FileName != "board-20260311.csv" {
		t.Errorf("file name = %q", payload.FileName)
	}

	records, err := csv.NewReader(bytes.NewReader(payload.Data)).ReadAll()
	if err != nil {
		t.Fatalf("produced csv does not parse: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d csv rows, want header plus 2 tasks", len(records))
	}
	if records[0][0] != "id" || records[0][7] != "tags" {
		t.Errorf("unexpected header: %v", records[0])
	}
	if records[1][1] != "Write report" || records[1][3] != "high" || records[1][5] != "Todo" {
		t.Errorf("unexpected first row: %v", records[1])
	}
	if records[2][4] != database.StatusDone || records[2][6] != "" {
		t.Errorf("unexpected second row: %v", records[2])
	}
}

func TestBuildUnknownFormat(t *testing.T) {
	t.Parallel()

	board, columns, tasks, conv := testBoard(t)
	if _, err := export.Build(export.Format("xml"), board, columns, tasks, conv, time.Now()); err == nil {
		t.Fatal("Build with an unknown format should fail")
	}
}
