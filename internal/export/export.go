// Package export renders a board as a Markdown document or a CSV file
// for the /export command.
package export

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/eskovalev/taskbot/internal/database"
	"github.com/eskovalev/taskbot/internal/timezone"
)

// Format identifies an export format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
)

// Payload is a rendered export ready to be sent as a document.
type Payload struct {
	Format   Format
	FileName string
	Data     []byte
}

var priorityNames = map[int]string{1: "high", 2: "medium", 3: "low"}

// Build renders the board in the requested format. Deadlines are
// rendered in the owner's local time.
func Build(format Format, board *database.Board, columns []database.Column, tasks []database.Task, conv *timezone.Converter, now time.Time) (*Payload, error) {
	stamp := now.UTC().Format("20060102")

	switch format {
	case FormatMarkdown:
		data := renderMarkdown(board, columns, tasks, conv)
		return &Payload{
			Format:   FormatMarkdown,
			FileName: fmt.Sprintf("board-%s.md", stamp),
			Data:     data,
		}, nil
	case FormatCSV:
		data, err := renderCSV(columns, tasks, conv)
		if err != nil {
			return nil, err
		}
		return &Payload{
			Format:   FormatCSV,
			FileName: fmt.Sprintf("board-%s.csv", stamp),
			Data:     data,
		}, nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

func renderMarkdown(board *database.Board, columns []database.Column, tasks []database.Task, conv *timezone.Converter) []byte {
	byColumn := groupByColumn(tasks)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", board.Name)
	for _, col := range columns {
		fmt.Fprintf(&b, "\n## %s\n\n", col.Name)
		group := byColumn[col.ID]
		if len(group) == 0 {
			b.WriteString("_empty_\n")
			continue
		}
		for _, task := range group {
			fmt.Fprintf(&b, "- [%s] %s", checkbox(task), task.Title)
			if task.DueAt.Valid {
				fmt.Fprintf(&b, " (due %s)", conv.FormatLocal(task.DueAt.Time))
			}
			if len(task.Tags) > 0 {
				fmt.Fprintf(&b, " #%s", strings.Join(task.Tags, " #"))
			}
			b.WriteString("\n")
			if task.Description != "" {
				fmt.Fprintf(&b, "  %s\n", task.Description)
			}
		}
	}
	return []byte(b.String())
}

func renderCSV(columns []database.Column, tasks []database.Task, conv *timezone.Converter) ([]byte, error) {
	columnNames := make(map[int64]string, len(columns))
	for _, col := range columns {
		columnNames[col.ID] = col.Name
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "title", "description", "priority", "status", "column", "due_at", "tags"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, task := range tasks {
		due := ""
		if task.DueAt.Valid {
			due = conv.FormatLocal(task.DueAt.Time)
		}
		record := []string{
			strconv.FormatInt(task.ID, 10),
			task.Title,
			task.Description,
			priorityName(task.Priority),
			task.Status,
			columnName(columnNames, task.ColumnID),
			due,
			strings.Join(task.Tags, ","),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row for task %d: %w", task.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func groupByColumn(tasks []database.Task) map[int64][]database.Task {
	byColumn := make(map[int64][]database.Task)
	for _, task := range tasks {
		if !task.ColumnID.Valid {
			continue
		}
		byColumn[task.ColumnID.Int64] = append(byColumn[task.ColumnID.Int64], task)
	}
	return byColumn
}

func checkbox(task database.Task) string {
	if task.Done() {
		return "x"
	}
	return " "
}

func priorityName(priority int) string {
	if name, ok := priorityNames[priority]; ok {
		return name
	}
	return strconv.Itoa(priority)
}

func columnName(names map[int64]string, id sql.NullInt64) string {
	if !id.Valid {
		return ""
	}
	return names[id.Int64]
}
