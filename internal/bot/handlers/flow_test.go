package handlers

import (
	"testing"
	"time"

	"github.com/eskovalev/taskbot/internal/timezone"
)

func berlinConverter(t *testing.T) *timezone.Converter {
	t.Helper()

	conv, err := timezone.NewResolver().Resolve("Europe/Berlin")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	return conv
}

func TestDraftFullDialog(t *testing.T) {
	t.Parallel()

	conv := berlinConverter(t)
	draft := &Draft{}

	steps := []struct {
		input    string
		wantDone bool
	}{
		{input: "Write report", wantDone: false},
		{input: "quarterly numbers", wantDone: false},
		{input: "2026-03-10 17:00", wantDone: false},
		{input: "1", wantDone: false},
		{input: "work, urgent", wantDone: true},
	}

	for _, step := range steps {
		_, done := draft.Advance(step.input, conv)
		if done != step.wantDone {
			t.Fatalf("Advance(%q) done = %v, want %v", step.input, done, step.wantDone)
		}
	}

	if draft.Title != "Write report" || draft.Description != "quarterly numbers" {
		t.Errorf("draft text fields = %q / %q", draft.Title, draft.Description)
	}
	if draft.Priority != 1 {
		t.Errorf("priority = %d, want 1", draft.Priority)
	}
	if draft.DueAt == nil || !draft.DueAt.Equal(time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC)) {
		t.Errorf("due = %v", draft.DueAt)
	}
	if len(draft.Tags) != 2 || draft.Tags[0] != "work" || draft.Tags[1] != "urgent" {
		t.Errorf("tags = %v", draft.Tags)
	}
}

func TestDraftSkipsOptionalFields(t *testing.T) {
	t.Parallel()

	conv := berlinConverter(t)
	draft := &Draft{}

	for i, input := range []string{"Minimal task", "-", "skip", "-", "-"} {
		_, done := draft.Advance(input, conv)
		if done != (i == 4) {
			t.Fatalf("step %d done = %v", i, done)
		}
	}

	if draft.Description != "" || draft.DueAt != nil || len(draft.Tags) != 0 {
		t.Errorf("skipped fields not empty: %+v", draft)
	}
	if draft.Priority != 2 {
		t.Errorf("skipped priority = %d, want the medium default", draft.Priority)
	}
}

func TestDraftRejectsBadInput(t *testing.T) {
	t.Parallel()

	conv := berlinConverter(t)
	draft := &Draft{}

	// Empty title keeps the draft on the title step.
	if _, done := draft.Advance("  ", conv); done {
		t.Fatal("empty title completed the draft")
	}
	draft.Advance("Title", conv)
	draft.Advance("-", conv)

	// Unparseable date keeps the draft on the due step.
	prompt, done := draft.Advance("soonish", conv)
	if done || prompt == "" {
		t.Fatal("bad date should re-prompt")
	}
	draft.Advance("10.03.2026", conv)

	// Out-of-range priority re-prompts.
	if _, done := draft.Advance("7", conv); done {
		t.Fatal("bad priority completed the draft")
	}
	draft.Advance("3", conv)

	if _, done := draft.Advance("home", conv); !done {
		t.Fatal("draft should complete after tags")
	}
	if draft.Priority != 3 {
		t.Errorf("priority = %d, want 3", draft.Priority)
	}
}

func TestSplitTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  []string
	}{
		{input: "work urgent", want: []string{"work", "urgent"}},
		{input: "work,urgent", want: []string{"work", "urgent"}},
		{input: "#work, #urgent", want: []string{"work", "urgent"}},
		{input: "  ,, ", want: []string{}},
	}

	for _, tc := range tests {
		got := splitTags(tc.input)
		if len(got) != len(tc.want) {
			t.Errorf("splitTags(%q) = %v, want %v", tc.input, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("splitTags(%q) = %v, want %v", tc.input, got, tc.want)
				break
			}
		}
	}
}

func TestFlowStore(t *testing.T) {
	t.Parallel()

	flows := NewFlowStore()
	if _, ok := flows.Active(1); ok {
		t.Error("empty store reported an active draft")
	}

	first := flows.Start(1)
	if draft, ok := flows.Active(1); !ok || draft != first {
		t.Error("started draft not retrievable")
	}

	second := flows.Start(1)
	if draft, _ := flows.Active(1); draft != second {
		t.Error("restarting should replace the draft")
	}

	flows.Clear(1)
	if _, ok := flows.Active(1); ok {
		t.Error("cleared draft still active")
	}
}
