package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eskovalev/taskbot/internal/timezone"
)

type flowStep int

const (
	stepTitle flowStep = iota
	stepDescription
	stepDue
	stepPriority
	stepTags
	stepDone
)

// skipTokens let the user leave an optional field empty.
var skipTokens = map[string]bool{"-": true, "skip": true}

// Draft is an in-progress /new task creation dialog. One draft per
// Telegram user; starting a new one discards the old.
type Draft struct {
	step        flowStep
	Title       string
	Description string
	DueAt       *time.Time
	Priority    int
	Tags        []string
}

// Prompt returns the question for the draft's current step.
func (d *Draft) Prompt() string {
	switch d.step {
	case stepTitle:
		return "📝 What is the task? Send me a title."
	case stepDescription:
		return "Add a description, or send \"-\" to skip."
	case stepDue:
		return "When is it due? Formats: 2026-03-10 17:00, 2026-03-10, 10.03.2026 17:00, 10.03.2026. Send \"-\" for no deadline."
	case stepPriority:
		return "Priority? 1 = high, 2 = medium, 3 = low. Send \"-\" for medium."
	case stepTags:
		return "Tags, separated by spaces or commas. Send \"-\" for none."
	default:
		return ""
	}
}

// Advance feeds one user message into the draft. It returns the next
// prompt, or done=true when the draft is complete. Invalid input keeps
// the draft on the same step and returns an error message as prompt.
func (d *Draft) Advance(input string, conv *timezone.Converter) (prompt string, done bool) {
	input = strings.TrimSpace(input)
	skipped := skipTokens[strings.ToLower(input)]

	switch d.step {
	case stepTitle:
		if input == "" || skipped {
			return "The title cannot be empty. " + d.Prompt(), false
		}
		d.Title = input
		d.step = stepDescription

	case stepDescription:
		if !skipped {
			d.Description = input
		}
		d.step = stepDue

	case stepDue:
		if !skipped {
			due, err := conv.ParseDueInput(input)
			if err != nil {
				return fmt.Sprintf("I could not read that date (%v). %s", err, d.Prompt()), false
			}
			d.DueAt = &due
		}
		d.step = stepPriority

	case stepPriority:
		if skipped {
			d.Priority = 2
		} else {
			priority, err := strconv.Atoi(input)
			if err != nil || priority < 1 || priority > 3 {
				return "Priority must be 1, 2, or 3. " + d.Prompt(), false
			}
			d.Priority = priority
		}
		d.step = stepTags

	case stepTags:
		if !skipped {
			d.Tags = splitTags(input)
		}
		d.step = stepDone
		return "", true
	}

	return d.Prompt(), false
}

func splitTags(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ' ' || r == ','
	})
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimPrefix(f, "#")
		if f != "" {
			tags = append(tags, f)
		}
	}
	return tags
}

// FlowStore holds active task-creation drafts keyed by Telegram user
// id. Safe for concurrent use.
type FlowStore struct {
	mu     sync.Mutex
	drafts map[int64]*Draft
}

// NewFlowStore creates an empty FlowStore.
func NewFlowStore() *FlowStore {
	return &FlowStore{drafts: make(map[int64]*Draft)}
}

// Start begins a fresh draft for the user, replacing any existing one.
func (f *FlowStore) Start(telegramID int64) *Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	draft := &Draft{}
	f.drafts[telegramID] = draft
	return draft
}

// Active returns the user's in-progress draft, if any.
func (f *FlowStore) Active(telegramID int64) (*Draft, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	draft, ok := f.drafts[telegramID]
	return draft, ok
}

// Clear discards the user's draft.
func (f *FlowStore) Clear(telegramID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.drafts, telegramID)
}
