package handlers

import (
	"testing"
	"time"
)

func TestParseTaskID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     string
		wantID   int64
		wantRest string
		wantErr  bool
	}{
		{name: "plain id", args: "12", wantID: 12},
		{name: "hash prefix", args: "#12", wantID: 12},
		{name: "id with rest", args: "12 new title here", wantID: 12, wantRest: "new title here"},
		{name: "empty", args: "", wantErr: true},
		{name: "not a number", args: "twelve", wantErr: true},
		{name: "negative", args: "-3", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			id, rest, err := parseTaskID(tc.args)
			if tc.wantErr {
				if err == nil {
					t.Errorf("parseTaskID(%q) = %d, want error", tc.args, id)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTaskID(%q) failed: %v", tc.args, err)
			}
			if id != tc.wantID || rest != tc.wantRest {
				t.Errorf("parseTaskID(%q) = (%d, %q), want (%d, %q)", tc.args, id, rest, tc.wantID, tc.wantRest)
			}
		})
	}
}

func TestParseDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{input: "45m", want: 45 * time.Minute},
		{input: "3h", want: 3 * time.Hour},
		{input: "1d", want: 24 * time.Hour},
		{input: "2w", want: 14 * 24 * time.Hour},
		{input: "1D", want: 24 * time.Hour},
		{input: "", wantErr: true},
		{input: "tomorrow", wantErr: true},
		{input: "-1h", wantErr: true},
		{input: "0d", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()

			got, err := parseDelay(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("parseDelay(%q) = %v, want error", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDelay(%q) failed: %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("parseDelay(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestCommandArgs(t *testing.T) {
	t.Parallel()

	if got := commandArgs("/done 12"); got != "12" {
		t.Errorf("commandArgs = %q, want %q", got, "12")
	}
	if got := commandArgs("/board"); got != "" {
		t.Errorf("commandArgs = %q, want empty", got)
	}
	if got := commandArgs("/edit 3  spaced  title "); got != "3  spaced  title" {
		t.Errorf("commandArgs = %q", got)
	}
}
