// Package timezone_test tests zone resolution and calendar conversion.
package timezone_test

import (
	"errors"
	"testing"
	"time"

	"github.com/eskovalev/taskbot/internal/timezone"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	resolver := timezone.NewResolver()

	tests := []struct {
		name    string
		zone    string
		wantErr bool
	}{
		{name: "valid zone", zone: "Europe/Berlin", wantErr: false},
		{name: "valid zone cached", zone: "Europe/Berlin", wantErr: false},
		{name: "utc", zone: "UTC", wantErr: false},
		{name: "empty", zone: "", wantErr: true},
		{name: "garbage", zone: "Mars/Olympus_Mons", wantErr: true},
		{name: "bare offset", zone: "+03:00", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conv, err := resolver.Resolve(tc.zone)
			if tc.wantErr {
				if !errors.Is(err, timezone.ErrInvalidZone) {
					t.Errorf("Resolve(%q) error = %v, want ErrInvalidZone", tc.zone, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tc.zone, err)
			}
			if conv == nil {
				t.Fatalf("Resolve(%q) returned nil converter", tc.zone)
			}
		})
	}
}

func TestToLocal(t *testing.T) {
	t.Parallel()

	resolver := timezone.NewResolver()
	conv, err := resolver.Resolve("Europe/Moscow")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// 06:00 UTC is 09:00 in Moscow (UTC+3, no DST).
	instant := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	date, clock := conv.ToLocal(instant)

	if date.String() != "2026-03-10" {
		t.Errorf("local date = %s, want 2026-03-10", date)
	}
	if clock.String() != "09:00" {
		t.Errorf("local clock = %s, want 09:00", clock)
	}
}

func TestDayBounds(t *testing.T) {
	t.Parallel()

	resolver := timezone.NewResolver()

	tests := []struct {
		name      string
		zone      string
		date      timezone.Date
		wantHours float64
	}{
		{
			name:      "regular day",
			zone:      "Europe/Berlin",
			date:      timezone.Date{Year: 2026, Month: time.March, Day: 10},
			wantHours: 24,
		},
		{
			name:      "spring forward day is 23 hours",
			zone:      "Europe/Berlin",
			date:      timezone.Date{Year: 2026, Month: time.March, Day: 29},
			wantHours: 23,
		},
		{
			name:      "fall back day is 25 hours",
			zone:      "Europe/Berlin",
			date:      timezone.Date{Year: 2026, Month: time.October, Day: 25},
			wantHours: 25,
		},
		{
			name:      "zone without DST",
			zone:      "Europe/Moscow",
			date:      timezone.Date{Year: 2026, Month: time.March, Day: 29},
			wantHours: 24,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			conv, err := resolver.Resolve(tc.zone)
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tc.zone, err)
			}

			start, end := conv.DayBounds(tc.date)
			if got := end.Sub(start).Hours(); got != tc.wantHours {
				t.Errorf("day length = %v hours, want %v", got, tc.wantHours)
			}

			// Bounds must round-trip: the start instant belongs to the
			// date, the end instant to the next one.
			if got := conv.Today(start); got != tc.date {
				t.Errorf("start maps to %s, want %s", got, tc.date)
			}
			if got := conv.Today(end); got == tc.date {
				t.Errorf("end instant still maps to %s; bounds are not half-open", tc.date)
			}
			if got := conv.Today(end.Add(-time.Second)); got != tc.date {
				t.Errorf("last second of the day maps to %s, want %s", got, tc.date)
			}
		})
	}
}

func TestParseWallClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "09:00", want: "09:00"},
		{input: "23:59", want: "23:59"},
		{input: "0:05", want: "00:05"},
		{input: " 12:30 ", want: "12:30"},
		{input: "24:00", wantErr: true},
		{input: "12:60", wantErr: true},
		{input: "12", wantErr: true},
		{input: "ab:cd", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()

			got, err := timezone.ParseWallClock(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("ParseWallClock(%q) = %v, want error", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWallClock(%q) failed: %v", tc.input, err)
			}
			if got.String() != tc.want {
				t.Errorf("ParseWallClock(%q) = %s, want %s", tc.input, got, tc.want)
			}
		})
	}
}

func TestWallClockAtOrAfter(t *testing.T) {
	t.Parallel()

	nine := timezone.WallClock{Hour: 9}
	if (timezone.WallClock{Hour: 8, Minute: 59}).AtOrAfter(nine) {
		t.Error("08:59 should be before 09:00")
	}
	if !(timezone.WallClock{Hour: 9}).AtOrAfter(nine) {
		t.Error("09:00 should be at or after 09:00")
	}
	if !(timezone.WallClock{Hour: 21, Minute: 30}).AtOrAfter(nine) {
		t.Error("21:30 should be after 09:00")
	}
}

func TestParseDueInput(t *testing.T) {
	t.Parallel()

	resolver := timezone.NewResolver()
	conv, err := resolver.Resolve("Europe/Berlin")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "iso with time",
			input: "2026-03-10 17:30",
			want:  time.Date(2026, 3, 10, 16, 30, 0, 0, time.UTC),
		},
		{
			name:  "iso date only defaults to 18:00 local",
			input: "2026-03-10",
			want:  time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC),
		},
		{
			name:  "european with time",
			input: "10.03.2026 17:30",
			want:  time.Date(2026, 3, 10, 16, 30, 0, 0, time.UTC),
		},
		{
			name:  "european date only",
			input: "10.03.2026",
			want:  time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC),
		},
		{
			name:  "summer time offset applies",
			input: "2026-07-01 12:00",
			want:  time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC),
		},
		{name: "garbage", input: "next tuesday", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := conv.ParseDueInput(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("ParseDueInput(%q) = %v, want error", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDueInput(%q) failed: %v", tc.input, err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("ParseDueInput(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestFormatLocal(t *testing.T) {
	t.Parallel()

	resolver := timezone.NewResolver()
	conv, err := resolver.Resolve("Europe/Moscow")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	instant := time.Date(2026, 3, 10, 6, 5, 0, 0, time.UTC)
	if got := conv.FormatLocal(instant); got != "10.03.2026 09:05" {
		t.Errorf("FormatLocal = %q, want %q", got, "10.03.2026 09:05")
	}
}
