package timeparse

import (
	"testing"
	"time"
)

// Tuesday 10 March 2026, 10:00 in Sydney.
func anchor(t *testing.T) (time.Time, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return time.Date(2026, 3, 10, 10, 0, 0, 0, loc), loc
}

func TestNormalizeCommonPhrases(t *testing.T) {
	now, loc := anchor(t)

	cases := []struct {
		text string
		want time.Time
	}{
		{"3pm tomorrow", time.Date(2026, 3, 11, 15, 0, 0, 0, loc)},
		{"tomorrow at 8:30am", time.Date(2026, 3, 11, 8, 30, 0, 0, loc)},
		{"tomorrow", time.Date(2026, 3, 11, 9, 0, 0, 0, loc)},
		{"tonight", time.Date(2026, 3, 10, 18, 0, 0, 0, loc)},
		{"this afternoon", time.Date(2026, 3, 10, 14, 0, 0, 0, loc)},
		{"friday arvo", time.Date(2026, 3, 13, 14, 0, 0, 0, loc)},
		{"thursday morning", time.Date(2026, 3, 12, 9, 0, 0, 0, loc)},
		{"march 20 at 11am", time.Date(2026, 3, 20, 11, 0, 0, 0, loc)},
		{"the 20th of march", time.Date(2026, 3, 20, 9, 0, 0, 0, loc)},
		{"11:15 today", time.Date(2026, 3, 10, 11, 15, 0, 0, loc)},
		{"6 o'clock tomorrow", time.Date(2026, 3, 11, 18, 0, 0, 0, loc)},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got, ok := Normalize(tc.text, loc, now)
			if !ok {
				t.Fatalf("Normalize(%q): no parse", tc.text)
			}
			if !got.Equal(tc.want) {
				t.Errorf("Normalize(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestNormalizeForwardBias(t *testing.T) {
	now, loc := anchor(t) // Tuesday 10:00

	// A bare time already past today rolls to tomorrow.
	got, ok := Normalize("8am", loc, now)
	if !ok {
		t.Fatal("no parse")
	}
	want := time.Date(2026, 3, 11, 8, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("past time: got %v, want %v", got, want)
	}

	// Saying the current weekday means next week, not today.
	got, ok = Normalize("tuesday at 9am", loc, now)
	if !ok {
		t.Fatal("no parse")
	}
	want = time.Date(2026, 3, 17, 9, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("same weekday: got %v, want %v", got, want)
	}

	// A month/day already past this year resolves to next year.
	got, ok = Normalize("january 5", loc, now)
	if !ok {
		t.Fatal("no parse")
	}
	if got.Year() != 2027 || got.Month() != time.January || got.Day() != 5 {
		t.Errorf("past month-day: got %v, want 2027-01-05", got)
	}
}

func TestNormalizeRelativeHours(t *testing.T) {
	now, loc := anchor(t)
	got, ok := Normalize("in 2 hours", loc, now)
	if !ok {
		t.Fatal("no parse")
	}
	if !got.Equal(now.Add(2 * time.Hour)) {
		t.Errorf("in 2 hours: got %v", got)
	}
}

func TestNormalizeNoParse(t *testing.T) {
	now, loc := anchor(t)
	for _, text := range []string{"", "my sink is blocked", "yeah mate", "the back gate code is 4412"} {
		if _, ok := Normalize(text, loc, now); ok {
			t.Errorf("Normalize(%q) parsed, want no parse", text)
		}
	}
}

func TestIsNoPreference(t *testing.T) {
	yes := []string{"asap", "ASAP please", "any time works", "whenever", "no preference", "as soon as possible", "the earliest you have"}
	for _, text := range yes {
		if !IsNoPreference(text) {
			t.Errorf("IsNoPreference(%q) = false, want true", text)
		}
	}
	no := []string{"", "3pm tomorrow", "friday", "my pipe burst"}
	for _, text := range no {
		if IsNoPreference(text) {
			t.Errorf("IsNoPreference(%q) = true, want false", text)
		}
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	now, loc := anchor(t)
	a, okA := Normalize("friday 2pm", loc, now)
	b, okB := Normalize("friday 2pm", loc, now)
	if okA != okB || !a.Equal(b) {
		t.Errorf("repeat parse differs: %v/%v vs %v/%v", a, okA, b, okB)
	}
}
