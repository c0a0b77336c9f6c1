// Package timeparse turns spoken time expressions into zoned instants.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// noPreferencePatterns matches caller phrases meaning "book me whenever".
var noPreferencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\basap\b`),
	regexp.MustCompile(`(?i)\bas soon as\b`),
	regexp.MustCompile(`(?i)\bany\s*time\b`),
	regexp.MustCompile(`(?i)\bwhenever\b`),
	regexp.MustCompile(`(?i)\bno preference\b`),
	regexp.MustCompile(`(?i)\bdon'?t (mind|care)\b`),
	regexp.MustCompile(`(?i)\bsoon\b`),
	regexp.MustCompile(`(?i)\bearliest\b`),
	regexp.MustCompile(`(?i)\bnext available\b`),
}

// IsNoPreference returns true when the utterance means "next open slot now".
func IsNoPreference(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, pat := range noPreferencePatterns {
		if pat.MatchString(text) {
			return true
		}
	}
	return false
}

var (
	meridiemRE = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)\b`)
	oclockRE   = regexp.MustCompile(`\b(\d{1,2})\s*o'?clock\b`)
	clockRE    = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	monthDayRE = regexp.MustCompile(`\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
	dayMonthRE = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\b`)
	inHoursRE  = regexp.MustCompile(`\bin\s+(a|an|\d{1,2})\s+hours?\b`)
)

var monthMap = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

var weekdayMap = map[string]time.Weekday{
	"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
	"sunday": time.Sunday,
	"mon": time.Monday, "tue": time.Tuesday, "tues": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "thurs": time.Thursday, "fri": time.Friday,
	"sat": time.Saturday, "sun": time.Sunday,
}

// dayPartHours maps informal day-part words to a representative hour.
var dayPartHours = map[string]int{
	"morning":   9,
	"midday":    12,
	"noon":      12,
	"lunch":     12,
	"lunchtime": 12,
	"afternoon": 14,
	"arvo":      14,
	"evening":   18,
	"tonight":   18,
	"night":     18,
}

const defaultHour = 9 // used when the caller names a day but no time

// Normalize parses a spoken time phrase into an absolute instant in loc,
// anchored to now with a forward bias: an ambiguous weekday or clock time
// resolves to the next future occurrence, never the past. The second return
// is false when nothing parseable was found; callers treat that as
// "ASAP/unspecified".
func Normalize(text string, loc *time.Location, now time.Time) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	msg := strings.ToLower(strings.TrimSpace(text))
	if msg == "" {
		return time.Time{}, false
	}
	now = now.In(loc)

	hour, minute, haveTime := extractClockTime(msg)
	day, haveDay := extractDay(msg, now, loc)

	// Relative offsets like "in 2 hours" stand alone.
	if m := inHoursRE.FindStringSubmatch(msg); len(m) > 1 && !haveTime && !haveDay {
		n := 1
		if m[1] != "a" && m[1] != "an" {
			n, _ = strconv.Atoi(m[1])
		}
		return now.Add(time.Duration(n) * time.Hour), true
	}

	if !haveTime && !haveDay {
		return time.Time{}, false
	}

	if !haveDay {
		day = now
	}
	if !haveTime {
		hour, minute = defaultHour, 0
	}

	candidate := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)

	// Forward bias. A bare time already in the past today means tomorrow;
	// an explicitly named weekday was resolved forward by extractDay, so only
	// the same-day case can still land in the past here.
	if !candidate.After(now) {
		if haveDay && candidate.YearDay() != now.YearDay() {
			// explicit date that is past, e.g. "jan 2" in March: next year
			candidate = candidate.AddDate(1, 0, 0)
		} else {
			candidate = candidate.AddDate(0, 0, 1)
		}
	}

	return candidate, true
}

// extractClockTime pulls an hour/minute out of the message. Day-part words
// ("morning", "arvo") count as times; an unqualified day-part defaults to a
// representative hour.
func extractClockTime(msg string) (hour, minute int, ok bool) {
	if m := meridiemRE.FindStringSubmatch(msg); len(m) > 0 {
		hour, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		meridiem := strings.ReplaceAll(m[3], ".", "")
		if strings.HasPrefix(meridiem, "p") && hour != 12 {
			hour += 12
		} else if strings.HasPrefix(meridiem, "a") && hour == 12 {
			hour = 0
		}
		return hour, minute, true
	}

	if m := clockRE.FindStringSubmatch(msg); len(m) > 0 {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		if hour <= 23 && minute <= 59 {
			return hour, minute, true
		}
	}

	if m := oclockRE.FindStringSubmatch(msg); len(m) > 1 {
		hour, _ = strconv.Atoi(m[1])
		// "6 o'clock" with no meridiem: tradie hours make daytime the default.
		if hour >= 1 && hour <= 7 {
			hour += 12
		}
		return hour, 0, true
	}

	for word, h := range dayPartHours {
		if strings.Contains(msg, word) {
			return h, 0, true
		}
	}

	return 0, 0, false
}

// extractDay resolves the calendar day the caller meant, biased forward.
func extractDay(msg string, now time.Time, loc *time.Location) (time.Time, bool) {
	switch {
	case strings.Contains(msg, "day after tomorrow"):
		return now.AddDate(0, 0, 2), true
	case strings.Contains(msg, "tomorrow"):
		return now.AddDate(0, 0, 1), true
	case strings.Contains(msg, "today"), strings.Contains(msg, "tonight"):
		return now, true
	}

	if m := monthDayRE.FindStringSubmatch(msg); len(m) > 2 {
		if d, ok := resolveMonthDay(m[1], m[2], now, loc); ok {
			return d, true
		}
	}
	if m := dayMonthRE.FindStringSubmatch(msg); len(m) > 2 {
		if d, ok := resolveMonthDay(m[2], m[1], now, loc); ok {
			return d, true
		}
	}

	// Weekday names, longest first so "tuesday" wins over "tue".
	for _, word := range weekdayWordsByLength {
		if !containsWord(msg, word) {
			continue
		}
		target := weekdayMap[word]
		days := (int(target) - int(now.Weekday()) + 7) % 7
		if days == 0 && !strings.Contains(msg, "this "+word) {
			days = 7 // "friday" said on a Friday means next week
		}
		return now.AddDate(0, 0, days), true
	}

	return time.Time{}, false
}

func resolveMonthDay(monthStr, dayStr string, now time.Time, loc *time.Location) (time.Time, bool) {
	mon, ok := monthMap[monthStr[:3]]
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(dayStr)
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(now.Year(), mon, day, 0, 0, 0, 0, loc)
	if d.Before(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)) {
		d = d.AddDate(1, 0, 0)
	}
	return d, true
}

var weekdayWordsByLength = func() []string {
	words := make([]string, 0, len(weekdayMap))
	for w := range weekdayMap {
		words = append(words, w)
	}
	// insertion sort by descending length; the list is tiny
	for i := 1; i < len(words); i++ {
		for j := i; j > 0 && len(words[j]) > len(words[j-1]); j-- {
			words[j], words[j-1] = words[j-1], words[j]
		}
	}
	return words
}()

func containsWord(msg, word string) bool {
	idx := strings.Index(msg, word)
	for idx >= 0 {
		before := idx == 0 || !isLetter(msg[idx-1])
		afterIdx := idx + len(word)
		after := afterIdx >= len(msg) || !isLetter(msg[afterIdx])
		if before && after {
			return true
		}
		next := strings.Index(msg[idx+1:], word)
		if next < 0 {
			return false
		}
		idx += 1 + next
	}
	return false
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
