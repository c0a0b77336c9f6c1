package scheduling

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/wrenchline/wrenchline/internal/calendar"
)

// Event descriptions are written by the booking pipeline as "Key: value"
// lines; these are the two keys duplicate detection reads back.
const (
	descCustomerKey = "customer"
	descAddressKey  = "address"
)

var (
	nonAlnumRE = regexp.MustCompile(`[^a-z0-9 ]+`)
	spacesRE   = regexp.MustCompile(`\s+`)

	// Street-suffix abbreviations expanded before comparing addresses, so
	// "12 Smith St" and "12 smith street" land in the same booking.
	streetAbbrevs = map[string]string{
		"st":  "street",
		"rd":  "road",
		"ave": "avenue",
		"av":  "avenue",
		"dr":  "drive",
		"crt": "court",
		"ct":  "court",
		"pl":  "place",
		"cres": "crescent",
		"cr":  "crescent",
		"hwy": "highway",
		"pde": "parade",
		"ln":  "lane",
	}
)

// FindDuplicate looks for an existing booking for the same caller at the
// same address within the tenant's duplicate window around the given time.
// Both the name and the address must match after normalisation; either one
// alone is not enough. A zero window disables detection.
func (e *Engine) FindDuplicate(ctx context.Context, name, address string, around time.Time) (*calendar.Event, error) {
	window := time.Duration(e.cfg.DuplicateWindowDays) * 24 * time.Hour
	if window <= 0 {
		return nil, nil
	}

	wantName := normalizeName(name)
	wantAddr := normalizeAddress(address)
	if wantName == "" || wantAddr == "" {
		return nil, nil
	}

	// The normalised name is only a hint to bound the result set; the
	// conjunctive name-and-address check below stays authoritative.
	events, err := e.cal.SearchEvents(ctx, e.cfg.CalendarID, around.Add(-window), around.Add(window), wantName)
	if err != nil {
		return nil, fmt.Errorf("scheduling: search for duplicates: %w", err)
	}

	for i := range events {
		fields := parseDescription(events[i].Description)
		if normalizeName(fields[descCustomerKey]) == wantName &&
			normalizeAddress(fields[descAddressKey]) == wantAddr {
			return &events[i], nil
		}
	}
	return nil, nil
}

// parseDescription splits "Key: value" lines into a lowercase-keyed map.
func parseDescription(desc string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(desc, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return fields
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlnumRE.ReplaceAllString(s, " ")
	return spacesRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

func normalizeAddress(s string) string {
	s = normalizeName(s)
	if s == "" {
		return ""
	}
	words := strings.Fields(s)
	for i, w := range words {
		if full, ok := streetAbbrevs[w]; ok {
			words[i] = full
		}
	}
	return strings.Join(words, " ")
}
