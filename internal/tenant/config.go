// Package tenant provides per-business configuration and business-hour logic.
package tenant

import (
	"strings"
	"time"
)

// DayHours represents the opening hours for a single day.
// Nil means the business is closed that day.
type DayHours struct {
	Open  string `json:"open"`  // "07:00" in 24-hour format
	Close string `json:"close"` // "17:00" in 24-hour format
}

// BusinessHours maps day names to their hours.
type BusinessHours struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

// NotificationPrefs holds owner notification preferences for a tenant.
type NotificationPrefs struct {
	EmailEnabled    bool     `json:"email_enabled"`
	EmailRecipients []string `json:"email_recipients,omitempty"`
	SMSEnabled      bool     `json:"sms_enabled"`
	SMSRecipients   []string `json:"sms_recipients,omitempty"`
}

// Config holds tenant-specific configuration.
type Config struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Trade    string `json:"trade,omitempty"` // e.g. "plumbing", "electrical"
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	// IntakeNumber is the tenant's inbound phone number in E.164; the webhook
	// resolves the tenant from it.
	IntakeNumber string        `json:"intake_number,omitempty"`
	Timezone     string        `json:"timezone"` // e.g. "Australia/Sydney"
	CalendarID   string        `json:"calendar_id,omitempty"`
	Hours        BusinessHours `json:"business_hours"`

	// Slot sizing
	JobDurationMinutes int `json:"job_duration_minutes"` // default 60
	BufferMinutes      int `json:"buffer_minutes"`       // travel/cleanup pad, default 30

	// Duplicate detection window, days either side of the requested start.
	// Zero disables duplicate detection.
	DuplicateWindowDays int `json:"duplicate_window_days"`

	// Escalation thresholds
	MaxFieldRejects   int `json:"max_field_rejects"`   // per-field invalid answers before callback, default 2
	QuietCallTries    int `json:"quiet_call_tries"`    // silent turns before advisory alert, default 2
	MaxSilentTries    int `json:"max_silent_tries"`    // silent turns before hangup, default 4
	SlotToleranceMins int `json:"slot_tolerance_mins"` // silent-accept window around requested time, default 5

	Notifications NotificationPrefs `json:"notifications"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig(tenantID string) *Config {
	return &Config{
		TenantID: tenantID,
		Name:     "Wrenchline Trades",
		Timezone: "Australia/Sydney",
		Hours: BusinessHours{
			Monday:    &DayHours{Open: "07:00", Close: "17:00"},
			Tuesday:   &DayHours{Open: "07:00", Close: "17:00"},
			Wednesday: &DayHours{Open: "07:00", Close: "17:00"},
			Thursday:  &DayHours{Open: "07:00", Close: "17:00"},
			Friday:    &DayHours{Open: "07:00", Close: "16:00"},
			Saturday:  nil, // Closed
			Sunday:    nil, // Closed
		},
		JobDurationMinutes:  60,
		BufferMinutes:       30,
		DuplicateWindowDays: 3,
		MaxFieldRejects:     2,
		QuietCallTries:      2,
		MaxSilentTries:      4,
		SlotToleranceMins:   5,
	}
}

// Location resolves the tenant's timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// JobDuration returns the configured job duration.
func (c *Config) JobDuration() time.Duration {
	if c.JobDurationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.JobDurationMinutes) * time.Minute
}

// Buffer returns the configured travel/cleanup buffer.
func (c *Config) Buffer() time.Duration {
	if c.BufferMinutes < 0 {
		return 0
	}
	return time.Duration(c.BufferMinutes) * time.Minute
}

// SlotTolerance returns the silent-accept window around a requested time.
func (c *Config) SlotTolerance() time.Duration {
	if c.SlotToleranceMins <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.SlotToleranceMins) * time.Minute
}

// GetHoursForDay returns the hours for a given weekday.
func (b *BusinessHours) GetHoursForDay(weekday time.Weekday) *DayHours {
	switch weekday {
	case time.Sunday:
		return b.Sunday
	case time.Monday:
		return b.Monday
	case time.Tuesday:
		return b.Tuesday
	case time.Wednesday:
		return b.Wednesday
	case time.Thursday:
		return b.Thursday
	case time.Friday:
		return b.Friday
	case time.Saturday:
		return b.Saturday
	default:
		return nil
	}
}

// HasAnyHours returns true if at least one day has business hours configured.
func (b *BusinessHours) HasAnyHours() bool {
	return b.Sunday != nil || b.Monday != nil || b.Tuesday != nil ||
		b.Wednesday != nil || b.Thursday != nil || b.Friday != nil || b.Saturday != nil
}

func parseClock(s string) (h, m int, ok bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, false
	}
	return t.Hour(), t.Minute(), true
}

// IsOpenAt checks if the business is open at the given time.
// If no business hours are configured at all, the business is treated as
// always open (emergency-only operators with no set hours).
func (c *Config) IsOpenAt(t time.Time) bool {
	localTime := t.In(c.Location())

	hours := c.Hours.GetHoursForDay(localTime.Weekday())
	if hours == nil {
		return !c.Hours.HasAnyHours()
	}

	openH, openM, ok := parseClock(hours.Open)
	if !ok {
		return false
	}
	closeH, closeM, ok := parseClock(hours.Close)
	if !ok {
		return false
	}

	currentMinutes := localTime.Hour()*60 + localTime.Minute()
	return currentMinutes >= openH*60+openM && currentMinutes < closeH*60+closeM
}

// OpenAndCloseOn returns the opening and closing instants for the day
// containing t in the tenant's zone. ok is false when closed that day.
func (c *Config) OpenAndCloseOn(t time.Time) (open, close time.Time, ok bool) {
	loc := c.Location()
	local := t.In(loc)
	hours := c.Hours.GetHoursForDay(local.Weekday())
	if hours == nil {
		return time.Time{}, time.Time{}, false
	}
	openH, openM, okO := parseClock(hours.Open)
	closeH, closeM, okC := parseClock(hours.Close)
	if !okO || !okC {
		return time.Time{}, time.Time{}, false
	}
	open = time.Date(local.Year(), local.Month(), local.Day(), openH, openM, 0, 0, loc)
	close = time.Date(local.Year(), local.Month(), local.Day(), closeH, closeM, 0, 0, loc)
	return open, close, true
}

// NextOpenTime returns when the business next opens, or t itself if already
// open. Looks up to 14 days ahead; beyond that it falls back to the next
// morning at 07:00.
func (c *Config) NextOpenTime(t time.Time) time.Time {
	loc := c.Location()
	localTime := t.In(loc)

	for i := 0; i < 14; i++ {
		day := localTime.AddDate(0, 0, i)
		open, close, ok := c.OpenAndCloseOn(day)
		if !ok {
			continue
		}
		if i == 0 {
			if localTime.Before(open) {
				return open
			}
			if localTime.Before(close) {
				return localTime // Already open
			}
			continue
		}
		return open
	}

	return time.Date(localTime.Year(), localTime.Month(), localTime.Day()+1, 7, 0, 0, 0, loc)
}
