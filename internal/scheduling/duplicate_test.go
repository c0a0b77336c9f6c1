package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDescription = "Customer: Sam Taylor\nPhone: +61400111222\nAddress: 12 Smith St, Newtown\nJob: blocked drain"

func TestFindDuplicateMatchesNameAndAddress(t *testing.T) {
	eng, fake, cfg, now := testEngine(t)
	loc := cfg.Location()

	booked := time.Date(2026, 3, 11, 14, 0, 0, 0, loc)
	ev := fake.Seed("cal-1", booked, booked.Add(time.Hour), "Blocked drain - Sam Taylor")
	fake.SetDescription("cal-1", ev.ID, sampleDescription)

	dup, err := eng.FindDuplicate(context.Background(), "SAM taylor", "12 Smith Street, Newtown", now.Add(24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, dup)
	assert.Equal(t, ev.ID, dup.ID)
}

func TestFindDuplicateRequiresBothFields(t *testing.T) {
	eng, fake, cfg, now := testEngine(t)
	loc := cfg.Location()

	booked := time.Date(2026, 3, 11, 14, 0, 0, 0, loc)
	ev := fake.Seed("cal-1", booked, booked.Add(time.Hour), "job")
	fake.SetDescription("cal-1", ev.ID, sampleDescription)

	// Same name, different address.
	dup, err := eng.FindDuplicate(context.Background(), "Sam Taylor", "44 High Street, Newtown", now)
	require.NoError(t, err)
	assert.Nil(t, dup)

	// Same address, different name.
	dup, err = eng.FindDuplicate(context.Background(), "Alex Nguyen", "12 Smith St, Newtown", now)
	require.NoError(t, err)
	assert.Nil(t, dup)
}

func TestFindDuplicateOutsideWindow(t *testing.T) {
	eng, fake, cfg, now := testEngine(t)
	loc := cfg.Location()

	// Window is 3 days; a booking 5 days out is not a duplicate.
	booked := time.Date(2026, 3, 15, 14, 0, 0, 0, loc)
	ev := fake.Seed("cal-1", booked, booked.Add(time.Hour), "job")
	fake.SetDescription("cal-1", ev.ID, sampleDescription)

	dup, err := eng.FindDuplicate(context.Background(), "Sam Taylor", "12 Smith St, Newtown", now)
	require.NoError(t, err)
	assert.Nil(t, dup)
}

func TestFindDuplicateDisabledByZeroWindow(t *testing.T) {
	eng, fake, cfg, now := testEngine(t)
	cfg.DuplicateWindowDays = 0
	loc := cfg.Location()

	booked := time.Date(2026, 3, 10, 14, 0, 0, 0, loc)
	ev := fake.Seed("cal-1", booked, booked.Add(time.Hour), "job")
	fake.SetDescription("cal-1", ev.ID, sampleDescription)

	dup, err := eng.FindDuplicate(context.Background(), "Sam Taylor", "12 Smith St, Newtown", now)
	require.NoError(t, err)
	assert.Nil(t, dup)
}

func TestFindDuplicateBlankFieldsNeverMatch(t *testing.T) {
	eng, fake, cfg, now := testEngine(t)
	loc := cfg.Location()

	booked := time.Date(2026, 3, 10, 14, 0, 0, 0, loc)
	ev := fake.Seed("cal-1", booked, booked.Add(time.Hour), "job")
	fake.SetDescription("cal-1", ev.ID, "Customer: \nAddress: ")

	dup, err := eng.FindDuplicate(context.Background(), "", "", now)
	require.NoError(t, err)
	assert.Nil(t, dup)
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12 Smith St, Newtown", "12 smith street newtown"},
		{"12 SMITH STREET Newtown", "12 smith street newtown"},
		{"Unit 3/45 Beach Rd", "unit 3 45 beach road"},
		{"7 O'Brien Ave", "7 o brien avenue"},
		{"  ", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, normalizeAddress(tc.in), "input %q", tc.in)
	}
}
