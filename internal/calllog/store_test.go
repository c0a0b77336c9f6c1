package calllog

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordUpsertsByCallID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newStoreWithDB(mock)
	created := time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO call_records").
		WithArgs(pgxmock.AnyArg(), "tnt-1", "call-1", "+61400111222", "NEW_BOOKING", "booked",
			"Sam Taylor", "blocked drain", "12 Smith Street, Newtown", pgxmock.AnyArg(), "evt-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("rec-1", created))

	start := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	rec, err := store.Record(context.Background(), CallRecord{
		TenantID:    "tnt-1",
		CallID:      "call-1",
		CallerPhone: "+61400111222",
		Intent:      "NEW_BOOKING",
		Outcome:     OutcomeBooked,
		Name:        "Sam Taylor",
		Job:         "blocked drain",
		Address:     "12 Smith Street, Newtown",
		BookedStart: &start,
		EventID:     "evt-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "rec-1", rec.ID)
	assert.True(t, rec.CreatedAt.Equal(created))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRequiresTenantAndCall(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newStoreWithDB(mock)
	_, err = store.Record(context.Background(), CallRecord{CallID: "call-1"})
	assert.Error(t, err)

	_, err = store.Record(context.Background(), CallRecord{TenantID: "tnt-1"})
	assert.Error(t, err)
}

func TestRecentListsNewestFirst(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newStoreWithDB(mock)
	now := time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)

	cols := []string{"id", "tenant_id", "call_id", "caller_phone", "intent", "outcome",
		"customer_name", "job", "address", "booked_start", "event_id", "created_at"}
	mock.ExpectQuery("SELECT (.+) FROM call_records").
		WithArgs("tnt-1", 2).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("rec-2", "tnt-1", "call-2", "+61400000002", "QUOTE", Outcome("quote_lead"),
				"Jo", "fence repair", "4 High Street", (*time.Time)(nil), "", now).
			AddRow("rec-1", "tnt-1", "call-1", "+61400000001", "NEW_BOOKING", Outcome("booked"),
				"Sam", "blocked drain", "12 Smith Street", (*time.Time)(nil), "evt-1", now.Add(-time.Hour)))

	recs, err := store.Recent(context.Background(), "tnt-1", 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "call-2", recs[0].CallID)
	assert.Equal(t, OutcomeQuoteLead, recs[0].Outcome)
	assert.Equal(t, OutcomeBooked, recs[1].Outcome)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSummaryAllTime(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newStoreWithDB(mock)

	mock.ExpectQuery("SELECT (.+) FROM call_records").
		WithArgs("tnt-1").
		WillReturnRows(pgxmock.NewRows([]string{"total", "booked", "manual", "escalated", "quotes", "resched"}).
			AddRow(int64(12), int64(7), int64(1), int64(2), int64(1), int64(1)))

	sum, err := store.GetSummary(context.Background(), "tnt-1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(12), sum.TotalCalls)
	assert.Equal(t, int64(7), sum.Booked)
	assert.Equal(t, int64(2), sum.Escalated)
	assert.Equal(t, "all-time", sum.PeriodStart)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSummaryWithPeriod(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newStoreWithDB(mock)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM call_records").
		WithArgs("tnt-1", start, end).
		WillReturnRows(pgxmock.NewRows([]string{"total", "booked", "manual", "escalated", "quotes", "resched"}).
			AddRow(int64(3), int64(2), int64(0), int64(0), int64(1), int64(0)))

	sum, err := store.GetSummary(context.Background(), "tnt-1", &start, &end)
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum.TotalCalls)
	assert.Equal(t, start.Format(time.RFC3339), sum.PeriodStart)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookedPerDayDefaultsWindow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newStoreWithDB(mock)

	mock.ExpectQuery("SELECT (.+) FROM call_records").
		WithArgs("tnt-1", 30).
		WillReturnRows(pgxmock.NewRows([]string{"day", "count"}).
			AddRow("2026-03-09", int64(2)).
			AddRow("2026-03-10", int64(4)))

	series, err := store.BookedPerDay(context.Background(), "tnt-1", 0)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "2026-03-09", series[0].Day)
	assert.Equal(t, int64(4), series[1].Booked)

	require.NoError(t, mock.ExpectationsWereMet())
}
