package calllog

import (
	"context"
	"fmt"
	"time"
)

// Summary is the per-tenant rollup shown on the owner dashboard.
type Summary struct {
	TenantID           string `json:"tenant_id"`
	TotalCalls         int64  `json:"total_calls"`
	Booked             int64  `json:"booked"`
	ManualFollowUps    int64  `json:"manual_followups"`
	Escalated          int64  `json:"escalated"`
	QuoteLeads         int64  `json:"quote_leads"`
	RescheduleRequests int64  `json:"reschedule_requests"`
	PeriodStart        string `json:"period_start"`
	PeriodEnd          string `json:"period_end"`
}

// GetSummary aggregates call outcomes for a tenant. Optional start/end bound
// the period; both nil means all-time.
func (s *Store) GetSummary(ctx context.Context, tenantID string, start, end *time.Time) (*Summary, error) {
	summary := &Summary{TenantID: tenantID}

	var timeFilter string
	args := []any{tenantID}
	if start != nil && end != nil {
		timeFilter = " AND created_at >= $2 AND created_at < $3"
		args = append(args, *start, *end)
		summary.PeriodStart = start.Format(time.RFC3339)
		summary.PeriodEnd = end.Format(time.RFC3339)
	} else {
		summary.PeriodStart = "all-time"
		summary.PeriodEnd = "now"
	}

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome = 'booked'),
			COUNT(*) FILTER (WHERE outcome = 'manual_followup'),
			COUNT(*) FILTER (WHERE outcome IN ('escalated', 'silence_hangup', 'error')),
			COUNT(*) FILTER (WHERE outcome = 'quote_lead'),
			COUNT(*) FILTER (WHERE outcome = 'reschedule_request')
		FROM call_records
		WHERE tenant_id = $1` + timeFilter
	if err := s.db.QueryRow(ctx, query, args...).Scan(
		&summary.TotalCalls,
		&summary.Booked,
		&summary.ManualFollowUps,
		&summary.Escalated,
		&summary.QuoteLeads,
		&summary.RescheduleRequests,
	); err != nil {
		return nil, fmt.Errorf("calllog: summarize calls: %w", err)
	}

	return summary, nil
}

// DayCount is one day's booking total in the tenant's booked-per-day series.
type DayCount struct {
	Day    string `json:"day"`
	Booked int64  `json:"booked"`
}

// BookedPerDay returns booking counts per calendar day over the trailing
// window. Days with no bookings are absent from the result.
func (s *Store) BookedPerDay(ctx context.Context, tenantID string, days int) ([]DayCount, error) {
	if days <= 0 {
		days = 30
	}
	query := `
		SELECT to_char(date_trunc('day', created_at), 'YYYY-MM-DD'), COUNT(*)
		FROM call_records
		WHERE tenant_id = $1
		  AND outcome = 'booked'
		  AND created_at >= now() - ($2 * interval '1 day')
		GROUP BY 1
		ORDER BY 1`
	rows, err := s.db.Query(ctx, query, tenantID, days)
	if err != nil {
		return nil, fmt.Errorf("calllog: bookings per day: %w", err)
	}
	defer rows.Close()

	var series []DayCount
	for rows.Next() {
		var dc DayCount
		if err := rows.Scan(&dc.Day, &dc.Booked); err != nil {
			return nil, fmt.Errorf("calllog: scan day count: %w", err)
		}
		series = append(series, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("calllog: bookings per day: %w", err)
	}
	return series, nil
}
