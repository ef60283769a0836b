package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/marketlens/marketlens/internal/models"
)

// upsertBatchSize bounds the number of rows written per transaction so
// a large provider sync never produces an oversized transaction.
const upsertBatchSize = 100

const calendarColumns = `
	id, symbol, company_name, event_date, time_of_day, importance,
	fiscal_period, fiscal_year, currency,
	eps_actual, eps_estimate, eps_prior, eps_surprise,
	revenue_actual, revenue_estimate, revenue_prior, revenue_surprise,
	updated_at, created_at`

// UpsertCalendarEvents writes events in bounded batches, one
// transaction per batch. Re-upserting an existing event id refreshes
// its mutable fields; this is how provider corrections to upcoming
// events land.
func (db *DB) UpsertCalendarEvents(events []*models.CalendarEvent) error {
	for start := 0; start < len(events); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(events) {
			end = len(events)
		}
		if err := db.upsertCalendarBatch(events[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) upsertCalendarBatch(events []*models.CalendarEvent) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO calendar_events (` + calendarColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			event_date = EXCLUDED.event_date,
			time_of_day = EXCLUDED.time_of_day,
			importance = EXCLUDED.importance,
			currency = EXCLUDED.currency,
			eps_actual = EXCLUDED.eps_actual,
			eps_estimate = EXCLUDED.eps_estimate,
			eps_prior = EXCLUDED.eps_prior,
			eps_surprise = EXCLUDED.eps_surprise,
			revenue_actual = EXCLUDED.revenue_actual,
			revenue_estimate = EXCLUDED.revenue_estimate,
			revenue_prior = EXCLUDED.revenue_prior,
			revenue_surprise = EXCLUDED.revenue_surprise,
			updated_at = EXCLUDED.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare calendar upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range events {
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		_, err := stmt.Exec(
			e.ID, strings.ToUpper(e.Symbol), e.CompanyName, e.Date, e.TimeOfDay, e.Importance,
			e.FiscalPeriod, e.FiscalYear, e.Currency,
			e.EPSActual, e.EPSEstimate, e.EPSPrior, e.EPSSurprise,
			e.RevenueActual, e.RevenueEstimate, e.RevenuePrior, e.RevenueSurprise,
			now, createdAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert calendar event %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit calendar batch: %w", err)
	}
	return nil
}

// GetCalendarEvents retrieves events matching the filter, earliest
// date first. Zero-value filter fields are ignored.
func (db *DB) GetCalendarEvents(f models.CalendarFilter) ([]*models.CalendarEvent, error) {
	query := `SELECT ` + calendarColumns + ` FROM calendar_events WHERE 1=1`
	var args []interface{}

	if f.DateFrom != nil {
		args = append(args, *f.DateFrom)
		query += fmt.Sprintf(" AND event_date >= $%d", len(args))
	}
	if f.DateTo != nil {
		args = append(args, *f.DateTo)
		query += fmt.Sprintf(" AND event_date <= $%d", len(args))
	}
	if len(f.Tickers) > 0 {
		upper := make([]string, len(f.Tickers))
		for i, t := range f.Tickers {
			upper[i] = strings.ToUpper(t)
		}
		args = append(args, pq.Array(upper))
		query += fmt.Sprintf(" AND symbol = ANY($%d)", len(args))
	}
	if f.MinImportance != nil {
		args = append(args, *f.MinImportance)
		query += fmt.Sprintf(" AND importance >= $%d", len(args))
	}
	query += " ORDER BY event_date ASC, symbol ASC"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar events: %w", err)
	}
	defer rows.Close()

	var events []*models.CalendarEvent
	for rows.Next() {
		var e models.CalendarEvent
		err := rows.Scan(
			&e.ID, &e.Symbol, &e.CompanyName, &e.Date, &e.TimeOfDay, &e.Importance,
			&e.FiscalPeriod, &e.FiscalYear, &e.Currency,
			&e.EPSActual, &e.EPSEstimate, &e.EPSPrior, &e.EPSSurprise,
			&e.RevenueActual, &e.RevenueEstimate, &e.RevenuePrior, &e.RevenueSurprise,
			&e.UpdatedAt, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calendar event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// DeleteCalendarEvent removes one event by id.
func (db *DB) DeleteCalendarEvent(id string) error {
	result, err := db.conn.Exec(`DELETE FROM calendar_events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete calendar event: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
