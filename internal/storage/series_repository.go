package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/calview/backend/internal/storage/models"
)

// SeriesRepository provides data access for event series.
type SeriesRepository struct {
	BaseRepository
}

// NewSeriesRepository creates a new series repository.
func NewSeriesRepository(db *DB) *SeriesRepository {
	return &SeriesRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const seriesColumns = `id, calendar_id, title, description, anchor_start, duration_minutes,
	       timezone, rrule, recurrence_end, created_at, updated_at`

func scanSeries(row interface{ Scan(...any) error }, s *models.Series) error {
	return row.Scan(
		&s.ID, &s.CalendarID, &s.Title, &s.Description, &s.AnchorStart,
		&s.DurationMinutes, &s.Timezone, &s.RRule, &s.RecurrenceEnd,
		&s.CreatedAt, &s.UpdatedAt,
	)
}

// Create inserts a new series. Instants are canonicalized to UTC second
// precision before they hit the database so occurrence keys always match.
func (r *SeriesRepository) Create(ctx context.Context, s *models.Series) error {
	if s.ID == "" {
		s.ID = GenerateID()
	}
	s.AnchorStart = models.Canonical(s.AnchorStart)
	if s.RecurrenceEnd != nil {
		e := models.Canonical(*s.RecurrenceEnd)
		s.RecurrenceEnd = &e
	}
	s.CreatedAt = r.Now()
	s.UpdatedAt = s.CreatedAt

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO event_series (
			id, calendar_id, title, description, anchor_start, duration_minutes,
			timezone, rrule, recurrence_end, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ID, s.CalendarID, s.Title, s.Description, s.AnchorStart,
		s.DurationMinutes, s.Timezone, s.RRule, s.RecurrenceEnd,
		s.CreatedAt, s.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("inserting series: %w", err)
	}

	return nil
}

// GetByID retrieves a series by its ID. Returns (nil, nil) when not found.
func (r *SeriesRepository) GetByID(ctx context.Context, id string) (*models.Series, error) {
	s := &models.Series{}

	err := scanSeries(r.DB().QueryRowContext(ctx, `
		SELECT `+seriesColumns+`
		FROM event_series WHERE id = ?
	`, id), s)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying series: %w", err)
	}

	return s, nil
}

// List retrieves all series, optionally filtered by calendar.
func (r *SeriesRepository) List(ctx context.Context, calendarID string) ([]models.Series, error) {
	query := `SELECT ` + seriesColumns + ` FROM event_series`
	var args []any
	if calendarID != "" {
		query += ` WHERE calendar_id = ?`
		args = append(args, calendarID)
	}
	query += ` ORDER BY anchor_start`

	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying series: %w", err)
	}
	defer rows.Close()

	return collectSeries(rows)
}

// InRange retrieves the candidate series for a query range: anchor start not
// after rangeEnd, and recurrence end (when set) not before rangeStart. An
// empty calendarID means no calendar filter.
func (r *SeriesRepository) InRange(ctx context.Context, rangeStart, rangeEnd time.Time, calendarID string) ([]models.Series, error) {
	query := `
		SELECT ` + seriesColumns + `
		FROM event_series
		WHERE anchor_start <= ?
		  AND (recurrence_end IS NULL OR recurrence_end >= ?)
	`
	args := []any{models.Canonical(rangeEnd), models.Canonical(rangeStart)}
	if calendarID != "" {
		query += ` AND calendar_id = ?`
		args = append(args, calendarID)
	}

	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying series in range: %w", err)
	}
	defer rows.Close()

	return collectSeries(rows)
}

// Update updates an existing series.
func (r *SeriesRepository) Update(ctx context.Context, s *models.Series) error {
	s.AnchorStart = models.Canonical(s.AnchorStart)
	if s.RecurrenceEnd != nil {
		e := models.Canonical(*s.RecurrenceEnd)
		s.RecurrenceEnd = &e
	}
	s.UpdatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE event_series SET
			calendar_id = ?, title = ?, description = ?, anchor_start = ?,
			duration_minutes = ?, timezone = ?, rrule = ?, recurrence_end = ?,
			updated_at = ?
		WHERE id = ?
	`,
		s.CalendarID, s.Title, s.Description, s.AnchorStart,
		s.DurationMinutes, s.Timezone, s.RRule, s.RecurrenceEnd,
		s.UpdatedAt, s.ID,
	)

	if err != nil {
		return fmt.Errorf("updating series: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("series not found: %s", s.ID)
	}

	return nil
}

// Delete removes a series by ID. Its exceptions and overrides cascade.
func (r *SeriesRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM event_series WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting series: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("series not found: %s", id)
	}

	return nil
}

func collectSeries(rows *sql.Rows) ([]models.Series, error) {
	var series []models.Series
	for rows.Next() {
		var s models.Series
		if err := scanSeries(rows, &s); err != nil {
			return nil, fmt.Errorf("scanning series: %w", err)
		}
		series = append(series, s)
	}
	return series, rows.Err()
}

// inPlaceholders builds a "?, ?, ?" list for IN clauses.
func inPlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
