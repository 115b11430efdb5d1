package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/calview/backend/internal/storage/models"
)

// OverrideRepository provides data access for per-occurrence overrides.
type OverrideRepository struct {
	BaseRepository
}

// NewOverrideRepository creates a new override repository.
func NewOverrideRepository(db *DB) *OverrideRepository {
	return &OverrideRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const overrideColumns = `series_id, original_start, title, description, start_override,
	       end_override, duration_minutes, all_day, created_at, updated_at`

func scanOverride(row interface{ Scan(...any) error }, ov *models.Override) error {
	return row.Scan(
		&ov.SeriesID, &ov.OriginalStart, &ov.Title, &ov.Description,
		&ov.StartOverride, &ov.EndOverride, &ov.DurationMinutes, &ov.AllDay,
		&ov.CreatedAt, &ov.UpdatedAt,
	)
}

// Put inserts or replaces the override for one occurrence key.
func (r *OverrideRepository) Put(ctx context.Context, ov *models.Override) error {
	ov.OriginalStart = models.Canonical(ov.OriginalStart)
	if ov.StartOverride != nil {
		t := models.Canonical(*ov.StartOverride)
		ov.StartOverride = &t
	}
	if ov.EndOverride != nil {
		t := models.Canonical(*ov.EndOverride)
		ov.EndOverride = &t
	}
	now := r.Now()
	ov.CreatedAt = now
	ov.UpdatedAt = now

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO event_overrides (
			series_id, original_start, title, description, start_override,
			end_override, duration_minutes, all_day, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(series_id, original_start) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			start_override = excluded.start_override,
			end_override = excluded.end_override,
			duration_minutes = excluded.duration_minutes,
			all_day = excluded.all_day,
			updated_at = excluded.updated_at
	`,
		ov.SeriesID, ov.OriginalStart, ov.Title, ov.Description,
		ov.StartOverride, ov.EndOverride, ov.DurationMinutes, ov.AllDay,
		ov.CreatedAt, ov.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("upserting override: %w", err)
	}

	return nil
}

// GetByKey retrieves the override for one occurrence key. Returns (nil, nil)
// when not found.
func (r *OverrideRepository) GetByKey(ctx context.Context, seriesID string, originalStart time.Time) (*models.Override, error) {
	ov := &models.Override{}

	err := scanOverride(r.DB().QueryRowContext(ctx, `
		SELECT `+overrideColumns+`
		FROM event_overrides WHERE series_id = ? AND original_start = ?
	`, seriesID, models.Canonical(originalStart)), ov)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying override: %w", err)
	}

	return ov, nil
}

// Delete removes the override for one occurrence key.
func (r *OverrideRepository) Delete(ctx context.Context, seriesID string, originalStart time.Time) error {
	result, err := r.DB().ExecContext(ctx, `
		DELETE FROM event_overrides WHERE series_id = ? AND original_start = ?
	`, seriesID, models.Canonical(originalStart))
	if err != nil {
		return fmt.Errorf("deleting override: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("override not found: %s at %s", seriesID, models.Canonical(originalStart).Format(time.RFC3339))
	}

	return nil
}

// InWindow retrieves overrides for the given series whose original start
// falls within [windowStart, windowEnd].
func (r *OverrideRepository) InWindow(ctx context.Context, seriesIDs []string, windowStart, windowEnd time.Time) ([]models.Override, error) {
	if len(seriesIDs) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(seriesIDs)+2)
	for _, id := range seriesIDs {
		args = append(args, id)
	}
	args = append(args, models.Canonical(windowStart), models.Canonical(windowEnd))

	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+overrideColumns+`
		FROM event_overrides
		WHERE series_id IN (`+inPlaceholders(len(seriesIDs))+`)
		  AND original_start BETWEEN ? AND ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying overrides in window: %w", err)
	}
	defer rows.Close()

	var overrides []models.Override
	for rows.Next() {
		var ov models.Override
		if err := scanOverride(rows, &ov); err != nil {
			return nil, fmt.Errorf("scanning override: %w", err)
		}
		overrides = append(overrides, ov)
	}

	return overrides, rows.Err()
}

// ListConflicting returns occurrence keys present in both the exception and
// override tables. The engine resolves these deterministically (the exception
// wins), but they indicate authoring flows writing past each other and are
// reported by the audit job.
func (r *OverrideRepository) ListConflicting(ctx context.Context) ([]models.EditConflict, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT o.series_id, o.original_start
		FROM event_overrides o
		JOIN event_exceptions e
		  ON e.series_id = o.series_id AND e.original_start = o.original_start
		ORDER BY o.series_id, o.original_start
	`)
	if err != nil {
		return nil, fmt.Errorf("querying conflicting edits: %w", err)
	}
	defer rows.Close()

	var conflicts []models.EditConflict
	for rows.Next() {
		var c models.EditConflict
		if err := rows.Scan(&c.SeriesID, &c.OriginalStart); err != nil {
			return nil, fmt.Errorf("scanning conflict: %w", err)
		}
		conflicts = append(conflicts, c)
	}

	return conflicts, rows.Err()
}
