package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/calview/backend/internal/storage/models"
)

// ExceptionRepository provides data access for per-occurrence cancellations.
type ExceptionRepository struct {
	BaseRepository
}

// NewExceptionRepository creates a new exception repository.
func NewExceptionRepository(db *DB) *ExceptionRepository {
	return &ExceptionRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Put records a cancellation for one occurrence. Re-cancelling the same
// occurrence is a no-op.
func (r *ExceptionRepository) Put(ctx context.Context, ex *models.Exception) error {
	ex.OriginalStart = models.Canonical(ex.OriginalStart)
	ex.CreatedAt = r.Now()

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO event_exceptions (series_id, original_start, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(series_id, original_start) DO NOTHING
	`, ex.SeriesID, ex.OriginalStart, ex.CreatedAt)

	if err != nil {
		return fmt.Errorf("inserting exception: %w", err)
	}

	return nil
}

// Delete removes a cancellation, restoring the occurrence.
func (r *ExceptionRepository) Delete(ctx context.Context, seriesID string, originalStart time.Time) error {
	result, err := r.DB().ExecContext(ctx, `
		DELETE FROM event_exceptions WHERE series_id = ? AND original_start = ?
	`, seriesID, models.Canonical(originalStart))
	if err != nil {
		return fmt.Errorf("deleting exception: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("exception not found: %s at %s", seriesID, models.Canonical(originalStart).Format(time.RFC3339))
	}

	return nil
}

// Exists reports whether the occurrence key is cancelled.
func (r *ExceptionRepository) Exists(ctx context.Context, seriesID string, originalStart time.Time) (bool, error) {
	var n int
	err := r.DB().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM event_exceptions WHERE series_id = ? AND original_start = ?
	`, seriesID, models.Canonical(originalStart)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying exception: %w", err)
	}
	return n > 0, nil
}

// ListBySeries retrieves all cancellations for one series.
func (r *ExceptionRepository) ListBySeries(ctx context.Context, seriesID string) ([]models.Exception, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT series_id, original_start, created_at
		FROM event_exceptions
		WHERE series_id = ?
		ORDER BY original_start
	`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("querying exceptions: %w", err)
	}
	defer rows.Close()

	var exceptions []models.Exception
	for rows.Next() {
		var ex models.Exception
		if err := rows.Scan(&ex.SeriesID, &ex.OriginalStart, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning exception: %w", err)
		}
		exceptions = append(exceptions, ex)
	}

	return exceptions, rows.Err()
}

// InWindow retrieves cancellations for the given series whose original start
// falls within [windowStart, windowEnd].
func (r *ExceptionRepository) InWindow(ctx context.Context, seriesIDs []string, windowStart, windowEnd time.Time) ([]models.Exception, error) {
	if len(seriesIDs) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(seriesIDs)+2)
	for _, id := range seriesIDs {
		args = append(args, id)
	}
	args = append(args, models.Canonical(windowStart), models.Canonical(windowEnd))

	rows, err := r.DB().QueryContext(ctx, `
		SELECT series_id, original_start, created_at
		FROM event_exceptions
		WHERE series_id IN (`+inPlaceholders(len(seriesIDs))+`)
		  AND original_start BETWEEN ? AND ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying exceptions in window: %w", err)
	}
	defer rows.Close()

	var exceptions []models.Exception
	for rows.Next() {
		var ex models.Exception
		if err := rows.Scan(&ex.SeriesID, &ex.OriginalStart, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning exception: %w", err)
		}
		exceptions = append(exceptions, ex)
	}

	return exceptions, rows.Err()
}
