package storage

import (
	"context"
	"time"

	"github.com/calview/backend/internal/storage/models"
)

// QueryStore bundles the three read operations the occurrence loader needs
// into one value implementing occurrence.Store. The reads are plain queries
// against the same connection; SQLite in WAL mode gives each its own
// consistent snapshot.
type QueryStore struct {
	series     *SeriesRepository
	exceptions *ExceptionRepository
	overrides  *OverrideRepository
}

// NewQueryStore creates a query store over the given repositories.
func NewQueryStore(series *SeriesRepository, exceptions *ExceptionRepository, overrides *OverrideRepository) *QueryStore {
	return &QueryStore{
		series:     series,
		exceptions: exceptions,
		overrides:  overrides,
	}
}

// SeriesInRange returns the candidate series for a query range.
func (s *QueryStore) SeriesInRange(ctx context.Context, rangeStart, rangeEnd time.Time, calendarID string) ([]models.Series, error) {
	return s.series.InRange(ctx, rangeStart, rangeEnd, calendarID)
}

// ExceptionsInWindow returns cancellations keyed within the window.
func (s *QueryStore) ExceptionsInWindow(ctx context.Context, seriesIDs []string, windowStart, windowEnd time.Time) ([]models.Exception, error) {
	return s.exceptions.InWindow(ctx, seriesIDs, windowStart, windowEnd)
}

// OverridesInWindow returns overrides keyed within the window.
func (s *QueryStore) OverridesInWindow(ctx context.Context, seriesIDs []string, windowStart, windowEnd time.Time) ([]models.Override, error) {
	return s.overrides.InWindow(ctx, seriesIDs, windowStart, windowEnd)
}
