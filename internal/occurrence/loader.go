package occurrence

import (
	"context"
	"fmt"
	"time"

	"github.com/calview/backend/internal/storage/models"
)

// Store is the read-only storage surface the loader depends on. The three
// operations are assumed to run as snapshot-consistent reads; the loader does
// not manage transactions and does not retry.
type Store interface {
	// SeriesInRange returns series whose anchor start is not after rangeEnd
	// and whose recurrence end, if any, is not before rangeStart. An empty
	// calendarID means no calendar filter.
	SeriesInRange(ctx context.Context, rangeStart, rangeEnd time.Time, calendarID string) ([]models.Series, error)

	// ExceptionsInWindow returns exceptions for the given series whose
	// original start falls within [windowStart, windowEnd].
	ExceptionsInWindow(ctx context.Context, seriesIDs []string, windowStart, windowEnd time.Time) ([]models.Exception, error)

	// OverridesInWindow returns overrides for the given series whose
	// original start falls within [windowStart, windowEnd].
	OverridesInWindow(ctx context.Context, seriesIDs []string, windowStart, windowEnd time.Time) ([]models.Override, error)
}

// Loader fetches the candidate series for a query range together with every
// exception and override that can affect the result.
type Loader struct {
	store Store
	pad   time.Duration
}

// NewLoader creates a loader. maxOverrideShift is the enforced bound on how
// far an override may move an occurrence; it doubles as the window pad below.
func NewLoader(store Store, maxOverrideShift time.Duration) *Loader {
	if maxOverrideShift <= 0 {
		maxOverrideShift = DefaultMaxOverrideShift
	}
	return &Loader{store: store, pad: maxOverrideShift}
}

// Load returns the series intersecting the range plus their exceptions and
// overrides. The edit window is the query range padded by the maximum
// override shift on each side: an override keyed by an original start outside
// the range can still relocate its occurrence's displayed time into it.
// Storage failures propagate as-is. No ordering is guaranteed; ordering is
// the expander's job.
func (l *Loader) Load(ctx context.Context, rangeStart, rangeEnd time.Time, calendarID string) ([]models.Series, []models.Exception, []models.Override, error) {
	series, err := l.store.SeriesInRange(ctx, rangeStart, rangeEnd, calendarID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading series: %w", err)
	}
	if len(series) == 0 {
		return nil, nil, nil, nil
	}

	ids := make([]string, len(series))
	for i, s := range series {
		ids[i] = s.ID
	}

	windowStart := rangeStart.Add(-l.pad)
	windowEnd := rangeEnd.Add(l.pad)

	exceptions, err := l.store.ExceptionsInWindow(ctx, ids, windowStart, windowEnd)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading exceptions: %w", err)
	}

	overrides, err := l.store.OverridesInWindow(ctx, ids, windowStart, windowEnd)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading overrides: %w", err)
	}

	return series, exceptions, overrides, nil
}
