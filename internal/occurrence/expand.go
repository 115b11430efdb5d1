package occurrence

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/samber/mo"

	"github.com/calview/backend/internal/recurrence"
	"github.com/calview/backend/internal/storage/models"
)

// SeriesFailure records a series whose expansion failed. A malformed
// recurrence rule must not blank the whole query, so failures are collected
// per series instead of aborting.
type SeriesFailure struct {
	SeriesID string
	Err      error
}

// Result is the output of one expansion: the occurrences that intersect the
// range, globally sorted, plus any per-series failures.
type Result struct {
	Occurrences []Occurrence
	Failures    []SeriesFailure
}

// editKey identifies one occurrence of one series by its original start.
// Exceptions and overrides are both keyed this way, with canonicalized
// instants, so lookups are exact and constant-time.
type editKey struct {
	seriesID      string
	originalStart time.Time
}

// Expand computes the occurrences of the given series that intersect
// [rangeStart, rangeEnd]. It is a pure function of its inputs: no state is
// kept between calls and identical inputs produce identical output.
//
// Per series: the recurrence rule (or the lone anchor start) yields original
// occurrence starts inside the range; cancelled occurrences are dropped;
// overrides are applied; and the occurrence is kept only if its final,
// possibly moved interval still intersects the range. Series expand
// concurrently, each into its own result slot, and the combined list is
// sorted afterward by final start, ties broken by ID.
func Expand(series []models.Series, exceptions []models.Exception, overrides []models.Override, rangeStart, rangeEnd time.Time) Result {
	rangeStart = models.Canonical(rangeStart)
	rangeEnd = models.Canonical(rangeEnd)

	cancelled := make(map[editKey]struct{}, len(exceptions))
	for _, ex := range exceptions {
		cancelled[editKey{ex.SeriesID, models.Canonical(ex.OriginalStart)}] = struct{}{}
	}

	edits := make(map[editKey]models.Override, len(overrides))
	for _, ov := range overrides {
		k := editKey{ov.SeriesID, models.Canonical(ov.OriginalStart)}
		if _, dropped := cancelled[k]; dropped {
			// An occurrence key should carry an exception or an override,
			// never both. The exception wins; the audit job reports these.
			log.Printf("Occurrence %s has both an exception and an override, keeping the cancellation",
				ID(ov.SeriesID, ov.OriginalStart))
			continue
		}
		edits[k] = ov
	}

	// One goroutine per series, each writing only its own slot. The input
	// maps are read-only from here on.
	slots := make([]mo.Result[[]Occurrence], len(series))
	var wg sync.WaitGroup
	for i := range series {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			slots[i] = expandSeries(series[i], cancelled, edits, rangeStart, rangeEnd)
		}(i)
	}
	wg.Wait()

	var res Result
	for i, slot := range slots {
		occs, err := slot.Get()
		if err != nil {
			log.Printf("Skipping series %s: %v", series[i].ID, err)
			res.Failures = append(res.Failures, SeriesFailure{SeriesID: series[i].ID, Err: err})
			continue
		}
		res.Occurrences = append(res.Occurrences, occs...)
	}

	sort.Slice(res.Occurrences, func(i, j int) bool {
		a, b := res.Occurrences[i], res.Occurrences[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.ID < b.ID
	})

	return res
}

// expandSeries runs the five expansion steps for one series.
func expandSeries(s models.Series, cancelled map[editKey]struct{}, edits map[editKey]models.Override, rangeStart, rangeEnd time.Time) mo.Result[[]Occurrence] {
	anchor := models.Canonical(s.AnchorStart)
	duration := s.Duration()

	var starts []time.Time
	if !s.IsRecurring() {
		// Single occurrence at the anchor. Skip it early only when no
		// override exists that could move it; otherwise the final-time clip
		// below decides.
		_, edited := edits[editKey{s.ID, anchor}]
		if edited || (!anchor.After(rangeEnd) && !anchor.Add(duration).Before(rangeStart)) {
			starts = []time.Time{anchor}
		}
	} else {
		// The rule's own COUNT/UNTIL applies, and recurrenceEnd is enforced
		// in addition in case the rule's own terminator is looser.
		var until *time.Time
		if s.RecurrenceEnd != nil {
			u := models.Canonical(*s.RecurrenceEnd)
			until = &u
		}
		var err error
		starts, err = recurrence.Expand(*s.RRule, anchor, until, rangeStart, rangeEnd)
		if err != nil {
			return mo.Err[[]Occurrence](fmt.Errorf("expanding series %s: %w", s.ID, err))
		}
	}

	out := make([]Occurrence, 0, len(starts))
	for _, originalStart := range starts {
		k := editKey{s.ID, originalStart}
		if _, ok := cancelled[k]; ok {
			continue
		}

		start := originalStart
		end := originalStart.Add(duration)
		title := s.Title
		description := s.Description
		allDay := false

		if ov, ok := edits[k]; ok {
			if ov.Title != nil {
				title = *ov.Title
			}
			if ov.Description != nil {
				description = ov.Description
			}
			if ov.StartOverride != nil {
				start = models.Canonical(*ov.StartOverride)
			}
			switch {
			case ov.EndOverride != nil:
				end = models.Canonical(*ov.EndOverride)
			case ov.DurationMinutes != nil:
				end = start.Add(time.Duration(*ov.DurationMinutes) * time.Minute)
			default:
				end = start.Add(duration)
			}
			allDay = ov.AllDay
		}

		// Clip on the final interval: a moved occurrence is judged by its
		// displayed time, not the time the rule produced. Zero-duration
		// occurrences degenerate to a point test.
		if end.Before(rangeStart) || start.After(rangeEnd) {
			continue
		}

		out = append(out, Occurrence{
			ID:          ID(s.ID, originalStart),
			SeriesID:    s.ID,
			CalendarID:  s.CalendarID,
			Title:       title,
			Description: description,
			Start:       start,
			End:         end,
			AllDay:      allDay,
		})
	}

	return mo.Ok(out)
}
