package occurrence

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calview/backend/internal/storage/models"
)

var (
	rangeStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd   = time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC)
)

func weeklySeries() models.Series {
	rule := "FREQ=WEEKLY;INTERVAL=1"
	return models.Series{
		ID:              "ser-1",
		CalendarID:      "cal-1",
		Title:           "Standup",
		AnchorStart:     time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Timezone:        "UTC",
		RRule:           &rule,
	}
}

func TestExpand_WeeklySeries(t *testing.T) {
	res := Expand([]models.Series{weeklySeries()}, nil, nil, rangeStart, rangeEnd)

	require.Empty(t, res.Failures)
	require.Len(t, res.Occurrences, 3)

	for i, day := range []int{1, 8, 15} {
		occ := res.Occurrences[i]
		start := time.Date(2024, 1, day, 10, 0, 0, 0, time.UTC)
		assert.Equal(t, fmt.Sprintf("ser-1:%s", start.Format(time.RFC3339)), occ.ID)
		assert.Equal(t, start, occ.Start)
		assert.Equal(t, start.Add(time.Hour), occ.End)
		assert.Equal(t, "Standup", occ.Title)
		assert.False(t, occ.AllDay)
	}
}

func TestExpand_ExceptionSuppressesOccurrence(t *testing.T) {
	ex := models.Exception{
		SeriesID:      "ser-1",
		OriginalStart: time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC),
	}

	res := Expand([]models.Series{weeklySeries()}, []models.Exception{ex}, nil, rangeStart, rangeEnd)

	require.Len(t, res.Occurrences, 2)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), res.Occurrences[0].Start)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), res.Occurrences[1].Start)
	for _, occ := range res.Occurrences {
		assert.NotEqual(t, ID("ser-1", ex.OriginalStart), occ.ID)
	}
}

func TestExpand_OverrideMovesOccurrence(t *testing.T) {
	original := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	moved := time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC)
	ov := models.Override{
		SeriesID:      "ser-1",
		OriginalStart: original,
		StartOverride: &moved,
	}

	res := Expand([]models.Series{weeklySeries()}, nil, []models.Override{ov}, rangeStart, rangeEnd)

	require.Len(t, res.Occurrences, 3)
	last := res.Occurrences[2]
	// Identity stays keyed on the original start even though the occurrence
	// is displayed a day later.
	assert.Equal(t, ID("ser-1", original), last.ID)
	assert.Equal(t, moved, last.Start)
	assert.Equal(t, moved.Add(time.Hour), last.End)
}

func TestExpand_MovedOccurrenceClippedByFinalTime(t *testing.T) {
	original := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	moved := time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC)
	ov := models.Override{
		SeriesID:      "ser-1",
		OriginalStart: original,
		StartOverride: &moved,
	}

	// The narrower range still contains the original Jan 15 slot but not the
	// moved Jan 16 time, so the occurrence must be excluded.
	narrowEnd := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	res := Expand([]models.Series{weeklySeries()}, nil, []models.Override{ov}, rangeStart, narrowEnd)

	require.Len(t, res.Occurrences, 2)
	for _, occ := range res.Occurrences {
		assert.NotEqual(t, ID("ser-1", original), occ.ID)
	}
}

func TestExpand_MovedIntoRange(t *testing.T) {
	// Non-recurring event from late December, moved forward into the queried
	// window. Its original time is outside the range; the clip must judge the
	// final time.
	anchor := time.Date(2023, 12, 28, 10, 0, 0, 0, time.UTC)
	s := models.Series{
		ID:              "ser-2",
		CalendarID:      "cal-1",
		Title:           "Review",
		AnchorStart:     anchor,
		DurationMinutes: 30,
		Timezone:        "UTC",
	}
	moved := time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC)
	ov := models.Override{SeriesID: "ser-2", OriginalStart: anchor, StartOverride: &moved}

	res := Expand([]models.Series{s}, nil, []models.Override{ov}, rangeStart, rangeEnd)

	require.Len(t, res.Occurrences, 1)
	assert.Equal(t, ID("ser-2", anchor), res.Occurrences[0].ID)
	assert.Equal(t, moved, res.Occurrences[0].Start)
	assert.Equal(t, moved.Add(30*time.Minute), res.Occurrences[0].End)
}

func TestExpand_RecurrenceEndBoundsEnumeration(t *testing.T) {
	s := weeklySeries()
	end := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	s.RecurrenceEnd = &end

	res := Expand([]models.Series{s}, nil, nil, rangeStart, rangeEnd)

	require.Len(t, res.Occurrences, 2)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), res.Occurrences[0].Start)
	assert.Equal(t, time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC), res.Occurrences[1].Start)
}

func TestExpand_OverrideEndResolution(t *testing.T) {
	original := time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)
	moved := time.Date(2024, 1, 8, 11, 0, 0, 0, time.UTC)
	endOverride := time.Date(2024, 1, 8, 13, 30, 0, 0, time.UTC)
	ninety := 90

	tests := []struct {
		name     string
		override models.Override
		start    time.Time
		end      time.Time
	}{
		{
			name: "end override wins",
			override: models.Override{
				SeriesID: "ser-1", OriginalStart: original,
				StartOverride: &moved, EndOverride: &endOverride, DurationMinutes: &ninety,
			},
			start: moved,
			end:   endOverride,
		},
		{
			name: "duration applied to overridden start",
			override: models.Override{
				SeriesID: "ser-1", OriginalStart: original,
				StartOverride: &moved, DurationMinutes: &ninety,
			},
			start: moved,
			end:   moved.Add(90 * time.Minute),
		},
		{
			name: "series duration applied to overridden start",
			override: models.Override{
				SeriesID: "ser-1", OriginalStart: original,
				StartOverride: &moved,
			},
			start: moved,
			end:   moved.Add(time.Hour),
		},
		{
			name: "duration only, start unchanged",
			override: models.Override{
				SeriesID: "ser-1", OriginalStart: original,
				DurationMinutes: &ninety,
			},
			start: original,
			end:   original.Add(90 * time.Minute),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Expand([]models.Series{weeklySeries()}, nil, []models.Override{tt.override}, rangeStart, rangeEnd)
			require.Len(t, res.Occurrences, 3)
			occ := res.Occurrences[1]
			assert.Equal(t, ID("ser-1", original), occ.ID)
			assert.Equal(t, tt.start, occ.Start)
			assert.Equal(t, tt.end, occ.End)
		})
	}
}

func TestExpand_OverrideContentOnly(t *testing.T) {
	original := time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)
	title := "Standup (moved room)"
	desc := "Room 4 instead"
	ov := models.Override{
		SeriesID: "ser-1", OriginalStart: original,
		Title: &title, Description: &desc, AllDay: true,
	}

	res := Expand([]models.Series{weeklySeries()}, nil, []models.Override{ov}, rangeStart, rangeEnd)

	require.Len(t, res.Occurrences, 3)
	occ := res.Occurrences[1]
	assert.Equal(t, title, occ.Title)
	require.NotNil(t, occ.Description)
	assert.Equal(t, desc, *occ.Description)
	assert.True(t, occ.AllDay)
	// Timing untouched.
	assert.Equal(t, original, occ.Start)
	assert.Equal(t, original.Add(time.Hour), occ.End)
}

func TestExpand_ContentOnlyOverrideStillClipped(t *testing.T) {
	// An override that touches no timing fields does not rescue an occurrence
	// whose computed interval is outside the range.
	anchor := time.Date(2024, 2, 5, 10, 0, 0, 0, time.UTC)
	s := models.Series{
		ID: "ser-3", CalendarID: "cal-1", Title: "Offsite",
		AnchorStart: anchor, DurationMinutes: 60, Timezone: "UTC",
	}
	title := "Offsite (renamed)"
	ov := models.Override{SeriesID: "ser-3", OriginalStart: anchor, Title: &title}

	res := Expand([]models.Series{s}, nil, []models.Override{ov}, rangeStart, rangeEnd)
	assert.Empty(t, res.Occurrences)
}

func TestExpand_ExceptionWinsOverOverride(t *testing.T) {
	original := time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)
	moved := time.Date(2024, 1, 9, 10, 0, 0, 0, time.UTC)

	res := Expand(
		[]models.Series{weeklySeries()},
		[]models.Exception{{SeriesID: "ser-1", OriginalStart: original}},
		[]models.Override{{SeriesID: "ser-1", OriginalStart: original, StartOverride: &moved}},
		rangeStart, rangeEnd,
	)

	require.Len(t, res.Occurrences, 2)
	for _, occ := range res.Occurrences {
		assert.NotEqual(t, ID("ser-1", original), occ.ID)
	}
}

func TestExpand_NonRecurringSeries(t *testing.T) {
	anchor := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	s := models.Series{
		ID: "ser-4", CalendarID: "cal-1", Title: "Dentist",
		AnchorStart: anchor, DurationMinutes: 45, Timezone: "UTC",
	}

	res := Expand([]models.Series{s}, nil, nil, rangeStart, rangeEnd)

	require.Len(t, res.Occurrences, 1)
	assert.Equal(t, "ser-4:2024-01-05T09:00:00Z", res.Occurrences[0].ID)

	// Outside the range it contributes nothing.
	res = Expand([]models.Series{s}, nil, nil,
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC))
	assert.Empty(t, res.Occurrences)
}

func TestExpand_ZeroDurationOccurrence(t *testing.T) {
	anchor := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	s := models.Series{
		ID: "ser-5", CalendarID: "cal-1", Title: "Reminder",
		AnchorStart: anchor, DurationMinutes: 0, Timezone: "UTC",
	}

	// Point exactly at the range boundary is included.
	res := Expand([]models.Series{s}, nil, nil, anchor, anchor.Add(time.Hour))
	require.Len(t, res.Occurrences, 1)
	assert.Equal(t, res.Occurrences[0].Start, res.Occurrences[0].End)

	// One second past the point is not.
	res = Expand([]models.Series{s}, nil, nil, anchor.Add(time.Second), anchor.Add(time.Hour))
	assert.Empty(t, res.Occurrences)
}

func TestExpand_MalformedRuleIsolated(t *testing.T) {
	bad := "FREQ=NEVER"
	broken := models.Series{
		ID: "ser-bad", CalendarID: "cal-1", Title: "Broken",
		AnchorStart: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 60, Timezone: "UTC", RRule: &bad,
	}

	res := Expand([]models.Series{weeklySeries(), broken}, nil, nil, rangeStart, rangeEnd)

	// The corrupt series contributes zero occurrences and one failure, the
	// healthy one is unaffected.
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "ser-bad", res.Failures[0].SeriesID)
	assert.Error(t, res.Failures[0].Err)
	assert.Len(t, res.Occurrences, 3)
}

func TestExpand_SubsecondInstantsStillMatch(t *testing.T) {
	// Exception stored with subsecond drift must still suppress the
	// occurrence after canonicalization.
	ex := models.Exception{
		SeriesID:      "ser-1",
		OriginalStart: time.Date(2024, 1, 8, 10, 0, 0, 437000000, time.UTC),
	}

	res := Expand([]models.Series{weeklySeries()}, []models.Exception{ex}, nil, rangeStart, rangeEnd)
	require.Len(t, res.Occurrences, 2)
}

func TestExpand_GlobalSortWithTies(t *testing.T) {
	mk := func(id string, anchor time.Time) models.Series {
		return models.Series{
			ID: id, CalendarID: "cal-1", Title: id,
			AnchorStart: anchor, DurationMinutes: 30, Timezone: "UTC",
		}
	}
	at := time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)
	series := []models.Series{
		mk("b-series", at),
		mk("a-series", at),
		mk("c-series", time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)),
	}

	res := Expand(series, nil, nil, rangeStart, rangeEnd)

	require.Len(t, res.Occurrences, 3)
	assert.Equal(t, "c-series", res.Occurrences[0].SeriesID)
	// Identical starts ordered by ID for determinism.
	assert.Equal(t, "a-series", res.Occurrences[1].SeriesID)
	assert.Equal(t, "b-series", res.Occurrences[2].SeriesID)
}

func TestExpand_Deterministic(t *testing.T) {
	series := make([]models.Series, 0, 20)
	for i := 0; i < 20; i++ {
		s := weeklySeries()
		s.ID = fmt.Sprintf("ser-%02d", i)
		series = append(series, s)
	}

	first := Expand(series, nil, nil, rangeStart, rangeEnd)
	for i := 0; i < 10; i++ {
		again := Expand(series, nil, nil, rangeStart, rangeEnd)
		require.Equal(t, first.Occurrences, again.Occurrences)
	}
}

func TestExpand_IdentityStableAcrossOverrideEdits(t *testing.T) {
	original := time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)
	firstMove := time.Date(2024, 1, 9, 8, 0, 0, 0, time.UTC)
	secondMove := time.Date(2024, 1, 10, 16, 0, 0, 0, time.UTC)

	find := func(res Result, id string) *Occurrence {
		for i := range res.Occurrences {
			if res.Occurrences[i].ID == id {
				return &res.Occurrences[i]
			}
		}
		return nil
	}

	id := ID("ser-1", original)

	res := Expand([]models.Series{weeklySeries()}, nil,
		[]models.Override{{SeriesID: "ser-1", OriginalStart: original, StartOverride: &firstMove}},
		rangeStart, rangeEnd)
	occ := find(res, id)
	require.NotNil(t, occ)
	assert.Equal(t, firstMove, occ.Start)

	// Mutating the override between queries changes the displayed time but
	// never the identity.
	res = Expand([]models.Series{weeklySeries()}, nil,
		[]models.Override{{SeriesID: "ser-1", OriginalStart: original, StartOverride: &secondMove}},
		rangeStart, rangeEnd)
	occ = find(res, id)
	require.NotNil(t, occ)
	assert.Equal(t, secondMove, occ.Start)
}
