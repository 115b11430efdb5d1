package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	anchor := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		rule       string
		until      *time.Time
		rangeStart time.Time
		rangeEnd   time.Time
		expected   []time.Time
	}{
		{
			name:       "weekly within range",
			rule:       "FREQ=WEEKLY;INTERVAL=1",
			rangeStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC),
			expected: []time.Time{
				time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			name:       "daily with interval",
			rule:       "FREQ=DAILY;INTERVAL=3",
			rangeStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			expected: []time.Time{
				time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 4, 10, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 7, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			name:       "count terminator inside rule",
			rule:       "FREQ=DAILY;COUNT=2",
			rangeStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			expected: []time.Time{
				time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			name:       "until terminator inside rule",
			rule:       "FREQ=WEEKLY;UNTIL=20240109T000000Z",
			rangeStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			expected: []time.Time{
				time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			name:       "external bound tighter than rule",
			rule:       "FREQ=WEEKLY;COUNT=10",
			until:      timePtr(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)),
			rangeStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			expected: []time.Time{
				time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			name:       "external bound looser than rule",
			rule:       "FREQ=WEEKLY;COUNT=2",
			until:      timePtr(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
			rangeStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			expected: []time.Time{
				time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			name:       "external bound before range start",
			rule:       "FREQ=DAILY",
			until:      timePtr(time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)),
			rangeStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			expected:   nil,
		},
		{
			name:       "byday weekly",
			rule:       "FREQ=WEEKLY;BYDAY=MO,WE",
			rangeStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC),
			expected: []time.Time{
				// Jan 1 2024 is a Monday.
				time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			name:       "bymonthday monthly",
			rule:       "FREQ=MONTHLY;BYMONTHDAY=15",
			rangeStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
			expected: []time.Time{
				time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
				time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC),
				time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			name:       "yearly",
			rule:       "FREQ=YEARLY",
			rangeStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
			expected: []time.Time{
				time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
				time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
				time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			name:       "range ends are inclusive",
			rule:       "FREQ=DAILY",
			rangeStart: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC),
			expected: []time.Time{
				time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			name:       "rrule property prefix accepted",
			rule:       "RRULE:FREQ=WEEKLY",
			rangeStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC),
			expected: []time.Time{
				time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			starts, err := Expand(tt.rule, anchor, tt.until, tt.rangeStart, tt.rangeEnd)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, starts)
		})
	}
}

func TestExpand_Errors(t *testing.T) {
	anchor := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	rangeStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	for name, rule := range map[string]string{
		"empty":            "",
		"embedded dtstart": "DTSTART:20240101T100000Z\nRRULE:FREQ=DAILY",
		"garbage":          "FREQ=SOMETIMES",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Expand(rule, anchor, nil, rangeStart, rangeEnd)
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("FREQ=WEEKLY;BYDAY=MO"))
	assert.NoError(t, Validate("RRULE:FREQ=DAILY;COUNT=5"))
	assert.Error(t, Validate(""))
	assert.Error(t, Validate("DTSTART:20240101T100000Z;FREQ=DAILY"))
	assert.Error(t, Validate("not a rule"))
}

func timePtr(t time.Time) *time.Time {
	return &t
}
