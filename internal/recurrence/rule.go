// Package recurrence evaluates iCalendar recurrence rules into concrete
// occurrence start instants.
package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

const dtstartLayout = "20060102T150405Z"

// Expand enumerates the original occurrence starts implied by rule, anchored
// at anchor, that fall within [rangeStart, rangeEnd] inclusive of both ends.
//
// The rule string uses RRULE property syntax (e.g. "FREQ=WEEKLY;INTERVAL=2")
// and must not embed its own DTSTART: the anchor is always supplied
// externally so the two cannot disagree. A COUNT or UNTIL terminator inside
// the rule is honored; until, when non-nil, is an additional upper bound
// applied on top of it, whichever is more restrictive.
//
// All returned instants are UTC, truncated to the second.
func Expand(rule string, anchor time.Time, until *time.Time, rangeStart, rangeEnd time.Time) ([]time.Time, error) {
	rule = normalize(rule)
	if rule == "" {
		return nil, fmt.Errorf("empty recurrence rule")
	}
	if strings.Contains(rule, "DTSTART") {
		return nil, fmt.Errorf("recurrence rule must not embed DTSTART")
	}

	anchor = anchor.UTC().Truncate(time.Second)

	// rrule-go wants the anchor as a DTSTART line in front of the rule.
	src := fmt.Sprintf("DTSTART:%s\nRRULE:%s", anchor.Format(dtstartLayout), rule)
	set, err := rrule.StrToRRuleSet(src)
	if err != nil {
		return nil, fmt.Errorf("parsing recurrence rule %q: %w", rule, err)
	}

	// Clamp the enumeration window to the external bound, then filter again
	// below: the bound also applies when Between rounds differently.
	end := rangeEnd.UTC()
	if until != nil && until.Before(end) {
		end = until.UTC()
	}
	if end.Before(rangeStart) {
		return nil, nil
	}

	var starts []time.Time
	for _, t := range set.Between(rangeStart.UTC(), end, true) {
		t = t.UTC().Truncate(time.Second)
		if until != nil && t.After(until.UTC()) {
			continue
		}
		starts = append(starts, t)
	}
	return starts, nil
}

// Validate checks that rule parses and carries no embedded anchor. It is used
// by the authoring API so malformed rules are rejected at write time instead
// of surfacing as expansion failures later.
func Validate(rule string) error {
	rule = normalize(rule)
	if rule == "" {
		return fmt.Errorf("empty recurrence rule")
	}
	if strings.Contains(rule, "DTSTART") {
		return fmt.Errorf("recurrence rule must not embed DTSTART")
	}
	if _, err := rrule.StrToRRule(rule); err != nil {
		return fmt.Errorf("parsing recurrence rule %q: %w", rule, err)
	}
	return nil
}

// normalize strips surrounding whitespace and an optional "RRULE:" prefix so
// stored rules may use either bare or property form.
func normalize(rule string) string {
	rule = strings.TrimSpace(rule)
	rule = strings.TrimPrefix(rule, "RRULE:")
	return strings.TrimSpace(rule)
}
