// Package insights computes training analytics from logged sets: session
// bucketing, per-collection metrics and progression, plan adherence, and
// muscle-group workload summaries. Everything here is a pure function over
// caller-supplied snapshots; the current instant is always injected so
// results are reproducible.
package insights

import (
	"strings"
	"time"
)

const (
	// DefaultDayStartHour is the hour at which a new training day begins.
	// Sets logged after midnight but before this hour belong to the
	// previous calendar day.
	DefaultDayStartHour = 4

	dayKeyFormat = "2006-01-02"
)

// NormalizeDayStartHour clamps an hour into the valid 0-23 range.
func NormalizeDayStartHour(hour int) int {
	if hour < 0 {
		return 0
	}
	if hour > 23 {
		return 23
	}
	return hour
}

// parseDayKey validates a YYYY-MM-DD day key with real calendar values.
// The returned time is midnight UTC of that date and is only used for
// calendar arithmetic, never as an instant.
func parseDayKey(key string) (time.Time, bool) {
	t, err := time.Parse(dayKeyFormat, strings.TrimSpace(key))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func formatDayKey(t time.Time) string {
	return t.Format(dayKeyFormat)
}

// shiftDayKey moves a day key by whole days. Returns false for malformed keys.
func shiftDayKey(key string, days int) (string, bool) {
	t, ok := parseDayKey(key)
	if !ok {
		return "", false
	}
	return formatDayKey(t.AddDate(0, 0, days)), true
}

// weekdayOfDayKey returns the weekday of a day key.
func weekdayOfDayKey(key string) (time.Weekday, bool) {
	t, ok := parseDayKey(key)
	if !ok {
		return time.Sunday, false
	}
	return t.Weekday(), true
}

// EffectiveDayKey resolves the training-day key for an instant, shifting
// times before dayStartHour onto the previous calendar day. A zero now
// falls back to the wall clock.
func EffectiveDayKey(now time.Time, dayStartHour int) string {
	if now.IsZero() {
		now = time.Now()
	}
	if now.Hour() < NormalizeDayStartHour(dayStartHour) {
		now = now.AddDate(0, 0, -1)
	}
	return formatDayKey(now)
}

// windowForDayKey returns the half-open instant window [start, start+24h)
// covering a training day in the given location. ok is false when the day
// key is malformed; callers treat that as an empty window.
func windowForDayKey(key string, dayStartHour int, loc *time.Location) (start, end time.Time, ok bool) {
	t, ok := parseDayKey(key)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	start = time.Date(t.Year(), t.Month(), t.Day(), NormalizeDayStartHour(dayStartHour), 0, 0, 0, loc)
	return start, start.Add(24 * time.Hour), true
}
