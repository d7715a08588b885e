// Package timewindow derives a gig's display status and its live-session
// end time from stored fields and a wall-clock reading. Everything here is
// pure; callers pass the current time and the venue's location explicitly.
package timewindow

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"ms-gigs/internal/models"
)

const (
	// LiveWindow is both the default length of a live session and the grace
	// period after the scheduled start before an unstarted gig is cancelled.
	LiveWindow = 5 * time.Hour

	EndingSoonThreshold = 10 * time.Minute
)

var scheduleLayouts = []string{"2006-01-02 15:04", "2006-01-02 15:04:05"}

// ScheduledDateTime combines scheduledDate and scheduledTime in loc.
func ScheduledDateTime(g *models.Gig, loc *time.Location) (time.Time, bool) {
	if g.ScheduledDate == "" || g.ScheduledTime == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	value := strings.TrimSpace(g.ScheduledDate) + " " + strings.TrimSpace(g.ScheduledTime)
	for _, layout := range scheduleLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DeriveStatus computes the display status. First matching rule wins.
//
// Live gigs use scheduledEndTimeMs when it is present, the same baseline the
// auto-end timer uses, so both agree on when a session is over. Documents
// without it fall back to scheduled start + LiveWindow unless extended.
func DeriveStatus(g *models.Gig, now time.Time, loc *time.Location) models.DerivedStatus {
	if g.Status == models.GigStatusEnded || g.ManuallyEnded {
		return models.DerivedEnded
	}
	if g.Status == models.GigStatusCancelled {
		return models.DerivedCancelled
	}

	if g.Status == models.GigStatusLive {
		if end, ok := EndTime(g); ok {
			if !now.Before(end) {
				return models.DerivedEnded
			}
			return models.DerivedLive
		}
	}

	scheduled, ok := ScheduledDateTime(g, loc)
	if !ok {
		return fallbackStatus(g.Status)
	}
	elapsed := now.Sub(scheduled)

	if g.Status == models.GigStatusLive {
		if elapsed > LiveWindow && !g.TimeExtended {
			return models.DerivedEnded
		}
		return models.DerivedLive
	}
	if now.Before(scheduled) {
		return models.DerivedUpcoming
	}
	if elapsed <= LiveWindow {
		return models.DerivedCheckVenue
	}
	if g.ActualStartTimeMs == 0 {
		return models.DerivedCancelled
	}
	return models.DerivedUpcoming
}

func fallbackStatus(s models.GigStatus) models.DerivedStatus {
	switch s {
	case models.GigStatusLive:
		return models.DerivedLive
	case models.GigStatusEnded:
		return models.DerivedEnded
	case models.GigStatusCancelled:
		return models.DerivedCancelled
	default:
		return models.DerivedUpcoming
	}
}

// IsExpiredUnstarted reports whether a gig that never went live is past its
// scheduled start plus LiveWindow.
func IsExpiredUnstarted(g *models.Gig, now time.Time, loc *time.Location) bool {
	if g.Status != models.GigStatusUpcoming && g.Status != models.GigStatusConfirmed {
		return false
	}
	scheduled, ok := ScheduledDateTime(g, loc)
	if !ok {
		return false
	}
	return now.After(scheduled.Add(LiveWindow))
}

// EndTime resolves the live session's end. scheduledEndTimeMs is authoritative;
// the legacy scheduledEndTime field is read only when it is absent.
func EndTime(g *models.Gig) (time.Time, bool) {
	if g.ScheduledEndTimeMs > 0 {
		return time.UnixMilli(g.ScheduledEndTimeMs), true
	}
	return ParseEndTime(g.ScheduledEndTime)
}

// ParseEndTime accepts the shapes older documents used for scheduledEndTime:
// a native time, an object with a seconds field, an epoch-millisecond number
// or an ISO-8601 string. Anything else is reported as unknown.
func ParseEndTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	case map[string]any:
		secs, ok := numeric(t["seconds"])
		if !ok {
			secs, ok = numeric(t["_seconds"])
		}
		if !ok {
			return time.Time{}, false
		}
		nanos, _ := numeric(t["nanoseconds"])
		return time.Unix(int64(secs), int64(nanos)), true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
			return time.UnixMilli(ms), true
		}
		return time.Time{}, false
	default:
		ms, ok := numeric(v)
		if !ok || ms <= 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(ms)), true
	}
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// AutoEndDecision is the outcome of one auto-end evaluation of a live gig.
type AutoEndDecision struct {
	Known     bool
	Remaining time.Duration
	Warn      bool
	End       bool
}

// EvaluateAutoEnd decides whether a live gig should raise its one-time
// ending-soon warning or be ended now. Unparseable end times never end a gig.
func EvaluateAutoEnd(g *models.Gig, now time.Time, warned bool) AutoEndDecision {
	if g.Status != models.GigStatusLive {
		return AutoEndDecision{}
	}
	end, ok := EndTime(g)
	if !ok {
		return AutoEndDecision{}
	}
	d := AutoEndDecision{Known: true, Remaining: end.Sub(now)}
	if d.Remaining <= 0 {
		d.End = true
		return d
	}
	if d.Remaining <= EndingSoonThreshold && !warned {
		d.Warn = true
	}
	return d
}
