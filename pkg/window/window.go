// Package window time-buckets derived rows into fixed-axis aggregate views.
// Every view for a window has exactly BucketCount buckets covering
// [now - BucketCount*Interval, now] contiguously; empty buckets are emitted
// so chart time axes stay stable.
package window

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWindow rejects unknown window names at the query boundary. An
// unknown window is a client error, never silently defaulted.
var ErrInvalidWindow = errors.New("invalid time window")

// Window is a named lookback with a fixed bucket layout.
type Window string

const (
	Hour  Window = "hour"
	Day   Window = "day"
	Week  Window = "week"
	Month Window = "month"
	Year  Window = "year"
)

// Parse maps a query-string value to a Window.
func Parse(s string) (Window, error) {
	switch w := Window(s); w {
	case Hour, Day, Week, Month, Year:
		return w, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidWindow, s)
}

// Layout returns the bucket interval and count for the window.
func (w Window) Layout() (interval time.Duration, count int, err error) {
	switch w {
	case Hour:
		return time.Minute, 60, nil
	case Day:
		return 30 * time.Minute, 48, nil
	case Week:
		return 3 * time.Hour, 56, nil
	case Month:
		return 12 * time.Hour, 60, nil
	case Year:
		return 7 * 24 * time.Hour, 52, nil
	}
	return 0, 0, fmt.Errorf("%w: %q", ErrInvalidWindow, w)
}

// Span is the resolved time axis of a window anchored at now.
type Span struct {
	Start    time.Time
	End      time.Time
	Interval time.Duration
	Count    int
}

// SpanAt resolves the window's bucket axis ending at now.
func (w Window) SpanAt(now time.Time) (Span, error) {
	interval, count, err := w.Layout()
	if err != nil {
		return Span{}, err
	}
	return Span{
		Start:    now.Add(-time.Duration(count) * interval),
		End:      now,
		Interval: interval,
		Count:    count,
	}, nil
}

// BucketOf assigns a timestamp to a bucket index, clamped into [0, Count-1].
// Rows at or after End land in the last bucket rather than a phantom one.
func (s Span) BucketOf(ts time.Time) int {
	if !ts.After(s.Start) {
		return 0
	}
	i := int(ts.Sub(s.Start) / s.Interval)
	if i >= s.Count {
		return s.Count - 1
	}
	return i
}

// BucketStart returns the start time of bucket i.
func (s Span) BucketStart(i int) time.Time {
	return s.Start.Add(time.Duration(i) * s.Interval)
}
