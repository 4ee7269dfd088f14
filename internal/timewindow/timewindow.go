package timewindow

import (
	"fmt"
	"time"
)

// Date is a civil calendar day in the window's timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// String formats the date as YYYY-MM-DD, the form used for record
// titles and the destination's date property.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Window resolves "today" in a fixed timezone so the pipeline's notion
// of the current day does not depend on where the process runs.
type Window struct {
	loc *time.Location
	now func() time.Time
}

// New creates a Window pinned to the named IANA timezone.
func New(tz string) (*Window, error) {
	return NewWithClock(tz, time.Now)
}

// NewWithClock creates a Window with an explicit clock. Tests use this
// to pin "now" to a known instant.
func NewWithClock(tz string, now func() time.Time) (*Window, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timewindow: failed to load timezone %q: %w", tz, err)
	}
	return &Window{loc: loc, now: now}, nil
}

// Today returns the current civil date in the window's timezone.
func (w *Window) Today() Date {
	y, m, d := w.now().In(w.loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// SameDay reports whether t falls on the given civil date when viewed
// in the window's timezone.
func (w *Window) SameDay(t time.Time, d Date) bool {
	y, m, day := t.In(w.loc).Date()
	return y == d.Year && m == d.Month && day == d.Day
}
