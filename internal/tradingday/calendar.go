// Package tradingday resolves exchange trading days.
package tradingday

import (
	"log/slog"
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// maxLookback bounds the search for a trading day.
const maxLookback = 31

// Calendar answers trading-day questions for one exchange.
type Calendar struct {
	mic      string
	cal      *calendar.Calendar
	loc      *time.Location
	fallback bool
}

// New loads the calendar for an ISO 10383 MIC (e.g. "xnys", "xcme"). An
// unknown MIC falls back to Monday through Friday in New York time.
func New(mic string, logger *slog.Logger) *Calendar {
	if logger == nil {
		logger = slog.Default()
	}
	mic = strings.ToLower(strings.TrimSpace(mic))

	if cal := calendar.GetCalendar(mic); cal != nil {
		loc := cal.Loc
		if loc == nil {
			loc = time.UTC
		}
		return &Calendar{mic: mic, cal: cal, loc: loc}
	}

	logger.Warn("exchange calendar not found, using weekdays", "mic", mic)
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return &Calendar{mic: mic, loc: loc, fallback: true}
}

// Location returns the exchange time zone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Fallback reports whether the weekday fallback is in use.
func (c *Calendar) Fallback() bool {
	return c.fallback
}

// IsTradingDay reports whether t's exchange-local date is a business day.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	t = t.In(c.loc)
	if c.fallback {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return c.cal.IsBusinessDay(t)
}

// Latest returns the most recent trading day on or before now, at noon
// exchange time. ok is false if none is found within a month.
func (c *Calendar) Latest(now time.Time) (time.Time, bool) {
	local := now.In(c.loc)
	d := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, c.loc)
	for i := 0; i < maxLookback; i++ {
		if c.IsTradingDay(d) {
			return d, true
		}
		d = d.AddDate(0, 0, -1)
	}
	return time.Time{}, false
}

// Previous returns the most recent trading day strictly before now's date.
func (c *Calendar) Previous(now time.Time) (time.Time, bool) {
	local := now.In(c.loc)
	return c.Latest(time.Date(local.Year(), local.Month(), local.Day()-1, 12, 0, 0, 0, c.loc))
}

// Day formats t as YYYYMMDD in the exchange time zone.
func (c *Calendar) Day(t time.Time) string {
	return t.In(c.loc).Format("20060102")
}
