package scheduler

import (
	"fmt"
	"time"

	"github.com/adhocore/gronx"
)

// Delay describes when a timer is due, relative to the moment it is scheduled.
// The set of delays is closed: RelativeDelay, DailyDelay, WeeklyDelay and MonthlyDelay.
type Delay interface {
	// next returns the absolute deadline for a timer scheduled at now.
	// Wall-clock delays are evaluated in loc.
	next(now time.Time, loc *time.Location) (time.Time, error)
}

// RelativeDelay fires a fixed duration after scheduling.
type RelativeDelay struct {
	Duration time.Duration
}

// After returns a delay firing d after scheduling.
func After(d time.Duration) RelativeDelay {
	return RelativeDelay{Duration: d}
}

// Milliseconds returns a delay firing ms milliseconds after scheduling.
func Milliseconds(ms uint32) RelativeDelay {
	return RelativeDelay{Duration: time.Duration(ms) * time.Millisecond}
}

func (d RelativeDelay) next(now time.Time, _ *time.Location) (time.Time, error) {
	if d.Duration < 0 {
		return time.Time{}, fmt.Errorf("%w: negative duration %s", ErrInvalidDelay, d.Duration)
	}
	return now.Add(d.Duration), nil
}

// DailyDelay fires at the next occurrence of Hour:Minute.
//
// Wall-clock delays (daily, weekly, monthly) share one rule for dates where
// Hour:Minute is irregular: a time repeated when clocks go back resolves to its
// first occurrence, and a date on which the time does not exist (skipped when
// clocks go forward, or a month without Day) is passed over.
type DailyDelay struct {
	Hour   int
	Minute int
}

// Daily returns a delay firing at the next hour:minute.
func Daily(hour, minute int) DailyDelay {
	return DailyDelay{Hour: hour, Minute: minute}
}

// next returns today's hour:minute if it is still ahead, otherwise the next day's.
func (d DailyDelay) next(now time.Time, loc *time.Location) (time.Time, error) {
	if err := checkTimeOfDay(d.Hour, d.Minute); err != nil {
		return time.Time{}, err
	}

	local := now.In(loc)
	y, m, day := local.Date()

	for i := range maxDaySearch {
		date := time.Date(y, m, day+i, 12, 0, 0, 0, loc)
		at, ok := wallClock(date.Year(), date.Month(), date.Day(), d.Hour, d.Minute, loc)
		if ok && at.After(local) {
			return at, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: no %02d:%02d within %d days", ErrUnsupported, d.Hour, d.Minute, maxDaySearch)
}

// WeeklyDelay fires at the next occurrence of Hour:Minute on Weekday.
type WeeklyDelay struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
}

// Weekly returns a delay firing at the next hour:minute on weekday.
func Weekly(weekday time.Weekday, hour, minute int) WeeklyDelay {
	return WeeklyDelay{Weekday: weekday, Hour: hour, Minute: minute}
}

// next walks the dates falling on Weekday, starting today. gronx finds the
// dates by matching noon on Weekday, which no time zone skips or repeats.
func (d WeeklyDelay) next(now time.Time, loc *time.Location) (time.Time, error) {
	if d.Weekday < time.Sunday || d.Weekday > time.Saturday {
		return time.Time{}, fmt.Errorf("%w: weekday %d out of range", ErrInvalidDelay, d.Weekday)
	}
	if err := checkTimeOfDay(d.Hour, d.Minute); err != nil {
		return time.Time{}, err
	}

	local := now.In(loc)
	y, m, day := local.Date()
	expr := fmt.Sprintf("0 12 * * %d", d.Weekday)

	ref, inclusive := time.Date(y, m, day, 0, 0, 0, 0, loc), true
	for range maxWeekSearch {
		noon, err := gronx.NextTickAfter(expr, ref, inclusive)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q: %v", ErrUnsupported, expr, err)
		}
		noon = noon.In(loc)
		ref, inclusive = noon, false

		if noon.Weekday() != d.Weekday {
			continue
		}
		ny, nm, nd := noon.Date()
		if at, ok := wallClock(ny, nm, nd, d.Hour, d.Minute, loc); ok && at.After(local) {
			return at, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: no %s %02d:%02d within %d weeks", ErrUnsupported, d.Weekday, d.Hour, d.Minute, maxWeekSearch)
}

// MonthlyDelay fires at the next occurrence of Hour:Minute on day Day of a month.
// Months that have no such day are skipped, so Day 31 only fires in 31-day months.
type MonthlyDelay struct {
	Day    int
	Hour   int
	Minute int
}

// Monthly returns a delay firing at the next hour:minute on the given day of the month.
func Monthly(day, hour, minute int) MonthlyDelay {
	return MonthlyDelay{Day: day, Hour: hour, Minute: minute}
}

func (d MonthlyDelay) next(now time.Time, loc *time.Location) (time.Time, error) {
	if d.Day < 1 || d.Day > 31 {
		return time.Time{}, fmt.Errorf("%w: day of month %d out of range", ErrInvalidDelay, d.Day)
	}
	if err := checkTimeOfDay(d.Hour, d.Minute); err != nil {
		return time.Time{}, err
	}

	local := now.In(loc)
	y, m, _ := local.Date()

	for i := range maxMonthSearch {
		first := time.Date(y, m+time.Month(i), 1, 12, 0, 0, 0, loc)
		if at, ok := wallClock(first.Year(), first.Month(), d.Day, d.Hour, d.Minute, loc); ok && at.After(local) {
			return at, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: no day %d at %02d:%02d within %d months", ErrUnsupported, d.Day, d.Hour, d.Minute, maxMonthSearch)
}

// Search bounds for wall-clock delays. Each is far beyond the skips a real
// calendar produces.
const (
	maxDaySearch   = 8
	maxWeekSearch  = 8
	maxMonthSearch = 48
)

func checkTimeOfDay(hour, minute int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("%w: hour %d out of range", ErrInvalidDelay, hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("%w: minute %d out of range", ErrInvalidDelay, minute)
	}
	return nil
}

// wallClock returns the first instant the clock in loc reads hour:minute on the
// given date. ok is false when that reading never occurs: the date does not
// exist, such as February 30, or clocks jump over hour:minute that day.
func wallClock(year int, month time.Month, day, hour, minute int, loc *time.Location) (time.Time, bool) {
	at := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if !readsAs(at, year, month, day, hour, minute) {
		return time.Time{}, false
	}

	// When clocks went back shortly before at, the same reading occurred once
	// already under the previous offset.
	start, _ := at.ZoneBounds()
	if !start.IsZero() {
		_, offset := at.Zone()
		_, prevOffset := start.Add(-time.Second).Zone()
		if prevOffset > offset {
			earlier := at.Add(-time.Duration(prevOffset-offset) * time.Second)
			if readsAs(earlier, year, month, day, hour, minute) {
				at = earlier
			}
		}
	}
	return at, true
}

func readsAs(t time.Time, year int, month time.Month, day, hour, minute int) bool {
	y, m, d := t.Date()
	return y == year && m == month && d == day && t.Hour() == hour && t.Minute() == minute
}
