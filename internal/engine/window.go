package engine

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidArgument is returned for a negative lookahead window or a
// calendar-invalid (month, day) anchor.
var ErrInvalidArgument = errors.New("invalid argument")

// FullYearWindow is a lookahead that contains every possible next occurrence.
// The furthest next occurrence is 365 days away (e.g. Feb 28 seen from Feb 29).
const FullYearWindow = 366

const day = 24 * time.Hour

// Anchor is a yearly recurring date identified by ID. Only Month and Day are
// significant.
type Anchor struct {
	ID    int64
	Month time.Month
	Day   int
}

// AnchorOf builds an Anchor from a full birth date, discarding its year.
func AnchorOf(id int64, date time.Time) Anchor {
	_, m, d := date.Date()
	return Anchor{ID: id, Month: m, Day: d}
}

// NextOccurrence is the next instance of an Anchor on or after a reference day.
type NextOccurrence struct {
	AnchorID int64
	// Date is midnight UTC of the civil occurrence date.
	Date      time.Time
	DaysUntil int
}

// ComputeUpcoming returns the anchors whose next occurrence on or after
// reference falls within windowDays (inclusive), sorted by DaysUntil.
// Anchors with the same DaysUntil keep their input order.
//
// Only the calendar date of reference, read in its own location, is used.
// A Feb 29 anchor occurs on Feb 28 in non-leap years.
func ComputeUpcoming(reference time.Time, windowDays int, anchors []Anchor) ([]NextOccurrence, error) {
	if windowDays < 0 {
		return nil, fmt.Errorf("%w: window of %d days", ErrInvalidArgument, windowDays)
	}

	today := civilDay(reference)
	upcoming := make([]NextOccurrence, 0, len(anchors))

	for _, a := range anchors {
		occurrence, daysUntil, err := next(today, a.Month, a.Day)
		if err != nil {
			return nil, fmt.Errorf("anchor %d: %w", a.ID, err)
		}
		if daysUntil > windowDays {
			continue
		}
		upcoming = append(upcoming, NextOccurrence{
			AnchorID:  a.ID,
			Date:      occurrence,
			DaysUntil: daysUntil,
		})
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].DaysUntil < upcoming[j].DaysUntil
	})
	return upcoming, nil
}

// Next returns the next occurrence of (month, day) on or after reference and
// the number of days until it.
func Next(reference time.Time, month time.Month, dayOfMonth int) (time.Time, int, error) {
	return next(civilDay(reference), month, dayOfMonth)
}

func next(today time.Time, month time.Month, dayOfMonth int) (time.Time, int, error) {
	if err := ValidateMonthDay(month, dayOfMonth); err != nil {
		return time.Time{}, 0, err
	}
	candidate := OccurrenceIn(today.Year(), month, dayOfMonth)
	if candidate.Before(today) {
		candidate = OccurrenceIn(today.Year()+1, month, dayOfMonth)
	}
	return candidate, int(candidate.Sub(today) / day), nil
}

// OccurrenceIn returns the occurrence of (month, day) in year as midnight UTC,
// clamping Feb 29 to Feb 28 when year is not a leap year.
func OccurrenceIn(year int, month time.Month, dayOfMonth int) time.Time {
	if month == time.February && dayOfMonth == 29 && !IsLeapYear(year) {
		dayOfMonth = 28
	}
	return time.Date(year, month, dayOfMonth, 0, 0, 0, 0, time.UTC)
}

// ValidateMonthDay reports whether (month, day) exists in some year.
func ValidateMonthDay(month time.Month, dayOfMonth int) error {
	if month < time.January || month > time.December {
		return fmt.Errorf("%w: month %d", ErrInvalidArgument, int(month))
	}
	if dayOfMonth < 1 || dayOfMonth > daysIn(month) {
		return fmt.Errorf("%w: day %d of %s", ErrInvalidArgument, dayOfMonth, month)
	}
	return nil
}

// IsLeapYear reports whether year has a Feb 29 in the Gregorian calendar.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// AgeAt returns the age turned at occurrence by someone born on birth.
func AgeAt(birth, occurrence time.Time) int {
	return occurrence.Year() - birth.Year()
}

// daysIn counts February as 29 days.
func daysIn(month time.Month) int {
	switch month {
	case time.February:
		return 29
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
