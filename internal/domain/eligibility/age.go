// Package eligibility computes member coverage alerts from birth dates,
// relationship categories, disability certificates and contribution
// payments. Every function takes the reference date explicitly and keeps no
// state, so results only change when the inputs or the reference date do.
package eligibility

import "time"

// DateOnly truncates t to midnight UTC of its own calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from `from` to `to`.
// The result is negative when `to` is before `from`.
func DaysBetween(from, to time.Time) int {
	return int(DateOnly(to).Sub(DateOnly(from)).Hours() / 24)
}

// AgeInYears returns the calendar age of someone born on birth as of asOf,
// or nil when the birth date is unknown. The age only increments once the
// birthday (month, day) has been reached in the asOf year.
func AgeInYears(birth *time.Time, asOf time.Time) *int {
	if birth == nil {
		return nil
	}
	age := asOf.Year() - birth.Year()
	if asOf.Month() < birth.Month() || (asOf.Month() == birth.Month() && asOf.Day() < birth.Day()) {
		age--
	}
	return &age
}

// MonthsUntilAge returns the months remaining until the person turns
// targetAge, counting 30-day months over the calendar-day distance and
// rounding down. It is negative once that birthday has passed.
//
// The 30-day month drifts against a real calendar near month boundaries;
// existing alert windows were tuned with this counting and depend on it.
func MonthsUntilAge(birth time.Time, targetAge int, asOf time.Time) int {
	target := time.Date(birth.Year()+targetAge, birth.Month(), birth.Day(), 0, 0, 0, 0, time.UTC)
	return floorDiv(DaysBetween(asOf, target), 30)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
