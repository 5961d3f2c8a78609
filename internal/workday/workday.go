// Package workday computes the "previous work day" window used for digests.
package workday

import "time"

// PreviousRange returns the UTC [start, end) bounds of the work day before
// now. Weekends are skipped, so Monday, Saturday and Sunday all map to the
// preceding Friday.
func PreviousRange(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	switch day.Weekday() {
	case time.Sunday:
		day = day.AddDate(0, 0, -2)
	case time.Saturday:
		day = day.AddDate(0, 0, -1)
	}
	return day, day.AddDate(0, 0, 1)
}
