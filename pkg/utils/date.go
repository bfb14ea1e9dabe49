package utils

import "time"

// SamplingUnit is the dataset's native bar interval. NIFTY option datasets
// are minute-sampled; the purge gap between train and test windows is one
// of these.
const SamplingUnit = time.Minute

// FirstOfMonth truncates a timestamp to midnight on the first day of its
// calendar month, keeping the original location.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// AddMonths shifts a timestamp by whole calendar months. Month arithmetic
// follows time.AddDate, so windows track calendar boundaries rather than
// fixed day counts.
func AddMonths(t time.Time, months int) time.Time {
	return t.AddDate(0, months, 0)
}

// CalendarDays returns the number of calendar days spanned by [from, to],
// rounded up so a partial trading day still counts as one.
func CalendarDays(from, to time.Time) float64 {
	if to.Before(from) {
		return 0
	}
	days := to.Sub(from).Hours() / 24
	if days < 1 {
		return 1
	}
	return days
}
