package utils

import "time"

// WindowStart returns the beginning of a look-back window ending at now.
// Non-positive windows fall back to 24 hours.
func WindowStart(now time.Time, window time.Duration) time.Time {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return now.Add(-window)
}

// HoursToDuration converts a fractional hour count into a duration.
func HoursToDuration(hours float64) time.Duration {
	if hours <= 0 {
		return 0
	}
	return time.Duration(hours * float64(time.Hour))
}
