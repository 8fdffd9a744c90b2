// Package availability decides booking-conflict status for candidate date
// ranges. All intervals are half-open [start, end): a stay that ends the
// day another begins does not conflict.
package availability

import (
	"fmt"
	"time"

	"staysync/internal/models"
)

// InvalidRangeError reports a candidate range whose start is not strictly
// before its end, or with a zero bound.
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range: start %s must be before end %s",
		e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"))
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Under half-open semantics two ranges conflict iff each starts before the
// other ends.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// IsAvailable reports whether the candidate range [start, end) is free of
// conflicts against the existing bookings of the given property. Bookings
// for other properties are ignored.
func IsAvailable(propertyID string, start, end time.Time, existing []models.BookingInterval) (bool, error) {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return false, &InvalidRangeError{Start: start, End: end}
	}

	for _, b := range existing {
		if b.PropertyID != propertyID {
			continue
		}
		if Overlaps(start, end, b.Start, b.End) {
			return false, nil
		}
	}
	return true, nil
}

// Conflicts returns the existing intervals of the property that overlap
// the candidate range, in input order.
func Conflicts(propertyID string, start, end time.Time, existing []models.BookingInterval) ([]models.BookingInterval, error) {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return nil, &InvalidRangeError{Start: start, End: end}
	}

	var out []models.BookingInterval
	for _, b := range existing {
		if b.PropertyID != propertyID {
			continue
		}
		if Overlaps(start, end, b.Start, b.End) {
			out = append(out, b)
		}
	}
	return out, nil
}
