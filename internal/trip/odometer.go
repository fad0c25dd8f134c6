package trip

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Reconstruct fills start and end odometer readings in place from one
// known reading: anchorOdometer is the reading at end of day on
// anchorDate. Trips dated on or before the anchor are walked backward
// from it, later trips forward. Trips whose date does not parse keep
// their slice position but are left off the walk with OdometerKnown
// false.
//
// The walk assumes trips are ordered oldest first, which Associate
// guarantees.
func Reconstruct(trips []Trip, anchorDate string, anchorOdometer float64) error {
	anchor, err := time.Parse(dateLayout, anchorDate)
	if err != nil {
		return fmt.Errorf("odometer anchor date %q: %w", anchorDate, err)
	}

	var before, after []int
	for i := range trips {
		d, err := time.Parse(dateLayout, trips[i].Date)
		if err != nil {
			continue
		}
		if !d.After(anchor) {
			before = append(before, i)
		} else {
			after = append(after, i)
		}
	}

	current := anchorOdometer
	for k := len(before) - 1; k >= 0; k-- {
		t := &trips[before[k]]
		t.EndOdometer = current
		t.StartOdometer = current - t.DistanceKm
		t.OdometerKnown = true
		current = t.StartOdometer
	}

	current = anchorOdometer
	for _, i := range after {
		t := &trips[i]
		t.StartOdometer = current
		t.EndOdometer = current + t.DistanceKm
		t.OdometerKnown = true
		current = t.EndOdometer
	}
	return nil
}
