package trip

import (
	"tripledger/internal/timeline"
)

// Associate pairs each vehicle activity with the nearest visit before
// it (origin) and after it (destination). Records are re-sorted by
// start time first so the neighbor scan sees chronological order.
// A missing neighbor leaves the corresponding address empty.
func Associate(records []timeline.Record, vehicleCategories []string) []Trip {
	if len(vehicleCategories) == 0 {
		vehicleCategories = DefaultVehicleCategories
	}
	vehicle := make(map[string]bool, len(vehicleCategories))
	for _, c := range vehicleCategories {
		vehicle[c] = true
	}

	sorted := make([]timeline.Record, len(records))
	copy(sorted, records)
	timeline.SortRecords(sorted)

	var trips []Trip
	for i, rec := range sorted {
		act, ok := rec.(*timeline.Activity)
		if !ok || !vehicle[act.Category] {
			continue
		}

		var origin, destination string
		for j := i - 1; j >= 0; j-- {
			if v, ok := sorted[j].(*timeline.Visit); ok {
				origin = v.Address
				break
			}
		}
		for j := i + 1; j < len(sorted); j++ {
			if v, ok := sorted[j].(*timeline.Visit); ok {
				destination = v.Address
				break
			}
		}

		trips = append(trips, Trip{
			Date:        act.Start.DateOnly(),
			Start:       act.Start,
			End:         act.End,
			DurationMin: act.DurationMin,
			Origin:      origin,
			Destination: destination,
			DistanceKm:  act.DistanceKm,
			Category:    act.Category,
		})
	}
	return trips
}
