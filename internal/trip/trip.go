// Package trip builds vehicle trips out of timeline records and
// reconstructs odometer readings around a single known reading.
package trip

import (
	"tripledger/internal/timeline"
)

// Trip is one vehicle movement between two visited places.
type Trip struct {
	Date        string
	Start       timeline.Timestamp
	End         timeline.Timestamp
	DurationMin int
	Origin      string
	Destination string
	Purpose     string
	DistanceKm  float64
	Category    string

	// Filled by odometer reconstruction. OdometerKnown stays false
	// for trips whose date could not be placed on the odometer walk.
	StartOdometer float64
	EndOdometer   float64
	OdometerKnown bool
}

// DefaultVehicleCategories is the activity set treated as drivable
// when no override is configured.
var DefaultVehicleCategories = []string{"IN_PASSENGER_VEHICLE"}
