package trip

import (
	"testing"

	"tripledger/internal/timeline"
)

func visitAt(start, addr string) *timeline.Visit {
	return &timeline.Visit{
		Start:   timeline.ParseTimestamp(start),
		End:     timeline.ParseTimestamp(start),
		Address: addr,
	}
}

func driveAt(start string, km float64) *timeline.Activity {
	return &timeline.Activity{
		Start:      timeline.ParseTimestamp(start),
		End:        timeline.ParseTimestamp(start),
		Category:   "IN_PASSENGER_VEHICLE",
		DistanceKm: km,
	}
}

func TestAssociateNearestVisits(t *testing.T) {
	records := []timeline.Record{
		visitAt("2024-03-05 08:00:00", "Home"),
		driveAt("2024-03-05 09:00:00", 12),
		&timeline.LocationPath{Start: timeline.ParseTimestamp("2024-03-05 09:30:00")},
		visitAt("2024-03-05 10:00:00", "Office"),
		driveAt("2024-03-05 17:00:00", 12.5),
		visitAt("2024-03-05 18:00:00", "Home"),
	}

	trips := Associate(records, nil)
	if len(trips) != 2 {
		t.Fatalf("got %d trips, want 2", len(trips))
	}
	if trips[0].Origin != "Home" || trips[0].Destination != "Office" {
		t.Fatalf("trip 0 endpoints: %q -> %q", trips[0].Origin, trips[0].Destination)
	}
	if trips[1].Origin != "Office" || trips[1].Destination != "Home" {
		t.Fatalf("trip 1 endpoints: %q -> %q", trips[1].Origin, trips[1].Destination)
	}
	if trips[0].Date != "2024-03-05" {
		t.Fatalf("trip date = %q", trips[0].Date)
	}
}

func TestAssociateMissingNeighbors(t *testing.T) {
	records := []timeline.Record{
		driveAt("2024-03-05 09:00:00", 5),
		visitAt("2024-03-05 10:00:00", "Office"),
		driveAt("2024-03-05 17:00:00", 5),
	}
	trips := Associate(records, nil)
	if len(trips) != 2 {
		t.Fatalf("got %d trips, want 2", len(trips))
	}
	if trips[0].Origin != "" || trips[0].Destination != "Office" {
		t.Fatalf("first trip endpoints: %q -> %q", trips[0].Origin, trips[0].Destination)
	}
	if trips[1].Origin != "Office" || trips[1].Destination != "" {
		t.Fatalf("last trip endpoints: %q -> %q", trips[1].Origin, trips[1].Destination)
	}
}

func TestAssociateFiltersCategories(t *testing.T) {
	walk := driveAt("2024-03-05 09:00:00", 3)
	walk.Category = "WALKING"
	records := []timeline.Record{
		walk,
		driveAt("2024-03-05 10:00:00", 8),
	}
	trips := Associate(records, []string{"IN_PASSENGER_VEHICLE"})
	if len(trips) != 1 {
		t.Fatalf("got %d trips, want 1", len(trips))
	}
	if trips[0].Category != "IN_PASSENGER_VEHICLE" {
		t.Fatalf("wrong category kept: %s", trips[0].Category)
	}
}

func TestAssociateSortsInput(t *testing.T) {
	records := []timeline.Record{
		driveAt("2024-03-05 17:00:00", 10),
		visitAt("2024-03-05 10:00:00", "Office"),
		driveAt("2024-03-05 09:00:00", 10),
	}
	trips := Associate(records, nil)
	if len(trips) != 2 {
		t.Fatalf("got %d trips, want 2", len(trips))
	}
	if trips[0].Start.String() != "2024-03-05 09:00:00" {
		t.Fatalf("trips not chronological: first starts %s", trips[0].Start)
	}
	if trips[0].Destination != "Office" || trips[1].Origin != "Office" {
		t.Fatalf("neighbor scan saw unsorted records")
	}
}

func TestReconstructAroundAnchor(t *testing.T) {
	trips := []Trip{
		{Date: "2024-03-01", DistanceKm: 10},
		{Date: "2024-03-05", DistanceKm: 20},
		{Date: "2024-03-10", DistanceKm: 5},
	}
	if err := Reconstruct(trips, "2024-03-05", 100); err != nil {
		t.Fatalf("reconstruct: %v", err)
	}

	if trips[1].StartOdometer != 80 || trips[1].EndOdometer != 100 {
		t.Fatalf("anchor trip odometer: %v..%v", trips[1].StartOdometer, trips[1].EndOdometer)
	}
	if trips[0].StartOdometer != 70 || trips[0].EndOdometer != 80 {
		t.Fatalf("earlier trip odometer: %v..%v", trips[0].StartOdometer, trips[0].EndOdometer)
	}
	if trips[2].StartOdometer != 100 || trips[2].EndOdometer != 105 {
		t.Fatalf("later trip odometer: %v..%v", trips[2].StartOdometer, trips[2].EndOdometer)
	}
	for i, tr := range trips {
		if !tr.OdometerKnown {
			t.Fatalf("trip %d should have a known odometer", i)
		}
	}
}

func TestReconstructSkipsUnparseableDates(t *testing.T) {
	trips := []Trip{
		{Date: "2024-03-01", DistanceKm: 10},
		{Date: "sometime", DistanceKm: 999},
		{Date: "2024-03-05", DistanceKm: 20},
	}
	if err := Reconstruct(trips, "2024-03-05", 100); err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if trips[1].OdometerKnown {
		t.Fatalf("unparseable trip date should stay unknown")
	}
	// The walk skips the bad trip entirely, so the parseable pair
	// still chains 70..80 then 80..100.
	if trips[0].StartOdometer != 70 || trips[2].StartOdometer != 80 {
		t.Fatalf("walk disturbed by unparseable date: %v, %v",
			trips[0].StartOdometer, trips[2].StartOdometer)
	}
}

func TestReconstructBadAnchor(t *testing.T) {
	if err := Reconstruct(nil, "05/03/2024", 100); err == nil {
		t.Fatalf("expected error for malformed anchor date")
	}
}
