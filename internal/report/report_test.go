package report

import (
	"bytes"
	"strings"
	"testing"

	"tripledger/internal/timeline"
	"tripledger/internal/trip"
)

func tripBetween(date, origin, dest string, km float64) trip.Trip {
	return trip.Trip{
		Date:          date,
		Start:         timeline.ParseTimestamp(date + " 09:00:00"),
		End:           timeline.ParseTimestamp(date + " 10:00:00"),
		DurationMin:   60,
		Origin:        origin,
		Destination:   dest,
		DistanceKm:    km,
		Category:      "IN_PASSENGER_VEHICLE",
		OdometerKnown: true,
	}
}

func TestFilterRegionRequiresBothEndpoints(t *testing.T) {
	trips := []trip.Trip{
		tripBetween("2024-03-01", "1 Main St, Toronto, ON M1M 1M1", "2 King St, Ottawa, Ontario", 20),
		tripBetween("2024-03-02", "1 Main St, Toronto, ON M1M 1M1", "5 Rue Peel, Montreal, QC", 20),
	}
	res, err := ApplyFilters(FilterConfig{RegionMarkers: []string{", on ", ", ontario"}}, trips)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(res.Kept) != 1 || res.Kept[0].Date != "2024-03-01" {
		t.Fatalf("kept %d trips: %+v", len(res.Kept), res.Kept)
	}
	if len(res.Drops) != 1 || res.Drops[0].Stage != "region" {
		t.Fatalf("drops: %+v", res.Drops)
	}
}

func TestFilterRegionIdempotent(t *testing.T) {
	trips := []trip.Trip{
		tripBetween("2024-03-01", "1 Main St, Toronto, ON M1M 1M1", "2 King St, Ottawa, Ontario", 20),
		tripBetween("2024-03-02", "1 Main St, Toronto, ON M1M 1M1", "5 Rue Peel, Montreal, QC", 20),
	}
	cfg := FilterConfig{RegionMarkers: []string{", on ", ", ontario"}}
	first, err := ApplyFilters(cfg, trips)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := ApplyFilters(cfg, first.Kept)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(second.Kept) != len(first.Kept) || len(second.Drops) != 0 {
		t.Fatalf("second pass changed output: kept %d, drops %+v", len(second.Kept), second.Drops)
	}
}

func TestFilterExclusionListsRunInOrder(t *testing.T) {
	trips := []trip.Trip{
		tripBetween("2024-03-01", "Home, Toronto, ON", "Plant, Sarnia, ON", 80),
		tripBetween("2024-03-02", "Home, Toronto, ON", "Office, Toronto, ON", 20),
	}
	cfg := FilterConfig{
		ExcludeLists: []ExclusionList{{Name: "plants", Markers: []string{"sarnia"}}},
	}
	res, err := ApplyFilters(cfg, trips)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(res.Kept) != 1 || res.Kept[0].Date != "2024-03-02" {
		t.Fatalf("kept: %+v", res.Kept)
	}
	if res.Drops[0].Stage != "exclude:plants" {
		t.Fatalf("drop stage = %q", res.Drops[0].Stage)
	}
}

func TestFilterDateWindowInclusive(t *testing.T) {
	trips := []trip.Trip{
		tripBetween("2024-01-01", "a, on ", "b, on ", 20),
		tripBetween("2024-01-05", "a, on ", "b, on ", 20),
		tripBetween("2024-01-06", "a, on ", "b, on ", 20),
		{Date: "unknown", Origin: "a", Destination: "b", DistanceKm: 20},
	}
	cfg := FilterConfig{ExcludeDateStart: "2024-01-01", ExcludeDateEnd: "2024-01-05"}
	res, err := ApplyFilters(cfg, trips)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(res.Kept) != 2 {
		t.Fatalf("kept %d trips: %+v", len(res.Kept), res.Kept)
	}
	if res.Kept[0].Date != "2024-01-06" || res.Kept[1].Date != "unknown" {
		t.Fatalf("wrong survivors: %+v", res.Kept)
	}
}

func TestFilterDateWindowRejectsHalfBounds(t *testing.T) {
	if _, err := ApplyFilters(FilterConfig{ExcludeDateStart: "2024-01-01"}, nil); err == nil {
		t.Fatalf("expected error for half-open window")
	}
	if _, err := ApplyFilters(FilterConfig{ExcludeDateStart: "01/01/2024", ExcludeDateEnd: "2024-01-05"}, nil); err == nil {
		t.Fatalf("expected error for malformed bound")
	}
	if _, err := ApplyFilters(FilterConfig{ExcludeDateStart: "2024-02-01", ExcludeDateEnd: "2024-01-05"}, nil); err == nil {
		t.Fatalf("expected error for inverted window")
	}
}

func TestFilterDuplicateOriginsAgainstRetained(t *testing.T) {
	trips := []trip.Trip{
		tripBetween("2024-03-01", "Home", "Office", 20),
		tripBetween("2024-03-02", "Home", "Plant", 20),
		tripBetween("2024-03-03", "Plant", "Home", 20),
		tripBetween("2024-03-04", "", "Office", 20),
		tripBetween("2024-03-05", "", "Plant", 20),
	}
	res, err := ApplyFilters(FilterConfig{DuplicateOriginCheck: true}, trips)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	// Trip 2 repeats trip 1's origin. Empty origins never match.
	if len(res.Kept) != 4 {
		t.Fatalf("kept %d trips: %+v", len(res.Kept), res.Kept)
	}
	if len(res.Drops) != 1 || res.Drops[0].Trip.Date != "2024-03-02" {
		t.Fatalf("drops: %+v", res.Drops)
	}
}

func TestFilterDuplicateOriginsOnlyAdjacent(t *testing.T) {
	trips := []trip.Trip{
		tripBetween("2024-03-01", "Home", "Plant", 20),
		tripBetween("2024-03-02", "Plant", "Office", 20),
		tripBetween("2024-03-03", "Home", "Office", 20),
	}
	res, err := ApplyFilters(FilterConfig{DuplicateOriginCheck: true}, trips)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	// Home recurs but never back to back, so nothing is dropped.
	if len(res.Kept) != 3 || len(res.Drops) != 0 {
		t.Fatalf("kept %d, drops %+v", len(res.Kept), res.Drops)
	}
}

func TestDuplicateOriginComparesRetainedNotInput(t *testing.T) {
	// The middle trip is dropped by distance later, but the duplicate
	// check runs before that, so only retained trips matter here.
	trips := []trip.Trip{
		tripBetween("2024-03-01", "Home", "Office", 20),
		tripBetween("2024-03-02", "Home", "Plant", 20),
		tripBetween("2024-03-03", "Home", "Gym", 20),
	}
	res, err := ApplyFilters(FilterConfig{DuplicateOriginCheck: true}, trips)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	// Trips 2 and 3 both repeat the retained trip 1's origin.
	if len(res.Kept) != 1 {
		t.Fatalf("kept %d trips: %+v", len(res.Kept), res.Kept)
	}
}

func TestPurposeRulesFirstMatchWins(t *testing.T) {
	trips := []trip.Trip{
		tripBetween("2024-03-01", "Home, Toronto", "Site, Tiverton", 120),
		tripBetween("2024-03-02", "Home, Toronto", "Depot, Barrie", 90),
	}
	cfg := FilterConfig{
		PurposeRules: []PurposeRule{
			{Purpose: "Travel to Customer Site", Markers: []string{"tiverton", "barrie"}},
			{Purpose: "Delivery", Markers: []string{"barrie"}},
		},
	}
	res, err := ApplyFilters(cfg, trips)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Kept[0].Purpose != "Travel to Customer Site" {
		t.Fatalf("trip 0 purpose = %q", res.Kept[0].Purpose)
	}
	if res.Kept[1].Purpose != "Travel to Customer Site" {
		t.Fatalf("first matching rule should win, got %q", res.Kept[1].Purpose)
	}
}

func TestFilterMinDistanceRunsLast(t *testing.T) {
	trips := []trip.Trip{
		tripBetween("2024-03-01", "Home", "Office", 14.99),
		tripBetween("2024-03-02", "Office", "Plant", 15),
	}
	res, err := ApplyFilters(FilterConfig{MinDistanceKm: 15}, trips)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(res.Kept) != 1 || res.Kept[0].DistanceKm != 15 {
		t.Fatalf("kept: %+v", res.Kept)
	}
	if res.Drops[0].Stage != "min-distance" {
		t.Fatalf("drop stage = %q", res.Drops[0].Stage)
	}
}

func TestBuildRowsLayout(t *testing.T) {
	trips := []trip.Trip{
		tripBetween("2024-03-01", "Home", "Office", 20.5),
		tripBetween("2024-03-02", "Office", "Home", 19.5),
	}
	trips[1].OdometerKnown = false

	rows := BuildRows(trips)
	if len(rows) != 6 {
		t.Fatalf("got %d rows, want 6", len(rows))
	}
	if rows[0][12] != "40.00" {
		t.Fatalf("lead total = %q", rows[0][12])
	}
	if rows[1][0] != "Item" || rows[1][7] != "Km Driven" {
		t.Fatalf("header row: %v", rows[1])
	}
	data := rows[2]
	if data[0] != "1" || data[1] != "2024-03-01" || data[2] != "09:00:00" || data[7] != "20.50" {
		t.Fatalf("data row: %v", data)
	}
	if rows[3][8] != "" || rows[3][9] != "" {
		t.Fatalf("unknown odometer should render empty, got %q/%q", rows[3][8], rows[3][9])
	}
	for _, cell := range rows[4] {
		if cell != "" {
			t.Fatalf("spacer row not blank: %v", rows[4])
		}
	}
	last := rows[5]
	if last[7] != "Total Distance Traveled in Fiscal Year" || last[12] != "40.00" {
		t.Fatalf("closing row: %v", last)
	}
}

func TestDurationRoundTrip(t *testing.T) {
	cases := map[int]string{
		0:   "0 min",
		45:  "45 min",
		60:  "1h 0min",
		90:  "1h 30min",
		150: "2h 30min",
	}
	for minutes, want := range cases {
		got := FormatDuration(minutes)
		if got != want {
			t.Fatalf("FormatDuration(%d) = %q, want %q", minutes, got, want)
		}
		if back := ParseDurationMinutes(got); back != minutes {
			t.Fatalf("ParseDurationMinutes(%q) = %d, want %d", got, back, minutes)
		}
	}
	if got := ParseDurationMinutes("1h 30 min"); got != 90 {
		t.Fatalf("loose spacing: %d", got)
	}
	if got := ParseDurationMinutes("garbage"); got != 0 {
		t.Fatalf("garbage should yield 0, got %d", got)
	}
}

func TestRenderPDF(t *testing.T) {
	trips := []trip.Trip{
		tripBetween("2024-03-01", strings.Repeat("Long Address ", 10), "Office", 20.5),
	}
	out, err := RenderPDF("Vehicle Logbook", trips)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("output is not a PDF: %q", out[:8])
	}
}
