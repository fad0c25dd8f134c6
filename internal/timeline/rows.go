package timeline

import (
	"strconv"
)

// Header is the column order records use in the tabular store. It
// follows the same priority layout the report tooling expects.
func Header() []string {
	return []string{
		"type", "start_time", "end_time", "duration_minutes",
		"place_name", "address", "semantic_type", "place_id", "probability",
		"visit_confidence", "hierarchy_level", "activity_type", "activity_confidence",
		"distance_km", "distance_meters", "start_address", "end_address",
		"lat", "lng", "start_lat", "start_lng", "end_lat", "end_lng",
		"num_points", "first_point_lat", "first_point_lng", "last_point_lat", "last_point_lng",
	}
}

// ToRow encodes a record as one tabular row matching Header order.
func ToRow(rec Record) []string {
	c := rowCells{}
	c.set("type", string(rec.Kind()))
	c.set("start_time", rec.StartTime().String())
	c.set("end_time", rec.EndTime().String())

	switch r := rec.(type) {
	case *Visit:
		c.set("duration_minutes", strconv.Itoa(r.DurationMin))
		c.set("place_name", r.PlaceName)
		c.set("address", r.Address)
		c.set("semantic_type", r.SemanticType)
		c.set("place_id", r.PlaceID)
		c.set("probability", formatFloat(r.Probability))
		c.set("visit_confidence", formatFloat(r.VisitConfidence))
		c.set("hierarchy_level", strconv.Itoa(r.HierarchyLevel))
		c.setLatLng("lat", "lng", r.Location)
	case *Activity:
		c.set("duration_minutes", strconv.Itoa(r.DurationMin))
		c.set("activity_type", r.Category)
		c.set("activity_confidence", formatFloat(r.Confidence))
		c.set("distance_km", formatFloat(r.DistanceKm))
		c.set("distance_meters", formatFloat(r.DistanceMeters))
		c.set("start_address", r.StartAddress)
		c.set("end_address", r.EndAddress)
		c.setLatLng("start_lat", "start_lng", r.StartLocation)
		c.setLatLng("end_lat", "end_lng", r.EndLocation)
	case *LocationPath:
		c.set("num_points", strconv.Itoa(r.NumPoints))
		c.setLatLng("first_point_lat", "first_point_lng", r.First)
		c.setLatLng("last_point_lat", "last_point_lng", r.Last)
	}

	header := Header()
	row := make([]string, len(header))
	for i, name := range header {
		row[i] = c[name]
	}
	return row
}

// FromRow decodes a tabular row back into a typed record. The header
// names positions, so rows survive store padding and column reordering.
// Unknown type cells yield false.
func FromRow(header, row []string) (Record, bool) {
	cells := rowCells{}
	for i, name := range header {
		if i < len(row) {
			cells[name] = row[i]
		}
	}

	start := ParseTimestamp(cells["start_time"])
	end := ParseTimestamp(cells["end_time"])

	switch Kind(cells["type"]) {
	case KindVisit:
		return &Visit{
			Start:           start,
			End:             end,
			DurationMin:     parseIntCell(cells["duration_minutes"]),
			PlaceID:         cells["place_id"],
			SemanticType:    cells["semantic_type"],
			Probability:     parseFloatCell(cells["probability"]),
			Location:        pairFromCells(cells["lat"], cells["lng"]),
			HierarchyLevel:  parseIntCell(cells["hierarchy_level"]),
			VisitConfidence: parseFloatCell(cells["visit_confidence"]),
			Address:         cells["address"],
			PlaceName:       cells["place_name"],
		}, true
	case KindActivity:
		return &Activity{
			Start:          start,
			End:            end,
			DurationMin:    parseIntCell(cells["duration_minutes"]),
			Category:       cells["activity_type"],
			Confidence:     parseFloatCell(cells["activity_confidence"]),
			DistanceMeters: parseFloatCell(cells["distance_meters"]),
			DistanceKm:     parseFloatCell(cells["distance_km"]),
			StartLocation:  pairFromCells(cells["start_lat"], cells["start_lng"]),
			EndLocation:    pairFromCells(cells["end_lat"], cells["end_lng"]),
			StartAddress:   cells["start_address"],
			EndAddress:     cells["end_address"],
		}, true
	case KindPath:
		return &LocationPath{
			Start:     start,
			End:       end,
			NumPoints: parseIntCell(cells["num_points"]),
			First:     pairFromCells(cells["first_point_lat"], cells["first_point_lng"]),
			Last:      pairFromCells(cells["last_point_lat"], cells["last_point_lng"]),
		}, true
	default:
		return nil, false
	}
}

type rowCells map[string]string

func (c rowCells) set(name, value string) { c[name] = value }

func (c rowCells) setLatLng(latName, lngName string, ll *LatLng) {
	if ll == nil {
		return
	}
	c[latName] = formatFloat(ll.Lat)
	c[lngName] = formatFloat(ll.Lng)
}

// pairFromCells keeps the both-or-neither coordinate invariant across
// the store round trip.
func pairFromCells(latCell, lngCell string) *LatLng {
	if latCell == "" || lngCell == "" {
		return nil
	}
	lat, errLat := strconv.ParseFloat(latCell, 64)
	lng, errLng := strconv.ParseFloat(lngCell, 64)
	if errLat != nil || errLng != nil {
		return nil
	}
	return &LatLng{Lat: lat, Lng: lng}
}

func parseIntCell(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func parseFloatCell(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
