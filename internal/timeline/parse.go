package timeline

import (
	"encoding/json"
	"errors"
	"math"
	"sort"
)

// Segment mirrors one entry of a location-history export's
// semanticSegments array. Exactly one of Visit, Activity, or
// TimelinePath is set on well-formed input.
type Segment struct {
	StartTime    string           `json:"startTime"`
	EndTime      string           `json:"endTime"`
	Visit        *segmentVisit    `json:"visit"`
	Activity     *segmentActivity `json:"activity"`
	TimelinePath []pathPoint      `json:"timelinePath"`
}

type segmentVisit struct {
	HierarchyLevel int        `json:"hierarchyLevel"`
	Probability    float64    `json:"probability"`
	TopCandidate   *candidate `json:"topCandidate"`
}

type segmentActivity struct {
	Start          latLngHolder `json:"start"`
	End            latLngHolder `json:"end"`
	DistanceMeters float64      `json:"distanceMeters"`
	TopCandidate   *candidate   `json:"topCandidate"`
}

type candidate struct {
	PlaceID       string       `json:"placeId"`
	SemanticType  string       `json:"semanticType"`
	Type          string       `json:"type"`
	Probability   float64      `json:"probability"`
	PlaceLocation latLngHolder `json:"placeLocation"`
}

type latLngHolder struct {
	LatLng string `json:"latLng"`
}

type pathPoint struct {
	Point string `json:"point"`
}

type export struct {
	SemanticSegments []Segment `json:"semanticSegments"`
}

// ErrNoSegments reports an export without a semanticSegments array.
var ErrNoSegments = errors.New("export contains no semanticSegments")

// ParseSegment classifies one raw segment by its highest-priority
// recognized shape (visit, then activity, then path) and converts it to
// exactly one typed record. It returns false for unknown shapes and for
// paths with no points.
func ParseSegment(seg Segment) (Record, bool) {
	switch {
	case seg.Visit != nil:
		return parseVisit(seg), true
	case seg.Activity != nil:
		return parseActivity(seg), true
	case seg.TimelinePath != nil:
		if len(seg.TimelinePath) == 0 {
			return nil, false
		}
		return parsePath(seg), true
	default:
		return nil, false
	}
}

// ParseExport decodes a full export document and parses every segment.
// Skipped counts segments that matched no known shape.
func ParseExport(data []byte) (records []Record, skipped int, err error) {
	var doc export
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, err
	}
	if doc.SemanticSegments == nil {
		return nil, 0, ErrNoSegments
	}
	for _, seg := range doc.SemanticSegments {
		rec, ok := ParseSegment(seg)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// SortRecords orders records by start-timestamp sort key; unparsed
// literals take their lexicographic place rather than panicking.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartTime().SortKey() < records[j].StartTime().SortKey()
	})
}

func parseVisit(seg Segment) *Visit {
	start := ParseTimestamp(seg.StartTime)
	end := ParseTimestamp(seg.EndTime)
	v := &Visit{
		Start:           start,
		End:             end,
		DurationMin:     DurationMinutes(start, end),
		HierarchyLevel:  seg.Visit.HierarchyLevel,
		VisitConfidence: seg.Visit.Probability,
	}
	if tc := seg.Visit.TopCandidate; tc != nil {
		v.PlaceID = tc.PlaceID
		v.SemanticType = tc.SemanticType
		v.Probability = tc.Probability
		v.Location = ParseLatLng(tc.PlaceLocation.LatLng)
	}
	if v.SemanticType == "" {
		v.SemanticType = "UNKNOWN"
	}
	return v
}

func parseActivity(seg Segment) *Activity {
	start := ParseTimestamp(seg.StartTime)
	end := ParseTimestamp(seg.EndTime)
	a := &Activity{
		Start:          start,
		End:            end,
		DurationMin:    DurationMinutes(start, end),
		DistanceMeters: seg.Activity.DistanceMeters,
		DistanceKm:     roundKm(seg.Activity.DistanceMeters / 1000),
		StartLocation:  ParseLatLng(seg.Activity.Start.LatLng),
		EndLocation:    ParseLatLng(seg.Activity.End.LatLng),
	}
	if tc := seg.Activity.TopCandidate; tc != nil {
		a.Category = tc.Type
		a.Confidence = tc.Probability
	}
	if a.Category == "" {
		a.Category = "UNKNOWN"
	}
	return a
}

func parsePath(seg Segment) *LocationPath {
	points := seg.TimelinePath
	return &LocationPath{
		Start:     ParseTimestamp(seg.StartTime),
		End:       ParseTimestamp(seg.EndTime),
		NumPoints: len(points),
		First:     ParseLatLng(points[0].Point),
		Last:      ParseLatLng(points[len(points)-1].Point),
	}
}

func roundKm(km float64) float64 {
	return math.Round(km*100) / 100
}
