package timeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which shape a record was parsed from.
type Kind string

const (
	KindVisit    Kind = "Visit"
	KindActivity Kind = "Activity"
	KindPath     Kind = "Location Path"
)

// StoredLayout is the canonical string form for parsed timestamps.
const StoredLayout = "2006-01-02 15:04:05"

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	StoredLayout,
	"2006-01-02",
}

// Timestamp holds either a parsed instant or the original literal.
// An unparseable timestamp keeps its literal form so sort order and
// duration math never see a silently coerced sentinel.
type Timestamp struct {
	Time   time.Time
	Raw    string
	Parsed bool
}

// ParseTimestamp accepts ISO-8601 and stored forms. On failure the
// literal is retained and Parsed is false.
func ParseTimestamp(s string) Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t, Raw: s, Parsed: true}
		}
	}
	return Timestamp{Raw: s}
}

// String renders a parsed instant in the stored layout; unparsed
// timestamps render as their original literal.
func (ts Timestamp) String() string {
	if ts.Parsed {
		return ts.Time.Format(StoredLayout)
	}
	return ts.Raw
}

// SortKey gives a total order: parsed timestamps sort chronologically
// via the stored layout, unparsed ones lexicographically on the literal.
func (ts Timestamp) SortKey() string { return ts.String() }

// DateOnly returns the YYYY-MM-DD portion of the rendered timestamp.
func (ts Timestamp) DateOnly() string {
	s := ts.String()
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

// TimeOnly returns the HH:MM:SS portion, or the whole literal when no
// date/time split exists.
func (ts Timestamp) TimeOnly() string {
	s := ts.String()
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[i+1:]
	}
	return s
}

// DurationMinutes is the whole-minute span between two timestamps,
// truncated; 0 when either endpoint is unparsed or the endpoints
// arrive reversed.
func DurationMinutes(start, end Timestamp) int {
	if !start.Parsed || !end.Parsed {
		return 0
	}
	mins := int(end.Time.Sub(start.Time).Minutes())
	if mins < 0 {
		return 0
	}
	return mins
}

// LatLng is a coordinate pair. Records carry a *LatLng so latitude and
// longitude are either both present or both absent.
type LatLng struct {
	Lat float64
	Lng float64
}

// ParseLatLng parses strings of the form "43.5707239°, -79.5797226°".
// Malformed input yields nil, never a partial pair.
func ParseLatLng(s string) *LatLng {
	parts := strings.Split(strings.ReplaceAll(s, "°", ""), ",")
	if len(parts) != 2 {
		return nil
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil
	}
	return &LatLng{Lat: lat, Lng: lng}
}

func (ll *LatLng) String() string {
	if ll == nil {
		return ""
	}
	return fmt.Sprintf("%.7f, %.7f", ll.Lat, ll.Lng)
}

// Record is the closed set of segment shapes. Consumers type-switch on
// *Visit, *Activity, and *LocationPath.
type Record interface {
	Kind() Kind
	StartTime() Timestamp
	EndTime() Timestamp
}

// Visit is time spent at a place.
type Visit struct {
	Start           Timestamp
	End             Timestamp
	DurationMin     int
	PlaceID         string
	SemanticType    string
	Probability     float64
	Location        *LatLng
	HierarchyLevel  int
	VisitConfidence float64

	// Filled by enrichment; empty until resolved.
	Address   string
	PlaceName string
}

func (v *Visit) Kind() Kind           { return KindVisit }
func (v *Visit) StartTime() Timestamp { return v.Start }
func (v *Visit) EndTime() Timestamp   { return v.End }

// Activity is movement between places.
type Activity struct {
	Start          Timestamp
	End            Timestamp
	DurationMin    int
	Category       string
	Confidence     float64
	DistanceMeters float64
	DistanceKm     float64
	StartLocation  *LatLng
	EndLocation    *LatLng

	// Filled by enrichment; empty until resolved.
	StartAddress string
	EndAddress   string
}

func (a *Activity) Kind() Kind           { return KindActivity }
func (a *Activity) StartTime() Timestamp { return a.Start }
func (a *Activity) EndTime() Timestamp   { return a.End }

// LocationPath is a raw point trace.
type LocationPath struct {
	Start     Timestamp
	End       Timestamp
	NumPoints int
	First     *LatLng
	Last      *LatLng
}

func (p *LocationPath) Kind() Kind           { return KindPath }
func (p *LocationPath) StartTime() Timestamp { return p.Start }
func (p *LocationPath) EndTime() Timestamp   { return p.End }
