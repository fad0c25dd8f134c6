package report

import (
	"fmt"
	"strconv"
	"strings"

	"tripledger/internal/trip"
)

// Headers is the logbook column layout. The last column only carries
// the distance total on the summary rows.
func Headers() []string {
	return []string{
		"Item", "Date", "Start Time", "End Time",
		"Starting Point", "Destination", "Purpose of Trip",
		"Km Driven", "Start Odometer", "End Odometer",
		"Duration (min)", "Activity_type", "",
	}
}

// BuildRows assembles the final sheet: a leading row carrying the
// distance total in the last column, the header row, one numbered row
// per trip, a blank spacer, and a closing total row.
func BuildRows(trips []trip.Trip) [][]string {
	total := TotalDistance(trips)
	width := len(Headers())

	rows := make([][]string, 0, len(trips)+4)
	lead := make([]string, width)
	lead[width-1] = fmt.Sprintf("%.2f", total)
	rows = append(rows, lead)
	rows = append(rows, Headers())

	for i, t := range trips {
		row := []string{
			strconv.Itoa(i + 1),
			t.Date,
			t.Start.TimeOnly(),
			t.End.TimeOnly(),
			t.Origin,
			t.Destination,
			t.Purpose,
			fmt.Sprintf("%.2f", t.DistanceKm),
			odometerCell(t.StartOdometer, t.OdometerKnown),
			odometerCell(t.EndOdometer, t.OdometerKnown),
			strconv.Itoa(t.DurationMin),
			t.Category,
			"",
		}
		rows = append(rows, row)
	}

	rows = append(rows, make([]string, width))
	closing := make([]string, width)
	closing[7] = "Total Distance Traveled in Fiscal Year"
	closing[width-1] = fmt.Sprintf("%.2f", total)
	rows = append(rows, closing)
	return rows
}

// TotalDistance sums the kilometers of the trips that made the report.
func TotalDistance(trips []trip.Trip) float64 {
	var total float64
	for _, t := range trips {
		total += t.DistanceKm
	}
	return total
}

func odometerCell(v float64, known bool) string {
	if !known {
		return ""
	}
	return fmt.Sprintf("%.0f", v)
}

// FormatDuration renders minutes as "45 min" or "1h 30min".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%dh %dmin", minutes/60, minutes%60)
}

// ParseDurationMinutes inverts FormatDuration, tolerating "1h 30 min"
// spacing. Unparseable strings yield 0.
func ParseDurationMinutes(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	if i := strings.IndexByte(s, 'h'); i >= 0 {
		hours, err := strconv.Atoi(strings.TrimSpace(s[:i]))
		if err != nil {
			return 0
		}
		total := hours * 60
		rest := strings.TrimSpace(strings.ReplaceAll(s[i+1:], "min", ""))
		if rest != "" {
			mins, err := strconv.Atoi(rest)
			if err != nil {
				return 0
			}
			total += mins
		}
		return total
	}
	rest := strings.TrimSpace(strings.ReplaceAll(s, "min", ""))
	if rest == "" {
		return 0
	}
	mins, err := strconv.Atoi(rest)
	if err != nil {
		return 0
	}
	return mins
}
