package report

import (
	"bytes"
	"fmt"

	"github.com/phpdave11/gofpdf"
	"tripledger/internal/trip"
)

// RenderPDF renders the filtered trips as a landscape logbook table
// with a distance total underneath.
func RenderPDF(title string, trips []trip.Trip) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(title, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)

	widths := []float64{10, 20, 16, 16, 62, 62, 36, 18, 20, 20}
	headers := []string{
		"#", "Date", "Start", "End", "Starting Point", "Destination",
		"Purpose", "Km", "Start Odo", "End Odo",
	}

	pdf.SetFont("Helvetica", "B", 8)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	for i, t := range trips {
		cells := []string{
			fmt.Sprintf("%d", i+1),
			t.Date,
			t.Start.TimeOnly(),
			t.End.TimeOnly(),
			clip(t.Origin, 48),
			clip(t.Destination, 48),
			t.Purpose,
			fmt.Sprintf("%.2f", t.DistanceKm),
			odometerCell(t.StartOdometer, t.OdometerKnown),
			odometerCell(t.EndOdometer, t.OdometerKnown),
		}
		for j, c := range cells {
			pdf.CellFormat(widths[j], 6, c, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Cell(0, 8, fmt.Sprintf("Total Distance Traveled in Fiscal Year: %.2f km", TotalDistance(trips)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
