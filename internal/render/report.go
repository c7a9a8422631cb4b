package render

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/driftline/driftline/internal/surface"
)

// Report produces the one-page PDF mission summary: mission identity,
// centroid estimate, stranded accounting, and the search areas per
// confidence level.
func Report(missionID string, analysis *surface.Analysis) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Drift Prediction Summary", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Drift Prediction Summary")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(55, 7, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 7, value, "", 1, "L", false, 0, "")
	}

	row("Mission", missionID)
	row("Generated", time.Now().UTC().Format(time.RFC3339))
	row("Most likely position", fmt.Sprintf("%.5f, %.5f", analysis.CentroidLat, analysis.CentroidLon))
	row("Valid at", analysis.CentroidTime.UTC().Format(time.RFC3339))
	row("Particles", fmt.Sprintf("%d (%d stranded)", analysis.ParticleCount, analysis.StrandedCount))
	pdf.Ln(5)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Search areas")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(40, 7, "Confidence", "B", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, "Area (km2)", "B", 0, "R", false, 0, "")
	pdf.CellFormat(40, 7, "Mass", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, level := range surface.ConfidenceLevels {
		area := analysis.SearchArea(level)
		pdf.CellFormat(40, 7, fmt.Sprintf("%d%%", level), "", 0, "L", false, 0, "")
		if area == nil || len(area.Ring) == 0 {
			pdf.CellFormat(80, 7, "not derivable at this resolution", "", 1, "R", false, 0, "")
			continue
		}
		pdf.CellFormat(40, 7, fmt.Sprintf("%.1f", area.AreaKm2), "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, fmt.Sprintf("%.3f", area.Mass), "", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}
