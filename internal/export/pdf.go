package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/phpdave11/gofpdf"

	"github.com/christopherklint97/travelpal/internal/trip"
)

// PDFOptions controls the printable itinerary.
type PDFOptions struct {
	Title string
	// ShareURL, when set, is printed as a QR code next to the title.
	ShareURL string
}

// WritePDF renders the plan's non-rejected events as an A4 document.
func WritePDF(w io.Writer, plan *trip.TripPlan, opts PDFOptions) error {
	if plan.IsEmpty() {
		return fmt.Errorf("writing pdf: plan has no days")
	}
	title := opts.Title
	if title == "" {
		title = trip.Title(plan)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(title), false)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	if opts.ShareURL != "" {
		png, err := QRCode(opts.ShareURL, 256)
		if err != nil {
			return err
		}
		imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("share", imageOpts, bytes.NewReader(png))
		pdf.ImageOptions("share", 165, 10, 30, 30, false, imageOpts, 0, "")
	}

	pdf.SetFont("Arial", "B", 18)
	pdf.MultiCell(145, 9, tr(title), "", "L", false)
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 11)
	pdf.MultiCell(145, 6, tr(plan.Summary), "", "L", false)
	pdf.Ln(2)
	pdf.SetFont("Arial", "I", 10)
	pdf.MultiCell(0, 5, tr(fmt.Sprintf("%d days, %d activities, about %s. Weather: %s",
		plan.Stats.DurationDays,
		len(trip.ActiveEvents(plan)),
		FormatCost(plan.Stats.TotalCost, plan.Stats.Currency),
		plan.Stats.WeatherSummary,
	)), "", "L", false)
	pdf.Ln(4)

	for _, day := range plan.Itinerary {
		pdf.SetFont("Arial", "B", 13)
		heading := fmt.Sprintf("Day %d", day.Day)
		if day.Date != "" {
			heading += "  " + day.Date
		}
		if day.Theme != "" {
			heading += "  " + day.Theme
		}
		pdf.CellFormat(0, 8, tr(heading), "B", 1, "L", false, 0, "")
		pdf.Ln(1)

		for _, e := range day.Events {
			if e.Status == trip.StatusRejected {
				continue
			}
			pdf.SetFont("Arial", "B", 11)
			pdf.CellFormat(20, 6, tr(e.Time), "", 0, "L", false, 0, "")
			pdf.MultiCell(0, 6, tr(e.Activity+" ("+string(e.Type)+")"), "", "L", false)

			pdf.SetFont("Arial", "", 10)
			place := e.LocationName
			if e.Address != "" {
				place += ", " + e.Address
			}
			pdf.SetX(pdf.GetX() + 20)
			pdf.MultiCell(0, 5, tr(place), "", "L", false)
			if e.Description != "" {
				pdf.SetX(pdf.GetX() + 20)
				pdf.MultiCell(0, 5, tr(e.Description), "", "L", false)
			}
			pdf.SetX(pdf.GetX() + 20)
			pdf.MultiCell(0, 5, tr(fmt.Sprintf("Cost: %s   Getting there: %s (%s)",
				FormatCost(e.CostEstimate, e.Currency), e.TransportMethod, e.TransportDuration)), "", "L", false)
			pdf.Ln(2)
		}
		pdf.Ln(3)
	}

	if plan.Tips != "" {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, "Tips", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, tr(plan.Tips), "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}
