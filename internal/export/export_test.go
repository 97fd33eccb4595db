package export

import (
	"bytes"
	"testing"

	"github.com/christopherklint97/travelpal/internal/trip"
)

func TestFormatCost(t *testing.T) {
	tests := []struct {
		amount   float64
		currency string
		want     string
	}{
		{1500000, "VND", "1,500,000 VND"},
		{1500000.4, "vnd", "1,500,000 VND"},
		{2.5, "USD", "2.5 USD"},
		{1200, "EUR", "1,200 EUR"},
		{0, "", "0"},
	}
	for _, tt := range tests {
		if got := FormatCost(tt.amount, tt.currency); got != tt.want {
			t.Errorf("FormatCost(%v, %q) = %q, want %q", tt.amount, tt.currency, got, tt.want)
		}
	}
}

func TestQRCode(t *testing.T) {
	png, err := QRCode(ShareURL("http://localhost:8080/", "abc 1"), 0)
	if err != nil {
		t.Fatalf("QRCode: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("output is not a PNG")
	}
	if got := ShareURL("http://localhost:8080/", "abc 1"); got != "http://localhost:8080/api/trips/abc%201" {
		t.Errorf("ShareURL = %q", got)
	}
}

func TestWritePDF(t *testing.T) {
	plan := &trip.TripPlan{
		Summary: "Phở, beaches and lanterns in Hội An",
		Tips:    "Carry cash. Bargain politely.",
		Stats:   trip.TripStats{TotalCost: 1500000, Currency: "VND", DurationDays: 1, WeatherSummary: "Warm"},
		Itinerary: []trip.DayPlan{{Day: 1, Date: "2023-11-24", Theme: "Old Town", Events: []trip.ItineraryEvent{
			{ID: "a", Time: "09:00", Activity: "Bánh mì breakfast", LocationName: "Bánh Mì Phượng", Type: trip.TypeFood, Status: trip.StatusAccepted},
			{ID: "b", Time: "11:00", Activity: "Skipped", LocationName: "Nowhere", Status: trip.StatusRejected},
		}}},
	}

	var buf bytes.Buffer
	if err := WritePDF(&buf, plan, PDFOptions{ShareURL: "http://localhost:8080/api/trips/x"}); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}
	t.Logf("pdf size: %d bytes", buf.Len())

	if err := WritePDF(&bytes.Buffer{}, &trip.TripPlan{}, PDFOptions{}); err == nil {
		t.Error("expected error for empty plan")
	}
}
