package calendar

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/christopherklint97/travelpal/internal/trip"
)

const (
	googleRenderURL = "https://calendar.google.com/calendar/render"
	googleStamp     = "20060102T150405Z"
)

// GoogleLink builds a "add to Google Calendar" template link for one event.
func GoogleLink(e trip.ItineraryEvent, date string, opts Options) (string, error) {
	start, end, err := EventWindow(e, date, opts)
	if err != nil {
		return "", fmt.Errorf("building calendar link for %s: %w", e.ID, err)
	}

	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", "Trip: "+e.Activity)
	q.Set("dates", start.UTC().Format(googleStamp)+"/"+end.UTC().Format(googleStamp))
	q.Set("details", linkDetails(e))
	q.Set("location", location(e))
	return googleRenderURL + "?" + q.Encode(), nil
}

func linkDetails(e trip.ItineraryEvent) string {
	contact := e.PhoneNumber
	if contact == "" {
		contact = "N/A"
	}
	return fmt.Sprintf("%s\n\nCost: %s %s\nContact: %s\nTransport: %s",
		e.Description,
		strconv.FormatFloat(e.CostEstimate, 'f', -1, 64),
		e.Currency,
		contact,
		e.TransportMethod,
	)
}
