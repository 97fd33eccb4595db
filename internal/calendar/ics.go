package calendar

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/emersion/go-ical"

	"github.com/christopherklint97/travelpal/internal/trip"
)

// ErrNoEvents is returned by WriteICS when no event of the plan can be
// placed on a calendar.
var ErrNoEvents = errors.New("no events to export")

const (
	prodID        = "-//TravelPal//Trip Planner//EN"
	summaryPrefix = "[TravelPal] "
)

// WriteICS encodes every non-rejected event of the plan as an iCalendar
// VEVENT. Events whose date or time cannot be read are skipped; the number
// written is returned. Nothing is written and ErrNoEvents is returned when
// no event is left.
func WriteICS(w io.Writer, plan *trip.TripPlan, opts Options) (int, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)

	stamp := time.Now().UTC().Truncate(time.Second)
	written := 0
	for _, de := range trip.ActiveEvents(plan) {
		start, end, err := EventWindow(de.Event, de.Date, opts)
		if err != nil {
			continue
		}

		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, de.Event.ID+"@travelpal")
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		event.Props.SetDateTime(ical.PropDateTimeStart, start)
		event.Props.SetDateTime(ical.PropDateTimeEnd, end)
		event.Props.SetText(ical.PropSummary, summaryPrefix+de.Event.Activity)
		event.Props.SetText(ical.PropLocation, location(de.Event))
		event.Props.SetText(ical.PropDescription, eventNotes(de.Event))

		cal.Children = append(cal.Children, event.Component)
		written++
	}

	if written == 0 {
		return 0, ErrNoEvents
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return 0, fmt.Errorf("encoding calendar: %w", err)
	}
	return written, nil
}

// eventNotes is the description used for exported calendar entries.
func eventNotes(e trip.ItineraryEvent) string {
	var b strings.Builder
	b.WriteString(e.Description)
	if e.PhoneNumber != "" {
		fmt.Fprintf(&b, "\n\nPhone: %s", e.PhoneNumber)
	}
	if e.Website != "" {
		fmt.Fprintf(&b, "\nWebsite: %s", e.Website)
	}
	if e.BookingLink != "" {
		fmt.Fprintf(&b, "\nBooking: %s", e.BookingLink)
	}
	return strings.TrimSpace(b.String())
}
