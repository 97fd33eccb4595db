package trip

import (
	"github.com/samber/lo"
)

// Clone returns a deep copy of the plan.
func Clone(p *TripPlan) *TripPlan {
	if p == nil {
		return nil
	}
	out := *p
	if p.Itinerary == nil {
		return &out
	}
	out.Itinerary = make([]DayPlan, len(p.Itinerary))
	for i, d := range p.Itinerary {
		if d.Events != nil {
			events := make([]ItineraryEvent, len(d.Events))
			copy(events, d.Events)
			d.Events = events
		}
		out.Itinerary[i] = d
	}
	return &out
}

// Reject marks the event as rejected. Unknown ids leave the plan unchanged.
func Reject(p *TripPlan, eventID string) *TripPlan {
	return setStatus(p, eventID, StatusRejected)
}

// Restore marks the event as accepted again.
func Restore(p *TripPlan, eventID string) *TripPlan {
	return setStatus(p, eventID, StatusAccepted)
}

func setStatus(p *TripPlan, eventID string, status EventStatus) *TripPlan {
	out := Clone(p)
	if out == nil {
		return nil
	}
	for di := range out.Itinerary {
		for ei := range out.Itinerary[di].Events {
			if out.Itinerary[di].Events[ei].ID == eventID {
				out.Itinerary[di].Events[ei].Status = status
			}
		}
	}
	return out
}

// RejectedIDs returns the ids of rejected events in itinerary order.
func RejectedIDs(p *TripPlan) []string {
	if p == nil {
		return nil
	}
	return lo.FlatMap(p.Itinerary, func(d DayPlan, _ int) []string {
		rejected := lo.Filter(d.Events, func(e ItineraryEvent, _ int) bool {
			return e.Status == StatusRejected
		})
		return lo.Map(rejected, func(e ItineraryEvent, _ int) string { return e.ID })
	})
}

// FindEvent returns a copy of the event with the given id and the day that
// holds it.
func FindEvent(p *TripPlan, eventID string) (ItineraryEvent, DayPlan, bool) {
	if p == nil {
		return ItineraryEvent{}, DayPlan{}, false
	}
	for _, d := range p.Itinerary {
		for _, e := range d.Events {
			if e.ID == eventID {
				return e, d, true
			}
		}
	}
	return ItineraryEvent{}, DayPlan{}, false
}

func CountEvents(p *TripPlan) int {
	if p == nil {
		return 0
	}
	return lo.SumBy(p.Itinerary, func(d DayPlan) int { return len(d.Events) })
}

// DatedEvent pairs an event with the date of the day it belongs to.
type DatedEvent struct {
	Date  string
	Event ItineraryEvent
}

// ActiveEvents returns every non-rejected event with its day's date.
func ActiveEvents(p *TripPlan) []DatedEvent {
	if p == nil {
		return nil
	}
	var out []DatedEvent
	for _, d := range p.Itinerary {
		for _, e := range d.Events {
			if e.Status == StatusRejected {
				continue
			}
			out = append(out, DatedEvent{Date: d.Date, Event: e})
		}
	}
	return out
}

// Title guesses a display title for the plan from its first location.
func Title(p *TripPlan) string {
	if p == nil || len(p.Itinerary) == 0 || len(p.Itinerary[0].Events) == 0 {
		return "Your trip"
	}
	return p.Itinerary[0].Events[0].LocationName
}
