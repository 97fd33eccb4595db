package sanitize

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/christopherklint97/travelpal/internal/trip"
)

const (
	defaultEventTime = "09:00"
	notAvailable     = "N/A"
)

// wrapperKeys are envelopes some models put around the plan object.
var wrapperKeys = []string{"plan", "tripPlan", "trip_plan", "trip"}

func (s *Sanitizer) normalize(root gjson.Result) *trip.TripPlan {
	if !root.Get("itinerary").Exists() {
		for _, k := range wrapperKeys {
			if inner := root.Get(k); inner.IsObject() {
				root = inner
				break
			}
		}
	}

	plan := &trip.TripPlan{
		Summary:   textOf(root.Get("summary")),
		Tips:      s.tips(root.Get("tips")),
		Stats:     s.stats(root.Get("stats")),
		Itinerary: []trip.DayPlan{},
	}

	days := root.Get("itinerary")
	if !days.IsArray() {
		return plan
	}

	seen := make(map[string]bool)
	for i, d := range days.Array() {
		if !d.IsObject() {
			continue
		}
		plan.Itinerary = append(plan.Itinerary, s.day(d, i, plan.Stats.Currency, seen))
	}
	return plan
}

func (s *Sanitizer) tips(r gjson.Result) string {
	switch {
	case r.IsArray():
		items := lo.FilterMap(r.Array(), func(item gjson.Result, _ int) (string, bool) {
			t := strings.TrimSpace(textOf(item))
			return t, t != ""
		})
		if len(items) == 0 {
			return s.opts.TipsPlaceholder
		}
		return strings.Join(items, ". ")
	case !r.Exists() || r.Type == gjson.Null:
		return s.opts.TipsPlaceholder
	default:
		return textOf(r)
	}
}

func (s *Sanitizer) stats(r gjson.Result) trip.TripStats {
	st := trip.TripStats{
		Currency:       s.opts.DefaultCurrency,
		WeatherSummary: s.opts.WeatherPlaceholder,
		DurationDays:   1,
	}
	if v := r.Get("totalCost"); v.Type == gjson.Number && v.Float() >= 0 {
		st.TotalCost = v.Float()
	}
	if v, ok := nonBlank(r.Get("currency")); ok {
		st.Currency = v
	}
	if v := r.Get("totalEvents"); v.Type == gjson.Number && v.Int() >= 0 {
		st.TotalEvents = int(v.Int())
	}
	if v := r.Get("weatherSummary"); v.Type == gjson.String {
		st.WeatherSummary = v.Str
	}
	if v := r.Get("durationDays"); v.Type == gjson.Number && v.Int() >= 1 {
		st.DurationDays = int(v.Int())
	}
	return st
}

func (s *Sanitizer) day(r gjson.Result, index int, currency string, seen map[string]bool) trip.DayPlan {
	day := trip.DayPlan{
		Day:    index + 1,
		Date:   stringOf(r.Get("date")),
		Theme:  stringOf(r.Get("theme")),
		Events: []trip.ItineraryEvent{},
	}
	if v := r.Get("day"); v.Type == gjson.Number && v.Int() >= 1 {
		day.Day = int(v.Int())
	}

	events := r.Get("events")
	if !events.IsArray() {
		return day
	}
	for _, e := range events.Array() {
		if !e.IsObject() {
			continue
		}
		day.Events = append(day.Events, s.event(e, currency, seen))
	}
	return day
}

func (s *Sanitizer) event(r gjson.Result, currency string, seen map[string]bool) trip.ItineraryEvent {
	ev := trip.ItineraryEvent{
		EndTime:     stringOf(r.Get("endTime")),
		Address:     stringOf(r.Get("address")),
		PhoneNumber: stringOf(r.Get("phoneNumber")),
		Website:     stringOf(r.Get("website")),
		Description: stringOf(r.Get("description")),
		Type:        trip.TypeActivity,
		Status:      trip.StatusAccepted,
	}

	id, ok := nonBlank(r.Get("id"))
	if !ok || seen[id] {
		id = uuid.NewString()
	}
	seen[id] = true
	ev.ID = id

	ev.Time = stringOr(r.Get("time"), defaultEventTime)
	ev.Activity = strings.TrimSpace(textOf(r.Get("activity")))
	if ev.Activity == "" {
		ev.Activity = s.opts.ActivityPlaceholder
	}
	ev.LocationName = stringOr(r.Get("locationName"), s.opts.LocationPlaceholder)
	ev.Currency = stringOr(r.Get("currency"), currency)
	ev.TransportMethod = stringOr(r.Get("transportMethod"), notAvailable)
	ev.TransportDuration = stringOr(r.Get("transportDuration"), notAvailable)

	if v := r.Get("costEstimate"); v.Type == gjson.Number && v.Float() >= 0 {
		ev.CostEstimate = v.Float()
	}

	if v, ok := nonBlank(r.Get("type")); ok {
		if t := trip.EventType(strings.ToLower(v)); lo.Contains(trip.EventTypes, t) {
			ev.Type = t
		}
	}
	if v, ok := nonBlank(r.Get("status")); ok {
		if st := trip.EventStatus(strings.ToLower(v)); lo.Contains(trip.EventStatuses, st) {
			ev.Status = st
		}
	}

	if v, ok := nonBlank(r.Get("bookingLink")); ok {
		ev.BookingLink = v
	} else {
		ev.BookingLink = s.bookingLink(ev.LocationName)
	}
	return ev
}

func (s *Sanitizer) bookingLink(location string) string {
	tpl := s.opts.BookingURLTemplate
	if tpl == "" || location == s.opts.LocationPlaceholder {
		return ""
	}
	q := url.QueryEscape(location)
	if strings.Contains(tpl, "{query}") {
		return strings.ReplaceAll(tpl, "{query}", q)
	}
	return tpl + q
}

// textOf returns strings as-is and any other present value in its JSON form.
func textOf(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Null:
		return ""
	default:
		return r.Raw
	}
}

func stringOf(r gjson.Result) string {
	if r.Type == gjson.String {
		return r.Str
	}
	return ""
}

func nonBlank(r gjson.Result) (string, bool) {
	if r.Type != gjson.String {
		return "", false
	}
	v := strings.TrimSpace(r.Str)
	return v, v != ""
}

func stringOr(r gjson.Result, fallback string) string {
	if v, ok := nonBlank(r); ok {
		return v
	}
	return fallback
}
