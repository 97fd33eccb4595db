package tui

import (
	"fmt"
	"strings"

	"github.com/christopherklint97/travelpal/internal/export"
	"github.com/christopherklint97/travelpal/internal/trip"
)

// planModel renders the itinerary with a cursor over its events.
type planModel struct {
	plan   *trip.TripPlan
	cursor int
}

func newPlanModel(plan *trip.TripPlan) planModel {
	return planModel{plan: plan}
}

// events lists every event, rejected ones included, in itinerary order.
func (m planModel) events() []trip.DatedEvent {
	if m.plan == nil {
		return nil
	}
	var out []trip.DatedEvent
	for _, d := range m.plan.Itinerary {
		for _, e := range d.Events {
			out = append(out, trip.DatedEvent{Date: d.Date, Event: e})
		}
	}
	return out
}

func (m planModel) selected() (trip.DatedEvent, bool) {
	events := m.events()
	if m.cursor < 0 || m.cursor >= len(events) {
		return trip.DatedEvent{}, false
	}
	return events[m.cursor], true
}

func (m *planModel) up() {
	if m.cursor > 0 {
		m.cursor--
	}
}

func (m *planModel) down() {
	if m.cursor < len(m.events())-1 {
		m.cursor++
	}
}

// setPlan swaps the plan and keeps the cursor in range.
func (m *planModel) setPlan(p *trip.TripPlan) {
	m.plan = p
	if n := len(m.events()); m.cursor >= n {
		m.cursor = max(0, n-1)
	}
}

func (m planModel) View() string {
	if m.plan.IsEmpty() {
		return dimStyle.Render("No plan yet.")
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(trip.Title(m.plan)))
	sb.WriteString("\n")
	sb.WriteString(m.plan.Summary)
	sb.WriteString("\n")
	sb.WriteString(subtitleStyle.Render(fmt.Sprintf("%d days • about %s • %s",
		m.plan.Stats.DurationDays,
		export.FormatCost(m.plan.Stats.TotalCost, m.plan.Stats.Currency),
		m.plan.Stats.WeatherSummary,
	)))
	sb.WriteString("\n")

	i := 0
	for _, d := range m.plan.Itinerary {
		header := fmt.Sprintf("Day %d", d.Day)
		if d.Date != "" {
			header += " · " + d.Date
		}
		if d.Theme != "" {
			header += " · " + d.Theme
		}
		sb.WriteString(dayStyle.Render(header))
		sb.WriteString("\n")

		for _, e := range d.Events {
			sb.WriteString(m.eventLine(i, e))
			sb.WriteString("\n")
			i++
		}
		sb.WriteString("\n")
	}

	if m.plan.Tips != "" {
		sb.WriteString(warningStyle.Render("Tips: "))
		sb.WriteString(m.plan.Tips)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m planModel) eventLine(i int, e trip.ItineraryEvent) string {
	prefix := "  "
	if i == m.cursor {
		prefix = "> "
	}

	cost := ""
	if e.CostEstimate > 0 {
		cost = export.FormatCost(e.CostEstimate, e.Currency)
	}
	line := fmt.Sprintf("%s%-5s  %-32s  %s", prefix, e.Time, e.Activity, e.LocationName)

	switch {
	case e.Status == trip.StatusRejected:
		line = rejectedStyle.Render(line)
	case i == m.cursor:
		line = highlightStyle.Render(line)
	}
	if cost != "" {
		line += "  " + dimStyle.Render(cost)
	}
	return line
}
