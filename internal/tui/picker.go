package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/christopherklint97/travelpal/internal/store"
	"github.com/christopherklint97/travelpal/internal/trip"
)

const pickerVisible = 10

type tripPickerModel struct {
	trips    []store.SavedTrip
	filtered []int // indices into trips
	cursor   int
	filter   textinput.Model
	done     bool
	canceled bool
}

// PickerResult holds the trip the user picked from history.
type PickerResult struct {
	Trip     *store.SavedTrip
	Canceled bool
}

// PickerApp wraps tripPickerModel for standalone use with tea.NewProgram.
type PickerApp struct {
	picker tripPickerModel
	result *PickerResult
}

func NewPickerApp(trips []store.SavedTrip) *PickerApp {
	return &PickerApp{picker: newTripPicker(trips)}
}

func (a *PickerApp) Init() tea.Cmd {
	return textinput.Blink
}

func (a *PickerApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	a.picker, cmd = a.picker.Update(msg)

	if a.picker.done || a.picker.canceled {
		a.result = a.picker.Result()
		return a, tea.Quit
	}
	return a, cmd
}

func (a *PickerApp) View() string {
	return a.picker.View()
}

func (a *PickerApp) GetResult() *PickerResult {
	return a.result
}

func newTripPicker(trips []store.SavedTrip) tripPickerModel {
	ti := textinput.New()
	ti.Placeholder = "Filter trips..."
	ti.Focus()

	filtered := make([]int, len(trips))
	for i := range trips {
		filtered[i] = i
	}

	return tripPickerModel{
		trips:    trips,
		filtered: filtered,
		filter:   ti,
	}
}

func (m tripPickerModel) Update(msg tea.Msg) (tripPickerModel, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "ctrl+c", "esc":
			m.canceled = true
			return m, nil
		case "enter":
			if len(m.filtered) > 0 {
				m.done = true
			}
			return m, nil
		case "up":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down":
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	prevFilter := m.filter.Value()
	m.filter, cmd = m.filter.Update(msg)

	if m.filter.Value() != prevFilter {
		m.applyFilter()
	}
	return m, cmd
}

func (m *tripPickerModel) applyFilter() {
	query := strings.ToLower(m.filter.Value())
	m.filtered = m.filtered[:0]
	for i, t := range m.trips {
		if query == "" ||
			strings.Contains(strings.ToLower(t.Preferences.Destination), query) ||
			(t.Plan != nil && strings.Contains(strings.ToLower(t.Plan.Summary), query)) {
			m.filtered = append(m.filtered, i)
		}
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
}

func (m tripPickerModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Recent trips"))
	b.WriteString("\n")
	b.WriteString(m.filter.View())
	b.WriteString("\n\n")

	if len(m.filtered) == 0 {
		b.WriteString(dimStyle.Render("  No trips match filter"))
		b.WriteString("\n")
	} else {
		start := 0
		if m.cursor >= pickerVisible {
			start = m.cursor - pickerVisible + 1
		}
		end := min(start+pickerVisible, len(m.filtered))

		for vi := start; vi < end; vi++ {
			t := m.trips[m.filtered[vi]]
			label := fmt.Sprintf("%-24s %s → %s", t.Preferences.Destination, t.Preferences.StartDate, t.Preferences.EndDate)
			meta := dimStyle.Render(fmt.Sprintf("  %d events, saved %s", trip.CountEvents(t.Plan), t.SavedAt.Local().Format("Jan 2 15:04")))

			if vi == m.cursor {
				b.WriteString(selectedStyle.Render("> " + label))
			} else {
				b.WriteString("  " + label)
			}
			b.WriteString(meta)
			b.WriteString("\n")
		}
	}

	b.WriteString(helpStyle.Render("\n↑/↓: move • Enter: open • Esc: cancel"))
	return b.String()
}

func (m tripPickerModel) Result() *PickerResult {
	if m.canceled || len(m.filtered) == 0 {
		return &PickerResult{Canceled: true}
	}
	t := m.trips[m.filtered[m.cursor]]
	return &PickerResult{Trip: &t}
}
