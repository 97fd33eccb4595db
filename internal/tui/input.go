package tui

import (
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
)

type inputModel struct {
	textarea textarea.Model
	width    int
	height   int
}

func newInputModel(prefill string) inputModel {
	ta := textarea.New()
	ta.Placeholder = "Ask for changes, e.g. \"swap dinner on day 2 for street food\"..."
	ta.Focus()
	ta.CharLimit = 500
	ta.SetWidth(60)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	if prefill != "" {
		ta.SetValue(prefill)
	}

	return inputModel{textarea: ta}
}

func (m inputModel) Update(msg tea.Msg) (inputModel, tea.Cmd) {
	if ws, ok := msg.(tea.WindowSizeMsg); ok {
		m.width, m.height = ws.Width, ws.Height
		if ws.Width > 4 {
			m.textarea.SetWidth(min(ws.Width-4, 100))
		}
	}
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	return m.textarea.View()
}

func (m inputModel) Value() string {
	return m.textarea.Value()
}

func (m *inputModel) Reset() {
	m.textarea.Reset()
}

func (m *inputModel) Focus() tea.Cmd {
	return m.textarea.Focus()
}

func (m *inputModel) Blur() {
	m.textarea.Blur()
}
