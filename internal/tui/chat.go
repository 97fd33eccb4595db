package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/christopherklint97/travelpal/internal/trip"
)

// chatModel is the chat window: transcript on top, input below. Input is
// ignored while a turn is pending.
type chatModel struct {
	input    inputModel
	viewport viewport.Model
	messages []trip.ChatMessage
	pending  bool
}

func newChatModel() chatModel {
	return chatModel{
		input:    newInputModel(""),
		viewport: viewport.New(70, 14),
	}
}

func (m *chatModel) setMessages(msgs []trip.ChatMessage) {
	m.messages = msgs
	m.viewport.SetContent(renderTranscript(msgs, m.viewport.Width))
	m.viewport.GotoBottom()
}

func (m chatModel) Update(msg tea.Msg) (chatModel, tea.Cmd) {
	if ws, ok := msg.(tea.WindowSizeMsg); ok {
		m.viewport.Width = max(20, min(ws.Width-2, 100))
		m.viewport.Height = max(5, ws.Height-12)
		m.viewport.SetContent(renderTranscript(m.messages, m.viewport.Width))
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	if !m.pending {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m chatModel) View(spin string) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Chat with your planner"))
	sb.WriteString("\n")
	sb.WriteString(boxStyle.Render(m.viewport.View()))
	sb.WriteString("\n")
	if m.pending {
		sb.WriteString(spin + " Thinking...")
	} else {
		sb.WriteString(m.input.View())
	}
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render("Enter: send • Esc: back to plan • Ctrl+C: quit"))
	return sb.String()
}

func renderTranscript(msgs []trip.ChatMessage, width int) string {
	if len(msgs) == 0 {
		return dimStyle.Render("Ask me to change anything about your trip.")
	}
	var sb strings.Builder
	for _, msg := range msgs {
		if msg.IsToolOutput {
			continue
		}
		label := modelStyle.Render("Planner: ")
		if msg.Role == trip.RoleUser {
			label = userStyle.Render("You: ")
		}
		sb.WriteString(label)
		sb.WriteString(wrap(msg.Text, width-10))
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// wrap breaks text on spaces so no line exceeds width runes.
func wrap(text string, width int) string {
	if width < 10 {
		return text
	}
	var sb strings.Builder
	for li, line := range strings.Split(text, "\n") {
		if li > 0 {
			sb.WriteString("\n")
		}
		n := 0
		for wi, word := range strings.Fields(line) {
			w := len([]rune(word))
			if wi > 0 && n+1+w > width {
				sb.WriteString("\n")
				n = 0
			} else if wi > 0 {
				sb.WriteString(" ")
				n++
			}
			sb.WriteString(word)
			n += w
		}
	}
	return sb.String()
}
