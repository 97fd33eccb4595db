package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/christopherklint97/travelpal/internal/calendar"
	"github.com/christopherklint97/travelpal/internal/notify"
	"github.com/christopherklint97/travelpal/internal/planner"
	"github.com/christopherklint97/travelpal/internal/trip"
)

type viewState int

const (
	loadingView viewState = iota
	planView
	chatView
	errorView
)

const (
	generateTimeout = 3 * time.Minute
	turnTimeout     = 2 * time.Minute
)

type Options struct {
	Planner *planner.Planner
	// Prefs, when set, generates a new plan on start. Otherwise Plan and
	// Session are shown as they are.
	Prefs    *trip.UserPreferences
	Plan     *trip.TripPlan
	Session  *planner.Session
	Calendar calendar.Options
	Notifier *notify.Notifier
	// OnChange is called with every plan the user ends up holding.
	OnChange func(plan *trip.TripPlan, session *planner.Session)
}

type Result struct {
	Canceled bool
	Plan     *trip.TripPlan
	Session  *planner.Session
}

type generatedMsg struct {
	plan    *trip.TripPlan
	session *planner.Session
	err     error
	elapsed time.Duration
}

type turnMsg struct {
	res planner.TurnResult
}

type regenMsg struct {
	plan *trip.TripPlan
	err  error
}

type App struct {
	state   viewState
	opts    Options
	plan    planModel
	chat    chatModel
	spinner spinner.Model

	session    *planner.Session
	reconciler *planner.Reconciler
	busy       bool
	status     string
	errMsg     string
	result     *Result
}

func NewApp(opts Options) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot

	a := &App{
		opts:    opts,
		plan:    newPlanModel(opts.Plan),
		chat:    newChatModel(),
		spinner: s,
	}
	if opts.Prefs != nil {
		a.state = loadingView
	} else {
		a.state = planView
		a.attach(opts.Session)
	}
	return a
}

func (a *App) Init() tea.Cmd {
	if a.state == loadingView {
		return tea.Batch(a.spinner.Tick, a.generate(*a.opts.Prefs))
	}
	return a.spinner.Tick
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		var cmd tea.Cmd
		a.chat, cmd = a.chat.Update(msg)
		return a, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			a.result = &Result{Canceled: true, Plan: a.plan.plan, Session: a.session}
			return a, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	case generatedMsg:
		return a.handleGenerated(msg)
	case turnMsg:
		return a.handleTurn(msg)
	case regenMsg:
		return a.handleRegen(msg)
	}

	switch a.state {
	case planView:
		return a.updatePlan(msg)
	case chatView:
		return a.updateChat(msg)
	case errorView:
		if _, ok := msg.(tea.KeyMsg); ok {
			return a, tea.Quit
		}
	}
	return a, nil
}

func (a *App) View() string {
	switch a.state {
	case loadingView:
		dest := ""
		if a.opts.Prefs != nil {
			dest = " for " + a.opts.Prefs.Destination
		}
		return a.spinner.View() + " Planning your trip" + dest + "..."
	case errorView:
		return errorStyle.Render("Error: ") + a.errMsg + "\n\n" + helpStyle.Render("Press any key to exit")
	case chatView:
		return a.chat.View(a.spinner.View()) + a.statusLine()
	}

	help := "↑/↓: move • x: reject • r: restore • g: regenerate rejected • c: calendar link • Tab: chat • q: quit"
	return a.plan.View() + a.statusLine() + "\n" + helpStyle.Render(help)
}

func (a *App) GetResult() *Result {
	if a.result == nil {
		return &Result{Plan: a.plan.plan, Session: a.session}
	}
	return a.result
}

func (a *App) statusLine() string {
	switch {
	case a.busy && a.state == planView:
		return "\n" + a.spinner.View() + " Regenerating..."
	case a.errMsg != "":
		return "\n" + errorStyle.Render(a.errMsg)
	case a.status != "":
		return "\n" + successStyle.Render(a.status)
	}
	return ""
}

func (a *App) attach(s *planner.Session) {
	if s == nil {
		return
	}
	a.session = s
	a.reconciler = a.opts.Planner.Reconciler(s)
	a.chat.setMessages(s.Messages())
}

func (a *App) updatePlan(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return a, nil
	}
	a.status, a.errMsg = "", ""

	switch keyMsg.String() {
	case "q":
		a.result = &Result{Plan: a.plan.plan, Session: a.session}
		return a, tea.Quit
	case "up", "k":
		a.plan.up()
	case "down", "j":
		a.plan.down()
	case "x", "r":
		if a.pending() {
			a.errMsg = "Wait for the planner to finish before editing."
			return a, nil
		}
		if keyMsg.String() == "x" {
			a.setStatus(trip.Reject, "Rejected")
		} else {
			a.setStatus(trip.Restore, "Restored")
		}
	case "c":
		ev, ok := a.plan.selected()
		if !ok {
			return a, nil
		}
		link, err := calendar.GoogleLink(ev.Event, ev.Date, a.opts.Calendar)
		if err != nil {
			a.errMsg = err.Error()
			return a, nil
		}
		a.status = link
	case "g":
		if a.pending() || a.reconciler == nil {
			return a, nil
		}
		if len(trip.RejectedIDs(a.plan.plan)) == 0 {
			a.errMsg = userMessage(planner.ErrNothingToRegenerate)
			return a, nil
		}
		a.busy = true
		return a, tea.Batch(a.spinner.Tick, a.regenerate())
	case "tab", "enter":
		if a.reconciler == nil {
			a.errMsg = "Chat is not available for this plan."
			return a, nil
		}
		a.state = chatView
		return a, a.chat.input.Focus()
	}
	return a, nil
}

// pending reports whether a model turn is in flight. Its result replaces
// the plan, so local edits wait for it.
func (a *App) pending() bool {
	return a.busy || a.chat.pending || (a.session != nil && a.session.Busy())
}

func (a *App) setStatus(fn func(*trip.TripPlan, string) *trip.TripPlan, verb string) {
	ev, ok := a.plan.selected()
	if !ok {
		return
	}
	a.plan.setPlan(fn(a.plan.plan, ev.Event.ID))
	a.status = verb + " " + ev.Event.Activity
	a.changed()
}

func (a *App) updateChat(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			a.chat.input.Blur()
			a.state = planView
			return a, nil
		case "enter":
			text := strings.TrimSpace(a.chat.input.Value())
			if a.pending() || text == "" {
				return a, nil
			}
			a.chat.pending = true
			a.chat.input.Reset()
			a.chat.setMessages(append(a.session.Messages(), trip.ChatMessage{Role: trip.RoleUser, Text: text}))
			a.status, a.errMsg = "", ""
			return a, tea.Batch(a.spinner.Tick, a.send(text))
		}
	}

	var cmd tea.Cmd
	a.chat, cmd = a.chat.Update(msg)
	return a, cmd
}

func (a *App) handleGenerated(msg generatedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		a.state = errorView
		a.errMsg = userMessage(msg.err)
		return a, nil
	}
	if a.opts.Notifier != nil {
		a.opts.Notifier.Done("Trip ready", fmt.Sprintf("Your plan for %s is ready.", a.opts.Prefs.Destination), msg.elapsed)
	}
	a.plan = newPlanModel(msg.plan)
	a.attach(msg.session)
	a.state = planView
	a.changed()
	return a, nil
}

func (a *App) handleTurn(msg turnMsg) (tea.Model, tea.Cmd) {
	a.chat.pending = false
	a.chat.setMessages(a.session.Messages())
	if msg.res.Plan != nil {
		a.plan.setPlan(msg.res.Plan)
		a.status = "Plan updated"
		a.changed()
	}
	if msg.res.State == planner.StateRejected {
		a.errMsg = msg.res.Reply
	}
	return a, a.chat.input.Focus()
}

func (a *App) handleRegen(msg regenMsg) (tea.Model, tea.Cmd) {
	a.busy = false
	if msg.err != nil {
		a.errMsg = userMessage(msg.err)
		return a, nil
	}
	a.plan.setPlan(msg.plan)
	a.status = "Rejected events replaced"
	a.changed()
	return a, nil
}

func (a *App) changed() {
	if a.opts.OnChange != nil {
		a.opts.OnChange(a.plan.plan, a.session)
	}
}

func (a *App) generate(prefs trip.UserPreferences) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), generateTimeout)
		defer cancel()

		start := time.Now()
		plan, session, err := a.opts.Planner.Generate(ctx, prefs)
		return generatedMsg{plan: plan, session: session, err: err, elapsed: time.Since(start)}
	}
}

func (a *App) send(text string) tea.Cmd {
	current := trip.Clone(a.plan.plan)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
		defer cancel()
		return turnMsg{res: a.reconciler.Send(ctx, text, current)}
	}
}

func (a *App) regenerate() tea.Cmd {
	current := trip.Clone(a.plan.plan)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
		defer cancel()
		plan, err := a.reconciler.Regenerate(ctx, current)
		return regenMsg{plan: plan, err: err}
	}
}

// userMessage maps an error to the text shown to the user.
func userMessage(err error) string {
	var verr *trip.ValidationError
	switch {
	case errors.As(err, &verr):
		return "Please fill in all required fields: " + verr.Error()
	case errors.Is(err, planner.ErrNothingToRegenerate):
		return "No rejected events to regenerate."
	case errors.Is(err, planner.ErrBusy):
		return planner.ReplyBusy
	case errors.Is(err, planner.ErrEmptyItinerary):
		return "The planner returned an empty itinerary. Please try again."
	case errors.Is(err, planner.ErrNoUpdate):
		return "The planner did not return an updated plan. Please try again."
	case planner.IsRetryable(err):
		return "Failed to generate trip. Please try again."
	}
	return err.Error()
}
