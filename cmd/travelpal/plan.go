package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/tj/go-naturaldate"

	"github.com/christopherklint97/travelpal/internal/config"
	"github.com/christopherklint97/travelpal/internal/export"
	"github.com/christopherklint97/travelpal/internal/notify"
	"github.com/christopherklint97/travelpal/internal/planner"
	"github.com/christopherklint97/travelpal/internal/store"
	"github.com/christopherklint97/travelpal/internal/trip"
	"github.com/christopherklint97/travelpal/internal/tui"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan a new trip",
	Example: `  travelpal plan -d "Da Nang, Vietnam" --from 2024-11-24 --to 2024-11-27 --style foodie,relaxing
  travelpal plan -d Kyoto --from "next friday" --to "next sunday" --budget premium --adults 2 --children 1`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

var openCmd = &cobra.Command{
	Use:   "open [trip-id]",
	Short: "Reopen a trip from history",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOpen,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current plan",
	Args:  cobra.NoArgs,
	RunE:  runShow,
}

var rejectCmd = &cobra.Command{
	Use:   "reject <event-id>",
	Short: "Reject an event of the current plan",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runSetStatus(args[0], trip.Reject, "Rejected") },
}

var restoreCmd = &cobra.Command{
	Use:   "restore <event-id>",
	Short: "Restore a rejected event of the current plan",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runSetStatus(args[0], trip.Restore, "Restored") },
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Replace the rejected events of the current plan",
	Args:  cobra.NoArgs,
	RunE:  runRegenerate,
}

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send one chat message about the current plan",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runChat,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent trips",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget all past trips and the current plan",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

func init() {
	definePlanFlags(planCmd)
	historyCmd.AddCommand(historyClearCmd)

	rootCmd.AddCommand(planCmd, openCmd, showCmd, rejectCmd, restoreCmd, regenerateCmd, chatCmd, historyCmd)
}

func definePlanFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("destination", "d", "", "where to go")
	f.String("from", "", "first day (YYYY-MM-DD or e.g. \"next friday\")")
	f.String("to", "", "last day (YYYY-MM-DD or e.g. \"in 5 days\")")
	f.StringSlice("style", nil, "travel styles: "+strings.Join(lo.Map(trip.TravelStyles, func(s trip.TravelStyle, _ int) string { return string(s) }), ", "))
	f.Int("adults", 1, "number of adults")
	f.Int("children", 0, "number of children")
	f.String("budget", "", "budget tier: economy, moderate, premium or luxury")
	f.Float64("amount", 0, "exact total budget; overrides --budget")
	f.String("currency", "", "currency of --amount: "+strings.Join(trip.Currencies, ", "))
	f.String("note", "", "anything else the planner should know")
	f.Bool("no-tui", false, "print the plan instead of opening the planner")
}

func prefsFromFlags(cmd *cobra.Command, now time.Time) (trip.UserPreferences, error) {
	f := cmd.Flags()
	dest, _ := f.GetString("destination")
	from, _ := f.GetString("from")
	to, _ := f.GetString("to")
	styles, _ := f.GetStringSlice("style")
	adults, _ := f.GetInt("adults")
	children, _ := f.GetInt("children")
	budget, _ := f.GetString("budget")
	amount, _ := f.GetFloat64("amount")
	currency, _ := f.GetString("currency")
	note, _ := f.GetString("note")

	prefs := trip.UserPreferences{
		Destination: dest,
		Styles:      lo.Map(styles, func(s string, _ int) trip.TravelStyle { return trip.TravelStyle(strings.ToLower(s)) }),
		Prompt:      note,
		PartySize:   trip.PartySize{Adults: adults, Children: children},
		ExactBudget: amount,
		Currency:    strings.ToUpper(currency),
	}

	var err error
	if prefs.StartDate, err = parseDate(from, now); err != nil {
		return prefs, fmt.Errorf("--from: %w", err)
	}
	if prefs.EndDate, err = parseDate(to, now); err != nil {
		return prefs, fmt.Errorf("--to: %w", err)
	}
	if budget != "" {
		tier, err := trip.ParseBudgetTier(budget)
		if err != nil {
			return prefs, err
		}
		prefs.Budget = &tier
	}
	return prefs, nil
}

// parseDate accepts YYYY-MM-DD or a natural expression such as
// "next friday", resolved forward from now.
func parseDate(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if _, err := time.Parse(trip.DateLayout, s); err == nil {
		return s, nil
	}
	t, err := naturaldate.Parse(s, now, naturaldate.WithDirection(naturaldate.Future))
	if err != nil {
		return "", fmt.Errorf("cannot read date %q: %w", s, err)
	}
	return t.Format(trip.DateLayout), nil
}

// tuiLogger sends logs to a file while the TUI owns the terminal.
func tuiLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, nil, err
	}
	if err := config.EnsureConfigDir(); err != nil {
		return nil, nil, fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "travelpal.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	level := cfg.LogLevel()
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { f.Close() }, nil
}

func saveTrip(db *store.DB, cfg *config.Config, t store.SavedTrip) error {
	if err := db.SaveCurrentPlan(t); err != nil {
		return err
	}
	return db.AddToHistory(t, cfg.Planner.HistoryLimit)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	prefs, err := prefsFromFlags(cmd, time.Now())
	if err != nil {
		return err
	}
	if err := prefs.Validate(); err != nil {
		return err
	}
	noTUI, _ := cmd.Flags().GetBool("no-tui")

	logger := newLogger(cfg)
	if !noTUI {
		var closeLog func()
		if logger, closeLog, err = tuiLogger(cfg); err != nil {
			return err
		}
		defer closeLog()
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	p, err := newPlanner(ctx, cfg, logger)
	if err != nil {
		return err
	}
	notifier := notify.New(cfg.Notifications.Enabled, time.Duration(cfg.Notifications.MinSeconds)*time.Second, logger)

	if noTUI {
		fmt.Fprintf(os.Stderr, "Planning %d days in %s...\n", prefs.Days(), prefs.Destination)
		start := time.Now()
		plan, session, err := p.Generate(ctx, prefs)
		if err != nil {
			return userError(err)
		}
		notifier.Done("Trip ready", "Your plan for "+prefs.Destination+" is ready.", time.Since(start))

		saved := store.SavedTrip{ID: session.ID, Preferences: prefs, Prompt: session.Prompt(), Plan: plan}
		if err := saveTrip(db, cfg, saved); err != nil {
			return err
		}
		printPlan(os.Stdout, plan)
		fmt.Printf("\nSaved as %s\n", session.ID)
		return nil
	}

	return runTUI(cfg, db, p, tui.Options{Prefs: &prefs, Notifier: notifier}, store.SavedTrip{Preferences: prefs})
}

func runOpen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var saved *store.SavedTrip
	if len(args) == 1 {
		if saved, err = db.FindInHistory(args[0]); err != nil {
			return err
		}
		if saved == nil {
			return fmt.Errorf("no trip %q in history", args[0])
		}
	} else {
		history, err := db.History()
		if err != nil {
			return err
		}
		if len(history) == 0 {
			return fmt.Errorf("no trips yet: run 'travelpal plan' first")
		}
		picker := tui.NewPickerApp(history)
		if _, err := tea.NewProgram(picker).Run(); err != nil {
			return fmt.Errorf("running TUI: %w", err)
		}
		res := picker.GetResult()
		if res == nil || res.Canceled {
			return nil
		}
		saved = res.Trip
	}
	if saved.Plan.IsEmpty() {
		return fmt.Errorf("trip %s has no plan", saved.ID)
	}

	logger, closeLog, err := tuiLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	p, err := newPlanner(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	opts := tui.Options{Plan: saved.Plan, Session: p.NewSession(saved.Prompt)}
	return runTUI(cfg, db, p, opts, *saved)
}

// runTUI runs the planner window and saves every plan the user keeps
// under base's id, or under the session id for a new trip.
func runTUI(cfg *config.Config, db *store.DB, p *planner.Planner, opts tui.Options, base store.SavedTrip) error {
	calOpts, err := calendarOptions(cfg)
	if err != nil {
		return err
	}
	opts.Planner = p
	opts.Calendar = calOpts

	var saveErr error
	opts.OnChange = func(plan *trip.TripPlan, session *planner.Session) {
		t := base
		t.Plan = plan
		t.SavedAt = time.Time{}
		if session != nil {
			if t.ID == "" {
				t.ID = session.ID
			}
			if t.Prompt == "" {
				t.Prompt = session.Prompt()
			}
		}
		if err := saveTrip(db, cfg, t); err != nil {
			saveErr = err
		}
	}

	app := tui.NewApp(opts)
	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	if saveErr != nil {
		return fmt.Errorf("saving plan: %w", saveErr)
	}

	if res := app.GetResult(); res != nil && !res.Plan.IsEmpty() {
		fmt.Printf("Plan saved. %d events, %d rejected.\n",
			trip.CountEvents(res.Plan), len(trip.RejectedIDs(res.Plan)))
	}
	return nil
}

func loadCurrent(db *store.DB) (*store.SavedTrip, error) {
	cur, err := db.LoadCurrentPlan()
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, fmt.Errorf("no current plan: run 'travelpal plan' or 'travelpal open' first")
	}
	return cur, nil
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	cur, err := loadCurrent(db)
	if err != nil {
		return err
	}
	printPlan(os.Stdout, cur.Plan)
	return nil
}

func runSetStatus(eventID string, fn func(*trip.TripPlan, string) *trip.TripPlan, verb string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	cur, err := loadCurrent(db)
	if err != nil {
		return err
	}
	ev, _, ok := trip.FindEvent(cur.Plan, eventID)
	if !ok {
		return fmt.Errorf("no event %q in the current plan", eventID)
	}
	cur.Plan = fn(cur.Plan, eventID)
	cur.SavedAt = time.Time{}
	if err := saveTrip(db, cfg, *cur); err != nil {
		return err
	}
	fmt.Printf("%s %s (%s)\n", verb, ev.Activity, eventID)
	return nil
}

func runRegenerate(cmd *cobra.Command, args []string) error {
	return withCurrentSession(cmd.Context(), func(ctx context.Context, r *planner.Reconciler, cur *store.SavedTrip) (*trip.TripPlan, error) {
		fmt.Fprintf(os.Stderr, "Replacing %d rejected events...\n", len(trip.RejectedIDs(cur.Plan)))
		plan, err := r.Regenerate(ctx, cur.Plan)
		if err != nil {
			return nil, userError(err)
		}
		printPlan(os.Stdout, plan)
		return plan, nil
	})
}

func runChat(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")
	return withCurrentSession(cmd.Context(), func(ctx context.Context, r *planner.Reconciler, cur *store.SavedTrip) (*trip.TripPlan, error) {
		res := r.Send(ctx, message, cur.Plan)
		fmt.Println(res.Reply)
		if errors.Is(res.Cause, planner.ErrEmptyMessage) {
			return nil, res.Cause
		}
		return res.Plan, nil
	})
}

// withCurrentSession opens a fresh session on the current plan and saves
// the plan fn returns, if any.
func withCurrentSession(ctx context.Context, fn func(context.Context, *planner.Reconciler, *store.SavedTrip) (*trip.TripPlan, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	cur, err := loadCurrent(db)
	if err != nil {
		return err
	}
	p, err := newPlanner(ctx, cfg, logger)
	if err != nil {
		return err
	}

	plan, err := fn(ctx, p.Reconciler(p.NewSession(cur.Prompt)), cur)
	if err != nil || plan == nil {
		return err
	}
	cur.Plan = plan
	cur.SavedAt = time.Time{}
	return saveTrip(db, cfg, *cur)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	history, err := db.History()
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("No trips yet.")
		return nil
	}

	fmt.Printf("%d recent trips:\n\n", len(history))
	for _, t := range history {
		fmt.Printf("  %s  %-24s  %s → %s  %2d events  %s\n",
			t.ID,
			t.Preferences.Destination,
			t.Preferences.StartDate,
			t.Preferences.EndDate,
			trip.CountEvents(t.Plan),
			formatAge(t.SavedAt),
		)
	}
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.ClearHistory(); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	if err := db.ClearCurrentPlan(); err != nil {
		return fmt.Errorf("clearing current plan: %w", err)
	}
	fmt.Println("History cleared.")
	return nil
}

// userError keeps the cause for logs but shows the user a plain message.
func userError(err error) error {
	var verr *trip.ValidationError
	switch {
	case errors.As(err, &verr):
		return err
	case errors.Is(err, planner.ErrNothingToRegenerate):
		return errors.New("no rejected events to regenerate")
	case errors.Is(err, planner.ErrEmptyItinerary):
		return errors.New("the planner returned an empty itinerary, please try again")
	case errors.Is(err, planner.ErrNoUpdate):
		return errors.New("the planner did not return an updated plan, please try again")
	case planner.IsRetryable(err):
		return fmt.Errorf("failed to generate trip, please try again (%v)", err)
	}
	return err
}

func printPlan(w io.Writer, plan *trip.TripPlan) {
	fmt.Fprintln(w, trip.Title(plan))
	fmt.Fprintln(w, plan.Summary)
	fmt.Fprintf(w, "%d days, about %s. Weather: %s\n",
		plan.Stats.DurationDays,
		export.FormatCost(plan.Stats.TotalCost, plan.Stats.Currency),
		plan.Stats.WeatherSummary,
	)

	for _, d := range plan.Itinerary {
		fmt.Fprintf(w, "\nDay %d  %s  %s\n", d.Day, d.Date, d.Theme)
		for _, e := range d.Events {
			mark := " "
			if e.Status == trip.StatusRejected {
				mark = "x"
			}
			fmt.Fprintf(w, "  [%s] %-5s  %-30s  %-28s  %-10s  %s\n",
				mark, e.Time, e.Activity, e.LocationName,
				export.FormatCost(e.CostEstimate, e.Currency), e.ID)
		}
	}
	if plan.Tips != "" {
		fmt.Fprintf(w, "\nTips: %s\n", plan.Tips)
	}
}
