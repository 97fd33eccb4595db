package planner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/christopherklint97/travelpal/internal/ai"
	"github.com/christopherklint97/travelpal/internal/sanitize"
	"github.com/christopherklint97/travelpal/internal/trip"
)

const defaultMaxMessages = 50

type Options struct {
	Prompt ai.PromptOptions
	// MaxMessages caps the visible chat transcript per session.
	MaxMessages int
}

// Planner generates plans and opens the sessions used to refine them.
type Planner struct {
	provider  ai.Provider
	sanitizer *sanitize.Sanitizer
	opts      Options
	logger    *slog.Logger
}

func New(provider ai.Provider, sanitizer *sanitize.Sanitizer, opts Options, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if sanitizer == nil {
		sanitizer = sanitize.New(sanitize.DefaultOptions(), logger)
	}
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = defaultMaxMessages
	}
	return &Planner{provider: provider, sanitizer: sanitizer, opts: opts, logger: logger}
}

// Generate builds a plan from preferences and opens a session seeded with
// it. Nothing is returned unless the plan has at least one day.
func (p *Planner) Generate(ctx context.Context, prefs trip.UserPreferences) (*trip.TripPlan, *Session, error) {
	req, err := ai.BuildGenerationRequest(prefs, p.opts.Prompt)
	if err != nil {
		generationsTotal.WithLabelValues("invalid").Inc()
		return nil, nil, err
	}

	p.logger.Info("generating trip",
		"destination", prefs.Destination,
		"days", prefs.Days(),
		"search", req.Search,
	)
	start := time.Now()

	raw, err := p.provider.Generate(ctx, req)
	if err != nil {
		generationsTotal.WithLabelValues("provider_error").Inc()
		return nil, nil, fmt.Errorf("generating trip: %w", err)
	}

	plan, strategy, err := p.sanitizer.SanitizeWithStrategy(raw)
	if err != nil {
		generationsTotal.WithLabelValues("parse_error").Inc()
		p.logger.Error("failed to parse generated trip", "error", err, "raw_len", len(raw))
		return nil, nil, fmt.Errorf("parsing generated trip: %w", err)
	}
	sanitizeStrategyTotal.WithLabelValues(strategy).Inc()

	if plan.IsEmpty() {
		generationsTotal.WithLabelValues("empty").Inc()
		return nil, nil, ErrEmptyItinerary
	}

	session := p.NewSession(req.Prompt)
	session.mu.Lock()
	if _, err := session.ensureLocked(ctx, plan, false); err != nil {
		// The next turn re-creates the chat from the plan.
		p.logger.Warn("could not start chat session", "error", err)
	}
	session.mu.Unlock()

	generationsTotal.WithLabelValues("ok").Inc()
	p.logger.Info("trip generated",
		"elapsed", time.Since(start),
		"strategy", strategy,
		"days", len(plan.Itinerary),
		"events", trip.CountEvents(plan),
	)
	return plan, session, nil
}

// NewSession opens an empty session, e.g. for a plan loaded from storage.
// Its chat is created from the plan on the first turn.
func (p *Planner) NewSession(prompt string) *Session {
	return newSession(p.provider, prompt, p.opts.MaxMessages, p.logger)
}

// Reconciler returns the reconciler for turns on the given session.
func (p *Planner) Reconciler(s *Session) *Reconciler {
	return &Reconciler{session: s, sanitizer: p.sanitizer, logger: p.logger}
}

// IsRetryable reports whether err came from the provider or transport
// rather than from the input or the model's content.
func IsRetryable(err error) bool {
	var perr *ai.ProviderError
	return errors.As(err, &perr) || errors.Is(err, ai.ErrEmptyResponse)
}
