package sanitize

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/christopherklint97/travelpal/internal/textutil"
	"github.com/christopherklint97/travelpal/internal/trip"
)

// ErrUnparseable is wrapped by every *ParseError.
var ErrUnparseable = errors.New("model output is not a parseable trip plan")

// Attempt records why one strategy failed.
type Attempt struct {
	Strategy string
	Err      error
}

// ParseError is returned when every strategy in the chain failed.
type ParseError struct {
	Attempts []Attempt
	Preview  string
}

func (e *ParseError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Strategy+": "+a.Err.Error())
	}
	return fmt.Sprintf("%v (%s)", ErrUnparseable, strings.Join(parts, "; "))
}

func (e *ParseError) Unwrap() error { return ErrUnparseable }

// Options controls the placeholders and defaults used during normalization.
type Options struct {
	DefaultCurrency     string
	BookingURLTemplate  string // "{query}" is replaced with the escaped location name
	TipsPlaceholder     string
	WeatherPlaceholder  string
	LocationPlaceholder string
	ActivityPlaceholder string
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		DefaultCurrency:     "USD",
		BookingURLTemplate:  "https://www.google.com/search?q={query}",
		TipsPlaceholder:     "Check local travel advisories before you go.",
		WeatherPlaceholder:  "Weather information unavailable",
		LocationPlaceholder: "Location to be confirmed",
		ActivityPlaceholder: "Free time",
	}
}

type Sanitizer struct {
	opts   Options
	chain  []Strategy
	logger *slog.Logger
}

// New creates a Sanitizer. Empty option fields fall back to DefaultOptions,
// except BookingURLTemplate which disables link synthesis when blank.
func New(opts Options, logger *slog.Logger) *Sanitizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	def := DefaultOptions()
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = def.DefaultCurrency
	}
	if opts.TipsPlaceholder == "" {
		opts.TipsPlaceholder = def.TipsPlaceholder
	}
	if opts.WeatherPlaceholder == "" {
		opts.WeatherPlaceholder = def.WeatherPlaceholder
	}
	if opts.LocationPlaceholder == "" {
		opts.LocationPlaceholder = def.LocationPlaceholder
	}
	if opts.ActivityPlaceholder == "" {
		opts.ActivityPlaceholder = def.ActivityPlaceholder
	}
	return &Sanitizer{opts: opts, chain: Chain, logger: logger}
}

// Sanitize repairs and normalizes raw model output into a TripPlan.
func (s *Sanitizer) Sanitize(text string) (*trip.TripPlan, error) {
	plan, _, err := s.SanitizeWithStrategy(text)
	return plan, err
}

// SanitizeWithStrategy is Sanitize that also reports which strategy
// produced the candidate.
func (s *Sanitizer) SanitizeWithStrategy(text string) (*trip.TripPlan, string, error) {
	var attempts []Attempt
	for _, st := range s.chain {
		candidate, err := st.Apply(text)
		if err != nil {
			attempts = append(attempts, Attempt{Strategy: st.Name, Err: err})
			continue
		}
		s.logger.Debug("sanitized model output", "strategy", st.Name, "length", len(text))
		return s.normalize(gjson.Parse(candidate)), st.Name, nil
	}

	perr := &ParseError{Attempts: attempts, Preview: textutil.Truncate(text, 200)}
	s.logger.Debug("all sanitize strategies failed", "length", len(text), "preview", perr.Preview)
	return nil, "", perr
}

// SanitizeValue normalizes an already-decoded value such as tool-call
// arguments.
func (s *Sanitizer) SanitizeValue(v any) (*trip.TripPlan, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling value: %w", err)
	}
	return s.Sanitize(string(data))
}
