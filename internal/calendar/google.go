package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/christopherklint97/travelpal/internal/textutil"
	"github.com/christopherklint97/travelpal/internal/trip"
)

const defaultGoogleBaseURL = "https://www.googleapis.com/calendar/v3"

// ErrNoToken is returned when no Google Calendar access token is set.
var ErrNoToken = errors.New("no Google Calendar access token configured")

// GoogleClient inserts plan events into the user's primary calendar.
type GoogleClient struct {
	token      string
	baseURL    string
	opts       Options
	maxRetries uint64
	httpClient *http.Client
	logger     *slog.Logger
	newBackOff func() backoff.BackOff
}

func NewGoogleClient(token, baseURL string, opts Options, logger *slog.Logger) *GoogleClient {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if baseURL == "" {
		baseURL = defaultGoogleBaseURL
	}
	return &GoogleClient{
		token:      token,
		baseURL:    strings.TrimRight(baseURL, "/"),
		opts:       opts,
		maxRetries: 3,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// PushResult counts inserted and failed events.
type PushResult struct {
	Succeeded int
	Failed    int
}

type googleTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type googleEvent struct {
	Summary     string     `json:"summary"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description,omitempty"`
	Start       googleTime `json:"start"`
	End         googleTime `json:"end"`
}

// PushPlan inserts every non-rejected event. Individual failures are
// counted, not returned; an error means nothing could be attempted. A plan
// with every event rejected gives ErrNoEvents.
func (c *GoogleClient) PushPlan(ctx context.Context, plan *trip.TripPlan) (PushResult, error) {
	var res PushResult
	if c.token == "" {
		return res, ErrNoToken
	}

	events := trip.ActiveEvents(plan)
	if len(events) == 0 {
		return res, ErrNoEvents
	}

	tz := c.opts.location().String()
	for _, de := range events {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		start, end, err := EventWindow(de.Event, de.Date, c.opts)
		if err != nil {
			c.logger.Warn("skipping event with unreadable time", "id", de.Event.ID, "error", err)
			res.Failed++
			continue
		}

		ev := googleEvent{
			Summary:     summaryPrefix + de.Event.Activity,
			Location:    location(de.Event),
			Description: eventNotes(de.Event),
			Start:       googleTime{DateTime: start.Format(time.RFC3339), TimeZone: tz},
			End:         googleTime{DateTime: end.Format(time.RFC3339), TimeZone: tz},
		}
		if err := c.insertEvent(ctx, ev); err != nil {
			c.logger.Error("failed to add event to calendar", "id", de.Event.ID, "error", err)
			res.Failed++
			continue
		}
		res.Succeeded++
	}

	c.logger.Info("pushed plan to google calendar", "succeeded", res.Succeeded, "failed", res.Failed)
	return res, nil
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("calendar API error (status %d): %s", e.status, e.body)
}

func (c *GoogleClient) insertEvent(ctx context.Context, ev googleEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	url := c.baseURL + "/calendars/primary/events"

	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Debug("calendar request transport error", "attempt", attempt, "error", err)
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			c.logger.Debug("calendar request retryable error", "attempt", attempt, "status", resp.StatusCode)
			return &statusError{status: resp.StatusCode, body: textutil.Truncate(string(body), 200)}
		default:
			return backoff.Permanent(&statusError{status: resp.StatusCode, body: textutil.Truncate(string(body), 200)})
		}
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	return backoff.Retry(op, b)
}
