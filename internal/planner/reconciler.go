package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/christopherklint97/travelpal/internal/ai"
	"github.com/christopherklint97/travelpal/internal/sanitize"
	"github.com/christopherklint97/travelpal/internal/textutil"
	"github.com/christopherklint97/travelpal/internal/trip"
)

const (
	ReplyUpdated  = "I've updated your plan."
	ReplyRejected = "The update could not be applied; your previous plan is kept."
	ReplyFailed   = "I'm sorry, I had trouble processing that request."
	ReplyBusy     = "I'm still working on your previous message."
	ReplyNoText   = "Done."
)

// TurnState is a step of one chat turn.
type TurnState int

const (
	StateIdle TurnState = iota
	StateAwaitingModelResponse
	StateToolCallReceived
	StateSanitizing
	StateApplied
	StateRejected
	StateTextOnly
	StateFailed
)

var turnStateNames = [...]string{
	"idle", "awaiting_model_response", "tool_call_received", "sanitizing",
	"applied", "rejected", "text_only", "failed",
}

func (s TurnState) String() string {
	if s < 0 || int(s) >= len(turnStateNames) {
		return fmt.Sprintf("TurnState(%d)", int(s))
	}
	return turnStateNames[s]
}

// TurnResult is the outcome of one chat turn. Plan is nil when the plan
// did not change.
type TurnResult struct {
	Reply string
	Plan  *trip.TripPlan
	State TurnState
	Cause error
}

// Reconciler applies the model's plan updates to the client's plan. It
// never replaces a known-good plan with a bad one.
type Reconciler struct {
	session   *Session
	sanitizer *sanitize.Sanitizer
	logger    *slog.Logger
}

// Session returns the session the reconciler works on.
func (r *Reconciler) Session() *Session {
	return r.session
}

// Send runs one chat turn. Failures are reported through the result, never
// as an error.
func (r *Reconciler) Send(ctx context.Context, message string, current *trip.TripPlan) TurnResult {
	message = strings.TrimSpace(message)
	if message == "" {
		return TurnResult{Reply: "Please type a message.", State: StateFailed, Cause: ErrEmptyMessage}
	}
	if err := r.session.acquire(); err != nil {
		return TurnResult{Reply: ReplyBusy, State: StateFailed, Cause: err}
	}
	defer r.session.release()

	res := r.turn(ctx, message, current)
	r.session.record(trip.RoleModel, res.Reply)
	chatTurnsTotal.WithLabelValues(res.State.String()).Inc()

	r.logger.Debug("chat turn finished",
		"session", r.session.ID,
		"state", res.State,
		"cause", res.Cause,
		"reply", textutil.Truncate(res.Reply, 200),
	)
	return res
}

func (r *Reconciler) turn(ctx context.Context, message string, current *trip.TripPlan) TurnResult {
	state := StateAwaitingModelResponse
	r.session.record(trip.RoleUser, message)

	chat, err := r.session.Ensure(ctx, current)
	if err != nil {
		return r.failed(state, err)
	}

	resp, err := chat.Send(ctx, message)
	if err != nil {
		return r.failed(state, err)
	}

	call, ok := resp.Invocation(ai.UpdateItineraryTool)
	if !ok {
		r.answerCalls(ctx, chat, resp, nil)
		reply := strings.TrimSpace(resp.Text)
		if reply == "" {
			reply = ReplyNoText
		}
		return TurnResult{Reply: reply, State: StateTextOnly}
	}

	state = StateToolCallReceived
	r.logger.Debug("update_itinerary received", "session", r.session.ID, "state", state, "id", call.ID, "args", len(call.Args), "raw", len(call.Raw))

	state = StateSanitizing
	plan, cause := r.sanitizeArgs(call)
	ack := r.answerCalls(ctx, chat, resp, cause)

	if cause != nil {
		r.logger.Warn("rejected plan update", "session", r.session.ID, "from", state, "error", cause)
		return TurnResult{Reply: ReplyRejected, State: StateRejected, Cause: cause}
	}

	reply := ReplyUpdated
	switch {
	case ack != nil && strings.TrimSpace(ack.Text) != "":
		reply = strings.TrimSpace(ack.Text)
	case strings.TrimSpace(resp.Text) != "":
		reply = strings.TrimSpace(resp.Text)
	}
	return TurnResult{Reply: reply, Plan: plan, State: StateApplied}
}

// Regenerate asks the model to replace every rejected event. The current
// plan is never modified; a nil plan comes back with any error.
func (r *Reconciler) Regenerate(ctx context.Context, current *trip.TripPlan) (*trip.TripPlan, error) {
	plan, err := r.regenerate(ctx, current)
	result := "ok"
	switch {
	case errors.Is(err, ErrNothingToRegenerate):
		result = "nothing"
	case errors.Is(err, ErrNoUpdate):
		result = "no_update"
	case errors.Is(err, ErrEmptyItinerary):
		result = "empty"
	case err != nil:
		result = "error"
	}
	regenerationsTotal.WithLabelValues(result).Inc()
	return plan, err
}

func (r *Reconciler) regenerate(ctx context.Context, current *trip.TripPlan) (*trip.TripPlan, error) {
	ids := trip.RejectedIDs(current)
	if len(ids) == 0 {
		return nil, ErrNothingToRegenerate
	}
	if err := r.session.acquire(); err != nil {
		return nil, err
	}
	defer r.session.release()

	r.logger.Info("regenerating rejected events", "session", r.session.ID, "ids", ids)

	chat, err := r.session.Ensure(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("regenerating events: %w", err)
	}
	resp, err := chat.Send(ctx, ai.RegeneratePrompt(ids))
	if err != nil {
		return nil, fmt.Errorf("regenerating events: %w", err)
	}

	call, ok := resp.Invocation(ai.UpdateItineraryTool)
	if !ok {
		r.answerCalls(ctx, chat, resp, nil)
		r.logger.Warn("regeneration answered without a plan update",
			"session", r.session.ID,
			"text", textutil.Truncate(resp.Text, 200),
		)
		return nil, ErrNoUpdate
	}

	plan, cause := r.sanitizeArgs(call)
	r.answerCalls(ctx, chat, resp, cause)
	if cause != nil {
		return nil, fmt.Errorf("applying regenerated plan: %w", cause)
	}
	return plan, nil
}

// sanitizeArgs runs the call's arguments through the sanitizer, falling
// back to the raw text when the provider could not decode it.
func (r *Reconciler) sanitizeArgs(call ai.ToolCall) (*trip.TripPlan, error) {
	var (
		plan *trip.TripPlan
		err  error
	)
	switch {
	case call.Args != nil:
		plan, err = r.sanitizer.SanitizeValue(call.Args)
	case strings.TrimSpace(call.Raw) != "":
		plan, err = r.sanitizer.Sanitize(call.Raw)
	default:
		return nil, fmt.Errorf("tool call without arguments: %w", sanitize.ErrUnparseable)
	}
	if err != nil {
		return nil, err
	}
	if plan.IsEmpty() {
		return nil, ErrEmptyItinerary
	}
	return plan, nil
}

// answerCalls acknowledges every call of resp in a single reply. The first
// update_itinerary call is answered with the outcome of applying it; any
// other call is refused. A failed acknowledgement resets the session since
// the chat now holds unanswered calls. It returns nil when nothing was
// sent or the acknowledgement failed.
func (r *Reconciler) answerCalls(ctx context.Context, chat ai.Chat, resp *ai.Response, cause error) *ai.Response {
	if resp == nil || len(resp.Calls) == 0 {
		return nil
	}
	results := make([]ai.ToolResult, 0, len(resp.Calls))
	applied := false
	for _, c := range resp.Calls {
		var result map[string]any
		switch {
		case c.Name != ai.UpdateItineraryTool:
			r.logger.Warn("model called an unknown tool", "session", r.session.ID, "tool", c.Name)
			result = map[string]any{"error": "unknown tool " + c.Name}
		case !applied:
			applied = true
			result = toolResult(cause)
		default:
			result = map[string]any{"error": "only the first itinerary update of a turn is applied"}
		}
		results = append(results, ai.ToolResult{Call: c, Result: result})
	}

	ack, err := chat.SendToolResults(ctx, results)
	if err != nil {
		r.logger.Warn("acknowledging tool calls failed", "session", r.session.ID, "calls", len(results), "error", err)
		r.session.Reset()
		return nil
	}
	return ack
}

func (r *Reconciler) failed(from TurnState, err error) TurnResult {
	r.logger.Error("chat turn failed", "session", r.session.ID, "from", from, "error", err)
	return TurnResult{Reply: ReplyFailed, State: StateFailed, Cause: err}
}

func toolResult(cause error) map[string]any {
	if cause != nil {
		return map[string]any{"error": "The update was rejected by the client: " + cause.Error()}
	}
	return map[string]any{"result": "Itinerary updated successfully on client."}
}
