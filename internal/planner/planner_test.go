package planner

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/christopherklint97/travelpal/internal/ai"
	"github.com/christopherklint97/travelpal/internal/sanitize"
	"github.com/christopherklint97/travelpal/internal/trip"
)

type fakeChat struct {
	responses   []*ai.Response
	errs        []error
	ackText     string
	ackErr      error
	sent        []string
	toolResults []map[string]any
	acks        int
}

func (c *fakeChat) Send(ctx context.Context, text string) (*ai.Response, error) {
	c.sent = append(c.sent, text)
	i := len(c.sent) - 1
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i >= len(c.responses) {
		return nil, ai.ErrEmptyResponse
	}
	return c.responses[i], nil
}

func (c *fakeChat) SendToolResults(ctx context.Context, results []ai.ToolResult) (*ai.Response, error) {
	c.acks++
	for _, r := range results {
		c.toolResults = append(c.toolResults, r.Result)
	}
	if c.ackErr != nil {
		return nil, c.ackErr
	}
	return &ai.Response{Text: c.ackText}, nil
}

type fakeProvider struct {
	text     string
	err      error
	chat     *fakeChat
	startErr error

	requests []ai.Request
	configs  []ai.ChatConfig
}

func (p *fakeProvider) Generate(ctx context.Context, req ai.Request) (string, error) {
	p.requests = append(p.requests, req)
	return p.text, p.err
}

func (p *fakeProvider) StartChat(ctx context.Context, cfg ai.ChatConfig) (ai.Chat, error) {
	p.configs = append(p.configs, cfg)
	if p.startErr != nil {
		return nil, p.startErr
	}
	return p.chat, nil
}

const planJSON = `{"summary":"Da Nang","tips":"Sunscreen.","stats":{"totalCost":100,"currency":"USD","totalEvents":2,"weatherSummary":"Sunny","durationDays":1},
"itinerary":[{"day":1,"date":"2023-11-24","theme":"Beach","events":[
{"id":"e1","time":"09:00","activity":"Swim","locationName":"My Khe Beach","type":"activity","status":"accepted"},
{"id":"e2","time":"12:00","activity":"Lunch","locationName":"Mi Quang 1A","type":"food","status":"accepted"}]}]}`

func prefs() trip.UserPreferences {
	return trip.UserPreferences{
		Destination: "Da Nang",
		StartDate:   "2023-11-24",
		EndDate:     "2023-11-24",
		PartySize:   trip.PartySize{Adults: 1},
	}
}

func newTestPlanner(p *fakeProvider) *Planner {
	return New(p, sanitize.New(sanitize.DefaultOptions(), nil), Options{}, nil)
}

func basePlan(t *testing.T) *trip.TripPlan {
	t.Helper()
	plan, err := sanitize.New(sanitize.DefaultOptions(), nil).Sanitize(planJSON)
	if err != nil {
		t.Fatalf("sanitize fixture: %v", err)
	}
	return plan
}

func updateCall(args map[string]any) *ai.Response {
	return &ai.Response{Calls: []ai.ToolCall{{ID: "call-1", Name: ai.UpdateItineraryTool, Args: args}}}
}

func planArgs(summary string) map[string]any {
	return map[string]any{
		"summary": summary,
		"itinerary": []any{map[string]any{
			"day":    1,
			"date":   "2023-11-24",
			"events": []any{map[string]any{"id": "n1", "activity": "Museum", "locationName": "Cham Museum"}},
		}},
	}
}

func TestGenerate(t *testing.T) {
	p := &fakeProvider{text: "```json\n" + planJSON + "\n```", chat: &fakeChat{}}
	plan, session, err := newTestPlanner(p).Generate(context.Background(), prefs())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if plan.Summary != "Da Nang" || trip.CountEvents(plan) != 2 {
		t.Errorf("unexpected plan: %+v", plan)
	}
	if session == nil || !session.Active() {
		t.Fatal("expected an active session")
	}
	if len(p.requests) != 1 || !strings.Contains(p.requests[0].Prompt, "Da Nang") {
		t.Errorf("unexpected requests: %+v", p.requests)
	}
	if len(p.configs) != 1 {
		t.Fatalf("chats started = %d, want 1", len(p.configs))
	}
	cfg := p.configs[0]
	if len(cfg.History) != 2 || !strings.Contains(cfg.History[1].Text, `"id":"e1"`) {
		t.Errorf("seed history = %+v", cfg.History)
	}
	if len(cfg.Tools) != 1 || cfg.Tools[0].Name != ai.UpdateItineraryTool {
		t.Errorf("tools = %+v", cfg.Tools)
	}
}

func TestGenerateValidationSkipsProvider(t *testing.T) {
	p := &fakeProvider{text: planJSON}
	bad := prefs()
	bad.Destination = ""

	_, _, err := newTestPlanner(p).Generate(context.Background(), bad)
	var verr *trip.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *trip.ValidationError, got %v", err)
	}
	if len(p.requests) != 0 {
		t.Error("provider called despite invalid preferences")
	}
}

func TestGenerateFailures(t *testing.T) {
	providerErr := &ai.ProviderError{Provider: "fake", Op: "generate", Err: errors.New("503")}

	tests := []struct {
		name      string
		provider  *fakeProvider
		wantIs    error
		retryable bool
	}{
		{"empty itinerary", &fakeProvider{text: `{"summary":"x","itinerary":[]}`}, ErrEmptyItinerary, false},
		{"unparseable", &fakeProvider{text: "not json at all"}, sanitize.ErrUnparseable, false},
		{"provider", &fakeProvider{err: providerErr}, providerErr, true},
		{"empty response", &fakeProvider{err: ai.ErrEmptyResponse}, ai.ErrEmptyResponse, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, session, err := newTestPlanner(tt.provider).Generate(context.Background(), prefs())
			if !errors.Is(err, tt.wantIs) {
				t.Fatalf("err = %v, want %v", err, tt.wantIs)
			}
			if plan != nil || session != nil {
				t.Error("nothing should be returned on failure")
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", IsRetryable(err), tt.retryable)
			}
			if len(tt.provider.configs) != 0 {
				t.Error("chat started for a failed generation")
			}
		})
	}
}

func TestGenerateSurvivesChatStartFailure(t *testing.T) {
	p := &fakeProvider{text: planJSON, startErr: errors.New("quota")}
	plan, session, err := newTestPlanner(p).Generate(context.Background(), prefs())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if plan == nil || session == nil {
		t.Fatal("expected plan and session")
	}
	if session.Active() {
		t.Error("session should have no chat yet")
	}
}

func openSession(t *testing.T, chat *fakeChat) (*fakeProvider, *Reconciler, *trip.TripPlan) {
	t.Helper()
	p := &fakeProvider{text: planJSON, chat: chat}
	pl := newTestPlanner(p)
	plan, session, err := pl.Generate(context.Background(), prefs())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return p, pl.Reconciler(session), plan
}

func TestSendTextOnly(t *testing.T) {
	chat := &fakeChat{responses: []*ai.Response{{Text: "Yes, it is warm in November."}}}
	_, rec, plan := openSession(t, chat)

	res := rec.Send(context.Background(), "Is it cold?", plan)
	if res.State != StateTextOnly || res.Plan != nil {
		t.Errorf("result = %+v", res)
	}
	if res.Reply != "Yes, it is warm in November." {
		t.Errorf("reply = %q", res.Reply)
	}
	if len(chat.toolResults) != 0 {
		t.Error("text reply should not be acknowledged as a tool call")
	}

	msgs := rec.Session().Messages()
	if len(msgs) != 2 || msgs[0].Role != trip.RoleUser || msgs[1].Role != trip.RoleModel {
		t.Errorf("transcript = %+v", msgs)
	}
}

func TestSendApplied(t *testing.T) {
	chat := &fakeChat{
		responses: []*ai.Response{updateCall(planArgs("Museums instead"))},
		ackText:   "Swapped the beach for a museum.",
	}
	_, rec, plan := openSession(t, chat)
	before := trip.Clone(plan)

	res := rec.Send(context.Background(), "No beach please", plan)
	t.Logf("result: %+v", res)

	if res.State != StateApplied {
		t.Fatalf("state = %v, want applied (cause %v)", res.State, res.Cause)
	}
	if res.Plan == nil || res.Plan.Summary != "Museums instead" {
		t.Errorf("plan = %+v", res.Plan)
	}
	if res.Reply != "Swapped the beach for a museum." {
		t.Errorf("reply = %q", res.Reply)
	}
	if len(chat.toolResults) != 1 || chat.toolResults[0]["result"] == nil {
		t.Errorf("tool results = %+v", chat.toolResults)
	}
	if !reflect.DeepEqual(plan, before) {
		t.Error("current plan was mutated")
	}
}

func TestSendAppliedDefaultReply(t *testing.T) {
	chat := &fakeChat{responses: []*ai.Response{updateCall(planArgs("x"))}}
	_, rec, plan := openSession(t, chat)

	res := rec.Send(context.Background(), "change it", plan)
	if res.State != StateApplied || res.Reply != ReplyUpdated {
		t.Errorf("result = %+v", res)
	}
}

func TestSendRejectsEmptyItinerary(t *testing.T) {
	chat := &fakeChat{responses: []*ai.Response{updateCall(map[string]any{"summary": "nothing left", "itinerary": []any{}})}}
	_, rec, plan := openSession(t, chat)

	res := rec.Send(context.Background(), "remove everything", plan)
	if res.State != StateRejected {
		t.Fatalf("state = %v, want rejected", res.State)
	}
	if res.Plan != nil {
		t.Error("rejected update must not return a plan")
	}
	if res.Reply != ReplyRejected || !errors.Is(res.Cause, ErrEmptyItinerary) {
		t.Errorf("result = %+v", res)
	}
	if len(chat.toolResults) != 1 || chat.toolResults[0]["error"] == nil {
		t.Errorf("tool results = %+v", chat.toolResults)
	}
}

func TestSendRejectsMissingArgs(t *testing.T) {
	chat := &fakeChat{responses: []*ai.Response{updateCall(nil)}}
	_, rec, plan := openSession(t, chat)

	res := rec.Send(context.Background(), "change", plan)
	if res.State != StateRejected || !errors.Is(res.Cause, sanitize.ErrUnparseable) {
		t.Errorf("result = %+v", res)
	}
}

func TestSendRepairsRawArguments(t *testing.T) {
	raw := "```json\n" + `{"summary":"new","itinerary":[{"day":1,"events":[{"activity":"B",}]}],"stats":{}}` + "\n```"
	chat := &fakeChat{responses: []*ai.Response{{Calls: []ai.ToolCall{{ID: "call-1", Name: ai.UpdateItineraryTool, Raw: raw}}}}}
	_, rec, plan := openSession(t, chat)

	res := rec.Send(context.Background(), "swap the beach", plan)
	if res.State != StateApplied {
		t.Fatalf("state = %v, want applied (cause %v)", res.State, res.Cause)
	}
	if res.Plan.Summary != "new" || trip.CountEvents(res.Plan) != 1 {
		t.Errorf("plan = %+v", res.Plan)
	}
	if res.Plan.Itinerary[0].Events[0].Activity != "B" {
		t.Errorf("event = %+v", res.Plan.Itinerary[0].Events[0])
	}
}

func TestSendRejectsUnrepairableRawArguments(t *testing.T) {
	chat := &fakeChat{responses: []*ai.Response{{Calls: []ai.ToolCall{{ID: "call-1", Name: ai.UpdateItineraryTool, Raw: "not a plan"}}}}}
	_, rec, plan := openSession(t, chat)

	res := rec.Send(context.Background(), "swap the beach", plan)
	if res.State != StateRejected || !errors.Is(res.Cause, sanitize.ErrUnparseable) {
		t.Errorf("result = %+v", res)
	}
}

func TestSendAnswersAllCallsInOneTurn(t *testing.T) {
	resp := &ai.Response{Calls: []ai.ToolCall{
		{ID: "call-1", Name: "lookup_weather", Args: map[string]any{"city": "Da Nang"}},
		{ID: "call-2", Name: ai.UpdateItineraryTool, Args: planArgs("Museums instead")},
		{ID: "call-3", Name: ai.UpdateItineraryTool, Args: planArgs("Second update")},
	}}
	chat := &fakeChat{responses: []*ai.Response{resp}}
	_, rec, plan := openSession(t, chat)

	res := rec.Send(context.Background(), "No beach please", plan)
	if res.State != StateApplied || res.Plan.Summary != "Museums instead" {
		t.Fatalf("result = %+v", res)
	}
	if chat.acks != 1 {
		t.Errorf("acknowledgements = %d, want 1", chat.acks)
	}
	if len(chat.toolResults) != 3 {
		t.Fatalf("tool results = %+v", chat.toolResults)
	}
	if chat.toolResults[0]["error"] == nil || chat.toolResults[1]["result"] == nil || chat.toolResults[2]["error"] == nil {
		t.Errorf("tool results = %+v", chat.toolResults)
	}
	if !rec.Session().Active() {
		t.Error("session was reset after a successful acknowledgement")
	}
}

func TestSendAckFailureResetsSession(t *testing.T) {
	chat := &fakeChat{
		responses: []*ai.Response{updateCall(planArgs("Museums instead"))},
		ackErr:    errors.New("connection reset"),
	}
	_, rec, plan := openSession(t, chat)

	res := rec.Send(context.Background(), "No beach please", plan)
	if res.State != StateApplied || res.Reply != ReplyUpdated {
		t.Errorf("result = %+v", res)
	}
	if rec.Session().Active() {
		t.Error("session kept a chat with an unanswered call")
	}
}

func TestSendProviderFailure(t *testing.T) {
	chat := &fakeChat{errs: []error{&ai.ProviderError{Provider: "fake", Op: "send", Err: errors.New("timeout")}}}
	_, rec, plan := openSession(t, chat)

	res := rec.Send(context.Background(), "hello", plan)
	if res.State != StateFailed || res.Reply != ReplyFailed || res.Plan != nil {
		t.Errorf("result = %+v", res)
	}
	if !IsRetryable(res.Cause) {
		t.Errorf("cause %v should be retryable", res.Cause)
	}
}

func TestSendRecreatesLostSession(t *testing.T) {
	chat := &fakeChat{responses: []*ai.Response{{Text: "hi"}}}
	p, rec, plan := openSession(t, chat)
	rec.Session().Reset()

	res := rec.Send(context.Background(), "hello", plan)
	if res.State != StateTextOnly {
		t.Fatalf("state = %v (cause %v)", res.State, res.Cause)
	}
	if len(p.configs) != 2 {
		t.Errorf("chats started = %d, want 2", len(p.configs))
	}
}

func TestSendWithoutPlan(t *testing.T) {
	p := &fakeProvider{chat: &fakeChat{}}
	pl := newTestPlanner(p)
	rec := pl.Reconciler(pl.NewSession(""))

	res := rec.Send(context.Background(), "hello", nil)
	if res.State != StateFailed || !errors.Is(res.Cause, ErrNoPlan) {
		t.Errorf("result = %+v", res)
	}
}

func TestSendBusy(t *testing.T) {
	chat := &fakeChat{responses: []*ai.Response{{Text: "hi"}}}
	_, rec, plan := openSession(t, chat)

	if err := rec.Session().acquire(); err != nil {
		t.Fatal(err)
	}
	res := rec.Send(context.Background(), "hello", plan)
	if !errors.Is(res.Cause, ErrBusy) || res.Reply != ReplyBusy {
		t.Errorf("result = %+v", res)
	}
	if len(chat.sent) != 0 {
		t.Error("busy session should not reach the model")
	}
	rec.Session().release()

	if _, err := rec.Regenerate(context.Background(), trip.Reject(plan, "e1")); errors.Is(err, ErrBusy) {
		t.Error("session still busy after release")
	}
}

func TestSendEmptyMessage(t *testing.T) {
	_, rec, plan := openSession(t, &fakeChat{})
	if res := rec.Send(context.Background(), "   ", plan); !errors.Is(res.Cause, ErrEmptyMessage) {
		t.Errorf("result = %+v", res)
	}
}

func TestTranscriptCapped(t *testing.T) {
	var responses []*ai.Response
	for i := 0; i < 5; i++ {
		responses = append(responses, &ai.Response{Text: fmt.Sprintf("reply %d", i)})
	}
	p := &fakeProvider{text: planJSON, chat: &fakeChat{responses: responses}}
	pl := New(p, nil, Options{MaxMessages: 4}, nil)
	plan, session, err := pl.Generate(context.Background(), prefs())
	if err != nil {
		t.Fatal(err)
	}

	rec := pl.Reconciler(session)
	for i := 0; i < 5; i++ {
		rec.Send(context.Background(), fmt.Sprintf("msg %d", i), plan)
	}
	msgs := session.Messages()
	if len(msgs) != 4 {
		t.Fatalf("len = %d, want 4", len(msgs))
	}
	if msgs[3].Text != "reply 4" || msgs[0].Text != "msg 3" {
		t.Errorf("transcript = %+v", msgs)
	}
}

func TestRegenerate(t *testing.T) {
	t.Run("nothing rejected", func(t *testing.T) {
		chat := &fakeChat{}
		_, rec, plan := openSession(t, chat)
		if _, err := rec.Regenerate(context.Background(), plan); !errors.Is(err, ErrNothingToRegenerate) {
			t.Errorf("err = %v", err)
		}
		if len(chat.sent) != 0 {
			t.Error("model called with nothing to regenerate")
		}
	})

	t.Run("no update", func(t *testing.T) {
		chat := &fakeChat{responses: []*ai.Response{{Text: "Sure, how about a museum?"}}}
		_, rec, plan := openSession(t, chat)
		got, err := rec.Regenerate(context.Background(), trip.Reject(plan, "e1"))
		if !errors.Is(err, ErrNoUpdate) || got != nil {
			t.Errorf("got %v, %v", got, err)
		}
	})

	t.Run("empty itinerary keeps previous plan", func(t *testing.T) {
		chat := &fakeChat{responses: []*ai.Response{updateCall(map[string]any{"summary": "S", "itinerary": []any{}})}}
		_, rec, plan := openSession(t, chat)
		current := trip.Reject(plan, "e1")
		before := trip.Clone(current)

		got, err := rec.Regenerate(context.Background(), current)
		if !errors.Is(err, ErrEmptyItinerary) {
			t.Fatalf("err = %v, want ErrEmptyItinerary", err)
		}
		if got != nil {
			t.Error("expected no plan")
		}
		if !reflect.DeepEqual(current, before) {
			t.Error("previous plan was modified")
		}
	})

	t.Run("replaced", func(t *testing.T) {
		chat := &fakeChat{responses: []*ai.Response{updateCall(planArgs("New day"))}}
		_, rec, plan := openSession(t, chat)

		got, err := rec.Regenerate(context.Background(), trip.Reject(plan, "e1"))
		if err != nil {
			t.Fatalf("Regenerate: %v", err)
		}
		if got.Summary != "New day" {
			t.Errorf("summary = %q", got.Summary)
		}
		if len(chat.sent) != 1 || !strings.Contains(chat.sent[0], "e1") {
			t.Errorf("sent = %v", chat.sent)
		}
		if len(chat.toolResults) != 1 {
			t.Errorf("tool results = %d, want 1", len(chat.toolResults))
		}
	})
}

func TestTurnStateString(t *testing.T) {
	if StateApplied.String() != "applied" || TurnState(99).String() != "TurnState(99)" {
		t.Error("unexpected TurnState names")
	}
}
