package sanitize

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/christopherklint97/travelpal/internal/trip"
)

func TestFencedTrailingCommaRepair(t *testing.T) {
	raw := "Here you go:\n```json\n{\"summary\":\"S\",\"itinerary\":[{\"day\":1,\"events\":[{\"activity\":\"A\",}],}]}\n```"

	s := New(DefaultOptions(), nil)
	plan, strategy, err := s.SanitizeWithStrategy(raw)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	t.Logf("strategy: %s", strategy)

	if strategy != "trailing_commas" {
		t.Errorf("strategy = %q, want trailing_commas", strategy)
	}
	if plan.Summary != "S" {
		t.Errorf("summary = %q, want S", plan.Summary)
	}
	if len(plan.Itinerary) != 1 || len(plan.Itinerary[0].Events) != 1 {
		t.Fatalf("unexpected itinerary shape: %+v", plan.Itinerary)
	}

	ev := plan.Itinerary[0].Events[0]
	if ev.Activity != "A" {
		t.Errorf("activity = %q, want A", ev.Activity)
	}
	if ev.Status != trip.StatusAccepted {
		t.Errorf("status = %q, want accepted", ev.Status)
	}
	if ev.Time != "09:00" {
		t.Errorf("time = %q, want 09:00", ev.Time)
	}
	if ev.ID == "" {
		t.Error("expected a generated id")
	}
	if ev.LocationName != DefaultOptions().LocationPlaceholder {
		t.Errorf("locationName = %q, want placeholder", ev.LocationName)
	}
	if ev.BookingLink != "" {
		t.Errorf("bookingLink = %q, want empty for unknown location", ev.BookingLink)
	}
	if ev.TransportMethod != "N/A" || ev.TransportDuration != "N/A" {
		t.Errorf("transport = %q/%q, want N/A", ev.TransportMethod, ev.TransportDuration)
	}
	if plan.Tips != DefaultOptions().TipsPlaceholder {
		t.Errorf("tips = %q, want placeholder", plan.Tips)
	}
}

func TestNotJSONAtAll(t *testing.T) {
	_, err := New(DefaultOptions(), nil).Sanitize("not json at all")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, ErrUnparseable) {
		t.Errorf("error does not wrap ErrUnparseable: %v", err)
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if len(perr.Attempts) != len(Chain) {
		t.Errorf("attempts = %d, want %d", len(perr.Attempts), len(Chain))
	}
	t.Logf("error: %v", err)
}

func TestStrategies(t *testing.T) {
	tests := []struct {
		name     string
		fn       func(string) (string, error)
		input    string
		wantFail bool
	}{
		{"direct plain", Direct, `{"a":1}`, false},
		{"direct comments", Direct, "{\"a\":1 // note\n, /* x */ \"b\":2}", false},
		{"direct keeps urls", Direct, `{"website":"https://example.com//x"}`, false},
		{"direct prose", Direct, `Sure! {"a":1}`, true},
		{"direct array root", Direct, `[1,2]`, true},
		{"fenced json", Fenced, "text\n```json\n{\"a\":1}\n```\nmore", false},
		{"fenced bare", Fenced, "```\n{\"a\":1}\n```", false},
		{"fenced missing", Fenced, `{"a":1}`, true},
		{"braces", Braces, `Sure! {"a":{"b":2}} enjoy`, false},
		{"braces none", Braces, `no object here`, true},
		{"trailing commas", TrailingCommas, `{"a":[1,2,],"b":{"c":1,},}`, false},
		{"trailing commas in strings kept", TrailingCommas, `{"a":",]",}`, false},
		{"trailing commas still broken", TrailingCommas, `{"a":}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.input)
			if tt.wantFail {
				if err == nil {
					t.Errorf("expected failure, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !json.Valid([]byte(got)) {
				t.Errorf("result is not valid JSON: %q", got)
			}
		})
	}
}

func TestStripCommentsKeepsStrings(t *testing.T) {
	in := `{"url":"http://a.b/c","note":"/* not a comment */"} // trailing`
	got := stripComments(in)
	want := `{"url":"http://a.b/c","note":"/* not a comment */"} `
	if got != want {
		t.Errorf("stripComments = %q, want %q", got, want)
	}
}

func TestRemoveTrailingCommasKeepsStrings(t *testing.T) {
	got := removeTrailingCommas(`{"a":"x,}", "b":[1, ],}`)
	want := `{"a":"x,}", "b":[1 ]}`
	if got != want {
		t.Errorf("removeTrailingCommas = %q, want %q", got, want)
	}
}

const messyPlan = `{
  "summary": "Food and beaches",
  "tips": ["Carry cash", "Use Grab", 3],
  "stats": {"totalCost": -5, "totalEvents": "lots", "durationDays": 0},
  "itinerary": [
    {"date": "2023-11-24", "theme": "Arrival", "events": [
      {"id": "e1", "time": "9:30 AM", "activity": "Breakfast", "locationName": "Banh Mi Phuong",
       "type": "FOOD", "status": "weird", "costEstimate": "cheap"},
      {"id": "e1", "activity": "Beach", "locationName": "My Khe Beach", "costEstimate": 0,
       "status": "Rejected", "bookingLink": "https://book.example/mykhe"},
      "not an event"
    ]},
    {"day": 7, "events": "none"},
    42
  ]
}`

func TestNormalization(t *testing.T) {
	s := New(Options{DefaultCurrency: "VND", BookingURLTemplate: "https://search.example/?q={query}"}, nil)
	plan, err := s.Sanitize(messyPlan)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}

	if plan.Tips != "Carry cash. Use Grab. 3" {
		t.Errorf("tips = %q", plan.Tips)
	}
	if plan.Stats.TotalCost != 0 || plan.Stats.TotalEvents != 0 || plan.Stats.DurationDays != 1 {
		t.Errorf("stats not normalized: %+v", plan.Stats)
	}
	if plan.Stats.Currency != "VND" {
		t.Errorf("currency = %q, want VND", plan.Stats.Currency)
	}
	if len(plan.Itinerary) != 2 {
		t.Fatalf("days = %d, want 2", len(plan.Itinerary))
	}

	d1 := plan.Itinerary[0]
	if d1.Day != 1 || d1.Date != "2023-11-24" || len(d1.Events) != 2 {
		t.Fatalf("day 1 = %+v", d1)
	}
	first, second := d1.Events[0], d1.Events[1]
	if first.ID != "e1" {
		t.Errorf("first id = %q, want e1", first.ID)
	}
	if second.ID == "e1" || second.ID == "" {
		t.Errorf("duplicate id not replaced: %q", second.ID)
	}
	if first.Type != trip.TypeFood {
		t.Errorf("type = %q, want food", first.Type)
	}
	if first.Status != trip.StatusAccepted || second.Status != trip.StatusRejected {
		t.Errorf("statuses = %q/%q", first.Status, second.Status)
	}
	if first.Currency != "VND" {
		t.Errorf("event currency = %q, want VND", first.Currency)
	}
	if first.BookingLink != "https://search.example/?q=Banh+Mi+Phuong" {
		t.Errorf("bookingLink = %q", first.BookingLink)
	}
	if second.BookingLink != "https://book.example/mykhe" {
		t.Errorf("explicit bookingLink overwritten: %q", second.BookingLink)
	}

	d2 := plan.Itinerary[1]
	if d2.Day != 7 || len(d2.Events) != 0 || d2.Events == nil {
		t.Errorf("day 2 = %+v", d2)
	}
}

func TestIdempotent(t *testing.T) {
	s := New(DefaultOptions(), nil)

	inputs := []string{
		messyPlan,
		"```json\n{\"summary\":\"S\",\"itinerary\":[{\"day\":1,\"events\":[{\"activity\":\"A\",}],}]}\n```",
		`{"summary": 12, "itinerary": "nope"}`,
		`{"plan": {"summary": "wrapped", "itinerary": [{"events": [{"activity": "X", "locationName": "Hoi An"}]}]}}`,
	}

	for i, in := range inputs {
		first, err := s.Sanitize(in)
		if err != nil {
			t.Fatalf("input %d: %v", i, err)
		}
		data, err := json.Marshal(first)
		if err != nil {
			t.Fatalf("input %d: marshal: %v", i, err)
		}
		second, err := s.Sanitize(string(data))
		if err != nil {
			t.Fatalf("input %d: second pass: %v", i, err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("input %d: not idempotent\nfirst:  %+v\nsecond: %+v", i, first, second)
		}
	}
}

func TestEmptyItineraryIsAccepted(t *testing.T) {
	plan, err := New(DefaultOptions(), nil).Sanitize(`{"summary":"nothing"}`)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if !plan.IsEmpty() {
		t.Error("expected an empty plan")
	}
}

func TestSanitizeValue(t *testing.T) {
	args := map[string]any{
		"summary": "from a tool call",
		"itinerary": []any{
			map[string]any{"day": 1, "events": []any{map[string]any{"id": "x", "activity": "Walk"}}},
		},
	}
	plan, err := New(DefaultOptions(), nil).SanitizeValue(args)
	if err != nil {
		t.Fatalf("SanitizeValue: %v", err)
	}
	if plan.Summary != "from a tool call" || plan.Itinerary[0].Events[0].ID != "x" {
		t.Errorf("unexpected plan: %+v", plan)
	}

	if _, err := New(DefaultOptions(), nil).SanitizeValue(nil); !errors.Is(err, ErrUnparseable) {
		t.Errorf("nil value: err = %v, want ErrUnparseable", err)
	}
}

func TestParseErrorPreviewTruncated(t *testing.T) {
	_, err := New(DefaultOptions(), nil).Sanitize(strings.Repeat("x", 500))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if len(perr.Preview) != 203 {
		t.Errorf("preview length = %d, want 203", len(perr.Preview))
	}

	_, err = New(DefaultOptions(), nil).Sanitize(strings.Repeat("Hội An ", 60))
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if !utf8.ValidString(perr.Preview) {
		t.Errorf("preview cut a character in half: %q", perr.Preview)
	}
}
