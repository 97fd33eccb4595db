package main

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/christopherklint97/travelpal/internal/trip"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"1", int64(1)},
		{"0.5", 0.5},
		{"Vietnamese", "Vietnamese"},
		{"http://a, http://b", []string{"http://a", "http://b"}},
	}
	for _, tt := range tests {
		if got := coerce(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("coerce(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	got, err := parseDate("2024-04-02", now)
	if err != nil || got != "2024-04-02" {
		t.Errorf("iso date = %q, %v", got, err)
	}
	got, err = parseDate("tomorrow", now)
	if err != nil || got != "2024-03-02" {
		t.Errorf("tomorrow = %q, %v", got, err)
	}
	if got, _ := parseDate("  ", now); got != "" {
		t.Errorf("blank = %q", got)
	}
}

func TestPrefsFromFlags(t *testing.T) {
	cmd := &cobra.Command{}
	definePlanFlags(cmd)

	err := cmd.ParseFlags([]string{
		"-d", "Hoi An", "--from", "2024-04-01", "--to", "2024-04-03",
		"--style", "Foodie,relaxing", "--adults", "2", "--children", "1",
		"--budget", "premium", "--note", "no seafood",
	})
	if err != nil {
		t.Fatal(err)
	}
	prefs, err := prefsFromFlags(cmd, time.Now())
	if err != nil {
		t.Fatalf("prefsFromFlags: %v", err)
	}
	if err := prefs.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if prefs.Destination != "Hoi An" || prefs.Days() != 3 || prefs.PartySize.Children != 1 {
		t.Errorf("prefs = %+v", prefs)
	}
	if !reflect.DeepEqual(prefs.Styles, []trip.TravelStyle{trip.StyleFoodie, trip.StyleRelaxing}) {
		t.Errorf("styles = %v", prefs.Styles)
	}
	if prefs.BudgetTierOrDefault() != trip.BudgetPremium {
		t.Errorf("budget = %v", prefs.BudgetTierOrDefault())
	}
}

func TestMask(t *testing.T) {
	if got := mask("sk-abcdef1234"); got != "*********1234" {
		t.Errorf("mask = %q", got)
	}
	if mask("") != "" || mask("abc") != "****" {
		t.Error("short values")
	}
}

func TestPrintPlanMarksRejected(t *testing.T) {
	plan := &trip.TripPlan{
		Summary: "Beach days",
		Stats:   trip.TripStats{Currency: "USD", DurationDays: 1},
		Itinerary: []trip.DayPlan{{Day: 1, Date: "2024-04-01", Events: []trip.ItineraryEvent{
			{ID: "e1", Time: "09:00", Activity: "Swim", LocationName: "An Bang", Currency: "USD", Status: trip.StatusAccepted},
			{ID: "e2", Time: "13:00", Activity: "Lunch", LocationName: "Soul Kitchen", Currency: "USD", Status: trip.StatusRejected},
		}}},
	}
	var buf bytes.Buffer
	printPlan(&buf, plan)
	out := buf.String()
	if !strings.Contains(out, "[ ] 09:00") || !strings.Contains(out, "[x] 13:00") {
		t.Errorf("output:\n%s", out)
	}
}
