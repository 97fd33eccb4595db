package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/christopherklint97/travelpal/internal/trip"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "travelpal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func savedTrip(id string) SavedTrip {
	return SavedTrip{
		ID:          id,
		Preferences: trip.UserPreferences{Destination: "Trip " + id, StartDate: "2024-01-01", EndDate: "2024-01-02"},
		Plan: &trip.TripPlan{Summary: "plan " + id, Itinerary: []trip.DayPlan{
			{Day: 1, Events: []trip.ItineraryEvent{{ID: id + "-e1", Activity: "Walk"}}},
		}},
	}
}

func TestHistoryCap(t *testing.T) {
	db := openTestDB(t)

	for i := 1; i <= 11; i++ {
		if err := db.AddToHistory(savedTrip(fmt.Sprintf("t%d", i)), 10); err != nil {
			t.Fatalf("AddToHistory %d: %v", i, err)
		}
	}

	history, err := db.History()
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 10 {
		t.Fatalf("len = %d, want 10", len(history))
	}
	if history[0].ID != "t11" {
		t.Errorf("newest = %s, want t11", history[0].ID)
	}
	if history[9].ID != "t2" {
		t.Errorf("oldest kept = %s, want t2", history[9].ID)
	}
	for _, h := range history {
		if h.ID == "t1" {
			t.Error("oldest entry t1 should have been dropped")
		}
	}
}

func TestHistoryReplacesSameID(t *testing.T) {
	db := openTestDB(t)
	_ = db.AddToHistory(savedTrip("a"), 0)
	_ = db.AddToHistory(savedTrip("b"), 0)

	updated := savedTrip("a")
	updated.Plan.Summary = "edited"
	if err := db.AddToHistory(updated, 0); err != nil {
		t.Fatal(err)
	}

	history, _ := db.History()
	if len(history) != 2 || history[0].ID != "a" || history[0].Plan.Summary != "edited" {
		t.Errorf("history = %+v", history)
	}

	found, err := db.FindInHistory("b")
	if err != nil || found == nil || found.Plan.Summary != "plan b" {
		t.Errorf("FindInHistory = %+v, %v", found, err)
	}
	if missing, _ := db.FindInHistory("zzz"); missing != nil {
		t.Error("expected nil for unknown id")
	}
}

func TestHistoryParseFailureIsEmpty(t *testing.T) {
	db := openTestDB(t)
	if err := db.SetState(historyKey, "{not json"); err != nil {
		t.Fatal(err)
	}

	history, err := db.History()
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("len = %d, want 0", len(history))
	}

	// A corrupt history is overwritten by the next addition.
	if err := db.AddToHistory(savedTrip("x"), 0); err != nil {
		t.Fatal(err)
	}
	history, _ = db.History()
	if len(history) != 1 {
		t.Errorf("len = %d, want 1", len(history))
	}

	if err := db.ClearHistory(); err != nil {
		t.Fatal(err)
	}
	history, _ = db.History()
	if len(history) != 0 {
		t.Errorf("len after clear = %d", len(history))
	}
}

func TestCurrentPlan(t *testing.T) {
	db := openTestDB(t)

	got, err := db.LoadCurrentPlan()
	if err != nil || got != nil {
		t.Fatalf("empty store: %+v, %v", got, err)
	}

	if err := db.SaveCurrentPlan(savedTrip("cur")); err != nil {
		t.Fatalf("SaveCurrentPlan: %v", err)
	}
	got, err = db.LoadCurrentPlan()
	if err != nil || got == nil {
		t.Fatalf("LoadCurrentPlan: %+v, %v", got, err)
	}
	if got.ID != "cur" || got.Plan.Itinerary[0].Events[0].ID != "cur-e1" || got.SavedAt.IsZero() {
		t.Errorf("loaded = %+v", got)
	}

	if err := db.SetState(currentPlanKey, "garbage"); err != nil {
		t.Fatal(err)
	}
	got, err = db.LoadCurrentPlan()
	if err != nil || got != nil {
		t.Errorf("corrupt plan: %+v, %v", got, err)
	}

	_ = db.SaveCurrentPlan(savedTrip("cur"))
	if err := db.ClearCurrentPlan(); err != nil {
		t.Fatal(err)
	}
	if got, _ := db.LoadCurrentPlan(); got != nil {
		t.Error("plan still present after clear")
	}
}

func TestPushes(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.InsertPush(&Push{TripID: "t1", Succeeded: 3, Failed: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertPush(&Push{TripID: "t1", Succeeded: 4}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertPush(&Push{TripID: "t2", Succeeded: 1}); err != nil {
		t.Fatal(err)
	}

	pushes, err := db.GetPushes("t1")
	if err != nil {
		t.Fatalf("GetPushes: %v", err)
	}
	if len(pushes) != 2 || pushes[0].Succeeded != 4 || pushes[1].Failed != 1 {
		t.Errorf("pushes = %+v", pushes)
	}
	if pushes[0].CreatedAt.IsZero() {
		t.Error("created_at not parsed")
	}
}
