package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/christopherklint97/travelpal/internal/trip"
)

const (
	currentPlanKey = "current_plan"
	historyKey     = "trip_history"

	// DefaultHistoryLimit is how many past trips are kept.
	DefaultHistoryLimit = 10
)

// SavedTrip is a plan together with the preferences that produced it.
type SavedTrip struct {
	ID          string               `json:"id"`
	Preferences trip.UserPreferences `json:"preferences"`
	Prompt      string               `json:"prompt,omitempty"`
	Plan        *trip.TripPlan       `json:"plan"`
	SavedAt     time.Time            `json:"savedAt"`
}

// SaveCurrentPlan replaces the active trip.
func (db *DB) SaveCurrentPlan(t SavedTrip) error {
	if t.SavedAt.IsZero() {
		t.SavedAt = time.Now().UTC()
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshaling current plan: %w", err)
	}
	if err := db.SetState(currentPlanKey, string(data)); err != nil {
		return fmt.Errorf("saving current plan: %w", err)
	}
	return nil
}

// LoadCurrentPlan returns the active trip, or nil when there is none or the
// stored value cannot be read.
func (db *DB) LoadCurrentPlan() (*SavedTrip, error) {
	raw, err := db.GetState(currentPlanKey)
	if err != nil {
		return nil, fmt.Errorf("loading current plan: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var t SavedTrip
	if err := json.Unmarshal([]byte(raw), &t); err != nil || t.Plan == nil {
		return nil, nil
	}
	return &t, nil
}

func (db *DB) ClearCurrentPlan() error {
	return db.DeleteState(currentPlanKey)
}

// History returns past trips, newest first. A value that cannot be read is
// treated as an empty history.
func (db *DB) History() ([]SavedTrip, error) {
	raw, err := db.GetState(historyKey)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	if raw == "" {
		return []SavedTrip{}, nil
	}
	var trips []SavedTrip
	if err := json.Unmarshal([]byte(raw), &trips); err != nil {
		return []SavedTrip{}, nil
	}
	return trips, nil
}

// AddToHistory puts t at the front of the history, replacing an older
// entry with the same id, and keeps at most limit entries.
func (db *DB) AddToHistory(t SavedTrip, limit int) error {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if t.SavedAt.IsZero() {
		t.SavedAt = time.Now().UTC()
	}

	existing, err := db.History()
	if err != nil {
		return err
	}

	trips := []SavedTrip{t}
	for _, e := range existing {
		if e.ID != t.ID {
			trips = append(trips, e)
		}
	}
	if len(trips) > limit {
		trips = trips[:limit]
	}

	data, err := json.Marshal(trips)
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}
	if err := db.SetState(historyKey, string(data)); err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	return nil
}

// FindInHistory returns the history entry with the given id.
func (db *DB) FindInHistory(id string) (*SavedTrip, error) {
	trips, err := db.History()
	if err != nil {
		return nil, err
	}
	for i := range trips {
		if trips[i].ID == id {
			return &trips[i], nil
		}
	}
	return nil, nil
}

func (db *DB) ClearHistory() error {
	return db.DeleteState(historyKey)
}
