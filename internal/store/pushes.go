package store

import (
	"fmt"
	"time"
)

// Push records one export of a trip to Google Calendar.
type Push struct {
	ID        int
	TripID    string
	Succeeded int
	Failed    int
	CreatedAt time.Time
}

func (db *DB) InsertPush(p *Push) (int64, error) {
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	result, err := db.Exec(
		`INSERT INTO pushes (trip_id, succeeded, failed, created_at) VALUES (?, ?, ?, ?)`,
		p.TripID, p.Succeeded, p.Failed, created.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting push: %w", err)
	}
	return result.LastInsertId()
}

// GetPushes returns the pushes of a trip, newest first.
func (db *DB) GetPushes(tripID string) ([]Push, error) {
	rows, err := db.Query(
		`SELECT id, trip_id, succeeded, failed, created_at
		 FROM pushes
		 WHERE trip_id = ?
		 ORDER BY id DESC`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying pushes: %w", err)
	}
	defer rows.Close()

	var pushes []Push
	for rows.Next() {
		var p Push
		var createdStr string
		if err := rows.Scan(&p.ID, &p.TripID, &p.Succeeded, &p.Failed, &createdStr); err != nil {
			return nil, fmt.Errorf("scanning push: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, createdStr); err == nil {
			p.CreatedAt = t
		}
		pushes = append(pushes, p)
	}

	return pushes, rows.Err()
}
