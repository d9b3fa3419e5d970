package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/gesture"
)

// Event is a journaled gesture result.
type Event struct {
	ID         int64           `json:"id"`
	SessionID  string          `json:"session_id"`
	Gesture    string          `json:"gesture"`
	Kind       string          `json:"kind"`
	Confidence float64         `json:"confidence"`
	DurationMs float64         `json:"duration_ms"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}

// EventRepository appends to and reads the gesture journal.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// NewSessionID returns a time-ordered identifier for one run of the service.
func NewSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Append journals a gesture result under the given session.
func (r *EventRepository) Append(sessionID string, res gesture.Result) (*Event, error) {
	payload := []byte("{}")
	if len(res.Payload) > 0 {
		var err error
		if payload, err = json.Marshal(res.Payload); err != nil {
			return nil, err
		}
	}

	e := &Event{
		SessionID:  sessionID,
		Gesture:    res.Key(),
		Kind:       res.Kind.String(),
		Confidence: res.Confidence,
		DurationMs: float64(res.Duration) / float64(time.Millisecond),
		Payload:    payload,
		CreatedAt:  time.Now(),
	}

	result, err := r.db.Exec(
		`INSERT INTO gesture_events (session_id, gesture, kind, confidence, duration_ms, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Gesture, e.Kind, e.Confidence, e.DurationMs, string(e.Payload), e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if e.ID, err = result.LastInsertId(); err != nil {
		return nil, err
	}
	return e, nil
}

// Recent returns up to limit events, newest first.
func (r *EventRepository) Recent(limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(
		`SELECT id, session_id, gesture, kind, confidence, duration_ms, payload, created_at
		 FROM gesture_events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var payload string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Gesture, &e.Kind, &e.Confidence, &e.DurationMs, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payload)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// CountBySession returns how many events a session journaled.
func (r *EventRepository) CountBySession(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM gesture_events WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}

// Prune deletes events older than the cutoff and returns how many were removed.
func (r *EventRepository) Prune(before time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM gesture_events WHERE created_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
