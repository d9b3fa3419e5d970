package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Sample represents a recorded stroke sample stored in the database.
type Sample struct {
	ID          int64           `json:"id"`
	StrokeID    string          `json:"stroke_id"`
	SampleIndex int             `json:"sample_index"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SampleRepository provides CRUD operations for stroke samples.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Create replaces the samples of a stroke in a single transaction and
// updates the stroke's sample count.
func (r *SampleRepository) Create(strokeID string, samples []json.RawMessage) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec(`UPDATE strokes SET samples = ?, updated_at = ? WHERE id = ?`,
		len(samples), time.Now(), strokeID)
	if err != nil {
		return err
	}
	if err := requireAffected(result); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM stroke_samples WHERE stroke_id = ?`, strokeID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO stroke_samples (stroke_id, sample_index, data) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, data := range samples {
		if _, err := stmt.Exec(strokeID, i, string(data)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByStrokeID retrieves all samples for a given stroke.
func (r *SampleRepository) GetByStrokeID(strokeID string) ([]Sample, error) {
	rows, err := r.db.Query(
		`SELECT id, stroke_id, sample_index, data, created_at
		 FROM stroke_samples
		 WHERE stroke_id = ?
		 ORDER BY sample_index`,
		strokeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var data string
		if err := rows.Scan(&s.ID, &s.StrokeID, &s.SampleIndex, &data, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Data = json.RawMessage(data)
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}

// DeleteByStrokeID removes all samples for a given stroke.
func (r *SampleRepository) DeleteByStrokeID(strokeID string) error {
	_, err := r.db.Exec(`DELETE FROM stroke_samples WHERE stroke_id = ?`, strokeID)
	return err
}
