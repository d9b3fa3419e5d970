package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/gesture"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// DefaultTolerance is the DTW tolerance given to strokes created without one.
const DefaultTolerance = 0.15

// Stroke is a named stroke template definition.
type Stroke struct {
	ID        string
	Name      string
	Tolerance float64
	Samples   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StrokeRepository provides CRUD operations for strokes and their paths.
type StrokeRepository struct {
	db *sql.DB
}

// Strokes returns the stroke repository for this store.
func (s *Store) Strokes() *StrokeRepository {
	return &StrokeRepository{db: s.db}
}

const strokeColumns = `id, name, tolerance, samples, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanStroke(row scanner) (*Stroke, error) {
	st := &Stroke{}
	if err := row.Scan(&st.ID, &st.Name, &st.Tolerance, &st.Samples, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	return st, nil
}

// Create inserts a new stroke into the database, assigning an ID when
// st has none.
func (r *StrokeRepository) Create(st *Stroke) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	now := time.Now()
	st.CreatedAt = now
	st.UpdatedAt = now
	if st.Tolerance == 0 {
		st.Tolerance = DefaultTolerance
	}

	_, err := r.db.Exec(
		`INSERT INTO strokes (id, name, tolerance, samples, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		st.ID, st.Name, st.Tolerance, st.Samples, st.CreatedAt, st.UpdatedAt,
	)
	return err
}

// GetByID retrieves a stroke by its ID.
func (r *StrokeRepository) GetByID(id string) (*Stroke, error) {
	st, err := scanStroke(r.db.QueryRow(`SELECT `+strokeColumns+` FROM strokes WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return st, nil
}

// GetByName retrieves a stroke by its name.
func (r *StrokeRepository) GetByName(name string) (*Stroke, error) {
	st, err := scanStroke(r.db.QueryRow(`SELECT `+strokeColumns+` FROM strokes WHERE name = ?`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return st, nil
}

// List retrieves all strokes, newest first.
func (r *StrokeRepository) List() ([]*Stroke, error) {
	rows, err := r.db.Query(`SELECT ` + strokeColumns + ` FROM strokes ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var strokes []*Stroke
	for rows.Next() {
		st, err := scanStroke(rows)
		if err != nil {
			return nil, err
		}
		strokes = append(strokes, st)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return strokes, nil
}

// Update updates an existing stroke in the database.
func (r *StrokeRepository) Update(st *Stroke) error {
	st.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE strokes SET name = ?, tolerance = ?, samples = ?, updated_at = ?
		 WHERE id = ?`,
		st.Name, st.Tolerance, st.Samples, st.UpdatedAt, st.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// Delete removes a stroke and, by cascade, its path and samples.
func (r *StrokeRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM strokes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// SetPath replaces the template path of a stroke.
func (r *StrokeRepository) SetPath(id string, path []gesture.PathPoint) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM strokes WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM stroke_paths WHERE stroke_id = ?`, id); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO stroke_paths (stroke_id, sequence, x, y, timestamp_ms) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range path {
		if _, err := stmt.Exec(id, i, p.X, p.Y, p.Timestamp); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`UPDATE strokes SET updated_at = ? WHERE id = ?`, time.Now(), id); err != nil {
		return err
	}

	return tx.Commit()
}

// GetPath retrieves the template path of a stroke. A stroke that has not been
// trained yet has an empty path.
func (r *StrokeRepository) GetPath(id string) ([]gesture.PathPoint, error) {
	rows, err := r.db.Query(
		`SELECT x, y, timestamp_ms FROM stroke_paths WHERE stroke_id = ? ORDER BY sequence`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var path []gesture.PathPoint
	for rows.Next() {
		var p gesture.PathPoint
		if err := rows.Scan(&p.X, &p.Y, &p.Timestamp); err != nil {
			return nil, err
		}
		path = append(path, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return path, nil
}

// Templates loads every trained stroke as a matcher template. Strokes without
// a path are skipped.
func (r *StrokeRepository) Templates() ([]*gesture.StrokeTemplate, error) {
	strokes, err := r.List()
	if err != nil {
		return nil, err
	}

	var templates []*gesture.StrokeTemplate
	for _, st := range strokes {
		path, err := r.GetPath(st.ID)
		if err != nil {
			return nil, err
		}
		if len(path) == 0 {
			continue
		}
		templates = append(templates, &gesture.StrokeTemplate{
			ID:        st.ID,
			Name:      st.Name,
			Path:      path,
			Tolerance: st.Tolerance,
		})
	}
	return templates, nil
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
