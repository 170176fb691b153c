package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lewtec/anotador/internal/domain"
)

const sessionColumns = `id, image_sha256, native_width, native_height, width, height, created_at, updated_at`

// SessionRepository implements domain.SessionRepository on SQLite. The
// annotation list of a session is stored as one JSON array, in z-order.
type SessionRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new session with an empty annotation list. A missing ID
// is generated.
func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	s := *session
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := r.now()
	s.CreatedAt, s.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO sessions (id, image_sha256, native_width, native_height, width, height, annotations, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, '[]', ?, ?)`,
		s.ID, s.ImageSHA256, s.NativeWidth, s.NativeHeight, s.Width, s.Height, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Get retrieves a session by its ID
func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// List retrieves all sessions, most recently updated first
func (r *SessionRepository) List(ctx context.Context) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*domain.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// SaveAnnotations replaces the stored annotation list of a session
func (r *SessionRepository) SaveAnnotations(ctx context.Context, id string, shapes []domain.Shape) error {
	if shapes == nil {
		shapes = []domain.Shape{}
	}
	data, err := json.Marshal(shapes)
	if err != nil {
		return fmt.Errorf("while encoding annotations: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET annotations = ?, updated_at = ? WHERE id = ?`, string(data), r.now(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// LoadAnnotations returns the stored annotation list of a session, or nil
// if the session does not exist
func (r *SessionRepository) LoadAnnotations(ctx context.Context, id string) ([]domain.Shape, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT annotations FROM sessions WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	shapes := []domain.Shape{}
	if err := json.Unmarshal([]byte(data), &shapes); err != nil {
		return nil, fmt.Errorf("while decoding annotations of session %s: %w", id, err)
	}
	return shapes, nil
}

// Delete removes a session
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.ImageSHA256, &s.NativeWidth, &s.NativeHeight, &s.Width, &s.Height, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Verify that SessionRepository implements domain.SessionRepository
var _ domain.SessionRepository = (*SessionRepository)(nil)
