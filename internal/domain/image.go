package domain

import (
	"context"
	"time"
)

// Session is an editing session over one captured screenshot. Width and
// Height are the scaled display size every shape coordinate refers to.
type Session struct {
	ID           string    `json:"id"`
	ImageSHA256  string    `json:"image_sha256"`
	NativeWidth  int       `json:"native_width"`
	NativeHeight int       `json:"native_height"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SessionRepository defines the interface for session storage operations
type SessionRepository interface {
	// Create creates a new session record with an empty annotation list
	Create(ctx context.Context, session *Session) (*Session, error)

	// Get retrieves a session by its ID
	Get(ctx context.Context, id string) (*Session, error)

	// List retrieves all sessions, most recently updated first
	List(ctx context.Context) ([]*Session, error)

	// SaveAnnotations replaces the stored annotation list of a session
	SaveAnnotations(ctx context.Context, id string, shapes []Shape) error

	// LoadAnnotations returns the stored annotation list of a session
	LoadAnnotations(ctx context.Context, id string) ([]Shape, error)

	// Delete removes a session
	Delete(ctx context.Context, id string) error
}
