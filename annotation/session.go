package annotation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lewtec/anotador/internal/capture"
	"github.com/lewtec/anotador/internal/domain"
	"github.com/lewtec/anotador/internal/engine"
)

var ErrSessionNotFound = errors.New("session not found")

// persistTimeout bounds each snapshot write made by the engine listener
const persistTimeout = 5 * time.Second

// LiveSession is a session with its engine and captured page context
// in memory. Use it only inside SessionManager.WithSession.
type LiveSession struct {
	mu      sync.Mutex
	Session domain.Session
	Engine  *engine.Engine
	Context *capture.Context
	// evicted is set once the session left the cache; holders must resume it again
	evicted bool
}

// SessionView is the JSON shape of a session as served over HTTP
type SessionView struct {
	Session domain.Session `json:"session"`
	State   engine.State   `json:"state"`
	Shapes  []domain.Shape `json:"shapes"`
}

func (s *LiveSession) View() SessionView {
	return SessionView{Session: s.Session, State: s.Engine.State(), Shapes: s.Engine.Shapes()}
}

// SessionManager owns the live engines of every session. Calls on one
// session are serialized; different sessions proceed in parallel.
//
// Only server.live_sessions engines stay in memory. A session leaving the
// cache waits for the call holding it, then parks its undo and redo stacks
// until it is resumed. Open prompts and text entries are not kept.
type SessionManager struct {
	config  *Config
	repo    domain.SessionRepository
	images  *ImageStore
	exports *ExportStore
	live    *sessionCache
	// loadMu is held around every change to live and guards parked
	loadMu sync.Mutex
	parked map[string]engine.History
}

func NewSessionManager(config *Config, repo domain.SessionRepository, images *ImageStore, exports *ExportStore) *SessionManager {
	m := &SessionManager{
		config:  config,
		repo:    repo,
		images:  images,
		exports: exports,
		parked:  map[string]engine.History{},
	}
	m.live = newSessionCache(config.Server.LiveSessions, m.park)
	return m
}

// park runs on the goroutine that removed s from the cache, with loadMu held
func (m *SessionManager) park(id string, s *LiveSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evicted = true
	h := s.Engine.History()
	undo, redo := h.Depths()
	if undo+redo > 0 {
		m.parked[id] = h
	}
	log.Printf("session: %s left memory (undo=%d redo=%d)", id, undo, redo)
}

func (m *SessionManager) newEngine(id string, opts ...engine.Option) *engine.Engine {
	opts = append([]engine.Option{
		engine.WithViewport(m.config.Viewport.Width, m.config.Viewport.Height),
		engine.WithPalette(m.config.Palette),
		engine.WithSnapshotListener(func(shapes []domain.Shape) {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			if err := m.repo.SaveAnnotations(ctx, id, shapes); err != nil {
				log.Printf("session: while saving %d annotations of %s: %s", len(shapes), id, err)
			}
		}),
	}, opts...)
	return engine.New(opts...)
}

func (m *SessionManager) newContext() (*capture.Context, error) {
	c := capture.NewContext(m.config.Capture.Console, m.config.Capture.Network)
	if err := c.IgnoreURLs(m.config.Capture.Ignore); err != nil {
		return nil, err
	}
	return c, nil
}

// Create starts a session over the encoded screenshot in data
func (m *SessionManager) Create(ctx context.Context, data []byte) (*domain.Session, error) {
	id := uuid.NewString()
	e := m.newEngine(id)
	if err := e.Load(data, nil); err != nil {
		return nil, err
	}
	c, err := m.newContext()
	if err != nil {
		return nil, err
	}
	sha, err := m.images.Put(data)
	if err != nil {
		return nil, err
	}
	nw, nh := e.NativeSize()
	w, h := e.Size()
	s, err := m.repo.Create(ctx, &domain.Session{
		ID:           id,
		ImageSHA256:  sha,
		NativeWidth:  nw,
		NativeHeight: nh,
		Width:        w,
		Height:       h,
	})
	if err != nil {
		return nil, fmt.Errorf("while storing session: %w", err)
	}
	m.loadMu.Lock()
	m.live.Set(id, &LiveSession{Session: *s, Engine: e, Context: c})
	m.loadMu.Unlock()
	log.Printf("session: created %s from %s (%dx%d shown as %dx%d)", id, sha[:12], nw, nh, w, h)
	return s, nil
}

func (m *SessionManager) get(ctx context.Context, id string) (*LiveSession, error) {
	if s, ok := m.live.Get(id); ok {
		return s, nil
	}
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	if s, ok := m.live.Get(id); ok {
		return s, nil
	}

	stored, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("while fetching session %s: %w", id, err)
	}
	if stored == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	data, err := m.images.Get(stored.ImageSHA256)
	if err != nil {
		return nil, err
	}
	shapes, err := m.repo.LoadAnnotations(ctx, id)
	if err != nil {
		return nil, err
	}
	e := m.newEngine(id, engine.WithCanvasSize(stored.Width, stored.Height))
	if err := e.Load(data, shapes); err != nil {
		return nil, fmt.Errorf("while resuming session %s: %w", id, err)
	}
	if h, ok := m.parked[id]; ok {
		if err := e.RestoreHistory(h); err != nil {
			return nil, fmt.Errorf("while resuming session %s: %w", id, err)
		}
		delete(m.parked, id)
	}
	c, err := m.newContext()
	if err != nil {
		return nil, err
	}
	s := &LiveSession{Session: *stored, Engine: e, Context: c}
	m.live.Set(id, s)
	log.Printf("session: resumed %s with %d annotations", id, len(shapes))
	return s, nil
}

// WithSession runs fn holding the lock of session id, resuming it from
// storage if it is not in memory
func (m *SessionManager) WithSession(ctx context.Context, id string, fn func(s *LiveSession) error) error {
	for {
		s, err := m.get(ctx, id)
		if err != nil {
			return err
		}
		s.mu.Lock()
		if s.evicted {
			s.mu.Unlock()
			continue
		}
		defer s.mu.Unlock()
		return fn(s)
	}
}

func (m *SessionManager) List(ctx context.Context) ([]*domain.Session, error) {
	return m.repo.List(ctx)
}

// Export flattens the session into a PNG, hands it to the export store and
// returns the encoded bytes
func (m *SessionManager) Export(ctx context.Context, id string) ([]byte, error) {
	var buf bytes.Buffer
	err := m.WithSession(ctx, id, func(s *LiveSession) error {
		return s.Engine.EncodePNG(&buf)
	})
	if err != nil {
		return nil, err
	}
	name, err := m.exports.WriteComposite(id, buf.Bytes())
	if err != nil {
		return nil, err
	}
	log.Printf("session: exported %s as %s", id, name)
	return buf.Bytes(), nil
}

// Delete forgets a session. The stored screenshot is kept since other
// sessions may share it.
func (m *SessionManager) Delete(ctx context.Context, id string) error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	stored, err := m.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	m.live.Delete(id)
	delete(m.parked, id)
	if err := m.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("while deleting session %s: %w", id, err)
	}
	log.Printf("session: deleted %s", id)
	return nil
}
