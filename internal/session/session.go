// Package session keeps chat conversations in memory.
package session

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/askfolio/internal/domain"
)

// Info describes a session without its history.
type Info struct {
	ID           string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

// Store is the session contract the chat service and HTTP handlers depend on.
type Store interface {
	GetOrCreate(ctx context.Context, id string) (string, error)
	Append(ctx context.Context, id string, msgs ...domain.Message) error
	History(ctx context.Context, id string) ([]domain.Message, error)
	Clear(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Info, error)
	List(ctx context.Context) ([]Info, error)
	Len() int
}

var _ Store = (*Memory)(nil)

type entry struct {
	mu        sync.Mutex
	id        string
	createdAt time.Time
	seq       uint64
	history   []domain.Message
}

// Memory is a process-local Store. Entries never expire.
// The map lock guards membership; each entry has its own lock for history.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	seq      uint64
	active   prometheus.Gauge
	now      func() time.Time
}

// NewMemory creates an empty store. active (optional) tracks the session count.
func NewMemory(active prometheus.Gauge) *Memory {
	return &Memory{
		sessions: make(map[string]*entry),
		active:   active,
		now:      time.Now,
	}
}

// GetOrCreate returns id when it is known, otherwise allocates a fresh uuid v4
// session with empty history. A client-supplied unknown id is not adopted.
func (m *Memory) GetOrCreate(_ context.Context, id string) (string, error) {
	if id != "" {
		m.mu.RLock()
		_, ok := m.sessions[id]
		m.mu.RUnlock()
		if ok {
			return id, nil
		}
	}

	newID := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.sessions[newID] = &entry{id: newID, createdAt: m.now().UTC(), seq: m.seq}
	m.updateGauge()
	return newID, nil
}

// Append adds msgs to the session history as one atomic step.
func (m *Memory) Append(_ context.Context, id string, msgs ...domain.Message) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.history = append(e.history, msgs...)
	e.mu.Unlock()
	return nil
}

// History returns a copy of the session history.
func (m *Memory) History(_ context.Context, id string) ([]domain.Message, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Message, len(e.history))
	copy(out, e.history)
	return out, nil
}

// Clear empties the history and keeps the session.
func (m *Memory) Clear(_ context.Context, id string) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.history = nil
	e.mu.Unlock()
	return nil
}

// Delete removes the session.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return notFound(id)
	}
	delete(m.sessions, id)
	m.updateGauge()
	return nil
}

// Get returns session metadata.
func (m *Memory) Get(_ context.Context, id string) (Info, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Info{}, err
	}
	return e.info(), nil
}

// List returns all sessions in creation order.
func (m *Memory) List(_ context.Context) ([]Info, error) {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	slices.SortFunc(entries, func(a, b *entry) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]Info, len(entries))
	for i, e := range entries {
		out[i] = e.info()
	}
	return out, nil
}

// Len returns the number of sessions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Memory) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, notFound(id)
	}
	return e, nil
}

// updateGauge must be called with m.mu held.
func (m *Memory) updateGauge() {
	if m.active != nil {
		m.active.Set(float64(len(m.sessions)))
	}
}

func (e *entry) info() Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Info{ID: e.id, CreatedAt: e.createdAt, MessageCount: len(e.history)}
}

func notFound(id string) error {
	return fmt.Errorf("session %q: %w", id, domain.ErrNotFound)
}
