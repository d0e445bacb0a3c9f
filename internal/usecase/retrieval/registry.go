package retrieval

import (
	"sync"

	"github.com/kailas-cloud/askfolio/internal/domain"
)

// Collection is one searchable collection as loaded at startup.
type Collection struct {
	Name      string
	Header    string
	Index     domain.VectorIndex
	Available bool
	Reason    string // why it is unavailable, empty otherwise
}

// Registry holds the configured collections in order with their availability flags.
type Registry struct {
	mu    sync.RWMutex
	order []string
	byKey map[string]*Collection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]*Collection)}
}

// Register adds a collection that loaded. Re-registering a name replaces it in place.
func (r *Registry) Register(name, header string, idx domain.VectorIndex) {
	r.put(&Collection{Name: name, Header: header, Index: idx, Available: idx != nil})
}

// RegisterUnavailable records a configured collection that failed to load.
func (r *Registry) RegisterUnavailable(name, header string, reason error) {
	c := &Collection{Name: name, Header: header}
	if reason != nil {
		c.Reason = reason.Error()
	}
	r.put(c)
}

func (r *Registry) put(c *Collection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byKey[c.Name]; !ok {
		r.order = append(r.order, c.Name)
	}
	r.byKey[c.Name] = c
}

// Collections returns a snapshot in registration order.
func (r *Registry) Collections() []Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Collection, len(r.order))
	for i, name := range r.order {
		out[i] = *r.byKey[name]
	}
	return out
}

// Get returns the named collection.
func (r *Registry) Get(name string) (Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byKey[name]
	if !ok {
		return Collection{}, false
	}
	return *c, true
}

// Status maps each collection name to whether it is searchable.
func (r *Registry) Status() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(r.byKey))
	for name, c := range r.byKey {
		out[name] = c.Available
	}
	return out
}
