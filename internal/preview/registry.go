package preview

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// Registry is an append-only store of generated code addressed by preview id.
type Registry struct {
	next atomic.Uint64
	mu   sync.RWMutex
	code map[string]string
}

// NewRegistry returns an empty registry whose first id is "0".
func NewRegistry() *Registry {
	return &Registry{code: make(map[string]string)}
}

// Store saves code under a fresh id and returns it.
func (r *Registry) Store(code string) string {
	id := strconv.FormatUint(r.next.Add(1)-1, 10)

	r.mu.Lock()
	r.code[id] = code
	r.mu.Unlock()

	return id
}

// Get returns the code stored under id.
func (r *Registry) Get(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.code[id]
	return code, ok
}

// Len returns the number of stored previews.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.code)
}
