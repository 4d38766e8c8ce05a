package registration

import (
	"sync"
	"time"
)

type registryEntry struct {
	flow      *Flow
	createdAt time.Time
}

// Registry tracks live flows by id so the HTTP layer can poll and submit
// against them. Flows past their TTL are closed and dropped by Sweep.
type Registry struct {
	mu    sync.Mutex
	flows map[string]registryEntry
	ttl   time.Duration
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		flows: make(map[string]registryEntry),
		ttl:   ttl,
	}
}

func (r *Registry) Add(f *Flow) {
	r.mu.Lock()
	r.flows[f.ID] = registryEntry{flow: f, createdAt: time.Now()}
	r.mu.Unlock()
}

func (r *Registry) Get(id string) *Flow {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.flows[id]
	if !ok {
		return nil
	}
	return entry.flow
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	entry, ok := r.flows[id]
	delete(r.flows, id)
	r.mu.Unlock()

	if ok {
		entry.flow.Close()
	}
}

// Sweep closes and drops expired flows, returning how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	var expired []*Flow
	for id, entry := range r.flows {
		if now.Sub(entry.createdAt) > r.ttl {
			expired = append(expired, entry.flow)
			delete(r.flows, id)
		}
	}
	r.mu.Unlock()

	for _, f := range expired {
		f.Close()
	}
	return len(expired)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flows)
}
