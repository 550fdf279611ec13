// Package store keeps recently surfaced threats in memory, suppressing
// duplicates reported by repeated scans of the same content.
package store

import (
	"container/ring"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"warden/internal/core"
)

// MemoryStore is a thread-safe ring buffer of threats with LRU deduplication
type MemoryStore struct {
	mu         sync.RWMutex
	threats    *ring.Ring
	dedupe     *lru.Cache[string, string] // dedupe key -> threat ID
	maxThreats int
}

// NewMemoryStore creates a store holding up to maxThreats threats and
// remembering dedupeCap keys.
func NewMemoryStore(maxThreats, dedupeCap int) *MemoryStore {
	if maxThreats <= 0 {
		maxThreats = 1
	}
	if dedupeCap <= 0 {
		dedupeCap = maxThreats
	}
	dedupeCache, _ := lru.New[string, string](dedupeCap)

	return &MemoryStore{
		threats:    ring.New(maxThreats),
		dedupe:     dedupeCache,
		maxThreats: maxThreats,
	}
}

// Add stores t unless an equivalent threat was already seen. It reports
// whether t was added.
func (s *MemoryStore) Add(t core.Threat) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupeKey(t)
	if _, exists := s.dedupe.Get(key); exists {
		return false
	}
	s.dedupe.Add(key, t.ID)

	if old, ok := s.threats.Value.(core.Threat); ok {
		// overwritten entries may be reported again
		s.dedupe.Remove(dedupeKey(old))
	}
	s.threats.Value = t
	s.threats = s.threats.Next()
	return true
}

// All returns the stored threats, oldest first.
func (s *MemoryStore) All() []core.Threat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Threat
	s.threats.Do(func(value any) {
		if t, ok := value.(core.Threat); ok {
			out = append(out, t)
		}
	})
	return out
}

// Get returns the threat with the given ID.
func (s *MemoryStore) Get(id string) (core.Threat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := s.find(id)
	if r == nil {
		return core.Threat{}, false
	}
	return r.Value.(core.Threat), true
}

// Remove drops a threat, typically once it has been remediated. The same
// content may be reported again afterwards.
func (s *MemoryStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.find(id)
	if r == nil {
		return false
	}
	s.dedupe.Remove(dedupeKey(r.Value.(core.Threat)))
	r.Value = nil
	return true
}

// Len returns the number of stored threats.
func (s *MemoryStore) Len() int {
	return len(s.All())
}

func (s *MemoryStore) find(id string) *ring.Ring {
	var found *ring.Ring
	r := s.threats
	for i := 0; i < s.maxThreats; i++ {
		if t, ok := r.Value.(core.Threat); ok && t.ID == id {
			found = r
			break
		}
		r = r.Next()
	}
	return found
}

func dedupeKey(t core.Threat) string {
	return string(t.Source) + ":" + t.Path + ":" + t.Verdict.SHA256
}
