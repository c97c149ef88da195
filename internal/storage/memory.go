package storage

import (
	"encoding/json"
	"sync"
)

// MemStore is an in-process Store used by tests and as the explicit
// no-persistence fallback. It honors the same envelope and notification
// semantics as FileStore.
type MemStore struct {
	mu      sync.Mutex
	values  map[string]json.RawMessage
	subs    map[int]func(Change)
	nextSub int

	// FailWrites makes every Set report false, simulating an unavailable or
	// full backend.
	FailWrites bool
}

func NewMem() *MemStore {
	return &MemStore{
		values: make(map[string]json.RawMessage),
		subs:   make(map[int]func(Change)),
	}
}

func (s *MemStore) Get(key string, out any) bool {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (s *MemStore) Set(key string, v any) bool {
	s.mu.Lock()
	if s.FailWrites {
		s.mu.Unlock()
		return false
	}
	raw, err := json.Marshal(v)
	if err != nil {
		s.mu.Unlock()
		return false
	}
	s.values[key] = raw
	s.mu.Unlock()
	s.notify(Change{Key: key})
	return true
}

func (s *MemStore) Remove(key string) {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	s.notify(Change{Key: key, Removed: true})
}

func (s *MemStore) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *MemStore) Close() error { return nil }

// Inject stores a raw payload directly, bypassing marshaling. Tests use it to
// plant malformed or externally written values.
func (s *MemStore) Inject(key string, raw json.RawMessage) {
	s.mu.Lock()
	s.values[key] = raw
	s.mu.Unlock()
	s.notify(Change{Key: key, External: true})
}

func (s *MemStore) notify(c Change) {
	s.mu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}
