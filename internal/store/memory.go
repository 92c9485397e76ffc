package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implementa TTLStore con mapas en proceso. Es el fallback
// cuando no hay Redis configurado: seguro dentro de un único proceso,
// NO sustituye al backend compartido en despliegues multi-instancia.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	sets    map[string]*memorySet
	now     func() time.Time
}

type memoryEntry struct {
	value     string
	count     int64
	expiresAt time.Time
}

type memorySet struct {
	members   map[string]struct{}
	expiresAt time.Time
}

// NewMemoryStore construye el fallback en proceso. El estado es propiedad
// de la instancia devuelta; no hay mapas a nivel de paquete.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		sets:    make(map[string]*memorySet),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock reemplaza la fuente de tiempo. Solo para tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || !now.Before(e.expiresAt) {
		e = &memoryEntry{expiresAt: now.Add(ttl)}
		s.entries[key] = e
	}
	e.count++
	return e.count, e.expiresAt.Sub(now), nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &memoryEntry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) AddToSet(_ context.Context, key, member string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	set, ok := s.sets[key]
	if !ok || !now.Before(set.expiresAt) {
		set = &memorySet{members: make(map[string]struct{})}
		s.sets[key] = set
	}
	set.members[member] = struct{}{}
	set.expiresAt = now.Add(ttl)
	return nil
}

func (s *MemoryStore) SetMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(set.expiresAt) {
		delete(s.sets, key)
		return nil, nil
	}
	members := make([]string, 0, len(set.members))
	for m := range set.members {
		members = append(members, m)
	}
	return members, nil
}

func (s *MemoryStore) RemoveFromSet(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(set.members, m)
	}
	return nil
}
