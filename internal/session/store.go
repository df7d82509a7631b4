package session

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Store keeps one Coordinator per session ID and forgets sessions that stay
// idle longer than the TTL.
type Store struct {
	mu    sync.Mutex
	c     *cache.Cache
	newFn func() *Coordinator
}

func NewStore(idle time.Duration, newFn func() *Coordinator) *Store {
	return &Store{c: cache.New(idle, idle/2+time.Second), newFn: newFn}
}

// Get returns the coordinator of session id, creating it on first use.
// Every call restarts the idle timer.
func (s *Store) Get(id string) *Coordinator {
	s.mu.Lock()
	defer s.mu.Unlock()
	var co *Coordinator
	if v, ok := s.c.Get(id); ok {
		co = v.(*Coordinator)
	} else {
		co = s.newFn()
	}
	s.c.Set(id, co, cache.DefaultExpiration)
	return co
}

// MarkAllStale requests a reload in every live session and returns how many
// there were.
func (s *Store) MarkAllStale() int {
	items := s.c.Items()
	for _, it := range items {
		it.Object.(*Coordinator).RequestReload()
	}
	return len(items)
}

// Len is the number of live sessions.
func (s *Store) Len() int {
	return s.c.ItemCount()
}
