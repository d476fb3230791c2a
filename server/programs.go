package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/jiki/lang"
	"github.com/chazu/jiki/vm"
)

// program is a server-side reference to source that compiled cleanly.
type program struct {
	id       string
	module   lang.Module
	source   string
	policy   *vm.Policy
	created  time.Time
	lastUsed time.Time
}

// ProgramStore maps opaque UUIDs to compiled programs so clients can run
// the same source many times without resending it.
type ProgramStore struct {
	mu       sync.Mutex
	programs map[string]*program
	now      func() time.Time
}

// NewProgramStore creates an empty program store.
func NewProgramStore() *ProgramStore {
	return &ProgramStore{
		programs: make(map[string]*program),
		now:      time.Now,
	}
}

// Create registers a program and returns its handle.
func (s *ProgramStore) Create(mod lang.Module, source string, policy *vm.Policy) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.programs[id] = &program{
		id:       id,
		module:   mod,
		source:   source,
		policy:   policy,
		created:  now,
		lastUsed: now,
	}
	return id
}

// Lookup retrieves a program and marks it used.
func (s *ProgramStore) Lookup(id string) (*program, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.programs[id]
	if !ok {
		return nil, false
	}
	p.lastUsed = s.now()
	return p, true
}

// Release removes a program. It reports whether the handle existed.
func (s *ProgramStore) Release(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.programs[id]
	delete(s.programs, id)
	return ok
}

// Len returns the number of live programs.
func (s *ProgramStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.programs)
}

// Sweep removes programs that haven't been used within the TTL.
func (s *ProgramStore) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	removed := 0
	for id, p := range s.programs {
		if p.lastUsed.Before(cutoff) {
			delete(s.programs, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *ProgramStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				if n := s.Sweep(ttl); n > 0 {
					log.Debugf("swept %d expired programs", n)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
