package server

import (
	"testing"
	"time"

	"github.com/chazu/jiki/lang"
	"github.com/chazu/jiki/vm"
)

func TestProgramStore(t *testing.T) {
	mod, err := lang.Lookup("js")
	if err != nil {
		t.Fatal(err)
	}
	s := NewProgramStore()
	p := vm.DefaultPolicy()

	a := s.Create(mod, "let a = 1;", &p)
	b := s.Create(mod, "let b = 2;", &p)
	if a == b {
		t.Fatal("handles are not unique")
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}

	prog, ok := s.Lookup(a)
	if !ok || prog.source != "let a = 1;" || prog.module.Dialect() != lang.JavaScript {
		t.Errorf("Lookup(%s) = %+v, %v", a, prog, ok)
	}
	if !s.Release(a) || s.Release(a) {
		t.Error("Release should succeed once")
	}
	if _, ok := s.Lookup(a); ok {
		t.Error("released program still found")
	}
}

func TestProgramStoreSweep(t *testing.T) {
	mod, _ := lang.Lookup("py")
	s := NewProgramStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	stale := s.Create(mod, "x = 1", nil)
	now = now.Add(20 * time.Minute)
	fresh := s.Create(mod, "y = 2", nil)
	now = now.Add(15 * time.Minute)

	if n := s.Sweep(30 * time.Minute); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if _, ok := s.Lookup(stale); ok {
		t.Error("stale program survived the sweep")
	}
	if _, ok := s.Lookup(fresh); !ok {
		t.Error("fresh program was swept")
	}

	// Lookup refreshed fresh, so it survives another 30 minutes.
	now = now.Add(29 * time.Minute)
	if n := s.Sweep(30 * time.Minute); n != 0 {
		t.Errorf("Sweep removed %d, want 0", n)
	}
}

func TestProgramStoreSweeper(t *testing.T) {
	mod, _ := lang.Lookup("jiki")
	s := NewProgramStore()
	s.Create(mod, "set x to 1", nil)

	stop := s.StartSweeper(time.Millisecond, 0)
	defer stop()

	deadline := time.Now().Add(time.Second)
	for s.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if s.Len() != 0 {
		t.Error("sweeper did not remove the expired program")
	}
	stop()
}
