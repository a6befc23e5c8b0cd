package settings

import (
	"sync"
	"testing"
)

func TestLoopEnabled_AbsentGuild(t *testing.T) {
	s := NewStore()
	if s.LoopEnabled("nope") {
		t.Error("absent guild should read as loop disabled")
	}
}

func TestToggleLoop(t *testing.T) {
	s := NewStore()
	s.GetOrCreate("g1")

	if on := s.ToggleLoop("g1"); !on {
		t.Error("first toggle should enable loop")
	}
	if !s.LoopEnabled("g1") {
		t.Error("read after toggle should match toggle result")
	}
	if on := s.ToggleLoop("g1"); on {
		t.Error("second toggle should disable loop")
	}
	if s.LoopEnabled("g1") {
		t.Error("two toggles should return to the original state")
	}
}

func TestToggleLoop_NoRecord(t *testing.T) {
	s := NewStore()
	if on := s.ToggleLoop("missing"); on {
		t.Error("toggle without record should report false")
	}
	if s.LoopEnabled("missing") {
		t.Error("toggle without record must not create one that reads enabled")
	}
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	s := NewStore()
	s.GetOrCreate("g1")
	s.ToggleLoop("g1")
	if got := s.GetOrCreate("g1"); !got.LoopQueue {
		t.Error("GetOrCreate must not reset existing settings")
	}
}

func TestRemove(t *testing.T) {
	s := NewStore()
	s.GetOrCreate("g1")
	s.ToggleLoop("g1")
	s.Remove("g1")
	if s.LoopEnabled("g1") {
		t.Error("removed guild should read as disabled")
	}
}

func TestToggleLoop_Concurrent(t *testing.T) {
	s := NewStore()
	s.GetOrCreate("g1")

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			s.ToggleLoop("g1")
		}()
	}
	wg.Wait()

	// An even number of toggles must land back on disabled.
	if s.LoopEnabled("g1") {
		t.Error("even toggle count should leave loop disabled")
	}
}
