package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quaverbot/quaver/internal/settings"
)

func TestLoop_DisabledLeavesQueueAlone(t *testing.T) {
	fs := newFakeStream()
	m := NewManager(fs.fn, passthroughPrepare)
	st := settings.NewStore()
	lc := NewLoopController(st, m, func(ctx context.Context, sourceURL string) (Track, error) {
		t.Fatal("resolve called with looping disabled")
		return Track{}, nil
	})
	m.SetTrackEndHook(lc.HandleTrackEnd)

	p := m.Get("g1")
	p.Connect(testConn())
	st.GetOrCreate("g1")

	_ = p.Enqueue(Track{Title: "one", URL: "u1", SourceURL: "src1"})
	waitStarted(t, fs)
	fs.release <- nil

	waitFor(t, "queue drain", func() bool { return len(p.Snapshot()) == 0 && !p.Playing() })
}

func TestLoop_EnabledReenqueuesFreshTrack(t *testing.T) {
	fs := newFakeStream()
	m := NewManager(fs.fn, passthroughPrepare)
	st := settings.NewStore()
	lc := NewLoopController(st, m, func(ctx context.Context, sourceURL string) (Track, error) {
		return Track{Title: "one (fresh)", URL: "fresh://" + sourceURL, SourceURL: sourceURL}, nil
	})
	m.SetTrackEndHook(lc.HandleTrackEnd)

	p := m.Get("g1")
	p.Connect(testConn())
	st.GetOrCreate("g1")
	if !st.ToggleLoop("g1") {
		t.Fatal("toggle should enable looping")
	}

	_ = p.Enqueue(Track{Title: "one", URL: "u1", SourceURL: "src1", RequestedBy: "user9"})
	waitStarted(t, fs)
	fs.release <- nil

	// Exactly one re-resolved instance lands at the tail and starts playing.
	if got := waitStarted(t, fs); got != "fresh://src1" {
		t.Fatalf("second stream url = %q, want re-resolved", got)
	}
	snap := p.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("queue len = %d, want 1", len(snap))
	}
	if snap[0].Title != "one (fresh)" || snap[0].RequestedBy != "user9" {
		t.Errorf("re-enqueued track = %+v", snap[0])
	}
}

func TestLoop_ResolveFailureDropsTrack(t *testing.T) {
	fs := newFakeStream()
	m := NewManager(fs.fn, passthroughPrepare)
	st := settings.NewStore()
	lc := NewLoopController(st, m, func(ctx context.Context, sourceURL string) (Track, error) {
		return Track{}, errors.New("extraction failed")
	})
	m.SetTrackEndHook(lc.HandleTrackEnd)

	p := m.Get("g1")
	p.Connect(testConn())
	st.GetOrCreate("g1")
	st.ToggleLoop("g1")

	_ = p.Enqueue(Track{Title: "one", URL: "u1", SourceURL: "src1"})
	waitStarted(t, fs)
	fs.release <- nil

	waitFor(t, "queue drain", func() bool { return len(p.Snapshot()) == 0 && !p.Playing() })
	select {
	case url := <-fs.started:
		t.Fatalf("unexpected stream after failed re-resolution: %q", url)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestManager_GetIsIdempotent(t *testing.T) {
	m := NewManager(newFakeStream().fn, passthroughPrepare)
	a := m.Get("g1")
	b := m.Get("g1")
	if a != b {
		t.Error("Get returned distinct players for one guild")
	}
	if m.Peek("g2") != nil {
		t.Error("Peek should not create players")
	}
}
