package player

import (
	"context"
	"log/slog"

	"github.com/quaverbot/quaver/internal/settings"
)

// ResolveTrackFunc re-resolves a finished track's source into a fresh,
// playable Track.
type ResolveTrackFunc func(ctx context.Context, sourceURL string) (Track, error)

// LoopController re-enqueues finished tracks at the tail of the queue for
// guilds with looping enabled. Each re-enqueued track is a new instance with
// a freshly resolved media URL; the queue itself stays forward only.
type LoopController struct {
	settings *settings.Store
	players  *Manager
	resolve  ResolveTrackFunc
}

func NewLoopController(st *settings.Store, pm *Manager, resolve ResolveTrackFunc) *LoopController {
	return &LoopController{settings: st, players: pm, resolve: resolve}
}

// HandleTrackEnd is the manager's track-end hook. Re-resolution failures are
// logged and the track is dropped; playback of the rest of the queue is never
// disturbed.
func (lc *LoopController) HandleTrackEnd(guildID string, finished Track) {
	if !lc.settings.LoopEnabled(guildID) {
		return
	}
	p := lc.players.Peek(guildID)
	if p == nil || !p.Connected() {
		return
	}

	t, err := lc.resolve(context.Background(), finished.SourceURL)
	if err != nil {
		slog.Debug("loop re-resolution failed",
			"guildID", guildID, "source", finished.SourceURL, "err", err)
		return
	}
	t.RequestedBy = finished.RequestedBy
	t.RequestedIn = finished.RequestedIn

	if err := p.Enqueue(t); err != nil {
		slog.Debug("loop re-enqueue failed", "guildID", guildID, "err", err)
	}
}
