// Package player holds the per-guild playback queue and the session loop that
// feeds tracks to the voice transport.
package player

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// preloadLead is how far before a track's end the next track gets prepared.
const preloadLead = 5 * time.Second

var (
	ErrNotConnected   = errors.New("not connected to a voice channel")
	ErrNothingPlaying = errors.New("nothing is playing")
)

// StreamFunc plays a prepared media URL on a voice connection until it ends
// or ctx is cancelled.
type StreamFunc func(ctx context.Context, vc *discordgo.VoiceConnection, streamURL string) error

// PrepareFunc resolves a source handle into a playable media URL.
type PrepareFunc func(ctx context.Context, sourceURL string) (string, error)

// TrackEndFunc observes a track leaving the queue after natural completion or
// a skip. Never called for Stop.
type TrackEndFunc func(guildID string, finished Track)

// Player is the queue and playback session for one guild. The queue is
// forward only: the head is popped when it finishes and never revisited.
type Player struct {
	GuildID string

	Stream     StreamFunc
	Prepare    PrepareFunc
	OnTrackEnd TrackEndFunc

	mu             sync.Mutex
	conn           *discordgo.VoiceConnection
	queue          []Track
	paused         bool
	playing        bool
	stopped        bool
	pauseRequested bool
	trackCancel    context.CancelFunc
}

func New(guildID string, stream StreamFunc, prepare PrepareFunc) *Player {
	return &Player{GuildID: guildID, Stream: stream, Prepare: prepare}
}

// Connect attaches a live voice connection. An existing session keeps running
// against the new connection's guild state only after a restart, so callers
// disconnect first when moving channels.
func (p *Player) Connect(vc *discordgo.VoiceConnection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn = vc
}

// Connected reports whether a voice connection is attached.
func (p *Player) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil
}

// ChannelID returns the attached voice channel, or "" when disconnected.
func (p *Player) ChannelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return ""
	}
	return p.conn.ChannelID
}

// Enqueue appends t and starts playback when the player is idle and not
// paused.
func (p *Player) Enqueue(t Track) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return ErrNotConnected
	}
	p.queue = append(p.queue, t)
	p.startLocked()
	return nil
}

// Pause halts playback and keeps the queue. The current head restarts from
// the beginning on Resume.
func (p *Player) Pause() error {
	p.mu.Lock()
	if p.conn == nil {
		p.mu.Unlock()
		return ErrNotConnected
	}
	p.paused = true
	var cancel context.CancelFunc
	if p.trackCancel != nil {
		// Mark the cancellation as a pause so the session loop keeps the
		// head even if Resume flips the flag back before it reacts.
		p.pauseRequested = true
		cancel = p.trackCancel
	}
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Resume clears the pause flag and restarts the head if nothing is streaming.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return ErrNotConnected
	}
	p.paused = false
	p.startLocked()
	return nil
}

// Skip ends the current track. The skipped head flows through the same
// track-end path as natural completion, then the next track starts.
func (p *Player) Skip() error {
	p.mu.Lock()
	if p.conn == nil {
		p.mu.Unlock()
		return ErrNotConnected
	}
	if !p.playing {
		p.mu.Unlock()
		return ErrNothingPlaying
	}
	cancel := p.trackCancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Stop clears the queue and ends playback without firing the track-end
// observer. The voice connection stays attached.
func (p *Player) Stop() error {
	p.mu.Lock()
	if p.conn == nil {
		p.mu.Unlock()
		return ErrNotConnected
	}
	p.queue = nil
	var cancel context.CancelFunc
	if p.playing {
		// stopped is consumed by the session loop, which also picks up
		// any tracks enqueued between here and there.
		p.stopped = true
		cancel = p.trackCancel
	}
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Disconnect stops playback and releases the voice connection.
func (p *Player) Disconnect() {
	_ = p.Stop()
	p.mu.Lock()
	vc := p.conn
	p.conn = nil
	p.mu.Unlock()
	if vc != nil {
		_ = vc.Speaking(false)
		_ = vc.Disconnect()
	}
}

// Paused reports the pause flag.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Playing reports whether a session loop is active.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Snapshot returns an ordered copy of the queue, head first. Later mutations
// of the player do not affect it.
func (p *Player) Snapshot() []Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Track, len(p.queue))
	copy(out, p.queue)
	return out
}

// startLocked launches the session loop when there is work and no loop is
// already running. Caller holds p.mu.
func (p *Player) startLocked() {
	if p.playing || p.paused || p.conn == nil || len(p.queue) == 0 {
		return
	}
	p.playing = true
	go p.run()
}

// run streams queue heads until the queue drains, the player pauses, or Stop
// is called. The stopped and pauseRequested markers are consumed here, never
// read back outside the loop, so a Resume or Enqueue racing the cancellation
// cannot change how the interrupted track is accounted for.
func (p *Player) run() {
	for {
		p.mu.Lock()
		if p.paused || p.conn == nil || len(p.queue) == 0 {
			p.stopped = false
			p.playing = false
			p.mu.Unlock()
			return
		}
		p.stopped = false
		p.pauseRequested = false
		head := p.queue[0]
		conn := p.conn
		ctx, cancel := context.WithCancel(context.Background())
		p.trackCancel = cancel
		p.mu.Unlock()

		preload := time.AfterFunc(preloadDelay(head.Duration), func() {
			p.preloadNext(ctx)
		})

		streamURL := head.URL
		var err error
		if streamURL == "" {
			streamURL, err = p.Prepare(ctx, head.SourceURL)
		}
		if err == nil {
			err = p.Stream(ctx, conn, streamURL)
		}
		preload.Stop()
		cancel()

		p.mu.Lock()
		p.trackCancel = nil
		if p.stopped {
			// Stop already cleared the queue; anything enqueued since is
			// fresh work for the next iteration. No track-end hook.
			p.stopped = false
			p.pauseRequested = false
			p.mu.Unlock()
			continue
		}
		if p.pauseRequested {
			// Head stays queued; the next iteration exits paused, or
			// restarts it when Resume has already cleared the flag.
			p.pauseRequested = false
			p.mu.Unlock()
			continue
		}
		if len(p.queue) > 0 {
			p.queue = p.queue[1:]
		}
		hook := p.OnTrackEnd
		p.mu.Unlock()

		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("track playback failed",
				"guildID", p.GuildID, "title", head.Title, "err", err)
		}
		if hook != nil {
			go hook(p.GuildID, head)
		}
	}
}

// preloadDelay is the time after a track starts at which the next track gets
// prepared: 5s before the end, or the full duration for very short tracks.
func preloadDelay(d time.Duration) time.Duration {
	if d <= preloadLead {
		return d
	}
	return d - preloadLead
}

// preloadNext prepares the second queue entry so the transition to it does
// not stall on resolution.
func (p *Player) preloadNext(ctx context.Context) {
	p.mu.Lock()
	if len(p.queue) < 2 || p.queue[1].URL != "" {
		p.mu.Unlock()
		return
	}
	next := p.queue[1]
	p.mu.Unlock()

	streamURL, err := p.Prepare(ctx, next.SourceURL)
	if err != nil {
		slog.Debug("preload failed", "guildID", p.GuildID, "title", next.Title, "err", err)
		return
	}

	p.mu.Lock()
	if len(p.queue) >= 2 && p.queue[1].SourceURL == next.SourceURL && p.queue[1].URL == "" {
		p.queue[1].URL = streamURL
	}
	p.mu.Unlock()
}
