package player

import "sync"

// Manager keys players by guild and wires each new player to the shared
// stream, prepare, and track-end plumbing.
type Manager struct {
	mu         sync.Mutex
	players    map[string]*Player
	stream     StreamFunc
	prepare    PrepareFunc
	onTrackEnd TrackEndFunc
}

func NewManager(stream StreamFunc, prepare PrepareFunc) *Manager {
	return &Manager{
		players: make(map[string]*Player),
		stream:  stream,
		prepare: prepare,
	}
}

// SetTrackEndHook installs the observer fired when any player finishes or
// skips a track. Wired once at startup, before the gateway opens.
func (m *Manager) SetTrackEndHook(fn TrackEndFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTrackEnd = fn
}

// Get returns the guild's player, creating it on first use.
func (m *Manager) Get(guildID string) *Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[guildID]; ok {
		return p
	}
	p := New(guildID, m.stream, m.prepare)
	p.OnTrackEnd = m.fireTrackEnd
	m.players[guildID] = p
	return p
}

// Peek returns the guild's player or nil, never creating one.
func (m *Manager) Peek(guildID string) *Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.players[guildID]
}

// DisconnectAll tears down every active voice session. Shutdown path.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	players := make([]*Player, 0, len(m.players))
	for _, p := range m.players {
		players = append(players, p)
	}
	m.mu.Unlock()
	for _, p := range players {
		if p.Connected() {
			p.Disconnect()
		}
	}
}

func (m *Manager) fireTrackEnd(guildID string, finished Track) {
	m.mu.Lock()
	fn := m.onTrackEnd
	m.mu.Unlock()
	if fn != nil {
		fn(guildID, finished)
	}
}
