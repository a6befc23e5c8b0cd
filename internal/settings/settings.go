// Package settings holds the small per-guild mutable state that commands
// share. A record exists only while the bot occupies a voice channel in the
// guild; absence reads as every flag disabled.
package settings

import "sync"

type GuildSettings struct {
	LoopQueue bool
}

type Store struct {
	mu     sync.Mutex
	guilds map[string]*GuildSettings
}

func NewStore() *Store {
	return &Store{guilds: make(map[string]*GuildSettings)}
}

// GetOrCreate inserts default settings the first time a guild is seen.
func (s *Store) GetOrCreate(guildID string) GuildSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guilds[guildID]
	if !ok {
		g = &GuildSettings{}
		s.guilds[guildID] = g
	}
	return *g
}

// ToggleLoop atomically flips the loop flag and returns the new value. A
// guild without a record is left untouched and reads as false.
func (s *Store) ToggleLoop(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guilds[guildID]
	if !ok {
		return false
	}
	g.LoopQueue = !g.LoopQueue
	return g.LoopQueue
}

func (s *Store) LoopEnabled(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guilds[guildID]
	return ok && g.LoopQueue
}

// Remove drops the guild's record entirely. Called on every leave path.
func (s *Store) Remove(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.guilds, guildID)
}
