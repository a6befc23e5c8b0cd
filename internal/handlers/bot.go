// Package handlers wires gateway events to commands: slash interactions,
// legacy "!" messages, queue pagination buttons, and the auto-leave watcher.
package handlers

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/quaverbot/quaver/internal/config"
	"github.com/quaverbot/quaver/internal/player"
	"github.com/quaverbot/quaver/internal/repository"
	"github.com/quaverbot/quaver/internal/resolver"
	"github.com/quaverbot/quaver/internal/settings"
)

type Bot struct {
	cfg      *config.Config
	repo     *repository.Repo
	settings *settings.Store
	players  *player.Manager
	resolver *resolver.Resolver
}

func NewBot(cfg *config.Config, repo *repository.Repo, st *settings.Store, pm *player.Manager, res *resolver.Resolver) *Bot {
	return &Bot{cfg: cfg, repo: repo, settings: st, players: pm, resolver: res}
}

// Run opens the gateway session and blocks until ctx is cancelled. On
// shutdown every active voice session is disconnected before the session
// closes.
func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent

	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("connected", "user", s.State.User.Username)
		if err := b.registerCommands(s); err != nil {
			slog.Error("register global commands", "err", err)
			return
		}
		slog.Info("registered global application commands")
	})

	dg.AddHandler(b.handleInteraction)
	dg.AddHandler(b.handleMessage)
	dg.AddHandler(b.handleVoiceStateUpdate)

	if err := dg.Open(); err != nil {
		return err
	}
	defer dg.Close()

	<-ctx.Done()
	slog.Info("shutting down, leaving voice channels")
	b.players.DisconnectAll()
	return nil
}

// handleVoiceStateUpdate leaves a voice channel once the bot is the only
// occupant left.
func (b *Bot) handleVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	p := b.players.Peek(vs.GuildID)
	if p == nil || !p.Connected() {
		return
	}
	g, err := s.State.Guild(vs.GuildID)
	if err != nil || g == nil {
		return
	}
	if occupants(g, p.ChannelID()) != 1 {
		return
	}
	slog.Info("alone in voice channel, leaving", "guildID", vs.GuildID)
	p.Disconnect()
	b.settings.Remove(vs.GuildID)
}

// occupants counts voice states in a channel, the bot's own included.
func occupants(g *discordgo.Guild, channelID string) int {
	if channelID == "" {
		return 0
	}
	n := 0
	for _, vs := range g.VoiceStates {
		if vs != nil && vs.ChannelID == channelID {
			n++
		}
	}
	return n
}
