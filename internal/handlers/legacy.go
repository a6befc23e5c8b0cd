package handlers

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/quaverbot/quaver/internal/player"
	"github.com/quaverbot/quaver/internal/ui"
)

// deleteDelay paces bulk message deletion to stay clear of rate limits.
const deleteDelay = 5 * time.Second

// maxDeleteCount bounds how many preceding messages one delete command may
// remove.
const maxDeleteCount = 100

// handleMessage dispatches legacy "!" text commands.
func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if !strings.HasPrefix(m.Content, "!") {
		return
	}
	fields := strings.Fields(m.Content)
	cmd := strings.TrimPrefix(fields[0], "!")
	slog.Debug("message command", "guildID", m.GuildID, "userID", m.Author.ID, "command", cmd)

	switch cmd {
	case "join":
		go b.msgSimple(s, m, func() (string, error) {
			_, err := b.joinVoice(s, m.GuildID, m.Author.ID)
			return "Bin da Brudi!", err
		})
	case "leave":
		go b.msgSimple(s, m, func() (string, error) {
			if err := b.withPlayer(m.GuildID, func(p *player.Player) error {
				p.Disconnect()
				return nil
			}); err != nil {
				return "", err
			}
			b.settings.Remove(m.GuildID)
			return "Left the voice channel.", nil
		})
	case "play":
		query := strings.TrimSpace(strings.TrimPrefix(m.Content, "!play"))
		go b.msgPlay(s, m, query)
	case "pause":
		go b.msgSimple(s, m, func() (string, error) {
			return "Paused the track", b.withPlayer(m.GuildID, (*player.Player).Pause)
		})
	case "resume":
		go b.msgSimple(s, m, func() (string, error) {
			return "Resumed the track", b.withPlayer(m.GuildID, (*player.Player).Resume)
		})
	case "stop":
		go b.msgSimple(s, m, func() (string, error) {
			return "Stopped the track and cleared the queue", b.withPlayer(m.GuildID, (*player.Player).Stop)
		})
	case "skip":
		go b.msgSimple(s, m, func() (string, error) {
			return "Skipped the next track", b.withPlayer(m.GuildID, (*player.Player).Skip)
		})
	case "loop":
		go b.msgSimple(s, m, func() (string, error) {
			if b.settings.ToggleLoop(m.GuildID) {
				return "I'm now looping the current queue!", nil
			}
			return "I'm not looping anymore!", nil
		})
	case "queue":
		go b.msgQueue(s, m)
	case "delete":
		go b.msgDelete(s, m)
	}
}

func (b *Bot) msgSimple(s *discordgo.Session, m *discordgo.MessageCreate, run func() (string, error)) {
	content, err := run()
	if err != nil {
		content = err.Error()
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, content); err != nil {
		slog.Warn("message reply failed", "guildID", m.GuildID, "err", err)
	}
}

func (b *Bot) msgPlay(s *discordgo.Session, m *discordgo.MessageCreate, query string) {
	if query == "" {
		b.msgSimple(s, m, func() (string, error) { return "Usage: !play <url or search terms>", nil })
		return
	}
	notify := func(e *discordgo.MessageEmbed) {
		if _, err := s.ChannelMessageSendEmbed(m.ChannelID, e); err != nil {
			slog.Warn("play message reply failed", "guildID", m.GuildID, "err", err)
		}
	}
	notify(ui.Pending("Adding track(s) to the queue: " + query))
	b.runPlay(s, m.GuildID, m.Author, query, notify)
}

func (b *Bot) msgQueue(s *discordgo.Session, m *discordgo.MessageCreate) {
	snapshot := b.queueSnapshot(m.GuildID)
	nPages := ui.Pages(len(snapshot))
	if _, err := s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{ui.QueueEmbed(snapshot, 0)},
		Components: ui.QueueComponents(0, nPages),
	}); err != nil {
		slog.Warn("queue message reply failed", "guildID", m.GuildID, "err", err)
	}
}

// msgDelete removes the invoking message plus the N messages before it.
// Admin only, N capped, paced one deletion per delay tick.
func (b *Bot) msgDelete(s *discordgo.Session, m *discordgo.MessageCreate) {
	if !b.isAdmin(m.Author.ID) {
		return
	}
	n, ok := parseDeleteCount(m.Content)
	if !ok {
		return
	}

	messages, err := s.ChannelMessages(m.ChannelID, n, m.ID, "", "")
	if err != nil {
		slog.Warn("delete: listing messages failed", "guildID", m.GuildID, "err", err)
		return
	}
	if err := s.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
		slog.Warn("delete: removing command message failed", "guildID", m.GuildID, "err", err)
	}
	for _, msg := range messages {
		slog.Debug("deleting message", "guildID", m.GuildID, "messageID", msg.ID, "author", msg.Author.Username)
		if err := s.ChannelMessageDelete(m.ChannelID, msg.ID); err != nil {
			slog.Warn("delete: removing message failed", "guildID", m.GuildID, "messageID", msg.ID, "err", err)
		}
		time.Sleep(deleteDelay)
	}
}

func (b *Bot) isAdmin(userID string) bool {
	return userID != "" && userID == b.cfg.AdminID
}

// parseDeleteCount reads the trailing count of a delete command. A missing or
// unparsable count defaults to 1; zero and counts above the cap reject the
// command. Rejection matters: a zero limit would make the history fetch fall
// back to the API's default page size instead of fetching nothing.
func parseDeleteCount(content string) (int, bool) {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return 1, true
	}
	n, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil || n < 0 {
		n = 1
	}
	if n == 0 || n > maxDeleteCount {
		return 0, false
	}
	return n, true
}
