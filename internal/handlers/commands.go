package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/quaverbot/quaver/internal/player"
	"github.com/quaverbot/quaver/internal/repository"
	"github.com/quaverbot/quaver/internal/resolver"
	"github.com/quaverbot/quaver/internal/ui"
)

func (b *Bot) registerCommands(s *discordgo.Session) error {
	cmds := []*discordgo.ApplicationCommand{
		{Name: "join", Description: "join your voice channel"},
		{Name: "leave", Description: "leave the voice channel"},
		{
			Name:        "play",
			Description: "add a track or playlist to the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "query", Description: "URL or search terms", Type: discordgo.ApplicationCommandOptionString, Required: true},
			},
		},
		{Name: "pause", Description: "pause playback"},
		{Name: "resume", Description: "resume playback"},
		{Name: "stop", Description: "stop playback and clear the queue"},
		{Name: "skip", Description: "skip the current track"},
		{Name: "loop", Description: "toggle looping of the queue"},
		{Name: "queue", Description: "show the queue"},
	}
	for _, c := range cmds {
		if _, err := s.ApplicationCommandCreate(b.cfg.AppID, "", c); err != nil {
			return fmt.Errorf("create command %s: %w", c.Name, err)
		}
		slog.Debug("registered command", "command", c.Name)
	}
	return nil
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		slog.Debug("interaction: application command",
			"guildID", i.GuildID, "userID", userIDOf(i), "command", data.Name)
		if i.GuildID == "" {
			b.reply(s, i, "This command only works in a server.", true)
			return
		}
		switch data.Name {
		case "join":
			go b.cmdJoin(s, i)
		case "leave":
			go b.cmdLeave(s, i)
		case "play":
			go b.cmdPlay(s, i, optionString(data, "query"))
		case "pause":
			go b.cmdPause(s, i)
		case "resume":
			go b.cmdResume(s, i)
		case "stop":
			go b.cmdStop(s, i)
		case "skip":
			go b.cmdSkip(s, i)
		case "loop":
			go b.cmdLoop(s, i)
		case "queue":
			go b.cmdQueue(s, i)
		default:
			slog.Debug("unknown command", "name", data.Name, "guildID", i.GuildID)
		}
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		if strings.HasPrefix(data.CustomID, "page:") {
			go b.handleQueuePage(s, i, data.CustomID)
		}
	}
}

func (b *Bot) cmdJoin(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if _, err := b.joinVoice(s, i.GuildID, userIDOf(i)); err != nil {
		b.reply(s, i, err.Error(), true)
		return
	}
	b.reply(s, i, "Bin da Brudi!", true)
}

func (b *Bot) cmdLeave(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p := b.players.Peek(i.GuildID)
	if p == nil || !p.Connected() {
		b.reply(s, i, "I'm not in a voice channel.", true)
		return
	}
	p.Disconnect()
	b.settings.Remove(i.GuildID)
	b.reply(s, i, "Left the voice channel.", false)
}

func (b *Bot) cmdPause(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := b.withPlayer(i.GuildID, (*player.Player).Pause); err != nil {
		b.reply(s, i, err.Error(), true)
		return
	}
	b.reply(s, i, "Paused the track", false)
}

func (b *Bot) cmdResume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := b.withPlayer(i.GuildID, (*player.Player).Resume); err != nil {
		b.reply(s, i, err.Error(), true)
		return
	}
	b.reply(s, i, "Resumed the track", false)
}

func (b *Bot) cmdStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := b.withPlayer(i.GuildID, (*player.Player).Stop); err != nil {
		b.reply(s, i, err.Error(), true)
		return
	}
	b.reply(s, i, "Stopped the track and cleared the queue", false)
}

func (b *Bot) cmdSkip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := b.withPlayer(i.GuildID, (*player.Player).Skip); err != nil {
		b.reply(s, i, err.Error(), true)
		return
	}
	b.reply(s, i, "Skipped the next track", false)
}

func (b *Bot) cmdLoop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if b.settings.ToggleLoop(i.GuildID) {
		b.reply(s, i, "I'm now looping the current queue!", false)
		return
	}
	b.reply(s, i, "I'm not looping anymore!", false)
}

func (b *Bot) cmdQueue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	snapshot := b.queueSnapshot(i.GuildID)
	nPages := ui.Pages(len(snapshot))
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{ui.QueueEmbed(snapshot, 0)},
			Components: ui.QueueComponents(0, nPages),
		},
	}); err != nil {
		slog.Warn("queue reply failed", "guildID", i.GuildID, "err", err)
	}
}

// handleQueuePage re-renders the queue message at the page carried in the
// button's custom id, against a fresh snapshot.
func (b *Bot) handleQueuePage(s *discordgo.Session, i *discordgo.InteractionCreate, customID string) {
	page, err := strconv.Atoi(strings.TrimPrefix(customID, "page:"))
	if err != nil {
		page = 0
	}
	snapshot := b.queueSnapshot(i.GuildID)
	nPages := ui.Pages(len(snapshot))
	page = ui.ClampPage(page, nPages)

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{ui.QueueEmbed(snapshot, page)},
			Components: ui.QueueComponents(page, nPages),
		},
	}); err != nil {
		slog.Warn("queue page update failed", "guildID", i.GuildID, "err", err)
	}
}

func (b *Bot) cmdPlay(s *discordgo.Session, i *discordgo.InteractionCreate, query string) {
	b.replyEmbed(s, i, ui.Pending("Adding track(s) to the queue: "+query))
	notify := func(e *discordgo.MessageEmbed) {
		if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
			Embeds: &[]*discordgo.MessageEmbed{e},
		}); err != nil {
			slog.Warn("play response edit failed", "guildID", i.GuildID, "err", err)
		}
	}
	b.runPlay(s, i.GuildID, userOf(i), query, notify)
}

// runPlay is the shared play path for slash and legacy invocations. notify
// receives progress and final embeds.
func (b *Bot) runPlay(s *discordgo.Session, guildID string, user *discordgo.User, query string, notify func(*discordgo.MessageEmbed)) {
	ctx := context.Background()

	p, err := b.joinVoice(s, guildID, user.ID)
	if err != nil {
		notify(ui.Error(err.Error()))
		return
	}

	infos, err := b.resolver.Resolve(ctx, query)
	if err != nil {
		notify(ui.Error(err.Error()))
		return
	}

	if len(infos) > 1 {
		notify(ui.Success(fmt.Sprintf("Adding playlist [%s](%s)",
			playlistName(infos[0]), playlistURL(infos[0]))))
	}

	// A paused queue resumes when new tracks arrive.
	_ = p.Resume()

	var added []player.Track
	for _, info := range infos {
		meta, err := b.resolver.FetchMetadata(ctx, info.SourceURL())
		if err != nil {
			slog.Warn("skipping track, metadata fetch failed",
				"guildID", guildID, "source", info.SourceURL(), "err", err)
			continue
		}
		t := player.Track{
			Title:       meta.Title,
			Channel:     meta.Channel,
			Duration:    meta.Duration,
			URL:         meta.StreamURL,
			SourceURL:   info.SourceURL(),
			Thumbnail:   meta.Thumbnail,
			RequestedBy: user.ID,
			RequestedIn: guildID,
		}
		if err := p.Enqueue(t); err != nil {
			notify(ui.Error(err.Error()))
			return
		}
		added = append(added, t)
		b.recordUsage(ctx, guildID, user, info, meta)
	}

	switch len(added) {
	case 0:
		notify(ui.Error("No tracks were added"))
	case 1:
		notify(ui.AddedTrack(added[0]))
	default:
		notify(ui.Success(fmt.Sprintf("Adding playlist: [%s](%s)\nAdded %d tracks to the queue:\n",
			playlistName(infos[0]), playlistURL(infos[0]), len(added))))
	}
}

// recordUsage appends the usage history rows for one request. Failures are
// logged and never interrupt playback.
func (b *Bot) recordUsage(ctx context.Context, guildID string, user *discordgo.User, info resolver.TrackInfo, meta *resolver.Metadata) {
	err := b.repo.RecordRequest(ctx, guildID,
		repository.UserRecord{ID: user.ID, Name: user.Username, GlobalName: user.GlobalName},
		repository.TrackRecord{
			URL:       info.SourceURL(),
			Title:     meta.Title,
			Channel:   meta.Channel,
			Duration:  ui.FormatDuration(meta.Duration),
			Thumbnail: meta.Thumbnail,
		})
	if err != nil {
		slog.Warn("usage recording failed", "guildID", guildID, "userID", user.ID, "err", err)
	}
}

// joinVoice connects to the invoking user's voice channel, self-deafened, and
// seeds the guild's settings record.
func (b *Bot) joinVoice(s *discordgo.Session, guildID, userID string) (*player.Player, error) {
	vs, err := s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return nil, errors.New("you need to be in a voice channel")
	}
	vc, err := s.ChannelVoiceJoin(guildID, vs.ChannelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("could not join voice channel: %w", err)
	}
	p := b.players.Get(guildID)
	p.Connect(vc)
	b.settings.GetOrCreate(guildID)
	return p, nil
}

func (b *Bot) withPlayer(guildID string, op func(*player.Player) error) error {
	p := b.players.Peek(guildID)
	if p == nil || !p.Connected() {
		return player.ErrNotConnected
	}
	return op(p)
}

func (b *Bot) queueSnapshot(guildID string) []player.Track {
	p := b.players.Peek(guildID)
	if p == nil {
		return nil
	}
	return p.Snapshot()
}

func (b *Bot) reply(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	}); err != nil {
		slog.Warn("reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (b *Bot) replyEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, e *discordgo.MessageEmbed) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{e},
		},
	}); err != nil {
		slog.Warn("embed reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func optionString(data discordgo.ApplicationCommandInteractionData, name string) string {
	for _, opt := range data.Options {
		if opt != nil && opt.Name == name {
			return opt.StringValue()
		}
	}
	return ""
}

func userOf(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func userIDOf(i *discordgo.InteractionCreate) string {
	if u := userOf(i); u != nil {
		return u.ID
	}
	return ""
}

func playlistName(info resolver.TrackInfo) string {
	if info.Playlist == "" {
		return "Unknown"
	}
	return info.Playlist
}

func playlistURL(info resolver.TrackInfo) string {
	return "https://www.youtube.com/playlist?list=" + info.PlaylistID
}
