// Package ui builds the embeds and button rows commands respond with.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/quaverbot/quaver/internal/player"
)

// TracksPerPage is the queue page size.
const TracksPerPage = 5

// Embed accent colors.
const (
	ColorYellow  = 0xFEE75C // pending
	ColorBlurple = 0x5865F2 // success
	ColorRed     = 0xED4245 // error
)

// Pages returns how many queue pages n tracks occupy. Zero tracks still show
// one (empty) page.
func Pages(n int) int {
	if n == 0 {
		return 1
	}
	return (n + TracksPerPage - 1) / TracksPerPage
}

// ClampPage bounds a requested page to the valid range.
func ClampPage(page, nPages int) int {
	if page < 0 {
		return 0
	}
	if page > nPages-1 {
		return nPages - 1
	}
	return page
}

// Pending returns the yellow placeholder embed shown while work is underway.
func Pending(text string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: text, Color: ColorYellow}
}

// Success returns the blurple result embed.
func Success(text string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: text, Color: ColorBlurple}
}

// Error returns the red failure embed.
func Error(text string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: text, Color: ColorRed}
}

// AddedTrack describes a single enqueued track: title, link, duration,
// thumbnail.
func AddedTrack(t player.Track) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       "Added to queue",
		Description: trackLine(t),
		Color:       ColorBlurple,
	}
	if t.Thumbnail != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.Thumbnail}
	}
	return e
}

// QueueEmbed renders one page of the queue, head first. The head of page 0 is
// the currently playing track.
func QueueEmbed(tracks []player.Track, page int) *discordgo.MessageEmbed {
	nPages := Pages(len(tracks))
	page = ClampPage(page, nPages)

	e := &discordgo.MessageEmbed{
		Title: "Queue",
		Color: ColorBlurple,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Page %d of %d", page+1, nPages),
		},
	}
	if len(tracks) == 0 {
		e.Description = "There are no tracks in the queue."
		return e
	}

	start := page * TracksPerPage
	end := start + TracksPerPage
	if end > len(tracks) {
		end = len(tracks)
	}

	var b strings.Builder
	for idx := start; idx < end; idx++ {
		if idx == 0 {
			b.WriteString("Currently playing:\n")
		}
		fmt.Fprintf(&b, "%d. %s\n", idx+1, trackLine(tracks[idx]))
	}
	e.Description = b.String()
	return e
}

// QueueComponents builds the prev/refresh/next row. Custom IDs carry the
// target page as "page:N"; prev and next disable at the bounds.
func QueueComponents(page, nPages int) []discordgo.MessageComponent {
	page = ClampPage(page, nPages)
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Prev",
					Style:    discordgo.SecondaryButton,
					CustomID: fmt.Sprintf("page:%d", page-1),
					Disabled: page == 0,
				},
				discordgo.Button{
					Label:    "Refresh",
					Style:    discordgo.SecondaryButton,
					CustomID: fmt.Sprintf("page:%d", page),
				},
				discordgo.Button{
					Label:    "Next",
					Style:    discordgo.SecondaryButton,
					CustomID: fmt.Sprintf("page:%d", page+1),
					Disabled: page >= nPages-1,
				},
			},
		},
	}
}

func trackLine(t player.Track) string {
	title := t.Title
	if title == "" {
		title = "Unknown"
	}
	line := title
	if t.SourceURL != "" {
		line = fmt.Sprintf("[%s](%s)", title, t.SourceURL)
	}
	if t.Duration > 0 {
		line += fmt.Sprintf(" (%s)", FormatDuration(t.Duration))
	}
	return line
}

// FormatDuration renders (hh:)mm:ss, hours omitted when zero.
func FormatDuration(d time.Duration) string {
	secs := int(d.Seconds())
	hours := secs / 3600
	minutes := (secs % 3600) / 60
	seconds := secs % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
