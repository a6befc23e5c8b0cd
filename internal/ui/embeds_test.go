package ui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/quaverbot/quaver/internal/player"
)

func tracksN(n int) []player.Track {
	out := make([]player.Track, n)
	for i := range out {
		out[i] = player.Track{Title: fmt.Sprintf("track %d", i+1)}
	}
	return out
}

func TestPages(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 1},
		{1, 1},
		{5, 1},
		{6, 2},
		{12, 3},
	}
	for _, tt := range tests {
		if got := Pages(tt.n); got != tt.want {
			t.Errorf("Pages(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestQueueEmbed_PageSplit(t *testing.T) {
	tracks := tracksN(12)
	wantPerPage := []int{5, 5, 2}
	for page, want := range wantPerPage {
		e := QueueEmbed(tracks, page)
		got := 0
		for _, line := range strings.Split(e.Description, "\n") {
			if strings.Contains(line, "track ") {
				got++
			}
		}
		if got != want {
			t.Errorf("page %d: %d entries, want %d", page, got, want)
		}
	}
	if !strings.Contains(QueueEmbed(tracks, 0).Description, "Currently playing") {
		t.Error("page 0 should mark the playing head")
	}
	if strings.Contains(QueueEmbed(tracks, 1).Description, "Currently playing") {
		t.Error("later pages should not mark a playing head")
	}
}

func TestQueueEmbed_Empty(t *testing.T) {
	e := QueueEmbed(nil, 0)
	if !strings.Contains(e.Description, "no tracks") {
		t.Errorf("empty queue description = %q", e.Description)
	}
	if e.Footer.Text != "Page 1 of 1" {
		t.Errorf("footer = %q", e.Footer.Text)
	}
}

func TestQueueComponents_BoundaryDisabling(t *testing.T) {
	buttons := func(page, nPages int) []discordgo.Button {
		row := QueueComponents(page, nPages)[0].(discordgo.ActionsRow)
		out := make([]discordgo.Button, len(row.Components))
		for i, c := range row.Components {
			out[i] = c.(discordgo.Button)
		}
		return out
	}

	first := buttons(0, 3)
	if !first[0].Disabled {
		t.Error("prev should be disabled on the first page")
	}
	if first[2].Disabled {
		t.Error("next should be enabled on the first page")
	}
	if first[2].CustomID != "page:1" {
		t.Errorf("next custom id = %q", first[2].CustomID)
	}

	last := buttons(2, 3)
	if last[0].Disabled {
		t.Error("prev should be enabled on the last page")
	}
	if !last[2].Disabled {
		t.Error("next should be disabled on the last page")
	}
	if last[1].CustomID != "page:2" {
		t.Errorf("refresh custom id = %q", last[1].CustomID)
	}
}

func TestAddedTrack(t *testing.T) {
	e := AddedTrack(player.Track{
		Title:     "One",
		SourceURL: "https://y.t/1",
		Duration:  61 * time.Second,
		Thumbnail: "https://img.example/1.jpg",
	})
	if e.Color != ColorBlurple {
		t.Errorf("color = %#x, want %#x", e.Color, ColorBlurple)
	}
	if !strings.Contains(e.Description, "[One](https://y.t/1)") {
		t.Errorf("description = %q, want title link", e.Description)
	}
	if !strings.Contains(e.Description, "01:01") {
		t.Errorf("description = %q, want duration", e.Description)
	}
	if e.Thumbnail == nil || e.Thumbnail.URL != "https://img.example/1.jpg" {
		t.Errorf("thumbnail = %+v", e.Thumbnail)
	}

	bare := AddedTrack(player.Track{Title: "Two"})
	if bare.Thumbnail != nil {
		t.Errorf("thumbnail without source = %+v", bare.Thumbnail)
	}
}

func TestClampPage(t *testing.T) {
	if got := ClampPage(-3, 4); got != 0 {
		t.Errorf("ClampPage(-3, 4) = %d", got)
	}
	if got := ClampPage(9, 4); got != 3 {
		t.Errorf("ClampPage(9, 4) = %d", got)
	}
	if got := ClampPage(2, 4); got != 2 {
		t.Errorf("ClampPage(2, 4) = %d", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{61 * time.Second, "01:01"},
		{0, "00:00"},
		{3723 * time.Second, "01:02:03"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
