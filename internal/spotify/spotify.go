// Package spotify expands Spotify links into name/artist pairs that the
// resolver can turn into provider searches. Playback never streams from
// Spotify itself.
package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

type Track struct {
	Name   string
	Artist string
}

type Client struct {
	raw *spotify.Client
}

func NewClient(clientID, clientSecret string) *Client {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return &Client{raw: spotify.New(cfg.Client(context.Background()), spotify.WithRetry(true))}
}

// IsSpotify reports whether the query is a Spotify URI or open.spotify.com link.
func IsSpotify(q string) bool {
	return strings.HasPrefix(q, "spotify:") || strings.Contains(q, "open.spotify.com")
}

// ParseID splits a Spotify URI or URL into its resource type and identifier.
func ParseID(raw string) (typ string, id spotify.ID, err error) {
	if strings.HasPrefix(raw, "spotify:") {
		parts := strings.Split(raw, ":")
		if len(parts) == 3 {
			return parts[1], spotify.ID(parts[2]), nil
		}
		return "", "", fmt.Errorf("invalid spotify URI")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("invalid spotify URL path")
	}
	switch parts[0] {
	case "album", "playlist", "track", "artist":
		return parts[0], spotify.ID(parts[1]), nil
	}
	return "", "", fmt.Errorf("unsupported spotify type %q", parts[0])
}

// Tracks resolves a parsed Spotify resource into its track listing.
func (c *Client) Tracks(ctx context.Context, typ string, id spotify.ID) ([]Track, error) {
	switch typ {
	case "track":
		t, err := c.raw.GetTrack(ctx, id)
		if err != nil {
			return nil, err
		}
		return []Track{simple(t.Name, t.Artists)}, nil

	case "album":
		page, err := c.raw.GetAlbumTracks(ctx, id)
		if err != nil {
			return nil, err
		}
		var out []Track
		for {
			for _, t := range page.Tracks {
				out = append(out, simple(t.Name, t.Artists))
			}
			if page.Next == "" {
				return out, nil
			}
			if err := c.raw.NextPage(ctx, page); err != nil {
				return out, nil
			}
		}

	case "playlist":
		page, err := c.raw.GetPlaylistItems(ctx, id)
		if err != nil {
			return nil, err
		}
		var out []Track
		for {
			for _, it := range page.Items {
				if it.Track.Track != nil {
					out = append(out, simple(it.Track.Track.Name, it.Track.Track.Artists))
				}
			}
			if page.Next == "" {
				return out, nil
			}
			if err := c.raw.NextPage(ctx, page); err != nil {
				return out, nil
			}
		}

	case "artist":
		full, err := c.raw.GetArtistsTopTracks(ctx, id, "US")
		if err != nil {
			return nil, err
		}
		out := make([]Track, 0, len(full))
		for _, t := range full {
			out = append(out, simple(t.Name, t.Artists))
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported spotify type %q", typ)
}

func simple(name string, artists []spotify.SimpleArtist) Track {
	artist := ""
	if len(artists) > 0 {
		artist = artists[0].Name
	}
	return Track{Name: name, Artist: artist}
}
