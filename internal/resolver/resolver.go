// Package resolver turns user queries into track descriptors by driving the
// yt-dlp extraction subprocess. Resolution never enqueues anything; callers
// decide what to do with the descriptors.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	ytdlp "github.com/lrstanley/go-ytdlp"

	"github.com/quaverbot/quaver/internal/spotify"
)

// TrackInfo is one line of flat-playlist extractor output.
type TrackInfo struct {
	URL            string  `json:"url"`
	OriginalURL    string  `json:"original_url"`
	Title          string  `json:"title"`
	Channel        string  `json:"channel"`
	Playlist       string  `json:"playlist"`
	PlaylistID     string  `json:"playlist_id"`
	Duration       float64 `json:"duration"`
	DurationString string  `json:"duration_string"`
}

// SourceURL returns the handle used to (re-)resolve the playable stream.
func (t TrackInfo) SourceURL() string {
	if t.URL != "" {
		return t.URL
	}
	return t.OriginalURL
}

// Metadata is the full (non-flat) extraction result for a single item.
type Metadata struct {
	Title      string
	Channel    string
	Duration   time.Duration
	StreamURL  string
	WebpageURL string
	Thumbnail  string
}

type runFunc func(ctx context.Context, target string) (stdout, stderr string, err error)

type Resolver struct {
	sp  *spotify.Client // nil when Spotify credentials are not configured
	run runFunc
}

func New(sp *spotify.Client) *Resolver {
	return &Resolver{sp: sp, run: ytdlpFlat}
}

var installOnce sync.Once

func ytdlpFlat(ctx context.Context, target string) (string, string, error) {
	installOnce.Do(func() { ytdlp.MustInstall(ctx, nil) })

	cmd := ytdlp.New().
		FlatPlaylist().
		DumpJSON()
	res, err := cmd.Run(ctx, target)
	if res == nil {
		return "", "", err
	}
	return res.Stdout, res.Stderr, err
}

// Resolve produces an ordered list of track descriptors for a raw query.
// More than one descriptor means a playlist add.
func (r *Resolver) Resolve(ctx context.Context, query string) ([]TrackInfo, error) {
	q := strings.TrimSpace(query)
	if r.sp != nil && spotify.IsSpotify(q) {
		return r.resolveSpotify(ctx, q)
	}

	stdout, stderr, runErr := r.run(ctx, normalizeQuery(q))
	tracks := parseLines(stdout)
	if len(tracks) == 0 {
		return nil, classifyEmpty(stderr, runErr)
	}
	return tracks, nil
}

// normalizeQuery passes absolute URLs through and turns everything else into
// a keyword search against the default provider.
func normalizeQuery(q string) string {
	if u, err := url.Parse(q); err != nil || !u.IsAbs() {
		return "ytsearch:" + q
	}
	return q
}

// parseLines decodes line-delimited JSON descriptors, skipping malformed
// lines rather than failing the batch.
func parseLines(stdout string) []TrackInfo {
	var out []TrackInfo
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var t TrackInfo
		if err := json.Unmarshal([]byte(line), &t); err != nil {
			slog.Debug("skipping malformed extractor line", "err", err)
			continue
		}
		if t.SourceURL() == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

// classifyEmpty maps extractor diagnostics to the typed failure set.
func classifyEmpty(stderr string, runErr error) error {
	diag := stderr
	if diag == "" && runErr != nil {
		diag = runErr.Error()
	}
	switch {
	case strings.Contains(diag, "only available to Music Premium members"):
		return ErrPremiumOnly
	case strings.Contains(diag, "The playlist does not exist"):
		return ErrPlaylistNotFound
	case strings.TrimSpace(diag) != "":
		return &DiagnosticError{Stderr: diag}
	}
	return ErrNoResults
}

// resolveSpotify expands a Spotify link into per-track provider searches.
// Tracks that cannot be matched are skipped.
func (r *Resolver) resolveSpotify(ctx context.Context, q string) ([]TrackInfo, error) {
	typ, id, err := spotify.ParseID(q)
	if err != nil {
		return nil, fmt.Errorf("spotify: %w", err)
	}
	list, err := r.sp.Tracks(ctx, typ, id)
	if err != nil {
		return nil, fmt.Errorf("spotify: %w", err)
	}

	var out []TrackInfo
	for _, t := range list {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}
		stdout, _, _ := r.run(ctx, fmt.Sprintf("ytsearch1:%q %q", t.Name, t.Artist))
		found := parseLines(stdout)
		if len(found) == 0 {
			slog.Debug("no provider match for spotify track", "name", t.Name, "artist", t.Artist)
			continue
		}
		ti := found[0]
		ti.Playlist = "" // searches are not playlist entries
		ti.PlaylistID = ""
		out = append(out, ti)
	}
	if len(out) == 0 {
		return nil, ErrNoResults
	}
	return out, nil
}

// FetchMetadata runs a full (non-flat) extraction for one item and picks a
// playable stream URL. Used at enqueue time and for loop re-resolution.
func (r *Resolver) FetchMetadata(ctx context.Context, target string) (*Metadata, error) {
	installOnce.Do(func() { ytdlp.MustInstall(ctx, nil) })

	cmd := ytdlp.New().
		Format("ba[acodec^=opus]/ba[ext=m4a]/bestaudio/best").
		NoCheckCertificates().
		DumpJSON()
	res, err := cmd.Run(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp run: %w", err)
	}
	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("parse yt-dlp json: %w", err)
	}
	if len(infos) == 0 || infos[0] == nil {
		return nil, ErrNoResults
	}
	info := infos[0]
	// Search targets come back as a container; use the first entry.
	if len(info.Entries) > 0 && info.Entries[0] != nil {
		info = info.Entries[0]
	}

	m := &Metadata{
		Title:      strptr(info.Title),
		Channel:    strptr(info.Uploader),
		WebpageURL: strptr(info.WebpageURL),
		StreamURL:  pickStreamURL(info),
	}
	if info.Duration != nil {
		m.Duration = time.Duration(*info.Duration * float64(time.Second))
	}
	if n := len(info.Thumbnails); n > 0 && info.Thumbnails[n-1] != nil {
		m.Thumbnail = info.Thumbnails[n-1].URL
	}
	if m.StreamURL == "" {
		return nil, fmt.Errorf("no usable media URL for %s", target)
	}
	return m, nil
}

// pickStreamURL prefers requested formats, then the top-level URL, then the
// format list.
func pickStreamURL(info *ytdlp.ExtractedInfo) string {
	for _, f := range info.RequestedFormats {
		if f != nil && strings.HasPrefix(f.URL, "http") {
			return f.URL
		}
	}
	if info.URL != nil && strings.HasPrefix(*info.URL, "http") {
		return *info.URL
	}
	for _, f := range info.Formats {
		if f != nil && strings.HasPrefix(f.URL, "http") {
			return f.URL
		}
	}
	return ""
}

func strptr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
