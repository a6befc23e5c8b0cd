package resolver

import (
	"context"
	"errors"
	"testing"
)

func stubbed(run runFunc) *Resolver {
	return &Resolver{run: run}
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.youtube.com/watch?v=abc", "https://www.youtube.com/watch?v=abc"},
		{"https://www.youtube.com/playlist?list=PL123", "https://www.youtube.com/playlist?list=PL123"},
		{"never gonna give you up", "ytsearch:never gonna give you up"},
		{"watch?v=abc", "ytsearch:watch?v=abc"},
	}
	for _, tt := range tests {
		if got := normalizeQuery(tt.in); got != tt.want {
			t.Errorf("normalizeQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseLines_SkipsMalformed(t *testing.T) {
	stdout := `{"url":"https://y.t/1","title":"One","duration":61}
not json at all
{"url":"https://y.t/2","title":"Two","playlist":"Mix","playlist_id":"PL1"}
{"title":"no url, skipped"}
`
	tracks := parseLines(stdout)
	if len(tracks) != 2 {
		t.Fatalf("got %d tracks, want 2", len(tracks))
	}
	if tracks[0].Title != "One" || tracks[1].Title != "Two" {
		t.Errorf("unexpected order: %q, %q", tracks[0].Title, tracks[1].Title)
	}
	if tracks[1].Playlist != "Mix" || tracks[1].PlaylistID != "PL1" {
		t.Errorf("playlist marker lost: %+v", tracks[1])
	}
}

func TestResolve_EmptyClassification(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   error
	}{
		{
			name:   "premium restricted",
			stderr: "ERROR: [youtube] QgMZRmxQ0Dc: This video is only available to Music Premium members",
			want:   ErrPremiumOnly,
		},
		{
			name:   "playlist missing",
			stderr: "ERROR: YouTube said: The playlist does not exist.",
			want:   ErrPlaylistNotFound,
		},
		{
			name:   "nothing at all",
			stderr: "",
			want:   ErrNoResults,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := stubbed(func(ctx context.Context, target string) (string, string, error) {
				return "", tt.stderr, nil
			})
			_, err := r.Resolve(context.Background(), "whatever")
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestResolve_UnrecognizedDiagnostic(t *testing.T) {
	r := stubbed(func(ctx context.Context, target string) (string, string, error) {
		return "", "ERROR: something novel went wrong", nil
	})
	_, err := r.Resolve(context.Background(), "whatever")
	var diag *DiagnosticError
	if !errors.As(err, &diag) {
		t.Fatalf("got %T, want *DiagnosticError", err)
	}
	if diag.Stderr != "ERROR: something novel went wrong" {
		t.Errorf("diagnostic text not surfaced verbatim: %q", diag.Stderr)
	}
}

func TestResolve_SearchPrefixApplied(t *testing.T) {
	var gotTarget string
	r := stubbed(func(ctx context.Context, target string) (string, string, error) {
		gotTarget = target
		return `{"url":"https://y.t/1","title":"One"}`, "", nil
	})
	tracks, err := r.Resolve(context.Background(), "some song name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTarget != "ytsearch:some song name" {
		t.Errorf("target = %q", gotTarget)
	}
	if len(tracks) != 1 {
		t.Errorf("got %d tracks", len(tracks))
	}
}

func TestSourceURL_FallsBackToOriginal(t *testing.T) {
	ti := TrackInfo{OriginalURL: "https://y.t/orig"}
	if got := ti.SourceURL(); got != "https://y.t/orig" {
		t.Errorf("SourceURL = %q", got)
	}
	ti.URL = "https://y.t/direct"
	if got := ti.SourceURL(); got != "https://y.t/direct" {
		t.Errorf("SourceURL = %q", got)
	}
}
