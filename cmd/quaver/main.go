package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quaverbot/quaver/internal/config"
	"github.com/quaverbot/quaver/internal/handlers"
	"github.com/quaverbot/quaver/internal/player"
	"github.com/quaverbot/quaver/internal/repository"
	"github.com/quaverbot/quaver/internal/resolver"
	"github.com/quaverbot/quaver/internal/settings"
	"github.com/quaverbot/quaver/internal/spotify"
	"github.com/quaverbot/quaver/internal/voice"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	db, err := repository.OpenDB(cfg.DatabasePath)
	if err != nil {
		log.Fatal(err)
	}
	repo := repository.NewRepo(db)

	var sp *spotify.Client
	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != "" {
		sp = spotify.NewClient(cfg.SpotifyClientID, cfg.SpotifyClientSecret)
	}
	res := resolver.New(sp)

	st := settings.NewStore()
	pm := player.NewManager(voice.Stream, func(ctx context.Context, sourceURL string) (string, error) {
		meta, err := res.FetchMetadata(ctx, sourceURL)
		if err != nil {
			return "", err
		}
		return meta.StreamURL, nil
	})
	lc := player.NewLoopController(st, pm, func(ctx context.Context, sourceURL string) (player.Track, error) {
		meta, err := res.FetchMetadata(ctx, sourceURL)
		if err != nil {
			return player.Track{}, err
		}
		return player.Track{
			Title:     meta.Title,
			Channel:   meta.Channel,
			Duration:  meta.Duration,
			URL:       meta.StreamURL,
			SourceURL: sourceURL,
			Thumbnail: meta.Thumbnail,
		}, nil
	})
	pm.SetTrackEndHook(lc.HandleTrackEnd)

	bot := handlers.NewBot(cfg, repo, st, pm, res)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := bot.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
