package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,notEmpty"`
	AppID        string `env:"DISCORD_APP_ID,notEmpty"`
	AdminID      string `env:"ADMIN,notEmpty"`
	DatabasePath string `env:"DATABASE_PATH,notEmpty" envDefault:"./data/quaver.db"`

	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`
}

// Load reads a .env file if one is present, then parses the environment.
// A missing required variable is a startup error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
