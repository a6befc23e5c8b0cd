package repository

import (
	"database/sql"
	"time"
)

type Repo struct {
	db *sql.DB
}

// TrackRecord mirrors one row of the tracks table. Duration is stored as the
// human-readable string reported by the extractor, not parsed.
type TrackRecord struct {
	URL       string
	Title     string
	Channel   string
	Duration  string
	Thumbnail string
}

type UserRecord struct {
	ID         string
	Name       string
	GlobalName string
}

func now() time.Time { return time.Now().UTC() }
