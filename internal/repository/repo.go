package repository

import (
	"context"
	"database/sql"
)

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) UpsertGuild(ctx context.Context, guildID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO guilds (id, updated) VALUES (?, ?)`,
		guildID, now(),
	)
	return err
}

func (r *Repo) UpsertUser(ctx context.Context, u UserRecord) error {
	var globalName sql.NullString
	if u.GlobalName != "" {
		globalName = sql.NullString{String: u.GlobalName, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO users (id, name, global_name, updated) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, globalName, now(),
	)
	return err
}

// UpsertTrack inserts or refreshes a track keyed by its URL and returns the
// row id for the queries join table.
func (r *Repo) UpsertTrack(ctx context.Context, t TrackRecord) (int64, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tracks (url, title, channel, duration, thumbnail, updated)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET
		   title=excluded.title, channel=excluded.channel,
		   duration=excluded.duration, thumbnail=excluded.thumbnail,
		   updated=excluded.updated`,
		t.URL, t.Title, t.Channel, t.Duration, t.Thumbnail, now(),
	)
	if err != nil {
		return 0, err
	}
	row := r.db.QueryRowContext(ctx, `SELECT id FROM tracks WHERE url = ?`, t.URL)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repo) InsertQuery(ctx context.Context, userID, guildID string, trackID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO queries (user_id, guild_id, track_id, updated) VALUES (?, ?, ?, ?)`,
		userID, guildID, trackID, now(),
	)
	return err
}

// RecordRequest writes the full "user requested track in guild" row set in
// one call. Used for usage history only; callers treat failures as non-fatal.
func (r *Repo) RecordRequest(ctx context.Context, guildID string, user UserRecord, track TrackRecord) error {
	if err := r.UpsertGuild(ctx, guildID); err != nil {
		return err
	}
	if err := r.UpsertUser(ctx, user); err != nil {
		return err
	}
	trackID, err := r.UpsertTrack(ctx, track)
	if err != nil {
		return err
	}
	return r.InsertQuery(ctx, user.ID, guildID, trackID)
}
