package repository

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *Repo {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := runMigrations(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRepo(db)
}

func TestUpsertTrack_Idempotent(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	track := TrackRecord{
		URL:      "https://www.youtube.com/watch?v=abc123def45",
		Title:    "First Title",
		Channel:  "Some Channel",
		Duration: "3:05",
	}
	id1, err := repo.UpsertTrack(ctx, track)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	track.Title = "Renamed Title"
	id2, err := repo.UpsertTrack(ctx, track)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id1 != id2 {
		t.Errorf("expected same row id for same url, got %d and %d", id1, id2)
	}

	var title string
	row := repo.db.QueryRow(`SELECT title FROM tracks WHERE id = ?`, id1)
	if err := row.Scan(&title); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if title != "Renamed Title" {
		t.Errorf("title = %q, want %q", title, "Renamed Title")
	}
}

func TestRecordRequest(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	user := UserRecord{ID: "42", Name: "listener", GlobalName: "Listener"}
	track := TrackRecord{URL: "https://example.com/a", Title: "A", Channel: "C", Duration: "1:00"}

	if err := repo.RecordRequest(ctx, "guild-1", user, track); err != nil {
		t.Fatalf("record request: %v", err)
	}
	if err := repo.RecordRequest(ctx, "guild-1", user, track); err != nil {
		t.Fatalf("second record request: %v", err)
	}

	var n int
	if err := repo.db.QueryRow(`SELECT COUNT(*) FROM queries`).Scan(&n); err != nil {
		t.Fatalf("count queries: %v", err)
	}
	if n != 2 {
		t.Errorf("queries rows = %d, want 2 (append-only)", n)
	}

	if err := repo.db.QueryRow(`SELECT COUNT(*) FROM tracks`).Scan(&n); err != nil {
		t.Fatalf("count tracks: %v", err)
	}
	if n != 1 {
		t.Errorf("tracks rows = %d, want 1 (upsert by url)", n)
	}
}
