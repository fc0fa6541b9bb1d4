package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/murpii/ddnet-discordbot/internal/maptesting"
)

// Store is the sqlite-backed persistence for the testing workflow:
// waiting-since timestamps, released map names and changelog rows.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		return nil, err
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS waiting_maps (
        channel_id TEXT PRIMARY KEY,
        waiting_since INTEGER NOT NULL
    )`,
		`CREATE TABLE IF NOT EXISTS released_maps (
        name TEXT PRIMARY KEY COLLATE NOCASE,
        released_at INTEGER NOT NULL
    )`,
		`CREATE TABLE IF NOT EXISTS changelog (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        channel_id TEXT NOT NULL,
        ts INTEGER NOT NULL,
        actor TEXT NOT NULL,
        category TEXT NOT NULL,
        text TEXT NOT NULL
    )`,
		`CREATE INDEX IF NOT EXISTS idx_changelog_channel ON changelog(channel_id, id)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return nil, err
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SetWaitingSince(ctx context.Context, channelID string, since time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO waiting_maps(channel_id, waiting_since) VALUES(?,?)
         ON CONFLICT(channel_id) DO UPDATE SET waiting_since=excluded.waiting_since`,
		channelID, since.Unix())
	return err
}

func (s *Store) WaitingSince(ctx context.Context, channelID string) (time.Time, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT waiting_since FROM waiting_maps WHERE channel_id=?`, channelID)
	var unix int64
	if err := row.Scan(&unix); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return time.Unix(unix, 0).UTC(), true, nil
}

func (s *Store) ClearWaitingSince(ctx context.Context, channelID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM waiting_maps WHERE channel_id=?`, channelID)
	return err
}

func (s *Store) AddReleased(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO released_maps(name, released_at) VALUES(?,?)`,
		name, time.Now().Unix())
	return err
}

func (s *Store) IsReleased(ctx context.Context, name string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM released_maps WHERE name=?`, name)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) AppendChangelog(ctx context.Context, channelID string, e maptesting.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO changelog(channel_id, ts, actor, category, text) VALUES(?,?,?,?,?)`,
		channelID, e.Time.Unix(), e.Actor, e.Category, e.Text)
	return err
}

func (s *Store) ChangelogFor(ctx context.Context, channelID string) ([]maptesting.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, actor, category, text FROM changelog WHERE channel_id=? ORDER BY id`,
		channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []maptesting.Entry
	for rows.Next() {
		var e maptesting.Entry
		var unix int64
		if err := rows.Scan(&unix, &e.Actor, &e.Category, &e.Text); err != nil {
			return nil, err
		}
		e.Time = time.Unix(unix, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) DeleteChannel(ctx context.Context, channelID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM waiting_maps WHERE channel_id=?`, channelID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM changelog WHERE channel_id=?`, channelID)
	return err
}
