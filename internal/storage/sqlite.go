package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"likhtar/internal/queue"
	"likhtar/internal/registry"
	logx "likhtar/pkg/logx"
)

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS subscriptions (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	endpoint TEXT NOT NULL UNIQUE,
	p256dh   TEXT NOT NULL,
	auth     TEXT NOT NULL,
	queue_id INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS chat_subscribers (
	chat_id  INTEGER PRIMARY KEY,
	queue_id INTEGER NOT NULL DEFAULT 11
);
`

func openSQLite(path string, log logx.Logger) (Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) SavePushSub(ctx context.Context, sub registry.PushSub) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions(endpoint, p256dh, auth, queue_id) VALUES(?,?,?,?)
		 ON CONFLICT(endpoint) DO UPDATE SET
		   p256dh = excluded.p256dh, auth = excluded.auth, queue_id = excluded.queue_id`,
		sub.Endpoint, sub.P256dh, sub.Auth, int(sub.Queue),
	)
	return err
}

func (s *sqliteStore) DeletePushSub(ctx context.Context, endpoint string) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	if endpoint == "" {
		return false, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *sqliteStore) ListPushSubs(ctx context.Context) ([]registry.PushSub, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT endpoint, p256dh, auth, queue_id FROM subscriptions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []registry.PushSub
	for rows.Next() {
		var sub registry.PushSub
		var q int
		if err := rows.Scan(&sub.Endpoint, &sub.P256dh, &sub.Auth, &q); err != nil {
			return nil, err
		}
		sub.Queue = queue.Code(q)
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *sqliteStore) UpsertChatSub(ctx context.Context, sub registry.ChatSub) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_subscribers(chat_id, queue_id) VALUES(?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET queue_id = excluded.queue_id`,
		sub.ID, int(sub.Queue),
	)
	return err
}

func (s *sqliteStore) DeleteChatSub(ctx context.Context, id int64) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_subscribers WHERE chat_id = ?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *sqliteStore) ListChatSubs(ctx context.Context) ([]registry.ChatSub, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id, queue_id FROM chat_subscribers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []registry.ChatSub
	for rows.Next() {
		var sub registry.ChatSub
		var q int
		if err := rows.Scan(&sub.ID, &q); err != nil {
			return nil, err
		}
		sub.Queue = queue.Code(q)
		out = append(out, sub)
	}
	return out, rows.Err()
}
