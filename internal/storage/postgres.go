package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"likhtar/internal/queue"
	"likhtar/internal/registry"
	logx "likhtar/pkg/logx"
)

type postgresStore struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

func openPostgres(ctx context.Context, dsn string, log logx.Logger) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required (set DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	st := &postgresStore{pool: pool, log: log}
	if err := st.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return st, nil
}

func (s *postgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS subscriptions (
			id       SERIAL PRIMARY KEY,
			endpoint TEXT NOT NULL UNIQUE,
			p256dh   TEXT NOT NULL,
			auth     TEXT NOT NULL,
			queue_id INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS chat_subscribers (
			chat_id  BIGINT PRIMARY KEY,
			queue_id INTEGER NOT NULL DEFAULT 11
		)`)
	return err
}

func (s *postgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *postgresStore) SavePushSub(ctx context.Context, sub registry.PushSub) error {
	if s == nil || s.pool == nil {
		return ErrDisabled
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions (endpoint, p256dh, auth, queue_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (endpoint) DO UPDATE
		SET p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth, queue_id = EXCLUDED.queue_id`,
		sub.Endpoint, sub.P256dh, sub.Auth, int(sub.Queue),
	)
	if err != nil {
		return fmt.Errorf("save push subscription: %w", err)
	}
	return nil
}

func (s *postgresStore) DeletePushSub(ctx context.Context, endpoint string) (bool, error) {
	if s == nil || s.pool == nil {
		return false, ErrDisabled
	}
	if endpoint == "" {
		return false, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM subscriptions WHERE endpoint = $1`, endpoint)
	if err != nil {
		return false, fmt.Errorf("delete push subscription: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *postgresStore) ListPushSubs(ctx context.Context) ([]registry.PushSub, error) {
	if s == nil || s.pool == nil {
		return nil, ErrDisabled
	}
	rows, err := s.pool.Query(ctx, `SELECT endpoint, p256dh, auth, queue_id FROM subscriptions`)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	var out []registry.PushSub
	for rows.Next() {
		var sub registry.PushSub
		var q int
		if err := rows.Scan(&sub.Endpoint, &sub.P256dh, &sub.Auth, &q); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		sub.Queue = queue.Code(q)
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *postgresStore) UpsertChatSub(ctx context.Context, sub registry.ChatSub) error {
	if s == nil || s.pool == nil {
		return ErrDisabled
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_subscribers (chat_id, queue_id)
		VALUES ($1, $2)
		ON CONFLICT (chat_id) DO UPDATE SET queue_id = EXCLUDED.queue_id`,
		sub.ID, int(sub.Queue),
	)
	if err != nil {
		return fmt.Errorf("upsert chat subscriber: %w", err)
	}
	return nil
}

func (s *postgresStore) DeleteChatSub(ctx context.Context, id int64) (bool, error) {
	if s == nil || s.pool == nil {
		return false, ErrDisabled
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM chat_subscribers WHERE chat_id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete chat subscriber: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *postgresStore) ListChatSubs(ctx context.Context) ([]registry.ChatSub, error) {
	if s == nil || s.pool == nil {
		return nil, ErrDisabled
	}
	rows, err := s.pool.Query(ctx, `SELECT chat_id, queue_id FROM chat_subscribers`)
	if err != nil {
		return nil, fmt.Errorf("list chat subscribers: %w", err)
	}
	defer rows.Close()

	var out []registry.ChatSub
	for rows.Next() {
		var sub registry.ChatSub
		var q int
		if err := rows.Scan(&sub.ID, &q); err != nil {
			return nil, fmt.Errorf("scan chat subscriber: %w", err)
		}
		sub.Queue = queue.Code(q)
		out = append(out, sub)
	}
	return out, rows.Err()
}
