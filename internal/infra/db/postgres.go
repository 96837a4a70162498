package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS dishes (
  id SERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  name_norm TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback (
  id SERIAL PRIMARY KEY,
  feedback_date DATE NOT NULL,
  dish_name TEXT NOT NULL,
  guest_comment TEXT NOT NULL,
  kitchen_reply TEXT NULL,
  private_chat_id BIGINT NULL,
  private_message_id BIGINT NULL,
  group_chat_id BIGINT NULL,
  group_message_id BIGINT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS subscribers (
  chat_id BIGINT PRIMARY KEY,
  chat_type TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dishes_name_norm ON dishes (name_norm);
`

// Connect создаёт пул подключений к Postgres и накатывает схему.
func Connect(dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 5
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
