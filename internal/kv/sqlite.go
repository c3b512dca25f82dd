package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLite is a file-backed Store. It keeps the same contract as the volatile
// backends but survives restarts, which makes it a reasonable default for
// single-node deployments without Redis.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(dsn string) (*SQLite, error) {
	// 确保数据库文件所在的目录存在
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	// 开启 WAL 模式以提高并发性能和数据安全性
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS kv_values (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS kv_hashes (
		key   TEXT NOT NULL,
		field TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (key, field)
	);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_values WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoKey
	}
	return value, err
}

func (s *SQLite) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_values (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv_values WHERE key = ?", key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv_hashes WHERE key = ?", key)
	return err
}

func (s *SQLite) HGet(ctx context.Context, key, field string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_hashes WHERE key = ? AND field = ?", key, field).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoKey
	}
	return value, err
}

func (s *SQLite) HSet(ctx context.Context, key, field, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_hashes (key, field, value) VALUES (?, ?, ?)
		ON CONFLICT(key, field) DO UPDATE SET value = excluded.value`, key, field, value)
	return err
}

func (s *SQLite) HDelete(ctx context.Context, key, field string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv_hashes WHERE key = ? AND field = ?", key, field)
	return err
}

func (s *SQLite) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT field, value FROM kv_hashes WHERE key = ?", key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, err
		}
		result[field] = value
	}
	return result, rows.Err()
}
