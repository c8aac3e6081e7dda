package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLBackend stores each key as one row of the kv_entries table.
type MySQLBackend struct {
	db *sql.DB
}

// NewMySQLBackend accepts either a go-sql-driver DSN or the same DSN
// prefixed with mysql://.
func NewMySQLBackend(ctx context.Context, dsn string) (*MySQLBackend, error) {
	dsn = strings.TrimPrefix(strings.TrimSpace(dsn), "mysql://")
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	b := &MySQLBackend{db: db}
	if err := b.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *MySQLBackend) migrate(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS kv_entries (
    k VARCHAR(128) PRIMARY KEY,
    v LONGTEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`
	if _, err := b.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (b *MySQLBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	var value string
	err := b.db.QueryRowContext(ctx, `SELECT v FROM kv_entries WHERE k=?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return []byte(value), nil
}

func (b *MySQLBackend) Put(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO kv_entries (k, v) VALUES (?, ?)
    ON DUPLICATE KEY UPDATE v=VALUES(v)`,
		key, string(value))
	if err != nil {
		return fmt.Errorf("put entry: %w", err)
	}
	return nil
}

func (b *MySQLBackend) Kind() string { return "mysql" }

func (b *MySQLBackend) Close() error { return b.db.Close() }
