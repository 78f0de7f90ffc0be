// SPDX-License-Identifier: GPL-3.0-or-later

package sqlclient

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// Client wraps a pooled MySQL connection opened via database/sql, so the
// native-password handshake and packet framing are the driver's
// responsibility; this type owns pool tuning, logging, and the
// escape/decode helpers layered on top.
type Client struct {
	cfg *Config
	db  *sql.DB
}

// Open dials addr per cfg, validating cfg first and applying its pool
// tuning to the resulting *sql.DB.
func Open(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("sqlclient: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		cls := cfg.ErrClassifier.Classify(err)
		cfg.Logger.Info("sqlclient: ping failed", "addr", cfg.Addr, "errclass", cls, "err", err)
		db.Close()
		return nil, fmt.Errorf("sqlclient: ping %s: %w", cfg.Addr, err)
	}
	cfg.Logger.Info("sqlclient: connected", "addr", cfg.Addr, "db", cfg.DBName)
	return &Client{cfg: cfg, db: db}, nil
}

// Close releases the underlying pool.
func (c *Client) Close() error { return c.db.Close() }

// DB returns the underlying *sql.DB, for call sites that need the full
// database/sql surface (transactions, prepared statements).
func (c *Client) DB() *sql.DB { return c.db }

// Query runs query with args bound as placeholders — the safe,
// idiomatic path; see [EscapeString] for call sites that must build SQL
// as text instead.
func (c *Client) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		cls := c.cfg.ErrClassifier.Classify(err)
		c.cfg.Logger.Debug("sqlclient: query failed", "errclass", cls, "err", err)
		return nil, err
	}
	return rows, nil
}

// Exec runs query (INSERT/UPDATE/DELETE/DDL) with args bound as
// placeholders.
func (c *Client) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		cls := c.cfg.ErrClassifier.Classify(err)
		c.cfg.Logger.Debug("sqlclient: exec failed", "errclass", cls, "err", err)
		return nil, err
	}
	return res, nil
}

// QueryStruct runs query and decodes every resulting row into a freshly
// appended element of dest, which must be a pointer to a slice of
// struct (or pointer-to-struct) values; see [Decode] for the column-to-
// field mapping rules.
func (c *Client) QueryStruct(ctx context.Context, dest any, query string, args ...any) error {
	rows, err := c.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	return Decode(rows, dest)
}
