package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// Connect opens a Postgres connection pool from a DSN.
func Connect(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not set")
	}
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), nil
}

// NewDB wraps a connection pool in a bun DB. With debug enabled, every
// query is logged.
func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// InitSchema creates all tables if they do not exist. Child tables carry
// ON DELETE CASCADE foreign keys, so deleting a document removes its
// chunks, chats and messages in one statement; the external vector index
// is cleaned up separately by the deleting caller.
func InitSchema(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().
		Model((*Document)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}

	if _, err := db.NewCreateTable().
		Model((*Chunk)(nil)).
		IfNotExists().
		ForeignKey(`("document_id") REFERENCES "documents" ("id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return fmt.Errorf("create chunks table: %w", err)
	}

	if _, err := db.NewCreateTable().
		Model((*Chat)(nil)).
		IfNotExists().
		ForeignKey(`("document_id") REFERENCES "documents" ("id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return fmt.Errorf("create chats table: %w", err)
	}

	if _, err := db.NewCreateTable().
		Model((*Message)(nil)).
		IfNotExists().
		ForeignKey(`("chat_id") REFERENCES "chats" ("id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return fmt.Errorf("create messages table: %w", err)
	}

	return nil
}
