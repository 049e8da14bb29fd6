package migrations

// Tag names are compared byte-for-byte everywhere: SQLite's default BINARY
// collation and PostgreSQL TEXT already do this, MySQL needs utf8mb4_bin.

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateBookmarks, downCreateBookmarks)
}

func upCreateBookmarks(ctx context.Context, tx *sql.Tx) error {
	var stmts []string
	switch dialect {
	case "postgres":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS bookmarks (
    identifier TEXT PRIMARY KEY,
    title      TEXT NOT NULL DEFAULT '',
    url        TEXT NOT NULL,
    date       TIMESTAMPTZ NOT NULL,
    to_read    BOOLEAN NOT NULL DEFAULT FALSE,
    shared     BOOLEAN NOT NULL DEFAULT FALSE,
    notes      TEXT NOT NULL DEFAULT ''
)`,
			`CREATE TABLE IF NOT EXISTS tags (
    name TEXT PRIMARY KEY
)`,
			`CREATE TABLE IF NOT EXISTS bookmark_tags (
    bookmark_id TEXT NOT NULL REFERENCES bookmarks (identifier) ON DELETE CASCADE,
    tag_name    TEXT NOT NULL REFERENCES tags (name) ON DELETE CASCADE,
    PRIMARY KEY (bookmark_id, tag_name)
)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS bookmarks (
    identifier VARCHAR(255) COLLATE utf8mb4_bin PRIMARY KEY,
    title      TEXT NOT NULL,
    url        TEXT NOT NULL,
    date       DATETIME(6) NOT NULL,
    to_read    BOOLEAN NOT NULL DEFAULT FALSE,
    shared     BOOLEAN NOT NULL DEFAULT FALSE,
    notes      TEXT NOT NULL
) DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS tags (
    name VARCHAR(255) COLLATE utf8mb4_bin PRIMARY KEY
) DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS bookmark_tags (
    bookmark_id VARCHAR(255) COLLATE utf8mb4_bin NOT NULL,
    tag_name    VARCHAR(255) COLLATE utf8mb4_bin NOT NULL,
    PRIMARY KEY (bookmark_id, tag_name),
    FOREIGN KEY (bookmark_id) REFERENCES bookmarks (identifier) ON DELETE CASCADE,
    FOREIGN KEY (tag_name) REFERENCES tags (name) ON DELETE CASCADE
) DEFAULT CHARSET=utf8mb4`,
		}
	default: // sqlite3
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS bookmarks (
    identifier TEXT PRIMARY KEY,
    title      TEXT NOT NULL DEFAULT '',
    url        TEXT NOT NULL,
    date       DATETIME NOT NULL,
    to_read    BOOLEAN NOT NULL DEFAULT 0,
    shared     BOOLEAN NOT NULL DEFAULT 0,
    notes      TEXT NOT NULL DEFAULT ''
)`,
			`CREATE TABLE IF NOT EXISTS tags (
    name TEXT PRIMARY KEY
)`,
			`CREATE TABLE IF NOT EXISTS bookmark_tags (
    bookmark_id TEXT NOT NULL REFERENCES bookmarks (identifier) ON DELETE CASCADE,
    tag_name    TEXT NOT NULL REFERENCES tags (name) ON DELETE CASCADE,
    PRIMARY KEY (bookmark_id, tag_name)
)`,
		}
	}

	stmts = append(stmts,
		`CREATE INDEX bookmarks_date_idx ON bookmarks (date)`,
		`CREATE INDEX bookmark_tags_tag_name_idx ON bookmark_tags (tag_name)`,
	)
	if dialect != "mysql" {
		// MySQL cannot index a TEXT column without a prefix length.
		stmts = append(stmts, `CREATE INDEX bookmarks_url_idx ON bookmarks (url)`)
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create bookmark schema: %w", err)
		}
	}
	return nil
}

func downCreateBookmarks(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"bookmark_tags", "tags", "bookmarks"} {
		if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
			return err
		}
	}
	return nil
}
