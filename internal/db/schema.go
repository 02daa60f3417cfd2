package db

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is stored in PRAGMA user_version. Bump it whenever the table layout changes;
// a mismatch drops every cache table and rebuilds them empty.
const SchemaVersion = 3

const schemaSQL = `
-- Conversation list summaries, one row per chat
CREATE TABLE IF NOT EXISTS cached_conversations (
  chat_id TEXT PRIMARY KEY,
  chat_type INTEGER NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  avatar_url TEXT,
  last_content TEXT NOT NULL DEFAULT '',
  last_update_ms INTEGER NOT NULL,       -- sort key, milliseconds
  legacy_timestamp INTEGER NOT NULL DEFAULT 0, -- upstream timestamp in seconds, passed through
  unread_count INTEGER NOT NULL DEFAULT 0 CHECK (unread_count >= 0),
  mention_flag INTEGER NOT NULL DEFAULT 0 CHECK (mention_flag >= 0),
  do_not_disturb INTEGER,
  certification_level INTEGER,
  cached_at_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cached_conversations_update ON cached_conversations(last_update_ms);

-- Cached messages
CREATE TABLE IF NOT EXISTS cached_messages (
  msg_id TEXT PRIMARY KEY,
  chat_id TEXT NOT NULL,
  chat_type INTEGER NOT NULL,
  sender_chat_id TEXT NOT NULL DEFAULT '',
  sender_name TEXT NOT NULL DEFAULT '',
  sender_avatar_url TEXT NOT NULL DEFAULT '',
  direction TEXT NOT NULL DEFAULT 'inbound',
  content_type INTEGER NOT NULL,
  content_text TEXT,
  content_image_url TEXT,
  content_file_name TEXT,
  content_file_url TEXT,
  quote_msg_id TEXT,
  quote_text TEXT,
  quote_image_url TEXT,
  send_time_ms INTEGER NOT NULL,
  seq INTEGER,                           -- per-conversation sync cursor
  edit_time_ms INTEGER,
  delete_time_ms INTEGER,                -- set when recalled
  cmd_name TEXT,
  cmd_type INTEGER,
  local_insert_ms INTEGER NOT NULL       -- retention key
);

CREATE INDEX IF NOT EXISTS idx_cached_messages_chat_seq ON cached_messages(chat_id, seq);
CREATE INDEX IF NOT EXISTS idx_cached_messages_chat_time ON cached_messages(chat_id, send_time_ms);
CREATE INDEX IF NOT EXISTS idx_cached_messages_insert ON cached_messages(local_insert_ms);
`

var cacheTables = []string{"cached_messages", "cached_conversations"}

// DBTX represents shared methods across sql.DB and sql.Tx.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// InitSchema creates the cache tables if they are missing. It returns true when an
// existing schema with a different version was dropped.
func InitSchema(db *sql.DB) (bool, error) {
	tx, err := db.Begin()
	if err != nil {
		return false, err
	}
	rebuilt, err := initSchemaWith(tx)
	if err != nil {
		_ = tx.Rollback()
		return false, err
	}
	return rebuilt, tx.Commit()
}

func initSchemaWith(db DBTX) (bool, error) {
	version, err := GetSchemaVersion(db)
	if err != nil {
		return false, err
	}
	exists, err := tablesExist(db)
	if err != nil {
		return false, err
	}

	rebuilt := false
	if exists && version != SchemaVersion {
		if err := dropCacheTables(db); err != nil {
			return false, err
		}
		rebuilt = true
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return false, err
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return false, err
	}
	return rebuilt, nil
}

// GetSchemaVersion returns PRAGMA user_version.
func GetSchemaVersion(db DBTX) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("pragma user_version: %w", err)
	}
	return version, nil
}

// SchemaExists reports whether the cache schema is present.
func SchemaExists(db *sql.DB) (bool, error) {
	return tablesExist(db)
}

func tablesExist(db DBTX) (bool, error) {
	row := db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name IN ('cached_conversations', 'cached_messages')
	`)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func dropCacheTables(db DBTX) error {
	for _, table := range cacheTables {
		if _, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return err
		}
	}
	return nil
}
