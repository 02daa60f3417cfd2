package db

import (
	"database/sql"

	"github.com/adamavenir/chatcache/internal/types"
)

const conversationColumns = `chat_id, chat_type, name, avatar_url, last_content, last_update_ms, legacy_timestamp, unread_count, mention_flag, do_not_disturb, certification_level, cached_at_ms`

const upsertConversationSQL = `
	INSERT INTO cached_conversations (` + conversationColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(chat_id) DO UPDATE SET
		chat_type = excluded.chat_type,
		name = excluded.name,
		avatar_url = excluded.avatar_url,
		last_content = excluded.last_content,
		last_update_ms = excluded.last_update_ms,
		legacy_timestamp = excluded.legacy_timestamp,
		unread_count = excluded.unread_count,
		mention_flag = excluded.mention_flag,
		do_not_disturb = excluded.do_not_disturb,
		certification_level = excluded.certification_level,
		cached_at_ms = excluded.cached_at_ms
`

// UpsertConversations replaces or inserts every summary in one transaction.
// Rows are full replacements; no field of an existing row survives.
func UpsertConversations(db *sql.DB, summaries []types.ConversationSummary) error {
	if len(summaries) == 0 {
		return nil
	}
	err := withTx(db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(upsertConversationSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := nowMillis()
		for _, c := range summaries {
			cachedAt := c.CachedAtMs
			if cachedAt == 0 {
				cachedAt = now
			}
			if _, err := stmt.Exec(
				c.ChatID,
				int(c.ChatType),
				c.Name,
				nullableValue(c.AvatarURL),
				c.LastContent,
				c.LastUpdateTimeMs,
				c.LegacyTimestamp,
				clampCounter(c.UnreadCount),
				clampCounter(c.MentionFlag),
				nullableValue(c.DoNotDisturb),
				nullableValue(c.CertificationLevel),
				cachedAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
	return wrapWriteError("upsert conversations", err)
}

// GetConversations returns all summaries, most recently updated first.
func GetConversations(db DBTX) ([]types.ConversationSummary, error) {
	rows, err := db.Query(`
		SELECT ` + conversationColumns + `
		FROM cached_conversations
		ORDER BY last_update_ms DESC, chat_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanConversations(rows)
}

// GetConversation returns a single summary or nil when the chat is not cached.
func GetConversation(db DBTX, chatID string) (*types.ConversationSummary, error) {
	row := db.QueryRow(`
		SELECT `+conversationColumns+`
		FROM cached_conversations
		WHERE chat_id = ?
	`, chatID)
	summary, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// MarkConversationRead zeroes the unread and mention counters. It reports whether a row matched.
func MarkConversationRead(db DBTX, chatID string) (bool, error) {
	result, err := db.Exec(`
		UPDATE cached_conversations SET unread_count = 0, mention_flag = 0
		WHERE chat_id = ?
	`, chatID)
	if err != nil {
		return false, wrapWriteError("mark read", err)
	}
	return affected(result)
}

// RecordIncomingMessage bumps the unread counter and overwrites the preview in a single
// statement, so concurrent deliveries for one chat never lose an increment.
func RecordIncomingMessage(db DBTX, chatID, preview string, timestampMs int64) (bool, error) {
	updated, err := recordIncoming(db, chatID, preview, timestampMs)
	return updated, wrapWriteError("record incoming", err)
}

// RecordIncomingMention bumps the mention counter.
func RecordIncomingMention(db DBTX, chatID string) (bool, error) {
	updated, err := recordMention(db, chatID)
	return updated, wrapWriteError("record mention", err)
}

// UpdateConversationPreview overwrites the preview and sort key without touching counters.
func UpdateConversationPreview(db DBTX, chatID, preview string, timestampMs int64) (bool, error) {
	updated, err := updatePreview(db, chatID, preview, timestampMs)
	return updated, wrapWriteError("update preview", err)
}

func recordIncoming(db DBTX, chatID, preview string, timestampMs int64) (bool, error) {
	result, err := db.Exec(`
		UPDATE cached_conversations
		SET unread_count = unread_count + 1, last_content = ?, last_update_ms = ?
		WHERE chat_id = ?
	`, preview, timestampMs, chatID)
	if err != nil {
		return false, err
	}
	return affected(result)
}

func recordMention(db DBTX, chatID string) (bool, error) {
	result, err := db.Exec(`
		UPDATE cached_conversations SET mention_flag = mention_flag + 1
		WHERE chat_id = ?
	`, chatID)
	if err != nil {
		return false, err
	}
	return affected(result)
}

func updatePreview(db DBTX, chatID, preview string, timestampMs int64) (bool, error) {
	result, err := db.Exec(`
		UPDATE cached_conversations SET last_content = ?, last_update_ms = ?
		WHERE chat_id = ?
	`, preview, timestampMs, chatID)
	if err != nil {
		return false, err
	}
	return affected(result)
}

// DeleteConversation removes a conversation and its cached messages.
func DeleteConversation(db *sql.DB, chatID string) (bool, error) {
	var removed bool
	err := withTx(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM cached_messages WHERE chat_id = ?", chatID); err != nil {
			return err
		}
		result, err := tx.Exec("DELETE FROM cached_conversations WHERE chat_id = ?", chatID)
		if err != nil {
			return err
		}
		removed, err = affected(result)
		return err
	})
	if err != nil {
		return false, wrapWriteError("delete conversation", err)
	}
	return removed, nil
}

// ClearConversations removes every summary.
func ClearConversations(db DBTX) (int64, error) {
	result, err := db.Exec("DELETE FROM cached_conversations")
	if err != nil {
		return 0, wrapWriteError("clear conversations", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(scanner rowScanner) (types.ConversationSummary, error) {
	var (
		c             types.ConversationSummary
		chatType      int
		avatarURL     sql.NullString
		doNotDisturb  sql.NullInt64
		certification sql.NullInt64
	)
	if err := scanner.Scan(
		&c.ChatID,
		&chatType,
		&c.Name,
		&avatarURL,
		&c.LastContent,
		&c.LastUpdateTimeMs,
		&c.LegacyTimestamp,
		&c.UnreadCount,
		&c.MentionFlag,
		&doNotDisturb,
		&certification,
		&c.CachedAtMs,
	); err != nil {
		return types.ConversationSummary{}, err
	}
	c.ChatType = types.ChatType(chatType)
	c.AvatarURL = nullStringPtr(avatarURL)
	c.DoNotDisturb = nullSmallIntPtr(doNotDisturb)
	c.CertificationLevel = nullSmallIntPtr(certification)
	return c, nil
}

func scanConversations(rows *sql.Rows) ([]types.ConversationSummary, error) {
	summaries := make([]types.ConversationSummary, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
