package db

import (
	"database/sql"

	"github.com/adamavenir/chatcache/internal/types"
)

// DefaultPageSize is used when a paged query is given a non-positive limit.
const DefaultPageSize = 50

// messageColumns is the explicit column list for SELECT queries.
const messageColumns = `msg_id, chat_id, chat_type, sender_chat_id, sender_name, sender_avatar_url, direction, content_type, content_text, content_image_url, content_file_name, content_file_url, quote_msg_id, quote_text, quote_image_url, send_time_ms, seq, edit_time_ms, delete_time_ms, cmd_name, cmd_type, local_insert_ms`

const upsertMessageSQL = `
	INSERT INTO cached_messages (` + messageColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(msg_id) DO UPDATE SET
		chat_id = excluded.chat_id,
		chat_type = excluded.chat_type,
		sender_chat_id = excluded.sender_chat_id,
		sender_name = excluded.sender_name,
		sender_avatar_url = excluded.sender_avatar_url,
		direction = excluded.direction,
		content_type = excluded.content_type,
		content_text = excluded.content_text,
		content_image_url = excluded.content_image_url,
		content_file_name = excluded.content_file_name,
		content_file_url = excluded.content_file_url,
		quote_msg_id = excluded.quote_msg_id,
		quote_text = excluded.quote_text,
		quote_image_url = excluded.quote_image_url,
		send_time_ms = excluded.send_time_ms,
		seq = excluded.seq,
		edit_time_ms = excluded.edit_time_ms,
		delete_time_ms = excluded.delete_time_ms,
		cmd_name = excluded.cmd_name,
		cmd_type = excluded.cmd_type,
		local_insert_ms = excluded.local_insert_ms
`

// UpsertMessage replaces or inserts a single message.
func UpsertMessage(db *sql.DB, message types.CachedMessage) error {
	return UpsertMessages(db, []types.CachedMessage{message})
}

// UpsertMessages replaces or inserts messages keyed by msg_id as one atomic batch.
// A zero LocalInsertTimeMs is stamped with the current time.
func UpsertMessages(db *sql.DB, messages []types.CachedMessage) error {
	if len(messages) == 0 {
		return nil
	}
	err := withTx(db, func(tx *sql.Tx) error {
		return upsertMessagesTx(tx, messages)
	})
	return wrapWriteError("upsert messages", err)
}

func upsertMessagesTx(tx *sql.Tx, messages []types.CachedMessage) error {
	stmt, err := tx.Prepare(upsertMessageSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := nowMillis()
	for _, m := range messages {
		insertedAt := m.LocalInsertTimeMs
		if insertedAt == 0 {
			insertedAt = now
		}
		direction := m.Direction
		if direction == "" {
			direction = types.DirectionInbound
		}
		if _, err := stmt.Exec(
			m.MsgID,
			m.ChatID,
			int(m.ChatType),
			m.SenderChatID,
			m.SenderName,
			m.SenderAvatarURL,
			string(direction),
			int(m.ContentType),
			nullableValue(m.Text),
			nullableValue(m.ImageURL),
			nullableValue(m.FileName),
			nullableValue(m.FileURL),
			nullableValue(m.QuoteMsgID),
			nullableValue(m.QuoteText),
			nullableValue(m.QuoteImageURL),
			m.SendTimeMs,
			nullableValue(m.Seq),
			nullableValue(m.EditTimeMs),
			nullableValue(m.DeleteTimeMs),
			nullableValue(m.CmdName),
			nullableValue(m.CmdType),
			insertedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

// GetMessages returns every cached message of a chat in display order.
func GetMessages(db DBTX, chatID string) ([]types.CachedMessage, error) {
	rows, err := db.Query(`
		SELECT `+messageColumns+`
		FROM cached_messages
		WHERE chat_id = ?
		ORDER BY send_time_ms ASC, msg_id ASC
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetMessagesAfter returns at most limit messages with seq > afterSeq in display order.
// Messages without a sequence number never match the cursor.
func GetMessagesAfter(db DBTX, chatID string, afterSeq int64, limit int) ([]types.CachedMessage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	rows, err := db.Query(`
		SELECT `+messageColumns+`
		FROM cached_messages
		WHERE chat_id = ? AND seq IS NOT NULL AND seq > ?
		ORDER BY send_time_ms ASC, msg_id ASC
		LIMIT ?
	`, chatID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetMessagesBefore returns the newest limit messages sent strictly before beforeMs,
// in display order. It is the cursor for chats whose messages carry no seq.
func GetMessagesBefore(db DBTX, chatID string, beforeMs int64, limit int) ([]types.CachedMessage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	rows, err := db.Query(`
		SELECT `+messageColumns+` FROM (
			SELECT `+messageColumns+`
			FROM cached_messages
			WHERE chat_id = ? AND send_time_ms < ?
			ORDER BY send_time_ms DESC, msg_id DESC
			LIMIT ?
		) ORDER BY send_time_ms ASC, msg_id ASC
	`, chatID, beforeMs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetMessage returns a message by id or nil when it is not cached.
func GetMessage(db DBTX, msgID string) (*types.CachedMessage, error) {
	row := db.QueryRow(`
		SELECT `+messageColumns+`
		FROM cached_messages
		WHERE msg_id = ?
	`, msgID)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// CountMessages returns the number of cached messages in a chat.
func CountMessages(db DBTX, chatID string) (int, error) {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM cached_messages WHERE chat_id = ?", chatID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// LatestSeq returns the highest cached sequence number of a chat, or nil if none is known.
func LatestSeq(db DBTX, chatID string) (*int64, error) {
	var seq sql.NullInt64
	if err := db.QueryRow("SELECT MAX(seq) FROM cached_messages WHERE chat_id = ?", chatID).Scan(&seq); err != nil {
		return nil, err
	}
	return nullIntPtr(seq), nil
}

// DeleteMessagesForConversation removes all cached messages of a chat.
func DeleteMessagesForConversation(db DBTX, chatID string) (int64, error) {
	result, err := db.Exec("DELETE FROM cached_messages WHERE chat_id = ?", chatID)
	if err != nil {
		return 0, wrapWriteError("delete chat messages", err)
	}
	return result.RowsAffected()
}

// DeleteAllMessages removes every cached message.
func DeleteAllMessages(db DBTX) (int64, error) {
	result, err := db.Exec("DELETE FROM cached_messages")
	if err != nil {
		return 0, wrapWriteError("delete messages", err)
	}
	return result.RowsAffected()
}

// DeleteMessage removes one message and returns the chat it belonged to, or "" when the
// message was not cached.
func DeleteMessage(db *sql.DB, msgID string) (string, error) {
	var chatID string
	err := withTx(db, func(tx *sql.Tx) error {
		err := tx.QueryRow("SELECT chat_id FROM cached_messages WHERE msg_id = ?", msgID).Scan(&chatID)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.Exec("DELETE FROM cached_messages WHERE msg_id = ?", msgID)
		return err
	})
	if err != nil {
		return "", wrapWriteError("delete message", err)
	}
	return chatID, nil
}

// PruneMessagesOlderThan deletes messages whose local insert time is strictly before thresholdMs.
func PruneMessagesOlderThan(db DBTX, thresholdMs int64) (int64, error) {
	removed, err := pruneOlderThan(db, thresholdMs)
	if err != nil {
		return 0, wrapWriteError("prune messages", err)
	}
	return removed, nil
}

// PruneMessages lists the affected chats and deletes their expired messages in one
// transaction, so the reported chats match the deleted rows.
func PruneMessages(db *sql.DB, thresholdMs int64) ([]string, int64, error) {
	var (
		chats   []string
		removed int64
	)
	err := withTx(db, func(tx *sql.Tx) error {
		var err error
		if chats, err = ChatsWithMessagesOlderThan(tx, thresholdMs); err != nil {
			return err
		}
		removed, err = pruneOlderThan(tx, thresholdMs)
		return err
	})
	if err != nil {
		return nil, 0, wrapWriteError("prune messages", err)
	}
	return chats, removed, nil
}

func pruneOlderThan(db DBTX, thresholdMs int64) (int64, error) {
	result, err := db.Exec("DELETE FROM cached_messages WHERE local_insert_ms < ?", thresholdMs)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ChatsWithMessagesOlderThan lists chats that a prune at thresholdMs would touch.
func ChatsWithMessagesOlderThan(db DBTX, thresholdMs int64) ([]string, error) {
	rows, err := db.Query(`
		SELECT DISTINCT chat_id FROM cached_messages
		WHERE local_insert_ms < ?
		ORDER BY chat_id
	`, thresholdMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []string
	for rows.Next() {
		var chatID string
		if err := rows.Scan(&chatID); err != nil {
			return nil, err
		}
		chats = append(chats, chatID)
	}
	return chats, rows.Err()
}

func scanMessage(scanner rowScanner) (types.CachedMessage, error) {
	var (
		m             types.CachedMessage
		chatType      int
		direction     string
		contentType   int
		text          sql.NullString
		imageURL      sql.NullString
		fileName      sql.NullString
		fileURL       sql.NullString
		quoteMsgID    sql.NullString
		quoteText     sql.NullString
		quoteImageURL sql.NullString
		seq           sql.NullInt64
		editTime      sql.NullInt64
		deleteTime    sql.NullInt64
		cmdName       sql.NullString
		cmdType       sql.NullInt64
	)
	if err := scanner.Scan(
		&m.MsgID,
		&m.ChatID,
		&chatType,
		&m.SenderChatID,
		&m.SenderName,
		&m.SenderAvatarURL,
		&direction,
		&contentType,
		&text,
		&imageURL,
		&fileName,
		&fileURL,
		&quoteMsgID,
		&quoteText,
		&quoteImageURL,
		&m.SendTimeMs,
		&seq,
		&editTime,
		&deleteTime,
		&cmdName,
		&cmdType,
		&m.LocalInsertTimeMs,
	); err != nil {
		return types.CachedMessage{}, err
	}
	m.ChatType = types.ChatType(chatType)
	m.Direction = types.Direction(direction)
	m.ContentType = types.ContentType(contentType)
	m.Text = nullStringPtr(text)
	m.ImageURL = nullStringPtr(imageURL)
	m.FileName = nullStringPtr(fileName)
	m.FileURL = nullStringPtr(fileURL)
	m.QuoteMsgID = nullStringPtr(quoteMsgID)
	m.QuoteText = nullStringPtr(quoteText)
	m.QuoteImageURL = nullStringPtr(quoteImageURL)
	m.Seq = nullIntPtr(seq)
	m.EditTimeMs = nullIntPtr(editTime)
	m.DeleteTimeMs = nullIntPtr(deleteTime)
	m.CmdName = nullStringPtr(cmdName)
	m.CmdType = nullSmallIntPtr(cmdType)
	return m, nil
}

func scanMessages(rows *sql.Rows) ([]types.CachedMessage, error) {
	messages := make([]types.CachedMessage, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}
