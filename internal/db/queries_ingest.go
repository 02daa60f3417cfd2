package db

import (
	"database/sql"

	"github.com/adamavenir/chatcache/internal/types"
)

// IncomingResult reports what ApplyIncoming changed.
type IncomingResult struct {
	// SummaryUpdated is true when the conversation summary row was changed.
	SummaryUpdated bool `json:"summary_updated"`
	// Counted is true when the unread counter was incremented.
	Counted bool `json:"counted"`
	// Redelivered is true when the msg_id was already cached. Only the stored content changes.
	Redelivered bool `json:"redelivered"`
	// AlreadyRead is true when the message seq is at or below the saved read position.
	AlreadyRead bool `json:"already_read"`
}

// ApplyIncoming stores a delivered message and updates its conversation summary in one
// transaction. A new inbound message bumps the unread counter, and the mention counter
// when mentioned. Outbound messages and messages at or below readSeq only move the
// preview. A redelivered msg_id replaces the stored message and leaves the summary alone.
func ApplyIncoming(db *sql.DB, msg types.CachedMessage, mentioned bool, readSeq *int64) (IncomingResult, error) {
	var result IncomingResult
	err := withTx(db, func(tx *sql.Tx) error {
		existed, err := messageExists(tx, msg.MsgID)
		if err != nil {
			return err
		}
		if err := upsertMessagesTx(tx, []types.CachedMessage{msg}); err != nil {
			return err
		}
		if existed {
			result.Redelivered = true
			return nil
		}

		result.AlreadyRead = readSeq != nil && msg.Seq != nil && *msg.Seq <= *readSeq
		preview := msg.Preview()
		if msg.Direction == types.DirectionOutbound || result.AlreadyRead {
			result.SummaryUpdated, err = updatePreview(tx, msg.ChatID, preview, msg.SendTimeMs)
			return err
		}

		if result.SummaryUpdated, err = recordIncoming(tx, msg.ChatID, preview, msg.SendTimeMs); err != nil {
			return err
		}
		result.Counted = result.SummaryUpdated
		if result.Counted && mentioned {
			_, err = recordMention(tx, msg.ChatID)
		}
		return err
	})
	if err != nil {
		return IncomingResult{}, wrapWriteError("apply incoming", err)
	}
	return result, nil
}

func messageExists(db DBTX, msgID string) (bool, error) {
	var one int
	err := db.QueryRow("SELECT 1 FROM cached_messages WHERE msg_id = ?", msgID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// GetLatestMessage returns the newest message of a chat by send time, or nil.
func GetLatestMessage(db DBTX, chatID string) (*types.CachedMessage, error) {
	row := db.QueryRow(`
		SELECT `+messageColumns+`
		FROM cached_messages
		WHERE chat_id = ?
		ORDER BY send_time_ms DESC, msg_id DESC
		LIMIT 1
	`, chatID)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ClearCache empties both cache tables atomically.
func ClearCache(db *sql.DB) error {
	err := withTx(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM cached_messages"); err != nil {
			return err
		}
		_, err := tx.Exec("DELETE FROM cached_conversations")
		return err
	})
	return wrapWriteError("clear cache", err)
}
