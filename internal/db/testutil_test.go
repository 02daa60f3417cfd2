package db

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/adamavenir/chatcache/internal/types"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenDatabase(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func requireSchema(t *testing.T, db *sql.DB) {
	t.Helper()
	if _, err := InitSchema(db); err != nil {
		t.Fatalf("init schema: %v", err)
	}
}

func strPtr(value string) *string {
	return &value
}

func intPtr(value int64) *int64 {
	return &value
}

func conversation(chatID string, updatedMs int64) types.ConversationSummary {
	return types.ConversationSummary{
		ChatID:           chatID,
		ChatType:         types.ChatTypeGroup,
		Name:             "chat " + chatID,
		LastContent:      "hello",
		LastUpdateTimeMs: updatedMs,
		LegacyTimestamp:  updatedMs / 1000,
	}
}

func message(msgID, chatID string, sendMs int64, seq *int64) types.CachedMessage {
	return types.CachedMessage{
		MsgID:        msgID,
		ChatID:       chatID,
		ChatType:     types.ChatTypeGroup,
		SenderChatID: "u1",
		SenderName:   "alice",
		Direction:    types.DirectionInbound,
		ContentType:  types.ContentText,
		Text:         strPtr("body of " + msgID),
		SendTimeMs:   sendMs,
		Seq:          seq,
	}
}

func ids(messages []types.CachedMessage) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.MsgID)
	}
	return out
}
