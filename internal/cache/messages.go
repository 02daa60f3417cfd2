package cache

import (
	"context"
	"sort"
	"time"

	"github.com/adamavenir/chatcache/internal/db"
	"github.com/adamavenir/chatcache/internal/live"
	"github.com/adamavenir/chatcache/internal/types"
	"go.uber.org/zap"
)

// PruneResult summarizes a retention sweep.
type PruneResult struct {
	Removed     int64    `json:"removed"`
	Chats       []string `json:"chats"`
	ThresholdMs int64    `json:"threshold_ms"`
}

// UpsertMessages stores messages as one batch.
func (c *Cache) UpsertMessages(ctx context.Context, messages []types.CachedMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	if err := db.UpsertMessages(c.db, messages); err != nil {
		return c.writeFailed("upsert messages", err)
	}
	for _, chatID := range distinctChats(messages) {
		c.publish(live.TableMessages, chatID)
	}
	return nil
}

// UpsertMessage stores one message.
func (c *Cache) UpsertMessage(ctx context.Context, message types.CachedMessage) error {
	return c.UpsertMessages(ctx, []types.CachedMessage{message})
}

// IncomingResult reports how a delivered message changed its conversation.
type IncomingResult = db.IncomingResult

// ReceiveMessage stores a delivered message and updates its summary atomically. A
// redelivered msg_id or a seq at or below the saved read position does not count as
// unread. When the vault is unavailable the read position is not consulted.
func (c *Cache) ReceiveMessage(ctx context.Context, message types.CachedMessage, mentioned bool) (IncomingResult, error) {
	if err := ctx.Err(); err != nil {
		return IncomingResult{}, err
	}
	readSeq, err := c.readSeq(message.Key())
	if err != nil {
		return IncomingResult{}, err
	}
	result, err := db.ApplyIncoming(c.db, message, mentioned, readSeq)
	if err != nil {
		return IncomingResult{}, c.writeFailed("receive message", err)
	}
	c.publish(live.TableMessages, message.ChatID)
	if result.SummaryUpdated {
		c.publish(live.TableConversations, message.ChatID)
	}
	return result, nil
}

func (c *Cache) readSeq(key types.ConversationKey) (*int64, error) {
	if c.secure() != nil || !key.ChatType.Valid() {
		return nil, nil
	}
	pos, err := c.positions.Get(key)
	if err != nil || pos == nil {
		return nil, err
	}
	return &pos.Seq, nil
}

// Messages returns every cached message of a chat in display order.
func (c *Cache) Messages(ctx context.Context, chatID string) ([]types.CachedMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return db.GetMessages(c.db, chatID)
}

// WatchMessages streams the messages of a chat after every committed change to them.
func (c *Cache) WatchMessages(ctx context.Context, chatID string) <-chan []types.CachedMessage {
	query := func(ctx context.Context) ([]types.CachedMessage, error) {
		return c.Messages(ctx, chatID)
	}
	return live.Watch(ctx, c.hub, live.Messages(chatID), query, c.queryFailed("messages"))
}

// MessagesAfter returns at most limit messages with seq > afterSeq. A non-positive limit
// uses the configured page size.
func (c *Cache) MessagesAfter(ctx context.Context, chatID string, afterSeq int64, limit int) ([]types.CachedMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = c.pageSize
	}
	return db.GetMessagesAfter(c.db, chatID, afterSeq, limit)
}

// MessagesBefore returns the newest limit messages sent before beforeMs.
func (c *Cache) MessagesBefore(ctx context.Context, chatID string, beforeMs int64, limit int) ([]types.CachedMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = c.pageSize
	}
	return db.GetMessagesBefore(c.db, chatID, beforeMs, limit)
}

// Message returns one message or nil.
func (c *Cache) Message(ctx context.Context, msgID string) (*types.CachedMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return db.GetMessage(c.db, msgID)
}

// CountMessages returns the number of cached messages in a chat.
func (c *Cache) CountMessages(ctx context.Context, chatID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return db.CountMessages(c.db, chatID)
}

// LatestSeq returns the highest cached seq of a chat, or nil.
func (c *Cache) LatestSeq(ctx context.Context, chatID string) (*int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return db.LatestSeq(c.db, chatID)
}

// DeleteMessages removes all cached messages of a chat.
func (c *Cache) DeleteMessages(ctx context.Context, chatID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := db.DeleteMessagesForConversation(c.db, chatID)
	if err != nil {
		return 0, c.writeFailed("delete messages", err)
	}
	c.publish(live.TableMessages, chatID)
	return n, nil
}

// DeleteMessage removes one cached message. It reports whether the message existed.
func (c *Cache) DeleteMessage(ctx context.Context, msgID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	chatID, err := db.DeleteMessage(c.db, msgID)
	if err != nil {
		return false, c.writeFailed("delete message", err)
	}
	if chatID == "" {
		return false, nil
	}
	c.publish(live.TableMessages, chatID)
	return true, nil
}

// DeleteAllMessages removes every cached message.
func (c *Cache) DeleteAllMessages(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := db.DeleteAllMessages(c.db)
	if err != nil {
		return 0, c.writeFailed("delete all messages", err)
	}
	c.publish(live.TableMessages, "")
	return n, nil
}

// PruneMessagesOlderThan deletes messages inserted locally before thresholdMs.
func (c *Cache) PruneMessagesOlderThan(ctx context.Context, thresholdMs int64) (PruneResult, error) {
	if err := ctx.Err(); err != nil {
		return PruneResult{}, err
	}
	chats, removed, err := db.PruneMessages(c.db, thresholdMs)
	if err != nil {
		return PruneResult{}, c.writeFailed("prune messages", err)
	}
	if chats == nil {
		chats = []string{}
	}
	for _, chatID := range chats {
		c.publish(live.TableMessages, chatID)
	}
	c.logger.Info("pruned cached messages",
		zap.Int64("removed", removed),
		zap.Int("chats", len(chats)),
		zap.Int64("threshold_ms", thresholdMs))
	return PruneResult{Removed: removed, Chats: chats, ThresholdMs: thresholdMs}, nil
}

// PruneExpired deletes messages older than retention, or the configured retention when
// retention is zero.
func (c *Cache) PruneExpired(ctx context.Context, retention time.Duration) (PruneResult, error) {
	if retention <= 0 {
		retention = c.retention
	}
	threshold := c.now().Add(-retention).UnixMilli()
	return c.PruneMessagesOlderThan(ctx, threshold)
}

func distinctChats(messages []types.CachedMessage) []string {
	seen := make(map[string]struct{}, len(messages))
	var chats []string
	for _, m := range messages {
		if _, ok := seen[m.ChatID]; ok {
			continue
		}
		seen[m.ChatID] = struct{}{}
		chats = append(chats, m.ChatID)
	}
	sort.Strings(chats)
	return chats
}
