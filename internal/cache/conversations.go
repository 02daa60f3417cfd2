package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/adamavenir/chatcache/internal/db"
	"github.com/adamavenir/chatcache/internal/live"
	"github.com/adamavenir/chatcache/internal/types"
	"github.com/gobwas/glob"
	"go.uber.org/zap"
)

// UpsertConversations replaces or inserts summaries as one batch.
func (c *Cache) UpsertConversations(ctx context.Context, summaries []types.ConversationSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(summaries) == 0 {
		return nil
	}
	if err := db.UpsertConversations(c.db, summaries); err != nil {
		return c.writeFailed("upsert conversations", err)
	}
	c.publish(live.TableConversations, "")
	return nil
}

// Conversations returns the current list, most recently updated first.
func (c *Cache) Conversations(ctx context.Context) ([]types.ConversationSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return db.GetConversations(c.db)
}

// Conversation returns one summary or nil.
func (c *Cache) Conversation(ctx context.Context, chatID string) (*types.ConversationSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return db.GetConversation(c.db, chatID)
}

// WatchConversations streams the full ordered list after every committed change to it.
func (c *Cache) WatchConversations(ctx context.Context) <-chan []types.ConversationSummary {
	return live.Watch(ctx, c.hub, live.Conversations(), c.Conversations, c.queryFailed("conversations"))
}

// MarkRead zeroes the unread and mention counters. It reports whether the chat was cached.
func (c *Cache) MarkRead(ctx context.Context, chatID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	changed, err := db.MarkConversationRead(c.db, chatID)
	if err != nil {
		return false, c.writeFailed("mark read", err)
	}
	if changed {
		c.publish(live.TableConversations, chatID)
	}
	return changed, nil
}

// RecordIncomingMessage bumps the unread counter and moves the preview.
func (c *Cache) RecordIncomingMessage(ctx context.Context, chatID, preview string, timestampMs int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	changed, err := db.RecordIncomingMessage(c.db, chatID, preview, timestampMs)
	if err != nil {
		return false, c.writeFailed("record incoming", err)
	}
	if changed {
		c.publish(live.TableConversations, chatID)
	}
	return changed, nil
}

// RecordIncomingMention bumps the mention counter.
func (c *Cache) RecordIncomingMention(ctx context.Context, chatID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	changed, err := db.RecordIncomingMention(c.db, chatID)
	if err != nil {
		return false, c.writeFailed("record mention", err)
	}
	if changed {
		c.publish(live.TableConversations, chatID)
	}
	return changed, nil
}

// UpdateConversationPreview moves the preview without touching counters.
func (c *Cache) UpdateConversationPreview(ctx context.Context, chatID, preview string, timestampMs int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	changed, err := db.UpdateConversationPreview(c.db, chatID, preview, timestampMs)
	if err != nil {
		return false, c.writeFailed("update preview", err)
	}
	if changed {
		c.publish(live.TableConversations, chatID)
	}
	return changed, nil
}

// DeleteConversation removes a conversation, its messages and its read position.
func (c *Cache) DeleteConversation(ctx context.Context, key types.ConversationKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	removed, err := db.DeleteConversation(c.db, key.ChatID)
	if err != nil {
		return false, c.writeFailed("delete conversation", err)
	}
	c.publish(live.TableConversations, key.ChatID)
	c.publish(live.TableMessages, key.ChatID)

	if c.secure() == nil && key.ChatType.Valid() {
		if err := c.positions.Clear(key); err != nil {
			return removed, fmt.Errorf("clear read position: %w", err)
		}
	}
	return removed, nil
}

// ClearConversations removes every summary.
func (c *Cache) ClearConversations(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := db.ClearConversations(c.db)
	if err != nil {
		return 0, c.writeFailed("clear conversations", err)
	}
	c.publish(live.TableConversations, "")
	return n, nil
}

// FilterConversations keeps summaries whose name or chat id matches a glob pattern such
// as "team-*". Matching is case-insensitive. An empty pattern keeps everything.
func FilterConversations(summaries []types.ConversationSummary, pattern string) ([]types.ConversationSummary, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return summaries, nil
	}
	matcher, err := glob.Compile(strings.ToLower(pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	out := make([]types.ConversationSummary, 0, len(summaries))
	for _, s := range summaries {
		if matcher.Match(strings.ToLower(s.Name)) || matcher.Match(strings.ToLower(s.ChatID)) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (c *Cache) queryFailed(stream string) func(error) {
	return func(err error) {
		c.logger.Warn("live query failed", zap.String("stream", stream), zap.Error(err))
	}
}
