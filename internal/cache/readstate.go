package cache

import (
	"context"
	"fmt"

	"github.com/adamavenir/chatcache/internal/db"
	"github.com/adamavenir/chatcache/internal/live"
	"github.com/adamavenir/chatcache/internal/types"
	"go.uber.org/zap"
)

// SaveReadPosition overwrites the read position of a conversation.
func (c *Cache) SaveReadPosition(ctx context.Context, key types.ConversationKey, msgID string, seq int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.secure(); err != nil {
		return err
	}
	return c.positions.Save(key, msgID, seq)
}

// ReadPosition returns the saved position or nil.
func (c *Cache) ReadPosition(ctx context.Context, key types.ConversationKey) (*types.ReadPosition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.secure(); err != nil {
		return nil, err
	}
	return c.positions.Get(key)
}

// ClearReadPosition forgets the position of a conversation.
func (c *Cache) ClearReadPosition(ctx context.Context, key types.ConversationKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.secure(); err != nil {
		return err
	}
	return c.positions.Clear(key)
}

// UnreadCount estimates the unread badge of a conversation from the newest cached seq
// and the saved read position.
func (c *Cache) UnreadCount(ctx context.Context, key types.ConversationKey) (int, error) {
	if err := c.secure(); err != nil {
		return 0, err
	}
	latest, err := c.LatestSeq(ctx, key.ChatID)
	if err != nil {
		return 0, err
	}
	return c.positions.UnreadCount(key, latest)
}

// OpenConversation records the newest cached message as read and zeroes the summary
// counters. It returns the saved position, or nil when the chat has no cached messages.
func (c *Cache) OpenConversation(ctx context.Context, key types.ConversationKey) (*types.ReadPosition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.secure(); err != nil {
		return nil, err
	}
	latest, err := db.GetLatestMessage(c.db, key.ChatID)
	if err != nil {
		return nil, err
	}

	var pos *types.ReadPosition
	if latest != nil {
		seq := int64(-1)
		if latest.Seq != nil {
			seq = *latest.Seq
		} else if maxSeq, err := db.LatestSeq(c.db, key.ChatID); err == nil && maxSeq != nil {
			seq = *maxSeq
		}
		if err := c.positions.Save(key, latest.MsgID, seq); err != nil {
			return nil, fmt.Errorf("save read position: %w", err)
		}
		pos = &types.ReadPosition{MsgID: latest.MsgID, Seq: seq}
	}

	changed, err := db.MarkConversationRead(c.db, key.ChatID)
	if err != nil {
		return pos, c.writeFailed("mark read", err)
	}
	if changed {
		c.publish(live.TableConversations, key.ChatID)
	}
	c.logger.Debug("conversation opened", zap.Stringer("key", key), zap.Bool("summary", changed))
	return pos, nil
}
