package command

import (
	"context"
	"fmt"

	"github.com/adamavenir/chatcache/internal/cache"
	"github.com/adamavenir/chatcache/internal/types"
	"github.com/spf13/cobra"
)

func addChatTypeFlag(cmd *cobra.Command) {
	cmd.Flags().String("chat-type", "", "chat type: direct, group or bot (default: from the cached conversation)")
}

// resolveKey builds the conversation key for chatID. An explicit --chat-type wins,
// otherwise the type is taken from the cached summary.
func resolveKey(ctx context.Context, cmd *cobra.Command, c *cache.Cache, chatID string) (types.ConversationKey, error) {
	if value, _ := cmd.Flags().GetString("chat-type"); value != "" {
		chatType, err := types.ParseChatType(value)
		if err != nil {
			return types.ConversationKey{}, err
		}
		return types.ConversationKey{ChatType: chatType, ChatID: chatID}, nil
	}
	summary, err := c.Conversation(ctx, chatID)
	if err != nil {
		return types.ConversationKey{}, err
	}
	if summary == nil {
		return types.ConversationKey{}, fmt.Errorf("conversation not cached: %s (pass --chat-type)", chatID)
	}
	return summary.Key(), nil
}
