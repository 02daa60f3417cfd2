package command

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewOpenCmd creates the open command.
func NewOpenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open <chat-id>",
		Short: "Mark a conversation read up to its newest cached message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			runCtx := commandCtx(cmd)
			key, err := resolveKey(runCtx, cmd, ctx.Cache, args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			pos, err := ctx.Cache.OpenConversation(runCtx, key)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"chat_id":   key.ChatID,
					"chat_type": key.ChatType,
					"position":  pos,
				})
			}
			if pos == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %s read (no cached messages)\n", key)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %s read at %s (seq %d)\n", key, pos.MsgID, pos.Seq)
			return nil
		},
	}
	addChatTypeFlag(cmd)
	return cmd
}

// NewUnreadCmd creates the unread command.
func NewUnreadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unread <chat-id>",
		Short: "Show unread counts for a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			runCtx := commandCtx(cmd)
			key, err := resolveKey(runCtx, cmd, ctx.Cache, args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			estimated, err := ctx.Cache.UnreadCount(runCtx, key)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			pos, err := ctx.Cache.ReadPosition(runCtx, key)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			badge := 0
			summary, err := ctx.Cache.Conversation(runCtx, key.ChatID)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if summary != nil {
				badge = summary.UnreadCount
			}

			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"chat_id":   key.ChatID,
					"unread":    badge,
					"estimated": estimated,
					"position":  pos,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d unread (%d since read position)\n", key, badge, estimated)
			if pos != nil {
				fmt.Fprintf(out, "Read position: %s (seq %d)\n", pos.MsgID, pos.Seq)
			}
			return nil
		},
	}
	addChatTypeFlag(cmd)
	return cmd
}
