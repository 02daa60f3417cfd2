package command

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDeleteCmd creates the delete command.
func NewDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <chat-id>",
		Short: "Remove a conversation with its messages and read position",
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
			removed, err := ctx.Cache.DeleteConversation(runCtx, key)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"chat_id": key.ChatID, "removed": removed})
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "No cached conversation %s\n", key.ChatID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", key)
			return nil
		},
	}
	addChatTypeFlag(cmd)
	return cmd
}
