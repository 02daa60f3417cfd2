package command

import (
	"fmt"

	"github.com/adamavenir/chatcache/internal/core"
	"github.com/adamavenir/chatcache/internal/types"
	"github.com/spf13/cobra"
)

// NewMessagesCmd creates the messages command.
func NewMessagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages <chat-id>",
		Short: "Show cached messages of a conversation",
		Long: "Show cached messages of a conversation. With --after only messages with a higher seq are shown;\n" +
			"with --before the newest messages sent before the given millisecond timestamp.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			chatID := args[0]
			runCtx := commandCtx(cmd)
			limit, _ := cmd.Flags().GetInt("limit")
			watch, _ := cmd.Flags().GetBool("watch")
			afterSet := cmd.Flags().Changed("after")
			beforeSet := cmd.Flags().Changed("before")
			if afterSet && beforeSet {
				return writeCommandError(cmd, fmt.Errorf("--after and --before cannot be combined"))
			}
			if watch && (afterSet || beforeSet) {
				return writeCommandError(cmd, fmt.Errorf("--watch cannot be combined with --after or --before"))
			}

			if watch {
				if err := ctx.Cache.FollowExternalWrites(runCtx); err != nil {
					return writeCommandError(cmd, err)
				}
				for list := range ctx.Cache.WatchMessages(runCtx, chatID) {
					if err := printMessages(cmd, ctx, list); err != nil {
						return writeCommandError(cmd, err)
					}
				}
				return nil
			}

			var list []types.CachedMessage
			switch {
			case afterSet:
				after, _ := cmd.Flags().GetInt64("after")
				list, err = ctx.Cache.MessagesAfter(runCtx, chatID, after, limit)
			case beforeSet:
				before, _ := cmd.Flags().GetInt64("before")
				list, err = ctx.Cache.MessagesBefore(runCtx, chatID, before, limit)
			default:
				list, err = ctx.Cache.Messages(runCtx, chatID)
				if err == nil && limit > 0 && len(list) > limit {
					list = list[len(list)-limit:]
				}
			}
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := printMessages(cmd, ctx, list); err != nil {
				return writeCommandError(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().Int64("after", 0, "only messages with seq greater than this")
	cmd.Flags().Int64("before", 0, "only messages sent before this millisecond timestamp")
	cmd.Flags().Int("limit", 0, "maximum messages to show (default: configured page size for --after/--before)")
	cmd.Flags().Bool("watch", false, "keep running and reprint after every change")
	return cmd
}

func printMessages(cmd *cobra.Command, ctx *CommandContext, list []types.CachedMessage) error {
	if ctx.JSONMode {
		if list == nil {
			list = []types.CachedMessage{}
		}
		return writeJSON(cmd.OutOrStdout(), list)
	}
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No cached messages")
		return nil
	}
	idLength := core.DisplayIDLength(len(list))
	for _, m := range list {
		fmt.Fprintln(out, FormatMessage(m, idLength))
	}
	return nil
}
