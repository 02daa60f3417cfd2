package command

import (
	"fmt"

	"github.com/adamavenir/chatcache/internal/cache"
	"github.com/adamavenir/chatcache/internal/types"
	"github.com/spf13/cobra"
)

// NewConversationsCmd creates the conversations command.
func NewConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List cached conversations, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			match, _ := cmd.Flags().GetString("match")
			watch, _ := cmd.Flags().GetBool("watch")
			render := func(list []types.ConversationSummary) error {
				filtered, err := cache.FilterConversations(list, match)
				if err != nil {
					return err
				}
				return printConversations(cmd, ctx, filtered)
			}

			if !watch {
				list, err := ctx.Cache.Conversations(commandCtx(cmd))
				if err != nil {
					return writeCommandError(cmd, err)
				}
				if err := render(list); err != nil {
					return writeCommandError(cmd, err)
				}
				return nil
			}

			runCtx := commandCtx(cmd)
			if err := ctx.Cache.FollowExternalWrites(runCtx); err != nil {
				return writeCommandError(cmd, err)
			}
			for list := range ctx.Cache.WatchConversations(runCtx) {
				if err := render(list); err != nil {
					return writeCommandError(cmd, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().String("match", "", "only conversations whose name or id matches this glob")
	cmd.Flags().Bool("watch", false, "keep running and reprint after every change")
	return cmd
}

func printConversations(cmd *cobra.Command, ctx *CommandContext, list []types.ConversationSummary) error {
	if ctx.JSONMode {
		if list == nil {
			list = []types.ConversationSummary{}
		}
		return writeJSON(cmd.OutOrStdout(), list)
	}
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No cached conversations")
		return nil
	}
	for _, c := range list {
		fmt.Fprintln(out, FormatConversation(c))
	}
	return nil
}
