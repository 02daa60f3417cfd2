package command

import (
	"fmt"
	"time"

	"github.com/adamavenir/chatcache/internal/core"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// NewPruneCmd creates the prune command.
func NewPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete cached messages older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			var retention time.Duration
			if value, _ := cmd.Flags().GetString("older-than"); value != "" {
				retention, err = core.ParseAge(value)
				if err != nil {
					return writeCommandError(cmd, err)
				}
			}
			result, err := ctx.Cache.PruneExpired(commandCtx(cmd), retention)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %s messages from %d conversations (cached before %s)\n",
				humanize.Comma(result.Removed), len(result.Chats),
				time.UnixMilli(result.ThresholdMs).Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().String("older-than", "", "retention window such as 30d, 2w or 72h (default: cache.retention)")
	return cmd
}
