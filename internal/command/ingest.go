package command

import (
	"fmt"

	"github.com/adamavenir/chatcache/internal/ingest"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewIngestCmd creates the ingest command.
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file.jsonl>",
		Short: "Apply a JSONL sync delta to the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			batch, err := ingest.ParseFile(args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			result, err := ingest.Apply(commandCtx(cmd), ctx.Cache, batch)
			if err != nil {
				ctx.Logger.Error("ingest failed", zap.String("file", args[0]), zap.Error(err))
				return writeCommandError(cmd, err)
			}
			if result.Skipped > 0 || result.Unknown > 0 {
				ctx.Logger.Warn("ingest skipped records",
					zap.String("file", args[0]),
					zap.Int("skipped", result.Skipped),
					zap.Int("unknown", result.Unknown))
			}

			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Ingested %d conversations, %d messages, %d incoming\n",
				result.Conversations, result.Messages, result.Incoming)
			if result.Redelivered > 0 || result.AlreadyRead > 0 {
				fmt.Fprintf(out, "%d redelivered and %d already read; unread counts unchanged for those\n",
					result.Redelivered, result.AlreadyRead)
			}
			if result.MissingChats > 0 {
				fmt.Fprintf(out, "%d incoming messages had no cached conversation\n", result.MissingChats)
			}
			if result.Skipped > 0 || result.Unknown > 0 {
				fmt.Fprintf(out, "Skipped %d malformed and %d unknown records\n", result.Skipped, result.Unknown)
			}
			return nil
		},
	}
	return cmd
}
