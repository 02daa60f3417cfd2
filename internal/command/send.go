package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adamavenir/chatcache/internal/types"
	"github.com/adamavenir/chatcache/internal/vault"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const localSender = "me"

// NewSendCmd creates the send command.
func NewSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <chat-id> <text>",
		Short: "Cache a locally composed outbound message",
		Long:  "Cache a locally composed outbound message. The conversation preview moves forward; unread counters are not touched.",
		Args:  cobra.MinimumNArgs(2),
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
			text := strings.Join(args[1:], " ")
			if strings.TrimSpace(text) == "" {
				return writeCommandError(cmd, fmt.Errorf("message text is required"))
			}

			sender := localSender
			cred, err := ctx.Cache.Credential(runCtx)
			switch {
			case errors.Is(err, vault.ErrStorageUnavailable):
				ctx.Logger.Warn("sending without a stored identity", zap.Error(err))
			case err != nil:
				return writeCommandError(cmd, err)
			case cred != nil:
				sender = cred.UserID
			}

			msg := types.CachedMessage{
				MsgID:        uuid.NewString(),
				ChatID:       key.ChatID,
				ChatType:     key.ChatType,
				SenderChatID: sender,
				SenderName:   sender,
				Direction:    types.DirectionOutbound,
				ContentType:  types.ContentText,
				Text:         &text,
				SendTimeMs:   time.Now().UnixMilli(),
			}
			result, err := ctx.Cache.ReceiveMessage(runCtx, msg, false)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), msg)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cached %s in %s\n", msg.MsgID, key)
			if !result.SummaryUpdated {
				fmt.Fprintf(cmd.OutOrStdout(), "No cached conversation %s; preview not updated\n", key.ChatID)
			}
			return nil
		},
	}
	addChatTypeFlag(cmd)
	return cmd
}
