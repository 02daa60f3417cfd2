package command

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const AppName = "chatcache"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "chatcache - local chat cache for offline reads",
		Long:          "chatcache keeps conversation summaries, messages, read positions and the session credential on disk.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("config", "", "config file (default ~/.config/chatcache/config.yaml)")
	cmd.PersistentFlags().String("data-dir", "", "cache directory")
	cmd.PersistentFlags().Bool("json", false, "output in JSON format")

	cmd.AddCommand(
		NewIngestCmd(),
		NewConversationsCmd(),
		NewMessagesCmd(),
		NewOpenCmd(),
		NewUnreadCmd(),
		NewPruneCmd(),
		NewDeleteCmd(),
		NewSendCmd(),
		NewLoginCmd(),
		NewWhoamiCmd(),
		NewLogoutCmd(),
		NewClearCmd(),
	)

	return cmd
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd(Version).ExecuteContext(ctx)
}
