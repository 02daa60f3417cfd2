package command

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLoginCmd creates the login command.
func NewLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <user-id> <token>",
		Short: "Store the session credential in encrypted storage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			cred, err := ctx.Cache.Login(commandCtx(cmd), args[1], args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"user_id":       cred.UserID,
					"last_login_ms": cred.LastLoginMs,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", cred.UserID)
			return nil
		},
	}
	return cmd
}

// NewWhoamiCmd creates the whoami command.
func NewWhoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			cred, err := ctx.Cache.Credential(commandCtx(cmd))
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				if cred == nil {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"logged_in": false})
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"logged_in":     true,
					"user_id":       cred.UserID,
					"last_login_ms": cred.LastLoginMs,
				})
			}
			if cred == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (logged in %s)\n", cred.UserID, relativeTime(cred.LastLoginMs))
			return nil
		},
	}
	return cmd
}

// NewLogoutCmd creates the logout command.
func NewLogoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the credential and clear every cached row and read position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			if err := ctx.Cache.Logout(commandCtx(cmd)); err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"logged_out": true})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out; local cache cleared")
			return nil
		},
	}
	return cmd
}
