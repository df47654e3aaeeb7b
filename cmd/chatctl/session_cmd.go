package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stupiduntilnot/docchat/internal/app"
)

func newSessionCmd(build appBuilder) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage persisted conversation history (SESSION_BACKEND=sqlite)",
	}
	cmd.AddCommand(newSessionResetCmd(build))
	return cmd
}

func newSessionResetCmd(build appBuilder) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget the user's conversation history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			return withApp(cmd, build, func(a *app.App) error {
				if err := a.Sessions.Reset(cmd.Context(), userID); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "session reset for %s\n", userID)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	return cmd
}
