package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stupiduntilnot/docchat/internal/app"
)

func newCallLogCmd(build appBuilder) *cobra.Command {
	var (
		userID string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "calllog",
		Short: "Print a user's call log, newest first, one JSON object per line",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			return withApp(cmd, build, func(a *app.App) error {
				entries, err := a.CallLog.ListByUser(cmd.Context(), userID, limit)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, e := range entries {
					if err := enc.Encode(e); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries")
	return cmd
}
