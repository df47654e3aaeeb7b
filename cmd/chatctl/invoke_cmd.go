package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stupiduntilnot/docchat/internal/app"
	"github.com/stupiduntilnot/docchat/internal/handler"
)

func newInvokeCmd(build appBuilder) *cobra.Command {
	var (
		userID    string
		requestID string
		reqType   string
		body      string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Send one request through the handler",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userID) == "" {
				return fmt.Errorf("--user is required")
			}
			if requestID == "" {
				requestID = uuid.NewString()
			}
			return withApp(cmd, build, func(a *app.App) error {
				resp, err := a.Handler.Handle(cmd.Context(), handler.Request{
					UserID:    userID,
					RequestID: requestID,
					Type:      reqType,
					Body:      body,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return json.NewEncoder(out).Encode(resp)
				}
				_, err = fmt.Fprintln(out, resp.Msg)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&requestID, "request-id", "", "request id (default: random uuid)")
	cmd.Flags().StringVar(&reqType, "type", handler.TypeText, "request type (text|document)")
	cmd.Flags().StringVar(&body, "body", "", "request body or document key")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	return cmd
}
