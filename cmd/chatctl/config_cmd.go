package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stupiduntilnot/docchat/internal/app"
)

func newConfigCmd(build appBuilder) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or change a user's model",
	}
	cmd.AddCommand(newConfigGetCmd(build))
	cmd.AddCommand(newConfigSetCmd(build))
	return cmd
}

func newConfigGetCmd(build appBuilder) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the user's model, persisting the default when absent",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			return withApp(cmd, build, func(a *app.App) error {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), a.ModelConfig.Load(cmd.Context(), userID))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	return cmd
}

func newConfigSetCmd(build appBuilder) *cobra.Command {
	var (
		userID  string
		modelID string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the user's model; it must be in the catalog unless --force",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" || modelID == "" {
				return fmt.Errorf("--user and --model are required")
			}
			return withApp(cmd, build, func(a *app.App) error {
				if !force {
					ok, err := a.Catalog.Contains(cmd.Context(), modelID)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("%s is not in lists", modelID)
					}
				}
				if err := a.ModelConfig.Save(cmd.Context(), userID, modelID); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", userID, modelID)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&modelID, "model", "", "model id")
	cmd.Flags().BoolVar(&force, "force", false, "skip the catalog check")
	return cmd
}
