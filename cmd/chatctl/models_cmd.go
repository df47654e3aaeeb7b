package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stupiduntilnot/docchat/internal/app"
)

func newModelsCmd(build appBuilder) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the model catalog, marking the default model",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, build, func(a *app.App) error {
				models, err := a.Catalog.Models(cmd.Context())
				if err != nil {
					return err
				}
				def := a.ModelConfig.DefaultModel()
				for _, m := range models {
					line := m.ID + "\t" + m.Provider
					if m.ID == def {
						line += "\tdefault"
					}
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}
}
