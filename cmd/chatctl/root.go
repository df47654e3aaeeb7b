package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stupiduntilnot/docchat/internal/app"
	"github.com/stupiduntilnot/docchat/internal/config"
	"github.com/stupiduntilnot/docchat/internal/logging"
)

// appBuilder opens the application for one command invocation.
type appBuilder func(ctx context.Context) (*app.App, error)

func buildFromEnv(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	return app.Build(ctx, cfg, "cli", logger.WithField("role", "cli"))
}

func newRootCmd(build appBuilder) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chatctl",
		Short:         "Operate the docchat handler from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newInvokeCmd(build))
	cmd.AddCommand(newModelsCmd(build))
	cmd.AddCommand(newCallLogCmd(build))
	cmd.AddCommand(newConfigCmd(build))
	cmd.AddCommand(newSessionCmd(build))
	return cmd
}

func Execute() {
	if err := newRootCmd(buildFromEnv).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withApp builds the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, build appBuilder, fn func(a *app.App) error) error {
	a, err := build(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
