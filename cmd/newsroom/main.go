package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"newsroom/internal/app"
	"newsroom/internal/config"
	"newsroom/internal/logging"
	"newsroom/internal/usecase"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "newsroom",
		Short:         "Rewrites ingested articles and fixtures into publishable content",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newProcessCmd(&configPath))
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the trigger API and the stale-item reconciler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load(*configPath)
			logger := logging.New(cfg.Logging.Level)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			return application.Run(ctx)
		},
	}
}

func newProcessCmd(configPath *string) *cobra.Command {
	var (
		personaID    string
		categoryHint string
	)

	cmd := &cobra.Command{
		Use:   "process <source-item-id>",
		Short: "Run the pipeline once for a single source item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(*configPath)
			logger := logging.New(cfg.Logging.Level)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				_ = application.Close(context.Background())
			}()

			result, err := application.ProcessOne(ctx, usecase.RunRequest{
				SourceItemID: args[0],
				PersonaID:    personaID,
				CategoryHint: categoryHint,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "content %s (slug %s)\n", result.ContentID, result.Slug)
			return nil
		},
	}
	cmd.Flags().StringVar(&personaID, "persona", "", "persona id to apply to generation")
	cmd.Flags().StringVar(&categoryHint, "category", "", "category override for the produced content")
	return cmd
}
