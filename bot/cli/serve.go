package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/liuran001/TubeBot-Go/bot/app"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(configFlag *string, build app.BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *configFlag, build)
		},
	}
}

func runServe(cmd *cobra.Command, configPath string, build app.BuildInfo) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, configPath, build)
	if err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		_ = application.Shutdown(context.Background())
		return err
	}

	<-ctx.Done()
	application.Logger.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	return application.Shutdown(shutdownCtx)
}
