package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pixelvault/apiserver/internal/mq"
	"github.com/pixelvault/apiserver/internal/services"
	"github.com/pixelvault/apiserver/internal/storage"
)

// workerCmd retries media deletions that failed inline.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume the media cleanup queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadConfig()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		media, err := storage.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open media storage: %w", err)
		}
		queue, err := mq.Open(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("open message queue: %w", err)
		}
		defer func() {
			if err := queue.Close(); err != nil {
				logger.Warn().Err(err).Msg("close message queue")
			}
		}()

		cleanup := services.NewMediaCleanup(media, queue, logger)
		if err := cleanup.Run(ctx, queue); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
