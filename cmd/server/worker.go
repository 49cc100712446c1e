package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/yukikurage/taskflow-api/internal/realtime"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process background jobs: broadcasts and notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.QueueBackend != "redis" {
				return errors.New("a standalone worker needs QUEUE_BACKEND=redis; use serve --with-worker instead")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			broker := realtime.NewRedisBroker(a.pool, log.With("component", "broker"))
			return a.runWorker(ctx, a.newWorker(broker))
		},
	}
}
