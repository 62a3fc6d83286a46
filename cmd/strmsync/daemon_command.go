package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"strmsync/internal/logging"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run reconciliations on the configured schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return ctx.withApp(signalCtx, func(a *app) error {
				if err := requirePreflight(signalCtx, a); err != nil {
					return fmt.Errorf("daemon preflight: %w", err)
				}
				a.logger.Info("strmsync daemon started",
					logging.String("config", ctx.configPath),
					logging.String("library", a.cfg.Paths.LibraryDir),
					logging.Duration("interval", a.cfg.ScheduleInterval()))
				if err := a.service.Schedule(signalCtx, a.cfg.ScheduleInterval()); err != nil {
					return err
				}
				a.logger.Info("strmsync daemon shutting down")
				return nil
			})
		},
	}
}
