package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"strmsync/internal/control"
	"strmsync/internal/progress"
	"strmsync/internal/reconcile"
	"strmsync/internal/services"
)

const progressInterval = time.Second

func newRunCommand(ctx *commandContext) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile the library against the provider now",
		Long: "Run one reconciliation in the foreground. A manual run also lifts the " +
			"suppression left behind by 'strmsync clean'.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				if err := requirePreflight(cmd.Context(), a); err != nil {
					return err
				}
				return executeRun(cmd, ctx, a, func(runCtx context.Context) (*progress.RunResult, error) {
					return a.service.Run(runCtx, reconcile.TriggerManual, control.RunOptions{Full: full})
				})
			})
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Ignore the previous snapshot and reprocess every item")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Reprocess the items that failed in the last run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				err := executeRun(cmd, ctx, a, a.service.RetryFailed)
				if errors.Is(err, services.ErrNothingToRetry) {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to retry; the last run had no failed items")
					return nil
				}
				return err
			})
		},
	}
}

// executeRun drives fn in the background, repainting a progress line on an
// interactive stderr, and prints the result once fn returns. SIGINT and
// SIGTERM cancel the run cooperatively.
func executeRun(cmd *cobra.Command, cc *commandContext, a *app, fn func(context.Context) (*progress.RunResult, error)) error {
	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		result *progress.RunResult
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		result, runErr = fn(runCtx)
	}()

	errOut := cmd.ErrOrStderr()
	showProgress := !cc.jsonOutput() && shouldColorize(errOut)
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
wait:
	for {
		select {
		case <-done:
			break wait
		case <-ticker.C:
			if !showProgress {
				continue
			}
			if st := a.service.Status(); st.Running {
				fmt.Fprintf(errOut, "\r\x1b[K%s", renderProgressLine(st.Progress))
			}
		}
	}
	if showProgress {
		fmt.Fprint(errOut, "\r\x1b[K")
	}

	if result == nil {
		return runErr
	}
	if cc.jsonOutput() {
		if err := writeJSON(cmd, result); err != nil {
			return err
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), renderRunSummary(*result, shouldColorize(cmd.OutOrStdout())))
	}
	return runErr
}
