package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"strmsync/internal/control"
	"strmsync/internal/preflight"
)

type statusReport struct {
	Config    string             `json:"config"`
	Status    control.Status     `json:"status"`
	Preflight []preflight.Result `json:"preflight"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the run lock, suppression, last run and dependency checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				report := statusReport{
					Config:    ctx.configPath,
					Status:    a.service.Status(),
					Preflight: preflight.RunAll(cmd.Context(), a.cfg),
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, report)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderStatus(report, shouldColorize(cmd.OutOrStdout())))
				return nil
			})
		},
	}
}

func renderStatus(report statusReport, colorize bool) string {
	var b strings.Builder
	st := report.Status

	for _, line := range renderSectionHeader("Sync", colorize) {
		b.WriteString(line + "\n")
	}
	b.WriteString(renderStatusLine("Config", statusInfo, report.Config, colorize) + "\n")
	if st.LockHeld {
		b.WriteString(renderStatusLine("Run lock", statusWarn, "held (a run is active)", colorize) + "\n")
	} else {
		b.WriteString(renderStatusLine("Run lock", statusOK, "free", colorize) + "\n")
	}
	if st.Suppressed {
		b.WriteString(renderStatusLine("Scheduled runs", statusWarn, "suppressed until the next manual run", colorize) + "\n")
	} else {
		b.WriteString(renderStatusLine("Scheduled runs", statusOK, "enabled", colorize) + "\n")
	}
	if st.Last == nil {
		b.WriteString(renderStatusLine("Last run", statusInfo, "none recorded", colorize) + "\n")
	} else {
		last := st.Last
		msg := fmt.Sprintf("%s %s at %s, %d errors, %d failed items",
			last.Trigger, last.State, last.StartedAt.Local().Format("2006-01-02 15:04"), last.Errors, len(last.FailedItems))
		b.WriteString(renderStatusLine("Last run", stateKind(last.State), msg, colorize) + "\n")
	}

	b.WriteString("\n")
	for _, line := range renderSectionHeader("Dependencies", colorize) {
		b.WriteString(line + "\n")
	}
	for _, r := range report.Preflight {
		kind := statusOK
		if !r.Passed {
			kind = statusWarn
			if r.Required {
				kind = statusError
			}
		}
		b.WriteString(renderStatusLine(r.Name, kind, r.Detail, colorize) + "\n")
	}
	return b.String()
}
