package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"strmsync/internal/progress"
)

func renderRunSummary(r progress.RunResult, colorize bool) string {
	var b strings.Builder
	for _, line := range renderSectionHeader("Run "+shortID(r.ID), colorize) {
		b.WriteString(line + "\n")
	}
	state := string(r.State)
	if r.Message != "" {
		state += " (" + r.Message + ")"
	}
	b.WriteString(renderStatusLine("State", stateKind(r.State), state, colorize) + "\n")
	b.WriteString(renderStatusLine("Trigger", statusInfo, r.Trigger, colorize) + "\n")
	mode := "full"
	if r.Retry {
		mode = "retry"
	} else if r.Incremental {
		mode = "incremental"
	}
	b.WriteString(renderStatusLine("Mode", statusInfo, mode, colorize) + "\n")
	b.WriteString(renderStatusLine("Duration", statusInfo, formatDuration(r.Duration()), colorize) + "\n")
	if !r.Retry {
		d := r.Delta
		b.WriteString(renderStatusLine("Catalog delta", statusInfo,
			fmt.Sprintf("+%d ~%d -%d =%d", d.New, d.Modified, d.Removed, d.Unchanged), colorize) + "\n")
	}
	errKind := statusOK
	if r.Errors > 0 {
		errKind = statusWarn
	}
	b.WriteString(renderStatusLine("Errors", errKind, strconv.Itoa(r.Errors), colorize) + "\n")
	if r.Unmatched > 0 {
		b.WriteString(renderStatusLine("Unmatched", statusWarn, strconv.Itoa(r.Unmatched), colorize) + "\n")
	}
	for _, kind := range r.SkippedKind {
		b.WriteString(renderStatusLine("Orphan sweep", statusWarn, "skipped for "+kind, colorize) + "\n")
	}
	b.WriteString(renderCountsTable(r))
	return b.String()
}

func renderCountsTable(r progress.RunResult) string {
	levels := []struct {
		name   string
		counts progress.Counts
	}{
		{"Movies", r.Movies},
		{"Series", r.Series},
		{"Seasons", r.Seasons},
		{"Episodes", r.Episodes},
	}
	rows := make([][]string, 0, len(levels))
	for _, l := range levels {
		rows = append(rows, []string{
			l.name,
			strconv.Itoa(l.counts.Created),
			strconv.Itoa(l.counts.Updated),
			strconv.Itoa(l.counts.Skipped),
			strconv.Itoa(l.counts.Deleted),
		})
	}
	return renderTable([]column{
		{title: "Level"},
		{title: "Created", numeric: true},
		{title: "Updated", numeric: true},
		{title: "Skipped", numeric: true},
		{title: "Deleted", numeric: true},
	}, rows) + "\n"
}

func renderHistoryTable(runs []progress.RunResult) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Trigger,
			string(r.State),
			formatDuration(r.Duration()),
			strconv.Itoa(r.Movies.Changed()),
			strconv.Itoa(r.Episodes.Changed()),
			strconv.Itoa(r.Errors),
		})
	}
	return renderTable([]column{
		{title: "Run"},
		{title: "Started"},
		{title: "Trigger"},
		{title: "State"},
		{title: "Duration", numeric: true},
		{title: "Movies", numeric: true},
		{title: "Episodes", numeric: true},
		{title: "Errors", numeric: true},
	}, rows)
}

func renderFailedTable(items []progress.FailedItem) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		where := ""
		if item.ItemType == progress.ItemEpisode {
			where = fmt.Sprintf("S%02dE%02d", item.Season, item.Episode)
		}
		rows = append(rows, []string{
			string(item.ItemType),
			strconv.Itoa(item.ProviderID),
			item.Name,
			where,
			truncate(item.Error, 60),
		})
	}
	return renderTable([]column{
		{title: "Type"},
		{title: "ID", numeric: true},
		{title: "Name"},
		{title: "Episode"},
		{title: "Error"},
	}, rows)
}

func renderProgressLine(p progress.Progress) string {
	if p.Total <= 0 {
		return fmt.Sprintf("%s...", p.Phase)
	}
	return fmt.Sprintf("%s %5.1f%% (%d/%d, %d errors)", p.Phase, p.Percent(), p.Processed, p.Total, p.Errors)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
