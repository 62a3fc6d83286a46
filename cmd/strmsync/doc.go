// Package main hosts the strmsync CLI entrypoint and command graph.
//
// Commands load configuration once, wire the provider client, metadata
// resolver and reconciliation engine, and hand work to the control service.
// Runs, retries and library cleaning execute in-process; the file lock held
// by the control service keeps a second process (a cron job or another
// terminal) from overlapping with the daemon's scheduled runs.
//
// Keep this package thin. New behaviour belongs in the internal packages
// first and is surfaced here through a dedicated command or flag.
package main
