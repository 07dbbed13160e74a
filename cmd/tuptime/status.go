package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tuptime/tuptime/internal/config"
	"github.com/tuptime/tuptime/internal/daemon"
	"github.com/tuptime/tuptime/internal/journal"
	"github.com/tuptime/tuptime/internal/registry"
)

// runConfig prints the registry with current statuses: from the live daemon
// when one is running (its in-memory copy is authoritative), otherwise from
// the last durably committed state on disk.
func runConfig(cmd *cobra.Command, paths config.Paths, ctrl *daemon.Controller) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	var entries []registry.Entry
	if st, err := ctrl.Client().Status(ctx); err == nil {
		fmt.Fprintf(out, "Daemon running (pid %d, up %s)\n\n", st.Pid, st.Uptime().Round(time.Second))
		entries = st.Services
	} else {
		store, err := registry.Open(paths.Registry())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Daemon not running; showing last persisted state\n\n")
		entries = store.List()
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No services configured. Add one with: tuptime -a NAME -s TYPE -t HOST")
		return nil
	}

	renderEntries(out, entries, lastTransitions(ctx, paths, entries))
	renderRecentTransitions(ctx, out, paths)
	return nil
}

// renderRecentTransitions appends the latest state changes below the status
// table. Best effort, like the SINCE column.
func renderRecentTransitions(ctx context.Context, out io.Writer, paths config.Paths) {
	jnl, err := journal.Open(paths.Journal())
	if err != nil {
		return
	}
	defer jnl.Close()

	recent, err := jnl.Recent(ctx, 5)
	if err != nil || len(recent) == 0 {
		return
	}

	fmt.Fprintln(out, "\nRecent transitions:")
	for _, t := range recent {
		line := fmt.Sprintf("  %s  %s  %s → %s", t.At.Local().Format("2006-01-02 15:04:05"), t.Service, t.From, t.To)
		if t.Reason != "" {
			line += " (" + t.Reason + ")"
		}
		fmt.Fprintln(out, line)
	}
}

// lastTransitions reads each service's most recent state change from the
// journal. Best effort; a missing or locked journal just drops the column.
func lastTransitions(ctx context.Context, paths config.Paths, entries []registry.Entry) map[string]time.Time {
	jnl, err := journal.Open(paths.Journal())
	if err != nil {
		return nil
	}
	defer jnl.Close()

	since := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		t, err := jnl.LastTransition(ctx, e.Name)
		if err != nil || t == nil {
			continue
		}
		since[e.Name] = t.At
	}
	return since
}

func renderEntries(out io.Writer, entries []registry.Entry, since map[string]time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tTYPE\tTARGET\tINTERVAL\tSTATUS\tLATENCY\tLAST CHECK\tSINCE\tERROR")
	for _, e := range entries {
		target := e.Target
		if p := e.Protocol.DefaultPort(); e.Port != 0 && e.Port != p {
			target = fmt.Sprintf("%s:%d", e.Target, e.Port)
		}

		latency := "—"
		if e.Status.Result == registry.Up && e.Status.LatencyMs >= 0 {
			latency = fmt.Sprintf("%dms", e.Status.LatencyMs)
		}

		lastCheck := "never"
		if !e.Status.LastCheck.IsZero() {
			lastCheck = e.Status.LastCheck.Local().Format("2006-01-02 15:04:05")
		}

		sinceCol := "—"
		if t, ok := since[e.Name]; ok {
			sinceCol = time.Since(t).Round(time.Second).String()
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%ds\t%s\t%s\t%s\t%s\t%s\n",
			e.Name,
			e.Protocol,
			target,
			e.Interval,
			e.Status.Result,
			latency,
			lastCheck,
			sinceCol,
			e.Status.Error,
		)
	}
	w.Flush()
}
