package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tuptime/tuptime/internal/config"
	"github.com/tuptime/tuptime/internal/daemon"
)

// runDaemonAction drives the daemon lifecycle: -d start|stop|status.
func runDaemonAction(cmd *cobra.Command, paths config.Paths, ctrl *daemon.Controller, action string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	switch action {
	case "start":
		pid, err := ctrl.Start(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Daemon started (pid %d)\n", pid)
		return nil

	case "stop":
		if err := ctrl.Stop(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Daemon stopped")
		return nil

	case "status":
		info, err := ctrl.Status(ctx)
		if err != nil {
			return err
		}
		if !info.Running {
			fmt.Fprintln(out, "Daemon not running")
			return nil
		}
		if info.Uptime > 0 {
			fmt.Fprintf(out, "Daemon running (pid %d, up %s)\n", info.Pid, info.Uptime.Round(time.Second))
		} else {
			fmt.Fprintf(out, "Daemon running (pid %d)\n", info.Pid)
		}
		return nil

	default:
		return fmt.Errorf("unknown daemon action %q (must be start, stop, or status)", action)
	}
}
