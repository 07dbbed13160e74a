// Command tuptime is a terminal uptime monitor: it tracks whether your
// services answer over ICMP, HTTP, SMB, FTP, or SSH, via a background
// daemon driven from this CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tuptime/tuptime/internal/config"
	"github.com/tuptime/tuptime/internal/daemon"
	"github.com/tuptime/tuptime/internal/logging"
	"github.com/tuptime/tuptime/internal/version"
)

type options struct {
	add      string
	remove   string
	showConf bool
	showVer  bool
	daemon   string

	service  string
	target   string
	interval int
	username string
	password string
	port     int
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "tuptime",
		Short:        "Track uptime and downtime of your services",
		Example: `  tuptime -a MyService -s ICMP -t 8.8.8.8 -i 30
  tuptime -a intranet -s HTTP -t intranet.local -p 8080
  tuptime -d start
  tuptime -c`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	f := root.Flags()
	f.StringVarP(&opts.add, "add", "a", "", "add a new service to monitor")
	f.StringVarP(&opts.remove, "remove", "r", "", "remove a service from monitoring")
	f.BoolVarP(&opts.showConf, "config", "c", false, "show the current configuration and status")
	f.BoolVarP(&opts.showVer, "version", "v", false, "show the version of tuptime")
	f.StringVarP(&opts.daemon, "daemon", "d", "", "control the background daemon (start|stop|status)")

	f.StringVarP(&opts.service, "service", "s", "", "service type (ICMP/SMB/FTP/HTTP/SSH)")
	f.StringVarP(&opts.target, "target", "t", "", "target hostname or IP")
	f.IntVarP(&opts.interval, "interval", "i", 60, "monitoring interval in seconds")
	f.StringVarP(&opts.username, "username", "u", "", "username for the service (SMB/FTP/SSH)")
	f.StringVarP(&opts.password, "password", "P", "", "password for the service (SMB/FTP/SSH)")
	f.IntVarP(&opts.port, "port", "p", 0, "port (defaults per protocol)")

	root.MarkFlagsMutuallyExclusive("add", "remove", "config", "version", "daemon")

	root.AddCommand(runDaemonCmd())

	return root
}

func run(cmd *cobra.Command, opts *options) error {
	if opts.showVer {
		fmt.Fprintf(cmd.OutOrStdout(), "tuptime %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		return nil
	}

	// CLI invocations stay quiet unless something is wrong.
	slog.SetDefault(logging.ForCLI())

	paths, err := config.DefaultPaths()
	if err != nil {
		return err
	}
	ctrl := daemon.NewController(paths)

	switch {
	case opts.add != "":
		return runAdd(cmd, paths, ctrl, opts)
	case opts.remove != "":
		return runRemove(cmd, paths, ctrl, opts.remove)
	case opts.showConf:
		return runConfig(cmd, paths, ctrl)
	case opts.daemon != "":
		return runDaemonAction(cmd, paths, ctrl, opts.daemon)
	default:
		return cmd.Help()
	}
}

// runDaemonCmd is the hidden entry point executed inside the spawned
// background process.
func runDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "run",
		Short:  "Run the monitor daemon in the foreground",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := config.DefaultPaths()
			if err != nil {
				return err
			}
			settings, err := config.LoadSettings(paths.Settings(), paths)
			if err != nil {
				return err
			}
			logger := logging.ForDaemon(settings)
			return daemon.Run(cmd.Context(), paths, settings, logger)
		},
	}
}
