package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tuptime/tuptime/internal/config"
	"github.com/tuptime/tuptime/internal/daemon"
	"github.com/tuptime/tuptime/internal/registry"
)

// buildService turns the flag set into a service definition, rejecting
// malformed combinations before anything is persisted.
func buildService(opts *options) (registry.Service, error) {
	if opts.service == "" {
		return registry.Service{}, fmt.Errorf("--add requires --service (ICMP/SMB/FTP/HTTP/SSH)")
	}
	if opts.target == "" {
		return registry.Service{}, fmt.Errorf("--add requires --target")
	}
	proto, err := registry.ParseProtocol(opts.service)
	if err != nil {
		return registry.Service{}, err
	}
	if opts.username != "" && !proto.UsesCredentials() {
		return registry.Service{}, fmt.Errorf("%s services do not take credentials", proto)
	}

	svc := registry.Service{
		Name:     opts.add,
		Protocol: proto,
		Target:   opts.target,
		Port:     opts.port,
		Username: opts.username,
		Password: opts.password,
		Interval: opts.interval,
	}
	return svc, svc.Validate()
}

// runAdd registers a service: through the control channel when a daemon is
// live (so it starts being checked immediately), otherwise straight into
// the registry file.
func runAdd(cmd *cobra.Command, paths config.Paths, ctrl *daemon.Controller, opts *options) error {
	svc, err := buildService(opts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctrl.Live(ctx) {
		if err := ctrl.Client().AddService(ctx, svc); err != nil {
			return err
		}
	} else {
		store, err := registry.Open(paths.Registry())
		if err != nil {
			return err
		}
		if err := store.Add(svc); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s %s, every %ds)\n",
		svc.Name, svc.Protocol, svc.Target, svc.Interval)
	return nil
}

// runRemove deletes a service, via the daemon when one is live.
func runRemove(cmd *cobra.Command, paths config.Paths, ctrl *daemon.Controller, name string) error {
	ctx := cmd.Context()
	if ctrl.Live(ctx) {
		if err := ctrl.Client().RemoveService(ctx, name); err != nil {
			return err
		}
	} else {
		store, err := registry.Open(paths.Registry())
		if err != nil {
			return err
		}
		if err := store.Remove(name); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", name)
	return nil
}
