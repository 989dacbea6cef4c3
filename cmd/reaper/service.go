package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

const serviceName = "reaper"

// controlProgram satisfies service.Interface for control actions only.
// The installed unit runs "reaper start", which handles its own signals.
type controlProgram struct{}

func (controlProgram) Start(service.Service) error { return nil }
func (controlProgram) Stop(service.Service) error  { return nil }

// serviceConfig describes the system unit that runs "reaper start".
func serviceConfig(cfgPath, dataDir string) (*service.Config, error) {
	args := []string{"start"}
	if cfgPath != "" {
		abs, err := filepath.Abs(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("service: resolving config path: %w", err)
		}
		args = append(args, "--config", abs)
	}
	if dataDir != "" {
		abs, err := filepath.Abs(dataDir)
		if err != nil {
			return nil, fmt.Errorf("service: resolving data dir: %w", err)
		}
		args = append(args, "--data-dir", abs)
	}
	return &service.Config{
		Name:        serviceName,
		DisplayName: "Reaper content expiration",
		Description: "Expires and purges old content on a schedule.",
		Arguments:   args,
	}, nil
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage reaper as a system service",
	}
	for _, action := range service.ControlAction {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the system service", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, err := newService(cmd)
				if err != nil {
					return err
				}
				if err := service.Control(svc, action); err != nil {
					return fmt.Errorf("service: %s: %w", action, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the system service status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService(cmd)
			if err != nil {
				return err
			}
			st, err := svc.Status()
			if err != nil && !errors.Is(err, service.ErrNotInstalled) {
				return fmt.Errorf("service: status: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), statusText(st, err))
			return nil
		},
	})
	return cmd
}

func newService(cmd *cobra.Command) (service.Service, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	svcCfg, err := serviceConfig(cfgPath, dataDir)
	if err != nil {
		return nil, err
	}
	svc, err := service.New(controlProgram{}, svcCfg)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	return svc, nil
}

func statusText(st service.Status, err error) string {
	if errors.Is(err, service.ErrNotInstalled) {
		return "not installed"
	}
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
