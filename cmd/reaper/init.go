package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/flemzord/reaper/internal/config"
	"github.com/flemzord/reaper/internal/cron"
	"github.com/flemzord/reaper/pkg/app"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// initAnswers are the values collected by the init wizard.
type initAnswers struct {
	DBPath        string
	LogFormat     string
	Schedule      string
	OptimizeItems bool
	Gateway       bool
	Bind          string
	BearerToken   string
}

func defaultAnswers() initAnswers {
	return initAnswers{
		DBPath:    filepath.Join(app.DefaultDataDir(), "reaper.db"),
		LogFormat: "text",
		Schedule:  config.DefaultExpireSchedule,
		Bind:      "127.0.0.1:8080",
	}
}

func initCmd() *cobra.Command {
	var (
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				if _, err := os.Stat(output); err == nil {
					return fmt.Errorf("init: %s already exists (use --force to overwrite)", output)
				}
			}

			answers := defaultAnswers()
			if err := runWizard(&answers); err != nil {
				return err
			}
			raw, err := renderConfig(answers)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o750); err != nil {
				return fmt.Errorf("init: %w", err)
			}
			if err := os.WriteFile(output, raw, 0o600); err != nil {
				return fmt.Errorf("init: writing %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "reaper.yaml", "Path of the configuration file to write")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func runWizard(a *initAnswers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Database path").
				Value(&a.DBPath).
				Validate(notEmpty("database path")),
			huh.NewSelect[string]().
				Title("Log format").
				Options(huh.NewOptions("text", "json")...).
				Value(&a.LogFormat),
			huh.NewInput().
				Title("Expire schedule (cron)").
				Value(&a.Schedule).
				Validate(cron.ParseSchedule),
			huh.NewConfirm().
				Title("Optimize the item table after each purge?").
				Value(&a.OptimizeItems),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable the HTTP gateway?").
				Value(&a.Gateway),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Gateway bind address").
				Value(&a.Bind).
				Validate(func(s string) error {
					_, err := net.ResolveTCPAddr("tcp", s)
					return err
				}),
			huh.NewInput().
				Title("Admin bearer token (empty disables the admin API)").
				EchoMode(huh.EchoModePassword).
				Value(&a.BearerToken),
		).WithHideFunc(func() bool { return !a.Gateway }),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	return nil
}

func notEmpty(field string) func(string) error {
	return func(s string) error {
		if s == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}

// renderConfig produces a config file that config.Open accepts.
func renderConfig(a initAnswers) ([]byte, error) {
	type logSection struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	}
	type expireSection struct {
		Schedule      string `yaml:"schedule"`
		OptimizeItems bool   `yaml:"optimize_items"`
	}
	type file struct {
		Version string         `yaml:"version"`
		Log     logSection     `yaml:"log"`
		Expire  expireSection  `yaml:"expire"`
		Modules map[string]any `yaml:"modules"`
	}

	modules := map[string]any{
		app.StoreModuleID: map[string]any{"path": a.DBPath},
	}
	if a.Gateway {
		gw := map[string]any{"bind": a.Bind}
		if a.BearerToken != "" {
			gw["auth"] = map[string]any{"bearer_token": a.BearerToken}
		}
		modules["gateway.http"] = gw
	}

	out, err := yaml.Marshal(file{
		Version: "1",
		Log:     logSection{Level: "info", Format: a.LogFormat},
		Expire:  expireSection{Schedule: a.Schedule, OptimizeItems: a.OptimizeItems},
		Modules: modules,
	})
	if err != nil {
		return nil, fmt.Errorf("init: rendering config: %w", err)
	}
	return out, nil
}
