// Package main is the entry point for the reaper CLI.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/flemzord/reaper/internal/config"
	"github.com/flemzord/reaper/internal/core"
	"github.com/flemzord/reaper/internal/expire"
	"github.com/flemzord/reaper/pkg/app"
	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reaper",
		Short:         "Expire and purge old content on a schedule",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.PersistentFlags().String("data-dir", "", "Persistent data directory")
	root.PersistentFlags().String("log-level", "", "Override log.level (debug, info, warn, error)")

	root.AddCommand(versionCmd(), startCmd(), sweepCmd(), configCmd(), serviceCmd(), initCmd())
	return root
}

func runParams(cmd *cobra.Command) app.RunParams {
	cfgPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	level, _ := cmd.Flags().GetString("log-level")
	return app.RunParams{
		ConfigPath: cfgPath,
		Version:    version,
		Commit:     commit,
		Date:       date,
		DataDir:    dataDir,
		LogLevel:   level,
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "reaper %s (commit: %s, built: %s)\n", version, commit, date)
	mods := core.GetModules()
	if len(mods) == 0 {
		fmt.Fprintln(w, "\nNo compiled modules.")
		return
	}
	fmt.Fprintln(w, "\nCompiled modules:")
	for _, mod := range mods {
		fmt.Fprintf(w, "  %s\n", mod.ID)
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(runParams(cmd))
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep [delete | <uid> | hook <name>]",
		Short: "Run one expire request and its sub-jobs, then exit",
		Long: `Run one expire request inline against the configured store.

With no argument a full sweep runs: the delete pass, every user with a
retention interval and every expire hook. "delete" runs only the physical
purge, a numeric argument expires one user, "hook <name>" calls one hook.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseSweepArgs(args)
			if err != nil {
				return err
			}
			res, err := app.RunSweep(cmd.Context(), app.SweepParams{
				RunParams: runParams(cmd),
				Request:   req,
			})
			out := cmd.OutOrStdout()
			for _, e := range res.Entries {
				line := fmt.Sprintf("  %-7s %v", e.Status, e.Args)
				if e.Error != "" {
					line += "  " + e.Error
				}
				fmt.Fprintln(out, line)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d job(s) processed\n", res.Processed)
			return nil
		},
	}
}

// parseSweepArgs maps positional sweep arguments to an expire request.
func parseSweepArgs(args []string) (expire.Request, error) {
	switch {
	case len(args) == 0:
		return expire.Sweep{}, nil
	case args[0] == "delete" && len(args) == 1:
		return expire.Delete{}, nil
	case args[0] == "hook":
		if len(args) != 2 {
			return nil, fmt.Errorf("sweep: hook requires exactly one name")
		}
		return expire.BuildRequest("hook", 0, args[1])
	case len(args) == 1:
		uid, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("sweep: unknown argument %q", args[0])
		}
		return expire.BuildRequest("user", uid, "")
	default:
		return nil, fmt.Errorf("sweep: unexpected arguments %v", args)
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Open(args[0])
			if err != nil {
				return err
			}

			logger, err := app.NewLogger(cmd.ErrOrStderr(), cfg.Log.Format, "error", nil)
			if err != nil {
				return err
			}
			dataDir, _ := cmd.Flags().GetString("data-dir")
			if dataDir == "" {
				dataDir = app.DefaultDataDir()
			}
			appCtx := core.NewAppContext(logger, dataDir)
			appCtx = appCtx.WithModuleConfigs(cfg.Modules)

			application := core.NewApp(appCtx)
			ids := config.Resolve(cfg)
			if err := application.LoadModules(ids); err != nil {
				return err
			}
			// Provisioned but never started: release the store handle.
			defer application.Unload()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
			fmt.Fprintf(out, "expire schedule: %s (priority %d, optimize_items=%t)\n",
				cfg.Expire.Schedule, cfg.Expire.Priority, cfg.Expire.OptimizeItems)
			return nil
		},
	})
	return cmd
}
