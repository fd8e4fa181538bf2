// Package cmd implements the swarm CLI: run, drive
// to completion, and inspect an orchestrated project.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/swarmforge/swarmforge/internal/config"
	"github.com/swarmforge/swarmforge/internal/log"
)

var (
	version = "dev"
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:     "swarm",
	Short:   "Run and inspect the autonomous software-engineering orchestrator",
	Long:    "swarm runs a project through the Moderator/TechLead/Monitor agent substrate and lets you inspect its resulting metrics, health, and alerts.",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .swarm/config.yaml or ~/.config/swarm/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false,
		"enable debug logging (also: SWARM_DEBUG=1)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(alertsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// loadConfig reads and validates the config file named by --config, or
// the standard search locations when --config is unset. config.Load
// already falls back to config.Defaults() when no file is found and no
// explicit path was requested, without writing a file the operator
// didn't ask for. The second return value is the resolved
// config file path (empty when running on defaults with nothing to
// watch) — runRun uses it to hot-reload tunables via a config.Watcher.
func loadConfig() (config.Config, string, error) {
	return config.Load(cfgFile)
}

// initLogging turns on debug logging when requested via flag or env
// var, returning a cleanup func to defer.
func initLogging() (func(), error) {
	if !debug && os.Getenv("SWARM_DEBUG") == "" {
		return func() {}, nil
	}
	logPath := os.Getenv("SWARM_LOG")
	if logPath == "" {
		logPath = "debug.log"
	}
	cleanup, err := log.Init(logPath)
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	log.Info(log.CatConfig, "swarm starting", "version", version, "debug", true, "log_path", logPath)
	return cleanup, nil
}
