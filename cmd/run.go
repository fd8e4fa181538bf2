package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swarmforge/swarmforge/internal/collaborators/backend"
	"github.com/swarmforge/swarmforge/internal/config"
	"github.com/swarmforge/swarmforge/internal/domain"
	"github.com/swarmforge/swarmforge/internal/log"
	"github.com/swarmforge/swarmforge/internal/orchestrator"
)

var (
	runRequirement string
	runGear        int
	runFakeBackend bool
	runStateDir    string
)

var runCmd = &cobra.Command{
	Use:          "run",
	Short:        "Run a project through the agent substrate to completion or failure",
	RunE:         runRun,
	SilenceUsage: true,
}

func init() {
	runCmd.Flags().StringVar(&runRequirement, "requirement", "", "natural-language requirement to decompose and build (required)")
	runCmd.Flags().IntVar(&runGear, "gear", 0, "deployment tier: 1, 2, or 3 (default: value from config, or 1)")
	runCmd.Flags().BoolVar(&runFakeBackend, "fake-backend", true, "use the deterministic fake Backend instead of a real code-generation backend")
	runCmd.Flags().StringVar(&runStateDir, "state-dir", "", "directory for the file-based project state store (default: a temp directory)")
	_ = runCmd.MarkFlagRequired("requirement")
}

func runRun(cmd *cobra.Command, args []string) error {
	cleanup, err := initLogging()
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if runGear != 0 {
		cfg.Gear = config.Gear(runGear)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	deps := orchestrator.Dependencies{StateRoot: runStateDir}
	if !runFakeBackend {
		return fmt.Errorf("run: a real Backend is not wired into this build; omit --fake-backend=false")
	}
	deps.Backend = backend.NewFake()

	o, err := orchestrator.New(runRequirement, cfg, deps)
	if err != nil {
		return fmt.Errorf("starting orchestrator: %w", err)
	}
	defer o.Shutdown()

	// Hot-reload the Monitor's tunables (health-score weights/thresholds,
	// alert thresholds, suppression window) whenever
	// the resolved config file changes, without restarting the project.
	// Nothing to watch when running on Defaults() with no file on disk.
	if cfgPath != "" {
		watcher, err := config.NewWatcher(cfgPath, o)
		if err != nil {
			return fmt.Errorf("starting config watcher: %w", err)
		}
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("starting config watcher: %w", err)
		}
		defer watcher.Stop()
	}

	log.Info(log.CatOrchestrator, "project started", "project_id", o.Project().ID, "gear", cfg.Gear)

	phase, err := o.Run()
	if err != nil {
		return fmt.Errorf("running project: %w", err)
	}

	log.Info(log.CatOrchestrator, "project finished", "project_id", o.Project().ID, "phase", phase)
	fmt.Fprintf(cmd.OutOrStdout(), "project %s finished in phase %q\n", o.Project().ID, phase)

	// The CLI exit code mirrors the terminal phase. Returning
	// a non-nil error here is what makes main.go's os.Exit(1) fire for a
	// failed project without this command reaching for os.Exit directly.
	if phase != domain.PhaseCompleted {
		return fmt.Errorf("project ended in phase %q", phase)
	}
	return nil
}
