package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/swarmforge/swarmforge/internal/collaborators/learningstore"
	"github.com/swarmforge/swarmforge/internal/log"
	"github.com/swarmforge/swarmforge/internal/monitor"
)

var (
	dashboardProjectID string
	dashboardHours     int
	dashboardFollow    bool
	dashboardDBPath    string
)

// followPollInterval is how often --follow re-queries the Learning Store
// between log-broker events. The store is a plain SQLite file a separate
// `swarm run` process writes to, so polling (not just reacting to this
// process's own log traffic) is what actually surfaces another process's
// writes.
const followPollInterval = 2 * time.Second

var dashboardCmd = &cobra.Command{
	Use:          "dashboard",
	Short:        "Print current health, metrics summary, and alerts from the Learning Store",
	RunE:         runDashboard,
	SilenceUsage: true,
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardProjectID, "project", "", "restrict output to one project id (not yet supported: the Learning Store has no project_id column)")
	dashboardCmd.Flags().IntVar(&dashboardHours, "hours", 24, "lookback window in hours")
	dashboardCmd.Flags().BoolVar(&dashboardFollow, "follow", false, "keep printing a fresh snapshot as the Learning Store changes, until interrupted")
	dashboardCmd.Flags().StringVar(&dashboardDBPath, "db", "swarm-learning.db", "path to the Learning Store's SQLite database")
}

// dashboardReport is the JSON shape printed by `swarm dashboard`.
type dashboardReport struct {
	Health  any `json:"health"`
	Metrics any `json:"metrics_summary"`
	Alerts  any `json:"alerts_summary"`
}

func runDashboard(cmd *cobra.Command, args []string) error {
	if dashboardProjectID != "" {
		return fmt.Errorf("dashboard: --project is not supported yet (the Learning Store has no project_id column); omit it to query across all projects")
	}

	store, err := learningstore.Open(dashboardDBPath)
	if err != nil {
		return fmt.Errorf("opening learning store at %s: %w", dashboardDBPath, err)
	}
	defer store.Close()

	// A bare reader over the dashboard query API: no bus,
	// not Enabled, so Start/Stop are no-ops and only the read-only
	// GetCurrentHealth/GetMetricsSummary/GetAlertsSummary methods matter.
	m, err := monitor.New(monitor.Config{Store: store})
	if err != nil {
		return fmt.Errorf("building dashboard reader: %w", err)
	}

	out := cmd.OutOrStdout()
	if err := printDashboardSnapshot(m, out); err != nil {
		return err
	}
	if !dashboardFollow {
		return nil
	}

	return followDashboard(cmd.Context(), m, out)
}

// printDashboardSnapshot queries the Monitor's dashboard API once and
// writes it as one indented JSON document to out.
func printDashboardSnapshot(m *monitor.Monitor, out io.Writer) error {
	health, err := m.GetCurrentHealth()
	if err != nil {
		return fmt.Errorf("querying current health: %w", err)
	}
	metrics, err := m.GetMetricsSummary(dashboardHours)
	if err != nil {
		return fmt.Errorf("querying metrics summary: %w", err)
	}
	alerts, err := m.GetAlertsSummary(dashboardHours)
	if err != nil {
		return fmt.Errorf("querying alerts summary: %w", err)
	}

	report := dashboardReport{
		Health:  health,
		Metrics: metrics,
		Alerts:  alerts,
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// followDashboard re-prints the dashboard snapshot until ctx is
// cancelled (SIGINT), driven by two triggers: the log package's
// pubsub.Broker[string] fan-out, which wakes
// `--follow` immediately when this process itself logs something, and a
// fallback ticker, since the Learning Store is typically being written
// by a separate `swarm run` process whose log lines never reach this
// process's broker.
func followDashboard(ctx context.Context, m *monitor.Monitor, out io.Writer) error {
	logPath := os.Getenv("SWARM_LOG")
	if logPath == "" {
		logPath = "debug.log"
	}
	cleanup, err := log.Init(logPath)
	if err != nil {
		return fmt.Errorf("initializing logging for --follow: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	events := log.Broker().Subscribe(ctx)
	ticker := time.NewTicker(followPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-events:
			if !ok {
				return nil
			}
			if err := printDashboardSnapshot(m, out); err != nil {
				return err
			}
		case <-ticker.C:
			if err := printDashboardSnapshot(m, out); err != nil {
				return err
			}
		}
	}
}
