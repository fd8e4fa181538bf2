package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swarmforge/swarmforge/internal/collaborators/learningstore"
	"github.com/swarmforge/swarmforge/internal/monitor"
)

var alertsDBPath string

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Inspect and acknowledge Monitor alerts",
}

var alertsAckBy string

var alertsAckCmd = &cobra.Command{
	Use:          "ack <alert-id>",
	Short:        "Acknowledge an alert",
	Args:         cobra.ExactArgs(1),
	RunE:         runAlertsAck,
	SilenceUsage: true,
}

func init() {
	alertsCmd.PersistentFlags().StringVar(&alertsDBPath, "db", "swarm-learning.db", "path to the Learning Store's SQLite database")
	alertsAckCmd.Flags().StringVar(&alertsAckBy, "by", "", "identity of the operator acknowledging the alert (required)")
	_ = alertsAckCmd.MarkFlagRequired("by")
	alertsCmd.AddCommand(alertsAckCmd)
}

func runAlertsAck(cmd *cobra.Command, args []string) error {
	store, err := learningstore.Open(alertsDBPath)
	if err != nil {
		return fmt.Errorf("opening learning store at %s: %w", alertsDBPath, err)
	}
	defer store.Close()

	m, err := monitor.New(monitor.Config{Store: store})
	if err != nil {
		return fmt.Errorf("building dashboard reader: %w", err)
	}

	// AcknowledgeAlert is idempotent: acking an
	// already-acknowledged alert is not an error, just a no-op whose
	// first-time flag is reported to the operator.
	first, err := m.AcknowledgeAlert(args[0], alertsAckBy)
	if err != nil {
		return fmt.Errorf("acknowledging alert %s: %w", args[0], err)
	}
	if first {
		fmt.Fprintf(cmd.OutOrStdout(), "alert %s acknowledged by %s\n", args[0], alertsAckBy)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "alert %s was already acknowledged\n", args[0])
	}
	return nil
}
