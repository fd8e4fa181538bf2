package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCmd_CompletesProjectAndPrintsPhase(t *testing.T) {
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs([]string{
		"run",
		"--requirement", "Build a thing. Add tests for it.",
		"--state-dir", t.TempDir(),
	})

	err := rootCmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, out.String(), `phase "completed"`)
}

// TestRunCmd_StartsAndStopsConfigWatcherOverResolvedPath exercises the
// cfgPath -> config.NewWatcher wiring: a project pointed at a real
// config file on disk must still run to completion and return cleanly,
// proving runRun's Watcher.Start/Stop pair doesn't leak or block.
func TestRunCmd_StartsAndStopsConfigWatcherOverResolvedPath(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("gear: 1\n"), 0o644))
	t.Cleanup(func() { cfgFile = "" })

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs([]string{
		"run",
		"--requirement", "Build a thing. Add tests for it.",
		"--state-dir", t.TempDir(),
		"--config", cfgPath,
	})

	err := rootCmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, out.String(), `phase "completed"`)
}
