package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	viperlib "github.com/spf13/viper"
)

// DefaultConfigTemplate returns the commented YAML written by
// WriteDefaultConfig when no config file is found: a fully-commented
// starter file instead of an empty one.
func DefaultConfigTemplate() string {
	return `# swarm configuration
#
# gear selects which agents the Orchestrator registers:
#   1 - Moderator + TechLead only
#   2 - reserved for future agents
#   3 - additionally enables the Monitor and Ever-Thinker
gear: 1

# tracing emits one OpenTelemetry span per bus dispatch, parented by
# correlation id so a task's whole feedback loop renders as one trace.
# exporter: none | stdout | file | otlp.
tracing:
  enabled: false
  exporter: stdout
  sample_rate: 1.0

gear3:
  ever_thinker:
    enabled: false
    max_cycles: 0

  monitoring:
    enabled: false
    collection_interval: 300
    metrics_window_hours: 24
    metrics:
      - task_success_rate
      - task_error_rate
      - average_execution_time
      - pr_approval_rate

    health_score:
      enabled: false
      # weights must sum to 1.0 (+/- 0.01)
      weights:
        task_success_rate: 0.4
        average_execution_time: 0.2
        pr_approval_rate: 0.3
        qa_score_average: 0.1
      thresholds:
        healthy: 80
        degraded: 60

    alerts:
      enabled: false
      thresholds:
        task_success_rate_min: 0.7
        average_execution_time_max: 600
      severity_levels:
        task_success_rate: critical
        average_execution_time: warning
      suppression_window_minutes: 15
      sustained_violations_required: 2
`
}

// WriteDefaultConfig creates path's parent directories (if needed) and
// writes DefaultConfigTemplate to it, refusing to overwrite an existing
// file.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: creating directory for %s: %w", path, err)
	}
	return os.WriteFile(path, []byte(DefaultConfigTemplate()), 0o644)
}

// Load reads and validates the config file at path via viper, falling
// back to Defaults() if path is empty and no config file is found in the
// standard search locations. Unknown keys are ignored.
// The second return value is the file actually read (via viper's
// ConfigFileUsed), or "" when no file was found and Defaults() was
// returned instead — callers that want to hot-reload the config (cmd's
// runRun, via a config.Watcher) need this to know what to watch.
func Load(path string) (Config, string, error) {
	v := viperlib.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".swarm")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "swarm"))
		}
	}

	cfg := Defaults()
	if err := v.ReadInConfig(); err != nil {
		var notFound viperlib.ConfigFileNotFoundError
		if errors.As(err, &notFound) && path == "" {
			return cfg, "", nil
		}
		return Config{}, "", fmt.Errorf("config: reading config: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, "", fmt.Errorf("config: decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, "", err
	}
	return cfg, v.ConfigFileUsed(), nil
}
