// Package config loads and validates the swarm configuration schema:
// the gear tier plus gear3's ever-thinker and monitoring sub-trees.
// A zero-value-means-default Config struct is filled in by Defaults()
// and bound via mapstructure tags.
package config

import (
	"fmt"
	"time"

	"github.com/swarmforge/swarmforge/internal/anomaly"
	"github.com/swarmforge/swarmforge/internal/domain"
	"github.com/swarmforge/swarmforge/internal/health"
	"github.com/swarmforge/swarmforge/internal/tracing"
)

// Gear selects which agents the Orchestrator registers.
type Gear int

const (
	Gear1 Gear = 1
	Gear2 Gear = 2
	Gear3 Gear = 3
)

// Config is the root configuration object.
type Config struct {
	Gear    Gear           `mapstructure:"gear"`
	Gear3   Gear3Config    `mapstructure:"gear3"`
	Tracing tracing.Config `mapstructure:"tracing"`
}

// Gear3Config holds the settings only gear 3 deployments act on.
type Gear3Config struct {
	EverThinker EverThinkerConfig `mapstructure:"ever_thinker"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// EverThinkerConfig is configuration-acknowledged only:
// the agent itself has no behavior to configure beyond on/off and a cycle
// cap.
type EverThinkerConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	MaxCycles int  `mapstructure:"max_cycles"`
}

// MonitoringConfig configures the Monitor Agent.
type MonitoringConfig struct {
	Enabled            bool              `mapstructure:"enabled"`
	CollectionInterval int               `mapstructure:"collection_interval"` // seconds
	MetricsWindowHours int               `mapstructure:"metrics_window_hours"`
	Metrics            []string          `mapstructure:"metrics"`
	HealthScore        HealthScoreConfig `mapstructure:"health_score"`
	Alerts             AlertsConfig      `mapstructure:"alerts"`
}

// HealthScoreConfig is the health_score sub-schema.
type HealthScoreConfig struct {
	Enabled    bool               `mapstructure:"enabled"`
	Weights    map[string]float64 `mapstructure:"weights"`
	Thresholds ThresholdsConfig   `mapstructure:"thresholds"`
}

// ThresholdsConfig mirrors health.Thresholds.
type ThresholdsConfig struct {
	Healthy  float64 `mapstructure:"healthy"`
	Degraded float64 `mapstructure:"degraded"`
}

// AlertsConfig is the alerts sub-schema.
type AlertsConfig struct {
	Enabled                     bool                `mapstructure:"enabled"`
	Thresholds                  map[string]float64  `mapstructure:"thresholds"` // "<metric>_min" / "<metric>_max"
	SeverityLevels              map[string]string   `mapstructure:"severity_levels"`
	SuppressionWindowMinutes    int                 `mapstructure:"suppression_window_minutes"`
	SustainedViolationsRequired int                 `mapstructure:"sustained_violations_required"`
}

// Defaults returns the stock configuration (monitoring disabled, 300s interval, 24h window, 15 minute
// suppression, 2 sustained violations).
func Defaults() Config {
	return Config{
		Gear:    Gear1,
		Tracing: tracing.DefaultConfig(),
		Gear3: Gear3Config{
			EverThinker: EverThinkerConfig{Enabled: false, MaxCycles: 0},
			Monitoring: MonitoringConfig{
				Enabled:            false,
				CollectionInterval: 300,
				MetricsWindowHours: 24,
				Metrics: []string{
					"task_success_rate",
					"task_error_rate",
					"average_execution_time",
					"pr_approval_rate",
				},
				HealthScore: HealthScoreConfig{
					Enabled: false,
					Thresholds: ThresholdsConfig{
						Healthy:  80,
						Degraded: 60,
					},
				},
				Alerts: AlertsConfig{
					Enabled:                     false,
					SuppressionWindowMinutes:    15,
					SustainedViolationsRequired: 2,
				},
			},
		},
	}
}

// Validate returns a configuration error at startup for an
// invalid gear tier, or (when health scoring/alerting is enabled) weight
// sums or thresholds that the underlying health.NewScorer/anomaly
// construction would itself reject. Validating here lets the CLI fail
// fast with a clear message instead of a generic constructor error deep
// in Orchestrator wiring.
func (c Config) Validate() error {
	switch c.Gear {
	case Gear1, Gear2, Gear3:
	default:
		return fmt.Errorf("config: gear must be 1, 2, or 3, got %d", c.Gear)
	}

	mon := c.Gear3.Monitoring
	if mon.HealthScore.Enabled {
		if _, err := mon.HealthScore.BuildScorer(); err != nil {
			return fmt.Errorf("config: gear3.monitoring.health_score: %w", err)
		}
	}
	if mon.Alerts.Enabled {
		if _, err := mon.Alerts.BuildThresholds(); err != nil {
			return fmt.Errorf("config: gear3.monitoring.alerts: %w", err)
		}
	}
	return nil
}

// BuildScorer constructs a health.Scorer from the configured weights and
// thresholds, defaulting any unset map to health.DefaultWeights(). This
// is also how the construction-time validation in Validate (and the
// hot-reload path in reload.go) exercises the exact same rejection rules
// the Monitor itself applies at startup.
func (h HealthScoreConfig) BuildScorer() (*health.Scorer, error) {
	weights := make(map[domain.MetricType]float64, len(h.Weights))
	if len(h.Weights) == 0 {
		weights = health.DefaultWeights()
	} else {
		for k, v := range h.Weights {
			weights[domain.MetricType(k)] = v
		}
	}

	thresholds := health.Thresholds{Healthy: h.Thresholds.Healthy, Degraded: h.Thresholds.Degraded}
	if thresholds == (health.Thresholds{}) {
		thresholds = health.DefaultThresholds()
	}

	return health.NewScorer(weights, thresholds, health.DefaultExecutionTimeBounds())
}

// BuildThresholds converts the flat "<metric>_min"/"<metric>_max" map
// into anomaly.Threshold entries per metric, applying the configured
// severity (defaulting to warning).
func (a AlertsConfig) BuildThresholds() (map[domain.MetricType]anomaly.Threshold, error) {
	byMetric := make(map[domain.MetricType]anomaly.Threshold)
	for key, value := range a.Thresholds {
		metric, bound, err := splitThresholdKey(key)
		if err != nil {
			return nil, err
		}
		v := value
		th := byMetric[metric]
		switch bound {
		case "min":
			th.Min = &v
		case "max":
			th.Max = &v
		}
		byMetric[metric] = th
	}

	for metricName, severity := range a.SeverityLevels {
		metric := domain.MetricType(metricName)
		sev := domain.AlertSeverity(severity)
		if sev != domain.AlertWarning && sev != domain.AlertCritical {
			return nil, fmt.Errorf("severity_levels.%s: must be \"warning\" or \"critical\", got %q", metricName, severity)
		}
		th := byMetric[metric]
		th.Severity = sev
		byMetric[metric] = th
	}

	for metric, th := range byMetric {
		if th.Severity == "" {
			th.Severity = domain.AlertWarning
			byMetric[metric] = th
		}
	}
	return byMetric, nil
}

func splitThresholdKey(key string) (domain.MetricType, string, error) {
	const minSuffix, maxSuffix = "_min", "_max"
	switch {
	case len(key) > len(minSuffix) && key[len(key)-len(minSuffix):] == minSuffix:
		return domain.MetricType(key[:len(key)-len(minSuffix)]), "min", nil
	case len(key) > len(maxSuffix) && key[len(key)-len(maxSuffix):] == maxSuffix:
		return domain.MetricType(key[:len(key)-len(maxSuffix)]), "max", nil
	default:
		return "", "", fmt.Errorf("threshold key %q must end in \"_min\" or \"_max\"", key)
	}
}

// MonitorMetricTypes converts the configured metric name list into
// domain.MetricType values.
func (m MonitoringConfig) MonitorMetricTypes() []domain.MetricType {
	out := make([]domain.MetricType, len(m.Metrics))
	for i, name := range m.Metrics {
		out[i] = domain.MetricType(name)
	}
	return out
}

// The conversion helpers below (CollectionIntervalDuration,
// SuppressionWindowDuration, HealthWeights, HealthThresholds) translate
// the schema's monitoring, health_score and alerts sections into the
// shapes monitor.Config expects.
// They live here (rather than in internal/monitor, which has no
// knowledge of mapstructure-tagged config) so the Orchestrator's wiring
// code is a single field copy instead of repeating the weight/threshold
// translation logic at every call site.

// CollectionIntervalDuration converts the schema's integer-seconds field
// into a time.Duration for monitor.Config.
func (m MonitoringConfig) CollectionIntervalDuration() time.Duration {
	return time.Duration(m.CollectionInterval) * time.Second
}

// SuppressionWindowDuration converts the schema's integer-minutes field
// into a time.Duration for anomaly.Config.
func (a AlertsConfig) SuppressionWindowDuration() time.Duration {
	return time.Duration(a.SuppressionWindowMinutes) * time.Minute
}

// HealthWeights converts the string-keyed weights map into the
// domain.MetricType-keyed map health.NewScorer expects.
func (h HealthScoreConfig) HealthWeights() map[domain.MetricType]float64 {
	out := make(map[domain.MetricType]float64, len(h.Weights))
	for k, v := range h.Weights {
		out[domain.MetricType(k)] = v
	}
	return out
}

// HealthThresholds converts the schema's thresholds into health.Thresholds.
func (h HealthScoreConfig) HealthThresholds() health.Thresholds {
	return health.Thresholds{Healthy: h.Thresholds.Healthy, Degraded: h.Thresholds.Degraded}
}
