// Package anomaly implements sustained-violation, suppression-windowed
// threshold checking over Monitor metrics.
package anomaly

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swarmforge/swarmforge/internal/domain"
)

// Threshold configures the violation direction(s) for one metric. A zero
// value for Min or Max means that bound is not checked.
type Threshold struct {
	Min      *float64
	Max      *float64
	Severity domain.AlertSeverity
}

// Config configures a Detector.
type Config struct {
	Thresholds          map[domain.MetricType]Threshold
	SuppressionWindow   time.Duration
	SustainedViolations int
}

// DefaultConfig is the stock tuning: a 15 minute suppression
// window and 2 consecutive violations required before an alert fires.
// No thresholds are configured by default — callers wire the metrics
// they care about.
func DefaultConfig() Config {
	return Config{
		Thresholds:          map[domain.MetricType]Threshold{},
		SuppressionWindow:   15 * time.Minute,
		SustainedViolations: 2,
	}
}

// Detector tracks consecutive-violation counts and last-alert timestamps
// per metric.
type Detector struct {
	cfg Config

	mu          sync.Mutex
	violations  map[domain.MetricType]int
	lastAlertAt map[domain.MetricType]time.Time
}

// NewDetector builds a Detector from cfg, defaulting zero-valued
// SuppressionWindow/SustainedViolations to their stock values.
func NewDetector(cfg Config) *Detector {
	if cfg.SuppressionWindow <= 0 {
		cfg.SuppressionWindow = 15 * time.Minute
	}
	if cfg.SustainedViolations <= 0 {
		cfg.SustainedViolations = 2
	}
	if cfg.Thresholds == nil {
		cfg.Thresholds = map[domain.MetricType]Threshold{}
	}
	return &Detector{
		cfg:         cfg,
		violations:  make(map[domain.MetricType]int),
		lastAlertAt: make(map[domain.MetricType]time.Time),
	}
}

// CheckMetric applies the threshold check and returns an
// Alert when a sustained, unsuppressed violation is confirmed.
func (d *Detector) CheckMetric(name domain.MetricType, value float64, now time.Time) *domain.Alert {
	threshold, configured := d.cfg.Thresholds[name]
	if !configured {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	direction, violated := violationDirection(threshold, value)
	if !violated {
		d.violations[name] = 0
		return nil
	}
	d.violations[name]++

	if d.violations[name] < d.cfg.SustainedViolations {
		return nil
	}

	if last, ok := d.lastAlertAt[name]; ok && now.Sub(last) < d.cfg.SuppressionWindow {
		return nil
	}

	var thresholdValue float64
	switch direction {
	case "below":
		thresholdValue = *threshold.Min
	case "above":
		thresholdValue = *threshold.Max
	}

	alert := &domain.Alert{
		ID:         uuid.NewString(),
		Type:       domain.AlertThresholdExceeded,
		MetricName: name,
		Threshold:  thresholdValue,
		Actual:     value,
		Severity:   threshold.Severity,
		Message:    fmt.Sprintf("%s is %s threshold %.4f (actual %.4f)", name, direction, thresholdValue, value),
		Context:    map[string]any{"consecutive_violations": d.violations[name]},
		Timestamp:  now,
	}
	d.lastAlertAt[name] = now
	return alert
}

// violationDirection reports whether value violates threshold and which
// direction ("below"/"above") it violated in.
func violationDirection(threshold Threshold, value float64) (string, bool) {
	if threshold.Min != nil && value < *threshold.Min {
		return "below", true
	}
	if threshold.Max != nil && value > *threshold.Max {
		return "above", true
	}
	return "", false
}
