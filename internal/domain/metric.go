package domain

import "time"

// MetricType is the closed enumeration of metric kinds the Monitor
// produces.
type MetricType string

const (
	MetricTaskSuccessRate      MetricType = "task_success_rate"
	MetricTaskErrorRate        MetricType = "task_error_rate"
	MetricAverageExecutionTime MetricType = "average_execution_time"
	MetricPRApprovalRate       MetricType = "pr_approval_rate"
	MetricQAScoreAverage       MetricType = "qa_score_average"
)

// Metric is a single measurement produced and owned by the Monitor Agent.
type Metric struct {
	ID        string         `json:"id"`
	Type      MetricType     `json:"type"`
	Value     float64        `json:"value"`
	Timestamp time.Time      `json:"timestamp"`
	Context   map[string]any `json:"context,omitempty"`
}

// AlertType is currently a singleton closed set.
type AlertType string

const AlertThresholdExceeded AlertType = "threshold_exceeded"

// AlertSeverity is the closed set of Alert severities.
type AlertSeverity string

const (
	AlertWarning  AlertSeverity = "warning"
	AlertCritical AlertSeverity = "critical"
)

// Alert is a fired anomaly. Alerts are append-only; acknowledgment
// mutates only the ack fields.
type Alert struct {
	ID               string         `json:"id"`
	Type             AlertType      `json:"type"`
	MetricName       MetricType     `json:"metric_name"`
	Threshold        float64        `json:"threshold"`
	Actual           float64        `json:"actual"`
	Severity         AlertSeverity  `json:"severity"`
	Message          string         `json:"message"`
	Context          map[string]any `json:"context,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
	Acknowledged     bool           `json:"acknowledged"`
	AcknowledgedBy   string         `json:"acknowledged_by,omitempty"`
	AcknowledgedAt   *time.Time     `json:"acknowledged_at,omitempty"`
}

// HealthStatus is the tri-valued status accompanying a HealthScore.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthCritical HealthStatus = "critical"
)

// HealthScore is a computed snapshot combining recent metrics into a
// single 0-100 score.
type HealthScore struct {
	ID         string             `json:"id"`
	Score      float64            `json:"score"`
	Status     HealthStatus       `json:"status"`
	Components map[string]float64 `json:"components"`
	Timestamp  time.Time          `json:"timestamp"`
	Context    map[string]any     `json:"context,omitempty"`
}
