package monitor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/swarmforge/swarmforge/internal/domain"
)

// errNoStore is returned by every dashboard query when the Monitor was
// constructed without a Learning Store.
var errNoStore = fmt.Errorf("monitor: no learning store configured")

// Trend is the closed set of trend labels get_metrics_summary reports.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDegrading Trend = "degrading"
)

// trendBand is the ±5% band within which two half-series means count
// as stable.
const trendBand = 0.05

// MetricsSummary is get_metrics_summary's per-metric result shape.
type MetricsSummary struct {
	Current    float64 `json:"current"`
	Average    float64 `json:"average"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Trend      Trend   `json:"trend"`
	DataPoints int     `json:"data_points"`
}

// AlertsSummary is get_alerts_summary's result shape.
type AlertsSummary struct {
	Total        int                          `json:"total"`
	Active       int                          `json:"active"`
	Acknowledged int                          `json:"acknowledged"`
	BySeverity   map[domain.AlertSeverity]int `json:"by_severity"`
	ByMetric     map[domain.MetricType]int    `json:"by_metric"`
	RecentAlerts []*domain.Alert              `json:"recent_alerts"`
}

// The dashboard query API below is pure reads over the Learning Store
//; none of it touches the agent's in-memory event cache.

// GetCurrentHealth returns the latest HealthScore, or nil if none exist.
func (m *Monitor) GetCurrentHealth() (*domain.HealthScore, error) {
	if m.store == nil {
		return nil, errNoStore
	}
	scores, err := m.store.QueryHealthScores(nil, 1)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, nil
	}
	return scores[0], nil
}

// GetMetricsHistory returns metrics of the given type (or every type, if
// nil) within the last `hours`, newest first, capped at limit.
func (m *Monitor) GetMetricsHistory(metricType *domain.MetricType, hours, limit int) ([]*domain.Metric, error) {
	if m.store == nil {
		return nil, errNoStore
	}
	start := windowStart(hours)
	return m.store.QueryMetrics(metricType, &start, nil, limit)
}

// GetHealthScoreHistory returns health scores within the last `hours`,
// newest first, capped at limit.
func (m *Monitor) GetHealthScoreHistory(hours, limit int) ([]*domain.HealthScore, error) {
	if m.store == nil {
		return nil, errNoStore
	}
	start := windowStart(hours)
	return m.store.QueryHealthScores(&start, limit)
}

// GetMetricsSummary returns {current, average, min, max, trend,
// data_points} for every metric type with data in the last `hours`,
// reusing a cached result (dashboardCacheTTL) when one exists.
func (m *Monitor) GetMetricsSummary(hours int) (map[domain.MetricType]MetricsSummary, error) {
	if m.store == nil {
		return nil, errNoStore
	}
	if m.metricsSummaryCache == nil {
		return m.computeMetricsSummary(hours)
	}
	return m.metricsSummaryCache.Get(context.Background(), strconv.Itoa(hours), hours, dashboardCacheTTL)
}

// computeMetricsSummary is GetMetricsSummary's uncached implementation.
func (m *Monitor) computeMetricsSummary(hours int) (map[domain.MetricType]MetricsSummary, error) {
	start := windowStart(hours)
	metrics, err := m.store.QueryMetrics(nil, &start, nil, 0)
	if err != nil {
		return nil, err
	}

	byType := make(map[domain.MetricType][]*domain.Metric)
	for _, metric := range metrics {
		byType[metric.Type] = append(byType[metric.Type], metric)
	}

	out := make(map[domain.MetricType]MetricsSummary, len(byType))
	for metricType, series := range byType {
		out[metricType] = summarize(series)
	}
	return out, nil
}

// summarize computes one metric type's MetricsSummary from its
// time-descending series (newest first, as QueryMetrics returns it).
func summarize(series []*domain.Metric) MetricsSummary {
	sum := MetricsSummary{DataPoints: len(series)}
	if len(series) == 0 {
		return sum
	}

	sum.Current = series[0].Value
	sum.Min, sum.Max = series[0].Value, series[0].Value
	total := 0.0
	for _, m := range series {
		total += m.Value
		if m.Value < sum.Min {
			sum.Min = m.Value
		}
		if m.Value > sum.Max {
			sum.Max = m.Value
		}
	}
	sum.Average = total / float64(len(series))
	sum.Trend = computeTrend(series)
	return sum
}

// computeTrend splits series (newest first) into two halves and compares
// their means with a ±5% band Fewer than 4 points
// yields stable (insufficient data to split meaningfully).
func computeTrend(series []*domain.Metric) Trend {
	if len(series) < 4 {
		return TrendStable
	}

	// series[0] is newest; the "recent" half is the first half of the
	// slice, the "older" half is the second half.
	mid := len(series) / 2
	recent := series[:mid]
	older := series[mid:]

	recentMean := meanOf(recent)
	olderMean := meanOf(older)
	if olderMean == 0 {
		return TrendStable
	}

	delta := (recentMean - olderMean) / olderMean
	switch {
	case delta > trendBand:
		return TrendImproving
	case delta < -trendBand:
		return TrendDegrading
	default:
		return TrendStable
	}
}

func meanOf(series []*domain.Metric) float64 {
	if len(series) == 0 {
		return 0
	}
	total := 0.0
	for _, m := range series {
		total += m.Value
	}
	return total / float64(len(series))
}

// GetAlertsSummary returns {total, active, acknowledged, by_severity,
// by_metric, recent_alerts[:5]} over alerts in the last `hours`,
// reusing a cached result (dashboardCacheTTL) when one exists.
func (m *Monitor) GetAlertsSummary(hours int) (AlertsSummary, error) {
	if m.store == nil {
		return AlertsSummary{}, errNoStore
	}
	if m.alertsSummaryCache == nil {
		return m.computeAlertsSummary(hours)
	}
	return m.alertsSummaryCache.Get(context.Background(), strconv.Itoa(hours), hours, dashboardCacheTTL)
}

// computeAlertsSummary is GetAlertsSummary's uncached implementation.
func (m *Monitor) computeAlertsSummary(hours int) (AlertsSummary, error) {
	start := windowStart(hours)
	alerts, err := m.store.QueryAlerts(&start, nil, nil, nil, 0)
	if err != nil {
		return AlertsSummary{}, err
	}

	summary := AlertsSummary{
		Total:      len(alerts),
		BySeverity: make(map[domain.AlertSeverity]int),
		ByMetric:   make(map[domain.MetricType]int),
	}
	for _, a := range alerts {
		if a.Acknowledged {
			summary.Acknowledged++
		} else {
			summary.Active++
		}
		summary.BySeverity[a.Severity]++
		summary.ByMetric[a.MetricName]++
	}

	if len(alerts) > 5 {
		summary.RecentAlerts = alerts[:5]
	} else {
		summary.RecentAlerts = alerts
	}
	return summary, nil
}

// GetActiveAlerts returns every unacknowledged alert, newest first.
func (m *Monitor) GetActiveAlerts() ([]*domain.Alert, error) {
	if m.store == nil {
		return nil, errNoStore
	}
	unacked := false
	return m.store.QueryAlerts(nil, nil, &unacked, nil, 0)
}

// GetAlertHistory returns every alert (acknowledged or not) within the
// last `hours`, newest first.
func (m *Monitor) GetAlertHistory(hours int) ([]*domain.Alert, error) {
	if m.store == nil {
		return nil, errNoStore
	}
	start := windowStart(hours)
	return m.store.QueryAlerts(&start, nil, nil, nil, 0)
}

// AcknowledgeAlert marks alert id acknowledged by by. Returns true on
// first acknowledgment, false if already acknowledged.
func (m *Monitor) AcknowledgeAlert(id, by string) (bool, error) {
	if m.store == nil {
		return false, errNoStore
	}
	return m.store.AcknowledgeAlert(id, by)
}

// GetAlertCountsBySeverity returns the count of every alert, regardless
// of acknowledgment or age, grouped by severity.
func (m *Monitor) GetAlertCountsBySeverity() (map[domain.AlertSeverity]int, error) {
	if m.store == nil {
		return nil, errNoStore
	}
	alerts, err := m.store.QueryAlerts(nil, nil, nil, nil, 0)
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.AlertSeverity]int)
	for _, a := range alerts {
		counts[a.Severity]++
	}
	return counts, nil
}

func windowStart(hours int) time.Time {
	if hours <= 0 {
		hours = 24
	}
	return time.Now().Add(-time.Duration(hours) * time.Hour)
}
