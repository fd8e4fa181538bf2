// Package health computes a single 0-100 HealthScore from a set of
// Metric values by normalizing each metric into [0,1], applying
// configured (and redistributed) weights, and mapping the result onto a
// healthy/degraded/critical status.
package health

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/swarmforge/swarmforge/internal/domain"
)

// Thresholds gates status classification.
type Thresholds struct {
	Healthy  float64 // score >= Healthy => StatusHealthy
	Degraded float64 // score >= Degraded (and < Healthy) => StatusDegraded; below => critical
}

// DefaultThresholds is the stock healthy/degraded banding.
func DefaultThresholds() Thresholds {
	return Thresholds{Healthy: 80, Degraded: 60}
}

// ExecutionTimeBounds configures the linear interpolation window used to
// normalize average_execution_time: 1.0 at or below Baseline, 0.0 at or
// above Maximum, linear between.
type ExecutionTimeBounds struct {
	BaselineSeconds float64
	MaximumSeconds  float64
}

// DefaultExecutionTimeBounds is a conservative default: sub-30s is
// perfect, 10 minutes or worse is a zero contribution.
func DefaultExecutionTimeBounds() ExecutionTimeBounds {
	return ExecutionTimeBounds{BaselineSeconds: 30, MaximumSeconds: 600}
}

// Scorer computes HealthScores from a configured weight map.
type Scorer struct {
	weights    map[domain.MetricType]float64
	thresholds Thresholds
	execBounds ExecutionTimeBounds
}

// DefaultWeights sums to 1.0 across the five recognized metric types.
func DefaultWeights() map[domain.MetricType]float64 {
	return map[domain.MetricType]float64{
		domain.MetricTaskSuccessRate:      0.35,
		domain.MetricTaskErrorRate:        0.25,
		domain.MetricAverageExecutionTime: 0.15,
		domain.MetricPRApprovalRate:       0.20,
		domain.MetricQAScoreAverage:       0.05,
	}
}

// weightTolerance is the ±0.01 slack allowed on the weight sum.
const weightTolerance = 0.01

// NewScorer validates weights and thresholds at construction time and
// returns a ready-to-use Scorer. Weights must sum to 1.0 within ±0.01;
// thresholds must be in [0,100] with Healthy > Degraded.
func NewScorer(weights map[domain.MetricType]float64, thresholds Thresholds, execBounds ExecutionTimeBounds) (*Scorer, error) {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return nil, fmt.Errorf("health scorer weights must sum to 1.0 (±%.2f), got %.4f", weightTolerance, sum)
	}
	if thresholds.Healthy < 0 || thresholds.Healthy > 100 || thresholds.Degraded < 0 || thresholds.Degraded > 100 {
		return nil, fmt.Errorf("health scorer thresholds must be within [0,100]: healthy=%v degraded=%v", thresholds.Healthy, thresholds.Degraded)
	}
	if thresholds.Healthy <= thresholds.Degraded {
		return nil, fmt.Errorf("healthy threshold (%v) must exceed degraded threshold (%v)", thresholds.Healthy, thresholds.Degraded)
	}
	if execBounds.MaximumSeconds <= execBounds.BaselineSeconds {
		return nil, fmt.Errorf("execution time maximum (%v) must exceed baseline (%v)", execBounds.MaximumSeconds, execBounds.BaselineSeconds)
	}
	return &Scorer{weights: weights, thresholds: thresholds, execBounds: execBounds}, nil
}

// normalize maps a raw metric value into [0,1].
func (s *Scorer) normalize(metricType domain.MetricType, value float64) float64 {
	switch metricType {
	case domain.MetricTaskSuccessRate, domain.MetricPRApprovalRate:
		return clamp01(value)
	case domain.MetricTaskErrorRate:
		return clamp01(1.0 - value)
	case domain.MetricAverageExecutionTime:
		span := s.execBounds.MaximumSeconds - s.execBounds.BaselineSeconds
		if value <= s.execBounds.BaselineSeconds {
			return 1.0
		}
		if value >= s.execBounds.MaximumSeconds {
			return 0.0
		}
		return clamp01(1.0 - (value-s.execBounds.BaselineSeconds)/span)
	case domain.MetricQAScoreAverage:
		return clamp01(value / 100.0)
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Score computes a HealthScore from the present metrics. Metrics is
// keyed by type; a type absent from the map has its configured weight
// redistributed proportionally across the present metrics. Empty input
// produces (0.0, critical)
func (s *Scorer) Score(metrics map[domain.MetricType]float64) domain.HealthScore {
	if len(metrics) == 0 {
		return domain.HealthScore{
			ID:        uuid.NewString(),
			Score:     0.0,
			Status:    domain.HealthCritical,
			Timestamp: time.Now(),
		}
	}

	presentWeightTotal := 0.0
	for metricType := range metrics {
		if w, ok := s.weights[metricType]; ok {
			presentWeightTotal += w
		}
	}

	components := make(map[string]float64, len(metrics))
	total := 0.0
	if presentWeightTotal > 0 {
		for metricType, value := range metrics {
			w, ok := s.weights[metricType]
			if !ok {
				continue
			}
			redistributed := w / presentWeightTotal
			normalized := s.normalize(metricType, value)
			components[string(metricType)] = normalized
			total += normalized * redistributed
		}
	}

	score := roundTo(clampScore(total*100), 2)

	status := domain.HealthDegraded
	switch {
	case score >= s.thresholds.Healthy:
		status = domain.HealthHealthy
	case score < s.thresholds.Degraded:
		status = domain.HealthCritical
	}

	return domain.HealthScore{
		ID:         uuid.NewString(),
		Score:      score,
		Status:     status,
		Components: components,
		Timestamp:  time.Now(),
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func roundTo(v float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	return math.Round(v*mult) / mult
}
