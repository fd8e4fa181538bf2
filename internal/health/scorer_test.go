package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmforge/swarmforge/internal/domain"
)

func TestNewScorer_RejectsBadWeightSum(t *testing.T) {
	weights := map[domain.MetricType]float64{domain.MetricTaskSuccessRate: 0.5}
	_, err := NewScorer(weights, DefaultThresholds(), DefaultExecutionTimeBounds())
	require.Error(t, err)
}

func TestNewScorer_AcceptsWeightSumWithinTolerance(t *testing.T) {
	weights := map[domain.MetricType]float64{
		domain.MetricTaskSuccessRate: 0.5,
		domain.MetricTaskErrorRate:   0.495,
	}
	_, err := NewScorer(weights, DefaultThresholds(), DefaultExecutionTimeBounds())
	require.NoError(t, err)
}

func TestNewScorer_RejectsInvertedThresholds(t *testing.T) {
	_, err := NewScorer(DefaultWeights(), Thresholds{Healthy: 50, Degraded: 60}, DefaultExecutionTimeBounds())
	require.Error(t, err)
}

func TestScorer_EmptyInputIsZeroCritical(t *testing.T) {
	s, err := NewScorer(DefaultWeights(), DefaultThresholds(), DefaultExecutionTimeBounds())
	require.NoError(t, err)

	got := s.Score(map[domain.MetricType]float64{})
	assert.Equal(t, 0.0, got.Score)
	assert.Equal(t, domain.HealthCritical, got.Status)
}

func TestScorer_AllMetricsPresentPerfectScore(t *testing.T) {
	s, err := NewScorer(DefaultWeights(), DefaultThresholds(), DefaultExecutionTimeBounds())
	require.NoError(t, err)

	got := s.Score(map[domain.MetricType]float64{
		domain.MetricTaskSuccessRate:      1.0,
		domain.MetricTaskErrorRate:        0.0,
		domain.MetricAverageExecutionTime: 10,
		domain.MetricPRApprovalRate:       1.0,
		domain.MetricQAScoreAverage:       100,
	})
	assert.Equal(t, 100.0, got.Score)
	assert.Equal(t, domain.HealthHealthy, got.Status)
}

func TestScorer_MissingMetricRedistributesWeight(t *testing.T) {
	weights := map[domain.MetricType]float64{
		domain.MetricTaskSuccessRate: 0.5,
		domain.MetricTaskErrorRate:   0.5,
	}
	s, err := NewScorer(weights, DefaultThresholds(), DefaultExecutionTimeBounds())
	require.NoError(t, err)

	got := s.Score(map[domain.MetricType]float64{domain.MetricTaskSuccessRate: 1.0})
	assert.Equal(t, 100.0, got.Score)
}

func TestScorer_ExecutionTimeLinearInterpolation(t *testing.T) {
	s, err := NewScorer(
		map[domain.MetricType]float64{domain.MetricAverageExecutionTime: 1.0},
		DefaultThresholds(),
		ExecutionTimeBounds{BaselineSeconds: 0, MaximumSeconds: 100},
	)
	require.NoError(t, err)

	got := s.Score(map[domain.MetricType]float64{domain.MetricAverageExecutionTime: 50})
	assert.Equal(t, 50.0, got.Score)
}

func TestScorer_ErrorRateIsInverted(t *testing.T) {
	s, err := NewScorer(
		map[domain.MetricType]float64{domain.MetricTaskErrorRate: 1.0},
		DefaultThresholds(),
		DefaultExecutionTimeBounds(),
	)
	require.NoError(t, err)

	got := s.Score(map[domain.MetricType]float64{domain.MetricTaskErrorRate: 0.3})
	assert.InDelta(t, 70.0, got.Score, 0.001)
}

func TestScorer_StatusThresholds(t *testing.T) {
	s, err := NewScorer(
		map[domain.MetricType]float64{domain.MetricTaskSuccessRate: 1.0},
		DefaultThresholds(),
		DefaultExecutionTimeBounds(),
	)
	require.NoError(t, err)

	healthy := s.Score(map[domain.MetricType]float64{domain.MetricTaskSuccessRate: 0.85})
	assert.Equal(t, domain.HealthHealthy, healthy.Status)

	degraded := s.Score(map[domain.MetricType]float64{domain.MetricTaskSuccessRate: 0.65})
	assert.Equal(t, domain.HealthDegraded, degraded.Status)

	critical := s.Score(map[domain.MetricType]float64{domain.MetricTaskSuccessRate: 0.3})
	assert.Equal(t, domain.HealthCritical, critical.Status)
}
