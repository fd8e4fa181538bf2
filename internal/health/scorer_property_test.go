package health

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/swarmforge/swarmforge/internal/domain"
)

var allMetricTypes = []domain.MetricType{
	domain.MetricTaskSuccessRate,
	domain.MetricTaskErrorRate,
	domain.MetricAverageExecutionTime,
	domain.MetricPRApprovalRate,
	domain.MetricQAScoreAverage,
}

// TestProperty_ScoreAlwaysWithinBounds verifies the score stays in
// [0,100] for any weight
// configuration that passes NewScorer's own validation and any metric
// values, including out-of-range raw rates (normalize must clamp).
func TestProperty_ScoreAlwaysWithinBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		weights := drawValidWeights(t)
		thresholds := Thresholds{Healthy: 80, Degraded: 60}

		scorer, err := NewScorer(weights, thresholds, DefaultExecutionTimeBounds())
		if err != nil {
			t.Fatalf("weights drawn to sum to 1.0 must always validate: %v", err)
		}

		metrics := make(map[domain.MetricType]float64)
		n := rapid.IntRange(0, len(allMetricTypes)).Draw(t, "numMetrics")
		for i := 0; i < n; i++ {
			metricType := allMetricTypes[i]
			metrics[metricType] = rapid.Float64Range(-10, 1000).Draw(t, "value")
		}

		got := scorer.Score(metrics)
		if got.Score < 0 || got.Score > 100 {
			t.Fatalf("score %v out of [0,100] for metrics %v", got.Score, metrics)
		}
	})
}

// TestProperty_StatusMatchesThresholdBand verifies the tri-valued status
// always matches the score/threshold relationship the Scorer itself
// defines, regardless of which metric drove the score there.
func TestProperty_StatusMatchesThresholdBand(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		scorer, err := NewScorer(
			map[domain.MetricType]float64{domain.MetricTaskSuccessRate: 1.0},
			DefaultThresholds(),
			DefaultExecutionTimeBounds(),
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		rate := rapid.Float64Range(0, 1).Draw(t, "successRate")
		got := scorer.Score(map[domain.MetricType]float64{domain.MetricTaskSuccessRate: rate})

		switch {
		case got.Score >= DefaultThresholds().Healthy:
			if got.Status != domain.HealthHealthy {
				t.Fatalf("score %v should be healthy, got %v", got.Score, got.Status)
			}
		case got.Score < DefaultThresholds().Degraded:
			if got.Status != domain.HealthCritical {
				t.Fatalf("score %v should be critical, got %v", got.Score, got.Status)
			}
		default:
			if got.Status != domain.HealthDegraded {
				t.Fatalf("score %v should be degraded, got %v", got.Score, got.Status)
			}
		}
	})
}

// TestProperty_MissingMetricsRedistributeWithoutChangingBounds verifies
// that scoring a strict subset of the weighted metrics still yields a
// valid [0,100] score (the redistribution arithmetic can't overflow the
// scale regardless of which subset is present).
func TestProperty_MissingMetricsRedistributeWithoutChangingBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		weights := drawValidWeights(t)
		scorer, err := NewScorer(weights, DefaultThresholds(), DefaultExecutionTimeBounds())
		if err != nil {
			t.Fatalf("weights drawn to sum to 1.0 must always validate: %v", err)
		}

		present := rapid.SampledFrom(allMetricTypes).Draw(t, "presentMetric")
		value := rapid.Float64Range(0, 1).Draw(t, "value")

		got := scorer.Score(map[domain.MetricType]float64{present: value})
		if got.Score < 0 || got.Score > 100 {
			t.Fatalf("score %v out of [0,100] scoring only %v", got.Score, present)
		}
	})
}

// drawValidWeights generates a random weight map over a random, non-empty
// subset of allMetricTypes whose values are rescaled to sum to exactly
// 1.0, so every draw satisfies NewScorer's weight-sum invariant by
// construction.
func drawValidWeights(t *rapid.T) map[domain.MetricType]float64 {
	n := rapid.IntRange(1, len(allMetricTypes)).Draw(t, "numWeighted")
	raw := make(map[domain.MetricType]float64, n)
	total := 0.0
	for i := 0; i < n; i++ {
		metricType := allMetricTypes[i]
		w := rapid.Float64Range(0.01, 1).Draw(t, "rawWeight")
		raw[metricType] = w
		total += w
	}
	weights := make(map[domain.MetricType]float64, n)
	for metricType, w := range raw {
		weights[metricType] = w / total
	}
	return weights
}
