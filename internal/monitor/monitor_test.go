package monitor

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmforge/swarmforge/internal/anomaly"
	"github.com/swarmforge/swarmforge/internal/bus"
	"github.com/swarmforge/swarmforge/internal/collaborators/learningstore"
	"github.com/swarmforge/swarmforge/internal/domain"
	"github.com/swarmforge/swarmforge/internal/health"
)

func openTestStore(t *testing.T) *learningstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "learning.db")
	store, err := learningstore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestComputeMetric_TaskSuccessRateSkipsOnEmptyDenominator(t *testing.T) {
	_, ok := computeMetric(domain.MetricTaskSuccessRate, map[domain.MessageType][]eventRecord{})
	assert.False(t, ok)
}

func TestComputeMetric_TaskSuccessRate(t *testing.T) {
	events := map[domain.MessageType][]eventRecord{
		domain.MsgTaskCompleted: {{}, {}, {}},
		domain.MsgTaskFailed:    {{}},
	}
	value, ok := computeMetric(domain.MetricTaskSuccessRate, events)
	require.True(t, ok)
	assert.InDelta(t, 0.75, value, 0.0001)
}

func TestComputeMetric_AverageExecutionTimeIgnoresZeroDurations(t *testing.T) {
	events := map[domain.MessageType][]eventRecord{
		domain.MsgTaskCompleted: {
			{duration: 10 * time.Second},
			{duration: 30 * time.Second},
			{duration: 0},
		},
	}
	value, ok := computeMetric(domain.MetricAverageExecutionTime, events)
	require.True(t, ok)
	assert.InDelta(t, 20, value, 0.0001)
}

func TestComputeMetric_QAScoreAverageIsReserved(t *testing.T) {
	_, ok := computeMetric(domain.MetricQAScoreAverage, map[domain.MessageType][]eventRecord{
		domain.MsgTaskCompleted: {{}},
	})
	assert.False(t, ok)
}

func TestMonitor_HandleMessageEnqueuesEventsOnlyWhenEnabled(t *testing.T) {
	b := bus.New()
	store := openTestStore(t)
	m, err := New(Config{
		Bus:     b,
		Store:   store,
		Enabled: true,
		Metrics: []domain.MetricType{domain.MetricTaskSuccessRate},
	})
	require.NoError(t, err)
	require.NoError(t, m.Start())
	defer m.Stop()

	msg, err := b.CreateMessage(domain.MsgTaskStarted, "moderator", AgentID, domain.TaskStartedPayload{
		TaskID:    "task_001",
		Timestamp: time.Now(),
	}, "", false)
	require.NoError(t, err)
	b.Send(msg)

	m.mu.Lock()
	count := len(m.events[domain.MsgTaskStarted])
	m.mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestMonitor_CollectOnceComputesAndPersistsMetrics(t *testing.T) {
	b := bus.New()
	store := openTestStore(t)
	m, err := newTestMonitor(b, store, []domain.MetricType{domain.MetricTaskSuccessRate})
	require.NoError(t, err)

	now := time.Now()
	completeTask(t, b, m, "task_001", now)
	completeTask(t, b, m, "task_002", now)
	failTask(t, b, m, "task_003", now)

	m.collectOnce(now)

	metrics, err := store.QueryMetrics(nil, nil, nil, 10)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, domain.MetricTaskSuccessRate, metrics[0].Type)
	assert.InDelta(t, 2.0/3.0, metrics[0].Value, 0.0001)
}

func TestMonitor_CollectOnceComputesHealthScoreWhenEnabled(t *testing.T) {
	b := bus.New()
	store := openTestStore(t)
	m, err := New(Config{
		Bus:     b,
		Store:   store,
		Enabled: true,
		Metrics: []domain.MetricType{domain.MetricTaskSuccessRate},
		HealthScore: HealthScoreConfig{
			Enabled:    true,
			Weights:    map[domain.MetricType]float64{domain.MetricTaskSuccessRate: 1.0},
			Thresholds: health.DefaultThresholds(),
			ExecBounds: health.DefaultExecutionTimeBounds(),
		},
	})
	require.NoError(t, err)
	require.NoError(t, m.Start())
	defer m.Stop()

	now := time.Now()
	completeTask(t, b, m, "task_001", now)

	m.collectOnce(now)

	scores, err := store.QueryHealthScores(nil, 1)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, domain.HealthHealthy, scores[0].Status)
}

func TestMonitor_CollectOnceFiresAlertOnSustainedViolation(t *testing.T) {
	b := bus.New()
	store := openTestStore(t)
	minRate := 0.9
	m, err := New(Config{
		Bus:     b,
		Store:   store,
		Enabled: true,
		Metrics: []domain.MetricType{domain.MetricTaskSuccessRate},
		Alerts: AlertsConfig{
			Enabled: true,
			Thresholds: map[domain.MetricType]anomaly.Threshold{
				domain.MetricTaskSuccessRate: {Min: &minRate, Severity: domain.AlertCritical},
			},
			SuppressionWindow:   time.Hour,
			SustainedViolations: 2,
		},
	})
	require.NoError(t, err)
	require.NoError(t, m.Start())
	defer m.Stop()

	now := time.Now()
	failTask(t, b, m, "task_001", now)

	m.collectOnce(now)
	alerts, err := store.QueryAlerts(nil, nil, nil, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, alerts, "first violation must not fire until sustained")

	m.collectOnce(now.Add(time.Minute))
	alerts, err = store.QueryAlerts(nil, nil, nil, nil, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertCritical, alerts[0].Severity)
}

func TestDashboard_GetMetricsSummaryComputesTrend(t *testing.T) {
	store := openTestStore(t)
	base := time.Now().Add(-time.Hour)
	values := []float64{0.5, 0.5, 0.9, 0.9}
	for i, v := range values {
		require.NoError(t, store.RecordMetric(&domain.Metric{
			ID:        timeID(i),
			Type:      domain.MetricTaskSuccessRate,
			Value:     v,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	m := &Monitor{store: store}
	summary, err := m.GetMetricsSummary(24)
	require.NoError(t, err)
	require.Contains(t, summary, domain.MetricTaskSuccessRate)
	assert.Equal(t, TrendImproving, summary[domain.MetricTaskSuccessRate].Trend)
	assert.Equal(t, 4, summary[domain.MetricTaskSuccessRate].DataPoints)
}

func TestDashboard_AcknowledgeAlertIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	alert := &domain.Alert{ID: "alert-1", Type: domain.AlertThresholdExceeded, Severity: domain.AlertWarning, Timestamp: time.Now()}
	require.NoError(t, store.RecordAlert(alert))

	m := &Monitor{store: store}
	first, err := m.AcknowledgeAlert("alert-1", "operator")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := m.AcknowledgeAlert("alert-1", "operator")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestDashboard_GetCurrentHealthReturnsNilWhenNoneRecorded(t *testing.T) {
	store := openTestStore(t)
	m := &Monitor{store: store}

	score, err := m.GetCurrentHealth()
	require.NoError(t, err)
	assert.Nil(t, score)
}

// --- test helpers ---

func newTestMonitor(b *bus.Bus, store *learningstore.Store, metrics []domain.MetricType) (*Monitor, error) {
	m, err := New(Config{Bus: b, Store: store, Enabled: true, Metrics: metrics})
	if err != nil {
		return nil, err
	}
	if err := m.Start(); err != nil {
		return nil, err
	}
	return m, nil
}

func completeTask(t *testing.T, b *bus.Bus, m *Monitor, taskID string, now time.Time) {
	t.Helper()
	started, err := b.CreateMessage(domain.MsgTaskStarted, "moderator", AgentID, domain.TaskStartedPayload{TaskID: taskID, Timestamp: now.Add(-time.Minute)}, "", false)
	require.NoError(t, err)
	b.Send(started)

	completed, err := b.CreateMessage(domain.MsgTaskCompleted, "moderator", domain.Broadcast, domain.TaskCompletedPayload{TaskID: taskID, Approved: true, Timestamp: now}, "", false)
	require.NoError(t, err)
	b.Send(completed)
	_ = m
}

func failTask(t *testing.T, b *bus.Bus, m *Monitor, taskID string, now time.Time) {
	t.Helper()
	failed, err := b.CreateMessage(domain.MsgTaskFailed, "moderator", AgentID, domain.TaskFailedPayload{TaskID: taskID, Timestamp: now}, "", false)
	require.NoError(t, err)
	b.Send(failed)
	_ = m
}

func timeID(i int) string {
	return fmt.Sprintf("metric-%d", i)
}
