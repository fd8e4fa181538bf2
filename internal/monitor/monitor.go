// Package monitor implements the Monitor Agent: a
// configuration-gated metric collection daemon plus a read-only
// dashboard query API over the Learning Store.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swarmforge/swarmforge/internal/agent"
	"github.com/swarmforge/swarmforge/internal/anomaly"
	"github.com/swarmforge/swarmforge/internal/bus"
	"github.com/swarmforge/swarmforge/internal/cachemanager"
	"github.com/swarmforge/swarmforge/internal/collaborators/learningstore"
	"github.com/swarmforge/swarmforge/internal/domain"
	"github.com/swarmforge/swarmforge/internal/health"
	"github.com/swarmforge/swarmforge/internal/log"
)

// dashboardCacheTTL bounds how long GetMetricsSummary/GetAlertsSummary
// reuse a previously computed result instead of re-scanning the
// Learning Store. Short enough that a `swarm dashboard --follow` loop
// still sees fresh data within a couple of collection ticks, long
// enough to absorb a burst of repeated reads at the same hours window.
const dashboardCacheTTL = 5 * time.Second

// AgentID is the fixed bus address the Monitor subscribes under.
const AgentID = "monitor"

// shutdownTimeout bounds how long Stop waits for the collection worker to
// acknowledge the stop signal.
const shutdownTimeout = 5 * time.Second

// HealthScoreConfig configures whether and how the Monitor computes
// HealthScores each collection tick.
type HealthScoreConfig struct {
	Enabled    bool
	Weights    map[domain.MetricType]float64
	Thresholds health.Thresholds
	ExecBounds health.ExecutionTimeBounds
}

// AlertsConfig configures whether and how the Monitor runs anomaly
// detection each collection tick.
type AlertsConfig struct {
	Enabled             bool
	Thresholds          map[domain.MetricType]anomaly.Threshold
	SuppressionWindow   time.Duration
	SustainedViolations int
}

// Config configures a Monitor.
type Config struct {
	Bus                *bus.Bus
	Store              learningstore.LearningStore
	Enabled            bool
	CollectionInterval time.Duration
	MetricsWindowHours int
	Metrics            []domain.MetricType
	HealthScore        HealthScoreConfig
	Alerts             AlertsConfig
}

// eventRecord is the minimal cached form of an observed event: an id,
// timestamp, and the relevant fields plus the original payload, enqueued
// per subscribed message type.
type eventRecord struct {
	id        string
	timestamp time.Time
	taskID    string
	prNumber  int
	duration  time.Duration
	payload   any
}

// Monitor is the metric collection daemon and dashboard query surface.
type Monitor struct {
	*agent.Base

	cfg   Config
	store learningstore.LearningStore

	tunablesMu sync.RWMutex
	scorer     *health.Scorer
	detector   *anomaly.Detector

	mu     sync.Mutex
	events map[domain.MessageType][]eventRecord

	metricsSummaryCache *cachemanager.ReadThroughCache[string, map[domain.MetricType]MetricsSummary, int]
	alertsSummaryCache  *cachemanager.ReadThroughCache[string, AlertsSummary, int]

	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a Monitor. The health scorer and anomaly detector are
// built eagerly from cfg so construction-time validation errors surface
// immediately rather than on the first collection tick.
func New(cfg Config) (*Monitor, error) {
	if cfg.CollectionInterval <= 0 {
		cfg.CollectionInterval = 300 * time.Second
	}
	if cfg.MetricsWindowHours <= 0 {
		cfg.MetricsWindowHours = 24
	}

	m := &Monitor{
		cfg:    cfg,
		store:  cfg.Store,
		events: make(map[domain.MessageType][]eventRecord),
	}
	m.Base = agent.NewBase(AgentID, cfg.Bus, m)

	if cfg.HealthScore.Enabled {
		weights := cfg.HealthScore.Weights
		if weights == nil {
			weights = health.DefaultWeights()
		}
		thresholds := cfg.HealthScore.Thresholds
		if thresholds == (health.Thresholds{}) {
			thresholds = health.DefaultThresholds()
		}
		execBounds := cfg.HealthScore.ExecBounds
		if execBounds == (health.ExecutionTimeBounds{}) {
			execBounds = health.DefaultExecutionTimeBounds()
		}
		scorer, err := health.NewScorer(weights, thresholds, execBounds)
		if err != nil {
			return nil, fmt.Errorf("monitor: building health scorer: %w", err)
		}
		m.scorer = scorer
	}

	if cfg.Alerts.Enabled {
		m.detector = anomaly.NewDetector(anomaly.Config{
			Thresholds:          cfg.Alerts.Thresholds,
			SuppressionWindow:   cfg.Alerts.SuppressionWindow,
			SustainedViolations: cfg.Alerts.SustainedViolations,
		})
	}

	m.metricsSummaryCache = cachemanager.NewReadThroughCache[string, map[domain.MetricType]MetricsSummary, int](
		cachemanager.NewInMemoryCacheManager[string, map[domain.MetricType]MetricsSummary]("monitor.metrics_summary", dashboardCacheTTL, dashboardCacheTTL*2),
		func(ctx context.Context, hours int) (map[domain.MetricType]MetricsSummary, error) { return m.computeMetricsSummary(hours) },
		false,
	)
	m.alertsSummaryCache = cachemanager.NewReadThroughCache[string, AlertsSummary, int](
		cachemanager.NewInMemoryCacheManager[string, AlertsSummary]("monitor.alerts_summary", dashboardCacheTTL, dashboardCacheTTL*2),
		func(ctx context.Context, hours int) (AlertsSummary, error) { return m.computeAlertsSummary(hours) },
		false,
	)

	return m, nil
}

// tunables returns the currently active scorer/detector pair.
func (m *Monitor) tunables() (*health.Scorer, *anomaly.Detector) {
	m.tunablesMu.RLock()
	defer m.tunablesMu.RUnlock()
	return m.scorer, m.detector
}

// Tunables is the subset of Monitor's configuration a hot reload can
// swap without restarting the agent: the health
// scorer and the anomaly detector's thresholds/suppression window.
// Defined here (rather than accepting internal/config's type directly)
// to keep this package independent of the config schema; the
// Orchestrator translates a config.MonitorTunables into this shape.
type Tunables struct {
	Scorer              *health.Scorer
	AlertThresholds     map[domain.MetricType]anomaly.Threshold
	SuppressionWindow   time.Duration
	SustainedViolations int
}

// ApplyTunables atomically swaps the scorer and/or detector used by
// future collection ticks. A zero-valued field leaves the corresponding
// piece unchanged, so a reload that only edits health_score doesn't
// reset the detector's sustained-violation counters.
func (m *Monitor) ApplyTunables(t Tunables) {
	m.tunablesMu.Lock()
	defer m.tunablesMu.Unlock()
	if t.Scorer != nil {
		m.scorer = t.Scorer
	}
	if t.AlertThresholds != nil {
		sustained := t.SustainedViolations
		if sustained <= 0 {
			sustained = m.cfg.Alerts.SustainedViolations
		}
		m.detector = anomaly.NewDetector(anomaly.Config{
			Thresholds:          t.AlertThresholds,
			SuppressionWindow:   t.SuppressionWindow,
			SustainedViolations: sustained,
		})
	}
}

// Start subscribes the agent to the bus (if enabled) and launches the
// background collection worker.
func (m *Monitor) Start() error {
	if !m.cfg.Enabled {
		return nil
	}
	if err := m.Base.Start(); err != nil {
		return err
	}

	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	log.SafeGo("monitor-collector", m.runCollectionLoop)
	return nil
}

// Stop signals the collection worker and waits up to shutdownTimeout for
// it to exit, then unsubscribes from the bus.
func (m *Monitor) Stop() {
	if !m.cfg.Enabled || !m.IsRunning() {
		return
	}
	close(m.stopCh)
	select {
	case <-m.doneCh:
	case <-time.After(shutdownTimeout):
		log.Warn(log.CatMonitor, "collection worker did not stop within shutdown timeout")
	}
	m.Base.Stop()
}

// runCollectionLoop wakes every CollectionInterval (with early exit on
// stopCh) and runs one collection tick.
func (m *Monitor) runCollectionLoop() {
	defer close(m.doneCh)
	ticker := time.NewTicker(m.cfg.CollectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.collectOnce(time.Now())
		}
	}
}

// HandleMessage implements agent.Handler: every subscribed event type
// enqueues a minimal record into the thread-safe event cache.
func (m *Monitor) HandleMessage(msg domain.AgentMessage) error {
	if !m.cfg.Enabled {
		return nil
	}

	rec := eventRecord{id: msg.ID, timestamp: msg.Timestamp, payload: msg.Payload}
	switch msg.Type {
	case domain.MsgTaskStarted:
		if p, ok := msg.Payload.(domain.TaskStartedPayload); ok {
			rec.taskID = p.TaskID
		}
	case domain.MsgTaskCompleted:
		if p, ok := msg.Payload.(domain.TaskCompletedPayload); ok {
			rec.taskID = p.TaskID
		}
	case domain.MsgTaskFailed:
		if p, ok := msg.Payload.(domain.TaskFailedPayload); ok {
			rec.taskID = p.TaskID
			rec.duration = p.Duration
		}
	case domain.MsgPRCreated:
		if p, ok := msg.Payload.(domain.PRCreatedPayload); ok {
			rec.prNumber = p.PRNumber
		}
	case domain.MsgPRApproved:
		if p, ok := msg.Payload.(domain.PRApprovedPayload); ok {
			rec.prNumber = p.PRNumber
		}
	case domain.MsgPRRejected:
		if p, ok := msg.Payload.(domain.PRRejectedPayload); ok {
			rec.prNumber = p.PRNumber
		}
	default:
		return nil
	}

	// TASK_COMPLETED doesn't carry a Duration field directly;
	// derive it from the matching TASK_STARTED record so
	// average_execution_time has data without widening the message schema.
	if msg.Type == domain.MsgTaskCompleted {
		if started := m.findTaskStarted(rec.taskID); started != nil {
			rec.duration = msg.Timestamp.Sub(started.timestamp)
		}
	}

	m.mu.Lock()
	m.events[msg.Type] = append(m.events[msg.Type], rec)
	m.mu.Unlock()
	return nil
}

func (m *Monitor) findTaskStarted(taskID string) *eventRecord {
	if taskID == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.events[domain.MsgTaskStarted]) - 1; i >= 0; i-- {
		if m.events[domain.MsgTaskStarted][i].taskID == taskID {
			return &m.events[domain.MsgTaskStarted][i]
		}
	}
	return nil
}

// snapshot copies the event cache under the mutex and releases it before
// the caller computes metrics.8's concurrency model.
func (m *Monitor) snapshot() map[domain.MessageType][]eventRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.MessageType][]eventRecord, len(m.events))
	for k, v := range m.events {
		cp := make([]eventRecord, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// collectOnce computes the configured metrics from a cache snapshot,
// persists them, optionally computes and persists a HealthScore, and
// optionally runs anomaly detection, persisting any resulting Alerts.
func (m *Monitor) collectOnce(now time.Time) {
	events := m.snapshot()
	values := make(map[domain.MetricType]float64)

	for _, metricType := range m.cfg.Metrics {
		value, ok := computeMetric(metricType, events)
		if !ok {
			continue
		}
		values[metricType] = value

		if m.store != nil {
			if err := m.store.RecordMetric(&domain.Metric{
				ID:        uuid.NewString(),
				Type:      metricType,
				Value:     value,
				Timestamp: now,
			}); err != nil {
				log.ErrorErr(log.CatMonitor, "failed recording metric", err, "metric", metricType)
			}
		}
	}

	scorer, detector := m.tunables()

	if scorer != nil {
		score := scorer.Score(values)
		if m.store != nil {
			if err := m.store.RecordHealthScore(&score); err != nil {
				log.ErrorErr(log.CatMonitor, "failed recording health score", err)
			}
		}
	}

	if detector != nil {
		for metricType, value := range values {
			alert := detector.CheckMetric(metricType, value, now)
			if alert == nil {
				continue
			}
			log.Warn(log.CatMonitor, "anomaly detected", "metric", metricType, "value", value, "severity", alert.Severity)
			if m.store != nil {
				if err := m.store.RecordAlert(alert); err != nil {
					log.ErrorErr(log.CatMonitor, "failed recording alert", err, "metric", metricType)
				}
			}
		}
	}
}

// computeMetric derives metricType's value from the given event cache
// snapshot. ok is false when
// the metric is undefined (empty denominator, reserved, or no data).
func computeMetric(metricType domain.MetricType, events map[domain.MessageType][]eventRecord) (float64, bool) {
	switch metricType {
	case domain.MetricTaskSuccessRate:
		completed, failed := len(events[domain.MsgTaskCompleted]), len(events[domain.MsgTaskFailed])
		if completed+failed == 0 {
			return 0, false
		}
		return float64(completed) / float64(completed+failed), true

	case domain.MetricTaskErrorRate:
		completed, failed := len(events[domain.MsgTaskCompleted]), len(events[domain.MsgTaskFailed])
		if completed+failed == 0 {
			return 0, false
		}
		return float64(failed) / float64(completed+failed), true

	case domain.MetricAverageExecutionTime:
		completedEvents := events[domain.MsgTaskCompleted]
		if len(completedEvents) == 0 {
			return 0, false
		}
		var total time.Duration
		var n int
		for _, e := range completedEvents {
			if e.duration <= 0 {
				continue
			}
			total += e.duration
			n++
		}
		if n == 0 {
			return 0, false
		}
		return (total / time.Duration(n)).Seconds(), true

	case domain.MetricPRApprovalRate:
		approved, rejected := len(events[domain.MsgPRApproved]), len(events[domain.MsgPRRejected])
		if approved+rejected == 0 {
			return 0, false
		}
		return float64(approved) / float64(approved+rejected), true

	case domain.MetricQAScoreAverage:
		// Reserved: no QA subsystem is wired.
		return 0, false

	default:
		return 0, false
	}
}
