// Package learningstore implements the Learning Store collaborator as
// a real SQLite-backed store, since the Monitor's dashboard query API
// needs a working backing store to be testable. The schema is
// intentionally minimal: metrics, health_scores, alerts, and a small kv
// table reserved for future suppression-timestamp persistence (today
// the Anomaly Detector keeps that state in memory).
package learningstore

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver" // registers the "sqlite3" database/sql driver
	_ "github.com/ncruces/go-sqlite3/embed"  // bundles the SQLite engine, no cgo required

	"github.com/swarmforge/swarmforge/internal/domain"
	"github.com/swarmforge/swarmforge/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// LearningStore is the Learning Store collaborator contract.
type LearningStore interface {
	RecordMetric(m *domain.Metric) error
	RecordHealthScore(h *domain.HealthScore) error
	RecordAlert(a *domain.Alert) error
	AcknowledgeAlert(id, by string) (bool, error)
	QueryMetrics(metricType *domain.MetricType, start, end *time.Time, limit int) ([]*domain.Metric, error)
	QueryHealthScores(start *time.Time, limit int) ([]*domain.HealthScore, error)
	QueryAlerts(start, end *time.Time, acknowledged *bool, severity *domain.AlertSeverity, limit int) ([]*domain.Alert, error)
}

// Store implements LearningStore against a SQLite database, keeping a
// row-model/domain-model split: storage rows are decoupled structs
// mapped to and from the domain types.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) a SQLite database at path and applies
// pending migrations.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("learningstore: opening %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("learningstore: pinging %q: %w", path, err)
	}

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info(log.CatStore, "learning store opened", "path", path)
	return &Store{db: db}, nil
}

// migrateUp applies the embedded schema directly via database/sql rather
// than through golang-migrate: migrate's sqlite3 database driver assumes
// the mattn/go-sqlite3 cgo driver for its locking/versioning internals,
// which conflicts with the pure-Go, embed-based ncruces/go-sqlite3
// driver used here. Since the schema is a single
// CREATE-TABLE-IF-NOT-EXISTS script with no forward/backward migration
// chain to manage yet, applying it idempotently on every Open is
// equivalent and far simpler than standing up a full migration driver
// for one step.
func migrateUp(db *sql.DB) error {
	script, err := migrationsFS.ReadFile("migrations/0001_init.up.sql")
	if err != nil {
		return fmt.Errorf("learningstore: loading embedded migration: %w", err)
	}
	if _, err := db.Exec(string(script)); err != nil {
		return fmt.Errorf("learningstore: applying migration: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func marshalContext(ctx map[string]any) (string, error) {
	if ctx == nil {
		return "{}", nil
	}
	b, err := json.Marshal(ctx)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalContext(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var ctx map[string]any
	if err := json.Unmarshal([]byte(raw), &ctx); err != nil {
		return nil
	}
	if len(ctx) == 0 {
		return nil
	}
	return ctx
}

// RecordMetric persists m. Each query opens a short-lived statement
// scope; no transaction is held across calls.
func (s *Store) RecordMetric(m *domain.Metric) error {
	ctx, err := marshalContext(m.Context)
	if err != nil {
		return fmt.Errorf("learningstore: marshaling metric context: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO metrics (id, type, value, context, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, string(m.Type), m.Value, ctx, m.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("learningstore: recording metric %s: %w", m.ID, err)
	}
	return nil
}

// RecordHealthScore persists h.
func (s *Store) RecordHealthScore(h *domain.HealthScore) error {
	components, err := json.Marshal(h.Components)
	if err != nil {
		return fmt.Errorf("learningstore: marshaling health components: %w", err)
	}
	ctx, err := marshalContext(h.Context)
	if err != nil {
		return fmt.Errorf("learningstore: marshaling health context: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO health_scores (id, score, status, components, context, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		h.ID, h.Score, string(h.Status), string(components), ctx, h.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("learningstore: recording health score %s: %w", h.ID, err)
	}
	return nil
}

// RecordAlert persists a. Alerts are append-only;
// acknowledgment is a separate, narrower mutation via AcknowledgeAlert.
func (s *Store) RecordAlert(a *domain.Alert) error {
	ctx, err := marshalContext(a.Context)
	if err != nil {
		return fmt.Errorf("learningstore: marshaling alert context: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO alerts (id, type, metric_name, threshold, actual, severity, message, context, created_at, acknowledged, acknowledged_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, '')`,
		a.ID, string(a.Type), string(a.MetricName), a.Threshold, a.Actual, string(a.Severity), a.Message, ctx, a.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("learningstore: recording alert %s: %w", a.ID, err)
	}
	return nil
}

// AcknowledgeAlert marks alert id as acknowledged by by. Returns true on
// the first acknowledgment, false if it was already acknowledged:
// re-ack is a no-op that reports false.
func (s *Store) AcknowledgeAlert(id, by string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE alerts SET acknowledged = 1, acknowledged_by = ?, acknowledged_at = ? WHERE id = ? AND acknowledged = 0`,
		by, time.Now(), id,
	)
	if err != nil {
		return false, fmt.Errorf("learningstore: acknowledging alert %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("learningstore: checking acknowledge result for %s: %w", id, err)
	}
	return n > 0, nil
}

// QueryMetrics returns metrics matching the given filters, newest first.
func (s *Store) QueryMetrics(metricType *domain.MetricType, start, end *time.Time, limit int) ([]*domain.Metric, error) {
	query := `SELECT id, type, value, context, created_at FROM metrics WHERE 1=1`
	var args []any
	if metricType != nil {
		query += ` AND type = ?`
		args = append(args, string(*metricType))
	}
	if start != nil {
		query += ` AND created_at >= ?`
		args = append(args, *start)
	}
	if end != nil {
		query += ` AND created_at <= ?`
		args = append(args, *end)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("learningstore: querying metrics: %w", err)
	}
	defer rows.Close()

	var out []*domain.Metric
	for rows.Next() {
		var m domain.Metric
		var typ, ctx string
		if err := rows.Scan(&m.ID, &typ, &m.Value, &ctx, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("learningstore: scanning metric row: %w", err)
		}
		m.Type = domain.MetricType(typ)
		m.Context = unmarshalContext(ctx)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// QueryHealthScores returns health scores newest first.
func (s *Store) QueryHealthScores(start *time.Time, limit int) ([]*domain.HealthScore, error) {
	query := `SELECT id, score, status, components, context, created_at FROM health_scores WHERE 1=1`
	var args []any
	if start != nil {
		query += ` AND created_at >= ?`
		args = append(args, *start)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("learningstore: querying health scores: %w", err)
	}
	defer rows.Close()

	var out []*domain.HealthScore
	for rows.Next() {
		var h domain.HealthScore
		var status, components, ctx string
		if err := rows.Scan(&h.ID, &h.Score, &status, &components, &ctx, &h.Timestamp); err != nil {
			return nil, fmt.Errorf("learningstore: scanning health score row: %w", err)
		}
		h.Status = domain.HealthStatus(status)
		_ = json.Unmarshal([]byte(components), &h.Components)
		h.Context = unmarshalContext(ctx)
		out = append(out, &h)
	}
	return out, rows.Err()
}

// QueryAlerts returns alerts matching the given filters, newest first.
func (s *Store) QueryAlerts(start, end *time.Time, acknowledged *bool, severity *domain.AlertSeverity, limit int) ([]*domain.Alert, error) {
	query := `SELECT id, type, metric_name, threshold, actual, severity, message, context, created_at, acknowledged, acknowledged_by, acknowledged_at FROM alerts WHERE 1=1`
	var args []any
	if start != nil {
		query += ` AND created_at >= ?`
		args = append(args, *start)
	}
	if end != nil {
		query += ` AND created_at <= ?`
		args = append(args, *end)
	}
	if acknowledged != nil {
		query += ` AND acknowledged = ?`
		args = append(args, boolToInt(*acknowledged))
	}
	if severity != nil {
		query += ` AND severity = ?`
		args = append(args, string(*severity))
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("learningstore: querying alerts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Alert
	for rows.Next() {
		var a domain.Alert
		var typ, metricName, severityStr, ctx, ackBy string
		var acked int
		var ackAt sql.NullTime
		if err := rows.Scan(&a.ID, &typ, &metricName, &a.Threshold, &a.Actual, &severityStr, &a.Message, &ctx, &a.Timestamp, &acked, &ackBy, &ackAt); err != nil {
			return nil, fmt.Errorf("learningstore: scanning alert row: %w", err)
		}
		a.Type = domain.AlertType(typ)
		a.MetricName = domain.MetricType(metricName)
		a.Severity = domain.AlertSeverity(severityStr)
		a.Context = unmarshalContext(ctx)
		a.Acknowledged = acked != 0
		a.AcknowledgedBy = ackBy
		if ackAt.Valid {
			a.AcknowledgedAt = &ackAt.Time
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ LearningStore = (*Store)(nil)
