package config

import (
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/swarmforge/swarmforge/internal/anomaly"
	"github.com/swarmforge/swarmforge/internal/domain"
	"github.com/swarmforge/swarmforge/internal/health"
	"github.com/swarmforge/swarmforge/internal/log"
)

// MonitorTunables is the subset of a running Monitor's configuration
// that a hot reload can swap without restarting the agent: the health
// scorer's weights/thresholds and the anomaly detector's thresholds and
// suppression window. Everything else (enabling
// monitoring itself, the collection interval, which metrics are
// collected) requires a restart and is left untouched by Watcher.
type MonitorTunables struct {
	Scorer            *health.Scorer
	AlertThresholds   map[domain.MetricType]anomaly.Threshold
	SuppressionWindow time.Duration
}

// Applier is implemented by whatever owns the live Monitor (typically
// the Orchestrator); it's called with a freshly validated MonitorTunables
// every time the watched file changes and still passes Validate.
type Applier interface {
	ApplyTunables(MonitorTunables)
}

// Watcher watches a config file for writes and, on each valid edit,
// atomically swaps the running Monitor's tunables via Applier. An
// invalid edit is logged and ignored, leaving the previous configuration
// in effect — a bad edit must not crash a running daemon.
type Watcher struct {
	path    string
	applier Applier
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher constructs a Watcher over path, reporting reload outcomes to
// applier. Call Start to begin watching.
func NewWatcher(path string, applier Applier) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{path: path, applier: applier, watcher: fw}, nil
}

// Start begins watching the config file's directory (fsnotify watches
// directories more reliably than individual files across editors that
// write-then-rename) and launches the background reload loop.
func (w *Watcher) Start() error {
	dir := parentDir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	log.SafeGo("config-watcher", w.run)
	return nil
}

// Stop closes the underlying fsnotify watcher and waits for the reload
// loop to exit.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
	<-w.doneCh
}

func (w *Watcher) run() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatConfig, "config watcher error", err)
		}
	}
}

// reload re-reads and validates the config file, logging and ignoring
// any error so the previously applied tunables remain in effect.
func (w *Watcher) reload() {
	cfg, _, err := Load(w.path)
	if err != nil {
		log.ErrorErr(log.CatConfig, "config reload rejected, keeping previous configuration", err, "path", w.path)
		return
	}

	mon := cfg.Gear3.Monitoring
	tunables := MonitorTunables{
		SuppressionWindow: mon.Alerts.SuppressionWindowDuration(),
	}
	if mon.HealthScore.Enabled {
		scorer, err := mon.HealthScore.BuildScorer()
		if err != nil {
			log.ErrorErr(log.CatConfig, "config reload rejected: invalid health_score", err)
			return
		}
		tunables.Scorer = scorer
	}
	if mon.Alerts.Enabled {
		thresholds, err := mon.Alerts.BuildThresholds()
		if err != nil {
			log.ErrorErr(log.CatConfig, "config reload rejected: invalid alerts", err)
			return
		}
		tunables.AlertThresholds = thresholds
	}

	w.applier.ApplyTunables(tunables)
	log.Info(log.CatConfig, "config reloaded", "path", w.path)
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
