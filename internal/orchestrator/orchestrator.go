// Package orchestrator wires a ProjectState, the message bus, and the
// gear-selected set of agents together and drives the project from
// construction through its terminal phase.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/swarmforge/swarmforge/internal/analyzer"
	"github.com/swarmforge/swarmforge/internal/bus"
	"github.com/swarmforge/swarmforge/internal/collaborators/backend"
	"github.com/swarmforge/swarmforge/internal/collaborators/decomposer"
	"github.com/swarmforge/swarmforge/internal/collaborators/gitdriver"
	"github.com/swarmforge/swarmforge/internal/collaborators/learningstore"
	"github.com/swarmforge/swarmforge/internal/collaborators/statestore"
	"github.com/swarmforge/swarmforge/internal/config"
	"github.com/swarmforge/swarmforge/internal/domain"
	"github.com/swarmforge/swarmforge/internal/log"
	"github.com/swarmforge/swarmforge/internal/moderator"
	"github.com/swarmforge/swarmforge/internal/monitor"
	"github.com/swarmforge/swarmforge/internal/reviewer"
	"github.com/swarmforge/swarmforge/internal/techlead"
	"github.com/swarmforge/swarmforge/internal/tracing"
)

// pollInterval bounds how often Run checks whether the project has
// reached a terminal phase. The bus itself is synchronous (every Send
// dispatches inline), so this is a fallback for the case of no further
// in-flight messages rather than the primary signal of progress.
const pollInterval = 50 * time.Millisecond

// maxQuietTicks bounds how long Run will wait for the project to move
// past a non-terminal phase with no new bus traffic before giving up
// and failing the project, guarding against a wedged agent silently
// never responding.
const maxQuietTicks = 200

// Dependencies are the concrete collaborators an Orchestrator wires into
// its agents. Any field left nil is replaced by a fake/local reference
// implementation, so a caller can build an Orchestrator from just a
// requirement and a Config.
type Dependencies struct {
	Backend    backend.Backend
	Git        gitdriver.Driver
	Decomposer decomposer.Decomposer
	Store      statestore.Store
	LearningDB learningstore.LearningStore
	Reviewer   *reviewer.Reviewer
	Pipeline   *analyzer.Pipeline
	StateRoot  string // used only if Store is nil
}

// Orchestrator owns the project's ProjectState, bus, and agent set for
// the project's lifetime.
type Orchestrator struct {
	bus     *bus.Bus
	project *domain.ProjectState
	cfg     config.Config

	moderator *moderator.Moderator
	techLead  *techlead.TechLead
	mon       *monitor.Monitor
	tracer    *tracing.Provider

	failureCh chan struct{}
}

// New constructs an Orchestrator: it builds a ProjectState, a bus, and
// conditionally instantiates agents according to cfg's
// gear tier, then registers them on the bus. Gear 1 and 2 run Moderator
// and TechLead; gear 3 additionally enables the Monitor when
// gear3.monitoring.enabled is set. The Ever-Thinker is configuration-
// acknowledged only (DESIGN.md) and has no runtime agent.
func New(requirement string, cfg config.Config, deps Dependencies) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	b := bus.New()
	project := domain.NewProjectState(uuid.NewString(), requirement)

	tracerProvider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: building tracing provider: %w", err)
	}
	b.SetTracer(tracerProvider.Tracer())

	if deps.Decomposer == nil {
		deps.Decomposer = decomposer.NewHeuristic()
	}
	if deps.Reviewer == nil {
		deps.Reviewer = reviewer.NewDefault()
	}
	if deps.Pipeline == nil {
		deps.Pipeline = analyzer.NewDefaultPipeline()
	}
	if deps.Backend == nil {
		deps.Backend = backend.NewFake()
	}
	if deps.Git == nil {
		deps.Git = gitdriver.NewFake()
	}
	if deps.Store == nil {
		root := deps.StateRoot
		if root == "" {
			root = fmt.Sprintf("/tmp/swarmforge-state/%s", project.ID)
		}
		store, err := statestore.New(root)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: building state store: %w", err)
		}
		deps.Store = store
	}

	mod := moderator.New(moderator.Config{
		Bus:        b,
		Project:    project,
		Decomposer: deps.Decomposer,
		Reviewer:   deps.Reviewer,
		Pipeline:   deps.Pipeline,
		Store:      deps.Store,
		TechLeadID: techlead.AgentID,
	})
	if err := mod.Start(); err != nil {
		return nil, fmt.Errorf("orchestrator: starting moderator: %w", err)
	}

	tl := techlead.New(techlead.Config{
		Bus:         b,
		Project:     project,
		Backend:     deps.Backend,
		Git:         deps.Git,
		Store:       deps.Store,
		ModeratorID: moderator.AgentID,
	})
	if err := tl.Start(); err != nil {
		return nil, fmt.Errorf("orchestrator: starting techlead: %w", err)
	}

	o := &Orchestrator{
		bus:       b,
		project:   project,
		cfg:       cfg,
		moderator: mod,
		techLead:  tl,
		tracer:    tracerProvider,
		failureCh: make(chan struct{}, 1),
	}

	mon := cfg.Gear3.Monitoring
	if cfg.Gear == config.Gear3 && mon.Enabled {
		monCfg := monitor.Config{
			Bus:                b,
			Store:              deps.LearningDB,
			Enabled:            true,
			CollectionInterval: mon.CollectionIntervalDuration(),
			MetricsWindowHours: mon.MetricsWindowHours,
			Metrics:            mon.MonitorMetricTypes(),
		}
		if mon.HealthScore.Enabled {
			if _, err := mon.HealthScore.BuildScorer(); err != nil {
				return nil, fmt.Errorf("orchestrator: %w", err)
			}
			monCfg.HealthScore = monitor.HealthScoreConfig{
				Enabled:    true,
				Weights:    mon.HealthScore.HealthWeights(),
				Thresholds: mon.HealthScore.HealthThresholds(),
			}
		}
		if mon.Alerts.Enabled {
			thresholds, err := mon.Alerts.BuildThresholds()
			if err != nil {
				return nil, fmt.Errorf("orchestrator: %w", err)
			}
			monCfg.Alerts = monitor.AlertsConfig{
				Enabled:             true,
				Thresholds:          thresholds,
				SuppressionWindow:   mon.Alerts.SuppressionWindowDuration(),
				SustainedViolations: mon.Alerts.SustainedViolationsRequired,
			}
		}

		m, err := monitor.New(monCfg)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: building monitor: %w", err)
		}
		if err := m.Start(); err != nil {
			return nil, fmt.Errorf("orchestrator: starting monitor: %w", err)
		}
		o.mon = m
	}

	if err := b.Subscribe(domain.Broadcast, o.watchForCrash); err != nil {
		// Broadcast is a wildcard address, not a real subscriber slot;
		// Subscribe rejecting it would indicate a bus.go contract change.
		log.ErrorErr(log.CatOrchestrator, "could not subscribe crash watcher", err)
	}

	return o, nil
}

// Monitor returns the running Monitor, or nil if gear/config didn't
// enable one. Used by the CLI's dashboard/alerts commands.
func (o *Orchestrator) Monitor() *monitor.Monitor { return o.mon }

// Project returns the orchestrated ProjectState.
func (o *Orchestrator) Project() *domain.ProjectState { return o.project }

// watchForCrash observes every broadcast message and fails the project
// on an AGENT_ERROR whose cause looks unrecoverable (any phase may
// collapse to failed on an unrecoverable agent crash).
// PR rejection and collaborator failures already resolve through the
// Moderator's own handling; this is a backstop for an error broadcast
// the Moderator itself emitted (e.g. its own panic recovery) with no
// task to attribute it to.
func (o *Orchestrator) watchForCrash(msg domain.AgentMessage) error {
	if msg.Type != domain.MsgAgentError {
		return nil
	}
	payload, ok := msg.Payload.(domain.AgentErrorPayload)
	if !ok || payload.TaskID != "" {
		// Task-scoped errors are handled by the Moderator itself.
		return nil
	}
	if o.project.Phase == domain.PhaseFailed || o.project.Phase == domain.PhaseCompleted {
		return nil
	}
	log.Error(log.CatOrchestrator, "unrecoverable agent crash, failing project",
		"agent", payload.OriginatingAgent, "error", payload.ErrorMessage)
	o.project.SetPhase(domain.PhaseFailed)
	select {
	case o.failureCh <- struct{}{}:
	default:
	}
	return nil
}

// Run kicks off decomposition and then blocks until the project reaches
// a terminal phase (completed or failed), returning that phase. The bus
// is synchronous, so DecomposeAndAssignTasks and everything it
// transitively triggers (task assignment, PR review, feedback, retries,
// improvement cycles) all complete before Run's poll loop ever observes
// a change; the loop exists to wait out the Monitor's async collection
// goroutine and to catch a crash reported after the triggering call
// returned.
func (o *Orchestrator) Run() (domain.Phase, error) {
	if err := o.moderator.DecomposeAndAssignTasks(); err != nil {
		o.project.SetPhase(domain.PhaseFailed)
		return domain.PhaseFailed, fmt.Errorf("orchestrator: decomposing project: %w", err)
	}

	quiet := 0
	for {
		switch o.project.Phase {
		case domain.PhaseFailed:
			return domain.PhaseFailed, nil
		case domain.PhaseCompleted:
			return domain.PhaseCompleted, nil
		}

		select {
		case <-o.failureCh:
			return domain.PhaseFailed, nil
		case <-time.After(pollInterval):
			quiet++
			if quiet >= maxQuietTicks {
				o.project.SetPhase(domain.PhaseFailed)
				return domain.PhaseFailed, fmt.Errorf("orchestrator: project made no progress within the wait budget")
			}
		}
	}
}

// ApplyTunables implements config.Applier: it forwards a validated
// config reload straight to the running Monitor. A no-op when gear/config
// never enabled one.
func (o *Orchestrator) ApplyTunables(t config.MonitorTunables) {
	if o.mon == nil {
		return
	}
	o.mon.ApplyTunables(monitor.Tunables{
		Scorer:            t.Scorer,
		AlertThresholds:   t.AlertThresholds,
		SuppressionWindow: t.SuppressionWindow,
	})
}

// Shutdown stops every running agent in reverse dependency order and
// flushes any pending spans.
func (o *Orchestrator) Shutdown() {
	if o.mon != nil {
		o.mon.Stop()
	}
	o.techLead.Stop()
	o.moderator.Stop()
	if o.tracer != nil {
		if err := o.tracer.Shutdown(context.Background()); err != nil {
			log.ErrorErr(log.CatOrchestrator, "tracing provider shutdown failed", err)
		}
	}
}
