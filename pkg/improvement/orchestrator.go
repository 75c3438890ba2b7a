// Package improvement drives generative rewrites of a workflow session and
// its explicit load and save points.
package improvement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kaizen-works/kaizen/pkg/cost"
	"github.com/kaizen-works/kaizen/pkg/eventbus"
	"github.com/kaizen-works/kaizen/pkg/events"
	"github.com/kaizen-works/kaizen/pkg/metrics"
	"github.com/kaizen-works/kaizen/pkg/models"
	"github.com/kaizen-works/kaizen/pkg/otelhelper"
	"github.com/kaizen-works/kaizen/pkg/parser"
	"github.com/kaizen-works/kaizen/pkg/persistence"
	"github.com/kaizen-works/kaizen/pkg/workflow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// State is the improvement state of a session.
type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateImproved   State = "improved"
)

// Orchestrator runs improvement requests against sessions.
type Orchestrator struct {
	generator GenerativeTextService
	roster    ActorRosterProvider
	store     persistence.Persistence
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher sets where lifecycle events are sent.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(o *Orchestrator) {
		o.publisher = publisher
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithClock sets the time source used for save timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates an orchestrator over its three collaborators.
func NewOrchestrator(generator GenerativeTextService, roster ActorRosterProvider, store persistence.Persistence, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		generator: generator,
		roster:    roster,
		store:     store,
		publisher: eventbus.NopPublisher{},
		tracer:    otelhelper.Tracer(),
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// State reports where session stands in the improvement cycle.
func (o *Orchestrator) State(session *workflow.Session) State {
	switch {
	case session.Requesting():
		return StateRequesting
	case session.IsImproved():
		return StateImproved
	default:
		return StateIdle
	}
}

// Request asks the generative service for an improved step sequence and applies
// it to session. A request on an improved session regenerates; the replaced
// sequence becomes the one-level undo. On any error session is left as it was.
func (o *Orchestrator) Request(ctx context.Context, session *workflow.Session, instruction string) error {
	if !session.BeginRequest() {
		return ErrRequestInProgress
	}
	defer session.EndRequest()

	snapshot := session.Snapshot()
	regenerate := snapshot.IsImproved

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "improvement.request",
		attribute.String(otelhelper.SessionIDKey, snapshot.ID),
		attribute.Bool(otelhelper.RegenerateKey, regenerate),
	)
	defer span.End()

	started := time.Now()

	o.publish(ctx, snapshot.ID, events.ImprovementRequested{
		BaseEvent:     events.NewBaseEvent(events.ImprovementRequestedEvent, snapshot.ID),
		Instruction:   strings.TrimSpace(instruction),
		Regenerate:    regenerate,
		BaseStepCount: len(snapshot.Original),
	})

	steps, err := o.improve(ctx, snapshot, instruction)
	if err != nil {
		reason := failureReason(err)
		otelhelper.SetError(span, err, attribute.String(otelhelper.FailureKey, reason))

		o.logger.WarnContext(ctx, "Improvement request failed",
			"session_id", snapshot.ID,
			"reason", reason,
			"error", err,
		)

		o.publish(ctx, snapshot.ID, events.ImprovementFailed{
			BaseEvent: events.NewBaseEvent(events.ImprovementFailedEvent, snapshot.ID),
			Error:     err.Error(),
			Reason:    reason,
			Duration:  time.Since(started),
		})

		return err
	}

	session.ApplyImprovement(steps)

	comparison := metrics.Compare(session.Original(), steps)
	span.SetAttributes(attribute.Int(otelhelper.StepCountKey, len(steps)))

	o.logger.InfoContext(ctx, "Improvement applied",
		"session_id", snapshot.ID,
		"steps", len(steps),
		"regenerate", regenerate,
		"time_saved_pct", comparison.TimeSavedPct,
		"cost_saved_pct", comparison.CostSavedPct,
	)

	o.publish(ctx, snapshot.ID, events.ImprovementCompleted{
		BaseEvent:       events.NewBaseEvent(events.ImprovementCompletedEvent, snapshot.ID),
		StepCount:       len(steps),
		TimeSavedPct:    comparison.TimeSavedPct,
		CostSavedPct:    comparison.CostSavedPct,
		AutomationRatio: comparison.CompareAutomationRatio,
		Duration:        time.Since(started),
	})

	return nil
}

func (o *Orchestrator) improve(ctx context.Context, snapshot workflow.Snapshot, instruction string) ([]models.Step, error) {
	roster, err := o.roster.List(ctx)
	if err != nil {
		return nil, &TransportError{Op: "roster", Err: err}
	}

	// The original is the baseline the model rewrites. Edits made on the
	// improved lineage reach it only as the previous proposal.
	pc := PromptContext{
		SessionID:           snapshot.ID,
		WorkflowName:        snapshot.Name,
		WorkflowDescription: snapshot.Description,
		Steps:               snapshot.Original,
		PreviousImproved:    snapshot.Improved,
		Actors:              roster,
		Instruction:         instruction,
	}

	prompt, err := BuildPrompt(pc)
	if err != nil {
		return nil, fmt.Errorf("failed to build improvement prompt: %w", err)
	}

	text, err := o.generator.Complete(ctx, prompt, pc)
	if err != nil {
		return nil, &TransportError{Op: "complete", Err: err}
	}

	parsed, err := parser.Parse(text, snapshot.Original)
	if err != nil {
		return nil, err
	}

	return cost.StepsFromParsed(parsed, roster, snapshot.Original), nil
}

// Revert undoes the last improvement of session.
func (o *Orchestrator) Revert(ctx context.Context, session *workflow.Session) error {
	restoredPrevious, err := session.Revert()
	if err != nil {
		return err
	}

	o.logger.InfoContext(ctx, "Improvement reverted", "session_id", session.ID(), "restored_previous", restoredPrevious)

	o.publish(ctx, session.ID(), events.ImprovementReverted{
		BaseEvent:        events.NewBaseEvent(events.ImprovementRevertedEvent, session.ID()),
		RestoredPrevious: restoredPrevious,
	})

	return nil
}

// Open starts a session over a stored version. The reserved id "new" opens an
// empty draft. Opening an improved version pairs it with its original and
// starts on the improved lineage.
func (o *Orchestrator) Open(ctx context.Context, versionID string, opts ...workflow.SessionOption) (*workflow.Session, error) {
	if versionID == "" || versionID == models.NewVersionID {
		return workflow.NewDraftSession("", "", nil, opts...), nil
	}

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "improvement.open", attribute.String(otelhelper.VersionIDKey, versionID))
	defer span.End()

	versions, err := o.store.LoadVersions(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, &TransportError{Op: "load", Err: err}
	}

	version, err := persistence.FindVersion(versions, versionID)
	if err != nil {
		return nil, err
	}

	if !version.IsImproved {
		return workflow.OpenSession(version, persistence.ImprovedFor(versions, version.ID), false, opts...), nil
	}

	original, err := persistence.FindVersion(versions, version.OriginalID)
	if err != nil {
		return nil, fmt.Errorf("improved version %s has no original: %w", version.ID, err)
	}

	return workflow.OpenSession(original, version, true, opts...), nil
}

// Save persists session as an original version plus, when one exists, its
// improved counterpart, in a single store call.
func (o *Orchestrator) Save(ctx context.Context, session *workflow.Session) (*models.WorkflowVersion, *models.WorkflowVersion, error) {
	original, improved := session.Versions()

	if strings.TrimSpace(original.Name) == "" && len(original.Steps) == 0 {
		return nil, nil, ErrNothingToSave
	}

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "improvement.save", attribute.String(otelhelper.SessionIDKey, session.ID()))
	defer span.End()

	now := o.now()

	if original.IsDraft() {
		original.ID = uuid.New().String()
	}

	stamp(original, now)

	versions := []*models.WorkflowVersion{original}

	if improved != nil {
		if improved.IsDraft() {
			improved.ID = uuid.New().String()
		}

		improved.IsImproved = true
		improved.OriginalID = original.ID
		improved.Name = original.Name
		improved.Description = original.Description
		stamp(improved, now)

		versions = append(versions, improved)
	}

	err := o.store.SaveVersions(ctx, versions)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, nil, &TransportError{Op: "save", Err: err}
	}

	session.MarkPersisted(original, improved)

	saved := events.VersionsSaved{
		BaseEvent:  events.NewBaseEvent(events.VersionsSavedEvent, session.ID()),
		OriginalID: original.ID,
	}
	if improved != nil {
		saved.ImprovedID = improved.ID
	}

	o.logger.InfoContext(ctx, "Workflow versions saved", "session_id", session.ID(), "original_id", saved.OriginalID, "improved_id", saved.ImprovedID)
	o.publish(ctx, session.ID(), saved)

	return original, improved, nil
}

// ListVersions returns every stored version, newest first.
func (o *Orchestrator) ListVersions(ctx context.Context) ([]*models.WorkflowVersion, error) {
	versions, err := o.store.LoadVersions(ctx)
	if err != nil {
		return nil, &TransportError{Op: "load", Err: err}
	}

	persistence.SortVersions(versions)

	return versions, nil
}

// Roster returns the current actor roster.
func (o *Orchestrator) Roster(ctx context.Context) ([]models.Actor, error) {
	roster, err := o.roster.List(ctx)
	if err != nil {
		return nil, &TransportError{Op: "roster", Err: err}
	}

	return roster, nil
}

// publish sends event keyed by session id; failures are only logged.
func (o *Orchestrator) publish(ctx context.Context, sessionID string, event eventbus.Event) {
	err := o.publisher.Publish(ctx, sessionID, event)
	if err != nil {
		o.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func stamp(version *models.WorkflowVersion, now time.Time) {
	if version.CreatedAt.IsZero() {
		version.CreatedAt = now
	}

	if version.UpdatedAt.IsZero() {
		version.UpdatedAt = now
	}
}
