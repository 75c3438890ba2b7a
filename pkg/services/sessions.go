package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kaizen-works/kaizen/pkg/cost"
	"github.com/kaizen-works/kaizen/pkg/improvement"
	"github.com/kaizen-works/kaizen/pkg/metrics"
	"github.com/kaizen-works/kaizen/pkg/models"
	"github.com/kaizen-works/kaizen/pkg/persistence"
	"github.com/kaizen-works/kaizen/pkg/workflow"
)

// Sessions keeps the open editor sessions and routes actions to them.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*workflow.Session

	orchestrator *improvement.Orchestrator
	persistence  persistence.Persistence
	logger       *slog.Logger
	sessionOpts  []workflow.SessionOption
}

// NewSessions creates an empty registry. sessionOpts apply to every session it opens.
func NewSessions(orchestrator *improvement.Orchestrator, persistence persistence.Persistence, logger *slog.Logger, sessionOpts ...workflow.SessionOption) *Sessions {
	return &Sessions{
		sessions:     make(map[string]*workflow.Session),
		orchestrator: orchestrator,
		persistence:  persistence,
		logger:       logger,
		sessionOpts:  sessionOpts,
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Sessions) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListVersions returns every stored version, newest first.
func (s *Sessions) ListVersions(ctx context.Context) ([]*models.WorkflowVersion, error) {
	return s.orchestrator.ListVersions(ctx)
}

// Roster returns the actors known to the cost calculation.
func (s *Sessions) Roster(ctx context.Context) ([]models.Actor, error) {
	return s.orchestrator.Roster(ctx)
}

// OpenRequest selects what a new session edits.
type OpenRequest struct {
	VersionID   string
	Name        string
	Description string
}

// Open starts a session over a stored version, or over a new draft when the
// version id is empty or "new".
func (s *Sessions) Open(ctx context.Context, req OpenRequest) (*SessionView, error) {
	var (
		session *workflow.Session
		err     error
	)

	if req.VersionID == "" || req.VersionID == models.NewVersionID {
		name := strings.TrimSpace(req.Name)
		if name == "" {
			return nil, NewValidationError("Open", "name_required", "workflow name is required", ErrWorkflowNameRequired)
		}

		session = workflow.NewDraftSession(name, strings.TrimSpace(req.Description), nil, s.sessionOpts...)
	} else {
		session, err = s.orchestrator.Open(ctx, req.VersionID, s.sessionOpts...)
		if err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Session opened", "session_id", session.ID(), "version_id", req.VersionID, "lineage", session.Kind())

	return s.view(session), nil
}

// Get returns the session with the given id.
func (s *Sessions) Get(id string) (*workflow.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	return session, nil
}

// View returns the current state of a session with its metrics.
func (s *Sessions) View(id string) (*SessionView, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	return s.view(session), nil
}

// Close discards a session without saving it.
func (s *Sessions) Close(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}

	delete(s.sessions, id)

	return nil
}

// Count returns the number of open sessions.
func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// EvictIdle closes sessions idle for longer than ttl, except those awaiting an
// improvement. It returns how many were closed.
func (s *Sessions) EvictIdle(ctx context.Context, ttl time.Duration, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0

	for id, session := range s.sessions {
		if session.Requesting() || now.Sub(session.LastAccess()) < ttl {
			continue
		}

		delete(s.sessions, id)
		evicted++

		s.logger.InfoContext(ctx, "Idle session evicted", "session_id", id)
	}

	return evicted
}

// UpdateDetails renames the workflow of a session.
func (s *Sessions) UpdateDetails(id, name, description string) (*SessionView, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("UpdateDetails", "name_required", "workflow name is required", ErrWorkflowNameRequired)
	}

	session.UpdateDetails(name, strings.TrimSpace(description))

	return s.view(session), nil
}

// AddStep appends a step. Its cost is derived from the roster unless given.
func (s *Sessions) AddStep(ctx context.Context, id string, input workflow.StepInput) (models.Step, error) {
	session, err := s.Get(id)
	if err != nil {
		return models.Step{}, err
	}

	if input.CostYen == nil {
		roster, err := s.orchestrator.Roster(ctx)
		if err != nil {
			return models.Step{}, err
		}

		resolution := cost.Resolve(input.Assignee, input.TimeRequiredMinutes, roster, "")
		input.Assignee = resolution.Assignee
		input.CostYen = resolution.CostYen
	}

	return session.AddStep(input), nil
}

// EditStep patches a step. When the assignee or duration changes and the patch
// carries no explicit cost, the cost is derived again from the roster.
func (s *Sessions) EditStep(ctx context.Context, id, stepID string, patch workflow.StepPatch) (models.Step, error) {
	session, err := s.Get(id)
	if err != nil {
		return models.Step{}, err
	}

	current, ok := session.Step(stepID)
	if !ok {
		return models.Step{}, ErrStepNotFound
	}

	if patch.CostYen == nil && (patch.Assignee != nil || patch.TimeRequiredMinutes != nil) {
		roster, err := s.orchestrator.Roster(ctx)
		if err != nil {
			return models.Step{}, err
		}

		assignee, minutes := current.Assignee, current.TimeRequiredMinutes
		if patch.Assignee != nil {
			assignee = *patch.Assignee
		}

		if patch.TimeRequiredMinutes != nil {
			minutes = *patch.TimeRequiredMinutes
		}

		resolution := cost.Resolve(assignee, minutes, roster, "")
		patch.Assignee = &resolution.Assignee
		patch.CostYen = resolution.CostYen
		patch.ClearCost = resolution.CostYen == nil
	}

	step, ok := session.EditStep(stepID, patch)
	if !ok {
		return models.Step{}, ErrStepNotFound
	}

	return step, nil
}

// DeleteStep removes a step.
func (s *Sessions) DeleteStep(id, stepID string) error {
	session, err := s.Get(id)
	if err != nil {
		return err
	}

	if !session.DeleteStep(stepID) {
		return ErrStepNotFound
	}

	return nil
}

// Reorder moves a step; out of range indices are clamped.
func (s *Sessions) Reorder(id string, from, to int) (*SessionView, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	session.Reorder(from, to)

	return s.view(session), nil
}

// Improve requests an improvement and returns the resulting view.
func (s *Sessions) Improve(ctx context.Context, id, instruction string) (*SessionView, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	err = s.orchestrator.Request(ctx, session, instruction)
	if err != nil {
		return nil, err
	}

	return s.view(session), nil
}

// Revert undoes the last improvement.
func (s *Sessions) Revert(ctx context.Context, id string) (*SessionView, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	err = s.orchestrator.Revert(ctx, session)
	if err != nil {
		return nil, err
	}

	return s.view(session), nil
}

// SetComparison opens or closes the comparison view.
func (s *Sessions) SetComparison(id string, show bool) (*SessionView, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if !session.SetComparison(show) {
		return nil, ErrNotImproved
	}

	return s.view(session), nil
}

// Complete marks the workflow as completed.
func (s *Sessions) Complete(id string) (*SessionView, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	session.MarkCompleted()

	return s.view(session), nil
}

// Save persists the session.
func (s *Sessions) Save(ctx context.Context, id string) (*SessionView, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	_, _, err = s.orchestrator.Save(ctx, session)
	if err != nil {
		return nil, err
	}

	return s.view(session), nil
}

func (s *Sessions) view(session *workflow.Session) *SessionView {
	return newSessionView(session.Snapshot(), s.orchestrator.State(session))
}

// Totals are the metrics of one step sequence.
type Totals struct {
	TimeMinutes     int     `json:"time_minutes"`
	CostYen         int     `json:"cost_yen"`
	AutomationRatio float64 `json:"automation_ratio"`
}

// SessionView is a session snapshot with its derived metrics.
type SessionView struct {
	workflow.Snapshot

	State      improvement.State   `json:"state"`
	Totals     Totals              `json:"totals"`
	Comparison *metrics.Comparison `json:"comparison,omitempty"`
}

func newSessionView(snapshot workflow.Snapshot, state improvement.State) *SessionView {
	view := &SessionView{
		Snapshot: snapshot,
		State:    state,
		Totals: Totals{
			TimeMinutes:     metrics.TotalTime(snapshot.Current),
			CostYen:         metrics.TotalCost(snapshot.Current),
			AutomationRatio: metrics.AutomationRatio(snapshot.Current),
		},
	}

	if len(snapshot.Improved) > 0 {
		comparison := metrics.Compare(snapshot.Original, snapshot.Improved)
		view.Comparison = &comparison
	}

	return view
}
