package workflow

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kaizen-works/kaizen/pkg/models"
)

var (
	// ErrRequestInProgress is returned when a session already awaits an improvement.
	ErrRequestInProgress = errors.New("improvement request already in progress")

	// ErrNotImproved is returned when reverting a session that shows no improvement.
	ErrNotImproved = errors.New("session has no active improvement")
)

// Session is one open editor over a workflow and its improved variant.
//
// Every exported method is a single atomic step on the session. The requesting
// flag is kept apart from the lock so that step edits can proceed while an
// improvement request is outstanding.
type Session struct {
	mu sync.Mutex

	id             string
	original       *models.WorkflowVersion
	improved       *models.WorkflowVersion
	lineage        Lineage
	showComparison bool
	lastAccess     time.Time

	requesting atomic.Bool

	strict bool
	now    func() time.Time
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

// WithStrictInvariants makes the session panic when a step sequence loses
// unique ids or contiguous positions.
func WithStrictInvariants() SessionOption {
	return func(s *Session) {
		s.strict = true
	}
}

// WithSessionID sets the session identifier instead of generating one.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		s.id = id
	}
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	ID                string        `json:"id"`
	Kind              LineageKind   `json:"lineage"`
	Name              string        `json:"name"`
	Description       string        `json:"description"`
	OriginalVersionID string        `json:"original_version_id,omitempty"`
	ImprovedVersionID string        `json:"improved_version_id,omitempty"`
	Current           []models.Step `json:"current"`
	Original          []models.Step `json:"original"`
	Improved          []models.Step `json:"improved,omitempty"`
	PreviousImproved  []models.Step `json:"previous_improved,omitempty"`
	IsImproved        bool          `json:"is_improved"`
	ShowComparison    bool          `json:"show_comparison"`
	Requesting        bool          `json:"requesting"`
	IsCompleted       bool          `json:"is_completed"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func newSession(original, improved *models.WorkflowVersion, lineage Lineage, opts []SessionOption) *Session {
	s := &Session{
		original: original,
		improved: improved,
		lineage:  lineage,
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.id == "" {
		s.id = uuid.New().String()
	}

	s.lastAccess = s.now()
	s.original.Steps = nil

	if s.improved != nil {
		s.improved.Steps = nil
	}

	s.check()

	return s
}

// NewDraftSession opens an editor over a workflow that has never been saved.
func NewDraftSession(name, description string, steps []models.Step, opts ...SessionOption) *Session {
	original := &models.WorkflowVersion{
		ID:          models.NewVersionID,
		Name:        name,
		Description: description,
	}

	s := newSession(original, nil, NewDraft(RegenerateIDs(steps)), opts)
	s.original.CreatedAt = s.now()
	s.original.UpdatedAt = s.original.CreatedAt

	return s
}

// OpenSession opens an editor over a saved original and its optional improved
// counterpart. Step ids are regenerated. When showImproved is set and an improved
// version exists, the session starts on the improved lineage with the comparison open.
func OpenSession(original, improved *models.WorkflowVersion, showImproved bool, opts ...SessionOption) *Session {
	var improvedSteps []models.Step
	if improved != nil {
		improvedSteps = RegenerateIDs(improved.Steps)
	}

	base := NewOriginal(RegenerateIDs(original.Steps), nil)

	var lineage Lineage = NewOriginal(base.Steps(), improvedSteps)
	if showImproved && improved != nil {
		lineage = NewImproved(improvedSteps, base)
	}

	s := newSession(original.Clone(), improved.Clone(), lineage, opts)
	s.showComparison = lineage.Kind() == LineageImproved

	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Kind returns the active lineage variant.
func (s *Session) Kind() LineageKind {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lineage.Kind()
}

// Current returns the steps being edited.
func (s *Session) Current() []models.Step {
	s.mu.Lock()
	defer s.mu.Unlock()

	return models.CloneSteps(s.lineage.Steps())
}

// Original returns the comparison baseline.
func (s *Session) Original() []models.Step {
	s.mu.Lock()
	defer s.mu.Unlock()

	return models.CloneSteps(originalSteps(s.lineage))
}

// Improved returns the latest improved sequence, or nil when none exists.
func (s *Session) Improved() []models.Step {
	s.mu.Lock()
	defer s.mu.Unlock()

	return models.CloneSteps(improvedSteps(s.lineage))
}

// Step returns the step of the active lineage with the given id.
func (s *Session) Step(id string) (models.Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, step := range s.lineage.Steps() {
		if step.ID == id {
			return models.CloneSteps([]models.Step{step})[0], true
		}
	}

	return models.Step{}, false
}

// PreviousImproved returns the one-level undo buffer.
func (s *Session) PreviousImproved() []models.Step {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.lineage.(*Improved); ok {
		return models.CloneSteps(v.previous)
	}

	return nil
}

// IsImproved reports whether the improved lineage is active.
func (s *Session) IsImproved() bool {
	return s.Kind() == LineageImproved
}

// ShowComparison reports whether the comparison view is open.
func (s *Session) ShowComparison() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.showComparison
}

// Requesting reports whether an improvement request is outstanding.
func (s *Session) Requesting() bool {
	return s.requesting.Load()
}

// BeginRequest sets the requesting flag. It returns false when a request is
// already outstanding. The flag is set under the lock so that it is ordered
// against Revert.
func (s *Session) BeginRequest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.requesting.CompareAndSwap(false, true)
}

// EndRequest clears the requesting flag.
func (s *Session) EndRequest() {
	s.requesting.Store(false)
}

// LastAccess returns when the session was last read or changed.
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastAccess
}

// Snapshot returns a consistent copy of the whole session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastAccess = s.now()

	snapshot := Snapshot{
		ID:                s.id,
		Kind:              s.lineage.Kind(),
		Name:              s.original.Name,
		Description:       s.original.Description,
		OriginalVersionID: durableID(s.original),
		Current:           models.CloneSteps(s.lineage.Steps()),
		Original:          models.CloneSteps(originalSteps(s.lineage)),
		Improved:          models.CloneSteps(improvedSteps(s.lineage)),
		IsImproved:        s.lineage.Kind() == LineageImproved,
		ShowComparison:    s.showComparison,
		Requesting:        s.requesting.Load(),
		IsCompleted:       s.original.IsCompleted,
		UpdatedAt:         s.original.UpdatedAt,
	}

	if s.original.CompletedAt != nil {
		completedAt := *s.original.CompletedAt
		snapshot.CompletedAt = &completedAt
	}

	if s.improved != nil {
		snapshot.ImprovedVersionID = durableID(s.improved)
		if snapshot.IsImproved {
			snapshot.UpdatedAt = s.improved.UpdatedAt
		}
	}

	if v, ok := s.lineage.(*Improved); ok {
		snapshot.PreviousImproved = models.CloneSteps(v.previous)
	}

	return snapshot
}

// Versions returns the original version and, when an improved sequence exists,
// the improved version, both carrying their current steps.
func (s *Session) Versions() (*models.WorkflowVersion, *models.WorkflowVersion) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original := s.original.Clone()
	original.Steps = models.CloneSteps(originalSteps(s.lineage))

	improvedSequence := improvedSteps(s.lineage)
	if len(improvedSequence) == 0 {
		return original, nil
	}

	improved := s.improved.Clone()
	if improved == nil {
		improved = s.newImprovedVersion()
	}

	improved.Steps = models.CloneSteps(improvedSequence)

	return original, improved
}

// AddStep appends a step to the active lineage.
func (s *Session) AddStep(input StepInput) models.Step {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps, step := AddStep(s.lineage.Steps(), input)
	s.replaceSteps(steps)

	return step
}

// EditStep patches a step of the active lineage.
func (s *Session) EditStep(id string, patch StepPatch) (models.Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps, ok := EditStep(s.lineage.Steps(), id, patch)
	if !ok {
		return models.Step{}, false
	}

	s.replaceSteps(steps)

	for _, step := range steps {
		if step.ID == id {
			return step, true
		}
	}

	return models.Step{}, false
}

// DeleteStep removes a step from the active lineage.
func (s *Session) DeleteStep(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps, ok := DeleteStep(s.lineage.Steps(), id)
	if !ok {
		return false
	}

	s.replaceSteps(steps)

	return true
}

// Reorder moves a step of the active lineage; indices are clamped.
func (s *Session) Reorder(from, to int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.replaceSteps(Reorder(s.lineage.Steps(), from, to))
}

// UpdateDetails renames the workflow.
func (s *Session) UpdateDetails(name, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.original.Name = name
	s.original.Description = description
	s.original.UpdatedAt = s.now()

	if s.improved != nil {
		s.improved.Name = name
		s.improved.Description = description
	}
}

// ApplyImprovement makes steps the improved sequence and opens the comparison.
// When an improved sequence was active it becomes the previous one.
func (s *Session) ApplyImprovement(steps []models.Step) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lineage = promote(s.lineage, Renumber(models.CloneSteps(steps)))
	s.showComparison = true

	if s.improved == nil {
		s.improved = s.newImprovedVersion()
	}

	s.touch()
	s.check()
}

// Revert undoes the last improvement. It restores the previous improved sequence
// when there is one, otherwise it leaves the improved lineage and closes the
// comparison. restoredPrevious reports which of the two happened.
//
// It fails with ErrRequestInProgress while a request is outstanding and with
// ErrNotImproved when the improved lineage is not active.
func (s *Session) Revert() (restoredPrevious bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.requesting.Load() {
		return false, ErrRequestInProgress
	}

	improved, ok := s.lineage.(*Improved)
	if !ok {
		return false, ErrNotImproved
	}

	restoredPrevious = len(improved.previous) > 0

	s.lineage = revert(improved)
	if s.lineage.Kind() != LineageImproved {
		s.showComparison = false
	}

	s.touch()
	s.check()

	return restoredPrevious, nil
}

// SetComparison opens or closes the comparison view. Opening requires the
// improved lineage to be active.
func (s *Session) SetComparison(show bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if show && s.lineage.Kind() != LineageImproved {
		return false
	}

	s.showComparison = show
	s.lastAccess = s.now()

	return true
}

// MarkCompleted flags the workflow as completed.
func (s *Session) MarkCompleted() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	completedAt := s.now()
	s.original.IsCompleted = true
	s.original.CompletedAt = &completedAt
	s.original.UpdatedAt = completedAt

	return completedAt
}

// MarkPersisted records the durable ids assigned by a save.
func (s *Session) MarkPersisted(original, improved *models.WorkflowVersion) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.original.ID = original.ID
	s.original.CreatedAt = original.CreatedAt
	s.original.UpdatedAt = original.UpdatedAt

	if improved != nil {
		if s.improved == nil {
			s.improved = s.newImprovedVersion()
		}

		s.improved.ID = improved.ID
		s.improved.OriginalID = original.ID
		s.improved.CreatedAt = improved.CreatedAt
		s.improved.UpdatedAt = improved.UpdatedAt
	}

	s.lineage = persist(s.lineage)
}

func (s *Session) replaceSteps(steps []models.Step) {
	s.lineage = withSteps(s.lineage, steps)
	s.touch()
	s.check()
}

// touch updates the version owning the active lineage.
func (s *Session) touch() {
	now := s.now()
	s.lastAccess = now

	if s.lineage.Kind() == LineageImproved && s.improved != nil {
		s.improved.UpdatedAt = now

		return
	}

	s.original.UpdatedAt = now
}

func (s *Session) check() {
	if !s.strict {
		return
	}

	for _, steps := range [][]models.Step{s.lineage.Steps(), originalSteps(s.lineage), improvedSteps(s.lineage)} {
		if err := Validate(steps); err != nil {
			panic(fmt.Sprintf("workflow: session %s: %v", s.id, err))
		}
	}
}

func (s *Session) newImprovedVersion() *models.WorkflowVersion {
	now := s.now()

	return &models.WorkflowVersion{
		Name:        s.original.Name,
		Description: s.original.Description,
		IsImproved:  true,
		OriginalID:  durableID(s.original),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func originalSteps(l Lineage) []models.Step {
	if v, ok := l.(*Improved); ok {
		return v.base.Steps()
	}

	return l.Steps()
}

func improvedSteps(l Lineage) []models.Step {
	switch v := l.(type) {
	case *Improved:
		return v.steps
	case *Draft:
		return v.improvedRef
	case *Original:
		return v.improvedRef
	default:
		return nil
	}
}

func durableID(v *models.WorkflowVersion) string {
	if v.IsDraft() {
		return ""
	}

	return v.ID
}
