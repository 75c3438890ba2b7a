package workflow

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kaizen-works/kaizen/pkg/models"
)

var (
	// ErrDuplicateStepID indicates two steps of one sequence share an id.
	ErrDuplicateStepID = errors.New("duplicate step id")

	// ErrPositionMismatch indicates a step position differs from its index.
	ErrPositionMismatch = errors.New("step position does not match its index")
)

// StepInput carries the fields of a new step.
type StepInput struct {
	Title               string
	Description         string
	Assignee            string
	TimeRequiredMinutes int
	Tools               string
	CostYen             *int
}

// StepPatch is a partial step update; nil fields are left untouched.
type StepPatch struct {
	Title               *string
	Description         *string
	Assignee            *string
	TimeRequiredMinutes *int
	Tools               *string
	CostYen             *int
	ClearCost           bool // Forget the cost when CostYen is nil
}

// AddStep appends a step with a fresh id at the end of steps.
func AddStep(steps []models.Step, input StepInput) ([]models.Step, models.Step) {
	step := models.Step{
		ID:                  uuid.New().String(),
		Title:               input.Title,
		Description:         input.Description,
		Assignee:            input.Assignee,
		TimeRequiredMinutes: input.TimeRequiredMinutes,
		Position:            len(steps),
		Tools:               input.Tools,
	}

	if input.CostYen != nil {
		step.CostYen = models.Yen(*input.CostYen)
	}

	updated := append(models.CloneSteps(steps), step)

	return updated, step
}

// EditStep applies patch to the step with the given id. Positions are untouched.
func EditStep(steps []models.Step, id string, patch StepPatch) ([]models.Step, bool) {
	updated := models.CloneSteps(steps)

	for i := range updated {
		if updated[i].ID != id {
			continue
		}

		applyPatch(&updated[i], patch)

		return updated, true
	}

	return updated, false
}

func applyPatch(step *models.Step, patch StepPatch) {
	if patch.Title != nil {
		step.Title = *patch.Title
	}

	if patch.Description != nil {
		step.Description = *patch.Description
	}

	if patch.Assignee != nil {
		step.Assignee = *patch.Assignee
	}

	if patch.TimeRequiredMinutes != nil {
		step.TimeRequiredMinutes = *patch.TimeRequiredMinutes
	}

	if patch.Tools != nil {
		step.Tools = *patch.Tools
	}

	switch {
	case patch.CostYen != nil:
		step.CostYen = models.Yen(*patch.CostYen)
	case patch.ClearCost:
		step.CostYen = nil
	}
}

// DeleteStep removes the step with the given id and renumbers the rest.
func DeleteStep(steps []models.Step, id string) ([]models.Step, bool) {
	updated := make([]models.Step, 0, len(steps))
	found := false

	for _, step := range models.CloneSteps(steps) {
		if step.ID == id {
			found = true

			continue
		}

		updated = append(updated, step)
	}

	return Renumber(updated), found
}

// Reorder moves the step at from to index to. Both indices are clamped to the
// sequence bounds.
func Reorder(steps []models.Step, from, to int) []models.Step {
	updated := models.CloneSteps(steps)
	if len(updated) == 0 {
		return updated
	}

	from = clamp(from, 0, len(updated)-1)
	to = clamp(to, 0, len(updated)-1)

	if from == to {
		return updated
	}

	moved := updated[from]
	updated = append(updated[:from], updated[from+1:]...)
	updated = append(updated[:to], append([]models.Step{moved}, updated[to:]...)...)

	return Renumber(updated)
}

// Renumber sets every position to its index, in place.
func Renumber(steps []models.Step) []models.Step {
	for i := range steps {
		steps[i].Position = i
	}

	return steps
}

// RegenerateIDs copies steps with fresh ids and contiguous positions.
func RegenerateIDs(steps []models.Step) []models.Step {
	updated := models.CloneSteps(steps)
	for i := range updated {
		updated[i].ID = uuid.New().String()
	}

	return Renumber(updated)
}

// Validate checks that ids are unique and positions are exactly 0..N-1.
func Validate(steps []models.Step) error {
	seen := make(map[string]struct{}, len(steps))

	for i, step := range steps {
		if step.Position != i {
			return fmt.Errorf("step %s at index %d has position %d: %w", step.ID, i, step.Position, ErrPositionMismatch)
		}

		if _, ok := seen[step.ID]; ok {
			return fmt.Errorf("step %s: %w", step.ID, ErrDuplicateStepID)
		}

		seen[step.ID] = struct{}{}
	}

	return nil
}

func clamp(value, lower, upper int) int {
	return max(lower, min(value, upper))
}
