package improvement

import (
	"context"

	"github.com/kaizen-works/kaizen/pkg/models"
)

// GenerativeTextService returns tagged step text for a prompt.
type GenerativeTextService interface {
	Complete(ctx context.Context, prompt string, pc PromptContext) (string, error)
}

// ActorRosterProvider lists the actors available for cost derivation.
type ActorRosterProvider interface {
	List(ctx context.Context) ([]models.Actor, error)
}

// PromptContext is the structured input a prompt is built from.
type PromptContext struct {
	SessionID           string
	WorkflowName        string
	WorkflowDescription string
	Steps               []models.Step
	PreviousImproved    []models.Step
	Actors              []models.Actor
	Instruction         string
}
