package web

import (
	"github.com/kaizen-works/kaizen/pkg/models"
	"github.com/kaizen-works/kaizen/pkg/workflow"
)

// OpenSessionRequest represents the request body for opening a session.
// An empty or "new" version id starts a draft named Name.
type OpenSessionRequest struct {
	VersionID   string `json:"version_id"`
	Name        string `json:"name"        validate:"max=255"`
	Description string `json:"description"`
}

// UpdateSessionRequest represents the request body for renaming a workflow.
type UpdateSessionRequest struct {
	Name        string `json:"name"        validate:"required,max=255"`
	Description string `json:"description"`
}

// CreateStepRequest represents the request body for adding a step.
type CreateStepRequest struct {
	Title               string `json:"title"                 validate:"required"`
	Description         string `json:"description"`
	Assignee            string `json:"assignee"              validate:"required"`
	TimeRequiredMinutes int    `json:"time_required_minutes" validate:"min=0"`
	Tools               string `json:"tools"`
	CostYen             *int   `json:"cost_yen,omitempty"    validate:"omitempty,min=0"`
}

// UpdateStepRequest represents the request body for patching a step.
// All fields are optional to support partial updates.
type UpdateStepRequest struct {
	Title               *string `json:"title,omitempty"                 validate:"omitempty,min=1"`
	Description         *string `json:"description,omitempty"`
	Assignee            *string `json:"assignee,omitempty"              validate:"omitempty,min=1"`
	TimeRequiredMinutes *int    `json:"time_required_minutes,omitempty" validate:"omitempty,min=0"`
	Tools               *string `json:"tools,omitempty"`
	CostYen             *int    `json:"cost_yen,omitempty"              validate:"omitempty,min=0"`
}

// ReorderStepsRequest represents the request body for moving a step.
type ReorderStepsRequest struct {
	From *int `json:"from" validate:"required"`
	To   *int `json:"to"   validate:"required"`
}

// ImproveRequest represents the request body for an improvement request.
type ImproveRequest struct {
	Instruction string `json:"instruction" validate:"max=2000"`
}

// ComparisonRequest represents the request body for toggling the comparison view.
type ComparisonRequest struct {
	Show *bool `json:"show" validate:"required"`
}

// VersionsResponse lists stored versions.
type VersionsResponse struct {
	Versions []*models.WorkflowVersion `json:"versions"`
	Total    int                       `json:"total"`
}

func (r CreateStepRequest) toInput() workflow.StepInput {
	return workflow.StepInput{
		Title:               r.Title,
		Description:         r.Description,
		Assignee:            r.Assignee,
		TimeRequiredMinutes: r.TimeRequiredMinutes,
		Tools:               r.Tools,
		CostYen:             r.CostYen,
	}
}

func (r UpdateStepRequest) toPatch() workflow.StepPatch {
	return workflow.StepPatch{
		Title:               r.Title,
		Description:         r.Description,
		Assignee:            r.Assignee,
		TimeRequiredMinutes: r.TimeRequiredMinutes,
		Tools:               r.Tools,
		CostYen:             r.CostYen,
	}
}
