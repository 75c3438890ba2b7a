package models

import "strings"

// AutomatedAssignee is the reserved assignee of a step that needs no human actor.
const AutomatedAssignee = "自動化"

// automatedAliases are accepted spellings of the automated sentinel.
var automatedAliases = []string{AutomatedAssignee, "automated"}

// Step is a single unit of work inside a workflow.
type Step struct {
	ID                  string `json:"id"`
	Title               string `json:"title"                 validate:"required"`
	Description         string `json:"description"`
	Assignee            string `json:"assignee"              validate:"required"`
	TimeRequiredMinutes int    `json:"time_required_minutes" validate:"min=0"`
	Position            int    `json:"position"`
	Tools               string `json:"tools,omitempty"`
	CostYen             *int   `json:"cost_yen,omitempty"`
}

// IsAutomated reports whether the step is performed without a human actor.
func (s Step) IsAutomated() bool {
	return IsAutomatedAssignee(s.Assignee)
}

// Cost returns the step cost, treating an unknown cost as zero.
func (s Step) Cost() int {
	if s.CostYen == nil {
		return 0
	}

	return *s.CostYen
}

// IsAutomatedAssignee reports whether name is the automated sentinel.
func IsAutomatedAssignee(name string) bool {
	normalized := strings.ToLower(strings.TrimSpace(name))

	for _, alias := range automatedAliases {
		if normalized == alias {
			return true
		}
	}

	return false
}

// Yen returns a pointer to the given amount, for optional cost fields.
func Yen(amount int) *int {
	return &amount
}

// CloneSteps returns a deep copy of a step sequence.
func CloneSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}

	clone := make([]Step, len(steps))
	for i, step := range steps {
		clone[i] = step
		if step.CostYen != nil {
			clone[i].CostYen = Yen(*step.CostYen)
		}
	}

	return clone
}
