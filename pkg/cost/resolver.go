// Package cost derives step costs from an actor roster.
package cost

import (
	"math"

	"github.com/google/uuid"
	"github.com/kaizen-works/kaizen/pkg/models"
	"github.com/kaizen-works/kaizen/pkg/parser"
)

// AutomationToolsLabel replaces an empty tools field on automated steps.
const AutomationToolsLabel = "自動化ツール"

// Resolution is the outcome of resolving an assignee against the roster.
// CostYen is nil when neither the assignee nor the fallback is known.
type Resolution struct {
	Assignee string
	CostYen  *int
}

// Resolve derives the cost of minutes of work by assignee.
//
// The automated sentinel is always free. An assignee missing from the roster is
// replaced by fallbackAssignee when that one is known; otherwise the name is kept
// and the cost is left unknown.
func Resolve(assignee string, minutes int, roster []models.Actor, fallbackAssignee string) Resolution {
	if models.IsAutomatedAssignee(assignee) {
		return Resolution{Assignee: models.AutomatedAssignee, CostYen: models.Yen(0)}
	}

	if actor, ok := models.FindActor(roster, assignee); ok {
		return Resolution{Assignee: actor.Name, CostYen: models.Yen(For(actor, minutes))}
	}

	if fallbackAssignee != "" {
		if actor, ok := models.FindActor(roster, fallbackAssignee); ok {
			return Resolution{Assignee: actor.Name, CostYen: models.Yen(For(actor, minutes))}
		}
	}

	return Resolution{Assignee: assignee}
}

// For returns the cost in yen of minutes of work by actor, rounded half up.
func For(actor models.Actor, minutes int) int {
	return int(math.Floor(float64(actor.HourlyRate)*float64(minutes)/60 + 0.5))
}

// StepFromParsed builds a step at index from a parsed block, resolving its cost.
func StepFromParsed(parsed parser.ParsedStep, index int, roster []models.Actor, fallbackAssignee string) models.Step {
	resolution := Resolve(parsed.Assignee, parsed.TimeRequiredMinutes, roster, fallbackAssignee)

	tools := parsed.ToolsText
	if tools == "" && models.IsAutomatedAssignee(resolution.Assignee) {
		tools = AutomationToolsLabel
	}

	return models.Step{
		ID:                  uuid.New().String(),
		Title:               parsed.Title,
		Description:         parsed.Description,
		Assignee:            resolution.Assignee,
		TimeRequiredMinutes: parsed.TimeRequiredMinutes,
		Position:            index,
		Tools:               tools,
		CostYen:             resolution.CostYen,
	}
}

// StepsFromParsed resolves every parsed step, taking the fallback assignee from
// the step at the same index of previous.
func StepsFromParsed(parsed []parser.ParsedStep, roster []models.Actor, previous []models.Step) []models.Step {
	steps := make([]models.Step, len(parsed))

	for i, p := range parsed {
		var fallbackAssignee string
		if i < len(previous) {
			fallbackAssignee = previous[i].Assignee
		}

		steps[i] = StepFromParsed(p, i, roster, fallbackAssignee)
	}

	return steps
}
