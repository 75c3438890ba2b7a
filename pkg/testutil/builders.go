// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/kaizen-works/kaizen/pkg/models"
)

// CreateTestStep creates a Step with default values that can be overridden.
func CreateTestStep(overrides ...func(*models.Step)) models.Step {
	step := models.Step{
		ID:                  uuid.New().String(),
		Title:               "受領",
		Description:         "請求書を受け取る",
		Assignee:            "田中",
		TimeRequiredMinutes: 30,
		CostYen:             models.Yen(1000),
	}

	for _, override := range overrides {
		override(&step)
	}

	return step
}

// WithAutomation assigns the step to the automated actor.
func WithAutomation() func(*models.Step) {
	return func(s *models.Step) {
		s.Assignee = models.AutomatedAssignee
		s.Tools = "自動化ツール"
		s.CostYen = models.Yen(0)
	}
}

// CreateTestVersion creates a saved original WorkflowVersion with one step.
func CreateTestVersion(overrides ...func(*models.WorkflowVersion)) *models.WorkflowVersion {
	now := time.Now().UTC().Truncate(time.Microsecond)

	version := &models.WorkflowVersion{
		ID:          uuid.New().String(),
		Name:        "請求書処理",
		Description: "月次の請求書処理",
		Steps:       []models.Step{CreateTestStep()},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for _, override := range overrides {
		override(version)
	}

	for i := range version.Steps {
		version.Steps[i].Position = i
	}

	return version
}

// WithSteps replaces the steps of the version.
func WithSteps(steps ...models.Step) func(*models.WorkflowVersion) {
	return func(v *models.WorkflowVersion) {
		v.Steps = steps
	}
}

// WithImprovedOf links the version to original as its improved counterpart.
func WithImprovedOf(original *models.WorkflowVersion) func(*models.WorkflowVersion) {
	return func(v *models.WorkflowVersion) {
		v.Name = original.Name
		v.Description = original.Description
		v.IsImproved = true
		v.OriginalID = original.ID
	}
}

// WithUpdatedAt sets both timestamps of the version.
func WithUpdatedAt(at time.Time) func(*models.WorkflowVersion) {
	return func(v *models.WorkflowVersion) {
		v.CreatedAt = at
		v.UpdatedAt = at
	}
}
