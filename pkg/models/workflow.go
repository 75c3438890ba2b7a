// Package models defines the core domain models for workflow improvement and versioning
package models

import "time"

// WorkflowVersion is one persisted lineage of a business workflow.
// An improved version links back to its original through OriginalID; the pairing is
// 1:1 and never deeper.
type WorkflowVersion struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"                  validate:"required"`
	Description string     `json:"description"`
	Steps       []Step     `json:"steps"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	IsImproved  bool       `json:"is_improved"`
	OriginalID  string     `json:"original_id,omitempty"`
	IsCompleted bool       `json:"is_completed,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewVersionID is the reserved identifier of a draft that has never been saved.
const NewVersionID = "new"

// IsDraft reports whether the version has not been assigned a durable id yet.
func (v *WorkflowVersion) IsDraft() bool {
	return v.ID == "" || v.ID == NewVersionID
}

// Clone returns a deep copy of the version, including its steps.
func (v *WorkflowVersion) Clone() *WorkflowVersion {
	if v == nil {
		return nil
	}

	clone := *v
	clone.Steps = CloneSteps(v.Steps)

	if v.CompletedAt != nil {
		completedAt := *v.CompletedAt
		clone.CompletedAt = &completedAt
	}

	return &clone
}
