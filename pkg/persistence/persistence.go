// Package persistence provides the storage abstraction for workflow versions.
package persistence

import (
	"context"

	"github.com/kaizen-works/kaizen/pkg/models"
)

// Persistence stores workflow versions. SaveVersions upserts by version id.
type Persistence interface {
	LoadVersions(ctx context.Context) ([]*models.WorkflowVersion, error)
	SaveVersions(ctx context.Context, versions []*models.WorkflowVersion) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
