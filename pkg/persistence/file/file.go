// Package file provides file-based persistence for workflow versions.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/kaizen-works/kaizen/pkg/models"
	"github.com/kaizen-works/kaizen/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root        string
	versionRepo *VersionRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:        cleanRoot,
		versionRepo: NewVersionRepository(cleanRoot),
	}
}

var _ persistence.Persistence = (*Persistence)(nil)

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// LoadVersions returns every stored version, newest first.
func (fp *Persistence) LoadVersions(ctx context.Context) ([]*models.WorkflowVersion, error) {
	return fp.versionRepo.GetAll(ctx)
}

// SaveVersions writes the versions, replacing any stored under the same id.
func (fp *Persistence) SaveVersions(ctx context.Context, versions []*models.WorkflowVersion) error {
	return fp.versionRepo.SaveAll(ctx, versions)
}
