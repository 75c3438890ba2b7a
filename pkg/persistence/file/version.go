package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/kaizen-works/kaizen/pkg/models"
	"github.com/kaizen-works/kaizen/pkg/persistence"
)

const versionsDir = "versions"

// VersionRepository handles version-related file operations.
type VersionRepository struct {
	mu   sync.RWMutex
	root string // File system root for storing versions
}

// NewVersionRepository creates a new version repository.
func NewVersionRepository(root string) *VersionRepository {
	return &VersionRepository{root: root}
}

// GetAll loads every version file under the versions directory.
func (vr *VersionRepository) GetAll(ctx context.Context) ([]*models.WorkflowVersion, error) {
	vr.mu.RLock()
	defer vr.mu.RUnlock()

	root := os.DirFS(path.Join(vr.root, versionsDir))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list version files: %w", err)
	}

	versions := make([]*models.WorkflowVersion, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		versionID := file[:len(file)-5] // Remove .json extension

		version, err := vr.read(versionID)
		if err != nil {
			return nil, err
		}

		if version != nil {
			versions = append(versions, version)
		}
	}

	persistence.SortVersions(versions)

	return versions, nil
}

// GetByID retrieves a version by its ID from the file system.
func (vr *VersionRepository) GetByID(_ context.Context, versionID string) (*models.WorkflowVersion, error) {
	vr.mu.RLock()
	defer vr.mu.RUnlock()

	version, err := vr.read(versionID)
	if err != nil {
		return nil, err
	}

	if version == nil {
		return nil, persistence.NewVersionError("GetByID", versionID, persistence.ErrVersionNotFound)
	}

	return version, nil
}

// SaveAll writes every version. Each file is replaced atomically.
func (vr *VersionRepository) SaveAll(_ context.Context, versions []*models.WorkflowVersion) error {
	err := persistence.ValidateForSave(versions)
	if err != nil {
		return err
	}

	vr.mu.Lock()
	defer vr.mu.Unlock()

	dir := path.Join(vr.root, versionsDir)

	err = os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create versions directory: %w", err)
	}

	for _, version := range versions {
		err := vr.write(dir, version)
		if err != nil {
			return err
		}
	}

	return nil
}

func (vr *VersionRepository) read(versionID string) (*models.WorkflowVersion, error) {
	filePath := filepath.Clean(path.Join(vr.root, versionsDir, versionID+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch version %s: %w", versionID, err)
	}

	var version models.WorkflowVersion

	err = json.Unmarshal(body, &version)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal version %s: %w", versionID, err)
	}

	return &version, nil
}

func (vr *VersionRepository) write(dir string, version *models.WorkflowVersion) error {
	data, err := json.MarshalIndent(version, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal version %s: %w", version.ID, err)
	}

	tmp, err := os.CreateTemp(dir, version.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for version %s: %w", version.ID, err)
	}

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write version %s: %w", version.ID, err)
	}

	err = os.Rename(tmp.Name(), path.Join(dir, version.ID+".json"))
	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to store version %s: %w", version.ID, err)
	}

	return nil
}
