package persistence

import (
	"sort"

	"github.com/kaizen-works/kaizen/pkg/models"
)

// ValidateForSave rejects versions that have no durable id.
func ValidateForSave(versions []*models.WorkflowVersion) error {
	for _, version := range versions {
		if version == nil {
			return NewVersionError("Save", "", ErrInvalidVersion)
		}

		if version.ID == "" || version.IsDraft() {
			return NewVersionError("Save", version.ID, ErrInvalidVersion)
		}

		if version.IsImproved && version.OriginalID == "" {
			return NewVersionError("Save", version.ID, ErrInvalidVersion)
		}
	}

	return nil
}

// FindVersion returns the version with the given id.
func FindVersion(versions []*models.WorkflowVersion, id string) (*models.WorkflowVersion, error) {
	for _, version := range versions {
		if version.ID == id {
			return version, nil
		}
	}

	return nil, NewVersionError("Find", id, ErrVersionNotFound)
}

// ImprovedFor returns the most recently updated improved version paired with
// originalID, or nil when there is none.
func ImprovedFor(versions []*models.WorkflowVersion, originalID string) *models.WorkflowVersion {
	var latest *models.WorkflowVersion

	for _, version := range versions {
		if !version.IsImproved || version.OriginalID != originalID {
			continue
		}

		if latest == nil || version.UpdatedAt.After(latest.UpdatedAt) {
			latest = version
		}
	}

	return latest
}

// SortVersions orders versions by last update, newest first.
func SortVersions(versions []*models.WorkflowVersion) {
	sort.SliceStable(versions, func(i, j int) bool {
		if versions[i].UpdatedAt.Equal(versions[j].UpdatedAt) {
			return versions[i].ID < versions[j].ID
		}

		return versions[i].UpdatedAt.After(versions[j].UpdatedAt)
	})
}
