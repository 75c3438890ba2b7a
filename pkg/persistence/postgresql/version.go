package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kaizen-works/kaizen/pkg/models"
	"github.com/kaizen-works/kaizen/pkg/persistence"
)

// VersionRepository handles version-related database operations.
type VersionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewVersionRepository creates a new version repository.
func NewVersionRepository(db *sql.DB, logger *slog.Logger) *VersionRepository {
	return &VersionRepository{db: db, logger: logger}
}

type rowScanner interface {
	Scan(dest ...any) error
}

const selectVersions = `
	SELECT
		id
	  , name
	  , description
	  , steps
	  , is_improved
	  , original_id
	  , is_completed
	  , completed_at
	  , created_at
	  , updated_at
	FROM workflow_versions
`

// GetAll returns all versions from the database, newest first.
func (r *VersionRepository) GetAll(ctx context.Context) ([]*models.WorkflowVersion, error) {
	rows, err := r.db.QueryContext(ctx, selectVersions+" ORDER BY updated_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow versions: %w", err)
	}

	defer func(ctx context.Context, r *VersionRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	versions := make([]*models.WorkflowVersion, 0)

	for rows.Next() {
		version, err := r.scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow version: %w", err)
		}

		versions = append(versions, version)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflow versions: %w", err)
	}

	return versions, nil
}

// GetByID returns a single version.
func (r *VersionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowVersion, error) {
	row := r.db.QueryRowContext(ctx, selectVersions+" WHERE id = $1", id)

	version, err := r.scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewVersionError("GetByID", id, persistence.ErrVersionNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow version: %w", err)
	}

	return version, nil
}

// SaveAll upserts every version inside a single transaction.
func (r *VersionRepository) SaveAll(ctx context.Context, versions []*models.WorkflowVersion) error {
	err := persistence.ValidateForSave(versions)
	if err != nil {
		return err
	}

	transaction, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, version := range versions {
		err := r.upsert(ctx, transaction, version)
		if err != nil {
			_ = transaction.Rollback()

			return err
		}
	}

	err = transaction.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit workflow versions: %w", err)
	}

	return nil
}

func (r *VersionRepository) upsert(ctx context.Context, tx *sql.Tx, version *models.WorkflowVersion) error {
	steps := version.Steps
	if steps == nil {
		steps = []models.Step{}
	}

	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps of version %s: %w", version.ID, err)
	}

	var originalID sql.NullString
	if version.OriginalID != "" {
		originalID = sql.NullString{String: version.OriginalID, Valid: true}
	}

	query := `
		INSERT INTO workflow_versions (
			id, name, description, steps, is_improved, original_id,
			is_completed, completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			steps = EXCLUDED.steps,
			is_improved = EXCLUDED.is_improved,
			original_id = EXCLUDED.original_id,
			is_completed = EXCLUDED.is_completed,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, query,
		version.ID,
		version.Name,
		version.Description,
		stepsJSON,
		version.IsImproved,
		originalID,
		version.IsCompleted,
		version.CompletedAt,
		version.CreatedAt,
		version.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow version %s: %w", version.ID, err)
	}

	return nil
}

func (r *VersionRepository) scanVersion(row rowScanner) (*models.WorkflowVersion, error) {
	var (
		version     models.WorkflowVersion
		stepsJSON   []byte
		originalID  sql.NullString
		completedAt sql.NullTime
	)

	err := row.Scan(
		&version.ID,
		&version.Name,
		&version.Description,
		&stepsJSON,
		&version.IsImproved,
		&originalID,
		&version.IsCompleted,
		&completedAt,
		&version.CreatedAt,
		&version.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(stepsJSON, &version.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps of version %s: %w", version.ID, err)
	}

	version.OriginalID = originalID.String
	version.CreatedAt = version.CreatedAt.UTC()
	version.UpdatedAt = version.UpdatedAt.UTC()

	if completedAt.Valid {
		t := completedAt.Time.UTC()
		version.CompletedAt = &t
	}

	return &version, nil
}
