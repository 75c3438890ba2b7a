package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kaizen-works/kaizen/pkg/models"
	"github.com/kaizen-works/kaizen/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func version(id string, updatedAt time.Time) *models.WorkflowVersion {
	return &models.WorkflowVersion{
		ID:        id,
		Name:      "請求書処理",
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
		Steps: []models.Step{
			{ID: "s1", Title: "受領", Assignee: "田中", TimeRequiredMinutes: 30, Position: 0, CostYen: models.Yen(1000)},
		},
	}
}

func TestPersistence_SaveAndLoadVersions(t *testing.T) {
	ctx := context.Background()
	p := NewPersistence("file://" + t.TempDir())

	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	original := version("orig-1", base)
	improved := version("impr-1", base.Add(time.Hour))
	improved.IsImproved = true
	improved.OriginalID = original.ID

	require.NoError(t, p.SaveVersions(ctx, []*models.WorkflowVersion{original, improved}))

	versions, err := p.LoadVersions(ctx)
	require.NoError(t, err)
	require.Len(t, versions, 2)

	assert.Equal(t, "impr-1", versions[0].ID, "newest first")
	assert.Equal(t, "orig-1", versions[1].ID)
	assert.Equal(t, original.Steps, versions[1].Steps)
	assert.Equal(t, "orig-1", versions[0].OriginalID)
}

func TestPersistence_SaveVersions_Upserts(t *testing.T) {
	ctx := context.Background()
	p := NewPersistence(t.TempDir())

	v := version("orig-1", time.Now().UTC())
	require.NoError(t, p.SaveVersions(ctx, []*models.WorkflowVersion{v}))

	v.Name = "経費精算"
	require.NoError(t, p.SaveVersions(ctx, []*models.WorkflowVersion{v}))

	versions, err := p.LoadVersions(ctx)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "経費精算", versions[0].Name)
}

func TestPersistence_SaveVersions_RejectsDrafts(t *testing.T) {
	ctx := context.Background()
	p := NewPersistence(t.TempDir())

	tests := []struct {
		name    string
		version *models.WorkflowVersion
	}{
		{name: "draft id", version: &models.WorkflowVersion{ID: models.NewVersionID}},
		{name: "empty id", version: &models.WorkflowVersion{}},
		{name: "improved without original", version: &models.WorkflowVersion{ID: "x", IsImproved: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.SaveVersions(ctx, []*models.WorkflowVersion{tt.version})
			require.Error(t, err)
			assert.True(t, persistence.IsInvalidVersion(err))
		})
	}
}

func TestPersistence_LoadVersions_Empty(t *testing.T) {
	p := NewPersistence(t.TempDir())

	versions, err := p.LoadVersions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestVersionRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	repo := NewVersionRepository(root)

	_, err := repo.GetByID(ctx, "missing")
	assert.True(t, persistence.IsVersionNotFound(err))

	require.NoError(t, repo.SaveAll(ctx, []*models.WorkflowVersion{version("orig-1", time.Now().UTC())}))

	got, err := repo.GetByID(ctx, "orig-1")
	require.NoError(t, err)
	assert.Equal(t, "請求書処理", got.Name)

	leftovers, err := filepath.Glob(filepath.Join(root, versionsDir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestPersistence_HealthCheck(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, NewPersistence(t.TempDir()).HealthCheck(ctx))
	assert.ErrorIs(t, NewPersistence(filepath.Join(t.TempDir(), "missing")).HealthCheck(ctx), os.ErrNotExist)
}
