package redis_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/kaizen-works/kaizen/pkg/models"
	kredis "github.com/kaizen-works/kaizen/pkg/persistence/redis"
	"github.com/kaizen-works/kaizen/pkg/testutil"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) (*kredis.Persistence, context.Context) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	t.Cleanup(cancel)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := kredis.NewPersistence(ctx, logger, fmt.Sprintf("redis://%s/0", endpoint))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = p.Close(context.Background())
	})

	return p, ctx
}

func TestPersistence_SaveAndLoadVersions(t *testing.T) {
	p, ctx := setupRedis(t)

	now := time.Now().UTC()
	original := testutil.CreateTestVersion(testutil.WithUpdatedAt(now))
	improved := testutil.CreateTestVersion(
		testutil.WithImprovedOf(original),
		testutil.WithSteps(testutil.CreateTestStep(testutil.WithAutomation())),
		testutil.WithUpdatedAt(now.Add(time.Minute)),
	)

	require.NoError(t, p.SaveVersions(ctx, []*models.WorkflowVersion{original, improved}))

	original.Name = "経費精算"
	require.NoError(t, p.SaveVersions(ctx, []*models.WorkflowVersion{original}))

	versions, err := p.LoadVersions(ctx)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, improved.ID, versions[0].ID)
	assert.Equal(t, "経費精算", versions[1].Name)
	assert.Equal(t, original.Steps, versions[1].Steps)
}

func TestNewPersistenceWithClient_HealthCheckFails(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	p := kredis.NewPersistenceWithClient(slog.Default(), client, kredis.DefaultKey)

	defer func() { _ = p.Close(context.Background()) }()

	assert.Error(t, p.HealthCheck(context.Background()))
}
