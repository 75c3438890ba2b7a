// Package redis provides Redis persistence for workflow versions.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kaizen-works/kaizen/pkg/models"
	"github.com/kaizen-works/kaizen/pkg/persistence"
	redis "github.com/redis/go-redis/v9"
)

// DefaultKey is the hash holding every version, keyed by version id.
const DefaultKey = "kaizen:workflow_versions"

// Persistence stores versions as JSON fields of a single Redis hash.
type Persistence struct {
	client redis.UniversalClient
	logger *slog.Logger
	key    string
}

var _ persistence.Persistence = (*Persistence)(nil)

// NewPersistence connects to the Redis server addressed by a redis:// URL.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	p := NewPersistenceWithClient(logger, redis.NewClient(opts), DefaultKey)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.HealthCheck(pingCtx)
	if err != nil {
		_ = p.client.Close()

		return nil, err
	}

	return p, nil
}

// NewPersistenceWithClient wraps an existing client.
func NewPersistenceWithClient(logger *slog.Logger, client redis.UniversalClient, key string) *Persistence {
	return &Persistence{
		client: client,
		logger: logger,
		key:    key,
	}
}

// Close closes the client connection.
func (p *Persistence) Close(_ context.Context) error {
	err := p.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis connection: %w", err)
	}

	return nil
}

// HealthCheck pings the server.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// LoadVersions returns every stored version, newest first.
func (p *Persistence) LoadVersions(ctx context.Context) ([]*models.WorkflowVersion, error) {
	fields, err := p.client.HGetAll(ctx, p.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow versions: %w", err)
	}

	versions := make([]*models.WorkflowVersion, 0, len(fields))

	for id, body := range fields {
		var version models.WorkflowVersion

		err := json.Unmarshal([]byte(body), &version)
		if err != nil {
			p.logger.ErrorContext(ctx, "Skipping unreadable workflow version", "version_id", id, "error", err)

			continue
		}

		versions = append(versions, &version)
	}

	persistence.SortVersions(versions)

	return versions, nil
}

// SaveVersions writes every version in one MULTI/EXEC transaction.
func (p *Persistence) SaveVersions(ctx context.Context, versions []*models.WorkflowVersion) error {
	err := persistence.ValidateForSave(versions)
	if err != nil {
		return err
	}

	values := make([]any, 0, len(versions)*2)

	for _, version := range versions {
		body, err := json.Marshal(version)
		if err != nil {
			return fmt.Errorf("failed to marshal version %s: %w", version.ID, err)
		}

		values = append(values, version.ID, string(body))
	}

	if len(values) == 0 {
		return nil
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, p.key, values...)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save workflow versions: %w", err)
	}

	return nil
}
