package cmd

import (
	"log/slog"

	"github.com/kaizen-works/kaizen/pkg/improvement"
	"github.com/kaizen-works/kaizen/pkg/roster"
)

// NewRoster loads the actor roster from path, or starts with an empty one.
func NewRoster(path string, logger *slog.Logger) (improvement.ActorRosterProvider, error) {
	if path == "" {
		logger.Warn("No roster file configured, step costs are unknown unless given")

		return roster.NewStatic(), nil
	}

	return roster.NewFile(path)
}
