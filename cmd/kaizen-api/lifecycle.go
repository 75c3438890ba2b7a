package main

import (
	"context"
	"log/slog"

	"github.com/kaizen-works/kaizen/pkg/eventbus"
	"github.com/kaizen-works/kaizen/pkg/events"
)

// subscribeLifecycleLog logs every improvement lifecycle event seen on the bus.
func subscribeLifecycleLog(ctx context.Context, bus eventbus.EventSubscriber, logger *slog.Logger) error {
	logger = logger.With("component", "lifecycle")

	handlers := map[events.EventType]eventbus.EventHandler{
		events.ImprovementRequestedEvent: func(ctx context.Context, event any) error {
			e := event.(*events.ImprovementRequested)
			logger.InfoContext(ctx, "Improvement requested", "session_id", e.SessionID, "regenerate", e.Regenerate, "steps", e.BaseStepCount)

			return nil
		},
		events.ImprovementCompletedEvent: func(ctx context.Context, event any) error {
			e := event.(*events.ImprovementCompleted)
			logger.InfoContext(ctx, "Improvement completed",
				"session_id", e.SessionID,
				"steps", e.StepCount,
				"time_saved_pct", e.TimeSavedPct,
				"cost_saved_pct", e.CostSavedPct,
				"duration", e.Duration,
			)

			return nil
		},
		events.ImprovementFailedEvent: func(ctx context.Context, event any) error {
			e := event.(*events.ImprovementFailed)
			logger.WarnContext(ctx, "Improvement failed", "session_id", e.SessionID, "reason", e.Reason, "error", e.Error)

			return nil
		},
		events.ImprovementRevertedEvent: func(ctx context.Context, event any) error {
			e := event.(*events.ImprovementReverted)
			logger.InfoContext(ctx, "Improvement reverted", "session_id", e.SessionID, "restored_previous", e.RestoredPrevious)

			return nil
		},
		events.VersionsSavedEvent: func(ctx context.Context, event any) error {
			e := event.(*events.VersionsSaved)
			logger.InfoContext(ctx, "Versions saved", "session_id", e.SessionID, "original_id", e.OriginalID, "improved_id", e.ImprovedID)

			return nil
		},
	}

	for eventType, handler := range handlers {
		err := bus.Handle(eventType, handler)
		if err != nil {
			return err
		}
	}

	return bus.Subscribe(ctx)
}
