// Package events defines event types and structures for improvement lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every improvement lifecycle event.
const Topic = "kaizen.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ImprovementRequestedEvent EventType = "improvement.requested"
	ImprovementCompletedEvent EventType = "improvement.completed"
	ImprovementFailedEvent    EventType = "improvement.failed"
	ImprovementRevertedEvent  EventType = "improvement.reverted"
	VersionsSavedEvent        EventType = "versions.saved"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent fills the common fields of an event.
func NewBaseEvent(eventType EventType, sessionID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
	}
}

type ImprovementRequested struct {
	BaseEvent

	Instruction   string `json:"instruction,omitempty"`
	Regenerate    bool   `json:"regenerate"`
	BaseStepCount int    `json:"base_step_count"`
}

func (e ImprovementRequested) GetType() EventType {
	return ImprovementRequestedEvent
}

type ImprovementCompleted struct {
	BaseEvent

	StepCount       int           `json:"step_count"`
	TimeSavedPct    int           `json:"time_saved_pct"`
	CostSavedPct    int           `json:"cost_saved_pct"`
	AutomationRatio float64       `json:"automation_ratio"`
	Duration        time.Duration `json:"duration"`
}

func (e ImprovementCompleted) GetType() EventType {
	return ImprovementCompletedEvent
}

type ImprovementFailed struct {
	BaseEvent

	Error    string        `json:"error"`
	Reason   string        `json:"reason"`
	Duration time.Duration `json:"duration"`
}

func (e ImprovementFailed) GetType() EventType {
	return ImprovementFailedEvent
}

type ImprovementReverted struct {
	BaseEvent

	RestoredPrevious bool `json:"restored_previous"`
}

func (e ImprovementReverted) GetType() EventType {
	return ImprovementRevertedEvent
}

type VersionsSaved struct {
	BaseEvent

	OriginalID string `json:"original_id"`
	ImprovedID string `json:"improved_id,omitempty"`
}

func (e VersionsSaved) GetType() EventType {
	return VersionsSavedEvent
}
