// Package events defines the run and item lifecycle notifications published by batch runs.
package events

import (
	"time"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every batch event; consumers filter on the event type metadata.
const Topic = "jana.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunStartedEvent    EventType = "run.started"
	ItemCompletedEvent EventType = "item.completed"
	RunFinishedEvent   EventType = "run.finished"
	RunAbortedEvent    EventType = "run.aborted"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func newBase(eventType EventType, runID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
	}
}

// RunStarted is published once a run has validated its options and loaded the destination snapshot.
type RunStarted struct {
	BaseEvent

	Total    int    `json:"total"`
	DryRun   bool   `json:"dry_run"`
	Mutation string `json:"mutation"`
}

func NewRunStarted(runID string, total int, dryRun bool, mutation string) *RunStarted {
	return &RunStarted{
		BaseEvent: newBase(RunStartedEvent, runID),
		Total:     total,
		DryRun:    dryRun,
		Mutation:  mutation,
	}
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

// ItemCompleted carries the terminal outcome of one item.
type ItemCompleted struct {
	BaseEvent

	Outcome models.ItemOutcome `json:"outcome"`
}

func NewItemCompleted(runID string, outcome models.ItemOutcome) *ItemCompleted {
	return &ItemCompleted{
		BaseEvent: newBase(ItemCompletedEvent, runID),
		Outcome:   outcome,
	}
}

func (e ItemCompleted) GetType() EventType {
	return ItemCompletedEvent
}

type RunFinished struct {
	BaseEvent

	Stats      models.BatchStats `json:"stats"`
	DurationMs int64             `json:"duration_ms"`
}

func NewRunFinished(runID string, stats models.BatchStats, duration time.Duration) *RunFinished {
	return &RunFinished{
		BaseEvent:  newBase(RunFinishedEvent, runID),
		Stats:      stats,
		DurationMs: duration.Milliseconds(),
	}
}

func (e RunFinished) GetType() EventType {
	return RunFinishedEvent
}

// RunAborted is the abort signal for the backup and rollback side: it carries the rate that
// triggered the abort and the complete outcome list.
type RunAborted struct {
	BaseEvent

	Reason      string               `json:"reason"`
	SuccessRate float64              `json:"success_rate"`
	Threshold   float64              `json:"threshold"`
	Stats       models.BatchStats    `json:"stats"`
	Outcomes    []models.ItemOutcome `json:"outcomes"`
}

func NewRunAborted(runID, reason string, rate, threshold float64, stats models.BatchStats, outcomes []models.ItemOutcome) *RunAborted {
	return &RunAborted{
		BaseEvent:   newBase(RunAbortedEvent, runID),
		Reason:      reason,
		SuccessRate: rate,
		Threshold:   threshold,
		Stats:       stats,
		Outcomes:    outcomes,
	}
}

func (e RunAborted) GetType() EventType {
	return RunAbortedEvent
}
