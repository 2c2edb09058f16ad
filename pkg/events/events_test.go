package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemCompleted_JSON(t *testing.T) {
	t.Parallel()

	original := NewItemCompleted("run-1", models.ItemOutcome{
		ItemID:   "wf-1",
		Name:     "Daily Sync",
		Status:   models.OutcomeFailed,
		Reason:   "retries exhausted",
		Error:    &models.ErrorInfo{Kind: "server_error", Message: "boom", StatusCode: 500},
		Attempts: 3,
	})

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"item.completed"`)
	assert.Contains(t, string(data), `"run_id":"run-1"`)
	assert.Contains(t, string(data), `"status":"failed"`)

	var decoded ItemCompleted
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original.Outcome, decoded.Outcome)
	assert.Equal(t, ItemCompletedEvent, decoded.GetType())
}

func TestConstructors(t *testing.T) {
	t.Parallel()

	stats := models.BatchStats{Total: 2, Succeeded: 1, Failed: 1}

	tests := []struct {
		name  string
		event interface{ GetType() EventType }
		want  EventType
	}{
		{name: "started", event: NewRunStarted("r", 2, true, "transfer"), want: RunStartedEvent},
		{name: "finished", event: NewRunFinished("r", stats, time.Second), want: RunFinishedEvent},
		{name: "aborted", event: NewRunAborted("r", "failure rate below threshold", 0.4, 0.5, stats, nil), want: RunAbortedEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.event.GetType())

			data, err := json.Marshal(tt.event)
			require.NoError(t, err)

			var base BaseEvent
			require.NoError(t, json.Unmarshal(data, &base))
			assert.Equal(t, tt.want, base.Type)
			assert.Equal(t, "r", base.RunID)
			assert.NotEmpty(t, base.ID)
		})
	}
}
