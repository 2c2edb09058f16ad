package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/channels/gochannel"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/eventbus"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/events"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	t.Parallel()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	received := make(chan *events.ItemCompleted, 1)

	require.NoError(t, bus.Handle(events.ItemCompletedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.ItemCompleted)

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, bus.Subscribe(ctx))

	outcome := models.ItemOutcome{ItemID: "wf-1", Name: "Sync", Status: models.OutcomeTransferred, Attempts: 1}

	// Unhandled types are acknowledged and dropped.
	require.NoError(t, bus.Publish(ctx, "run-1", events.NewRunStarted("run-1", 1, false, "transfer")))
	require.NoError(t, bus.Publish(ctx, "run-1", events.NewItemCompleted("run-1", outcome)))

	select {
	case event := <-received:
		assert.Equal(t, "run-1", event.RunID)
		assert.Equal(t, outcome, event.Outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("item.completed was not delivered")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	t.Parallel()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
