package batch_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/batch"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/events"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/mocks"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/remote"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// recorder replaces real waiting and keeps the requested delays.
type recorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()

	return ctx.Err()
}

func (r *recorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]time.Duration(nil), r.delays...)
}

func newClient(t *testing.T, platform *testutil.Platform) *remote.Client {
	t.Helper()

	client, err := remote.NewClient(remote.Config{
		BaseURL:   platform.URL(),
		APIKey:    testutil.PlatformAPIKey,
		Timeout:   5 * time.Second,
		RateLimit: 10000,
		RateBurst: 1000,
	})
	require.NoError(t, err)

	return client
}

func newProcessor(t *testing.T, service remote.Service, opts ...batch.Option) (*batch.Processor, *recorder) {
	t.Helper()

	sleeps := &recorder{}

	processor, err := batch.NewProcessor(service, append([]batch.Option{batch.WithSleeper(sleeps.sleep)}, opts...)...)
	require.NoError(t, err)

	return processor, sleeps
}

func sourceItems(n int) []models.Item {
	items := testutil.CreateTestItems("Flow", n)
	for idx := range items {
		items[idx].ID = "src-" + items[idx].Name
	}

	return items
}

func countStatus(outcomes []models.ItemOutcome, status models.OutcomeStatus) int {
	count := 0

	for _, outcome := range outcomes {
		if outcome.Status == status {
			count++
		}
	}

	return count
}

func TestRun_UniqueDuplicateAndInvalidItems(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	processor, _ := newProcessor(t, newClient(t, platform))

	items := sourceItems(85)

	for idx := range 10 {
		duplicate := items[idx*8].Clone()
		duplicate.ID = "dup-" + duplicate.Name
		items = append(items, duplicate)
	}

	for idx := range 5 {
		items = append(items, testutil.CreateTestItem(
			testutil.WithID("bad-"+string(rune('a'+idx))),
			testutil.WithName("Broken "+string(rune('a'+idx))),
			testutil.WithNodes(),
		))
	}

	opts := batch.DefaultRunOptions(batch.TransferMutation{})
	opts.ConcurrencyLimit = 5

	result, err := processor.Run(context.Background(), items, opts)
	require.NoError(t, err)

	assert.Equal(t, batch.StateCompleted, result.State)
	assert.Equal(t, batch.StateCompleted, processor.State())
	assert.Equal(t, 100, result.Stats.Total)
	assert.Equal(t, 85, result.Stats.Succeeded)
	assert.GreaterOrEqual(t, result.Stats.Skipped, 15)
	assert.Equal(t, 0, result.Stats.Failed)
	assert.Equal(t, 0, result.Stats.TotalRetries)

	require.Len(t, result.Outcomes, 100)
	assert.Equal(t, 10, countStatus(result.Outcomes, models.OutcomeSkippedDuplicate))
	assert.Equal(t, 5, countStatus(result.Outcomes, models.OutcomeSkippedInvalid))

	for idx, outcome := range result.Outcomes {
		assert.Equal(t, items[idx].Name, outcome.Name, "outcomes keep input order")
	}

	assert.Len(t, platform.Items(), 85)
	assert.Equal(t, 85, platform.Calls(http.MethodPost))

	for _, stored := range platform.Items() {
		assert.False(t, stored.Active)
	}
}

func TestRun_DuplicateOfDestinationItem(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	platform.Seed(testutil.CreateTestItem(testutil.WithName("Flow 1")))

	processor, _ := newProcessor(t, newClient(t, platform))

	result, err := processor.Run(context.Background(), sourceItems(3), batch.DefaultRunOptions(batch.TransferMutation{}))
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeTransferred, result.Outcomes[0].Status)
	assert.Equal(t, models.OutcomeSkippedDuplicate, result.Outcomes[1].Status)
	assert.Contains(t, result.Outcomes[1].Reason, "wf-1")
	assert.Zero(t, result.Outcomes[1].Attempts)
	assert.Equal(t, models.OutcomeTransferred, result.Outcomes[2].Status)
	assert.Equal(t, 1, platform.Calls(http.MethodGet), "snapshot listed once")
}

func TestRun_ConflictCountsAsTransferred(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	platform.Fail("Flow 1", testutil.Fault{Status: http.StatusConflict, Times: -1})

	processor, sleeps := newProcessor(t, newClient(t, platform))

	result, err := processor.Run(context.Background(), sourceItems(3), batch.DefaultRunOptions(batch.TransferMutation{}))
	require.NoError(t, err)

	outcome := result.Outcomes[1]
	assert.Equal(t, models.OutcomeTransferred, outcome.Status)
	assert.Equal(t, batch.ReasonConflict, outcome.Reason)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Nil(t, outcome.Error)
	assert.Equal(t, 3, result.Stats.Succeeded)
	assert.Equal(t, 0, result.Stats.TotalRetries)
	assert.Empty(t, sleeps.recorded())
}

func TestRun_AbortsBelowThreshold(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	for _, name := range []string{"Flow 0", "Flow 2", "Flow 4", "Flow 5", "Flow 7", "Flow 9"} {
		platform.Fail(name, testutil.Fault{Status: http.StatusInternalServerError, Times: -1})
	}

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	processor, sleeps := newProcessor(t, newClient(t, platform), batch.WithPublisher(bus))

	opts := batch.DefaultRunOptions(batch.TransferMutation{})
	opts.ConcurrencyLimit = 1
	opts.BatchSize = 5

	result, err := processor.Run(context.Background(), sourceItems(10), opts)
	require.Error(t, err)
	require.True(t, batch.IsAborted(err))

	var abortErr *batch.AbortError
	require.ErrorAs(t, err, &abortErr)
	assert.InDelta(t, 0.4, abortErr.SuccessRate, 1e-9)
	assert.InDelta(t, 0.5, abortErr.Threshold, 1e-9)
	assert.Equal(t, 5, abortErr.Completed)
	assert.Equal(t, 5, abortErr.Remaining)

	assert.Equal(t, batch.StateAborted, result.State)
	assert.Equal(t, batch.StateAborted, processor.State())
	assert.True(t, result.Aborted)
	assert.NotEmpty(t, result.AbortReason)

	assert.Equal(t, 10, result.Stats.Total)
	assert.Equal(t, 2, result.Stats.Succeeded)
	assert.Equal(t, 3, result.Stats.Failed)
	assert.Equal(t, 5, result.Stats.Skipped)
	assert.Equal(t, 6, result.Stats.TotalRetries)

	for _, outcome := range result.Outcomes[:5] {
		if outcome.Status == models.OutcomeFailed {
			assert.Equal(t, 3, outcome.Attempts)
			assert.Equal(t, "server_error", outcome.Error.Kind)
			assert.Equal(t, http.StatusInternalServerError, outcome.Error.StatusCode)
			assert.Contains(t, outcome.Reason, "retries exhausted")
		}
	}

	for _, outcome := range result.Outcomes[5:] {
		assert.Equal(t, models.OutcomeSkippedFiltered, outcome.Status)
		assert.Equal(t, batch.ReasonAborted, outcome.Reason)
		assert.Zero(t, outcome.Attempts)
	}

	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second,
		time.Second, 2 * time.Second,
		time.Second, 2 * time.Second,
	}, sleeps.recorded())

	var aborted *events.RunAborted

	completed := 0

	for _, call := range bus.Calls {
		switch event := call.Arguments.Get(2).(type) {
		case *events.RunAborted:
			aborted = event
		case *events.ItemCompleted:
			completed++
		case *events.RunFinished:
			t.Fatal("aborted run published run.finished")
		}
	}

	require.NotNil(t, aborted)
	assert.Equal(t, result.RunID, aborted.RunID)
	assert.Len(t, aborted.Outcomes, 10)
	assert.Equal(t, 10, completed)
}

func TestRun_NoAbortOnLastBatch(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	platform.Fail("Flow 0", testutil.Fault{Status: http.StatusBadRequest, Times: -1})
	platform.Fail("Flow 1", testutil.Fault{Status: http.StatusBadRequest, Times: -1})

	processor, _ := newProcessor(t, newClient(t, platform))

	opts := batch.DefaultRunOptions(batch.TransferMutation{})
	opts.BatchSize = 3

	result, err := processor.Run(context.Background(), sourceItems(3), opts)
	require.NoError(t, err)
	assert.Equal(t, batch.StateCompleted, result.State)
	assert.Equal(t, 2, result.Stats.Failed)
	assert.Equal(t, "fatal: fatal", result.Outcomes[0].Reason)
}

func TestRun_ZeroThresholdNeverAborts(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	for _, name := range []string{"Flow 0", "Flow 1", "Flow 2", "Flow 3"} {
		platform.Fail(name, testutil.Fault{Status: http.StatusForbidden, Times: -1})
	}

	processor, sleeps := newProcessor(t, newClient(t, platform))

	opts := batch.DefaultRunOptions(batch.TransferMutation{})
	opts.RollbackThreshold = 0
	opts.BatchSize = 1

	result, err := processor.Run(context.Background(), sourceItems(6), opts)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Stats.Failed)
	assert.Equal(t, 2, result.Stats.Succeeded)
	assert.Empty(t, sleeps.recorded(), "auth failures are not retried")

	for _, outcome := range result.Outcomes[:4] {
		assert.Equal(t, 1, outcome.Attempts)
		assert.Equal(t, "forbidden", outcome.Error.Kind)
	}
}

func TestRun_RetryHonoursRateLimitHint(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	platform.Fail("Flow 0", testutil.Fault{Status: http.StatusTooManyRequests, Times: 1, RetryAfter: "3"})
	platform.Fail("Flow 1", testutil.Fault{Status: http.StatusBadGateway, Times: 2})

	processor, sleeps := newProcessor(t, newClient(t, platform))

	opts := batch.DefaultRunOptions(batch.TransferMutation{})
	opts.ConcurrencyLimit = 1

	result, err := processor.Run(context.Background(), sourceItems(2), opts)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Outcomes[0].Attempts)
	assert.Equal(t, 3, result.Outcomes[1].Attempts)
	assert.Equal(t, 2, result.Stats.Succeeded)
	assert.Equal(t, 3, result.Stats.TotalRetries)
	assert.Equal(t, []time.Duration{3 * time.Second, time.Second, 2 * time.Second}, sleeps.recorded())
}

func TestRun_RetryHintIsCapped(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	platform.Fail("Flow 0", testutil.Fault{Status: http.StatusServiceUnavailable, Times: 1, RetryAfter: "86400"})

	processor, sleeps := newProcessor(t, newClient(t, platform))

	opts := batch.DefaultRunOptions(batch.TransferMutation{})
	opts.RetryPolicy.MaxHint = 10 * time.Second

	result, err := processor.Run(context.Background(), sourceItems(1), opts)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeTransferred, result.Outcomes[0].Status)
	assert.Equal(t, 2, result.Outcomes[0].Attempts)
	assert.Equal(t, []time.Duration{10 * time.Second}, sleeps.recorded())
}

func TestRun_PacingGrowsWithSlowMutates(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	for _, name := range []string{"Flow 0", "Flow 1", "Flow 2", "Flow 3"} {
		platform.Fail(name, testutil.Fault{Times: -1, Delay: 50 * time.Millisecond})
	}

	processor, sleeps := newProcessor(t, newClient(t, platform))

	opts := batch.DefaultRunOptions(batch.TransferMutation{})
	opts.ConcurrencyLimit = 1
	opts.Pacing = batch.PacingConfig{
		Enabled:     true,
		Window:      1,
		HighLatency: 20 * time.Millisecond,
		LowLatency:  time.Millisecond,
		Step:        100 * time.Millisecond,
		MaxDelay:    time.Second,
	}

	result, err := processor.Run(context.Background(), sourceItems(4), opts)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Stats.Succeeded)

	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
	}, sleeps.recorded(), "one pacing delay between each pair of batches, none after the last")
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	processor, _ := newProcessor(t, newClient(t, platform))

	items := append(sourceItems(4), sourceItems(1)[0])

	result, err := processor.Preview(context.Background(), items, batch.DefaultRunOptions(batch.TransferMutation{}))
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Equal(t, 4, result.Stats.DryRun)
	assert.Equal(t, 1, result.Stats.Skipped)
	assert.Equal(t, models.OutcomeSkippedDuplicate, result.Outcomes[4].Status)
	assert.Equal(t, 0, platform.Calls(http.MethodPost))
	assert.Equal(t, 0, platform.Calls(http.MethodPut))
	assert.InDelta(t, 1.0, result.Stats.SuccessRate(), 1e-9)
}

func TestRun_TagMutation(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	seeded := platform.Seed(
		testutil.CreateTestItem(testutil.WithName("A")),
		testutil.CreateTestItem(testutil.WithName("B"), testutil.WithTags("test", "prod")),
		testutil.CreateTestItem(testutil.WithName("A"), testutil.WithTags("test", "prod")),
		testutil.CreateTestItem(testutil.WithName("C")),
	)

	client := newClient(t, platform)
	processor, _ := newProcessor(t, client)

	items, err := client.List(context.Background(), models.Filter{})
	require.NoError(t, err)

	missing := testutil.CreateTestItem(testutil.WithID("wf-404"), testutil.WithName("Gone"))

	result, err := processor.Run(context.Background(), append(items, missing), batch.DefaultRunOptions(batch.TagMutation{Tag: "prod"}))
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 5)
	assert.Equal(t, models.OutcomeSkippedDuplicate, result.Outcomes[0].Status, "tagging A would collide with the tagged copy")
	assert.Equal(t, models.OutcomeSkippedFiltered, result.Outcomes[1].Status, "already tagged")
	assert.Equal(t, models.OutcomeSkippedFiltered, result.Outcomes[2].Status)
	assert.Equal(t, models.OutcomeTransferred, result.Outcomes[3].Status)
	assert.Equal(t, models.OutcomeSkippedFiltered, result.Outcomes[4].Status)
	assert.Equal(t, batch.ReasonTargetNotFound, result.Outcomes[4].Reason)

	updated, err := client.Get(context.Background(), seeded[3].ID)
	require.NoError(t, err)
	assert.True(t, updated.HasTag("prod"))
	assert.True(t, updated.HasTag("test"))
}

func TestRun_PostValidationDowngradesReason(t *testing.T) {
	t.Parallel()

	service := &mocks.MockService{}
	service.On("Mutate", mock.Anything, "", mock.Anything).Return(testutil.CreateTestItem(), nil)

	processor, _ := newProcessor(t, service, batch.WithSnapshot(batch.StaticSnapshot{}))

	opts := batch.DefaultRunOptions(batch.TransferMutation{})
	opts.PostValidate = true

	result, err := processor.Run(context.Background(), sourceItems(1), opts)
	require.NoError(t, err)

	outcome := result.Outcomes[0]
	assert.Equal(t, models.OutcomeTransferred, outcome.Status)
	assert.Contains(t, outcome.Reason, batch.ReasonWithWarnings)
	assert.Equal(t, 1, result.Stats.Succeeded)
	service.AssertExpectations(t)
}

func TestRun_CanceledBeforeStart(t *testing.T) {
	t.Parallel()

	service := &mocks.MockService{}
	processor, _ := newProcessor(t, service, batch.WithSnapshot(batch.StaticSnapshot{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := processor.Run(ctx, sourceItems(3), batch.DefaultRunOptions(batch.TransferMutation{}))
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, batch.IsAborted(err))
	assert.Equal(t, batch.StateAborted, result.State)
	assert.Equal(t, 3, result.Stats.Skipped)

	for _, outcome := range result.Outcomes {
		assert.Equal(t, batch.ReasonCanceled, outcome.Reason)
	}

	service.AssertNotCalled(t, "Mutate", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_CanceledDuringMutateKeepsCommittedWrite(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	platform.Fail("Flow 0", testutil.Fault{Times: 1, Hold: 300 * time.Millisecond})

	processor, _ := newProcessor(t, newClient(t, platform))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	timer := time.AfterFunc(100*time.Millisecond, cancel)
	defer timer.Stop()

	opts := batch.DefaultRunOptions(batch.TransferMutation{})
	opts.ConcurrencyLimit = 1

	result, err := processor.Run(ctx, sourceItems(3), opts)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, batch.StateAborted, result.State)

	require.Len(t, platform.Items(), 1)
	assert.Equal(t, models.OutcomeTransferred, result.Outcomes[0].Status)
	assert.Equal(t, 1, result.Outcomes[0].Attempts)
	assert.Equal(t, "Flow 0", platform.Items()[0].Name)

	for _, outcome := range result.Outcomes[1:] {
		assert.Equal(t, models.OutcomeSkippedFiltered, outcome.Status)
		assert.Equal(t, batch.ReasonCanceled, outcome.Reason)
	}

	assert.Equal(t, 1, result.Stats.Succeeded)
	assert.Equal(t, 2, result.Stats.Skipped)
}

func TestRun_CanceledDuringRetry(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	platform.Fail("Flow 0", testutil.Fault{Status: http.StatusServiceUnavailable, Times: -1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processor, err := batch.NewProcessor(newClient(t, platform), batch.WithSleeper(func(ctx context.Context, _ time.Duration) error {
		cancel()

		return ctx.Err()
	}))
	require.NoError(t, err)

	opts := batch.DefaultRunOptions(batch.TransferMutation{})
	opts.ConcurrencyLimit = 1

	result, err := processor.Run(ctx, sourceItems(3), opts)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, models.OutcomeFailed, result.Outcomes[0].Status)
	assert.Equal(t, batch.ReasonInterrupted, result.Outcomes[0].Reason)
	assert.Equal(t, 1, result.Outcomes[0].Attempts)

	for _, outcome := range result.Outcomes[1:] {
		assert.Equal(t, models.OutcomeSkippedFiltered, outcome.Status)
	}

	assert.Equal(t, 3, result.Stats.Completed())
}

func TestRun_OneRunAtATime(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})

	service := &mocks.MockService{}
	service.On("Mutate", mock.Anything, "", mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(models.Item{ID: "wf-1"}, nil).
		Once()

	processor, _ := newProcessor(t, service, batch.WithSnapshot(batch.StaticSnapshot{}))
	assert.Equal(t, batch.StateIdle, processor.State())

	done := make(chan error, 1)

	go func() {
		_, err := processor.Run(context.Background(), sourceItems(1), batch.DefaultRunOptions(batch.TransferMutation{}))
		done <- err
	}()

	<-started
	assert.Equal(t, batch.StateRunning, processor.State())

	_, err := processor.Run(context.Background(), sourceItems(1), batch.DefaultRunOptions(batch.TransferMutation{}))
	require.ErrorIs(t, err, batch.ErrRunInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, batch.StateCompleted, processor.State())
}

func TestRun_PublishesLifecycleEvents(t *testing.T) {
	t.Parallel()

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	platform := testutil.NewPlatform(t)
	processor, _ := newProcessor(t, newClient(t, platform), batch.WithPublisher(bus))

	result, err := processor.Run(context.Background(), sourceItems(2), batch.DefaultRunOptions(batch.TransferMutation{}))
	require.NoError(t, err, "publish failures do not fail the run")

	var types []events.EventType
	for _, call := range bus.Calls {
		assert.Equal(t, result.RunID, call.Arguments.String(1))
		types = append(types, call.Arguments.Get(2).(interface{ GetType() events.EventType }).GetType())
	}

	require.Len(t, types, 4)
	assert.Equal(t, events.RunStartedEvent, types[0])
	assert.Equal(t, events.ItemCompletedEvent, types[1])
	assert.Equal(t, events.ItemCompletedEvent, types[2])
	assert.Equal(t, events.RunFinishedEvent, types[3])
}

func TestRun_InvalidOptions(t *testing.T) {
	t.Parallel()

	processor, _ := newProcessor(t, &mocks.MockService{}, batch.WithSnapshot(batch.StaticSnapshot{}))

	tests := []struct {
		name   string
		mutate func(*batch.RunOptions)
	}{
		{name: "missing mutation", mutate: func(o *batch.RunOptions) { o.Mutation = nil }},
		{name: "zero concurrency", mutate: func(o *batch.RunOptions) { o.ConcurrencyLimit = 0 }},
		{name: "threshold above one", mutate: func(o *batch.RunOptions) { o.RollbackThreshold = 1.5 }},
		{name: "no attempts", mutate: func(o *batch.RunOptions) { o.RetryPolicy.MaxAttempts = 0 }},
		{name: "cap below base", mutate: func(o *batch.RunOptions) { o.RetryPolicy.MaxDelay = time.Millisecond }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := batch.DefaultRunOptions(batch.TransferMutation{})
			tt.mutate(&opts)

			_, err := processor.Run(context.Background(), sourceItems(1), opts)
			require.ErrorIs(t, err, batch.ErrInvalidOptions)
		})
	}

	assert.Equal(t, batch.StateIdle, processor.State())
}

func TestRun_SnapshotFailure(t *testing.T) {
	t.Parallel()

	service := &mocks.MockService{}
	service.On("List", mock.Anything, models.Filter{}).Return(nil, &remote.Error{Op: "List", Kind: remote.KindUnauthorized, StatusCode: 401})

	processor, _ := newProcessor(t, service)

	_, err := processor.Run(context.Background(), sourceItems(1), batch.DefaultRunOptions(batch.TransferMutation{}))
	require.Error(t, err)
	assert.True(t, remote.IsAuth(err))
	assert.Equal(t, batch.StateIdle, processor.State())
}

func TestRunItems(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	processor, _ := newProcessor(t, newClient(t, platform))

	stats, outcomes, err := processor.RunItems(context.Background(), sourceItems(2), batch.DefaultRunOptions(batch.TransferMutation{}))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Succeeded)
	assert.Len(t, outcomes, 2)
}
