package remote_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/remote"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, platform *testutil.Platform, mutate ...func(*remote.Config)) *remote.Client {
	t.Helper()

	cfg := remote.Config{
		BaseURL:   platform.URL(),
		APIKey:    testutil.PlatformAPIKey,
		Timeout:   2 * time.Second,
		RateLimit: 1000,
		RateBurst: 100,
	}

	for _, m := range mutate {
		m(&cfg)
	}

	client, err := remote.NewClient(cfg)
	require.NoError(t, err)

	return client
}

func TestNewClient_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := remote.NewClient(remote.Config{})
	require.Error(t, err)

	_, err = remote.NewClient(remote.Config{BaseURL: "not a url", APIKey: "k"})
	require.Error(t, err)

	_, err = remote.NewClient(remote.Config{BaseURL: "http://localhost:5678", APIKey: "k", PageSize: 1000})
	require.Error(t, err)
}

func TestClient_ListPaginatesAndCaches(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	platform.SetPageSize(2)
	platform.Seed(testutil.CreateTestItems("Flow", 5)...)

	client := newClient(t, platform)
	ctx := context.Background()

	items, err := client.List(ctx, models.Filter{})
	require.NoError(t, err)
	assert.Len(t, items, 5)
	assert.Equal(t, "Flow 0", items[0].Name)
	assert.Equal(t, 3, platform.Calls(http.MethodGet), "three pages")

	_, err = client.List(ctx, models.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, platform.Calls(http.MethodGet), "second list is served from cache")

	selected, err := client.List(ctx, models.Filter{IDs: []string{"wf-2", "wf-4"}})
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "wf-2", selected[0].ID)
}

func TestClient_ListByTag(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	platform.Seed(
		testutil.CreateTestItem(testutil.WithName("A"), testutil.WithTags("prod")),
		testutil.CreateTestItem(testutil.WithName("B"), testutil.WithTags("dev")),
	)

	items, err := newClient(t, platform).List(context.Background(), models.Filter{Tags: []string{"prod"}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "A", items[0].Name)
}

func TestClient_GetAndMutateInvalidates(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	seeded := platform.Seed(testutil.CreateTestItem(testutil.WithName("Original")))
	id := seeded[0].ID

	client := newClient(t, platform)
	ctx := context.Background()

	item, err := client.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Original", item.Name)
	assert.Len(t, item.Nodes, 2)
	assert.Equal(t, []models.Edge{{TargetNodeID: "action", Channel: "main"}}, item.Connections["trigger"])

	_, err = client.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, platform.Calls(http.MethodGet))

	listed, err := client.List(ctx, models.Filter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	updated, err := client.Mutate(ctx, id, item.WithName("Renamed"))
	require.NoError(t, err)
	assert.Equal(t, id, updated.ID)
	assert.Equal(t, "Renamed", updated.Name)

	item, err = client.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", item.Name, "get cache evicted by mutate")

	listed, err = client.List(ctx, models.Filter{})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", listed[0].Name, "list cache evicted by mutate")
}

func TestClient_MutateCreates(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	client := newClient(t, platform)

	created, err := client.Mutate(context.Background(), "", testutil.CreateTestItem(testutil.WithID("source-id"), testutil.WithName("Copied")))
	require.NoError(t, err)
	assert.Equal(t, "wf-1", created.ID)
	assert.Equal(t, 1, platform.Calls(http.MethodPost))
	assert.Equal(t, "Copied", platform.Items()[0].Name)
}

func TestClient_ErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		fault      testutil.Fault
		kind       remote.Kind
		retryable  bool
		sentinel   error
		retryAfter time.Duration
	}{
		{name: "not found", fault: testutil.Fault{Status: 404, Times: -1}, kind: remote.KindNotFound, sentinel: remote.ErrNotFound},
		{name: "conflict", fault: testutil.Fault{Status: 409, Times: -1}, kind: remote.KindConflict, sentinel: remote.ErrConflict},
		{name: "unauthorized", fault: testutil.Fault{Status: 401, Times: -1}, kind: remote.KindUnauthorized, sentinel: remote.ErrUnauthorized},
		{name: "forbidden", fault: testutil.Fault{Status: 403, Times: -1}, kind: remote.KindForbidden, sentinel: remote.ErrForbidden},
		{name: "rate limited with hint", fault: testutil.Fault{Status: 429, Times: -1, RetryAfter: "7"}, kind: remote.KindRateLimited, retryable: true, sentinel: remote.ErrRateLimited, retryAfter: 7 * time.Second},
		{name: "server error", fault: testutil.Fault{Status: 502, Times: -1}, kind: remote.KindServerError, retryable: true, sentinel: remote.ErrServer},
		{name: "bad request is fatal", fault: testutil.Fault{Status: 400, Times: -1}, kind: remote.KindFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			platform := testutil.NewPlatform(t)
			seeded := platform.Seed(testutil.CreateTestItem())
			platform.Fail(seeded[0].ID, tt.fault)

			_, err := newClient(t, platform).Mutate(context.Background(), seeded[0].ID, seeded[0])
			require.Error(t, err)

			var remoteErr *remote.Error
			require.ErrorAs(t, err, &remoteErr)
			assert.Equal(t, tt.kind, remoteErr.Kind)
			assert.Equal(t, tt.fault.Status, remoteErr.StatusCode)
			assert.Equal(t, seeded[0].ID, remoteErr.ItemID)
			assert.Equal(t, tt.retryable, remote.IsRetryable(err))
			assert.Equal(t, tt.retryAfter, remote.RetryAfter(err))

			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
		})
	}
}

func TestClient_WrongAPIKey(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	client := newClient(t, platform, func(c *remote.Config) { c.APIKey = "wrong" })

	_, err := client.List(context.Background(), models.Filter{})
	require.Error(t, err)
	assert.True(t, remote.IsAuth(err))
	assert.False(t, remote.IsRetryable(err))
}

func TestClient_TimeoutIsRetryable(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	seeded := platform.Seed(testutil.CreateTestItem())
	platform.Fail(seeded[0].ID, testutil.Fault{Delay: time.Second, Times: -1})

	client := newClient(t, platform, func(c *remote.Config) { c.Timeout = 50 * time.Millisecond })

	_, err := client.Get(context.Background(), seeded[0].ID)
	require.Error(t, err)
	assert.Equal(t, remote.KindNetworkTimeout, remote.KindOf(err))
	assert.True(t, remote.IsRetryable(err))
}

func TestClient_CanceledContextIsNotRetryable(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	client := newClient(t, platform)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.List(ctx, models.Filter{})
	require.Error(t, err)
	assert.Equal(t, remote.KindCanceled, remote.KindOf(err))
	assert.False(t, remote.IsRetryable(err))
}

func TestClient_ConnectionRefusedIsRetryable(t *testing.T) {
	t.Parallel()

	platform := testutil.NewPlatform(t)
	client := newClient(t, platform)
	platform.Server.Close()

	_, err := client.Get(context.Background(), "wf-1")
	require.Error(t, err)
	assert.Equal(t, remote.KindConnectionReset, remote.KindOf(err))
	assert.True(t, remote.IsRetryable(err))
}

func TestKindOf_UnclassifiedIsFatal(t *testing.T) {
	t.Parallel()

	assert.Equal(t, remote.KindFatal, remote.KindOf(errors.New("plain")))
	assert.False(t, remote.IsRetryable(nil))
	assert.False(t, remote.IsNotFound(nil))
}
