package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/batch"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/testutil"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "github.com/urfave/cli/v3"
)

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "jana",
		Flags: globalFlags(),
		Commands: []*cli.Command{
			NewTransferCommand(),
			NewPreviewCommand(),
			NewTagCommand(),
			NewRenameCommand(),
			NewValidateCommand(),
		},
	}
}

func instanceArgs(source, target *testutil.Platform) []string {
	return []string{
		"jana",
		"--log-level", "error",
		"--source-url", source.URL(),
		"--source-api-key", testutil.PlatformAPIKey,
		"--target-url", target.URL(),
		"--target-api-key", testutil.PlatformAPIKey,
		"--rate-limit", "1000",
	}
}

func readReport(t *testing.T, path string) batch.Result {
	t.Helper()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var result batch.Result
	require.NoError(t, json.Unmarshal(raw, &result))

	return result
}

func TestTransferCommand(t *testing.T) {
	t.Parallel()

	source := testutil.NewPlatform(t)
	target := testutil.NewPlatform(t)

	source.Seed(testutil.CreateTestItems("Flow", 3)...)
	source.Seed(testutil.CreateTestItem(testutil.WithName("Other"), testutil.WithTags("other")))

	output := filepath.Join(t.TempDir(), "report.json")

	args := append(instanceArgs(source, target), "transfer", "--tag", "test", "--report", "json", "--output", output)
	require.NoError(t, newRootCommand().Run(context.Background(), args))

	result := readReport(t, output)
	assert.Equal(t, batch.StateCompleted, result.State)
	assert.Equal(t, 3, result.Stats.Succeeded)

	transferred := target.Items()
	require.Len(t, transferred, 3)

	for _, item := range transferred {
		assert.False(t, item.Active)
		assert.NotEqual(t, "Other", item.Name)
	}
}

func TestPreviewCommandDoesNotMutate(t *testing.T) {
	t.Parallel()

	source := testutil.NewPlatform(t)
	target := testutil.NewPlatform(t)

	source.Seed(testutil.CreateTestItems("Flow", 2)...)

	output := filepath.Join(t.TempDir(), "report.json")

	args := append(instanceArgs(source, target), "preview", "--report", "json", "--output", output)
	require.NoError(t, newRootCommand().Run(context.Background(), args))

	result := readReport(t, output)
	assert.True(t, result.DryRun)
	assert.Equal(t, 2, result.Stats.DryRun)
	assert.Empty(t, target.Items())
	assert.Equal(t, 0, target.Calls(http.MethodPost))
}

func TestTagCommandEditsTargetInPlace(t *testing.T) {
	t.Parallel()

	source := testutil.NewPlatform(t)
	target := testutil.NewPlatform(t)

	target.Seed(testutil.CreateTestItems("Flow", 2)...)

	output := filepath.Join(t.TempDir(), "report.json")

	args := append(instanceArgs(source, target), "tag", "--add", "migrated", "--report", "json", "--output", output)
	require.NoError(t, newRootCommand().Run(context.Background(), args))

	result := readReport(t, output)
	assert.Equal(t, 2, result.Stats.Succeeded)

	for _, item := range target.Items() {
		assert.True(t, item.HasTag("migrated"), item.Name)
	}

	assert.Equal(t, 0, source.Calls(http.MethodGet))
}

func TestAbortedTransferFails(t *testing.T) {
	t.Parallel()

	source := testutil.NewPlatform(t)
	target := testutil.NewPlatform(t)

	items := source.Seed(testutil.CreateTestItems("Flow", 4)...)
	for _, item := range items[:2] {
		target.Fail(item.Name, testutil.Fault{Status: http.StatusBadRequest, Times: -1})
	}

	output := filepath.Join(t.TempDir(), "report.json")

	args := append(instanceArgs(source, target),
		"transfer", "--concurrency", "1", "--batch-size", "2", "--report", "json", "--output", output)

	err := newRootCommand().Run(context.Background(), args)
	require.ErrorIs(t, err, batch.ErrAborted)

	result := readReport(t, output)
	assert.True(t, result.Aborted)
	assert.Equal(t, 2, result.Stats.Failed)
}

func TestRenameCommandRequiresAChange(t *testing.T) {
	t.Parallel()

	source := testutil.NewPlatform(t)
	target := testutil.NewPlatform(t)

	args := append(instanceArgs(source, target), "rename")
	require.ErrorIs(t, newRootCommand().Run(context.Background(), args), ErrEmptyRename)
}

func TestMissingInstanceConfiguration(t *testing.T) {
	t.Parallel()

	err := newRootCommand().Run(context.Background(), []string{"jana", "--log-level", "error", "preview"})
	require.ErrorIs(t, err, ErrMissingInstance)
}

func TestDecodeItems(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		wantNames []string
		wantErr   bool
	}{
		{name: "array", input: `[{"name":"a","nodes":[]},{"name":"b","nodes":[]}]`, wantNames: []string{"a", "b"}},
		{name: "list page", input: `{"data":[{"name":"a","nodes":[]}],"nextCursor":""}`, wantNames: []string{"a"}},
		{name: "single item", input: ` {"id":"1","name":"solo","nodes":[]}`, wantNames: []string{"solo"}},
		{name: "garbage", input: `not json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			items, err := decodeItems([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)

			names := make([]string, 0, len(items))
			for _, item := range items {
				names = append(names, item.Name)
			}

			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestValidateItems(t *testing.T) {
	t.Parallel()

	validator, err := validation.Default()
	require.NoError(t, err)

	items := []models.Item{
		testutil.CreateTestItem(testutil.WithName("Good")),
		testutil.CreateTestItem(testutil.WithName("Loop"), testutil.WithConnection("action", "trigger")),
	}

	var out bytes.Buffer

	invalid := validateItems(&out, validator, items, validation.PhasePre)

	assert.Equal(t, 1, invalid)
	assert.Contains(t, out.String(), "ok\t\tGood")
	assert.Contains(t, out.String(), "invalid\t\tLoop")
	assert.Contains(t, out.String(), "error: circular dependency")
}

func TestValidateCommandFromFile(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal([]models.Item{testutil.CreateTestItem(testutil.WithName("Good"))})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	err = newRootCommand().Run(context.Background(), []string{"jana", "--log-level", "error", "validate", "--file", path})
	require.NoError(t, err)
}
