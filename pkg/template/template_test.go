package template

import (
	"testing"
	"time"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Setenv("JANA_ENV", "staging")

	item := models.Item{
		ID:    "42",
		Name:  "Billing Sync",
		Tags:  []models.Tag{{Name: "finance"}, {Name: "daily"}},
		Nodes: []models.Node{{Name: "a"}, {Name: "b"}},
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{name: "plain field", template: "{{ .Name }}", want: "Billing Sync"},
		{name: "original name", template: "{{ .Original }} v2", want: "Billing Sync v2"},
		{name: "environment", template: "[{{ env \"JANA_ENV\" }}] {{ .Name }}", want: "[staging] Billing Sync"},
		{name: "tags", template: "{{ .Name }} ({{ join .Tags \", \" }})", want: "Billing Sync (finance, daily)"},
		{name: "case", template: "{{ upper .Name }}", want: "BILLING SYNC"},
		{name: "replace", template: "{{ replace \"Sync\" \"Export\" .Name }}", want: "Billing Export"},
		{name: "id and nodes", template: "{{ .ID }}-{{ .Nodes }}", want: "42-2"},
		{name: "trims output", template: "  {{ lower .Name }}\n", want: "billing sync"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := Parse(tt.template)
			require.NoError(t, err)

			got, err := tmpl.Render(ItemData(item, item.Name))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_Now(t *testing.T) {
	t.Parallel()

	tmpl, err := Parse(`{{ .Name }} {{ now "2006" }}`)
	require.NoError(t, err)

	got, err := tmpl.Render(Data{Name: "Flow"})
	require.NoError(t, err)
	assert.Equal(t, "Flow "+time.Now().UTC().Format("2006"), got)
}

func TestRender_Errors(t *testing.T) {
	t.Parallel()

	_, err := Parse("{{ .Name ")
	require.ErrorContains(t, err, "failed to parse template")

	tmpl, err := Parse("{{ .Missing }}")
	require.NoError(t, err)

	_, err = tmpl.Render(Data{Name: "Flow"})
	require.ErrorContains(t, err, "failed to execute template")

	tmpl, err = Parse("{{ if .Active }}{{ .Name }}{{ end }}")
	require.NoError(t, err)

	_, err = tmpl.Render(Data{Name: "Flow"})
	require.ErrorIs(t, err, ErrEmptyResult)

	assert.Equal(t, "{{ if .Active }}{{ .Name }}{{ end }}", tmpl.String())
}
