// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"strconv"
	"strings"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
	"github.com/google/uuid"
)

// CreateTestNode creates a Node whose id is derived from its name, with overrides applied.
func CreateTestNode(name string, overrides ...func(*models.Node)) models.Node {
	node := models.Node{
		ID:         strings.ReplaceAll(strings.ToLower(name), " ", "-"),
		Name:       name,
		Type:       "n8n-nodes-base.noOp",
		Parameters: map[string]any{},
		Position:   []float64{100, 200},
	}

	for _, override := range overrides {
		override(&node)
	}

	return node
}

// WithCredential attaches a credential reference of the given type to a node.
func WithCredential(credentialType string, ref any) func(*models.Node) {
	return func(n *models.Node) {
		if n.Credentials == nil {
			n.Credentials = map[string]any{}
		}

		n.Credentials[credentialType] = ref
	}
}

// WithDisabled marks the node disabled.
func WithDisabled() func(*models.Node) {
	return func(n *models.Node) {
		n.Disabled = true
	}
}

// CreateTestItem creates a valid two-node item ("Trigger" → "Action") tagged "test",
// with overrides applied.
func CreateTestItem(overrides ...func(*models.Item)) models.Item {
	item := models.Item{
		Name: "Test Item " + uuid.NewString()[:8],
		Tags: []models.Tag{{Name: "test"}},
		Nodes: []models.Node{
			CreateTestNode("Trigger", func(n *models.Node) { n.Type = "n8n-nodes-base.manualTrigger" }),
			CreateTestNode("Action"),
		},
		Connections: map[string][]models.Edge{
			"trigger": {{TargetNodeID: "action", Channel: "main"}},
		},
		Settings: map[string]any{"executionOrder": "v1"},
	}

	for _, override := range overrides {
		override(&item)
	}

	return item
}

// WithID sets the item id.
func WithID(id string) func(*models.Item) {
	return func(i *models.Item) {
		i.ID = id
	}
}

// WithName sets the item name.
func WithName(name string) func(*models.Item) {
	return func(i *models.Item) {
		i.Name = name
	}
}

// WithTags replaces the item tags.
func WithTags(names ...string) func(*models.Item) {
	return func(i *models.Item) {
		i.Tags = nil
		for _, name := range names {
			i.Tags = append(i.Tags, models.Tag{Name: name})
		}
	}
}

// WithNodes replaces the item nodes and drops its connections.
func WithNodes(nodes ...models.Node) func(*models.Item) {
	return func(i *models.Item) {
		i.Nodes = nodes
		i.Connections = nil
	}
}

// WithConnection adds a main-channel edge between two node keys.
func WithConnection(from, to string) func(*models.Item) {
	return func(i *models.Item) {
		if i.Connections == nil {
			i.Connections = map[string][]models.Edge{}
		}

		i.Connections[from] = append(i.Connections[from], models.Edge{TargetNodeID: to, Channel: "main"})
	}
}

// WithSettings replaces the item settings; nil removes them.
func WithSettings(settings map[string]any) func(*models.Item) {
	return func(i *models.Item) {
		i.Settings = settings
	}
}

// CreateTestItems creates n valid items named "<prefix> <index>".
func CreateTestItems(prefix string, n int, overrides ...func(*models.Item)) []models.Item {
	items := make([]models.Item, 0, n)

	for idx := range n {
		opts := append([]func(*models.Item){WithName(prefix + " " + strconv.Itoa(idx))}, overrides...)
		items = append(items, CreateTestItem(opts...))
	}

	return items
}
