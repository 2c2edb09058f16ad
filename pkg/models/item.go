// Package models defines the workflow item model shared by the dedup, validation and batch packages.
package models

import (
	"encoding/json"
	"maps"
	"slices"
)

// Item is a workflow-automation definition as read from or written to a remote instance.
//
// Identity for duplicate detection is (Name, Tags); identity for mutation is ID once the
// remote platform has assigned one. Items are treated as values: helpers that change an
// item return a modified copy.
type Item struct {
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name"`
	Tags        []Tag             `json:"tags,omitempty"`
	Nodes       []Node            `json:"nodes"`
	Connections map[string][]Edge `json:"connections,omitempty"`
	Active      bool              `json:"active"`
	Settings    map[string]any    `json:"settings,omitempty"`

	// Extra keeps every top-level field this model does not know about so that a
	// read-modify-write cycle does not drop data owned by the platform.
	Extra map[string]any `json:"-"`
}

// Tag is a label attached to an item.
type Tag struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Node is a single step of an item's graph.
type Node struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Type        string         `json:"type,omitempty"`
	Disabled    bool           `json:"disabled,omitempty"`
	Credentials map[string]any `json:"credentials,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Position    []float64      `json:"position,omitempty"`
}

// Edge is an outbound connection of a source node. Connections form a directed
// multigraph keyed by source node key and fanned out by channel and output index.
type Edge struct {
	TargetNodeID string `json:"targetNodeId"`
	Channel      string `json:"channel"`
	OutputIndex  int    `json:"outputIndex"`
	InputIndex   int    `json:"inputIndex"`
}

// Key returns the identifier used for the node in the connection graph.
// Nodes exported without an id are addressed by name.
func (n Node) Key() string {
	if n.ID != "" {
		return n.ID
	}

	return n.Name
}

// CredentialRefs lists the identifiable credential references (id, falling back to name)
// of the node, in credential type order.
func (n Node) CredentialRefs() []string {
	types := slices.Sorted(maps.Keys(n.Credentials))

	refs := make([]string, 0, len(types))

	for _, credentialType := range types {
		if ref := credentialRef(n.Credentials[credentialType]); ref != "" {
			refs = append(refs, ref)
		}
	}

	return refs
}

// HasUnidentifiedCredential reports whether any credential entry of the node carries neither an id nor a name.
func (n Node) HasUnidentifiedCredential() bool {
	for _, value := range n.Credentials {
		if credentialRef(value) == "" {
			return true
		}
	}

	return false
}

func credentialRef(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]any:
		if id, ok := v["id"].(string); ok && id != "" {
			return id
		}

		if name, ok := v["name"].(string); ok && name != "" {
			return name
		}
	}

	return ""
}

// NodeIDs returns the graph keys of every node in declaration order.
func (i Item) NodeIDs() []string {
	ids := make([]string, 0, len(i.Nodes))
	for _, node := range i.Nodes {
		ids = append(ids, node.Key())
	}

	return ids
}

// ConnectionCount returns the total number of edges of the item.
func (i Item) ConnectionCount() int {
	count := 0
	for _, edges := range i.Connections {
		count += len(edges)
	}

	return count
}

// TagNames returns the names of the item's tags in order.
func (i Item) TagNames() []string {
	names := make([]string, 0, len(i.Tags))
	for _, tag := range i.Tags {
		names = append(names, tag.Name)
	}

	return names
}

// HasTag reports whether the item carries a tag with the given name.
func (i Item) HasTag(name string) bool {
	return slices.ContainsFunc(i.Tags, func(t Tag) bool { return t.Name == name })
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	out := i
	out.Tags = slices.Clone(i.Tags)

	if i.Nodes != nil {
		out.Nodes = make([]Node, len(i.Nodes))
		for idx, node := range i.Nodes {
			node.Credentials = cloneMap(node.Credentials)
			node.Parameters = cloneMap(node.Parameters)
			node.Position = slices.Clone(node.Position)
			out.Nodes[idx] = node
		}
	}

	if i.Connections != nil {
		out.Connections = make(map[string][]Edge, len(i.Connections))
		for source, edges := range i.Connections {
			out.Connections[source] = slices.Clone(edges)
		}
	}

	out.Settings = cloneMap(i.Settings)
	out.Extra = cloneMap(i.Extra)

	return out
}

// WithName returns a copy of the item renamed to name.
func (i Item) WithName(name string) Item {
	out := i.Clone()
	out.Name = name

	return out
}

// WithTags returns a copy of the item carrying exactly the given tags.
func (i Item) WithTags(tags ...Tag) Item {
	out := i.Clone()
	out.Tags = slices.Clone(tags)

	return out
}

// WithoutID returns a copy of the item stripped of its server-assigned identifier.
func (i Item) WithoutID() Item {
	out := i.Clone()
	out.ID = ""

	return out
}

// Document returns the item as a generic JSON document, the shape schema validation runs against.
func (i Item) Document() (map[string]any, error) {
	raw, err := json.Marshal(i)
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// cloneMap copies a JSON-like map, recursing into nested maps and slices.
func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}

	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return cloneMap(value)
	case []any:
		out := make([]any, len(value))
		for idx, elem := range value {
			out[idx] = cloneValue(elem)
		}

		return out
	default:
		return value
	}
}
