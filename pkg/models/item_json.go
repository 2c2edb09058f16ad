package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var knownItemFields = []string{"id", "name", "tags", "nodes", "connections", "active", "settings"}

// wireTarget is one connection target as the platform serialises it.
type wireTarget struct {
	Node  string `json:"node"`
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// wireConnections is keyed by source node name, then channel, then output index.
type wireConnections map[string]map[string][][]wireTarget

type wireItem struct {
	ID          json.RawMessage `json:"id,omitempty"`
	Name        string          `json:"name"`
	Tags        []Tag           `json:"tags,omitempty"`
	Nodes       []Node          `json:"nodes"`
	Connections wireConnections `json:"connections,omitempty"`
	Active      bool            `json:"active"`
	Settings    map[string]any  `json:"settings,omitempty"`
}

// MarshalJSON writes the item in the platform wire shape: connections keyed by node name
// and nested by channel and output index, with Extra fields merged back at the top level.
func (i Item) MarshalJSON() ([]byte, error) {
	wire := wireItem{
		Name:        i.Name,
		Tags:        i.Tags,
		Nodes:       i.Nodes,
		Connections: encodeConnections(i.Nodes, i.Connections),
		Active:      i.Active,
		Settings:    i.Settings,
	}

	if wire.Nodes == nil {
		wire.Nodes = []Node{}
	}

	if i.ID != "" {
		id, err := json.Marshal(i.ID)
		if err != nil {
			return nil, err
		}

		wire.ID = id
	}

	raw, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}

	if len(i.Extra) == 0 {
		return raw, nil
	}

	var merged map[string]any
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, err
	}

	for k, v := range i.Extra {
		if !slices.Contains(knownItemFields, k) {
			merged[k] = v
		}
	}

	return json.Marshal(merged)
}

// UnmarshalJSON reads the platform wire shape. Connection endpoints are resolved from node
// names to node keys; endpoints naming no node are kept verbatim so integrity checks can
// report them.
func (i *Item) UnmarshalJSON(data []byte) error {
	var wire wireItem
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	id, err := decodeID(wire.ID)
	if err != nil {
		return err
	}

	*i = Item{
		ID:          id,
		Name:        wire.Name,
		Tags:        wire.Tags,
		Nodes:       wire.Nodes,
		Connections: decodeConnections(wire.Nodes, wire.Connections),
		Active:      wire.Active,
		Settings:    wire.Settings,
	}

	for k, raw := range fields {
		if slices.Contains(knownItemFields, k) {
			continue
		}

		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}

		if i.Extra == nil {
			i.Extra = make(map[string]any)
		}

		i.Extra[k] = value
	}

	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("field \"id\": expected string or number, got %s", raw)
	}

	return n.String(), nil
}

func decodeConnections(nodes []Node, wire wireConnections) map[string][]Edge {
	if len(wire) == 0 {
		return nil
	}

	byName := make(map[string]string, len(nodes))
	for _, node := range nodes {
		if node.Name != "" {
			byName[node.Name] = node.Key()
		}
	}

	resolve := func(name string) string {
		if key, ok := byName[name]; ok {
			return key
		}

		return name
	}

	out := make(map[string][]Edge, len(wire))

	for source, channels := range wire {
		edges := make([]Edge, 0)

		for _, channel := range slices.Sorted(maps.Keys(channels)) {
			for outputIndex, targets := range channels[channel] {
				for _, target := range targets {
					edges = append(edges, Edge{
						TargetNodeID: resolve(target.Node),
						Channel:      channel,
						OutputIndex:  outputIndex,
						InputIndex:   target.Index,
					})
				}
			}
		}

		out[resolve(source)] = edges
	}

	return out
}

func encodeConnections(nodes []Node, connections map[string][]Edge) wireConnections {
	if len(connections) == 0 {
		return nil
	}

	byKey := make(map[string]string, len(nodes))
	for _, node := range nodes {
		if node.Name != "" {
			byKey[node.Key()] = node.Name
		}
	}

	name := func(key string) string {
		if n, ok := byKey[key]; ok {
			return n
		}

		return key
	}

	out := make(wireConnections, len(connections))

	for source, edges := range connections {
		channels := make(map[string][][]wireTarget)

		for _, edge := range edges {
			channel := edge.Channel
			if strings.TrimSpace(channel) == "" {
				channel = "main"
			}

			outputIndex := max(edge.OutputIndex, 0)

			outputs := channels[channel]
			for len(outputs) <= outputIndex {
				outputs = append(outputs, []wireTarget{})
			}

			outputs[outputIndex] = append(outputs[outputIndex], wireTarget{
				Node:  name(edge.TargetNodeID),
				Type:  channel,
				Index: edge.InputIndex,
			})
			channels[channel] = outputs
		}

		out[name(source)] = channels
	}

	return out
}
