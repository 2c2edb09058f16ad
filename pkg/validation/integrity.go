package validation

import (
	"fmt"
	"strings"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/graph"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
)

const integrityVersion = "1.0.0"

// Metadata keys specific to the integrity validator.
const (
	MetaCredentialNodeCount = "credential_node_count"
	MetaDisabledNodeCount   = "disabled_node_count"
)

// Integrity checks the connection graph of an item: every connection endpoint must be a
// known node, the graph must be acyclic, and isolated nodes, disabled nodes and
// unidentifiable credentials are flagged as warnings.
type Integrity struct{}

// NewIntegrity returns the integrity validator.
func NewIntegrity() *Integrity {
	return &Integrity{}
}

func (*Integrity) Name() string {
	return "integrity"
}

func (*Integrity) Version() string {
	return integrityVersion
}

func (v *Integrity) Validate(item models.Item, phase Phase) models.ValidationResult {
	result := newResult(v, phase)

	a := analyze(item)
	a.annotate(&result, item)

	if len(item.Nodes) == 0 {
		result.AddError("nodes: item has no nodes")

		return result
	}

	unknownSources := map[string]bool{}

	for _, d := range graph.DanglingEdges(a.nodeIDs, item.Connections) {
		switch {
		case d.UnknownSource:
			if unknownSources[d.Source] {
				continue
			}

			unknownSources[d.Source] = true
			result.AddError(fmt.Sprintf("connections: source node unknown: %q", d.Source))
		case d.MissingTarget:
			result.AddError(fmt.Sprintf("connections: edge from %q on %s[%d] has no target node",
				d.Source, d.Edge.Channel, d.Edge.OutputIndex))
		case d.UnknownTarget:
			result.AddError(fmt.Sprintf("connections: target node unknown: %q (from %q)",
				d.Edge.TargetNodeID, d.Source))
		}
	}

	for _, orphan := range a.orphans {
		result.AddWarning(fmt.Sprintf("node %q is orphaned: no inbound or outbound connections", orphan))
	}

	if a.hasCycle {
		result.AddError("circular dependency: " + strings.Join(a.cycle, " -> "))
	}

	credentialNodes, disabledNodes := 0, 0

	for _, node := range item.Nodes {
		if len(node.Credentials) > 0 {
			credentialNodes++

			if node.HasUnidentifiedCredential() {
				result.AddWarning(fmt.Sprintf("node %q references a credential without an id or name", node.Key()))
			}
		}

		if node.Disabled {
			disabledNodes++

			result.AddWarning(fmt.Sprintf("node %q is disabled", node.Key()))
		}
	}

	if phase == PhasePost && item.ID == "" {
		result.AddError("id: missing after mutation, the platform must assign an identifier")
	}

	result.Metadata[MetaCredentialNodeCount] = credentialNodes
	result.Metadata[MetaDisabledNodeCount] = disabledNodes

	return result
}
