// Package validation checks workflow items for structural validity before and after mutation.
package validation

import (
	"time"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/graph"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
)

// Phase tells a validator whether the item is about to be mutated or was just returned by
// the remote platform.
type Phase string

const (
	PhasePre  Phase = "pre"
	PhasePost Phase = "post"
)

// Validator checks one item. Malformed input is reported through the result, never by
// panicking or returning an error.
type Validator interface {
	Name() string
	Version() string
	Validate(item models.Item, phase Phase) models.ValidationResult
}

// Metadata keys shared by every validator.
const (
	MetaTimestamp       = "timestamp"
	MetaValidator       = "validator"
	MetaVersion         = "version"
	MetaPhase           = "phase"
	MetaNodeCount       = "node_count"
	MetaConnectionCount = "connection_count"
	MetaOrphanCount     = "orphan_count"
	MetaHasCycle        = "has_cycle"
)

var now = time.Now

func newResult(v Validator, phase Phase) models.ValidationResult {
	result := models.NewValidationResult()
	result.Metadata[MetaTimestamp] = now().UTC().Format(time.RFC3339Nano)
	result.Metadata[MetaValidator] = v.Name()
	result.Metadata[MetaVersion] = v.Version()
	result.Metadata[MetaPhase] = string(phase)

	return result
}

// analysis holds the derived graph facts reported in metadata.
type analysis struct {
	nodeIDs  []string
	orphans  []string
	hasCycle bool
	cycle    []string
}

func analyze(item models.Item) analysis {
	ids := item.NodeIDs()
	hasCycle, cycle := graph.DetectCycle(ids, item.Connections)

	return analysis{
		nodeIDs:  ids,
		orphans:  graph.DetectOrphans(ids, item.Connections),
		hasCycle: hasCycle,
		cycle:    cycle,
	}
}

func (a analysis) annotate(result *models.ValidationResult, item models.Item) {
	result.Metadata[MetaNodeCount] = len(item.Nodes)
	result.Metadata[MetaConnectionCount] = item.ConnectionCount()
	result.Metadata[MetaOrphanCount] = len(a.orphans)
	result.Metadata[MetaHasCycle] = a.hasCycle
}
