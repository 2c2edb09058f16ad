// Package dedup decides whether an equivalent item already exists at a destination.
package dedup

import (
	"fmt"
	"strings"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/similarity"
)

// DefaultNameThreshold is the minimum name similarity for the fuzzy matcher.
const DefaultNameThreshold = 0.85

// Deduplicator checks one candidate against the items already present at the destination.
// Implementations keep no per-call state and are safe for concurrent use.
type Deduplicator interface {
	Name() string
	Check(candidate models.Item, existing []models.Item) models.DuplicateCheckResult
}

// Exact matches on identical name (case-sensitive) and equal tag multisets.
type Exact struct{}

// NewExact returns the exact matcher.
func NewExact() *Exact {
	return &Exact{}
}

func (*Exact) Name() string {
	return "exact"
}

// Check reports the first existing item with the candidate's exact name and tag set.
// Existing entries without a name are skipped.
func (*Exact) Check(candidate models.Item, existing []models.Item) models.DuplicateCheckResult {
	for _, item := range existing {
		if item.Name == "" {
			continue
		}

		if item.Name == candidate.Name && models.TagsEqual(item.Tags, candidate.Tags) {
			return models.DuplicateOf(item, fmt.Sprintf(
				"exact match: item %s has the same name %q and tags [%s]",
				describe(item), item.Name, strings.Join(item.TagNames(), ", "),
			))
		}
	}

	return models.NotDuplicate("no item with the same name and tags")
}

// Fuzzy matches on name similarity at or above a threshold, ignoring tags.
type Fuzzy struct {
	threshold float64
	opts      []similarity.Option
}

// NewFuzzy returns a fuzzy matcher. The threshold must lie in [0, 1].
func NewFuzzy(threshold float64, opts ...similarity.Option) (*Fuzzy, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: name threshold %v outside [0, 1]", similarity.ErrInvalidArgument, threshold)
	}

	return &Fuzzy{threshold: threshold, opts: opts}, nil
}

func (*Fuzzy) Name() string {
	return "fuzzy"
}

// Threshold returns the configured minimum similarity.
func (f *Fuzzy) Threshold() float64 {
	return f.threshold
}

// Check picks the most similar existing item at or above the threshold; ties go to the
// first occurrence. Existing entries without a name are not comparison targets.
func (f *Fuzzy) Check(candidate models.Item, existing []models.Item) models.DuplicateCheckResult {
	best := -1
	bestScore := 0.0

	for idx, item := range existing {
		if strings.TrimSpace(item.Name) == "" {
			continue
		}

		score := similarity.Similarity(candidate.Name, item.Name, f.opts...)
		if score >= f.threshold && (best < 0 || score > bestScore) {
			best, bestScore = idx, score
		}
	}

	if best < 0 {
		return models.NotDuplicate(fmt.Sprintf("no item name at or above similarity %.2f", f.threshold))
	}

	match := existing[best]

	return models.DuplicateOf(match, fmt.Sprintf(
		"fuzzy match: item %s name %q is %.0f%% similar to %q (threshold %.0f%%)",
		describe(match), match.Name, bestScore*100, candidate.Name, f.threshold*100,
	))
}

func describe(item models.Item) string {
	if item.ID != "" {
		return item.ID
	}

	return "(unsaved)"
}
