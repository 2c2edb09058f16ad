package models

import (
	"net/url"
	"slices"
	"strings"
)

// TagsEqual reports whether two tag sets hold the same multiset of names, irrespective of
// order. Duplicate names are significant: [a a] and [a] are different sets. A nil set is
// equal to an empty one.
func TagsEqual(a, b []Tag) bool {
	if len(a) != len(b) {
		return false
	}

	counts := make(map[string]int, len(a))
	for _, tag := range a {
		counts[tag.Name]++
	}

	for _, tag := range b {
		counts[tag.Name]--
		if counts[tag.Name] < 0 {
			return false
		}
	}

	return true
}

// Filter selects items by id, name or tag when listing a remote instance.
// An empty filter selects everything.
type Filter struct {
	IDs   []string `json:"ids,omitempty"`
	Names []string `json:"names,omitempty"`
	Tags  []string `json:"tags,omitempty"`

	// ActiveOnly restricts the selection to active items.
	ActiveOnly bool `json:"active_only,omitempty"`
}

// IsEmpty reports whether the filter selects every item.
func (f Filter) IsEmpty() bool {
	return len(f.IDs) == 0 && len(f.Names) == 0 && len(f.Tags) == 0 && !f.ActiveOnly
}

// Key returns a stable representation of the filter, suitable as a cache key.
func (f Filter) Key() string {
	if f.IsEmpty() {
		return "*"
	}

	return f.Query().Encode()
}

// Query renders the filter as URL query parameters.
func (f Filter) Query() url.Values {
	q := url.Values{}

	if len(f.Tags) > 0 {
		tags := slices.Clone(f.Tags)
		slices.Sort(tags)
		q.Set("tags", strings.Join(tags, ","))
	}

	if len(f.Names) == 1 {
		q.Set("name", f.Names[0])
	}

	if f.ActiveOnly {
		q.Set("active", "true")
	}

	if len(f.IDs) > 0 {
		ids := slices.Clone(f.IDs)
		slices.Sort(ids)
		q.Set("ids", strings.Join(ids, ","))
	}

	return q
}

// Match reports whether the item is selected by the filter. Within a field any value
// matches; across fields every non-empty field must match.
func (f Filter) Match(item Item) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, item.ID) {
		return false
	}

	if len(f.Names) > 0 && !slices.Contains(f.Names, item.Name) {
		return false
	}

	if len(f.Tags) > 0 && !slices.ContainsFunc(f.Tags, item.HasTag) {
		return false
	}

	if f.ActiveOnly && !item.Active {
		return false
	}

	return true
}

// Select returns the items matched by the filter, preserving order.
func (f Filter) Select(items []Item) []Item {
	if f.IsEmpty() {
		return items
	}

	selected := make([]Item, 0, len(items))

	for _, item := range items {
		if f.Match(item) {
			selected = append(selected, item)
		}
	}

	return selected
}
