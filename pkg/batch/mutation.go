package batch

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/template"
)

// Mutation turns a source item into the remote write a run performs for it: the id to
// write to (empty to create) and the payload.
type Mutation interface {
	Name() string
	Apply(item models.Item) (id string, payload models.Item, err error)
}

var errMissingID = errors.New("item has no id")

// serverFields are owned by the platform and rejected on create.
var serverFields = []string{"createdAt", "updatedAt", "versionId", "shared", "triggerCount", "isArchived", "homeProject", "usedCredentials"}

// TransferMutation re-creates items on another instance.
type TransferMutation struct {
	// KeepActive preserves the active flag; by default transferred items arrive inactive.
	KeepActive bool
}

func (TransferMutation) Name() string {
	return "transfer"
}

func (m TransferMutation) Apply(item models.Item) (string, models.Item, error) {
	payload := item.WithoutID()

	if !m.KeepActive {
		payload.Active = false
	}

	for idx := range payload.Tags {
		payload.Tags[idx].ID = ""
	}

	for _, field := range serverFields {
		delete(payload.Extra, field)
	}

	return "", payload, nil
}

// TagMutation adds a tag to items in place.
type TagMutation struct {
	Tag string
}

func (TagMutation) Name() string {
	return "tag"
}

func (m TagMutation) Apply(item models.Item) (string, models.Item, error) {
	if item.ID == "" {
		return "", models.Item{}, errMissingID
	}

	if strings.TrimSpace(m.Tag) == "" {
		return "", models.Item{}, errors.New("tag name is required")
	}

	if item.HasTag(m.Tag) {
		return "", models.Item{}, fmt.Errorf("%w: already tagged %q", ErrNotApplicable, m.Tag)
	}

	tags := append(slices.Clone(item.Tags), models.Tag{Name: m.Tag})

	return item.ID, item.WithTags(tags...), nil
}

// RenameMutation rewrites item names in place: Old is replaced by New, then Prefix and
// Suffix are added. A Template, when set, renders the final name from the result.
type RenameMutation struct {
	Prefix   string
	Suffix   string
	Old      string
	New      string
	Template *template.Template
}

func (RenameMutation) Name() string {
	return "rename"
}

// Rename returns the name the mutation gives to name.
func (m RenameMutation) Rename(name string) string {
	if m.Old != "" {
		name = strings.ReplaceAll(name, m.Old, m.New)
	}

	if m.Prefix != "" && !strings.HasPrefix(name, m.Prefix) {
		name = m.Prefix + name
	}

	if m.Suffix != "" && !strings.HasSuffix(name, m.Suffix) {
		name += m.Suffix
	}

	return name
}

func (m RenameMutation) Apply(item models.Item) (string, models.Item, error) {
	if item.ID == "" {
		return "", models.Item{}, errMissingID
	}

	renamed := m.Rename(item.Name)

	if m.Template != nil {
		rendered, err := m.Template.Render(template.ItemData(item, renamed))
		if err != nil {
			return "", models.Item{}, err
		}

		renamed = rendered
	}

	if renamed == item.Name {
		return "", models.Item{}, fmt.Errorf("%w: name unchanged", ErrNotApplicable)
	}

	return item.ID, item.WithName(renamed), nil
}
