package validation

import (
	"strings"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
)

// Chain runs several validators and merges their findings. Metadata from later
// validators overrides earlier keys; the chain records every member under "validators".
type Chain struct {
	validators []Validator
}

// NewChain combines validators in order.
func NewChain(validators ...Validator) *Chain {
	return &Chain{validators: validators}
}

func (c *Chain) Name() string {
	names := make([]string, 0, len(c.validators))
	for _, v := range c.validators {
		names = append(names, v.Name())
	}

	return strings.Join(names, "+")
}

func (*Chain) Version() string {
	return "1.0.0"
}

func (c *Chain) Validate(item models.Item, phase Phase) models.ValidationResult {
	result := newResult(c, phase)
	members := make([]string, 0, len(c.validators))

	for _, v := range c.validators {
		result.Merge(v.Validate(item, phase))
		members = append(members, v.Name()+"@"+v.Version())
	}

	result.Metadata[MetaValidator] = c.Name()
	result.Metadata[MetaVersion] = c.Version()
	result.Metadata["validators"] = members

	return result
}

// Default returns the schema and integrity validators chained together.
func Default() (*Chain, error) {
	schema, err := NewSchema()
	if err != nil {
		return nil, err
	}

	return NewChain(schema, NewIntegrity()), nil
}
