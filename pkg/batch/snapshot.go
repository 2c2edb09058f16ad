package batch

import (
	"context"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/remote"
)

// Snapshot supplies the destination items a run deduplicates against. It is read once
// at the start of every run.
type Snapshot interface {
	Existing(ctx context.Context) ([]models.Item, error)
}

// StaticSnapshot is a fixed list of existing items.
type StaticSnapshot []models.Item

func (s StaticSnapshot) Existing(context.Context) ([]models.Item, error) {
	return s, nil
}

// RemoteSnapshot lists the destination through a remote service.
type RemoteSnapshot struct {
	Service remote.Service
	Filter  models.Filter
}

func (s RemoteSnapshot) Existing(ctx context.Context) ([]models.Item, error) {
	return s.Service.List(ctx, s.Filter)
}
