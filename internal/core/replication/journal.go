package replication

import (
	"context"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
)

// Journal persists the last committed value of durable fields so a node can
// resume from it after a restart.
type Journal interface {
	// Load returns the stored value and version; ok is false when nothing was
	// stored for id.
	Load(ctx context.Context, id string) (v domain.Value, version uint64, ok bool, err error)
	Save(ctx context.Context, id string, v domain.Value, version uint64) error
	Delete(ctx context.Context, id string) error
}
