package metastore

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jakegut/quickwit/kernel/model"
)

// ErrIndexNotFound is returned by IndexMetadata when no index exists under
// the requested index id.
var ErrIndexNotFound = errors.New("index not found")

// Metastore is the source of truth for which indexes exist and which delete
// tasks are pending against them. Listings may lag the real state; callers
// that need the authoritative record for a single index use IndexMetadata.
type Metastore interface {
	// ListActiveIndexes returns a descriptor for every live index.
	ListActiveIndexes(ctx context.Context) ([]model.IndexDescriptor, error)

	// IndexMetadata returns the authoritative descriptor for one index id,
	// or ErrIndexNotFound.
	IndexMetadata(ctx context.Context, indexID string) (model.IndexDescriptor, error)

	// CreateIndex registers a new index under indexID, minting a fresh uid.
	CreateIndex(ctx context.Context, indexID, indexURI string) (model.IndexDescriptor, error)

	// DeleteIndex removes the index and its pending delete tasks.
	DeleteIndex(ctx context.Context, indexID string) error

	// CreateDeleteTask stamps and stores a delete query for later execution.
	CreateDeleteTask(ctx context.Context, query model.DeleteQuery) (model.DeleteTask, error)

	// ListDeleteTasks returns the tasks for uid with opstamp > afterOpstamp,
	// in opstamp order.
	ListDeleteTasks(ctx context.Context, uid model.IndexUid, afterOpstamp uint64) ([]model.DeleteTask, error)
}

// IsIndexNotFound reports whether err is (or wraps) ErrIndexNotFound.
func IsIndexNotFound(err error) bool {
	return errors.Is(err, ErrIndexNotFound)
}
