package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"paylog/pkg/domain"
)

// Store is the durable home of registries and their event trail.
//
// Execute is the only write path for milestones. It holds the registry's
// exclusive lock (mutex or SELECT ... FOR UPDATE) across both the validation
// callback and the commit, so a transition is computed against the state it
// will be applied to and two mutations of the same registry never interleave.
// The milestone mutation and the event record are committed in one atomic
// unit: if either cannot be persisted, neither is.
type Store interface {
	// CreateRegistry persists a fully formed registry. Fails with
	// sentinel.ErrConflict if the id already exists.
	CreateRegistry(ctx context.Context, reg *Registry) error

	// FindRegistry returns a snapshot of the registry, or
	// sentinel.ErrNotFound. Callers own the returned copy.
	FindRegistry(ctx context.Context, id domain.RegistryID) (*Registry, error)

	// Execute runs fn against the current registry state under the
	// registry's write lock and atomically commits the returned transition.
	// A nil error from fn with a nil transition commits nothing.
	Execute(ctx context.Context, id domain.RegistryID, fn func(reg *Registry) (*Transition, error)) error

	// ListEvents returns the registry's event trail in append order.
	ListEvents(ctx context.Context, id domain.RegistryID) ([]Record, error)

	// PendingEvents returns up to limit committed records not yet published
	// to the external sink, oldest first.
	PendingEvents(ctx context.Context, limit int) ([]Record, error)

	// MarkPublished stamps records as delivered to the external sink.
	MarkPublished(ctx context.Context, ids []uuid.UUID, publishedAt time.Time) error
}
