package ledger

import (
	"context"
	"time"

	"github.com/voxshop/merchantd/internal/domain"
)

// Store is the durable, append-only order record. Orders are never updated
// or deleted through this interface; ListBySession and ListRange return
// records ordered by created_at descending.
type Store interface {
	// Append durably writes a new order.
	Append(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by its id.
	GetByID(ctx context.Context, id int64) (*domain.Order, error)

	// GetByIdempotencyKey retrieves the order recorded for a key, or a
	// domain.ErrNotFound wrap when the key is unknown.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)

	// ListBySession returns a session's orders, optionally bounded to the
	// half-open interval [from, to).
	ListBySession(ctx context.Context, sessionID string, from, to *time.Time) ([]domain.Order, error)

	// LastBySession returns the session's most recent order.
	LastBySession(ctx context.Context, sessionID string) (*domain.Order, error)

	// ListRange returns all orders in [from, to) across sessions.
	ListRange(ctx context.Context, from, to *time.Time) ([]domain.Order, error)

	// Close releases the underlying resources.
	Close() error
}
