package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pkg/errors"
	"github.com/voxshop/merchantd/internal/catalog"
	"github.com/voxshop/merchantd/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultAppendRetries = 3
	defaultRetryBackoff  = 100 * time.Millisecond
)

// Notifier receives successfully recorded orders. Delivery is best-effort
// and must never block order creation.
type Notifier interface {
	OrderCreated(order domain.Order)
}

// ItemInput references a catalog product by id; the price is always
// snapshotted from the catalog, never taken from the caller.
type ItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderInput is one order creation request. FromCart marks requests
// whose items were snapshotted from the session cart; their idempotent
// identity is the checkout itself rather than the item list, so a retry
// after the cart was cleared still replays the original order.
type CreateOrderInput struct {
	SessionID      string
	Items          []ItemInput
	FromCart       bool
	Buyer          *domain.Buyer
	IdempotencyKey string
}

// Ledger creates orders with exactly-once semantics under client retries
// and appends them to the durable store.
type Ledger struct {
	catalog  *catalog.Store
	store    Store
	node     *snowflake.Node
	notifier Notifier

	appendRetries int
	retryBackoff  time.Duration
	now           func() time.Time

	// serializes the idempotency check against the append
	mu sync.Mutex
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithNotifier attaches an order.created notifier.
func WithNotifier(n Notifier) Option {
	return func(l *Ledger) { l.notifier = n }
}

// WithAppendRetries bounds the internal durable-append retries.
func WithAppendRetries(n int, backoff time.Duration) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.appendRetries = n
		}
		if backoff > 0 {
			l.retryBackoff = backoff
		}
	}
}

// WithClock overrides the creation timestamp source (tests).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates an order ledger over the given catalog and store.
func New(store *catalog.Store, orders Store, node *snowflake.Node, opts ...Option) *Ledger {
	l := &Ledger{
		catalog:       store,
		store:         orders,
		node:          node,
		appendRetries: defaultAppendRetries,
		retryBackoff:  defaultRetryBackoff,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Store exposes the underlying order store for read-only consumers.
func (l *Ledger) Store() Store {
	return l.store
}

// CreateOrder validates and records one order. Replaying a request with a
// known idempotency key and identical payload returns the original order
// without a second write; a mismatched payload is a conflict. Any failure
// leaves the ledger unchanged.
func (l *Ledger) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	fingerprint := payloadFingerprint(in)

	l.mu.Lock()
	defer l.mu.Unlock()

	if in.IdempotencyKey != "" {
		existing, err := l.store.GetByIdempotencyKey(ctx, in.IdempotencyKey)
		if err == nil {
			if existing.Fingerprint != fingerprint {
				return nil, errors.Wrapf(domain.ErrConflict,
					"idempotency key %s reused with a different payload", in.IdempotencyKey)
			}
			zap.L().Info("idempotent order replay",
				zap.String("idempotency_key", in.IdempotencyKey),
				zap.Int64("order_id", existing.ID))
			return existing, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, errors.Wrapf(domain.ErrPersistence, "idempotency lookup: %s", err.Error())
		}
	}

	items, total, currency, err := l.snapshotItems(in.Items)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:             l.node.Generate().Int64(),
		SessionID:      in.SessionID,
		Items:          items,
		Total:          total,
		Currency:       currency,
		Status:         domain.OrderStatusConfirmed,
		Buyer:          in.Buyer,
		IdempotencyKey: in.IdempotencyKey,
		Fingerprint:    fingerprint,
		CreatedAt:      l.now(),
	}

	if err := l.appendWithRetry(ctx, order); err != nil {
		return nil, err
	}

	zap.L().Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("session_id", order.SessionID),
		zap.Int64("total", order.Total),
		zap.String("currency", order.Currency))

	if l.notifier != nil {
		l.notifier.OrderCreated(*order)
	}
	return order, nil
}

// snapshotItems validates the request lines against the catalog and captures
// unit amounts from the current prices. Order totals are exact sums in a
// single currency.
func (l *Ledger) snapshotItems(inputs []ItemInput) ([]domain.LineItem, int64, string, error) {
	if len(inputs) == 0 {
		return nil, 0, "", errors.Wrap(domain.ErrValidation, "order has no line items")
	}
	items := make([]domain.LineItem, 0, len(inputs))
	var total int64
	var currency string
	for _, in := range inputs {
		if strings.TrimSpace(in.ProductID) == "" {
			return nil, 0, "", errors.Wrap(domain.ErrValidation, "line item without product_id")
		}
		if in.Quantity < 1 {
			return nil, 0, "", errors.Wrapf(domain.ErrValidation,
				"product %s quantity %d must be >= 1", in.ProductID, in.Quantity)
		}
		product, err := l.catalog.Lookup(in.ProductID)
		if err != nil {
			return nil, 0, "", err
		}
		if currency == "" {
			currency = product.Currency
		} else if currency != product.Currency {
			return nil, 0, "", errors.Wrapf(domain.ErrCurrencyMismatch,
				"%s vs %s", currency, product.Currency)
		}
		li := domain.LineItem{
			ProductID:  product.ID,
			Name:       product.Name,
			Quantity:   in.Quantity,
			UnitAmount: product.Price,
			Currency:   product.Currency,
		}
		total += li.LineTotal()
		items = append(items, li)
	}
	return items, total, currency, nil
}

// appendWithRetry performs the durable append with bounded linear backoff.
// On exhaustion the error surfaces as ErrPersistence and no partial state is
// left behind.
func (l *Ledger) appendWithRetry(ctx context.Context, order *domain.Order) error {
	var lastErr error
	for attempt := 1; attempt <= l.appendRetries; attempt++ {
		lastErr = l.store.Append(ctx, order)
		if lastErr == nil {
			return nil
		}
		zap.L().Warn("order append failed",
			zap.Int64("order_id", order.ID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
		if attempt == l.appendRetries {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Wrapf(domain.ErrPersistence, "append aborted: %s", ctx.Err().Error())
		case <-time.After(l.retryBackoff * time.Duration(attempt)):
		}
	}
	return errors.Wrapf(domain.ErrPersistence, "append order %d: %s", order.ID, lastErr.Error())
}

// payloadFingerprint hashes the request identity for idempotency conflict
// detection. From-cart checkouts hash the checkout request, not the
// snapshotted items; see CreateOrderInput.
func payloadFingerprint(in CreateOrderInput) string {
	type fpPayload struct {
		SessionID string        `json:"session_id"`
		Items     []ItemInput   `json:"items,omitempty"`
		FromCart  bool          `json:"from_cart,omitempty"`
		Buyer     *domain.Buyer `json:"buyer,omitempty"`
	}
	p := fpPayload{SessionID: in.SessionID, FromCart: in.FromCart, Buyer: in.Buyer}
	if !in.FromCart {
		p.Items = in.Items
	}
	data, _ := json.Marshal(p)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
