package merchantapi

import (
	"context"

	"github.com/pkg/errors"
	"github.com/voxshop/merchantd/internal/cart"
	"github.com/voxshop/merchantd/internal/catalog"
	"github.com/voxshop/merchantd/internal/domain"
	"github.com/voxshop/merchantd/internal/ledger"
	"github.com/voxshop/merchantd/internal/query"
)

// API is the function-call surface consumed by the conversational layer. It
// composes the catalog, cart, ledger and query components and performs
// argument marshaling only; all invariants live in those components.
type API struct {
	catalog *catalog.Store
	carts   *cart.Manager
	orders  *ledger.Ledger
	history *query.Engine
}

// New composes the merchant API from its four components.
func New(store *catalog.Store, carts *cart.Manager, orders *ledger.Ledger, history *query.Engine) *API {
	return &API{catalog: store, carts: carts, orders: orders, history: history}
}

// CreateOrderRequest is one create_order call. Exactly one of Items or
// FromCart must be provided.
type CreateOrderRequest struct {
	SessionID      string
	Items          []ledger.ItemInput
	FromCart       bool
	Buyer          *domain.Buyer
	IdempotencyKey string
}

// ListProducts returns catalog entries satisfying the filter.
func (a *API) ListProducts(filter catalog.Filter) []domain.Product {
	return a.catalog.List(filter)
}

// GetProduct returns a single catalog entry.
func (a *API) GetProduct(productID string) (domain.Product, error) {
	return a.catalog.Lookup(productID)
}

// AddToCart adds quantity units of a product to the session cart.
func (a *API) AddToCart(sessionID, productID string, quantity int) (domain.CartView, error) {
	return a.carts.AddItem(sessionID, productID, quantity)
}

// RemoveFromCart removes units of a product from the session cart;
// quantity <= 0 removes the whole line.
func (a *API) RemoveFromCart(sessionID, productID string, quantity int) (domain.CartView, error) {
	return a.carts.RemoveItem(sessionID, productID, quantity)
}

// ViewCart returns the session's cart snapshot.
func (a *API) ViewCart(sessionID string) domain.CartView {
	return a.carts.View(sessionID)
}

// CreateOrder records an order from explicit line items or from the session
// cart. A from-cart checkout runs under the session's cart lock: the snapshot,
// the durable append and the clear form one step no concurrent cart mutation
// can interleave with, and the cart is cleared only after the order is
// durably recorded. Direct line-item orders never touch cart state.
func (a *API) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	in := ledger.CreateOrderInput{
		SessionID:      req.SessionID,
		Items:          req.Items,
		FromCart:       req.FromCart,
		Buyer:          req.Buyer,
		IdempotencyKey: req.IdempotencyKey,
	}
	if !req.FromCart {
		return a.orders.CreateOrder(ctx, in)
	}
	if len(req.Items) > 0 {
		return nil, errors.Wrap(domain.ErrValidation, "line_items and from_cart are mutually exclusive")
	}
	var order *domain.Order
	err := a.carts.Checkout(req.SessionID, func(items []domain.LineItem) error {
		in.Items = itemInputs(items)
		var err error
		order, err = a.orders.CreateOrder(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetLastOrder returns the session's most recent order.
func (a *API) GetLastOrder(ctx context.Context, sessionID string) (*domain.Order, error) {
	return a.history.GetLastOrder(ctx, sessionID)
}

// ListOrders returns the session's order history, newest first.
func (a *API) ListOrders(ctx context.Context, sessionID string, r *query.TimeRange) ([]domain.Order, error) {
	return a.history.ListOrders(ctx, sessionID, r)
}

// AggregateTotals sums the session's order totals over the range.
func (a *API) AggregateTotals(ctx context.Context, sessionID string, r *query.TimeRange) (query.Totals, error) {
	return a.history.AggregateTotals(ctx, sessionID, r)
}

// TotalsSummary returns order-value statistics for the session.
func (a *API) TotalsSummary(ctx context.Context, sessionID string, r *query.TimeRange) (query.Summary, error) {
	return a.history.TotalsSummary(ctx, sessionID, r)
}

func itemInputs(items []domain.LineItem) []ledger.ItemInput {
	inputs := make([]ledger.ItemInput, 0, len(items))
	for _, li := range items {
		inputs = append(inputs, ledger.ItemInput{ProductID: li.ProductID, Quantity: li.Quantity})
	}
	return inputs
}
