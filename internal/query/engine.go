package query

import (
	"context"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/voxshop/merchantd/internal/domain"
	"github.com/voxshop/merchantd/internal/ledger"
)

// TimeRange bounds a history query to the half-open interval [From, To).
// A nil bound is open on that side.
type TimeRange struct {
	From *time.Time
	To   *time.Time
}

func (r *TimeRange) bounds() (from, to *time.Time) {
	if r == nil {
		return nil, nil
	}
	return r.From, r.To
}

// Totals is the aggregate over a matched order set. Aggregation assumes
// single-currency orders; no conversion is performed.
type Totals struct {
	Count    int    `json:"count"`
	Total    int64  `json:"total"`
	Currency string `json:"currency,omitempty"`
}

// Summary extends Totals with order-value statistics.
type Summary struct {
	Totals
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// Engine answers read-only history and aggregation queries over the order
// ledger. It never mutates ledger or cart state.
type Engine struct {
	store ledger.Store
}

// NewEngine creates a query engine over the given order store.
func NewEngine(store ledger.Store) *Engine {
	return &Engine{store: store}
}

// GetLastOrder returns the session's order with the latest created_at.
func (e *Engine) GetLastOrder(ctx context.Context, sessionID string) (*domain.Order, error) {
	return e.store.LastBySession(ctx, sessionID)
}

// ListOrders returns the session's orders by created_at descending,
// optionally bounded by the range.
func (e *Engine) ListOrders(ctx context.Context, sessionID string, r *TimeRange) ([]domain.Order, error) {
	from, to := r.bounds()
	return e.store.ListBySession(ctx, sessionID, from, to)
}

// AggregateTotals sums order totals across the matched set. A matched set
// spanning currencies is a currency mismatch error.
func (e *Engine) AggregateTotals(ctx context.Context, sessionID string, r *TimeRange) (Totals, error) {
	orders, err := e.ListOrders(ctx, sessionID, r)
	if err != nil {
		return Totals{}, err
	}
	return sumOrders(orders)
}

// TotalsSummary computes order-value statistics (mean, median, max) over the
// matched set in addition to the plain aggregate. The matched set is fetched
// once and reused for both.
func (e *Engine) TotalsSummary(ctx context.Context, sessionID string, r *TimeRange) (Summary, error) {
	orders, err := e.ListOrders(ctx, sessionID, r)
	if err != nil {
		return Summary{}, err
	}
	totals, err := sumOrders(orders)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{Totals: totals}
	if totals.Count == 0 {
		return s, nil
	}
	values := make([]float64, 0, len(orders))
	for _, o := range orders {
		values = append(values, float64(o.Total))
	}
	if s.Mean, err = stats.Mean(values); err != nil {
		return Summary{}, err
	}
	if s.Median, err = stats.Median(values); err != nil {
		return Summary{}, err
	}
	if s.Max, err = stats.Max(values); err != nil {
		return Summary{}, err
	}
	return s, nil
}

func sumOrders(orders []domain.Order) (Totals, error) {
	var t Totals
	for _, o := range orders {
		if t.Currency == "" {
			t.Currency = o.Currency
		} else if t.Currency != o.Currency {
			return Totals{}, errors.Wrapf(domain.ErrCurrencyMismatch,
				"aggregation spans %s and %s", t.Currency, o.Currency)
		}
		t.Count++
		t.Total += o.Total
	}
	return t, nil
}
