package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxshop/merchantd/internal/catalog"
	"github.com/voxshop/merchantd/internal/domain"
)

// mockStore keeps orders in memory and can fail appends on demand.
type mockStore struct {
	m          sync.Mutex
	orders     []domain.Order
	appendErr  error
	failFirstN int
	appends    int
}

func (s *mockStore) Append(_ context.Context, order *domain.Order) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.appends++
	if s.appendErr != nil {
		return s.appendErr
	}
	if s.failFirstN > 0 {
		s.failFirstN--
		return errors.New("transient append failure")
	}
	s.orders = append(s.orders, *order)
	return nil
}

func (s *mockStore) GetByID(_ context.Context, id int64) (*domain.Order, error) {
	s.m.Lock()
	defer s.m.Unlock()
	for i := range s.orders {
		if s.orders[i].ID == id {
			o := s.orders[i]
			return &o, nil
		}
	}
	return nil, errors.Wrapf(domain.ErrNotFound, "order %d", id)
}

func (s *mockStore) GetByIdempotencyKey(_ context.Context, key string) (*domain.Order, error) {
	s.m.Lock()
	defer s.m.Unlock()
	for i := range s.orders {
		if s.orders[i].IdempotencyKey == key {
			o := s.orders[i]
			return &o, nil
		}
	}
	return nil, errors.Wrapf(domain.ErrNotFound, "idempotency key %s", key)
}

func (s *mockStore) ListBySession(_ context.Context, sessionID string, from, to *time.Time) ([]domain.Order, error) {
	s.m.Lock()
	defer s.m.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if o.SessionID == sessionID && inRange(o.CreatedAt, from, to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *mockStore) LastBySession(ctx context.Context, sessionID string) (*domain.Order, error) {
	orders, _ := s.ListBySession(ctx, sessionID, nil, nil)
	if len(orders) == 0 {
		return nil, errors.Wrapf(domain.ErrNotFound, "no orders for session %s", sessionID)
	}
	o := orders[len(orders)-1]
	return &o, nil
}

func (s *mockStore) ListRange(_ context.Context, from, to *time.Time) ([]domain.Order, error) {
	s.m.Lock()
	defer s.m.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if inRange(o.CreatedAt, from, to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *mockStore) Close() error { return nil }

func (s *mockStore) count() int {
	s.m.Lock()
	defer s.m.Unlock()
	return len(s.orders)
}

type mockNotifier struct {
	m      sync.Mutex
	orders []domain.Order
}

func (n *mockNotifier) OrderCreated(order domain.Order) {
	n.m.Lock()
	defer n.m.Unlock()
	n.orders = append(n.orders, order)
}

func testCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.NewStore([]domain.Product{
		{ID: "mug-001", Name: "Mug", Price: 800, Currency: "INR", Category: "mug"},
		{ID: "hoodie-001", Name: "Hoodie", Price: 2500, Currency: "INR", Category: "hoodie"},
		{ID: "cap-usd", Name: "Cap", Price: 1500, Currency: "USD", Category: "cap"},
	})
	require.NoError(t, err)
	return store
}

func newTestLedger(t *testing.T, store Store, opts ...Option) *Ledger {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return New(testCatalog(t), store, node, opts...)
}

func TestCreateOrderSnapshotsAndSums(t *testing.T) {
	store := &mockStore{}
	l := newTestLedger(t, store)

	order, err := l.CreateOrder(context.Background(), CreateOrderInput{
		SessionID: "s1",
		Items: []ItemInput{
			{ProductID: "mug-001", Quantity: 2},
			{ProductID: "hoodie-001", Quantity: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(800*2+2500), order.Total)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, domain.OrderStatusConfirmed, order.Status)
	assert.NotZero(t, order.ID)
	assert.False(t, order.CreatedAt.IsZero())
	require.Len(t, order.Items, 2)
	assert.Equal(t, int64(800), order.Items[0].UnitAmount)
	assert.Equal(t, 1, store.count())
}

func TestCreateOrderValidation(t *testing.T) {
	store := &mockStore{}
	l := newTestLedger(t, store)
	ctx := context.Background()

	_, err := l.CreateOrder(ctx, CreateOrderInput{SessionID: "s1"})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = l.CreateOrder(ctx, CreateOrderInput{
		SessionID: "s1",
		Items:     []ItemInput{{ProductID: "mug-001", Quantity: 0}},
	})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = l.CreateOrder(ctx, CreateOrderInput{
		SessionID: "s1",
		Items:     []ItemInput{{ProductID: "ghost", Quantity: 1}},
	})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	// no partial writes on any failure
	assert.Zero(t, store.count())
}

func TestCreateOrderCurrencyMismatch(t *testing.T) {
	store := &mockStore{}
	l := newTestLedger(t, store)

	_, err := l.CreateOrder(context.Background(), CreateOrderInput{
		SessionID: "s1",
		Items: []ItemInput{
			{ProductID: "mug-001", Quantity: 1},
			{ProductID: "cap-usd", Quantity: 1},
		},
	})
	assert.True(t, errors.Is(err, domain.ErrCurrencyMismatch))
	assert.Zero(t, store.count())
}

func TestCreateOrderIdempotentReplay(t *testing.T) {
	store := &mockStore{}
	l := newTestLedger(t, store)
	ctx := context.Background()

	in := CreateOrderInput{
		SessionID:      "s1",
		Items:          []ItemInput{{ProductID: "mug-001", Quantity: 2}},
		IdempotencyKey: "key-1",
	}
	first, err := l.CreateOrder(ctx, in)
	require.NoError(t, err)

	second, err := l.CreateOrder(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.count())
}

func TestCreateOrderIdempotencyConflict(t *testing.T) {
	store := &mockStore{}
	l := newTestLedger(t, store)
	ctx := context.Background()

	_, err := l.CreateOrder(ctx, CreateOrderInput{
		SessionID:      "s1",
		Items:          []ItemInput{{ProductID: "mug-001", Quantity: 2}},
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)

	_, err = l.CreateOrder(ctx, CreateOrderInput{
		SessionID:      "s1",
		Items:          []ItemInput{{ProductID: "mug-001", Quantity: 3}},
		IdempotencyKey: "key-1",
	})
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.Equal(t, 1, store.count())
}

func TestFromCartReplayIgnoresItemDrift(t *testing.T) {
	store := &mockStore{}
	l := newTestLedger(t, store)
	ctx := context.Background()

	first, err := l.CreateOrder(ctx, CreateOrderInput{
		SessionID:      "s1",
		Items:          []ItemInput{{ProductID: "mug-001", Quantity: 2}},
		FromCart:       true,
		IdempotencyKey: "checkout-1",
	})
	require.NoError(t, err)

	// retry after the cart was cleared: no items, same key
	second, err := l.CreateOrder(ctx, CreateOrderInput{
		SessionID:      "s1",
		FromCart:       true,
		IdempotencyKey: "checkout-1",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.count())
}

func TestAppendRetriesTransientFailures(t *testing.T) {
	store := &mockStore{failFirstN: 2}
	l := newTestLedger(t, store, WithAppendRetries(3, time.Millisecond))

	order, err := l.CreateOrder(context.Background(), CreateOrderInput{
		SessionID: "s1",
		Items:     []ItemInput{{ProductID: "mug-001", Quantity: 1}},
	})
	require.NoError(t, err)
	assert.NotNil(t, order)
	assert.Equal(t, 3, store.appends)
	assert.Equal(t, 1, store.count())
}

func TestAppendExhaustionSurfacesPersistenceError(t *testing.T) {
	store := &mockStore{appendErr: errors.New("disk full")}
	notifier := &mockNotifier{}
	l := newTestLedger(t, store, WithAppendRetries(2, time.Millisecond), WithNotifier(notifier))

	_, err := l.CreateOrder(context.Background(), CreateOrderInput{
		SessionID: "s1",
		Items:     []ItemInput{{ProductID: "mug-001", Quantity: 1}},
	})
	assert.True(t, errors.Is(err, domain.ErrPersistence))
	assert.Equal(t, 2, store.appends)
	assert.Zero(t, store.count())
	assert.Empty(t, notifier.orders)
}

func TestNotifierReceivesCreatedOrders(t *testing.T) {
	store := &mockStore{}
	notifier := &mockNotifier{}
	l := newTestLedger(t, store, WithNotifier(notifier))

	order, err := l.CreateOrder(context.Background(), CreateOrderInput{
		SessionID: "s1",
		Items:     []ItemInput{{ProductID: "mug-001", Quantity: 1}},
	})
	require.NoError(t, err)
	require.Len(t, notifier.orders, 1)
	assert.Equal(t, order.ID, notifier.orders[0].ID)
}

func TestOrderIDsUniqueAndOrderedUnderConcurrency(t *testing.T) {
	store := &mockStore{}
	l := newTestLedger(t, store)

	var wg sync.WaitGroup
	ids := make(chan int64, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := l.CreateOrder(context.Background(), CreateOrderInput{
				SessionID: "s1",
				Items:     []ItemInput{{ProductID: "mug-001", Quantity: 1}},
			})
			assert.NoError(t, err)
			ids <- order.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate order id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, 100)
}
