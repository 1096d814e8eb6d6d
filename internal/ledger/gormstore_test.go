package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxshop/merchantd/internal/domain"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestGormStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrator().AutoMigrate(&domain.Order{}))
	return NewGormStore(db)
}

func TestGormStoreAppendAndGet(t *testing.T) {
	store := newTestGormStore(t)
	ctx := context.Background()

	order := boltOrderFixture(1, "s1", time.Now().UTC())
	order.IdempotencyKey = "key-1"
	order.Fingerprint = "fp-1"
	require.NoError(t, store.Append(ctx, order))

	got, err := store.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, int64(800), got.Total)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "mug-001", got.Items[0].ProductID)
	assert.Equal(t, "fp-1", got.Fingerprint)

	_, err = store.GetByID(ctx, 42)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGormStoreIdempotencyKeyLookup(t *testing.T) {
	store := newTestGormStore(t)
	ctx := context.Background()

	order := boltOrderFixture(1, "s1", time.Now().UTC())
	order.IdempotencyKey = "key-1"
	require.NoError(t, store.Append(ctx, order))

	got, err := store.GetByIdempotencyKey(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)

	_, err = store.GetByIdempotencyKey(ctx, "unknown")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGormStoreListBySessionDescendingAndRange(t *testing.T) {
	store := newTestGormStore(t)
	ctx := context.Background()

	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	require.NoError(t, store.Append(ctx, boltOrderFixture(1, "s1", t1)))
	require.NoError(t, store.Append(ctx, boltOrderFixture(2, "s1", t2)))
	require.NoError(t, store.Append(ctx, boltOrderFixture(3, "s2", t2)))

	orders, err := store.ListBySession(ctx, "s1", nil, nil)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, int64(2), orders[0].ID)

	orders, err = store.ListBySession(ctx, "s1", &t1, &t2)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(1), orders[0].ID)

	last, err := store.LastBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), last.ID)

	_, err = store.LastBySession(ctx, "nobody")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGormStoreLedgerRoundTrip(t *testing.T) {
	store := newTestGormStore(t)
	l := newTestLedger(t, store)

	order, err := l.CreateOrder(context.Background(), CreateOrderInput{
		SessionID:      "s1",
		Items:          []ItemInput{{ProductID: "mug-001", Quantity: 2}},
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)

	replay, err := l.CreateOrder(context.Background(), CreateOrderInput{
		SessionID:      "s1",
		Items:          []ItemInput{{ProductID: "mug-001", Quantity: 2}},
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, order.ID, replay.ID)

	orders, err := store.ListBySession(context.Background(), "s1", nil, nil)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}
