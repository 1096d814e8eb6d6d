package ledger

import (
	"context"
	"encoding/binary"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/voxshop/merchantd/internal/domain"
	bolt "go.etcd.io/bbolt"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	bucketOrders = []byte("orders")
	bucketIdem   = []byte("idempotency")
)

// BoltStore is the file-backed Store implementation: an append-only record
// store in a single bbolt file, keyed by big-endian order id so that a
// cursor walk yields creation order. Used when no database is configured.
type BoltStore struct {
	db *bolt.DB
}

// boltRecord wraps an order with the idempotency fingerprint, which is
// excluded from the order's public JSON form.
type boltRecord struct {
	Order       domain.Order `json:"order"`
	Fingerprint string       `json:"fingerprint,omitempty"`
}

// NewBoltStore opens (or creates) the order journal file.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open order journal %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketOrders); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketIdem)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "init order journal buckets")
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Append(ctx context.Context, order *domain.Order) error {
	data, err := json.Marshal(boltRecord{Order: *order, Fingerprint: order.Fingerprint})
	if err != nil {
		return errors.Wrap(err, "encode order")
	}
	key := orderKey(order.ID)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketOrders).Put(key, data); err != nil {
			return err
		}
		if order.IdempotencyKey != "" {
			return tx.Bucket(bucketIdem).Put([]byte(order.IdempotencyKey), key)
		}
		return nil
	})
}

func (s *BoltStore) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var order *domain.Order
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketOrders).Get(orderKey(id))
		if data == nil {
			return errors.Wrapf(domain.ErrNotFound, "order %d", id)
		}
		o, err := decodeRecord(data)
		order = o
		return err
	})
	return order, err
}

func (s *BoltStore) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	var order *domain.Order
	err := s.db.View(func(tx *bolt.Tx) error {
		ref := tx.Bucket(bucketIdem).Get([]byte(key))
		if ref == nil {
			return errors.Wrapf(domain.ErrNotFound, "idempotency key %s", key)
		}
		data := tx.Bucket(bucketOrders).Get(ref)
		if data == nil {
			return errors.Wrapf(domain.ErrNotFound, "idempotency key %s", key)
		}
		o, err := decodeRecord(data)
		order = o
		return err
	})
	return order, err
}

func (s *BoltStore) ListBySession(ctx context.Context, sessionID string, from, to *time.Time) ([]domain.Order, error) {
	return s.scan(func(o *domain.Order) bool {
		return o.SessionID == sessionID && inRange(o.CreatedAt, from, to)
	})
}

func (s *BoltStore) LastBySession(ctx context.Context, sessionID string) (*domain.Order, error) {
	orders, err := s.ListBySession(ctx, sessionID, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, errors.Wrapf(domain.ErrNotFound, "no orders for session %s", sessionID)
	}
	return &orders[0], nil
}

func (s *BoltStore) ListRange(ctx context.Context, from, to *time.Time) ([]domain.Order, error) {
	return s.scan(func(o *domain.Order) bool {
		return inRange(o.CreatedAt, from, to)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// scan walks the full journal and returns matches ordered by created_at
// descending. The journal is per-merchant and small; no secondary index.
func (s *BoltStore) scan(match func(*domain.Order) bool) ([]domain.Order, error) {
	var orders []domain.Order
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOrders).ForEach(func(_, data []byte) error {
			o, err := decodeRecord(data)
			if err != nil {
				return err
			}
			if match(o) {
				orders = append(orders, *o)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func decodeRecord(data []byte) (*domain.Order, error) {
	var rec boltRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, "decode order record")
	}
	rec.Order.Fingerprint = rec.Fingerprint
	return &rec.Order, nil
}

func orderKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && !t.Before(*to) {
		return false
	}
	return true
}
