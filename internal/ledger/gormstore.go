package ledger

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/voxshop/merchantd/internal/domain"
	"gorm.io/gorm"
)

// GormStore is the database-backed Store implementation.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GORM-based order store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Append(ctx context.Context, order *domain.Order) error {
	return s.db.WithContext(ctx).Create(order).Error
}

func (s *GormStore) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var order domain.Order
	err := s.db.WithContext(ctx).First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(domain.ErrNotFound, "order %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *GormStore) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	var order domain.Order
	err := s.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(domain.ErrNotFound, "idempotency key %s", key)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *GormStore) ListBySession(ctx context.Context, sessionID string, from, to *time.Time) ([]domain.Order, error) {
	tx := s.db.WithContext(ctx).Where("session_id = ?", sessionID)
	tx = rangeScope(tx, from, to)
	var orders []domain.Order
	if err := tx.Order("created_at DESC, id DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *GormStore) LastBySession(ctx context.Context, sessionID string) (*domain.Order, error) {
	var order domain.Order
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(domain.ErrNotFound, "no orders for session %s", sessionID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *GormStore) ListRange(ctx context.Context, from, to *time.Time) ([]domain.Order, error) {
	tx := rangeScope(s.db.WithContext(ctx), from, to)
	var orders []domain.Order
	if err := tx.Order("created_at DESC, id DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *GormStore) Close() error {
	return nil
}

// rangeScope applies the half-open [from, to) bound.
func rangeScope(tx *gorm.DB, from, to *time.Time) *gorm.DB {
	if from != nil {
		tx = tx.Where("created_at >= ?", *from)
	}
	if to != nil {
		tx = tx.Where("created_at < ?", *to)
	}
	return tx
}
