package metrics

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
	"github.com/pkg/errors"
)

// Metric names recorded by the commerce core.
const (
	MetricOrdersCreated = "orders_created"
	MetricOrderAmount   = "order_amount"
	MetricCartsEvicted  = "carts_evicted"
)

var (
	mu      sync.RWMutex
	storage tstorage.Storage
)

// InitMetrics opens the local time-series store under <workdir>/data/metrics.
func InitMetrics(workdir string) error {
	mu.Lock()
	defer mu.Unlock()
	if storage != nil {
		return nil
	}
	s, err := tstorage.NewStorage(
		tstorage.WithDataPath(filepath.Join(workdir, "data", "metrics")),
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithPartitionDuration(24*time.Hour),
	)
	if err != nil {
		return errors.Wrap(err, "init metrics storage")
	}
	storage = s
	return nil
}

// RecordOrderCreated records one created order and its total amount.
func RecordOrderCreated(total int64, currency string) {
	now := time.Now().Unix()
	insert([]tstorage.Row{
		{Metric: MetricOrdersCreated, DataPoint: tstorage.DataPoint{Timestamp: now, Value: 1}},
		{
			Metric:    MetricOrderAmount,
			Labels:    []tstorage.Label{{Name: "currency", Value: currency}},
			DataPoint: tstorage.DataPoint{Timestamp: now, Value: float64(total)},
		},
	})
}

// Count records a counter increment for the named metric.
func Count(metric string, n int) {
	insert([]tstorage.Row{
		{Metric: metric, DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: float64(n)}},
	})
}

// Select returns the stored points for a metric in [start, end].
func Select(metric string, start, end int64) ([]*tstorage.DataPoint, error) {
	mu.RLock()
	defer mu.RUnlock()
	if storage == nil {
		return nil, nil
	}
	points, err := storage.Select(metric, nil, start, end)
	if errors.Is(err, tstorage.ErrNoDataPoints) {
		return nil, nil
	}
	return points, err
}

// Close flushes and closes the metrics store.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if storage == nil {
		return nil
	}
	err := storage.Close()
	storage = nil
	return err
}

func insert(rows []tstorage.Row) {
	mu.RLock()
	defer mu.RUnlock()
	if storage == nil {
		return
	}
	_ = storage.InsertRows(rows)
}
