package notify

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxshop/merchantd/config"
	"github.com/voxshop/merchantd/internal/domain"
)

func testOrder() domain.Order {
	return domain.Order{
		ID:        42,
		SessionID: "s1",
		Items: []domain.LineItem{
			{ProductID: "mug-001", Quantity: 2, UnitAmount: 800, Currency: "INR"},
		},
		Total:     1600,
		Currency:  "INR",
		Status:    domain.OrderStatusConfirmed,
		CreatedAt: time.Now(),
	}
}

func TestSubscriberReceivesPublishedOrders(t *testing.T) {
	n, err := New(config.NotifyConfig{})
	require.NoError(t, err)
	defer n.Close()

	var m sync.Mutex
	var got []domain.Order
	require.NoError(t, n.Subscribe(func(order domain.Order) {
		m.Lock()
		defer m.Unlock()
		got = append(got, order)
	}))

	n.OrderCreated(testOrder())

	require.Eventually(t, func() bool {
		m.Lock()
		defer m.Unlock()
		return len(got) == 1
	}, time.Second, 10*time.Millisecond)
	m.Lock()
	assert.Equal(t, int64(42), got[0].ID)
	m.Unlock()
}

func TestWebhookDelivery(t *testing.T) {
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, err := New(config.NotifyConfig{WebhookURL: srv.URL})
	require.NoError(t, err)
	defer n.Close()

	n.OrderCreated(testOrder())

	select {
	case body := <-received:
		assert.Contains(t, string(body), `"session_id":"s1"`)
		assert.Contains(t, string(body), `"total":1600`)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was never called")
	}
}

func TestWebhookFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n, err := New(config.NotifyConfig{WebhookURL: srv.URL})
	require.NoError(t, err)
	defer n.Close()

	// must not panic or block the publisher
	n.OrderCreated(testOrder())
	time.Sleep(50 * time.Millisecond)
}

func TestNoChannelsConfigured(t *testing.T) {
	n, err := New(config.NotifyConfig{})
	require.NoError(t, err)
	defer n.Close()

	n.OrderCreated(testOrder())
}
