package notify

import (
	"fmt"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/guonaihong/gout"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/voxshop/merchantd/config"
	"github.com/voxshop/merchantd/internal/domain"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// TopicOrderCreated is published once per durably recorded order.
const TopicOrderCreated = "order.created"

const (
	poolSize       = 8
	webhookTimeout = 5 * time.Second
)

// Notifier fans out order.created events to a webhook and a buyer
// confirmation email. Delivery is best-effort: failures are logged and never
// surface to the order flow.
type Notifier struct {
	bus  EventBus.Bus
	pool *ants.Pool

	webhookURL string
	dialer     *gomail.Dialer
	emailFrom  string
}

// New creates a notifier from config. Webhook and email channels are each
// enabled only when configured.
func New(cfg config.NotifyConfig) (*Notifier, error) {
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, errors.Wrap(err, "create notify pool")
	}
	n := &Notifier{
		bus:        EventBus.New(),
		pool:       pool,
		webhookURL: cfg.WebhookURL,
		emailFrom:  cfg.EmailFrom,
	}
	if cfg.SMTPHost != "" && cfg.EmailFrom != "" {
		n.dialer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPasswd)
	}
	if err := n.bus.Subscribe(TopicOrderCreated, n.dispatch); err != nil {
		pool.Release()
		return nil, errors.Wrap(err, "subscribe order.created")
	}
	return n, nil
}

// OrderCreated publishes the order to all subscribers.
func (n *Notifier) OrderCreated(order domain.Order) {
	n.bus.Publish(TopicOrderCreated, order)
}

// Subscribe attaches an extra order.created handler (used by metrics and
// tests).
func (n *Notifier) Subscribe(fn func(order domain.Order)) error {
	return n.bus.Subscribe(TopicOrderCreated, fn)
}

// Close drains the worker pool.
func (n *Notifier) Close() {
	n.pool.Release()
}

// dispatch hands delivery work to the bounded pool so publishers never
// block on network I/O.
func (n *Notifier) dispatch(order domain.Order) {
	if n.webhookURL != "" {
		n.submit(func() { n.deliverWebhook(order) })
	}
	if n.dialer != nil && order.Buyer != nil && order.Buyer.Email != "" {
		n.submit(func() { n.deliverEmail(order) })
	}
}

func (n *Notifier) submit(task func()) {
	if err := n.pool.Submit(task); err != nil {
		zap.L().Warn("notify pool rejected task", zap.Error(err))
	}
}

func (n *Notifier) deliverWebhook(order domain.Order) {
	err := gout.POST(n.webhookURL).
		SetJSON(order).
		SetTimeout(webhookTimeout).
		Do()
	if err != nil {
		zap.L().Warn("order webhook delivery failed",
			zap.Int64("order_id", order.ID),
			zap.String("url", n.webhookURL),
			zap.Error(err))
		return
	}
	zap.L().Debug("order webhook delivered", zap.Int64("order_id", order.ID))
}

func (n *Notifier) deliverEmail(order domain.Order) {
	m := gomail.NewMessage()
	m.SetHeader("From", n.emailFrom)
	m.SetHeader("To", order.Buyer.Email)
	m.SetHeader("Subject", fmt.Sprintf("Order %d confirmed", order.ID))
	m.SetBody("text/plain", fmt.Sprintf(
		"Thank you for your order.\n\nOrder ID: %d\nItems: %d\nTotal: %d %s\n",
		order.ID, order.ItemCount(), order.Total, order.Currency))
	if err := n.dialer.DialAndSend(m); err != nil {
		zap.L().Warn("order confirmation email failed",
			zap.Int64("order_id", order.ID),
			zap.String("to", order.Buyer.Email),
			zap.Error(err))
		return
	}
	zap.L().Debug("order confirmation email sent", zap.Int64("order_id", order.ID))
}
