package cart

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/voxshop/merchantd/internal/catalog"
	"github.com/voxshop/merchantd/internal/domain"
	"go.uber.org/zap"
)

// Manager keeps one mutable cart per session. Mutations on a session are
// serialized by a session-scoped mutex; different sessions run in parallel
// with no shared mutable state beyond the session table itself.
type Manager struct {
	catalog *catalog.Store
	idleTTL time.Duration

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	mu      sync.Mutex
	items   []domain.LineItem
	touched time.Time
}

// NewManager creates a cart manager backed by the given catalog. idleTTL
// controls idle eviction by Sweep; zero disables eviction.
func NewManager(store *catalog.Store, idleTTL time.Duration) *Manager {
	return &Manager{
		catalog:  store,
		idleTTL:  idleTTL,
		sessions: make(map[string]*session),
	}
}

// AddItem appends quantity units of a product to the session cart, merging
// into an existing line for the same product. The unit amount is snapshotted
// from the current catalog price at first add.
func (m *Manager) AddItem(sessionID, productID string, quantity int) (domain.CartView, error) {
	if quantity < 1 {
		return domain.CartView{}, errors.Wrapf(domain.ErrValidation, "quantity %d must be >= 1", quantity)
	}
	product, err := m.catalog.Lookup(productID)
	if err != nil {
		return domain.CartView{}, err
	}

	sess := m.getOrCreate(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if len(sess.items) > 0 && sess.items[0].Currency != product.Currency {
		return domain.CartView{}, errors.Wrapf(domain.ErrCurrencyMismatch,
			"cart is %s, product %s is %s", sess.items[0].Currency, product.ID, product.Currency)
	}

	merged := false
	for i := range sess.items {
		if sess.items[i].ProductID == productID {
			sess.items[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		sess.items = append(sess.items, domain.LineItem{
			ProductID:  product.ID,
			Name:       product.Name,
			Quantity:   quantity,
			UnitAmount: product.Price,
			Currency:   product.Currency,
		})
	}
	sess.touched = time.Now()
	return snapshotView(sessionID, sess.items), nil
}

// RemoveItem removes quantity units of a product from the session cart.
// quantity <= 0 removes the line entirely; a decrement reaching zero also
// removes the line.
func (m *Manager) RemoveItem(sessionID, productID string, quantity int) (domain.CartView, error) {
	sess := m.get(sessionID)
	if sess == nil {
		return domain.CartView{}, errors.Wrapf(domain.ErrNotFound, "product %s not in cart", productID)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	for i := range sess.items {
		if sess.items[i].ProductID != productID {
			continue
		}
		if quantity <= 0 || sess.items[i].Quantity <= quantity {
			sess.items = append(sess.items[:i], sess.items[i+1:]...)
		} else {
			sess.items[i].Quantity -= quantity
		}
		sess.touched = time.Now()
		return snapshotView(sessionID, sess.items), nil
	}
	return domain.CartView{}, errors.Wrapf(domain.ErrNotFound, "product %s not in cart", productID)
}

// View returns an immutable snapshot of the session cart. A session without
// a cart yields an empty view.
func (m *Manager) View(sessionID string) domain.CartView {
	sess := m.get(sessionID)
	if sess == nil {
		return domain.CartView{SessionID: sessionID, Items: []domain.LineItem{}}
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return snapshotView(sessionID, sess.items)
}

// Checkout runs fn with a snapshot of the session's line items while holding
// the session's write lock, so no other mutation interleaves between the
// snapshot and the cart clear. The cart is emptied only when fn succeeds; on
// error every line stays in place.
func (m *Manager) Checkout(sessionID string, fn func(items []domain.LineItem) error) error {
	sess := m.getOrCreate(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	items := make([]domain.LineItem, len(sess.items))
	copy(items, sess.items)
	if err := fn(items); err != nil {
		return err
	}
	sess.items = nil
	sess.touched = time.Now()
	return nil
}

// Clear empties the session cart. Clearing an absent cart is a no-op.
func (m *Manager) Clear(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Sweep evicts carts idle longer than the configured TTL and returns the
// number of evicted sessions. Called from the scheduler.
func (m *Manager) Sweep(now time.Time) int {
	if m.idleTTL <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var evicted int
	for id, sess := range m.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.touched) > m.idleTTL
		sess.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		zap.L().Info("evicted idle carts", zap.Int("count", evicted))
	}
	return evicted
}

func (m *Manager) get(sessionID string) *session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[sessionID]
}

func (m *Manager) getOrCreate(sessionID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		sess = &session{touched: time.Now()}
		m.sessions[sessionID] = sess
	}
	return sess
}

func snapshotView(sessionID string, items []domain.LineItem) domain.CartView {
	view := domain.CartView{
		SessionID: sessionID,
		Items:     make([]domain.LineItem, len(items)),
	}
	copy(view.Items, items)
	for _, li := range items {
		view.Subtotal += li.LineTotal()
		if view.Currency == "" {
			view.Currency = li.Currency
		}
	}
	return view
}
