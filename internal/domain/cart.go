package domain

// CartView is an immutable snapshot of one session's cart: the line items in
// insertion order plus the computed subtotal. A session with no cart yields
// an empty view, never an error.
type CartView struct {
	SessionID string     `json:"session_id"`
	Items     []LineItem `json:"items"`
	Subtotal  int64      `json:"subtotal"`
	Currency  string     `json:"currency,omitempty"`
}

// Empty reports whether the cart has no line items.
func (v CartView) Empty() bool {
	return len(v.Items) == 0
}
