package domain

import "time"

const (
	OrderStatusPending   = "PENDING"
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusCancelled = "CANCELLED"
)

// LineItem is a (product, quantity, snapshotted price) tuple. UnitAmount and
// Currency are captured from the catalog at cart/order creation time and
// never track later price changes.
type LineItem struct {
	ProductID  string `json:"product_id" form:"product_id"`
	Name       string `json:"name,omitempty" form:"name"`
	Quantity   int    `json:"quantity" form:"quantity"`
	UnitAmount int64  `json:"unit_amount" form:"unit_amount"`
	Currency   string `json:"currency" form:"currency"`
}

// LineTotal returns unit_amount * quantity.
func (li LineItem) LineTotal() int64 {
	return li.UnitAmount * int64(li.Quantity)
}

// Buyer is the optional purchaser contact attached to an order.
type Buyer struct {
	Name  string `json:"name,omitempty" form:"name"`
	Email string `json:"email,omitempty" form:"email" validate:"omitempty,email"`
}

// Order is one durable ledger record. ID is a snowflake value, unique and
// monotonically orderable by creation time across concurrent sessions.
// Fingerprint is the payload hash used for idempotency conflict detection
// and is never exposed over the API.
type Order struct {
	ID             int64      `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	SessionID      string     `gorm:"index;size:128" json:"session_id"`
	Items          []LineItem `gorm:"serializer:json" json:"items"`
	Total          int64      `json:"total"`
	Currency       string     `gorm:"size:8" json:"currency"`
	Status         string     `gorm:"size:16" json:"status"`
	Buyer          *Buyer     `gorm:"serializer:json" json:"buyer,omitempty"`
	IdempotencyKey string     `gorm:"index;size:128" json:"idempotency_key,omitempty"`
	Fingerprint    string     `gorm:"size:64" json:"-"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
}

// TableName Specify table name
func (Order) TableName() string {
	return "merchant_orders"
}

// ItemCount returns the total unit count across all line items.
func (o Order) ItemCount() int {
	var n int
	for _, li := range o.Items {
		n += li.Quantity
	}
	return n
}
