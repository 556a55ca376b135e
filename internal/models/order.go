package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Order is the durable header of a settled sale. It is written once by the
// commit pipeline and never mutated afterwards except for its status.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID            string    `bun:"id,pk" json:"id"`
	OrderNumber   string    `bun:"order_number,unique,notnull" json:"order_number"`
	CashierID     string    `bun:"cashier_id,notnull" json:"cashier_id"`
	CustomerID    string    `bun:"customer_id,nullzero" json:"customer_id,omitempty"`
	TotalAmount   float64   `bun:"total_amount,notnull" json:"total_amount"`
	PaymentMethod string    `bun:"payment_method,notnull" json:"payment_method"`
	Tenders       []Tender  `bun:"tenders,type:jsonb" json:"tenders"`
	Status        string    `bun:"status,notnull" json:"status"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

const (
	OrderStatusCompleted = "completed"
	OrderStatusFailed    = "failed"
)

// Tender is one captured payment entry. Amounts are recorded, not authorised;
// the till has no gateway integration.
type Tender struct {
	Method string  `json:"method"`
	Amount float64 `json:"amount"`
}

// OrderItem is one snack line of a settled order.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID        int64   `bun:"id,pk,autoincrement" json:"id"`
	OrderID   string  `bun:"order_id,notnull" json:"order_id"`
	SnackID   string  `bun:"snack_id,notnull" json:"snack_id"`
	Quantity  int     `bun:"quantity,notnull" json:"quantity"`
	UnitPrice float64 `bun:"unit_price,notnull" json:"unit_price"`
	LineTotal float64 `bun:"line_total,notnull" json:"line_total"`
}

// OrderSettled is the event streamed after a commit attempt that produced a
// durable order, complete or not.
type OrderSettled struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Total       float64   `json:"total"`
	Method      string    `json:"method"`
	Partial     bool      `json:"partial"`
	FailedStage string    `json:"failed_stage,omitempty"`
	SettledAt   time.Time `json:"settled_at"`
}
