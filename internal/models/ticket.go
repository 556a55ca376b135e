package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Ticket is one sold seat for a screening. The unique (screening_id, seat_id)
// index is the authoritative double-booking guard: a conflicting insert at
// commit time means the seat was sold by another till in the meantime.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	TicketID       string    `bun:"ticket_id,pk" json:"ticket_id"`
	OrderID        string    `bun:"order_id,notnull" json:"order_id"`
	ScreeningID    string    `bun:"screening_id,notnull" json:"screening_id"`
	SeatID         string    `bun:"seat_id,notnull" json:"seat_id"`
	PriceCategory  string    `bun:"price_category,notnull" json:"price_category"`
	Price          float64   `bun:"price,notnull" json:"price"`
	RedemptionCode string    `bun:"redemption_code,unique,notnull" json:"redemption_code"`
	QRCode         []byte    `bun:"qr_code" json:"qr_code,omitempty"`
	Used           bool      `bun:"used,notnull,default:false" json:"used"`
	IssuedAt       time.Time `bun:"issued_at,notnull" json:"issued_at"`
}
