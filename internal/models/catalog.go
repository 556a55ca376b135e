package models

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Room holds the seat layout of an auditorium. Seat ids are row letter plus
// column number ("A1".."H12"); the layout itself is static input data.
type Room struct {
	bun.BaseModel `bun:"table:rooms"`

	ID   string `bun:"id,pk" json:"id"`
	Name string `bun:"name,notnull" json:"name"`
	Rows int    `bun:"rows,notnull" json:"rows"`
	Cols int    `bun:"cols,notnull" json:"cols"`
}

// SeatIDs enumerates every seat id of the room in row-major order.
func (r *Room) SeatIDs() []string {
	ids := make([]string, 0, r.Rows*r.Cols)
	for row := 0; row < r.Rows; row++ {
		for col := 1; col <= r.Cols; col++ {
			ids = append(ids, fmt.Sprintf("%c%d", 'A'+row, col))
		}
	}
	return ids
}

// Screening is one showing of a movie in a room. PriceFull is the standard
// ticket price for this screening; reduced categories come from the price
// table.
type Screening struct {
	bun.BaseModel `bun:"table:screenings"`

	ID         string    `bun:"id,pk" json:"id"`
	MovieTitle string    `bun:"movie_title,notnull" json:"movie_title"`
	RoomID     string    `bun:"room_id,notnull" json:"room_id"`
	Room       *Room     `bun:"rel:belongs-to,join:room_id=id" json:"room,omitempty"`
	StartsAt   time.Time `bun:"starts_at,notnull" json:"starts_at"`
	PriceFull  float64   `bun:"price_full,notnull" json:"price_full"`
	IsActive   bool      `bun:"is_active,notnull,default:true" json:"is_active"`
}

// Snack is a concession item. StockQuantity is adjusted only through the
// persistence layer's conditional decrement, never read-modify-write.
type Snack struct {
	bun.BaseModel `bun:"table:snacks"`

	ID              string  `bun:"id,pk" json:"id"`
	Name            string  `bun:"name,notnull" json:"name"`
	Category        string  `bun:"category,notnull" json:"category"`
	Price           float64 `bun:"price,notnull" json:"price"`
	StockQuantity   int     `bun:"stock_quantity,notnull" json:"stock_quantity"`
	StockAlertLevel int     `bun:"stock_alert_level,notnull" json:"stock_alert_level"`
	IsActive        bool    `bun:"is_active,notnull,default:true" json:"is_active"`

	// LowStock is computed on read, never stored.
	LowStock bool `bun:"-" json:"low_stock"`
}

// Customer is a loyalty-program member. PointsBalance is mutated only by the
// accrual step of the commit pipeline.
type Customer struct {
	bun.BaseModel `bun:"table:customers"`

	ID            string `bun:"id,pk" json:"id"`
	FullName      string `bun:"full_name,notnull" json:"full_name"`
	Email         string `bun:"email,nullzero" json:"email,omitempty"`
	Phone         string `bun:"phone,nullzero" json:"phone,omitempty"`
	CardNumber    string `bun:"card_number,nullzero" json:"card_number,omitempty"`
	PointsBalance int    `bun:"points_balance,notnull,default:0" json:"points_balance"`
}
