package db

import (
	"context"
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"cine-pos/internal/models"
)

var (
	// ErrSeatTaken maps a unique-index violation on (screening_id, seat_id):
	// the seat was sold by another till between selection and commit.
	ErrSeatTaken = errors.New("seat already sold for this screening")
	// ErrInsufficientStock means the conditional decrement matched no row.
	ErrInsufficientStock = errors.New("insufficient stock")
)

type DB struct {
	Bun *bun.DB
}

// ---------------- ORDERS ----------------

// CreateOrder inserts the order header. This is the first durable write of a
// commit; everything after it is anchored on the order number.
func (d *DB) CreateOrder(ctx context.Context, order models.Order) error {
	_, err := d.Bun.NewInsert().Model(&order).Exec(ctx)
	return err
}

// GetOrderByNumber fetches a settled order by its public number.
func (d *DB) GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_number = ?", orderNumber).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatus flips the header status; the only mutation an order
// permits after creation.
func (d *DB) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", status).
		Where("id = ?", orderID).
		Exec(ctx)
	return err
}

// ---------------- ORDER ITEMS ----------------

// InsertOrderItems batch-inserts the snack lines of an order.
func (d *DB) InsertOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	_, err := d.Bun.NewInsert().Model(&items).Exec(ctx)
	return err
}

// ---------------- STOCK ----------------

// DecrementStock takes quantity units off a snack's stock in one conditional
// statement. It refuses rather than letting the counter go negative; there
// is deliberately no read-then-write fallback, which would race against
// other tills.
func (d *DB) DecrementStock(ctx context.Context, snackID string, quantity int) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Snack)(nil)).
		Set("stock_quantity = stock_quantity - ?", quantity).
		Where("id = ?", snackID).
		Where("stock_quantity >= ?", quantity).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// ---------------- TICKETS ----------------

// InsertTickets batch-inserts the seat tickets of an order. A unique-index
// conflict on (screening_id, seat_id) rejects the whole statement and is
// reported as ErrSeatTaken.
func (d *DB) InsertTickets(ctx context.Context, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	_, err := d.Bun.NewInsert().Model(&tickets).Exec(ctx)
	if err != nil && isUniqueViolation(err) {
		return ErrSeatTaken
	}
	return err
}

// OccupiedSeats lists the sold seat ids of a screening; the seat tracker's
// snapshot source.
func (d *DB) OccupiedSeats(ctx context.Context, screeningID string) ([]string, error) {
	var seatIDs []string
	err := d.Bun.NewSelect().
		Column("seat_id").
		Table("tickets").
		Where("screening_id = ?", screeningID).
		Scan(ctx, &seatIDs)
	if err != nil {
		return nil, err
	}
	return seatIDs, nil
}

// TicketsByOrder fetches all tickets linked to an order.
func (d *DB) TicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("order_id = ?", orderID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// ---------------- LOYALTY ----------------

// AddLoyaltyPoints accrues points atomically on the customer row.
func (d *DB) AddLoyaltyPoints(ctx context.Context, customerID string, points int) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Customer)(nil)).
		Set("points_balance = points_balance + ?", points).
		Where("id = ?", customerID).
		Exec(ctx)
	return err
}

// isUniqueViolation matches postgres (23505) and the sqlite wording used by
// the in-memory test databases.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
