package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"cine-pos/internal/models"
	"cine-pos/internal/pos/db"
)

func setupTestDB(t *testing.T) *db.DB {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()

	for _, model := range []interface{}{
		(*models.Order)(nil),
		(*models.OrderItem)(nil),
		(*models.Ticket)(nil),
		(*models.Snack)(nil),
		(*models.Customer)(nil),
	} {
		if err := bunDB.ResetModel(ctx, model); err != nil {
			t.Fatalf("Failed to create tables: %v", err)
		}
	}

	// The double-booking guard of the production schema.
	_, err = bunDB.NewCreateIndex().
		Model((*models.Ticket)(nil)).
		Index("tickets_screening_seat_idx").
		Unique().
		Column("screening_id", "seat_id").
		Exec(ctx)
	if err != nil {
		t.Fatalf("Failed to create unique seat index: %v", err)
	}

	return &db.DB{Bun: bunDB}
}

func sampleOrder(id, number string) models.Order {
	return models.Order{
		ID:            id,
		OrderNumber:   number,
		CashierID:     "cashier-1",
		TotalAmount:   37.50,
		PaymentMethod: "cash",
		Tenders:       []models.Tender{{Method: "cash", Amount: 37.50}},
		Status:        models.OrderStatusCompleted,
		CreatedAt:     time.Now().Round(time.Second),
	}
}

func TestCreateAndGetOrder(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	order := sampleOrder("ord-1", "CMD-1001")
	require.NoError(t, d.CreateOrder(ctx, order))

	got, err := d.GetOrderByNumber(ctx, "CMD-1001")
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, order.TotalAmount, got.TotalAmount)
	assert.Equal(t, order.PaymentMethod, got.PaymentMethod)
	assert.Equal(t, models.OrderStatusCompleted, got.Status)

	// Duplicate order numbers are refused by the unique column.
	err = d.CreateOrder(ctx, sampleOrder("ord-2", "CMD-1001"))
	assert.Error(t, err)
}

func TestUpdateOrderStatus(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.CreateOrder(ctx, sampleOrder("ord-1", "CMD-1002")))
	require.NoError(t, d.UpdateOrderStatus(ctx, "ord-1", models.OrderStatusFailed))

	got, err := d.GetOrderByNumber(ctx, "CMD-1002")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFailed, got.Status)
}

func TestInsertOrderItems(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	// An empty batch is a no-op, not an error.
	require.NoError(t, d.InsertOrderItems(ctx, nil))

	items := []models.OrderItem{
		{OrderID: "ord-1", SnackID: "snack-1", Quantity: 3, UnitPrice: 4.50, LineTotal: 13.50},
		{OrderID: "ord-1", SnackID: "snack-2", Quantity: 1, UnitPrice: 3.00, LineTotal: 3.00},
	}
	require.NoError(t, d.InsertOrderItems(ctx, items))

	count, err := d.Bun.NewSelect().Model((*models.OrderItem)(nil)).
		Where("order_id = ?", "ord-1").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDecrementStock(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	snack := models.Snack{
		ID: "snack-1", Name: "Popcorn L", Category: "popcorn",
		Price: 4.50, StockQuantity: 5, StockAlertLevel: 10, IsActive: true,
	}
	_, err := d.Bun.NewInsert().Model(&snack).Exec(ctx)
	require.NoError(t, err)

	require.NoError(t, d.DecrementStock(ctx, "snack-1", 3))

	var got models.Snack
	require.NoError(t, d.Bun.NewSelect().Model(&got).Where("id = ?", "snack-1").Scan(ctx))
	assert.Equal(t, 2, got.StockQuantity)

	// Taking more than remains matches no row and leaves the counter alone.
	err = d.DecrementStock(ctx, "snack-1", 3)
	assert.ErrorIs(t, err, db.ErrInsufficientStock)

	require.NoError(t, d.Bun.NewSelect().Model(&got).Where("id = ?", "snack-1").Scan(ctx))
	assert.Equal(t, 2, got.StockQuantity)

	// Taking exactly what remains is allowed; the counter stops at zero.
	require.NoError(t, d.DecrementStock(ctx, "snack-1", 2))
	require.NoError(t, d.Bun.NewSelect().Model(&got).Where("id = ?", "snack-1").Scan(ctx))
	assert.Equal(t, 0, got.StockQuantity)
}

func ticketFor(id, orderID, screeningID, seatID string) models.Ticket {
	return models.Ticket{
		TicketID:       id,
		OrderID:        orderID,
		ScreeningID:    screeningID,
		SeatID:         seatID,
		PriceCategory:  "standard",
		Price:          12.00,
		RedemptionCode: orderID + "-" + seatID,
		IssuedAt:       time.Now().Round(time.Second),
	}
}

func TestInsertTicketsDoubleSell(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	first := []models.Ticket{
		ticketFor("tic-1", "ord-1", "scr-1", "A1"),
		ticketFor("tic-2", "ord-1", "scr-1", "A2"),
	}
	require.NoError(t, d.InsertTickets(ctx, first))

	// A second order hitting one of the sold seats is rejected wholesale.
	second := []models.Ticket{
		ticketFor("tic-3", "ord-2", "scr-1", "B1"),
		ticketFor("tic-4", "ord-2", "scr-1", "A2"),
	}
	err := d.InsertTickets(ctx, second)
	assert.ErrorIs(t, err, db.ErrSeatTaken)

	// The batch is all-or-nothing: B1 stays free.
	occupied, err := d.OccupiedSeats(ctx, "scr-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A1", "A2"}, occupied)

	// The same seat in another screening is a different seat.
	require.NoError(t, d.InsertTickets(ctx, []models.Ticket{
		ticketFor("tic-5", "ord-3", "scr-2", "A2"),
	}))
}

func TestOccupiedSeatsEmptyScreening(t *testing.T) {
	d := setupTestDB(t)

	occupied, err := d.OccupiedSeats(context.Background(), "scr-unknown")
	require.NoError(t, err)
	assert.Empty(t, occupied)
}

func TestTicketsByOrder(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.InsertTickets(ctx, []models.Ticket{
		ticketFor("tic-1", "ord-1", "scr-1", "A1"),
		ticketFor("tic-2", "ord-1", "scr-1", "A2"),
		ticketFor("tic-3", "ord-2", "scr-1", "A3"),
	}))

	tickets, err := d.TicketsByOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Len(t, tickets, 2)
}

func TestAddLoyaltyPoints(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	customer := models.Customer{
		ID: "cust-1", FullName: "Ada Mestre", Email: "ada@example.com", PointsBalance: 5,
	}
	_, err := d.Bun.NewInsert().Model(&customer).Exec(ctx)
	require.NoError(t, err)

	require.NoError(t, d.AddLoyaltyPoints(ctx, "cust-1", 37))

	var got models.Customer
	require.NoError(t, d.Bun.NewSelect().Model(&got).Where("id = ?", "cust-1").Scan(ctx))
	assert.Equal(t, 42, got.PointsBalance)
}
