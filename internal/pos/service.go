package pos

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"cine-pos/internal/cart"
	"cine-pos/internal/logger"
	"cine-pos/internal/models"
	"cine-pos/internal/pos/db"
	"cine-pos/internal/seats"
	"cine-pos/internal/tickets"
	"cine-pos/internal/utils"
)

var (
	ErrEmptyCart = errors.New("cart is empty")
	// ErrSeatNoLongerAvailable surfaces the commit-time double-booking guard:
	// the seat was sold by another till after it entered this cart.
	ErrSeatNoLongerAvailable = errors.New("seat no longer available")
	ErrInactiveItem          = errors.New("item is not on sale")
)

// Stage names how far a commit attempt got. Everything at or beyond
// HeaderWritten left a durable order behind.
type Stage int

const (
	StageIdle Stage = iota
	StageHeaderWritten
	StageItemsWritten
	StageStockAdjusted
	StageTicketsWritten
	StageLoyaltyApplied
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageHeaderWritten:
		return "header_written"
	case StageItemsWritten:
		return "items_written"
	case StageStockAdjusted:
		return "stock_adjusted"
	case StageTicketsWritten:
		return "tickets_written"
	case StageLoyaltyApplied:
		return "loyalty_applied"
	case StageDone:
		return "done"
	}
	return "unknown"
}

// CommitError reports a failed commit attempt together with the last stage
// that completed, so callers can tell a clean abort from a durable partial
// failure.
type CommitError struct {
	Stage       Stage
	OrderNumber string
	Err         error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit %s failed after %s: %v", e.OrderNumber, e.Stage, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Partial reports whether durable state was left behind and needs manual
// reconciliation.
func (e *CommitError) Partial() bool { return e.Stage >= StageHeaderWritten }

// Receipt is the confirmation returned after a successful commit.
type Receipt struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Total       float64         `json:"total"`
	Method      string          `json:"method"`
	Tenders     []models.Tender `json:"tenders"`
	Warnings    []string        `json:"warnings,omitempty"`
}

// Catalog is the read-only programme gateway the till consumes.
type Catalog interface {
	ScreeningByID(ctx context.Context, id string) (*models.Screening, error)
	SnackByID(ctx context.Context, id string) (*models.Snack, error)
	FindCustomer(ctx context.Context, query string) (*models.Customer, error)
}

// DBLayer is the persistence gateway of the commit pipeline. Each call is an
// independent statement; there is no cross-statement transaction, which is
// why the pipeline orders its writes and anchors them on the order number.
type DBLayer interface {
	CreateOrder(ctx context.Context, order models.Order) error
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
	InsertOrderItems(ctx context.Context, items []models.OrderItem) error
	DecrementStock(ctx context.Context, snackID string, quantity int) error
	InsertTickets(ctx context.Context, tix []models.Ticket) error
	AddLoyaltyPoints(ctx context.Context, customerID string, points int) error
}

// SeatSelector is the availability tracker the till selects seats through.
type SeatSelector interface {
	Refresh(ctx context.Context, screeningID string) error
	Select(ctx context.Context, screeningID string, seatIDs []string, sessionID string) ([]seats.Reservation, error)
	Release(ctx context.Context, screeningID string, seatIDs []string, sessionID string) error
}

// CartStore persists the session's cart across navigation.
type CartStore interface {
	Load(ctx context.Context, sessionID string) (*cart.Cart, error)
	Save(ctx context.Context, sessionID string, c *cart.Cart) error
	Delete(ctx context.Context, sessionID string) error
}

// Publisher streams settlement events for downstream reporting and
// reconciliation.
type Publisher interface {
	PublishOrderSettled(evt models.OrderSettled) error
}

// Service drives a till session: composing the cart, reconciling tenders and
// running the commit pipeline.
type Service struct {
	Catalog Catalog
	Seats   SeatSelector
	Carts   CartStore
	DB      DBLayer
	Kafka   Publisher
	Logger  *logger.Logger
}

func NewService(catalog Catalog, seatSel SeatSelector, carts CartStore, dbLayer DBLayer, publisher Publisher, log *logger.Logger) *Service {
	return &Service{
		Catalog: catalog,
		Seats:   seatSel,
		Carts:   carts,
		DB:      dbLayer,
		Kafka:   publisher,
		Logger:  log,
	}
}

// ---------------- CART COMPOSITION ----------------

// AddSeats reserves the selected seats and adds one standard-priced ticket
// line per seat. All seats enter the cart or none.
func (s *Service) AddSeats(ctx context.Context, sess *Session, screeningID string, seatIDs []string) ([]cart.TicketLine, error) {
	screening, err := s.Catalog.ScreeningByID(ctx, screeningID)
	if err != nil {
		return nil, err
	}
	if !screening.IsActive {
		return nil, fmt.Errorf("%w: screening %s", ErrInactiveItem, screeningID)
	}

	// Reject duplicates before taking any hold so a refused selection leaves
	// both the cart and the hold layer untouched.
	for _, seatID := range seatIDs {
		for _, line := range sess.Cart.Tickets {
			if line.ScreeningID == screeningID && line.SeatID == seatID {
				return nil, fmt.Errorf("%w: seat %s", cart.ErrDuplicateSeat, seatID)
			}
		}
	}

	if err := s.Seats.Refresh(ctx, screeningID); err != nil {
		return nil, err
	}
	reservations, err := s.Seats.Select(ctx, screeningID, seatIDs, sess.ID)
	if err != nil {
		return nil, err
	}

	table := cart.TableFor(screening.PriceFull)
	added := make([]cart.TicketLine, 0, len(reservations))
	for _, res := range reservations {
		line, err := sess.Cart.AddTicket(res.ScreeningID, res.SeatID, cart.CategoryStandard, table)
		if err != nil {
			_ = s.Seats.Release(ctx, screeningID, seatIDs, sess.ID)
			return nil, err
		}
		added = append(added, *line)
	}

	if err := s.Carts.Save(ctx, sess.ID, sess.Cart); err != nil {
		s.Logger.Warn("CART", fmt.Sprintf("failed to persist cart for session %s: %v", sess.ID, err))
	}
	s.Logger.LogCart("ADD_SEATS", sess.ID, fmt.Sprintf("%d seats for screening %s", len(added), screeningID))
	return added, nil
}

// SetTicketCategory reprices one ticket line from the screening's table.
func (s *Service) SetTicketCategory(ctx context.Context, sess *Session, index int, category cart.Category) error {
	if index < 0 || index >= len(sess.Cart.Tickets) {
		return fmt.Errorf("%w: ticket index %d", cart.ErrNoSuchLine, index)
	}
	screening, err := s.Catalog.ScreeningByID(ctx, sess.Cart.Tickets[index].ScreeningID)
	if err != nil {
		return err
	}
	if err := sess.Cart.SetTicketCategory(index, category, cart.TableFor(screening.PriceFull)); err != nil {
		return err
	}
	if err := s.Carts.Save(ctx, sess.ID, sess.Cart); err != nil {
		s.Logger.Warn("CART", fmt.Sprintf("failed to persist cart for session %s: %v", sess.ID, err))
	}
	return nil
}

// RemoveTicket drops a ticket line and gives its seat hold back.
func (s *Service) RemoveTicket(ctx context.Context, sess *Session, index int) error {
	line, err := sess.Cart.RemoveTicket(index)
	if err != nil {
		return err
	}
	if err := s.Seats.Release(ctx, line.ScreeningID, []string{line.SeatID}, sess.ID); err != nil {
		s.Logger.Warn("SEATS", fmt.Sprintf("failed to release seat %s: %v", line.SeatID, err))
	}
	if err := s.Carts.Save(ctx, sess.ID, sess.Cart); err != nil {
		s.Logger.Warn("CART", fmt.Sprintf("failed to persist cart for session %s: %v", sess.ID, err))
	}
	return nil
}

// AddSnack adds one unit of a concession item, merging quantities.
func (s *Service) AddSnack(ctx context.Context, sess *Session, snackID string) (*cart.SnackLine, error) {
	snack, err := s.Catalog.SnackByID(ctx, snackID)
	if err != nil {
		return nil, err
	}
	if !snack.IsActive {
		return nil, fmt.Errorf("%w: snack %s", ErrInactiveItem, snackID)
	}
	line := sess.Cart.AddSnack(snack.ID, snack.Name, snack.Price)
	if err := s.Carts.Save(ctx, sess.ID, sess.Cart); err != nil {
		s.Logger.Warn("CART", fmt.Sprintf("failed to persist cart for session %s: %v", sess.ID, err))
	}
	return line, nil
}

// AdjustSnack applies a quantity delta; the line disappears at zero.
func (s *Service) AdjustSnack(ctx context.Context, sess *Session, snackID string, delta int) error {
	sess.Cart.AdjustSnackQuantity(snackID, delta)
	if err := s.Carts.Save(ctx, sess.ID, sess.Cart); err != nil {
		s.Logger.Warn("CART", fmt.Sprintf("failed to persist cart for session %s: %v", sess.ID, err))
	}
	return nil
}

// LinkCustomer attaches a loyalty customer looked up by email, phone or card
// number.
func (s *Service) LinkCustomer(ctx context.Context, sess *Session, query string) (*models.Customer, error) {
	customer, err := s.Catalog.FindCustomer(ctx, query)
	if err != nil {
		return nil, err
	}
	sess.Customer = customer
	return customer, nil
}

// Resume rehydrates a reattached session's cart from the session store, so
// a till reconnect picks the sale in progress back up. Tenders are not
// persisted; the cashier re-enters them at checkout.
func (s *Service) Resume(ctx context.Context, sess *Session) error {
	c, err := s.Carts.Load(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("restore cart for session %s: %w", sess.ID, err)
	}
	sess.Cart = c
	s.Logger.LogCart("RESUME", sess.ID, fmt.Sprintf("%d lines restored", c.Items()))
	return nil
}

// Cancel abandons the sale: holds are released, the cart and tenders are
// discarded. Allowed any time before the order header is written.
func (s *Service) Cancel(ctx context.Context, sess *Session) error {
	for screeningID, seatIDs := range seatsByScreening(sess.Cart) {
		if err := s.Seats.Release(ctx, screeningID, seatIDs, sess.ID); err != nil {
			s.Logger.Warn("SEATS", fmt.Sprintf("failed to release seats for screening %s: %v", screeningID, err))
		}
	}
	sess.Cart.Clear()
	sess.Tenders.Clear()
	sess.Customer = nil
	if err := s.Carts.Delete(ctx, sess.ID); err != nil {
		s.Logger.Warn("CART", fmt.Sprintf("failed to drop stored cart for session %s: %v", sess.ID, err))
	}
	s.Logger.LogCart("CANCEL", sess.ID, "sale abandoned")
	return nil
}

// ---------------- COMMIT PIPELINE ----------------

// Commit turns the session's cart into a durable order. The persistence
// layer offers no multi-statement transaction, so the writes run in a fixed
// order anchored on a fresh order number: header, snack lines, stock
// decrements, tickets, loyalty. A failure before the header aborts cleanly
// with the cart intact; a failure after it leaves a recorded partial state
// that must be reconciled, never silently dropped.
func (s *Service) Commit(ctx context.Context, sess *Session) (*Receipt, error) {
	if sess.Cart.Empty() {
		return nil, ErrEmptyCart
	}
	total := sess.Cart.Total()
	if err := sess.Tenders.Ready(total); err != nil {
		return nil, err
	}

	orderNumber := utils.GenerateOrderNumber()
	order := models.Order{
		ID:            uuid.NewString(),
		OrderNumber:   orderNumber,
		CashierID:     sess.CashierID,
		TotalAmount:   total,
		PaymentMethod: sess.Tenders.MethodLabel(),
		Tenders:       sess.Tenders.Tenders(),
		Status:        models.OrderStatusCompleted,
		CreatedAt:     time.Now(),
	}
	if sess.Customer != nil {
		order.CustomerID = sess.Customer.ID
	}

	// Step 1-2: order header, the idempotency anchor. Nothing durable exists
	// before this write, so a failure here leaves the cart intact for retry.
	s.Logger.LogCommit(StageHeaderWritten.String(), orderNumber, fmt.Sprintf("writing header, total %.2f", total))
	if err := s.DB.CreateOrder(ctx, order); err != nil {
		s.Logger.Error("COMMIT", fmt.Sprintf("order header failed for %s: %v", orderNumber, err))
		return nil, &CommitError{Stage: StageIdle, OrderNumber: orderNumber, Err: fmt.Errorf("order creation failed: %w", err)}
	}

	// Step 3: snack lines.
	items := make([]models.OrderItem, 0, len(sess.Cart.Snacks))
	for _, line := range sess.Cart.Snacks {
		items = append(items, models.OrderItem{
			OrderID:   order.ID,
			SnackID:   line.SnackID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.UnitPrice * float64(line.Quantity),
		})
	}
	if err := s.DB.InsertOrderItems(ctx, items); err != nil {
		return nil, s.partialFailure(ctx, order, StageHeaderWritten, fmt.Errorf("order items: %w", err))
	}

	// Step 4: stock decrements, one conditional statement per line.
	for _, line := range sess.Cart.Snacks {
		if err := s.DB.DecrementStock(ctx, line.SnackID, line.Quantity); err != nil {
			return nil, s.partialFailure(ctx, order, StageItemsWritten, fmt.Errorf("stock for %s: %w", line.SnackID, err))
		}
		s.Logger.LogStock(line.SnackID, fmt.Sprintf("decremented by %d for order %s", line.Quantity, orderNumber))
	}

	// Step 5: tickets. The unique seat index re-checks double-booking here;
	// a conflict means another till sold the seat since selection, and the
	// order must fail rather than drop the seat.
	tix := make([]models.Ticket, 0, len(sess.Cart.Tickets))
	for _, line := range sess.Cart.Tickets {
		code := utils.GenerateRedemptionCode(orderNumber, line.SeatID)
		qr, err := tickets.QRFor(code)
		if err != nil {
			s.Logger.Warn("COMMIT", fmt.Sprintf("QR generation failed for %s: %v", code, err))
		}
		tix = append(tix, models.Ticket{
			TicketID:       uuid.NewString(),
			OrderID:        order.ID,
			ScreeningID:    line.ScreeningID,
			SeatID:         line.SeatID,
			PriceCategory:  string(line.Category),
			Price:          line.UnitPrice,
			RedemptionCode: code,
			QRCode:         qr,
			Used:           false,
			IssuedAt:       time.Now(),
		})
	}
	if err := s.DB.InsertTickets(ctx, tix); err != nil {
		if errors.Is(err, db.ErrSeatTaken) {
			err = fmt.Errorf("%w: %v", ErrSeatNoLongerAvailable, err)
		}
		return nil, s.partialFailure(ctx, order, StageStockAdjusted, err)
	}

	// Step 6: loyalty accrual, the lowest-value side effect; never fatal.
	var warnings []string
	if sess.Customer != nil {
		points := int(math.Floor(total))
		if err := s.DB.AddLoyaltyPoints(ctx, sess.Customer.ID, points); err != nil {
			s.Logger.Warn("LOYALTY", fmt.Sprintf("accrual failed for customer %s on order %s: %v", sess.Customer.ID, orderNumber, err))
			warnings = append(warnings, "loyalty points could not be credited")
		} else {
			s.Logger.LogLoyalty(sess.Customer.ID, fmt.Sprintf("+%d points for order %s", points, orderNumber))
		}
	}

	// Step 7: the sale is through. Discard working state, give the holds
	// back (the seats are sold now, the durable tickets guard them) and
	// confirm.
	for screeningID, seatIDs := range seatsByScreening(sess.Cart) {
		if err := s.Seats.Release(ctx, screeningID, seatIDs, sess.ID); err != nil {
			s.Logger.Warn("SEATS", fmt.Sprintf("failed to release committed seats for screening %s: %v", screeningID, err))
		}
	}
	sess.Cart.Clear()
	sess.Tenders.Clear()
	if err := s.Carts.Delete(ctx, sess.ID); err != nil {
		s.Logger.Warn("CART", fmt.Sprintf("failed to drop stored cart for session %s: %v", sess.ID, err))
	}

	if err := s.Kafka.PublishOrderSettled(models.OrderSettled{
		OrderID:     order.ID,
		OrderNumber: orderNumber,
		Total:       total,
		Method:      order.PaymentMethod,
		SettledAt:   time.Now(),
	}); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("failed to publish settlement for %s: %v", orderNumber, err))
	}

	s.Logger.LogCommit(StageDone.String(), orderNumber, "order settled")
	return &Receipt{
		OrderID:     order.ID,
		OrderNumber: orderNumber,
		Total:       total,
		Method:      order.PaymentMethod,
		Tenders:     order.Tenders,
		Warnings:    warnings,
	}, nil
}

// partialFailure records a commit that died after the order header became
// durable: the header is flipped to failed (best effort), the discrepancy is
// streamed for reconciliation, and the cart is left untouched so the
// operator sees exactly what was being sold.
func (s *Service) partialFailure(ctx context.Context, order models.Order, completed Stage, cause error) error {
	s.Logger.Error("COMMIT", fmt.Sprintf("partial failure for %s after %s: %v", order.OrderNumber, completed, cause))

	if err := s.DB.UpdateOrderStatus(ctx, order.ID, models.OrderStatusFailed); err != nil {
		s.Logger.Error("COMMIT", fmt.Sprintf("could not mark order %s failed: %v", order.OrderNumber, err))
	}
	if err := s.Kafka.PublishOrderSettled(models.OrderSettled{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Total:       order.TotalAmount,
		Method:      order.PaymentMethod,
		Partial:     true,
		FailedStage: completed.String(),
		SettledAt:   time.Now(),
	}); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("failed to publish partial settlement for %s: %v", order.OrderNumber, err))
	}

	return &CommitError{Stage: completed, OrderNumber: order.OrderNumber, Err: cause}
}

func seatsByScreening(c *cart.Cart) map[string][]string {
	grouped := make(map[string][]string)
	for _, line := range c.Tickets {
		grouped[line.ScreeningID] = append(grouped[line.ScreeningID], line.SeatID)
	}
	return grouped
}
