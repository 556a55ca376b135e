package cart

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateSeat   = errors.New("seat already in cart for this screening")
	ErrInvalidCategory = errors.New("unknown price category")
	ErrNoSuchLine      = errors.New("no such line in cart")
)

// Category is a ticket price category.
type Category string

const (
	CategoryStandard Category = "standard"
	CategoryStudent  Category = "student"
	CategoryChild    Category = "child"
	CategorySenior   Category = "senior"
)

// PriceTable maps a category to its unit price.
type PriceTable map[Category]float64

// DefaultPrices is the house price table. The standard price is usually
// overridden per screening; reduced categories are flat.
var DefaultPrices = PriceTable{
	CategoryStandard: 12.00,
	CategoryStudent:  10.00,
	CategoryChild:    8.00,
	CategorySenior:   9.00,
}

// TableFor returns the price table for a screening: DefaultPrices with the
// standard price replaced by the screening's own full price when set.
func TableFor(priceFull float64) PriceTable {
	table := PriceTable{}
	for cat, price := range DefaultPrices {
		table[cat] = price
	}
	if priceFull > 0 {
		table[CategoryStandard] = priceFull
	}
	return table
}

// TicketLine is one seat about to be purchased. Unique per
// (ScreeningID, SeatID) within a cart.
type TicketLine struct {
	ScreeningID string   `json:"screening_id"`
	SeatID      string   `json:"seat_id"`
	Category    Category `json:"category"`
	UnitPrice   float64  `json:"unit_price"`
}

// SnackLine is one concession item with its quantity. At most one line per
// snack id; quantity adjustments merge into the existing line.
type SnackLine struct {
	SnackID   string  `json:"snack_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// Cart is the in-progress sale of one till session. It is working memory,
// not a durable entity: it is discarded on commit or cancellation. The total
// is recomputed from the lines on every call and never cached.
type Cart struct {
	Tickets []TicketLine `json:"tickets"`
	Snacks  []SnackLine  `json:"snacks"`
}

func New() *Cart {
	return &Cart{}
}

// AddTicket appends a ticket line priced from the table at the given
// category. The same seat cannot enter the cart twice.
func (c *Cart) AddTicket(screeningID, seatID string, category Category, prices PriceTable) (*TicketLine, error) {
	price, ok := prices[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	for _, line := range c.Tickets {
		if line.ScreeningID == screeningID && line.SeatID == seatID {
			return nil, fmt.Errorf("%w: seat %s", ErrDuplicateSeat, seatID)
		}
	}
	c.Tickets = append(c.Tickets, TicketLine{
		ScreeningID: screeningID,
		SeatID:      seatID,
		Category:    category,
		UnitPrice:   price,
	})
	return &c.Tickets[len(c.Tickets)-1], nil
}

// SetTicketCategory switches a ticket line to another category and reprices
// it from the table.
func (c *Cart) SetTicketCategory(index int, category Category, prices PriceTable) error {
	if index < 0 || index >= len(c.Tickets) {
		return fmt.Errorf("%w: ticket index %d", ErrNoSuchLine, index)
	}
	price, ok := prices[category]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	c.Tickets[index].Category = category
	c.Tickets[index].UnitPrice = price
	return nil
}

// RemoveTicket drops the ticket line at index.
func (c *Cart) RemoveTicket(index int) (*TicketLine, error) {
	if index < 0 || index >= len(c.Tickets) {
		return nil, fmt.Errorf("%w: ticket index %d", ErrNoSuchLine, index)
	}
	removed := c.Tickets[index]
	c.Tickets = append(c.Tickets[:index], c.Tickets[index+1:]...)
	return &removed, nil
}

// AddSnack adds one unit of a snack, merging into an existing line when the
// item is already in the cart.
func (c *Cart) AddSnack(snackID, name string, unitPrice float64) *SnackLine {
	for i := range c.Snacks {
		if c.Snacks[i].SnackID == snackID {
			c.Snacks[i].Quantity++
			return &c.Snacks[i]
		}
	}
	c.Snacks = append(c.Snacks, SnackLine{
		SnackID:   snackID,
		Name:      name,
		UnitPrice: unitPrice,
		Quantity:  1,
	})
	return &c.Snacks[len(c.Snacks)-1]
}

// AdjustSnackQuantity applies a signed delta to a snack line. A resulting
// quantity of zero or below removes the line; adjusting an absent snack is a
// no-op.
func (c *Cart) AdjustSnackQuantity(snackID string, delta int) {
	for i := range c.Snacks {
		if c.Snacks[i].SnackID != snackID {
			continue
		}
		c.Snacks[i].Quantity += delta
		if c.Snacks[i].Quantity <= 0 {
			c.Snacks = append(c.Snacks[:i], c.Snacks[i+1:]...)
		}
		return
	}
}

// Total recomputes the cart total from the current lines.
func (c *Cart) Total() float64 {
	var total float64
	for _, line := range c.Tickets {
		total += line.UnitPrice
	}
	for _, line := range c.Snacks {
		total += line.UnitPrice * float64(line.Quantity)
	}
	return total
}

// Empty reports whether the cart holds no lines at all.
func (c *Cart) Empty() bool {
	return len(c.Tickets) == 0 && len(c.Snacks) == 0
}

// Items counts the lines in the cart.
func (c *Cart) Items() int {
	return len(c.Tickets) + len(c.Snacks)
}

// Clear discards every line. Called after a successful commit or an explicit
// cancellation.
func (c *Cart) Clear() {
	c.Tickets = nil
	c.Snacks = nil
}
