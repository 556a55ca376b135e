package seats

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrSeatOccupied is the optimistic-check refusal: the seat was sold when
	// the tracker last looked.
	ErrSeatOccupied = errors.New("seat is occupied")
	// ErrSeatHeld means another till currently holds the seat.
	ErrSeatHeld = errors.New("seat is held by another session")
)

// TicketSource reports which seats of a screening are already sold.
type TicketSource interface {
	OccupiedSeats(ctx context.Context, screeningID string) ([]string, error)
}

// SeatHolds is the advisory hold layer shared between tills.
type SeatHolds interface {
	HoldSeats(ctx context.Context, screeningID string, seatIDs []string, sessionID string) (bool, error)
	ReleaseSeats(ctx context.Context, screeningID string, seatIDs []string, sessionID string) error
}

// Reservation is the token handed to the cart for one selected seat.
type Reservation struct {
	ScreeningID string
	SeatID      string
}

// Tracker keeps a last-fetched snapshot of occupied seats per screening and
// validates selections against it. The check is optimistic: a race against
// another till between selection and commit is possible, and the durable
// ticket insert is the single authority for double-booking.
type Tracker struct {
	source TicketSource
	holds  SeatHolds

	mu       sync.RWMutex
	occupied map[string]map[string]bool // screeningID -> seatID -> sold
}

func NewTracker(source TicketSource, holds SeatHolds) *Tracker {
	return &Tracker{
		source:   source,
		holds:    holds,
		occupied: make(map[string]map[string]bool),
	}
}

// Refresh re-fetches the occupied-seat snapshot for a screening.
func (t *Tracker) Refresh(ctx context.Context, screeningID string) error {
	seatIDs, err := t.source.OccupiedSeats(ctx, screeningID)
	if err != nil {
		return fmt.Errorf("fetch occupied seats for %s: %w", screeningID, err)
	}
	snapshot := make(map[string]bool, len(seatIDs))
	for _, id := range seatIDs {
		snapshot[id] = true
	}
	t.mu.Lock()
	t.occupied[screeningID] = snapshot
	t.mu.Unlock()
	return nil
}

// IsAvailable reports seat availability against the current snapshot.
func (t *Tracker) IsAvailable(screeningID, seatID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !t.occupied[screeningID][seatID]
}

// Occupied lists the snapshot's occupied seats for a screening.
func (t *Tracker) Occupied(screeningID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for seatID := range t.occupied[screeningID] {
		out = append(out, seatID)
	}
	return out
}

// Select validates the seats against the snapshot, takes advisory holds for
// the session and returns reservation tokens for the cart. All seats are
// reserved or none.
func (t *Tracker) Select(ctx context.Context, screeningID string, seatIDs []string, sessionID string) ([]Reservation, error) {
	for _, seatID := range seatIDs {
		if !t.IsAvailable(screeningID, seatID) {
			return nil, fmt.Errorf("%w: %s", ErrSeatOccupied, seatID)
		}
	}
	ok, err := t.holds.HoldSeats(ctx, screeningID, seatIDs, sessionID)
	if err != nil {
		return nil, fmt.Errorf("hold seats: %w", err)
	}
	if !ok {
		return nil, ErrSeatHeld
	}
	reservations := make([]Reservation, len(seatIDs))
	for i, seatID := range seatIDs {
		reservations[i] = Reservation{ScreeningID: screeningID, SeatID: seatID}
	}
	return reservations, nil
}

// Release gives the held seats back, after a removed ticket line, a
// cancelled sale or a completed commit.
func (t *Tracker) Release(ctx context.Context, screeningID string, seatIDs []string, sessionID string) error {
	return t.holds.ReleaseSeats(ctx, screeningID, seatIDs, sessionID)
}
