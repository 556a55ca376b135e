package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"cine-pos/internal/logger"
)

// Holds keeps advisory seat holds in Redis while a till composes a sale.
// A hold is SetNX-owned by the session that took it and expires on its own;
// the tickets table's unique index stays the authority at commit time.
type Holds struct {
	Client *redis.Client
	Logger *logger.Logger
	TTL    time.Duration
}

func NewHolds(client *redis.Client, log *logger.Logger, ttl time.Duration) *Holds {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Holds{Client: client, Logger: log, TTL: ttl}
}

func holdKey(screeningID, seatID string) string {
	return fmt.Sprintf("seat_hold:%s:%s", screeningID, seatID)
}

// IsHeld reports whether a seat is currently held by any session.
func (h *Holds) IsHeld(ctx context.Context, screeningID, seatID string) (bool, error) {
	_, err := h.Client.Get(ctx, holdKey(screeningID, seatID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// HoldSeat takes a hold for the session. Returns false when another session
// already holds the seat.
func (h *Holds) HoldSeat(ctx context.Context, screeningID, seatID, sessionID string) (bool, error) {
	ok, err := h.Client.SetNX(ctx, holdKey(screeningID, seatID), sessionID, h.TTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ReleaseSeat drops the hold if this session owns it. Releasing a seat held
// by someone else, or not held at all, is a no-op.
func (h *Holds) ReleaseSeat(ctx context.Context, screeningID, seatID, sessionID string) error {
	key := holdKey(screeningID, seatID)
	val, err := h.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already expired or released
	}
	if err != nil {
		return err
	}
	if val == sessionID {
		_, err := h.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// HoldSeats takes holds for all seats or none: on any refusal or error the
// holds taken so far are unwound.
func (h *Holds) HoldSeats(ctx context.Context, screeningID string, seatIDs []string, sessionID string) (bool, error) {
	// A repeated seat id in one request must not collide with its own hold.
	seen := make(map[string]bool, len(seatIDs))
	unique := make([]string, 0, len(seatIDs))
	for _, seatID := range seatIDs {
		if seen[seatID] {
			continue
		}
		seen[seatID] = true
		unique = append(unique, seatID)
	}

	held := []string{}
	for _, seatID := range unique {
		ok, err := h.HoldSeat(ctx, screeningID, seatID, sessionID)
		if err != nil {
			for _, s := range held {
				_ = h.ReleaseSeat(ctx, screeningID, s, sessionID)
			}
			return false, err
		}
		if !ok {
			if h.Logger != nil {
				h.Logger.LogSeats("HOLD_REFUSED", screeningID, fmt.Sprintf("seat %s already held", seatID))
			}
			for _, s := range held {
				_ = h.ReleaseSeat(ctx, screeningID, s, sessionID)
			}
			return false, nil
		}
		held = append(held, seatID)
	}
	return true, nil
}

// ReleaseSeats releases every listed seat, reporting the first error only
// after attempting all of them.
func (h *Holds) ReleaseSeats(ctx context.Context, screeningID string, seatIDs []string, sessionID string) error {
	var firstErr error
	for _, seatID := range seatIDs {
		if err := h.ReleaseSeat(ctx, screeningID, seatID, sessionID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
