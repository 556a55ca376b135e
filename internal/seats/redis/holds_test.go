package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a Redis client backed by miniredis, an in-memory
// Redis that doesn't require a real server.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	return client, mr
}

func cleanupTestRedis(client *redis.Client, mr *miniredis.Miniredis) {
	if client != nil {
		client.Close()
	}
	if mr != nil {
		mr.Close()
	}
}

func TestHoldSeat_Ownership(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	h := NewHolds(client, nil, time.Minute)
	ctx := context.Background()

	ok, err := h.HoldSeat(ctx, "scr-1", "A1", "sess-1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Second session cannot take the same seat.
	ok, err = h.HoldSeat(ctx, "scr-1", "A1", "sess-2")
	require.NoError(t, err)
	assert.False(t, ok)

	held, err := h.IsHeld(ctx, "scr-1", "A1")
	require.NoError(t, err)
	assert.True(t, held)

	// Same seat id in another screening is free.
	ok, err = h.HoldSeat(ctx, "scr-2", "A1", "sess-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseSeat_OwnerChecked(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	h := NewHolds(client, nil, time.Minute)
	ctx := context.Background()

	ok, err := h.HoldSeat(ctx, "scr-1", "A1", "sess-1")
	require.NoError(t, err)
	require.True(t, ok)

	// A non-owner release is a silent no-op; the hold survives.
	err = h.ReleaseSeat(ctx, "scr-1", "A1", "sess-2")
	require.NoError(t, err)
	held, err := h.IsHeld(ctx, "scr-1", "A1")
	require.NoError(t, err)
	assert.True(t, held)

	// The owner's release drops it.
	err = h.ReleaseSeat(ctx, "scr-1", "A1", "sess-1")
	require.NoError(t, err)
	held, err = h.IsHeld(ctx, "scr-1", "A1")
	require.NoError(t, err)
	assert.False(t, held)

	// Releasing an unheld seat is also a no-op.
	err = h.ReleaseSeat(ctx, "scr-1", "A1", "sess-1")
	assert.NoError(t, err)
}

func TestHoldSeats_AllOrNothing(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	h := NewHolds(client, nil, time.Minute)
	ctx := context.Background()

	// sess-2 already holds B2, so sess-1's batch must fail and unwind.
	ok, err := h.HoldSeat(ctx, "scr-1", "B2", "sess-2")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.HoldSeats(ctx, "scr-1", []string{"B1", "B2", "B3"}, "sess-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// B1 was taken before the refusal and must have been given back.
	held, err := h.IsHeld(ctx, "scr-1", "B1")
	require.NoError(t, err)
	assert.False(t, held)

	// sess-2's own hold is untouched by the unwind.
	held, err = h.IsHeld(ctx, "scr-1", "B2")
	require.NoError(t, err)
	assert.True(t, held)

	// With B2 gone the batch goes through.
	require.NoError(t, h.ReleaseSeat(ctx, "scr-1", "B2", "sess-2"))
	ok, err = h.HoldSeats(ctx, "scr-1", []string{"B1", "B2", "B3"}, "sess-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHoldSeats_DuplicateSeatInRequest(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	h := NewHolds(client, nil, time.Minute)
	ctx := context.Background()

	// The repeated id does not collide with its own hold.
	ok, err := h.HoldSeats(ctx, "scr-1", []string{"F1", "F1", "F2"}, "sess-1")
	require.NoError(t, err)
	assert.True(t, ok)

	for _, seatID := range []string{"F1", "F2"} {
		held, err := h.IsHeld(ctx, "scr-1", seatID)
		require.NoError(t, err)
		assert.True(t, held, "seat %s not held", seatID)
	}

	// The holds are real: another session is still refused.
	ok, err = h.HoldSeat(ctx, "scr-1", "F1", "sess-2")
	require.NoError(t, err)
	assert.False(t, ok)

	// The owner releases through the original (duplicated) list cleanly.
	require.NoError(t, h.ReleaseSeats(ctx, "scr-1", []string{"F1", "F1", "F2"}, "sess-1"))
	held, err := h.IsHeld(ctx, "scr-1", "F1")
	require.NoError(t, err)
	assert.False(t, held)
}

func TestHoldSeats_ConcurrentSessions(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	h := NewHolds(client, nil, time.Minute)
	ctx := context.Background()
	seatIDs := []string{"C1", "C2"}

	// Many tills race for the same pair of seats; exactly one wins.
	var wg sync.WaitGroup
	results := make([]bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := h.HoldSeats(ctx, "scr-1", seatIDs, fmt.Sprintf("sess-%d", i))
			assert.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, ok := range results {
		if ok {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestHoldExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	h := NewHolds(client, nil, 30*time.Second)
	ctx := context.Background()

	ok, err := h.HoldSeat(ctx, "scr-1", "D4", "sess-1")
	require.NoError(t, err)
	require.True(t, ok)

	// miniredis advances TTLs manually instead of in real time.
	mr.FastForward(31 * time.Second)

	held, err := h.IsHeld(ctx, "scr-1", "D4")
	require.NoError(t, err)
	assert.False(t, held)

	ok, err = h.HoldSeat(ctx, "scr-1", "D4", "sess-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseSeats_ReleasesAll(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	h := NewHolds(client, nil, time.Minute)
	ctx := context.Background()

	ok, err := h.HoldSeats(ctx, "scr-1", []string{"E1", "E2", "E3"}, "sess-1")
	require.NoError(t, err)
	require.True(t, ok)

	err = h.ReleaseSeats(ctx, "scr-1", []string{"E1", "E2", "E3"}, "sess-1")
	require.NoError(t, err)

	for _, seatID := range []string{"E1", "E2", "E3"} {
		held, err := h.IsHeld(ctx, "scr-1", seatID)
		require.NoError(t, err)
		assert.False(t, held, "seat %s still held", seatID)
	}
}
