package seats_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"cine-pos/internal/seats"
)

// Mock implementations
type MockTicketSource struct {
	mock.Mock
}

func (m *MockTicketSource) OccupiedSeats(ctx context.Context, screeningID string) ([]string, error) {
	args := m.Called(ctx, screeningID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockSeatHolds struct {
	mock.Mock
}

func (m *MockSeatHolds) HoldSeats(ctx context.Context, screeningID string, seatIDs []string, sessionID string) (bool, error) {
	args := m.Called(ctx, screeningID, seatIDs, sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSeatHolds) ReleaseSeats(ctx context.Context, screeningID string, seatIDs []string, sessionID string) error {
	args := m.Called(ctx, screeningID, seatIDs, sessionID)
	return args.Error(0)
}

func TestRefreshAndIsAvailable(t *testing.T) {
	source := new(MockTicketSource)
	holds := new(MockSeatHolds)
	tracker := seats.NewTracker(source, holds)
	ctx := context.Background()

	source.On("OccupiedSeats", ctx, "scr-1").Return([]string{"A1", "B2"}, nil)

	err := tracker.Refresh(ctx, "scr-1")
	assert.NoError(t, err)

	assert.False(t, tracker.IsAvailable("scr-1", "A1"))
	assert.False(t, tracker.IsAvailable("scr-1", "B2"))
	assert.True(t, tracker.IsAvailable("scr-1", "A2"))
	// Unknown screening: nothing known to be sold.
	assert.True(t, tracker.IsAvailable("scr-9", "A1"))

	assert.ElementsMatch(t, []string{"A1", "B2"}, tracker.Occupied("scr-1"))
	source.AssertExpectations(t)
}

func TestRefreshReplacesSnapshot(t *testing.T) {
	source := new(MockTicketSource)
	holds := new(MockSeatHolds)
	tracker := seats.NewTracker(source, holds)
	ctx := context.Background()

	source.On("OccupiedSeats", ctx, "scr-1").Return([]string{"A1"}, nil).Once()
	assert.NoError(t, tracker.Refresh(ctx, "scr-1"))
	assert.False(t, tracker.IsAvailable("scr-1", "A1"))

	// A later refresh fully replaces the old snapshot.
	source.On("OccupiedSeats", ctx, "scr-1").Return([]string{"C3"}, nil).Once()
	assert.NoError(t, tracker.Refresh(ctx, "scr-1"))
	assert.True(t, tracker.IsAvailable("scr-1", "A1"))
	assert.False(t, tracker.IsAvailable("scr-1", "C3"))
}

func TestRefreshPropagatesSourceError(t *testing.T) {
	source := new(MockTicketSource)
	holds := new(MockSeatHolds)
	tracker := seats.NewTracker(source, holds)
	ctx := context.Background()

	source.On("OccupiedSeats", ctx, "scr-1").Return(nil, errors.New("db down"))

	err := tracker.Refresh(ctx, "scr-1")
	assert.Error(t, err)
}

func TestSelectHappyPath(t *testing.T) {
	source := new(MockTicketSource)
	holds := new(MockSeatHolds)
	tracker := seats.NewTracker(source, holds)
	ctx := context.Background()

	source.On("OccupiedSeats", ctx, "scr-1").Return([]string{"A1"}, nil)
	assert.NoError(t, tracker.Refresh(ctx, "scr-1"))

	holds.On("HoldSeats", ctx, "scr-1", []string{"B1", "B2"}, "sess-1").Return(true, nil)

	reservations, err := tracker.Select(ctx, "scr-1", []string{"B1", "B2"}, "sess-1")
	assert.NoError(t, err)
	assert.Len(t, reservations, 2)
	assert.Equal(t, seats.Reservation{ScreeningID: "scr-1", SeatID: "B1"}, reservations[0])
	holds.AssertExpectations(t)
}

func TestSelectRefusesOccupiedSeat(t *testing.T) {
	source := new(MockTicketSource)
	holds := new(MockSeatHolds)
	tracker := seats.NewTracker(source, holds)
	ctx := context.Background()

	source.On("OccupiedSeats", ctx, "scr-1").Return([]string{"A1"}, nil)
	assert.NoError(t, tracker.Refresh(ctx, "scr-1"))

	// One sold seat in the batch refuses the whole selection before any
	// hold is attempted.
	reservations, err := tracker.Select(ctx, "scr-1", []string{"B1", "A1"}, "sess-1")
	assert.ErrorIs(t, err, seats.ErrSeatOccupied)
	assert.Nil(t, reservations)
	holds.AssertNotCalled(t, "HoldSeats", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSelectRefusesHeldSeat(t *testing.T) {
	source := new(MockTicketSource)
	holds := new(MockSeatHolds)
	tracker := seats.NewTracker(source, holds)
	ctx := context.Background()

	source.On("OccupiedSeats", ctx, "scr-1").Return([]string{}, nil)
	assert.NoError(t, tracker.Refresh(ctx, "scr-1"))

	// Another till holds one of the seats: HoldSeats reports false.
	holds.On("HoldSeats", ctx, "scr-1", []string{"B1"}, "sess-1").Return(false, nil)

	reservations, err := tracker.Select(ctx, "scr-1", []string{"B1"}, "sess-1")
	assert.ErrorIs(t, err, seats.ErrSeatHeld)
	assert.Nil(t, reservations)
}

func TestReleaseDelegatesToHolds(t *testing.T) {
	source := new(MockTicketSource)
	holds := new(MockSeatHolds)
	tracker := seats.NewTracker(source, holds)
	ctx := context.Background()

	holds.On("ReleaseSeats", ctx, "scr-1", []string{"B1"}, "sess-1").Return(nil)

	err := tracker.Release(ctx, "scr-1", []string{"B1"}, "sess-1")
	assert.NoError(t, err)
	holds.AssertExpectations(t)
}
