package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"cine-pos/internal/models"
)

var ErrNotFound = errors.New("not found in catalog")

// Service is the read-only gateway to the programme: screenings, rooms,
// snacks and loyalty customers. The core consumes it, it never writes
// through it.
type Service struct {
	Bun *bun.DB
}

func NewService(bunDB *bun.DB) *Service {
	return &Service{Bun: bunDB}
}

// ScreeningsFrom lists active screenings starting at or after the given
// time, earliest first, with their rooms.
func (s *Service) ScreeningsFrom(ctx context.Context, from time.Time) ([]models.Screening, error) {
	var screenings []models.Screening
	err := s.Bun.NewSelect().
		Model(&screenings).
		Relation("Room").
		Where("starts_at >= ?", from).
		Where("is_active = ?", true).
		Order("starts_at").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list screenings: %w", err)
	}
	return screenings, nil
}

// ScreeningByID fetches one screening with its room layout.
func (s *Service) ScreeningByID(ctx context.Context, id string) (*models.Screening, error) {
	var screening models.Screening
	err := s.Bun.NewSelect().
		Model(&screening).
		Relation("Room").
		Where("screening.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("screening %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &screening, nil
}

// ActiveSnacks lists sellable concession items grouped the way the counter
// displays them.
func (s *Service) ActiveSnacks(ctx context.Context) ([]models.Snack, error) {
	var snacks []models.Snack
	err := s.Bun.NewSelect().
		Model(&snacks).
		Where("is_active = ?", true).
		Order("category", "name").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list snacks: %w", err)
	}
	for i := range snacks {
		snacks[i].LowStock = snacks[i].StockQuantity < snacks[i].StockAlertLevel
	}
	return snacks, nil
}

// SnackByID fetches one snack.
func (s *Service) SnackByID(ctx context.Context, id string) (*models.Snack, error) {
	var snack models.Snack
	err := s.Bun.NewSelect().
		Model(&snack).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snack %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	snack.LowStock = snack.StockQuantity < snack.StockAlertLevel
	return &snack, nil
}

// FindCustomer looks a loyalty customer up by email, phone or card number,
// whichever the cashier scanned or typed.
func (s *Service) FindCustomer(ctx context.Context, query string) (*models.Customer, error) {
	var customer models.Customer
	err := s.Bun.NewSelect().
		Model(&customer).
		Where("email = ?", query).
		WhereOr("phone = ?", query).
		WhereOr("card_number = ?", query).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer %q: %w", query, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}
