package service

import (
	"context"
	"time"

	"github.com/JeduDev/lugx/internal/domain"
	"github.com/JeduDev/lugx/internal/repository"
)

// CreateRentalInput carries everything needed to book a garment.
type CreateRentalInput struct {
	GarmentID      int64
	ClientID       *int64
	StartTime      time.Time
	EndTime        time.Time
	Cost           *float64
	Notes          string
	IdempotencyKey string
}

type RentalService interface {
	CreateRental(ctx context.Context, in CreateRentalInput) (*domain.Rental, error)
	UpdateRental(ctx context.Context, id int64, patch domain.RentalPatch) (*domain.Rental, error)
	CancelRental(ctx context.Context, id int64) error
	GetRental(ctx context.Context, id int64) (*domain.Rental, error)
	ListActiveRentals(ctx context.Context) ([]domain.Rental, error)
	ListRentals(ctx context.Context, filter domain.RentalFilter) ([]domain.Rental, int64, error)
	RentalStats(ctx context.Context) (*domain.RentalStats, error)
}

type GarmentService interface {
	CreateGarment(ctx context.Context, g *domain.Garment) error
	GetGarment(ctx context.Context, id int64) (*domain.Garment, error)
	UpdateGarment(ctx context.Context, g *domain.Garment) error
	DeleteGarment(ctx context.Context, id int64) error
	ListGarments(ctx context.Context, filter repository.GarmentFilter) ([]domain.Garment, int64, error)
	ListAvailableGarments(ctx context.Context) ([]domain.Garment, error)
}

type ClientService interface {
	CreateClient(ctx context.Context, c *domain.Client) error
	GetClient(ctx context.Context, id int64) (*domain.Client, error)
	UpdateClient(ctx context.Context, c *domain.Client) error
	DeleteClient(ctx context.Context, id int64) error
	ListClients(ctx context.Context, filter repository.ClientFilter) ([]domain.Client, int64, error)
}
