package repository

import (
	"context"
	"errors"
	"time"

	"github.com/JeduDev/lugx/internal/domain"
)

// ErrDuplicateIdempotencyKey is returned when an insert loses the race
// on a previously used idempotency key. Callers fetch the original row.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

type GarmentFilter struct {
	Status   domain.GarmentStatus
	Active   *bool
	Page     int
	PageSize int
}

type ClientFilter struct {
	Search   string
	Active   *bool
	Page     int
	PageSize int
}

type GarmentRepository interface {
	Create(ctx context.Context, g *domain.Garment) error
	GetByID(ctx context.Context, id int64) (*domain.Garment, error)
	Update(ctx context.Context, g *domain.Garment) error
	SoftDelete(ctx context.Context, id int64) error
	List(ctx context.Context, filter GarmentFilter) ([]domain.Garment, int64, error)
	ListAvailable(ctx context.Context) ([]domain.Garment, error)
}

type ClientRepository interface {
	Create(ctx context.Context, c *domain.Client) error
	GetByID(ctx context.Context, id int64) (*domain.Client, error)
	Update(ctx context.Context, c *domain.Client) error
	SoftDelete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ClientFilter) ([]domain.Client, int64, error)
}

// RentalRepository owns the rental rows and, for the composite
// operations, the garment status that mirrors them. CreateBooked,
// UpdateBooked, Cancel and ExpireOverdue each run as a single database
// transaction: the rental write and the garment status change commit
// together or not at all, serialized per garment by a row lock.
type RentalRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Rental, error)
	List(ctx context.Context, filter domain.RentalFilter) ([]domain.Rental, int64, error)
	ListActive(ctx context.Context) ([]domain.Rental, error)
	Stats(ctx context.Context) (*domain.RentalStats, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Rental, error)
	HasActiveForGarment(ctx context.Context, garmentID int64) (bool, error)
	HasActiveForClient(ctx context.Context, clientID int64) (bool, error)

	CreateBooked(ctx context.Context, rt *domain.Rental, idempotencyKey string) error
	UpdateBooked(ctx context.Context, id int64, patch domain.RentalPatch) (*domain.Rental, error)
	Cancel(ctx context.Context, id int64) error
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}
