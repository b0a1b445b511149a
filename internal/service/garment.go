package service

import (
	"context"
	"fmt"

	"github.com/JeduDev/lugx/internal/domain"
	"github.com/JeduDev/lugx/internal/repository"
)

type garmentService struct {
	garmentRepo repository.GarmentRepository
	rentalRepo  repository.RentalRepository
}

func NewGarmentService(garmentRepo repository.GarmentRepository, rentalRepo repository.RentalRepository) GarmentService {
	return &garmentService{garmentRepo: garmentRepo, rentalRepo: rentalRepo}
}

func (s *garmentService) CreateGarment(ctx context.Context, g *domain.Garment) error {
	if g.Status == "" {
		g.Status = domain.GarmentStatusAvailable
	}
	if !domain.ValidGarmentStatus(g.Status) {
		return domain.NewInvalidState("unknown garment status " + string(g.Status))
	}
	if g.Status == domain.GarmentStatusRented {
		return domain.NewInvalidState("garment status rented is set by the rental ledger, not directly")
	}
	g.Active = true
	return s.garmentRepo.Create(ctx, g)
}

func (s *garmentService) GetGarment(ctx context.Context, id int64) (*domain.Garment, error) {
	return s.garmentRepo.GetByID(ctx, id)
}

func (s *garmentService) UpdateGarment(ctx context.Context, g *domain.Garment) error {
	if !domain.ValidGarmentStatus(g.Status) {
		return domain.NewInvalidState("unknown garment status " + string(g.Status))
	}

	cur, err := s.garmentRepo.GetByID(ctx, g.ID)
	if err != nil {
		return err
	}
	if g.Status != cur.Status {
		// Rented is owned by the ledger; moving a rented garment out of
		// that state manually would break the active-rental invariant.
		if g.Status == domain.GarmentStatusRented {
			return domain.NewInvalidState("garment status rented is set by the rental ledger, not directly")
		}
		if cur.Status == domain.GarmentStatusRented {
			busy, err := s.rentalRepo.HasActiveForGarment(ctx, g.ID)
			if err != nil {
				return err
			}
			if busy {
				return domain.NewInvalidState(fmt.Sprintf("garment %d has an active rental", g.ID))
			}
		}
	}
	return s.garmentRepo.Update(ctx, g)
}

func (s *garmentService) DeleteGarment(ctx context.Context, id int64) error {
	busy, err := s.rentalRepo.HasActiveForGarment(ctx, id)
	if err != nil {
		return err
	}
	if busy {
		return domain.NewInvalidState(fmt.Sprintf("garment %d has an active rental and cannot be deleted", id))
	}
	return s.garmentRepo.SoftDelete(ctx, id)
}

func (s *garmentService) ListGarments(ctx context.Context, filter repository.GarmentFilter) ([]domain.Garment, int64, error) {
	return s.garmentRepo.List(ctx, filter)
}

func (s *garmentService) ListAvailableGarments(ctx context.Context) ([]domain.Garment, error) {
	return s.garmentRepo.ListAvailable(ctx)
}
