package service

import (
	"context"
	"errors"

	"github.com/JeduDev/lugx/internal/domain"
	"github.com/JeduDev/lugx/internal/logger"
	"github.com/JeduDev/lugx/internal/repository"
)

// rentalService is the rental ledger: it owns every state transition on
// rentals and the garment status that mirrors them. All failures are
// typed domain errors; no operation ever leaves a partial write behind.
type rentalService struct {
	rentalRepo  repository.RentalRepository
	garmentRepo repository.GarmentRepository
	clientRepo  repository.ClientRepository
}

func NewRentalService(
	rentalRepo repository.RentalRepository,
	garmentRepo repository.GarmentRepository,
	clientRepo repository.ClientRepository,
) RentalService {
	return &rentalService{
		rentalRepo:  rentalRepo,
		garmentRepo: garmentRepo,
		clientRepo:  clientRepo,
	}
}

func (s *rentalService) CreateRental(ctx context.Context, in CreateRentalInput) (*domain.Rental, error) {
	if !in.EndTime.After(in.StartTime) {
		return nil, domain.NewInvalidInterval(in.StartTime, in.EndTime)
	}

	// A replayed create with a known key returns the original booking
	// instead of double-booking the garment.
	if in.IdempotencyKey != "" {
		existing, err := s.rentalRepo.FindByIdempotencyKey(ctx, in.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			logger.Info("Rental create replayed, returning original", "rental_id", existing.ID, "idempotency_key", in.IdempotencyKey)
			return existing, nil
		}
	}

	if in.ClientID != nil {
		client, err := s.clientRepo.GetByID(ctx, *in.ClientID)
		if err != nil {
			return nil, err
		}
		if !client.Active {
			return nil, domain.NewInactiveEntity("client", client.ID)
		}
	}

	rt := &domain.Rental{
		GarmentID: in.GarmentID,
		ClientID:  in.ClientID,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Cost:      in.Cost,
		Notes:     in.Notes,
	}
	err := s.rentalRepo.CreateBooked(ctx, rt, in.IdempotencyKey)
	if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
		// Lost the insert race against an identical replay.
		return s.rentalRepo.FindByIdempotencyKey(ctx, in.IdempotencyKey)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Rental created", "rental_id", rt.ID, "garment_id", rt.GarmentID)
	return s.rentalRepo.GetByID(ctx, rt.ID)
}

func (s *rentalService) UpdateRental(ctx context.Context, id int64, patch domain.RentalPatch) (*domain.Rental, error) {
	if patch.StartTime != nil && patch.EndTime != nil && !patch.EndTime.After(*patch.StartTime) {
		return nil, domain.NewInvalidInterval(*patch.StartTime, *patch.EndTime)
	}
	if patch.Status != nil && !domain.ValidRentalStatus(*patch.Status) {
		return nil, domain.NewInvalidState("unknown rental status " + string(*patch.Status))
	}

	rt, err := s.rentalRepo.UpdateBooked(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	logger.Info("Rental updated", "rental_id", id, "status", rt.Status)
	return rt, nil
}

func (s *rentalService) CancelRental(ctx context.Context, id int64) error {
	if err := s.rentalRepo.Cancel(ctx, id); err != nil {
		return err
	}
	logger.Info("Rental cancelled", "rental_id", id)
	return nil
}

func (s *rentalService) GetRental(ctx context.Context, id int64) (*domain.Rental, error) {
	return s.rentalRepo.GetByID(ctx, id)
}

func (s *rentalService) ListActiveRentals(ctx context.Context) ([]domain.Rental, error) {
	return s.rentalRepo.ListActive(ctx)
}

func (s *rentalService) ListRentals(ctx context.Context, filter domain.RentalFilter) ([]domain.Rental, int64, error) {
	return s.rentalRepo.List(ctx, filter)
}

func (s *rentalService) RentalStats(ctx context.Context) (*domain.RentalStats, error) {
	return s.rentalRepo.Stats(ctx)
}
