package service

import (
	"context"
	"fmt"

	"github.com/JeduDev/lugx/internal/domain"
	"github.com/JeduDev/lugx/internal/repository"
)

type clientService struct {
	clientRepo repository.ClientRepository
	rentalRepo repository.RentalRepository
}

func NewClientService(clientRepo repository.ClientRepository, rentalRepo repository.RentalRepository) ClientService {
	return &clientService{clientRepo: clientRepo, rentalRepo: rentalRepo}
}

func (s *clientService) CreateClient(ctx context.Context, c *domain.Client) error {
	c.Active = true
	return s.clientRepo.Create(ctx, c)
}

func (s *clientService) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	return s.clientRepo.GetByID(ctx, id)
}

func (s *clientService) UpdateClient(ctx context.Context, c *domain.Client) error {
	return s.clientRepo.Update(ctx, c)
}

// DeleteClient soft-deletes. Blocked while the client still has an
// active rental.
func (s *clientService) DeleteClient(ctx context.Context, id int64) error {
	busy, err := s.rentalRepo.HasActiveForClient(ctx, id)
	if err != nil {
		return err
	}
	if busy {
		return domain.NewInvalidState(fmt.Sprintf("client %d has an active rental and cannot be deleted", id))
	}
	return s.clientRepo.SoftDelete(ctx, id)
}

func (s *clientService) ListClients(ctx context.Context, filter repository.ClientFilter) ([]domain.Client, int64, error) {
	return s.clientRepo.List(ctx, filter)
}
