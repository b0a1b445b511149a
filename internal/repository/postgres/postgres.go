package postgres

import (
	"context"
	"database/sql"

	"github.com/JeduDev/lugx/internal/repository"

	_ "github.com/lib/pq"
)

type Store struct {
	db *sql.DB
	repository.GarmentRepository
	repository.ClientRepository
	repository.RentalRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                db,
		GarmentRepository: NewGarmentRepository(db),
		ClientRepository:  NewClientRepository(db),
		RentalRepository:  NewRentalRepository(db),
	}
}

// Ping verifies the database connection, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
