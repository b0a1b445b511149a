package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/JeduDev/lugx/internal/domain"
	"github.com/JeduDev/lugx/internal/repository"
)

type clientRepository struct {
	db *sql.DB
}

func NewClientRepository(db *sql.DB) repository.ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) Create(ctx context.Context, c *domain.Client) error {
	query := `INSERT INTO clients (name, email, phone, active, created_on)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id, created_on`
	return r.db.QueryRowContext(ctx, query, c.Name, c.Email, c.Phone, c.Active, time.Now()).Scan(&c.ID, &c.CreatedOn)
}

func (r *clientRepository) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	c := &domain.Client{}
	query := `SELECT id, name, COALESCE(email, ''), COALESCE(phone, ''), active, created_on FROM clients WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Active, &c.CreatedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("client", id)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *clientRepository) Update(ctx context.Context, c *domain.Client) error {
	query := `UPDATE clients SET name=$1, email=$2, phone=$3, active=$4 WHERE id=$5`
	res, err := r.db.ExecContext(ctx, query, c.Name, c.Email, c.Phone, c.Active, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewNotFound("client", c.ID)
	}
	return nil
}

func (r *clientRepository) SoftDelete(ctx context.Context, id int64) error {
	query := `UPDATE clients SET active = false WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewNotFound("client", id)
	}
	return nil
}

func (r *clientRepository) List(ctx context.Context, filter repository.ClientFilter) ([]domain.Client, int64, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	if filter.Search != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR email ILIKE $%d)", argIdx, argIdx)
		args = append(args, "%"+filter.Search+"%")
		argIdx++
	}
	if filter.Active != nil {
		where += fmt.Sprintf(" AND active = $%d", argIdx)
		args = append(args, *filter.Active)
		argIdx++
	}

	var count int64
	countSql := "SELECT count(*) FROM clients " + where
	if err := r.db.QueryRowContext(ctx, countSql, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 10
	}

	query := fmt.Sprintf(`SELECT id, name, COALESCE(email, ''), COALESCE(phone, ''), active, created_on
	        FROM clients %s ORDER BY created_on DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Active, &c.CreatedOn); err != nil {
			return nil, 0, err
		}
		clients = append(clients, c)
	}
	return clients, count, rows.Err()
}
