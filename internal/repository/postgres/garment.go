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

type garmentRepository struct {
	db *sql.DB
}

func NewGarmentRepository(db *sql.DB) repository.GarmentRepository {
	return &garmentRepository{db: db}
}

func (r *garmentRepository) Create(ctx context.Context, g *domain.Garment) error {
	query := `INSERT INTO garments (name, description, status, active, created_on)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id, created_on`
	return r.db.QueryRowContext(ctx, query, g.Name, g.Description, g.Status, g.Active, time.Now()).Scan(&g.ID, &g.CreatedOn)
}

func (r *garmentRepository) GetByID(ctx context.Context, id int64) (*domain.Garment, error) {
	g := &domain.Garment{}
	query := `SELECT id, name, COALESCE(description, ''), status, active, created_on FROM garments WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&g.ID, &g.Name, &g.Description, &g.Status, &g.Active, &g.CreatedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("garment", id)
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (r *garmentRepository) Update(ctx context.Context, g *domain.Garment) error {
	query := `UPDATE garments SET name=$1, description=$2, status=$3, active=$4 WHERE id=$5`
	res, err := r.db.ExecContext(ctx, query, g.Name, g.Description, g.Status, g.Active, g.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewNotFound("garment", g.ID)
	}
	return nil
}

func (r *garmentRepository) SoftDelete(ctx context.Context, id int64) error {
	query := `UPDATE garments SET active = false WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewNotFound("garment", id)
	}
	return nil
}

func (r *garmentRepository) List(ctx context.Context, filter repository.GarmentFilter) ([]domain.Garment, int64, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.Active != nil {
		where += fmt.Sprintf(" AND active = $%d", argIdx)
		args = append(args, *filter.Active)
		argIdx++
	}

	var count int64
	countSql := "SELECT count(*) FROM garments " + where
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

	query := fmt.Sprintf(`SELECT id, name, COALESCE(description, ''), status, active, created_on
	        FROM garments %s ORDER BY created_on DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var garments []domain.Garment
	for rows.Next() {
		var g domain.Garment
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.Status, &g.Active, &g.CreatedOn); err != nil {
			return nil, 0, err
		}
		garments = append(garments, g)
	}
	return garments, count, rows.Err()
}

func (r *garmentRepository) ListAvailable(ctx context.Context) ([]domain.Garment, error) {
	query := `SELECT id, name, COALESCE(description, ''), status, active, created_on
	          FROM garments WHERE status = 'available' AND active = true ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var garments []domain.Garment
	for rows.Next() {
		var g domain.Garment
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.Status, &g.Active, &g.CreatedOn); err != nil {
			return nil, err
		}
		garments = append(garments, g)
	}
	return garments, rows.Err()
}
