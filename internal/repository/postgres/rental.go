package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/JeduDev/lugx/internal/domain"
	"github.com/JeduDev/lugx/internal/repository"
)

type rentalRepository struct {
	db *sql.DB
}

func NewRentalRepository(db *sql.DB) repository.RentalRepository {
	return &rentalRepository{db: db}
}

const rentalSelect = `SELECT r.id, r.garment_id, r.client_id, r.start_time, r.end_time, r.status, r.cost, COALESCE(r.notes, ''),
       COALESCE(c.name, 'Unassigned'), g.name, r.created_on, r.updated_on
FROM rentals r
LEFT JOIN clients c ON r.client_id = c.id
JOIN garments g ON r.garment_id = g.id`

func scanRental(row interface{ Scan(...interface{}) error }) (*domain.Rental, error) {
	rt := &domain.Rental{}
	var clientID sql.NullInt64
	var cost sql.NullFloat64
	err := row.Scan(&rt.ID, &rt.GarmentID, &clientID, &rt.StartTime, &rt.EndTime, &rt.Status, &cost, &rt.Notes,
		&rt.ClientName, &rt.GarmentName, &rt.CreatedOn, &rt.UpdatedOn)
	if err != nil {
		return nil, err
	}
	if clientID.Valid {
		rt.ClientID = &clientID.Int64
	}
	if cost.Valid {
		rt.Cost = &cost.Float64
	}
	return rt, nil
}

func (r *rentalRepository) GetByID(ctx context.Context, id int64) (*domain.Rental, error) {
	rt, err := scanRental(r.db.QueryRowContext(ctx, rentalSelect+` WHERE r.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("rental", id)
	}
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// CreateBooked inserts the rental and marks the garment rented in one
// transaction. The garment row is locked first so two concurrent
// bookings on the same garment cannot both pass the conflict check.
func (r *rentalRepository) CreateBooked(ctx context.Context, rt *domain.Rental, idempotencyKey string) error {
	return runInTx(ctx, r.db, func(tx *sql.Tx) error {
		var status domain.GarmentStatus
		var active bool
		err := tx.QueryRowContext(ctx, `SELECT status, active FROM garments WHERE id = $1 FOR UPDATE`, rt.GarmentID).
			Scan(&status, &active)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewNotFound("garment", rt.GarmentID)
		}
		if err != nil {
			return err
		}
		// Overlap is checked before general availability so a caller
		// colliding with an existing booking sees the conflict, not a
		// generic unavailable.
		intervals, err := activeIntervals(ctx, tx, rt.GarmentID, 0)
		if err != nil {
			return err
		}
		if iv, ok := domain.FindConflict(intervals, rt.StartTime, rt.EndTime); ok {
			return domain.NewBookingConflict(rt.GarmentID, rt.StartTime, rt.EndTime, iv.RentalID)
		}
		if status != domain.GarmentStatusAvailable || !active {
			return domain.NewUnavailable(rt.GarmentID, status)
		}

		now := time.Now()
		var key sql.NullString
		if idempotencyKey != "" {
			key = sql.NullString{String: idempotencyKey, Valid: true}
		}
		err = tx.QueryRowContext(ctx, `INSERT INTO rentals (garment_id, client_id, start_time, end_time, status, cost, notes, idempotency_key, created_on, updated_on)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id, created_on, updated_on`,
			rt.GarmentID, rt.ClientID, rt.StartTime, rt.EndTime, domain.RentalStatusActive, rt.Cost, rt.Notes, key, now, now).
			Scan(&rt.ID, &rt.CreatedOn, &rt.UpdatedOn)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return repository.ErrDuplicateIdempotencyKey
			}
			return err
		}
		rt.Status = domain.RentalStatusActive

		_, err = tx.ExecContext(ctx, `UPDATE garments SET status = 'rented' WHERE id = $1`, rt.GarmentID)
		return err
	})
}

// UpdateBooked applies a partial update. Interval edits on a still-active
// rental re-run the conflict check; a status transition out of active
// frees the garment in the same transaction.
func (r *rentalRepository) UpdateBooked(ctx context.Context, id int64, patch domain.RentalPatch) (*domain.Rental, error) {
	err := runInTx(ctx, r.db, func(tx *sql.Tx) error {
		cur := &domain.Rental{}
		var clientID sql.NullInt64
		var cost sql.NullFloat64
		err := tx.QueryRowContext(ctx, `SELECT id, garment_id, client_id, start_time, end_time, status, cost, COALESCE(notes, '')
		          FROM rentals WHERE id = $1 FOR UPDATE`, id).
			Scan(&cur.ID, &cur.GarmentID, &clientID, &cur.StartTime, &cur.EndTime, &cur.Status, &cost, &cur.Notes)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewNotFound("rental", id)
		}
		if err != nil {
			return err
		}

		newStart := cur.StartTime
		newEnd := cur.EndTime
		if patch.StartTime != nil {
			newStart = *patch.StartTime
		}
		if patch.EndTime != nil {
			newEnd = *patch.EndTime
		}
		if (patch.StartTime != nil || patch.EndTime != nil) && !newEnd.After(newStart) {
			return domain.NewInvalidInterval(newStart, newEnd)
		}

		newStatus := cur.Status
		if patch.Status != nil && *patch.Status != cur.Status {
			if cur.Status.Terminal() {
				return domain.NewInvalidState(fmt.Sprintf("rental %d is already %s", id, cur.Status))
			}
			newStatus = *patch.Status
		}

		intervalChanged := !newStart.Equal(cur.StartTime) || !newEnd.Equal(cur.EndTime)
		if intervalChanged && newStatus == domain.RentalStatusActive {
			// Lock the garment so the re-check serializes with bookings.
			var garmentID int64
			if err := tx.QueryRowContext(ctx, `SELECT id FROM garments WHERE id = $1 FOR UPDATE`, cur.GarmentID).Scan(&garmentID); err != nil {
				return err
			}
			intervals, err := activeIntervals(ctx, tx, cur.GarmentID, id)
			if err != nil {
				return err
			}
			if iv, ok := domain.FindConflict(intervals, newStart, newEnd); ok {
				return domain.NewBookingConflict(cur.GarmentID, newStart, newEnd, iv.RentalID)
			}
		}

		newCost := cost
		if patch.Cost != nil {
			newCost = sql.NullFloat64{Float64: *patch.Cost, Valid: true}
		}
		newNotes := cur.Notes
		if patch.Notes != nil {
			newNotes = *patch.Notes
		}

		_, err = tx.ExecContext(ctx, `UPDATE rentals SET start_time=$1, end_time=$2, status=$3, cost=$4, notes=$5, updated_on=$6 WHERE id=$7`,
			newStart, newEnd, newStatus, newCost, newNotes, time.Now(), id)
		if err != nil {
			return err
		}

		if cur.Status == domain.RentalStatusActive && newStatus.Terminal() {
			_, err = tx.ExecContext(ctx, `UPDATE garments SET status = 'available' WHERE id = $1`, cur.GarmentID)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Cancel moves an active rental to cancelled and frees its garment.
func (r *rentalRepository) Cancel(ctx context.Context, id int64) error {
	return runInTx(ctx, r.db, func(tx *sql.Tx) error {
		var garmentID int64
		var status domain.RentalStatus
		err := tx.QueryRowContext(ctx, `SELECT garment_id, status FROM rentals WHERE id = $1 FOR UPDATE`, id).
			Scan(&garmentID, &status)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewNotFound("rental", id)
		}
		if err != nil {
			return err
		}
		if status != domain.RentalStatusActive {
			return domain.NewInvalidState(fmt.Sprintf("rental %d is %s, only active rentals can be cancelled", id, status))
		}

		if _, err := tx.ExecContext(ctx, `UPDATE rentals SET status='cancelled', updated_on=$1 WHERE id=$2`, time.Now(), id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE garments SET status = 'available' WHERE id = $1`, garmentID)
		return err
	})
}

// ExpireOverdue marks active rentals past their end time as expired and
// frees their garments. Returns the number of expired rentals.
func (r *rentalRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	var expired int64
	err := runInTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `UPDATE rentals SET status='expired', updated_on=$1
		          WHERE status='active' AND end_time < $1 RETURNING garment_id`, now)
		if err != nil {
			return err
		}
		defer rows.Close()

		var garmentIDs []int64
		for rows.Next() {
			var gid int64
			if err := rows.Scan(&gid); err != nil {
				return err
			}
			garmentIDs = append(garmentIDs, gid)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		expired = int64(len(garmentIDs))
		if expired == 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx, `UPDATE garments SET status='available' WHERE id = ANY($1)`, pq.Array(garmentIDs))
		return err
	})
	return expired, err
}

func (r *rentalRepository) ListActive(ctx context.Context) ([]domain.Rental, error) {
	rows, err := r.db.QueryContext(ctx, rentalSelect+` WHERE r.status = 'active' ORDER BY r.start_time ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRentals(rows)
}

func (r *rentalRepository) List(ctx context.Context, filter domain.RentalFilter) ([]domain.Rental, int64, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	if filter.ClientID != nil {
		where += fmt.Sprintf(" AND r.client_id = $%d", argIdx)
		args = append(args, *filter.ClientID)
		argIdx++
	}
	if filter.GarmentID != nil {
		where += fmt.Sprintf(" AND r.garment_id = $%d", argIdx)
		args = append(args, *filter.GarmentID)
		argIdx++
	}
	if filter.From != nil {
		where += fmt.Sprintf(" AND r.start_time >= $%d", argIdx)
		args = append(args, *filter.From)
		argIdx++
	}
	if filter.To != nil {
		where += fmt.Sprintf(" AND r.end_time <= $%d", argIdx)
		args = append(args, *filter.To)
		argIdx++
	}

	var count int64
	countSql := `SELECT count(*) FROM rentals r LEFT JOIN clients c ON r.client_id = c.id JOIN garments g ON r.garment_id = g.id ` + where
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

	query := fmt.Sprintf("%s %s ORDER BY r.created_on DESC LIMIT $%d OFFSET $%d", rentalSelect, where, argIdx, argIdx+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	rentals, err := collectRentals(rows)
	if err != nil {
		return nil, 0, err
	}
	return rentals, count, nil
}

func (r *rentalRepository) Stats(ctx context.Context) (*domain.RentalStats, error) {
	stats := &domain.RentalStats{}
	query := `SELECT
	    count(*),
	    count(*) FILTER (WHERE status = 'active'),
	    count(*) FILTER (WHERE status = 'completed'),
	    COALESCE(SUM(cost) FILTER (WHERE status = 'completed' AND date_trunc('month', created_on) = date_trunc('month', now())), 0),
	    COALESCE(SUM(cost) FILTER (WHERE status = 'completed'), 0)
	FROM rentals`
	err := r.db.QueryRowContext(ctx, query).
		Scan(&stats.Total, &stats.Active, &stats.Completed, &stats.MonthRevenue, &stats.TotalRevenue)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *rentalRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Rental, error) {
	rt, err := scanRental(r.db.QueryRowContext(ctx, rentalSelect+` WHERE r.idempotency_key = $1`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func (r *rentalRepository) HasActiveForGarment(ctx context.Context, garmentID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM rentals WHERE garment_id = $1 AND status = 'active')`, garmentID).Scan(&exists)
	return exists, err
}

func (r *rentalRepository) HasActiveForClient(ctx context.Context, clientID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM rentals WHERE client_id = $1 AND status = 'active')`, clientID).Scan(&exists)
	return exists, err
}

// activeIntervals loads the active rental windows for a garment inside
// the caller's transaction, optionally excluding one rental id.
func activeIntervals(ctx context.Context, tx *sql.Tx, garmentID, excludeID int64) ([]domain.Interval, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, start_time, end_time FROM rentals WHERE garment_id = $1 AND status = 'active' AND id <> $2`, garmentID, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intervals []domain.Interval
	for rows.Next() {
		var iv domain.Interval
		if err := rows.Scan(&iv.RentalID, &iv.Start, &iv.End); err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}
	return intervals, rows.Err()
}

func collectRentals(rows *sql.Rows) ([]domain.Rental, error) {
	var rentals []domain.Rental
	for rows.Next() {
		rt, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		rentals = append(rentals, *rt)
	}
	return rentals, rows.Err()
}
