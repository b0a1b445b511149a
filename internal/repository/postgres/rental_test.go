package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeduDev/lugx/internal/domain"
)

func newMock(t *testing.T) (sqlmock.Sqlmock, *rentalRepository) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return mock, &rentalRepository{db: db}
}

func window(startHour, endHour int) (time.Time, time.Time) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(startHour) * time.Hour), base.Add(time.Duration(endHour) * time.Hour)
}

func TestCreateBookedCommitsBothWrites(t *testing.T) {
	mock, repo := newMock(t)
	start, end := window(10, 12)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status, active FROM garments WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "active"}).AddRow("available", true))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, start_time, end_time FROM rentals WHERE garment_id = $1 AND status = 'active' AND id <> $2`)).
		WithArgs(int64(5), int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "start_time", "end_time"}))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO rentals`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_on", "updated_on"}).AddRow(int64(42), now, now))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE garments SET status = 'rented' WHERE id = $1`)).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rt := &domain.Rental{GarmentID: 5, StartTime: start, EndTime: end}
	err := repo.CreateBooked(context.Background(), rt, "")
	require.NoError(t, err)
	assert.Equal(t, int64(42), rt.ID)
	assert.Equal(t, domain.RentalStatusActive, rt.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookedConflictRollsBack(t *testing.T) {
	mock, repo := newMock(t)
	start, end := window(10, 12)
	busyStart, busyEnd := window(11, 13)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status, active FROM garments WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "active"}).AddRow("rented", true))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, start_time, end_time FROM rentals`)).
		WithArgs(int64(5), int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "start_time", "end_time"}).AddRow(int64(7), busyStart, busyEnd))
	mock.ExpectRollback()

	rt := &domain.Rental{GarmentID: 5, StartTime: start, EndTime: end}
	err := repo.CreateBooked(context.Background(), rt, "")
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeBookingConflict, domain.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookedUnavailableGarment(t *testing.T) {
	mock, repo := newMock(t)
	start, end := window(10, 12)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status, active FROM garments WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "active"}).AddRow("maintenance", true))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, start_time, end_time FROM rentals`)).
		WithArgs(int64(5), int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "start_time", "end_time"}))
	mock.ExpectRollback()

	rt := &domain.Rental{GarmentID: 5, StartTime: start, EndTime: end}
	err := repo.CreateBooked(context.Background(), rt, "")
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeUnavailable, domain.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookedMissingGarment(t *testing.T) {
	mock, repo := newMock(t)
	start, end := window(10, 12)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status, active FROM garments WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "active"}))
	mock.ExpectRollback()

	rt := &domain.Rental{GarmentID: 99, StartTime: start, EndTime: end}
	err := repo.CreateBooked(context.Background(), rt, "")
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeNotFound, domain.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelRequiresActiveStatus(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT garment_id, status FROM rentals WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"garment_id", "status"}).AddRow(int64(5), "cancelled"))
	mock.ExpectRollback()

	err := repo.Cancel(context.Background(), 3)
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeInvalidState, domain.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelFreesGarment(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT garment_id, status FROM rentals WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"garment_id", "status"}).AddRow(int64(5), "active"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE rentals SET status='cancelled'`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE garments SET status = 'available' WHERE id = $1`)).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Cancel(context.Background(), 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireOverdueFreesAllGarments(t *testing.T) {
	mock, repo := newMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE rentals SET status='expired'`)).
		WillReturnRows(sqlmock.NewRows([]string{"garment_id"}).AddRow(int64(5)).AddRow(int64(6)))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE garments SET status='available' WHERE id = ANY($1)`)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	count, err := repo.ExpireOverdue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireOverdueNothingToDo(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE rentals SET status='expired'`)).
		WillReturnRows(sqlmock.NewRows([]string{"garment_id"}))
	mock.ExpectCommit()

	count, err := repo.ExpireOverdue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectQuery("SELECT r.id,").
		WithArgs(int64(77)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), 77)
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeNotFound, domain.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIdempotencyKeyAbsent(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectQuery("SELECT r.id,").
		WithArgs("some-key").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rt, err := repo.FindByIdempotencyKey(context.Background(), "some-key")
	require.NoError(t, err)
	assert.Nil(t, rt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
