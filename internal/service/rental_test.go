package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeduDev/lugx/internal/domain"
	"github.com/JeduDev/lugx/internal/repository"
)

// fakeStore is an in-memory stand-in for the postgres store. The
// booking operations take a single lock, mirroring the per-garment
// serialization the real store gets from row locks.
type fakeStore struct {
	mu       sync.Mutex
	garments map[int64]*domain.Garment
	clients  map[int64]*domain.Client
	rentals  map[int64]*domain.Rental
	byKey    map[string]int64
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		garments: make(map[int64]*domain.Garment),
		clients:  make(map[int64]*domain.Client),
		rentals:  make(map[int64]*domain.Rental),
		byKey:    make(map[string]int64),
	}
}

func (f *fakeStore) addGarment(status domain.GarmentStatus) *domain.Garment {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	g := &domain.Garment{ID: f.nextID, Name: fmt.Sprintf("garment-%d", f.nextID), Status: status, Active: true}
	f.garments[g.ID] = g
	return g
}

func (f *fakeStore) addClient(active bool) *domain.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := &domain.Client{ID: f.nextID, Name: fmt.Sprintf("client-%d", f.nextID), Active: active}
	f.clients[c.ID] = c
	return c
}

// GarmentRepository

func (f *fakeStore) Create(ctx context.Context, g *domain.Garment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	g.ID = f.nextID
	f.garments[g.ID] = g
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*domain.Garment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.garments[id]
	if !ok {
		return nil, domain.NewNotFound("garment", id)
	}
	cp := *g
	return &cp, nil
}

func (f *fakeStore) Update(ctx context.Context, g *domain.Garment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.garments[g.ID]; !ok {
		return domain.NewNotFound("garment", g.ID)
	}
	cp := *g
	f.garments[g.ID] = &cp
	return nil
}

func (f *fakeStore) SoftDelete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.garments[id]
	if !ok {
		return domain.NewNotFound("garment", id)
	}
	g.Active = false
	return nil
}

func (f *fakeStore) List(ctx context.Context, filter repository.GarmentFilter) ([]domain.Garment, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Garment
	for _, g := range f.garments {
		out = append(out, *g)
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) ListAvailable(ctx context.Context) ([]domain.Garment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Garment
	for _, g := range f.garments {
		if g.Status == domain.GarmentStatusAvailable && g.Active {
			out = append(out, *g)
		}
	}
	return out, nil
}

// clientRepo adapts fakeStore to the client repository interface; the
// method sets of garments and clients would otherwise collide.
type clientRepo struct{ *fakeStore }

func (r clientRepo) Create(ctx context.Context, c *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	r.clients[c.ID] = c
	return nil
}

func (r clientRepo) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, domain.NewNotFound("client", id)
	}
	cp := *c
	return &cp, nil
}

func (r clientRepo) Update(ctx context.Context, c *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c.ID]; !ok {
		return domain.NewNotFound("client", c.ID)
	}
	cp := *c
	r.clients[c.ID] = &cp
	return nil
}

func (r clientRepo) SoftDelete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return domain.NewNotFound("client", id)
	}
	c.Active = false
	return nil
}

func (r clientRepo) List(ctx context.Context, filter repository.ClientFilter) ([]domain.Client, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Client
	for _, c := range r.clients {
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

// rentalRepo adapts fakeStore to the rental repository interface.
type rentalRepo struct{ *fakeStore }

func (r rentalRepo) GetByID(ctx context.Context, id int64) (*domain.Rental, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.rentals[id]
	if !ok {
		return nil, domain.NewNotFound("rental", id)
	}
	cp := *rt
	return &cp, nil
}

func (r rentalRepo) List(ctx context.Context, filter domain.RentalFilter) ([]domain.Rental, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Rental
	for _, rt := range r.rentals {
		out = append(out, *rt)
	}
	return out, int64(len(out)), nil
}

func (r rentalRepo) ListActive(ctx context.Context) ([]domain.Rental, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Rental
	for _, rt := range r.rentals {
		if rt.Status == domain.RentalStatusActive {
			out = append(out, *rt)
		}
	}
	return out, nil
}

func (r rentalRepo) Stats(ctx context.Context) (*domain.RentalStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &domain.RentalStats{Total: int64(len(r.rentals))}
	for _, rt := range r.rentals {
		if rt.Status == domain.RentalStatusActive {
			stats.Active++
		}
	}
	return stats, nil
}

func (r rentalRepo) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Rental, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[key]
	if !ok {
		return nil, nil
	}
	cp := *r.rentals[id]
	return &cp, nil
}

func (r rentalRepo) HasActiveForGarment(ctx context.Context, garmentID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rt := range r.rentals {
		if rt.GarmentID == garmentID && rt.Status == domain.RentalStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (r rentalRepo) HasActiveForClient(ctx context.Context, clientID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rt := range r.rentals {
		if rt.ClientID != nil && *rt.ClientID == clientID && rt.Status == domain.RentalStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (r rentalRepo) activeIntervalsLocked(garmentID, excludeID int64) []domain.Interval {
	var out []domain.Interval
	for _, rt := range r.rentals {
		if rt.GarmentID == garmentID && rt.Status == domain.RentalStatusActive && rt.ID != excludeID {
			out = append(out, domain.Interval{RentalID: rt.ID, Start: rt.StartTime, End: rt.EndTime})
		}
	}
	return out
}

func (r rentalRepo) CreateBooked(ctx context.Context, rt *domain.Rental, idempotencyKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.garments[rt.GarmentID]
	if !ok {
		return domain.NewNotFound("garment", rt.GarmentID)
	}
	if iv, conflict := domain.FindConflict(r.activeIntervalsLocked(rt.GarmentID, 0), rt.StartTime, rt.EndTime); conflict {
		return domain.NewBookingConflict(rt.GarmentID, rt.StartTime, rt.EndTime, iv.RentalID)
	}
	if g.Status != domain.GarmentStatusAvailable || !g.Active {
		return domain.NewUnavailable(g.ID, g.Status)
	}
	if idempotencyKey != "" {
		if _, dup := r.byKey[idempotencyKey]; dup {
			return repository.ErrDuplicateIdempotencyKey
		}
	}

	r.nextID++
	rt.ID = r.nextID
	rt.Status = domain.RentalStatusActive
	cp := *rt
	r.rentals[rt.ID] = &cp
	if idempotencyKey != "" {
		r.byKey[idempotencyKey] = rt.ID
	}
	g.Status = domain.GarmentStatusRented
	return nil
}

func (r rentalRepo) UpdateBooked(ctx context.Context, id int64, patch domain.RentalPatch) (*domain.Rental, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.rentals[id]
	if !ok {
		return nil, domain.NewNotFound("rental", id)
	}

	newStart, newEnd := rt.StartTime, rt.EndTime
	if patch.StartTime != nil {
		newStart = *patch.StartTime
	}
	if patch.EndTime != nil {
		newEnd = *patch.EndTime
	}
	if !newEnd.After(newStart) {
		return nil, domain.NewInvalidInterval(newStart, newEnd)
	}
	if patch.Status != nil && rt.Status.Terminal() {
		return nil, domain.NewInvalidState(fmt.Sprintf("rental %d is already %s", id, rt.Status))
	}

	intervalChanged := !newStart.Equal(rt.StartTime) || !newEnd.Equal(rt.EndTime)
	if intervalChanged && rt.Status == domain.RentalStatusActive {
		if iv, conflict := domain.FindConflict(r.activeIntervalsLocked(rt.GarmentID, id), newStart, newEnd); conflict {
			return nil, domain.NewBookingConflict(rt.GarmentID, newStart, newEnd, iv.RentalID)
		}
	}

	rt.StartTime, rt.EndTime = newStart, newEnd
	if patch.Cost != nil {
		rt.Cost = patch.Cost
	}
	if patch.Notes != nil {
		rt.Notes = *patch.Notes
	}
	if patch.Status != nil && *patch.Status != rt.Status {
		wasActive := rt.Status == domain.RentalStatusActive
		rt.Status = *patch.Status
		if wasActive && rt.Status.Terminal() {
			r.garments[rt.GarmentID].Status = domain.GarmentStatusAvailable
		}
	}
	cp := *rt
	return &cp, nil
}

func (r rentalRepo) Cancel(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.rentals[id]
	if !ok {
		return domain.NewNotFound("rental", id)
	}
	if rt.Status != domain.RentalStatusActive {
		return domain.NewInvalidState(fmt.Sprintf("rental %d is %s, only active rentals can be cancelled", id, rt.Status))
	}
	rt.Status = domain.RentalStatusCancelled
	r.garments[rt.GarmentID].Status = domain.GarmentStatusAvailable
	return nil
}

func (r rentalRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, rt := range r.rentals {
		if rt.Status == domain.RentalStatusActive && rt.EndTime.Before(now) {
			rt.Status = domain.RentalStatusExpired
			r.garments[rt.GarmentID].Status = domain.GarmentStatusAvailable
			count++
		}
	}
	return count, nil
}

func newTestServices() (*fakeStore, RentalService, GarmentService, ClientService) {
	store := newFakeStore()
	rentals := rentalRepo{store}
	clients := clientRepo{store}
	return store,
		NewRentalService(rentals, store, clients),
		NewGarmentService(store, rentals),
		NewClientService(clients, rentals)
}

func hourRange(startHour, endHour int) (time.Time, time.Time) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(startHour) * time.Hour), base.Add(time.Duration(endHour) * time.Hour)
}

func TestCreateRentalInvalidInterval(t *testing.T) {
	store, svc, _, _ := newTestServices()
	g := store.addGarment(domain.GarmentStatusAvailable)

	start, _ := hourRange(10, 12)
	end := start.Add(-time.Hour)
	_, err := svc.CreateRental(context.Background(), CreateRentalInput{
		GarmentID: g.ID, StartTime: start, EndTime: end,
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeInvalidInterval, domain.CodeOf(err))

	// Nothing may change on a rejected create.
	assert.Empty(t, store.rentals)
	assert.Equal(t, domain.GarmentStatusAvailable, store.garments[g.ID].Status)
}

func TestCreateRentalGarmentChecks(t *testing.T) {
	store, svc, _, _ := newTestServices()
	start, end := hourRange(10, 12)

	_, err := svc.CreateRental(context.Background(), CreateRentalInput{GarmentID: 999, StartTime: start, EndTime: end})
	assert.Equal(t, domain.ErrCodeNotFound, domain.CodeOf(err))

	maint := store.addGarment(domain.GarmentStatusMaintenance)
	_, err = svc.CreateRental(context.Background(), CreateRentalInput{GarmentID: maint.ID, StartTime: start, EndTime: end})
	assert.Equal(t, domain.ErrCodeUnavailable, domain.CodeOf(err))

	retired := store.addGarment(domain.GarmentStatusAvailable)
	store.garments[retired.ID].Active = false
	_, err = svc.CreateRental(context.Background(), CreateRentalInput{GarmentID: retired.ID, StartTime: start, EndTime: end})
	assert.Equal(t, domain.ErrCodeUnavailable, domain.CodeOf(err))
}

func TestCreateRentalInactiveClient(t *testing.T) {
	store, svc, _, _ := newTestServices()
	g := store.addGarment(domain.GarmentStatusAvailable)
	c := store.addClient(false)
	start, end := hourRange(10, 12)

	_, err := svc.CreateRental(context.Background(), CreateRentalInput{
		GarmentID: g.ID, ClientID: &c.ID, StartTime: start, EndTime: end,
	})
	assert.Equal(t, domain.ErrCodeInactiveEntity, domain.CodeOf(err))
	assert.Empty(t, store.rentals)
}

func TestCreateRentalMarksGarmentRented(t *testing.T) {
	store, svc, _, _ := newTestServices()
	g := store.addGarment(domain.GarmentStatusAvailable)
	c := store.addClient(true)
	start, end := hourRange(10, 12)

	rt, err := svc.CreateRental(context.Background(), CreateRentalInput{
		GarmentID: g.ID, ClientID: &c.ID, StartTime: start, EndTime: end,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RentalStatusActive, rt.Status)
	assert.Equal(t, domain.GarmentStatusRented, store.garments[g.ID].Status)
}

func TestCreateRentalConflict(t *testing.T) {
	store, svc, _, _ := newTestServices()
	g := store.addGarment(domain.GarmentStatusAvailable)

	s1, e1 := hourRange(10, 12)
	first, err := svc.CreateRental(context.Background(), CreateRentalInput{GarmentID: g.ID, StartTime: s1, EndTime: e1})
	require.NoError(t, err)

	// An overlapping window collides with the existing booking.
	s2, e2 := hourRange(11, 13)
	_, err = svc.CreateRental(context.Background(), CreateRentalInput{GarmentID: g.ID, StartTime: s2, EndTime: e2})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeBookingConflict, domain.CodeOf(err))

	// A disjoint window is still refused while the garment is rented.
	s3, e3 := hourRange(20, 22)
	_, err = svc.CreateRental(context.Background(), CreateRentalInput{GarmentID: g.ID, StartTime: s3, EndTime: e3})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeUnavailable, domain.CodeOf(err))

	require.NoError(t, svc.CancelRental(context.Background(), first.ID))
	assert.Equal(t, domain.GarmentStatusAvailable, store.garments[g.ID].Status)
}

func TestCancelRentalIdempotence(t *testing.T) {
	store, svc, _, _ := newTestServices()
	g := store.addGarment(domain.GarmentStatusAvailable)
	start, end := hourRange(10, 12)

	rt, err := svc.CreateRental(context.Background(), CreateRentalInput{GarmentID: g.ID, StartTime: start, EndTime: end})
	require.NoError(t, err)

	require.NoError(t, svc.CancelRental(context.Background(), rt.ID))
	assert.Equal(t, domain.GarmentStatusAvailable, store.garments[g.ID].Status)

	// A second cancel must fail and must not double-free the garment.
	store.garments[g.ID].Status = domain.GarmentStatusMaintenance
	err = svc.CancelRental(context.Background(), rt.ID)
	assert.Equal(t, domain.ErrCodeInvalidState, domain.CodeOf(err))
	assert.Equal(t, domain.GarmentStatusMaintenance, store.garments[g.ID].Status)
}

func TestUpdateRentalIntervalConflictRecheck(t *testing.T) {
	store, svc, _, _ := newTestServices()
	g := store.addGarment(domain.GarmentStatusAvailable)

	s1, e1 := hourRange(10, 12)
	first, err := svc.CreateRental(context.Background(), CreateRentalInput{GarmentID: g.ID, StartTime: s1, EndTime: e1})
	require.NoError(t, err)

	// Seed a second active rental directly so the interval edit has
	// something to collide with.
	s2, e2 := hourRange(14, 16)
	store.mu.Lock()
	store.nextID++
	second := &domain.Rental{ID: store.nextID, GarmentID: g.ID, StartTime: s2, EndTime: e2, Status: domain.RentalStatusActive}
	store.rentals[second.ID] = second
	store.mu.Unlock()

	newEnd := e2.Add(-time.Hour)
	_, err = svc.UpdateRental(context.Background(), first.ID, domain.RentalPatch{StartTime: &s2, EndTime: &newEnd})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeBookingConflict, domain.CodeOf(err))

	// Back-to-back with the second rental is fine under half-open
	// interval semantics.
	_, err = svc.UpdateRental(context.Background(), first.ID, domain.RentalPatch{StartTime: &s1, EndTime: &s2})
	assert.NoError(t, err)
}

func TestUpdateRentalCompletionFreesGarment(t *testing.T) {
	store, svc, _, _ := newTestServices()
	g := store.addGarment(domain.GarmentStatusAvailable)
	start, end := hourRange(10, 12)

	rt, err := svc.CreateRental(context.Background(), CreateRentalInput{GarmentID: g.ID, StartTime: start, EndTime: end})
	require.NoError(t, err)

	completed := domain.RentalStatusCompleted
	updated, err := svc.UpdateRental(context.Background(), rt.ID, domain.RentalPatch{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, domain.RentalStatusCompleted, updated.Status)
	assert.Equal(t, domain.GarmentStatusAvailable, store.garments[g.ID].Status)

	// Terminal states accept no further transitions.
	active := domain.RentalStatusActive
	_, err = svc.UpdateRental(context.Background(), rt.ID, domain.RentalPatch{Status: &active})
	assert.Equal(t, domain.ErrCodeInvalidState, domain.CodeOf(err))
}

func TestCreateRentalIdempotencyKeyReplay(t *testing.T) {
	store, svc, _, _ := newTestServices()
	g := store.addGarment(domain.GarmentStatusAvailable)
	start, end := hourRange(10, 12)

	in := CreateRentalInput{GarmentID: g.ID, StartTime: start, EndTime: end, IdempotencyKey: "replay-key-1"}
	first, err := svc.CreateRental(context.Background(), in)
	require.NoError(t, err)

	second, err := svc.CreateRental(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.rentals, 1)
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	store, svc, _, _ := newTestServices()
	g := store.addGarment(domain.GarmentStatusAvailable)
	start, end := hourRange(10, 12)

	const workers = 16
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateRental(context.Background(), CreateRentalInput{GarmentID: g.ID, StartTime: start, EndTime: end})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var successes int
	for err := range errs {
		if err == nil {
			successes++
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent booking may win")

	active, err := rentalRepo{store}.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestExpireOverdueFreesGarments(t *testing.T) {
	store, svc, _, _ := newTestServices()
	g := store.addGarment(domain.GarmentStatusAvailable)
	start, end := hourRange(10, 12)

	rt, err := svc.CreateRental(context.Background(), CreateRentalInput{GarmentID: g.ID, StartTime: start, EndTime: end})
	require.NoError(t, err)

	count, err := rentalRepo{store}.ExpireOverdue(context.Background(), end.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, domain.GarmentStatusAvailable, store.garments[g.ID].Status)

	got, err := svc.GetRental(context.Background(), rt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RentalStatusExpired, got.Status)
}

func TestGarmentGuards(t *testing.T) {
	store, rentals, garments, _ := newTestServices()
	g := store.addGarment(domain.GarmentStatusAvailable)
	start, end := hourRange(10, 12)

	_, err := rentals.CreateRental(context.Background(), CreateRentalInput{GarmentID: g.ID, StartTime: start, EndTime: end})
	require.NoError(t, err)

	// A garment with an active rental cannot be deleted or manually
	// pulled out of rented status.
	err = garments.DeleteGarment(context.Background(), g.ID)
	assert.Equal(t, domain.ErrCodeInvalidState, domain.CodeOf(err))

	cur, err := garments.GetGarment(context.Background(), g.ID)
	require.NoError(t, err)
	cur.Status = domain.GarmentStatusAvailable
	err = garments.UpdateGarment(context.Background(), cur)
	assert.Equal(t, domain.ErrCodeInvalidState, domain.CodeOf(err))
}

func TestClientDeleteBlockedByActiveRental(t *testing.T) {
	store, rentals, _, clients := newTestServices()
	g := store.addGarment(domain.GarmentStatusAvailable)
	c := store.addClient(true)
	start, end := hourRange(10, 12)

	rt, err := rentals.CreateRental(context.Background(), CreateRentalInput{GarmentID: g.ID, ClientID: &c.ID, StartTime: start, EndTime: end})
	require.NoError(t, err)

	err = clients.DeleteClient(context.Background(), c.ID)
	assert.Equal(t, domain.ErrCodeInvalidState, domain.CodeOf(err))

	require.NoError(t, rentals.CancelRental(context.Background(), rt.ID))
	require.NoError(t, clients.DeleteClient(context.Background(), c.ID))
	assert.False(t, store.clients[c.ID].Active)
}
