package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/JeduDev/lugx/internal/logger"
)

// ConnState is the reconciler's view of server reachability. It changes
// only on probe results and transport failures; runtime connectivity
// events merely trigger a re-probe.
type ConnState int

const (
	StateOffline ConnState = iota
	StateOnline
)

func (s ConnState) String() string {
	if s == StateOnline {
		return "online"
	}
	return "offline"
}

// Reconciler buffers mutations made while disconnected, replays them in
// order when connectivity returns, and merges authoritative server
// state back into the local mirror.
type Reconciler struct {
	api    *APIClient
	queue  *MutationQueue
	mirror *Mirror

	mu         stdsync.Mutex
	state      ConnState
	draining   bool
	unresolved []PendingMutation
}

// NewReconciler assembles a reconciler. It starts offline; callers run
// Probe to establish the initial state.
func NewReconciler(api *APIClient, queue *MutationQueue, mirror *Mirror) *Reconciler {
	return &Reconciler{
		api:    api,
		queue:  queue,
		mirror: mirror,
		state:  StateOffline,
	}
}

// State returns the current connectivity state.
func (r *Reconciler) State() ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// UnresolvedConflicts returns offline bookings the server refused at
// replay time. They are kept so the user can be told a previously
// accepted booking could not be honored.
func (r *Reconciler) UnresolvedConflicts() []PendingMutation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PendingMutation, len(r.unresolved))
	copy(out, r.unresolved)
	return out
}

// Nudge requests a re-probe. Wire runtime connectivity events here;
// they are hints, never ground truth.
func (r *Reconciler) Nudge(ctx context.Context) ConnState {
	return r.Probe(ctx)
}

// Probe actively checks the health endpoint and updates the state. An
// offline-to-online transition triggers a queue drain.
func (r *Reconciler) Probe(ctx context.Context) ConnState {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, r.api.Health(ctx)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(3))

	if err != nil {
		r.setState(StateOffline)
		return StateOffline
	}

	if r.setState(StateOnline) {
		if err := r.Drain(ctx); err != nil {
			logger.Warn("Drain after reconnect did not complete", "error", err)
		}
	}
	return r.State()
}

// setState records the new state and reports whether it transitioned
// from offline to online.
func (r *Reconciler) setState(s ConnState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == s {
		return false
	}
	logger.Info("Connectivity state changed", "from", r.state.String(), "to", s.String())
	r.state = s
	return s == StateOnline
}

// Dispatch is the single write path for the client. Online it forwards
// straight to the server; offline (or on a transport failure) the write
// is applied optimistically to the mirror and queued. The write is
// never lost and never surfaced as a transport error.
func (r *Reconciler) Dispatch(ctx context.Context, mut PendingMutation) (json.RawMessage, error) {
	if mut.LocalID == "" {
		mut.LocalID = uuid.NewString()
	}
	if mut.CreatedAt.IsZero() {
		mut.CreatedAt = time.Now().UTC()
	}
	if mut.Op == OpCreate && mut.IdempotencyKey == "" {
		mut.IdempotencyKey = uuid.NewString()
	}

	if r.State() == StateOnline {
		data, err := r.replay(ctx, mut)
		if err == nil {
			if err := r.applyAck(mut, data); err != nil {
				logger.Warn("Failed to update mirror after server ack", "error", err)
			}
			return data, nil
		}
		if !IsTransportError(err) {
			return nil, err
		}
		r.setState(StateOffline)
	}

	return r.enqueue(mut)
}

// enqueue applies the mutation to the mirror and records it durably.
func (r *Reconciler) enqueue(mut PendingMutation) (json.RawMessage, error) {
	if mut.Op == OpCreate && mut.TargetID == 0 {
		mut.TargetID = r.mirror.NextTempID()
		// Stamp the temporary id into the payload so reads of the
		// mirror see a complete record.
		stamped, err := overlayJSON(mut.Payload, json.RawMessage(fmt.Sprintf(`{"id":%d}`, mut.TargetID)))
		if err != nil {
			return nil, err
		}
		mut.Payload = stamped
	}

	if err := r.mirror.ApplyLocalMutation(mut); err != nil {
		return nil, err
	}
	if err := r.queue.Append(mut); err != nil {
		return nil, err
	}

	if rec, ok := r.mirror.Get(mut.Entity, mut.TargetID); ok {
		return rec.Data, nil
	}
	return nil, nil
}

// Drain replays queued mutations in strict FIFO order. Only one drain
// runs at a time; a second trigger while one is in flight is coalesced.
// A transport failure stops the drain after the current call and leaves
// the remaining mutations queued for the next reconnect.
func (r *Reconciler) Drain(ctx context.Context) error {
	r.mu.Lock()
	if r.draining {
		r.mu.Unlock()
		return nil
	}
	r.draining = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.draining = false
		r.mu.Unlock()
	}()

	failedTemps := make(map[Entity]map[int64]bool)
	failed := func(e Entity, id int64) bool { return failedTemps[e][id] }
	markFailed := func(e Entity, id int64) {
		if failedTemps[e] == nil {
			failedTemps[e] = make(map[int64]bool)
		}
		failedTemps[e][id] = true
	}

	for _, mut := range r.queue.Snapshot() {
		// A mutation still pointing at a temp id whose create failed
		// this cycle cannot land; leave it for the next drain.
		if mut.TargetID < 0 && mut.Op != OpCreate && failed(mut.Entity, mut.TargetID) {
			logger.Debug("Skipping mutation dependent on failed create", "local_id", mut.LocalID)
			continue
		}

		data, err := r.replay(ctx, mut)
		if err == nil {
			if err := r.ackReplayed(mut, data); err != nil {
				return err
			}
			continue
		}

		if IsTransportError(err) {
			r.setState(StateOffline)
			if mErr := r.queue.MarkFailed(mut.LocalID, err); mErr != nil {
				return mErr
			}
			return fmt.Errorf("drain interrupted by transport failure: %w", err)
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == "BOOKING_CONFLICT" {
			// The server refused a booking accepted optimistically
			// while offline. Surface it; retrying cannot resolve it.
			r.surfaceConflict(mut, apiErr)
			if mut.Op == OpCreate && mut.TargetID < 0 {
				markFailed(mut.Entity, mut.TargetID)
			}
			continue
		}

		logger.Warn("Mutation replay failed, kept queued", "local_id", mut.LocalID, "error", err)
		if mut.Op == OpCreate && mut.TargetID < 0 {
			markFailed(mut.Entity, mut.TargetID)
		}
		if mErr := r.queue.MarkFailed(mut.LocalID, err); mErr != nil {
			return mErr
		}
	}

	if r.State() == StateOnline {
		if err := r.RefreshMirror(ctx); err != nil {
			logger.Warn("Mirror refresh after drain failed", "error", err)
		}
	}
	return nil
}

// ackReplayed removes an acknowledged mutation from the queue and folds
// the authoritative response into the mirror. For creates the temporary
// id is remapped across the mirror and any still-queued mutations
// before their own replay.
func (r *Reconciler) ackReplayed(mut PendingMutation, data json.RawMessage) error {
	if err := r.queue.Ack(mut.LocalID); err != nil {
		return err
	}
	if mut.Op == OpCreate && mut.TargetID < 0 {
		serverID, err := extractID(data)
		if err != nil {
			return err
		}
		if err := r.mirror.RemapID(mut.Entity, mut.TargetID, serverID, data); err != nil {
			return err
		}
		return r.queue.RemapTarget(mut.Entity, mut.TargetID, serverID)
	}
	return r.applyAck(mut, data)
}

// applyAck reflects a server-acknowledged mutation in the mirror.
func (r *Reconciler) applyAck(mut PendingMutation, data json.RawMessage) error {
	switch mut.Op {
	case OpCancel, OpDelete:
		return r.mirror.Remove(mut.Entity, mut.TargetID)
	default:
		id := mut.TargetID
		if mut.Op == OpCreate {
			serverID, err := extractID(data)
			if err != nil {
				return err
			}
			id = serverID
		}
		return r.mirror.ApplyServerRecord(mut.Entity, id, data)
	}
}

func (r *Reconciler) surfaceConflict(mut PendingMutation, apiErr *APIError) {
	logger.Warn("Offline booking refused by server",
		"local_id", mut.LocalID, "entity", string(mut.Entity), "error", apiErr.Message)
	mut.LastError = apiErr.Message
	r.mu.Lock()
	r.unresolved = append(r.unresolved, mut)
	r.mu.Unlock()
	if err := r.queue.Ack(mut.LocalID); err != nil {
		logger.Error("Failed to dequeue conflicted mutation", "local_id", mut.LocalID, "error", err)
	}
	if mut.TargetID < 0 {
		if err := r.mirror.Remove(mut.Entity, mut.TargetID); err != nil {
			logger.Error("Failed to drop conflicted record from mirror", "error", err)
		}
	}
}

// replay forwards one mutation to its server endpoint.
func (r *Reconciler) replay(ctx context.Context, mut PendingMutation) (json.RawMessage, error) {
	switch mut.Entity {
	case EntityRental:
		switch mut.Op {
		case OpCreate:
			return r.api.CreateRental(ctx, mut.Payload, mut.IdempotencyKey)
		case OpUpdate:
			return r.api.UpdateRental(ctx, mut.TargetID, mut.Payload)
		case OpCancel, OpDelete:
			return nil, r.api.CancelRental(ctx, mut.TargetID)
		}
	case EntityGarment:
		switch mut.Op {
		case OpCreate:
			return r.api.CreateGarment(ctx, mut.Payload)
		case OpUpdate:
			return r.api.UpdateGarment(ctx, mut.TargetID, mut.Payload)
		case OpDelete:
			return nil, r.api.DeleteGarment(ctx, mut.TargetID)
		}
	case EntityClient:
		switch mut.Op {
		case OpCreate:
			return r.api.CreateClient(ctx, mut.Payload)
		case OpUpdate:
			return r.api.UpdateClient(ctx, mut.TargetID, mut.Payload)
		case OpDelete:
			return nil, r.api.DeleteClient(ctx, mut.TargetID)
		}
	}
	return nil, fmt.Errorf("no endpoint for %s %s", mut.Op, mut.Entity)
}

// RefreshMirror pulls full server state and merges it into the mirror.
// Server records win; records still pending locally are preserved.
func (r *Reconciler) RefreshMirror(ctx context.Context) error {
	rentals, err := r.api.FetchActiveRentals(ctx)
	if err != nil {
		return err
	}
	rentalRecords, err := recordsFromArray(rentals)
	if err != nil {
		return err
	}
	if err := r.mirror.ApplyServerSnapshot(EntityRental, rentalRecords); err != nil {
		return err
	}

	garments, err := r.api.FetchGarments(ctx)
	if err != nil {
		return err
	}
	garmentRecords, err := recordsFromListing(garments, "garments")
	if err != nil {
		return err
	}
	if err := r.mirror.ApplyServerSnapshot(EntityGarment, garmentRecords); err != nil {
		return err
	}

	clients, err := r.api.FetchClients(ctx)
	if err != nil {
		return err
	}
	clientRecords, err := recordsFromListing(clients, "clients")
	if err != nil {
		return err
	}
	return r.mirror.ApplyServerSnapshot(EntityClient, clientRecords)
}

func extractID(data json.RawMessage) (int64, error) {
	var probe struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil || probe.ID == 0 {
		return 0, fmt.Errorf("server response carried no record id")
	}
	return probe.ID, nil
}

func recordsFromArray(data json.RawMessage) ([]Record, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse server listing: %w", err)
	}
	records := make([]Record, 0, len(items))
	for _, item := range items {
		id, err := extractID(item)
		if err != nil {
			return nil, err
		}
		records = append(records, Record{ID: id, Data: item})
	}
	return records, nil
}

// recordsFromListing unwraps paginated listings shaped like
// {"<key>": [...], "pagination": {...}}.
func recordsFromListing(data json.RawMessage, key string) ([]Record, error) {
	var listing map[string]json.RawMessage
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse server listing: %w", err)
	}
	items, ok := listing[key]
	if !ok {
		return nil, fmt.Errorf("server listing carried no %q collection", key)
	}
	return recordsFromArray(items)
}
