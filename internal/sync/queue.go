package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	stdsync "sync"
)

// MutationQueue is a durable FIFO of pending mutations. Every change is
// flushed to disk before it is acknowledged to the caller, so a crash
// never loses a queued write.
type MutationQueue struct {
	mu        stdsync.Mutex
	path      string
	mutations []PendingMutation
}

// NewMutationQueue opens the queue file at path, creating it on first
// use. Existing entries are loaded in their original order.
func NewMutationQueue(path string) (*MutationQueue, error) {
	q := &MutationQueue{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return q, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mutation queue: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &q.mutations); err != nil {
			return nil, fmt.Errorf("failed to parse mutation queue: %w", err)
		}
	}
	return q, nil
}

// Append adds m to the tail of the queue.
func (q *MutationQueue) Append(m PendingMutation) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.mutations = append(q.mutations, m)
	return q.persist()
}

// Snapshot returns the queued mutations in FIFO order.
func (q *MutationQueue) Snapshot() []PendingMutation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]PendingMutation, len(q.mutations))
	copy(out, q.mutations)
	return out
}

// Len returns the number of queued mutations.
func (q *MutationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.mutations)
}

// Ack removes the mutation with the given local id. Only called after
// the server acknowledged the replayed call.
func (q *MutationQueue) Ack(localID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, m := range q.mutations {
		if m.LocalID == localID {
			q.mutations = append(q.mutations[:i], q.mutations[i+1:]...)
			return q.persist()
		}
	}
	return nil
}

// MarkFailed records the replay error on a queued mutation. The
// mutation stays queued for the next drain cycle.
func (q *MutationQueue) MarkFailed(localID string, replayErr error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.mutations {
		if q.mutations[i].LocalID == localID {
			q.mutations[i].Attempts++
			q.mutations[i].LastError = replayErr.Error()
			return q.persist()
		}
	}
	return nil
}

// RemapTarget rewrites every queued mutation on entity that still
// references tempID so it points at the server-assigned id. Must run
// after a create replays successfully and before any dependent replay.
func (q *MutationQueue) RemapTarget(entity Entity, tempID, serverID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	changed := false
	for i := range q.mutations {
		if q.mutations[i].Entity == entity && q.mutations[i].TargetID == tempID {
			q.mutations[i].TargetID = serverID
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return q.persist()
}

// persist writes the queue atomically. Callers hold q.mu.
func (q *MutationQueue) persist() error {
	data, err := json.MarshalIndent(q.mutations, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode mutation queue: %w", err)
	}
	tmp := q.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(q.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write mutation queue: %w", err)
	}
	return os.Rename(tmp, q.path)
}
