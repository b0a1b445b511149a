package sync

import (
	"encoding/json"
	"time"
)

// Entity names a mirrored collection.
type Entity string

const (
	EntityRental  Entity = "rentals"
	EntityGarment Entity = "garments"
	EntityClient  Entity = "clients"
)

// Op is the kind of write a mutation performs.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpCancel Op = "cancel"
	OpDelete Op = "delete"
)

// PendingMutation is a queued, not-yet-acknowledged write. TargetID may
// be a negative temporary id for entities created while offline; it is
// rewritten to the server-assigned id before replay.
type PendingMutation struct {
	LocalID        string          `json:"local_id"`
	Op             Op              `json:"op"`
	Entity         Entity          `json:"entity"`
	TargetID       int64           `json:"target_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Attempts       int             `json:"attempts,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
}

// Record is one entry in the local mirror. Pending marks records whose
// authoritative server copy has not been confirmed yet; the merge policy
// preserves them even when a server snapshot omits their id.
type Record struct {
	ID      int64           `json:"id"`
	Pending bool            `json:"pending,omitempty"`
	Data    json.RawMessage `json:"data"`
}
