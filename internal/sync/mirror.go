package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	stdsync "sync"
)

// Mirror is the client-local cache of server entity collections. It has
// exactly one writer (the reconciler) and must be treated as possibly
// stale until reconciled. The merge policy is centralized here: server
// records win unless the local record is still pending.
type Mirror struct {
	mu          stdsync.Mutex
	path        string
	collections map[Entity]map[int64]Record
	tempSeq     int64
}

type mirrorFile struct {
	Collections map[Entity][]Record `json:"collections"`
	TempSeq     int64               `json:"temp_seq"`
}

// NewMirror opens the mirror file at path, creating it on first use.
func NewMirror(path string) (*Mirror, error) {
	m := &Mirror{
		path:        path,
		collections: make(map[Entity]map[int64]Record),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mirror: %w", err)
	}
	if len(data) > 0 {
		var f mirrorFile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse mirror: %w", err)
		}
		m.tempSeq = f.TempSeq
		for entity, records := range f.Collections {
			coll := make(map[int64]Record, len(records))
			for _, r := range records {
				coll[r.ID] = r
			}
			m.collections[entity] = coll
		}
	}
	return m, nil
}

// NextTempID returns a fresh temporary id for an offline create.
// Temporary ids are negative so they can never collide with
// server-assigned ones.
func (m *Mirror) NextTempID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tempSeq++
	return -m.tempSeq
}

// Get returns the record with the given id, if present.
func (m *Mirror) Get(entity Entity, id int64) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.collections[entity][id]
	return r, ok
}

// List returns the collection sorted by id. Temporary (negative) ids
// sort first.
func (m *Mirror) List(entity Entity) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.collections[entity]
	out := make([]Record, 0, len(coll))
	for _, r := range coll {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ApplyServerSnapshot merges an authoritative server listing into the
// collection. Server records win for every id they carry; local records
// absent from the snapshot are dropped unless still pending, which
// avoids losing an optimistic write to a lost race.
func (m *Mirror) ApplyServerSnapshot(entity Entity, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	merged := make(map[int64]Record, len(records))
	for _, r := range records {
		r.Pending = false
		merged[r.ID] = r
	}
	for id, r := range m.collections[entity] {
		if _, onServer := merged[id]; !onServer && r.Pending {
			merged[id] = r
		}
	}
	m.collections[entity] = merged
	return m.persist()
}

// ApplyLocalMutation applies an optimistic offline write. Creates get a
// record under the mutation's (temporary) target id; updates overlay
// the payload fields onto the stored record; cancel and delete remove
// it. Every touched record is flagged pending until reconciled.
func (m *Mirror) ApplyLocalMutation(mut PendingMutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll := m.collections[mut.Entity]
	if coll == nil {
		coll = make(map[int64]Record)
		m.collections[mut.Entity] = coll
	}

	switch mut.Op {
	case OpCreate:
		coll[mut.TargetID] = Record{ID: mut.TargetID, Pending: true, Data: mut.Payload}
	case OpUpdate:
		cur, ok := coll[mut.TargetID]
		if !ok {
			return fmt.Errorf("mirror has no %s record %d to update", mut.Entity, mut.TargetID)
		}
		merged, err := overlayJSON(cur.Data, mut.Payload)
		if err != nil {
			return err
		}
		coll[mut.TargetID] = Record{ID: mut.TargetID, Pending: true, Data: merged}
	case OpCancel, OpDelete:
		delete(coll, mut.TargetID)
	default:
		return fmt.Errorf("unknown mutation op %q", mut.Op)
	}
	return m.persist()
}

// ApplyServerRecord stores the authoritative copy of a single record,
// clearing its pending flag.
func (m *Mirror) ApplyServerRecord(entity Entity, id int64, data json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.collections[entity]
	if coll == nil {
		coll = make(map[int64]Record)
		m.collections[entity] = coll
	}
	coll[id] = Record{ID: id, Data: data}
	return m.persist()
}

// Remove deletes a record, e.g. after the server acknowledged a cancel.
func (m *Mirror) Remove(entity Entity, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections[entity], id)
	return m.persist()
}

// RemapID moves a record from its temporary id to the server-assigned
// one after a create replays successfully.
func (m *Mirror) RemapID(entity Entity, tempID, serverID int64, data json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.collections[entity]
	if coll == nil {
		coll = make(map[int64]Record)
		m.collections[entity] = coll
	}
	delete(coll, tempID)
	coll[serverID] = Record{ID: serverID, Data: data}
	return m.persist()
}

// persist writes the mirror atomically. Callers hold m.mu.
func (m *Mirror) persist() error {
	f := mirrorFile{
		Collections: make(map[Entity][]Record, len(m.collections)),
		TempSeq:     m.tempSeq,
	}
	for entity, coll := range m.collections {
		records := make([]Record, 0, len(coll))
		for _, r := range coll {
			records = append(records, r)
		}
		sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
		f.Collections[entity] = records
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode mirror: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write mirror: %w", err)
	}
	return os.Rename(tmp, m.path)
}

// overlayJSON merges the fields of patch onto base.
func overlayJSON(base, patch json.RawMessage) (json.RawMessage, error) {
	merged := map[string]interface{}{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &merged); err != nil {
			return nil, fmt.Errorf("failed to parse mirror record: %w", err)
		}
	}
	overlay := map[string]interface{}{}
	if len(patch) > 0 {
		if err := json.Unmarshal(patch, &overlay); err != nil {
			return nil, fmt.Errorf("failed to parse mutation payload: %w", err)
		}
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return json.Marshal(merged)
}
