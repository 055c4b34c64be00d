// Package shared makes the workflow graph collaboratively editable: each
// entity kind lives in a replicated last-writer-wins map whose deltas
// converge across editors without central locking.
package shared

import "sort"

// Timestamp orders concurrent writes: a Lamport clock with the site ID as a
// deterministic tiebreaker.
type Timestamp struct {
	Clock  uint64 `json:"clock"`
	SiteID string `json:"siteID"`
}

// After reports whether t wins against other under last-writer-wins.
func (t Timestamp) After(other Timestamp) bool {
	if t.Clock != other.Clock {
		return t.Clock > other.Clock
	}

	return t.SiteID > other.SiteID
}

// Delta is one replicated-map change: a put or a delete of a single key.
type Delta[V any] struct {
	Key     string    `json:"key"`
	Value   V         `json:"value"`
	Deleted bool      `json:"deleted,omitempty"`
	Stamp   Timestamp `json:"stamp"`
}

type entry[V any] struct {
	value   V
	stamp   Timestamp
	deleted bool
}

// ReplicatedMap is a string-keyed map with per-key last-writer-wins merge.
// Delta application is idempotent and order-independent per key; deletes
// leave a tombstone so a racing older update cannot resurrect the key.
type ReplicatedMap[V any] struct {
	siteID   string
	clock    uint64
	entries  map[string]entry[V]
	handlers []func(delta Delta[V], local bool)
}

// NewReplicatedMap creates an empty replicated map owned by the given site.
func NewReplicatedMap[V any](siteID string) *ReplicatedMap[V] {
	return &ReplicatedMap[V]{
		siteID:  siteID,
		entries: make(map[string]entry[V]),
	}
}

// OnDelta registers a handler invoked for every applied delta, local and
// remote. Handlers run synchronously in application order.
func (m *ReplicatedMap[V]) OnDelta(handler func(delta Delta[V], local bool)) {
	m.handlers = append(m.handlers, handler)
}

func (m *ReplicatedMap[V]) tick() Timestamp {
	m.clock++

	return Timestamp{Clock: m.clock, SiteID: m.siteID}
}

// Put writes a key locally and returns the delta to broadcast.
func (m *ReplicatedMap[V]) Put(key string, value V) Delta[V] {
	delta := Delta[V]{Key: key, Value: value, Stamp: m.tick()}
	m.entries[key] = entry[V]{value: value, stamp: delta.Stamp}
	m.emit(delta, true)

	return delta
}

// Delete removes a key locally and returns the tombstone delta to broadcast.
func (m *ReplicatedMap[V]) Delete(key string) Delta[V] {
	delta := Delta[V]{Key: key, Deleted: true, Stamp: m.tick()}
	m.entries[key] = entry[V]{stamp: delta.Stamp, deleted: true}
	m.emit(delta, true)

	return delta
}

// Apply merges a remote delta. Stale writes (per last-writer-wins) are
// dropped; applying the same delta twice is a no-op. It returns whether the
// visible state changed.
func (m *ReplicatedMap[V]) Apply(delta Delta[V]) bool {
	if delta.Stamp.Clock > m.clock {
		m.clock = delta.Stamp.Clock
	}

	existing, seen := m.entries[delta.Key]
	if seen && !delta.Stamp.After(existing.stamp) {
		return false
	}

	m.entries[delta.Key] = entry[V]{value: delta.Value, stamp: delta.Stamp, deleted: delta.Deleted}

	if seen && existing.deleted && delta.Deleted {
		return false
	}

	m.emit(delta, false)

	return true
}

func (m *ReplicatedMap[V]) emit(delta Delta[V], local bool) {
	for _, handler := range m.handlers {
		handler(delta, local)
	}
}

// Get returns the live value for a key; tombstoned keys are absent.
func (m *ReplicatedMap[V]) Get(key string) (V, bool) {
	e, exists := m.entries[key]
	if !exists || e.deleted {
		var zero V

		return zero, false
	}

	return e.value, true
}

// Has reports whether the key is live.
func (m *ReplicatedMap[V]) Has(key string) bool {
	_, exists := m.Get(key)

	return exists
}

// Keys returns the live keys in sorted order.
func (m *ReplicatedMap[V]) Keys() []string {
	out := make([]string, 0, len(m.entries))

	for key, e := range m.entries {
		if !e.deleted {
			out = append(out, key)
		}
	}

	sort.Strings(out)

	return out
}

// State exports every entry, tombstones included, for full-state merge with
// a newly joining editor.
func (m *ReplicatedMap[V]) State() []Delta[V] {
	out := make([]Delta[V], 0, len(m.entries))

	for key, e := range m.entries {
		out = append(out, Delta[V]{Key: key, Value: e.value, Deleted: e.deleted, Stamp: e.stamp})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	return out
}

// Merge applies a full remote state.
func (m *ReplicatedMap[V]) Merge(state []Delta[V]) {
	for _, delta := range state {
		m.Apply(delta)
	}
}
