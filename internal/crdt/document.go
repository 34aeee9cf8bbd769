// Package crdt implements the convergent document each collaboration room
// owns. The document is a last-write-wins element map over diagram nodes and
// edges: every element carries a lamport clock and the actor that produced it,
// and merging keeps the element with the highest (clock, actor) pair. Applying
// the same update twice, or applying updates in any order, always converges to
// the same state.
package crdt

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

const (
	KindNode = "node"
	KindEdge = "edge"
)

// Element is a single replicated entry. Data is the opaque client-defined
// JSON for the node or edge; Deleted marks a tombstone that must survive
// merges so removals win over stale re-inserts.
type Element struct {
	Kind    string          `json:"kind"`
	ID      string          `json:"id"`
	Data    json.RawMessage `json:"data,omitempty"`
	Clock   uint64          `json:"clock"`
	Actor   string          `json:"actor"`
	Deleted bool            `json:"deleted,omitempty"`
}

func (e *Element) key() string {
	return e.Kind + ":" + e.ID
}

// supersedes reports whether e should replace other under the LWW rule.
func (e *Element) supersedes(other *Element) bool {
	if e.Clock != other.Clock {
		return e.Clock > other.Clock
	}
	return e.Actor > other.Actor
}

// Document holds the room's replicated state. It is not safe for concurrent
// use; the owning room serializes access.
type Document struct {
	elements map[string]Element
	clock    uint64
	actor    string
}

func NewDocument(actor string) *Document {
	return &Document{
		elements: make(map[string]Element),
		actor:    actor,
	}
}

// ApplyUpdate merges an encoded set of elements into the document. The merge
// is commutative, associative and idempotent, so duplicated or reordered
// delivery cannot corrupt state.
func (d *Document) ApplyUpdate(update []byte) error {
	var elements []Element
	if err := json.Unmarshal(update, &elements); err != nil {
		return fmt.Errorf("failed to decode update: %w", err)
	}

	for i := range elements {
		d.merge(&elements[i])
	}

	return nil
}

func (d *Document) merge(e *Element) {
	if e.Clock > d.clock {
		d.clock = e.Clock
	}

	existing, ok := d.elements[e.key()]
	if !ok || e.supersedes(&existing) {
		d.elements[e.key()] = *e
	}
}

// EncodeFull returns the complete document state, tombstones included,
// sufficient to reconstruct the document elsewhere via ApplyUpdate.
func (d *Document) EncodeFull() []byte {
	elements := make([]Element, 0, len(d.elements))
	for _, e := range d.elements {
		elements = append(elements, e)
	}

	sort.Slice(elements, func(i, j int) bool {
		return elements[i].key() < elements[j].key()
	})

	encoded, _ := json.Marshal(elements)
	return encoded
}

// FromCompact rehydrates a document from a previously encoded full state.
func FromCompact(compact []byte, actor string) (*Document, error) {
	doc := NewDocument(actor)
	if err := doc.ApplyUpdate(compact); err != nil {
		return nil, fmt.Errorf("failed to rehydrate document: %w", err)
	}
	return doc, nil
}

// SetNode records a local node write and returns the encoded update to
// replicate to peers.
func (d *Document) SetNode(id string, data json.RawMessage) []byte {
	return d.localOp(KindNode, id, data, false)
}

// RemoveNode tombstones a node locally and returns the encoded update.
func (d *Document) RemoveNode(id string) []byte {
	return d.localOp(KindNode, id, nil, true)
}

// SetEdge records a local edge write and returns the encoded update.
func (d *Document) SetEdge(id string, data json.RawMessage) []byte {
	return d.localOp(KindEdge, id, data, false)
}

// RemoveEdge tombstones an edge locally and returns the encoded update.
func (d *Document) RemoveEdge(id string) []byte {
	return d.localOp(KindEdge, id, nil, true)
}

func (d *Document) localOp(kind, id string, payload json.RawMessage, deleted bool) []byte {
	d.clock++

	e := Element{
		Kind:    kind,
		ID:      id,
		Data:    payload,
		Clock:   d.clock,
		Actor:   d.actor,
		Deleted: deleted,
	}
	d.merge(&e)

	encoded, _ := json.Marshal([]Element{e})
	return encoded
}

// Seed loads raw node and edge objects into an otherwise empty document. It
// is the fallback path when no compact state survived: the last materialized
// snapshot becomes the document's initial elements. Objects without an "id"
// field get a generated one.
func (d *Document) Seed(nodes, edges []json.RawMessage) {
	for _, raw := range nodes {
		d.localOp(KindNode, rawID(raw), raw, false)
	}
	for _, raw := range edges {
		d.localOp(KindEdge, rawID(raw), raw, false)
	}
}

func rawID(raw json.RawMessage) string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.ID != "" {
		return probe.ID
	}
	return uuid.New().String()
}

// Materialize projects the document into its live nodes and edges, sorted by
// element id for deterministic output. Tombstoned elements are excluded.
func (d *Document) Materialize() (nodes, edges []json.RawMessage) {
	var live []Element
	for _, e := range d.elements {
		if !e.Deleted {
			live = append(live, e)
		}
	}

	sort.Slice(live, func(i, j int) bool {
		return live[i].key() < live[j].key()
	})

	nodes = make([]json.RawMessage, 0)
	edges = make([]json.RawMessage, 0)
	for _, e := range live {
		switch e.Kind {
		case KindNode:
			nodes = append(nodes, e.Data)
		case KindEdge:
			edges = append(edges, e.Data)
		}
	}

	return nodes, edges
}
