// Package crdt implements the shared document state behind
// collaborative editing sessions.
//
// The document is a sequence CRDT: every character carries a globally
// unique id (actor + logical clock) and a dense position path that
// fixes its place in the sequence. Concurrent inserts at the same spot
// get distinct paths, deletes leave tombstones, and re-delivered ops
// are recognized by id — which is what makes the merge commutative,
// associative, and idempotent. Replicas that see the same set of ops in
// any order, any number of times, converge to the same text.
package crdt

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// ElemID uniquely identifies one inserted character across all
// replicas: the id of the actor that created it plus that actor's
// logical clock at creation time.
type ElemID struct {
	Actor string `json:"actor"`
	Clock uint64 `json:"clock"`
}

// Elem is a single character in the sequence. Pos is a dense position
// path: elements sort lexicographically by Pos, with (Actor, Clock) as
// the tie-break so concurrent inserts at the same path order the same
// way everywhere.
type Elem struct {
	ID    ElemID `json:"id"`
	Value string `json:"value"`
	Pos   []int  `json:"pos"`
}

// Op actions.
const (
	OpInsert = "insert"
	OpDelete = "delete"
)

// Op is one atomic change. Insert carries the full element; delete
// carries only the target id.
type Op struct {
	Action string `json:"action"`
	Elem   Elem   `json:"elem"`
}

// Update is the wire delta exchanged between editors: a batch of ops,
// JSON-encoded. The server treats the bytes as opaque for rebroadcast
// and only decodes them to merge into its own replica.
type Update struct {
	Ops []Op `json:"ops"`
}

// EncodeUpdate marshals an update to its wire form.
func EncodeUpdate(u Update) ([]byte, error) {
	return json.Marshal(u)
}

// DecodeUpdate unmarshals and validates a wire delta. Untrusted input
// is rejected here, before it can touch document state: unknown
// actions, inserts without an actor or position, and deletes without a
// target all fail decoding.
func DecodeUpdate(raw []byte) (Update, error) {
	var u Update
	if err := json.Unmarshal(raw, &u); err != nil {
		return Update{}, fmt.Errorf("decode update: %w", err)
	}
	for i, op := range u.Ops {
		switch op.Action {
		case OpInsert:
			if op.Elem.ID.Actor == "" {
				return Update{}, fmt.Errorf("op %d: insert without actor", i)
			}
			if len(op.Elem.Pos) == 0 {
				return Update{}, fmt.Errorf("op %d: insert without position", i)
			}
		case OpDelete:
			if op.Elem.ID.Actor == "" {
				return Update{}, fmt.Errorf("op %d: delete without target id", i)
			}
		default:
			return Update{}, fmt.Errorf("op %d: unknown action %q", i, op.Action)
		}
	}
	return u, nil
}

// Doc is one replica of the shared document. Safe for concurrent use:
// every editing connection may apply updates without external locking.
type Doc struct {
	mu    sync.Mutex
	elems []Elem // visible elements, sorted by (Pos, ID)
	seen  map[ElemID]struct{}
	dead  map[ElemID]struct{}
}

// NewDoc returns an empty document replica.
func NewDoc() *Doc {
	return &Doc{
		seen: make(map[ElemID]struct{}),
		dead: make(map[ElemID]struct{}),
	}
}

// Apply merges a raw wire delta into the replica. The delta is decoded
// and validated as a whole before any op is applied, so a malformed
// batch can never half-apply and corrupt state for other participants.
func (d *Doc) Apply(raw []byte) error {
	u, err := DecodeUpdate(raw)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, op := range u.Ops {
		switch op.Action {
		case OpInsert:
			d.applyInsert(op.Elem)
		case OpDelete:
			d.applyDelete(op.Elem.ID)
		}
	}
	return nil
}

func (d *Doc) applyInsert(e Elem) {
	if _, dup := d.seen[e.ID]; dup {
		return
	}
	d.seen[e.ID] = struct{}{}

	// A delete for this id may have arrived first. The insert is still
	// recorded as seen, but the element never becomes visible.
	if _, gone := d.dead[e.ID]; gone {
		return
	}

	idx := sort.Search(len(d.elems), func(i int) bool {
		return !less(d.elems[i], e)
	})
	d.elems = append(d.elems, Elem{})
	copy(d.elems[idx+1:], d.elems[idx:])
	d.elems[idx] = e
}

func (d *Doc) applyDelete(id ElemID) {
	if _, gone := d.dead[id]; gone {
		return
	}
	d.dead[id] = struct{}{}

	for i, e := range d.elems {
		if e.ID == id {
			d.elems = append(d.elems[:i], d.elems[i+1:]...)
			return
		}
	}
}

// less orders elements by position path, breaking ties by actor then
// clock.
func less(a, b Elem) bool {
	n := len(a.Pos)
	if len(b.Pos) < n {
		n = len(b.Pos)
	}
	for i := 0; i < n; i++ {
		if a.Pos[i] != b.Pos[i] {
			return a.Pos[i] < b.Pos[i]
		}
	}
	if len(a.Pos) != len(b.Pos) {
		return len(a.Pos) < len(b.Pos)
	}
	if a.ID.Actor != b.ID.Actor {
		return a.ID.Actor < b.ID.Actor
	}
	return a.ID.Clock < b.ID.Clock
}

// Snapshot encodes the full replica state as one wire delta: an insert
// per visible element followed by a delete per tombstone. A fresh
// replica that applies the snapshot converges with this one, and any
// in-flight deltas it receives afterwards merge cleanly on top.
func (d *Doc) Snapshot() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ops := make([]Op, 0, len(d.elems)+len(d.dead))
	for _, e := range d.elems {
		ops = append(ops, Op{Action: OpInsert, Elem: e})
	}
	for id := range d.dead {
		ops = append(ops, Op{Action: OpDelete, Elem: Elem{ID: id}})
	}
	return EncodeUpdate(Update{Ops: ops})
}

// Text returns the visible document contents in sequence order.
func (d *Doc) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []byte
	for _, e := range d.elems {
		out = append(out, e.Value...)
	}
	return string(out)
}

// Len returns the count of visible elements.
func (d *Doc) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.elems)
}
