// Package spans maps disjoint text ranges in a mutable buffer to
// structured parts. Markers live in an explicit arena indexed by a typed
// MarkerID; the index holds only range descriptors, never buffer slices.
package spans

import (
	"errors"
	"sort"

	"github.com/tOgg1/loom/internal/models"
)

// Index errors.
var (
	ErrRangeOutOfBounds = errors.New("marker range out of buffer bounds")
	ErrRangeEmpty       = errors.New("marker range must be non-empty")
	ErrMarkerNotFound   = errors.New("marker not found")
)

// MarkerID identifies a marker slot in the arena. The generation half
// guards against stale IDs after a slot is reused.
type MarkerID uint64

// InvalidMarker is the zero MarkerID; no live marker ever has it.
const InvalidMarker MarkerID = 0

func makeID(slot uint32, gen uint32) MarkerID {
	return MarkerID(uint64(gen)<<32 | uint64(slot) + 1)
}

func (id MarkerID) slot() uint32 {
	return uint32(uint64(id)-1) & 0xffffffff
}

func (id MarkerID) gen() uint32 {
	return uint32(uint64(id) >> 32)
}

// Marker is a half-open range [Start, End) over the current buffer,
// anchoring one structured part.
type Marker struct {
	ID    MarkerID
	Start int
	End   int
	Kind  models.PartKind

	// Seq is the creation order, used to break ties when ranges collide.
	Seq uint64
}

type slot struct {
	gen    uint32
	live   bool
	marker Marker
}

// Index is the arena of live markers for one buffer.
type Index struct {
	slots   []slot
	free    []uint32
	nextSeq uint64
	bufLen  int
	count   int
}

// NewIndex creates an empty marker index for a buffer of the given length.
func NewIndex(bufLen int) *Index {
	return &Index{bufLen: bufLen, nextSeq: 1}
}

// SetLength records the authoritative buffer length after an edit.
func (ix *Index) SetLength(n int) {
	if n < 0 {
		n = 0
	}
	ix.bufLen = n
}

// Length returns the buffer length the index currently assumes.
func (ix *Index) Length() int {
	return ix.bufLen
}

// Len returns the number of live markers.
func (ix *Index) Len() int {
	return ix.count
}

// Create registers a marker over [start, end). The range must lie within
// the current buffer bounds. Colliding ranges are not rejected here;
// later-created duplicates are dropped at resolution time instead.
func (ix *Index) Create(start, end int, kind models.PartKind) (MarkerID, error) {
	if end <= start {
		return InvalidMarker, ErrRangeEmpty
	}
	if start < 0 || end > ix.bufLen {
		return InvalidMarker, ErrRangeOutOfBounds
	}

	var idx uint32
	if n := len(ix.free); n > 0 {
		idx = ix.free[n-1]
		ix.free = ix.free[:n-1]
	} else {
		ix.slots = append(ix.slots, slot{})
		idx = uint32(len(ix.slots) - 1)
	}

	s := &ix.slots[idx]
	s.live = true
	id := makeID(idx, s.gen)
	s.marker = Marker{
		ID:    id,
		Start: start,
		End:   end,
		Kind:  kind,
		Seq:   ix.nextSeq,
	}
	ix.nextSeq++
	ix.count++
	return id, nil
}

// Get returns the marker for the given ID.
func (ix *Index) Get(id MarkerID) (Marker, bool) {
	s := ix.lookup(id)
	if s == nil {
		return Marker{}, false
	}
	return s.marker, true
}

// SetExtent applies an authoritative post-edit extent to a marker.
func (ix *Index) SetExtent(id MarkerID, start, end int) error {
	s := ix.lookup(id)
	if s == nil {
		return ErrMarkerNotFound
	}
	if end <= start {
		return ErrRangeEmpty
	}
	if start < 0 || end > ix.bufLen {
		return ErrRangeOutOfBounds
	}
	s.marker.Start = start
	s.marker.End = end
	return nil
}

// Remove destroys a marker. Removing an unknown or stale ID is a no-op.
func (ix *Index) Remove(id MarkerID) {
	s := ix.lookup(id)
	if s == nil {
		return
	}
	s.live = false
	s.gen++
	ix.free = append(ix.free, id.slot())
	ix.count--
}

// Clear destroys all markers, keeping the buffer length.
func (ix *Index) Clear() {
	for i := range ix.slots {
		if ix.slots[i].live {
			ix.slots[i].live = false
			ix.slots[i].gen++
			ix.free = append(ix.free, uint32(i))
		}
	}
	ix.count = 0
}

// Live returns all live markers sorted by start offset, creation order
// breaking ties.
func (ix *Index) Live() []Marker {
	out := make([]Marker, 0, ix.count)
	for i := range ix.slots {
		if ix.slots[i].live {
			out = append(out, ix.slots[i].marker)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

func (ix *Index) lookup(id MarkerID) *slot {
	if id == InvalidMarker {
		return nil
	}
	idx := id.slot()
	if int(idx) >= len(ix.slots) {
		return nil
	}
	s := &ix.slots[idx]
	if !s.live || s.gen != id.gen() {
		return nil
	}
	return s
}
