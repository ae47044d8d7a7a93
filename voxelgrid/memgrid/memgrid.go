// Package memgrid implements the generic, camera-centered ring buffer that
// backs every layer of the voxel memory grid (and any user-defined layer
// sharing a TLC-per-slot shape). See voxelgrid.VoxelMemoryGrid for the
// concrete N-layer voxel composition built on top of Layer[T].
package memgrid

import (
	"fmt"
	"sync"

	"github.com/calvinhirsch/ox/voxelgrid/chunkpos"
)

// Payload is the narrow capability interface a layer's per-slot value must
// satisfy. T is self-referential (NewEmpty returns another T) so that
// Layer[T] never needs a type switch or reflection to manufacture a fresh
// slot value.
type Payload[T any] interface {
	// NewEmpty returns a zero-content payload of the same shape as the
	// receiver (same buffer sizes), suitable for a slot about to enter
	// SlotLoading.
	NewEmpty() T

	// Buffers returns the payload's GPU-mirrored byte buffers keyed by
	// sub-buffer id (e.g. a bitmask binding and, optionally, an ids
	// binding). The returned slices alias the payload's own storage;
	// mutating them mutates the payload in place.
	Buffers() map[int][]byte
}

// SlotState is one of the three states a ring buffer slot can be in.
type SlotState int

const (
	// SlotResident means the slot is in-grid and its content is valid.
	SlotResident SlotState = iota
	// SlotLoading means ownership of the slot's payload has moved to the
	// chunk loader; the in-grid position is reserved but must not be read.
	SlotLoading
	// SlotPreload means the slot is resident but outside the effective
	// render area, kept ready to become SlotResident on the next shift.
	SlotPreload
)

// DirtyRange is a fine-grained dirty byte range within one sub-buffer of one
// slot, appended by a ChunkEditor write. Offset is local to the slot's own
// payload buffer; the planner adds the slot's base offset when translating
// to an absolute GPU mirror address.
type DirtyRange struct {
	SlotIndex int
	SubBuffer int
	Offset    int
	Length    int
}

// UnloadFunc is an optional persistor hook invoked with the TLC and payload
// of a slot discarded by a shift, before the slot's payload is replaced by
// an empty one. It is the symmetric counterpart of the loader's load hook;
// the grid itself never persists chunk data.
type UnloadFunc[T Payload[T]] func(tlc chunkpos.TlcPos, payload T)

type slot[T Payload[T]] struct {
	state      SlotState
	dispatched bool // true once TakeForLoading has detached this slot's payload
	payload    T
	chunkDirty bool
	fine       []DirtyRange
}

// Layer is a D^3 ring buffer of TLC-sized payloads, D = RenderAreaSize+1,
// recentered on a moving world position without ever copying slot content.
// Layer is safe for the pending-request bookkeeping to be read/written
// concurrently with ChunkLoader's request pump; all other methods are
// intended to be called only from the single mutator goroutine (see
// SPEC_FULL.md §5).
type Layer[T Payload[T]] struct {
	d              int32
	renderAreaSize int32
	originTLC      chunkpos.TlcPos
	originMod      [3]int32
	slots          []slot[T]
	onUnload       UnloadFunc[T]

	mu      sync.RWMutex
	pending []chunkpos.TlcPos
}

// New creates a Layer with the given render area size (must be odd) and
// initial origin. template is used only to determine the shape of an empty
// payload (via template.NewEmpty()); it is never itself stored in a slot.
// Every slot starts SlotLoading with an empty payload and is added to the
// pending list, matching the lifecycle rule that a slot's payload is first
// populated by the loader.
func New[T Payload[T]](renderAreaSize int32, originTLC chunkpos.TlcPos, template T, onUnload UnloadFunc[T]) (*Layer[T], error) {
	if renderAreaSize <= 0 || renderAreaSize%2 == 0 {
		return nil, fmt.Errorf("memgrid: render area size must be a positive odd number, got %d", renderAreaSize)
	}

	d := renderAreaSize + 1
	n := int(d) * int(d) * int(d)

	l := &Layer[T]{
		d:              d,
		renderAreaSize: renderAreaSize,
		originTLC:      originTLC,
		slots:          make([]slot[T], n),
		onUnload:       onUnload,
	}

	l.pending = make([]chunkpos.TlcPos, 0, n)
	for idx := range l.slots {
		l.slots[idx].payload = template.NewEmpty()
		l.slots[idx].state = SlotLoading
		tlc := l.tlcAtIndex(idx)
		l.pending = append(l.pending, tlc)
	}

	return l, nil
}

// D returns the ring buffer edge length.
func (l *Layer[T]) D() int32 { return l.d }

// OriginTLC returns the layer's current origin (the minimal-corner TLC of
// the window it covers).
func (l *Layer[T]) OriginTLC() chunkpos.TlcPos { return l.originTLC }

// OriginMod returns the layer's current per-axis modular offset.
func (l *Layer[T]) OriginMod() [3]int32 { return l.originMod }

// SlotCount returns the number of slots, D^3. Always equal to D()^3.
func (l *Layer[T]) SlotCount() int { return len(l.slots) }

func otherAxes(a int) (int, int) {
	switch a {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	default:
		return 0, 1
	}
}

func (l *Layer[T]) flatten(idx [3]int32) int {
	return int((idx[0]*l.d+idx[1])*l.d + idx[2])
}

func (l *Layer[T]) unflatten(flat int) [3]int32 {
	d := int(l.d)
	z := int32(flat % d)
	rest := flat / d
	y := int32(rest % d)
	x := int32(rest / d)
	return [3]int32{x, y, z}
}

// tlcAt returns the logical TLC currently held by the physical slot index
// physIdx, using the layer's current origin/originMod.
func (l *Layer[T]) tlcAt(physIdx [3]int32) chunkpos.TlcPos {
	var out chunkpos.TlcPos
	for a := 0; a < 3; a++ {
		out[a] = l.originTLC[a] + chunkpos.EuclidMod(physIdx[a]-l.originMod[a], l.d)
	}
	return out
}

func (l *Layer[T]) tlcAtIndex(flat int) chunkpos.TlcPos {
	return l.tlcAt(l.unflatten(flat))
}

// slotIndex returns the physical slot index holding tlc, if tlc currently
// falls within the layer's window.
func (l *Layer[T]) slotIndex(tlc chunkpos.TlcPos) (int, bool) {
	var physIdx [3]int32
	for a := 0; a < 3; a++ {
		delta := tlc[a] - l.originTLC[a]
		if delta < 0 || delta >= l.d {
			return 0, false
		}
		physIdx[a] = chunkpos.EuclidMod(delta+l.originMod[a], l.d)
	}
	return l.flatten(physIdx), true
}

// Contains reports whether tlc currently falls within the layer's window,
// regardless of slot state.
func (l *Layer[T]) Contains(tlc chunkpos.TlcPos) bool {
	_, ok := l.slotIndex(tlc)
	return ok
}

// State returns the current state of the slot holding tlc, and false if tlc
// is outside the layer's window.
func (l *Layer[T]) State(tlc chunkpos.TlcPos) (SlotState, bool) {
	idx, ok := l.slotIndex(tlc)
	if !ok {
		return 0, false
	}
	return l.slots[idx].state, true
}

// EditChunk returns a borrowed ChunkEditor for tlc iff the slot is resident
// (SlotResident or SlotPreload) and not loading. Each write through the
// returned editor appends a fine-grained DirtyRange; the editor also marks
// the slot chunk-dirty in the planner's chunk-granular bitmap is NOT set
// here — chunk-granular dirtiness only comes from shifts/reinstatement, per
// invariant 5 (dirty superset of mutated), fine ranges alone already cover
// every editor write.
func (l *Layer[T]) EditChunk(tlc chunkpos.TlcPos) (*ChunkEditor[T], bool) {
	idx, ok := l.slotIndex(tlc)
	if !ok {
		return nil, false
	}
	s := &l.slots[idx]
	if s.state == SlotLoading {
		return nil, false
	}
	return &ChunkEditor[T]{slot: s, slotIndex: idx}, true
}

// TakeForLoading detaches the payload of the slot holding tlc and marks it
// SlotLoading, returning the detached payload as a TakenChunk. It succeeds
// either on a resident slot (explicit reload) or on a slot that shift/
// construction already marked SlotLoading but whose payload has not yet
// been dispatched to a worker (the hot path ChunkLoader.Sync uses to drain
// the pending list). It fails if the slot is outside the grid or its
// payload has already been dispatched.
func (l *Layer[T]) TakeForLoading(tlc chunkpos.TlcPos) (TakenChunk[T], bool) {
	idx, ok := l.slotIndex(tlc)
	if !ok {
		return TakenChunk[T]{}, false
	}
	s := &l.slots[idx]

	switch s.state {
	case SlotResident, SlotPreload:
		payload := s.payload
		s.payload = payload.NewEmpty()
		s.state = SlotLoading
		s.dispatched = true
		s.chunkDirty = false
		s.fine = nil
		return TakenChunk[T]{Tlc: tlc, Payload: payload}, true
	case SlotLoading:
		if s.dispatched {
			return TakenChunk[T]{}, false
		}
		payload := s.payload
		s.payload = payload.NewEmpty()
		s.dispatched = true
		return TakenChunk[T]{Tlc: tlc, Payload: payload}, true
	default:
		return TakenChunk[T]{}, false
	}
}

// ReturnFromLoading reinstates a completed TakenChunk. It is a no-op
// returning false if tlc has fallen outside the layer's window or the slot
// is no longer SlotLoading (the shift-race case of Open Question 3: the
// result is discarded rather than awaited). On success the slot becomes
// SlotResident and a full-chunk dirty range is recorded for every
// sub-buffer.
func (l *Layer[T]) ReturnFromLoading(tlc chunkpos.TlcPos, taken TakenChunk[T]) bool {
	idx, ok := l.slotIndex(tlc)
	if !ok {
		return false
	}
	s := &l.slots[idx]
	if s.state != SlotLoading {
		return false
	}
	s.payload = taken.Payload
	s.state = SlotResident
	s.dispatched = false
	s.chunkDirty = true
	s.fine = nil
	return true
}

// Requeue puts the slot holding tlc back onto the pending list without
// discarding its taken payload's shape, for a loader whose generator
// errored or panicked and wants the chunk retried. No-op, returning false,
// if tlc has fallen outside the window or the slot is no longer the
// dispatched SlotLoading placeholder tlc was taken from.
func (l *Layer[T]) Requeue(tlc chunkpos.TlcPos) bool {
	idx, ok := l.slotIndex(tlc)
	if !ok {
		return false
	}
	s := &l.slots[idx]
	if s.state != SlotLoading || !s.dispatched {
		return false
	}
	s.dispatched = false

	l.mu.Lock()
	l.pending = append(l.pending, tlc)
	l.mu.Unlock()
	return true
}

// Shift relocates the layer's origin to newOrigin, vacating the faces left
// behind and admitting new ones as SlotLoading. It returns the TLCs of the
// newly admitted slots (equivalently, the new pending load requests). If
// the requested move is large enough that some axis's delta would revisit a
// slot mid-shift (|delta| >= D), the whole layer is reloaded in one step
// with no duplicate slot addressing (boundary case: camera movement > S*D
// in one frame).
func (l *Layer[T]) Shift(newOrigin chunkpos.TlcPos) []chunkpos.TlcPos {
	var delta [3]int32
	full := false
	for a := 0; a < 3; a++ {
		delta[a] = newOrigin[a] - l.originTLC[a]
		if delta[a] <= -l.d || delta[a] >= l.d {
			full = true
		}
	}

	var entered []chunkpos.TlcPos
	if full {
		entered = l.fullReload(newOrigin)
	} else {
		for a := 0; a < 3; a++ {
			step := int32(1)
			n := delta[a]
			if n < 0 {
				step = -1
				n = -n
			}
			for i := int32(0); i < n; i++ {
				entered = append(entered, l.shiftAxisOnce(a, step)...)
			}
		}
	}

	l.mu.Lock()
	l.pending = append(l.pending, entered...)
	l.mu.Unlock()

	return entered
}

// shiftAxisOnce performs a single-TLC shift along axis a in direction step
// (+1 or -1), vacating the face at the old edge and admitting the face at
// the new edge. Returns the TLCs newly admitted as SlotLoading.
func (l *Layer[T]) shiftAxisOnce(a int, step int32) []chunkpos.TlcPos {
	var vacantIdx int32
	if step > 0 {
		vacantIdx = l.originMod[a]
	} else {
		vacantIdx = chunkpos.EuclidMod(l.originMod[a]-1, l.d)
	}

	other0, other1 := otherAxes(a)

	type vacated struct {
		idx    int
		oldTlc chunkpos.TlcPos
	}
	vacs := make([]vacated, 0, l.d*l.d)
	for i := int32(0); i < l.d; i++ {
		for j := int32(0); j < l.d; j++ {
			var physIdx [3]int32
			physIdx[a] = vacantIdx
			physIdx[other0] = i
			physIdx[other1] = j
			idx := l.flatten(physIdx)
			vacs = append(vacs, vacated{idx: idx, oldTlc: l.tlcAt(physIdx)})
		}
	}

	l.originMod[a] = chunkpos.EuclidMod(l.originMod[a]+step, l.d)
	l.originTLC[a] += step

	entered := make([]chunkpos.TlcPos, 0, len(vacs))
	for _, v := range vacs {
		s := &l.slots[v.idx]
		if (s.state == SlotResident || s.state == SlotPreload) && l.onUnload != nil {
			l.onUnload(v.oldTlc, s.payload)
		}
		s.payload = s.payload.NewEmpty()
		s.state = SlotLoading
		s.dispatched = false
		s.chunkDirty = false
		s.fine = nil
		entered = append(entered, l.tlcAtIndex(v.idx))
	}

	return entered
}

// fullReload discards every slot and re-seeds the layer at newOrigin with
// originMod reset to zero, returning all D^3 new TLCs as entered. Used when
// an incremental per-axis walk would revisit slots.
func (l *Layer[T]) fullReload(newOrigin chunkpos.TlcPos) []chunkpos.TlcPos {
	l.originTLC = newOrigin
	l.originMod = [3]int32{}

	entered := make([]chunkpos.TlcPos, 0, len(l.slots))
	for idx := range l.slots {
		s := &l.slots[idx]
		if s.state == SlotResident || s.state == SlotPreload {
			if l.onUnload != nil {
				// The pre-reload logical TLC can no longer be recovered from
				// the (already reset) origin, so report the *new* TLC this
				// physical slot now represents; content still reflects the
				// old one and the hook receives the real payload either way.
				l.onUnload(l.tlcAtIndex(idx), s.payload)
			}
		}
		s.payload = s.payload.NewEmpty()
		s.state = SlotLoading
		s.dispatched = false
		s.chunkDirty = false
		s.fine = nil
		entered = append(entered, l.tlcAtIndex(idx))
	}
	return entered
}

// PendingRequests pops up to max TLCs from the pending list (load requests
// not yet dispatched to a worker), or all of them if max <= 0. Callers
// (normally ChunkLoader.Sync) should follow with TakeForLoading per entry.
func (l *Layer[T]) PendingRequests(max int) []chunkpos.TlcPos {
	l.mu.Lock()
	defer l.mu.Unlock()

	if max <= 0 || max >= len(l.pending) {
		out := l.pending
		l.pending = nil
		return out
	}
	out := make([]chunkpos.TlcPos, max)
	copy(out, l.pending[:max])
	l.pending = l.pending[max:]
	return out
}

// PendingCount reports the number of TLCs still waiting to be dispatched.
func (l *Layer[T]) PendingCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pending)
}

// ChunkDirty returns the physical indices, in ascending order, of every
// chunk-granular dirty slot, clearing the flag as it is read. Intended for the
// GPU update planner; not part of the narrow per-frame hot path.
func (l *Layer[T]) ChunkDirty() []int {
	var out []int
	for idx := range l.slots {
		if l.slots[idx].chunkDirty {
			out = append(out, idx)
			l.slots[idx].chunkDirty = false
		}
	}
	return out
}

// FineDirty drains and returns the fine-grained dirty ranges accumulated by
// editors across all slots, clearing them.
func (l *Layer[T]) FineDirty() []DirtyRange {
	var out []DirtyRange
	for idx := range l.slots {
		s := &l.slots[idx]
		if len(s.fine) == 0 {
			continue
		}
		out = append(out, s.fine...)
		s.fine = nil
	}
	return out
}

// PayloadAtSlot returns the payload currently held by physical slot index
// slotIdx, for a caller (the GPU update planner's byte source) that needs
// to read a dirty range back out without going through a TlcPos lookup.
func (l *Layer[T]) PayloadAtSlot(slotIdx int) T {
	return l.slots[slotIdx].payload
}

// SlotOffset returns the physical slot index of tlc (for computing byte
// offsets into a flat GPU mirror buffer), and false if tlc is outside the
// window.
func (l *Layer[T]) SlotOffset(tlc chunkpos.TlcPos) (int, bool) {
	return l.slotIndex(tlc)
}
