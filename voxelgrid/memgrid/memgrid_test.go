package memgrid_test

import (
	"testing"

	"github.com/calvinhirsch/ox/voxelgrid/chunkpos"
	"github.com/calvinhirsch/ox/voxelgrid/memgrid"
)

// testPayload is a minimal memgrid.Payload used only by these tests: a
// single sub-buffer of fixed size, keyed at 0.
type testPayload struct {
	size int
	buf  []byte
}

func newTestPayload(size int) testPayload {
	return testPayload{size: size, buf: make([]byte, size)}
}

func (p testPayload) NewEmpty() testPayload {
	return newTestPayload(p.size)
}

func (p testPayload) Buffers() map[int][]byte {
	return map[int][]byte{0: p.buf}
}

func TestNewRejectsEvenRenderAreaSize(t *testing.T) {
	_, err := memgrid.New[testPayload](4, chunkpos.TlcPos{}, newTestPayload(8), nil)
	if err == nil {
		t.Fatal("expected error for even render area size, got nil")
	}
}

func TestNewSeedsAllSlotsLoadingAndPending(t *testing.T) {
	layer, err := memgrid.New[testPayload](3, chunkpos.TlcPos{}, newTestPayload(8), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, want := layer.SlotCount(), 4*4*4; got != want {
		t.Fatalf("SlotCount = %d, want %d", got, want)
	}
	if got := layer.PendingCount(); got != layer.SlotCount() {
		t.Fatalf("PendingCount = %d, want %d", got, layer.SlotCount())
	}

	state, ok := layer.State(chunkpos.TlcPos{0, 0, 0})
	if !ok || state != memgrid.SlotLoading {
		t.Fatalf("State = %v, %v; want SlotLoading, true", state, ok)
	}
}

func TestContainsWindowBounds(t *testing.T) {
	layer, _ := memgrid.New[testPayload](3, chunkpos.TlcPos{10, 0, 0}, newTestPayload(8), nil)
	// D = 4, window covers TLCs [10, 13] on X.
	if !layer.Contains(chunkpos.TlcPos{10, 0, 0}) {
		t.Error("expected window to contain its own origin")
	}
	if !layer.Contains(chunkpos.TlcPos{13, 0, 0}) {
		t.Error("expected window to contain origin+D-1")
	}
	if layer.Contains(chunkpos.TlcPos{14, 0, 0}) {
		t.Error("expected window to exclude origin+D")
	}
	if layer.Contains(chunkpos.TlcPos{9, 0, 0}) {
		t.Error("expected window to exclude origin-1")
	}
}

func TestTakeForLoadingThenReturnFromLoading(t *testing.T) {
	layer, _ := memgrid.New[testPayload](3, chunkpos.TlcPos{}, newTestPayload(8), nil)
	tlc := chunkpos.TlcPos{0, 0, 0}

	taken, ok := layer.TakeForLoading(tlc)
	if !ok {
		t.Fatal("TakeForLoading on freshly-seeded pending slot should succeed")
	}
	if taken.Tlc != tlc {
		t.Fatalf("taken.Tlc = %v, want %v", taken.Tlc, tlc)
	}

	// A second take before return must fail: the payload is already dispatched.
	if _, ok := layer.TakeForLoading(tlc); ok {
		t.Fatal("TakeForLoading should fail on an already-dispatched slot")
	}

	taken.Payload.buf[0] = 0xAB
	if !layer.ReturnFromLoading(tlc, taken) {
		t.Fatal("ReturnFromLoading should succeed for a slot still SlotLoading")
	}

	state, ok := layer.State(tlc)
	if !ok || state != memgrid.SlotResident {
		t.Fatalf("State after return = %v, %v; want SlotResident, true", state, ok)
	}

	dirty := layer.ChunkDirty()
	if len(dirty) != 1 {
		t.Fatalf("ChunkDirty = %v, want exactly one dirty slot", dirty)
	}
}

func TestReturnFromLoadingDiscardsStaleCompletion(t *testing.T) {
	// Open Question 3: a completion for a TLC the window has since shifted
	// away from must be a no-op, not an error and not a crash.
	layer, _ := memgrid.New[testPayload](3, chunkpos.TlcPos{}, newTestPayload(8), nil)
	tlc := chunkpos.TlcPos{0, 0, 0}

	taken, ok := layer.TakeForLoading(tlc)
	if !ok {
		t.Fatal("TakeForLoading should succeed")
	}

	layer.Shift(chunkpos.TlcPos{100, 100, 100})

	if layer.ReturnFromLoading(tlc, taken) {
		t.Fatal("ReturnFromLoading should discard a completion for a TLC outside the current window")
	}
}

func TestEditChunkFailsWhileLoading(t *testing.T) {
	layer, _ := memgrid.New[testPayload](3, chunkpos.TlcPos{}, newTestPayload(8), nil)
	if _, ok := layer.EditChunk(chunkpos.TlcPos{0, 0, 0}); ok {
		t.Fatal("EditChunk should fail while the slot is SlotLoading")
	}
}

func TestEditChunkRecordsFineDirty(t *testing.T) {
	layer, _ := memgrid.New[testPayload](3, chunkpos.TlcPos{}, newTestPayload(8), nil)
	tlc := chunkpos.TlcPos{0, 0, 0}

	taken, _ := layer.TakeForLoading(tlc)
	layer.ReturnFromLoading(tlc, taken)
	layer.ChunkDirty() // drain the chunk-granular dirty flag from the return

	ed, ok := layer.EditChunk(tlc)
	if !ok {
		t.Fatal("EditChunk should succeed on a resident slot")
	}
	ed.SetByte(0, 3, 0x7F)

	fine := layer.FineDirty()
	if len(fine) != 1 {
		t.Fatalf("FineDirty = %v, want exactly one range", fine)
	}
	if fine[0].Offset != 3 || fine[0].Length != 1 {
		t.Fatalf("unexpected fine range: %+v", fine[0])
	}
	if got := ed.Byte(0, 3); got != 0x7F {
		t.Fatalf("Byte(0, 3) = %#x, want 0x7f", got)
	}

	// Draining clears it.
	if fine := layer.FineDirty(); len(fine) != 0 {
		t.Fatalf("second FineDirty = %v, want empty", fine)
	}
}

func TestShiftAdmitsNewFaceAndVacatesOld(t *testing.T) {
	layer, _ := memgrid.New[testPayload](3, chunkpos.TlcPos{}, newTestPayload(8), nil)
	layer.PendingRequests(0) // drain initial seeding so we only see the shift's own entries

	entered := layer.Shift(chunkpos.TlcPos{1, 0, 0})
	if len(entered) == 0 {
		t.Fatal("expected at least one newly admitted TLC")
	}

	// The old origin TLC (0,0,0) is now outside [1,4], so it should have
	// been vacated and is no longer Resident/Preload.
	if layer.Contains(chunkpos.TlcPos{0, 0, 0}) {
		t.Fatal("old origin should have fallen outside the shifted window")
	}
	if !layer.Contains(chunkpos.TlcPos{4, 0, 0}) {
		t.Fatal("new leading face should be inside the shifted window")
	}
}

func TestShiftBeyondWindowTriggersFullReload(t *testing.T) {
	layer, _ := memgrid.New[testPayload](3, chunkpos.TlcPos{}, newTestPayload(8), nil)
	layer.PendingRequests(0)

	// D = 4; a jump of 10 along one axis exceeds D and must not revisit any
	// physical slot twice (the boundary case: camera movement > S*D).
	entered := layer.Shift(chunkpos.TlcPos{10, 10, 10})
	if len(entered) != layer.SlotCount() {
		t.Fatalf("full reload should admit every slot, got %d want %d", len(entered), layer.SlotCount())
	}
	seen := make(map[chunkpos.TlcPos]bool, len(entered))
	for _, tlc := range entered {
		if seen[tlc] {
			t.Fatalf("duplicate TLC %v in full reload admission list", tlc)
		}
		seen[tlc] = true
	}
}

func TestUnloadHookFiresOnVacate(t *testing.T) {
	var unloaded []chunkpos.TlcPos
	layer, _ := memgrid.New[testPayload](3, chunkpos.TlcPos{}, newTestPayload(8),
		func(tlc chunkpos.TlcPos, _ testPayload) {
			unloaded = append(unloaded, tlc)
		})

	tlc := chunkpos.TlcPos{0, 0, 0}
	taken, _ := layer.TakeForLoading(tlc)
	layer.ReturnFromLoading(tlc, taken)

	layer.Shift(chunkpos.TlcPos{1, 0, 0})

	found := false
	for _, t := range unloaded {
		if t == tlc {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected unload hook to fire for vacated resident TLC %v, got %v", tlc, unloaded)
	}
}

func TestPendingRequestsRespectsMax(t *testing.T) {
	layer, _ := memgrid.New[testPayload](3, chunkpos.TlcPos{}, newTestPayload(8), nil)
	total := layer.SlotCount()

	first := layer.PendingRequests(5)
	if len(first) != 5 {
		t.Fatalf("len(first) = %d, want 5", len(first))
	}
	if got := layer.PendingCount(); got != total-5 {
		t.Fatalf("PendingCount = %d, want %d", got, total-5)
	}

	rest := layer.PendingRequests(0)
	if len(rest) != total-5 {
		t.Fatalf("len(rest) = %d, want %d", len(rest), total-5)
	}
	if got := layer.PendingCount(); got != 0 {
		t.Fatalf("PendingCount after draining = %d, want 0", got)
	}
}

func TestRequeuePutsSlotBackOnPendingList(t *testing.T) {
	layer, _ := memgrid.New[testPayload](3, chunkpos.TlcPos{}, newTestPayload(8), nil)
	tlc := chunkpos.TlcPos{0, 0, 0}

	layer.PendingRequests(0) // drain seeding
	taken, ok := layer.TakeForLoading(tlc)
	if !ok {
		t.Fatal("TakeForLoading should succeed")
	}
	_ = taken

	if !layer.Requeue(tlc) {
		t.Fatal("Requeue should succeed for a dispatched, still-SlotLoading slot")
	}
	if got := layer.PendingCount(); got != 1 {
		t.Fatalf("PendingCount = %d, want 1", got)
	}

	// A second TakeForLoading should now succeed again (not dispatched).
	if _, ok := layer.TakeForLoading(tlc); !ok {
		t.Fatal("TakeForLoading should succeed again after Requeue")
	}
}
