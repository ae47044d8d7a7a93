package voxelgrid

import (
	"testing"

	"github.com/calvinhirsch/ox/voxelgrid/chunkpos"
)

func TestNewVoxelMemoryGridRejectsDuplicateBindings(t *testing.T) {
	idsBinding := 1
	lods := []chunkpos.LODParams{
		{VoxelResolution: 1, RenderAreaSize: 3, BitmaskBinding: 0, VoxelIDsBinding: &idsBinding},
		{VoxelResolution: 2, RenderAreaSize: 3, BitmaskBinding: 0}, // collides on binding 0
	}
	if _, _, err := NewVoxelMemoryGrid(lods, 4, chunkpos.TlcPos{}); err == nil {
		t.Fatal("expected a configuration error for duplicate GPU bindings")
	}
}

func TestNewVoxelMemoryGridRequiresAtLeastOneLOD(t *testing.T) {
	if _, _, err := NewVoxelMemoryGrid(nil, 4, chunkpos.TlcPos{}); err == nil {
		t.Fatal("expected a configuration error for zero LODs")
	}
}

func buildTestGrid(t *testing.T) (*VoxelMemoryGrid, *RendererComponent) {
	t.Helper()
	idsBinding := 1
	lods := []chunkpos.LODParams{
		{VoxelResolution: 1, RenderAreaSize: 3, BitmaskBinding: 0, VoxelIDsBinding: &idsBinding},
	}
	grid, rc, err := NewVoxelMemoryGrid(lods, 3, chunkpos.TlcPos{}) // S = 8
	if err != nil {
		t.Fatalf("NewVoxelMemoryGrid: %v", err)
	}
	return grid, rc
}

func TestNewVoxelMemoryGridSizesBuffers(t *testing.T) {
	grid, rc := buildTestGrid(t)
	cellsPerAxis := grid.LODParams(0).CellsPerAxis(grid.ChunkSizeExp()) // 8
	cells := int(cellsPerAxis) * int(cellsPerAxis) * int(cellsPerAxis)
	d3 := uint64(grid.Layer(0).SlotCount())

	wantBitmask := d3 * uint64((cells+7)/8)
	if rc.Layers[0].BitmaskBufferSize != wantBitmask {
		t.Fatalf("BitmaskBufferSize = %d, want %d", rc.Layers[0].BitmaskBufferSize, wantBitmask)
	}
	wantIDs := d3 * uint64(cells)
	if rc.Layers[0].IDsBufferSize != wantIDs {
		t.Fatalf("IDsBufferSize = %d, want %d", rc.Layers[0].IDsBufferSize, wantIDs)
	}
}

func TestEditChunkNilWhileLoading(t *testing.T) {
	grid, _ := buildTestGrid(t)
	ed := grid.EditChunk(chunkpos.TlcPos{0, 0, 0})
	if sub, ok := ed.LOD(0); ok || sub != nil {
		t.Fatal("expected LOD 0 sub-editor to be absent while the slot is SlotLoading")
	}
}

func TestEditChunkAfterLoad(t *testing.T) {
	grid, _ := buildTestGrid(t)
	tlc := chunkpos.TlcPos{0, 0, 0}
	layer := grid.Layer(0)

	taken, ok := layer.TakeForLoading(tlc)
	if !ok {
		t.Fatal("TakeForLoading should succeed")
	}
	if !layer.ReturnFromLoading(tlc, taken) {
		t.Fatal("ReturnFromLoading should succeed")
	}

	ed := grid.EditChunk(tlc)
	sub, ok := ed.LOD(0)
	if !ok {
		t.Fatal("expected LOD 0 sub-editor to be present once resident")
	}

	pos := chunkpos.VoxelPosInLod{X: 1, Y: 1, Z: 1}
	sub.SetBitmaskBit(pos, true)
	sub.SetVoxel(pos, 7)

	if !sub.BitmaskBit(pos) {
		t.Fatal("expected bitmask bit to read back set")
	}
	if got := sub.Voxel(pos); got != 7 {
		t.Fatalf("Voxel = %d, want 7", got)
	}
}

func TestGetUpdatesAfterLoad(t *testing.T) {
	grid, _ := buildTestGrid(t)
	tlc := chunkpos.TlcPos{0, 0, 0}
	layer := grid.Layer(0)

	taken, _ := layer.TakeForLoading(tlc)
	layer.ReturnFromLoading(tlc, taken)

	updates := grid.GetUpdates()
	lu, ok := updates[0]
	if !ok || len(lu.Bitmask) == 0 {
		t.Fatal("expected a full-chunk dirty region from ReturnFromLoading")
	}

	// GetUpdates drains the dirty state it reports; a second call before any
	// further edits must report nothing.
	if second, ok := grid.GetUpdates()[0]; ok && (len(second.Bitmask) != 0 || len(second.IDs) != 0) {
		t.Fatalf("expected drained dirty state, got %+v", second)
	}
}

func TestStageWritesAfterEdit(t *testing.T) {
	grid, rc := buildTestGrid(t)
	tlc := chunkpos.TlcPos{0, 0, 0}
	layer := grid.Layer(0)

	taken, _ := layer.TakeForLoading(tlc)
	layer.ReturnFromLoading(tlc, taken)

	writes := grid.StageWrites(rc)
	if len(writes) == 0 {
		t.Fatal("expected at least one staged BufferWrite")
	}
	for _, w := range writes {
		if w.Provider == nil {
			t.Error("staged write has nil provider")
		}
		if len(w.Data) == 0 {
			t.Error("staged write has empty data")
		}
	}
}
