// Package editor wraps memgrid's raw byte-level ChunkEditor/TakenEditor in
// the voxel-cell vocabulary (VoxelPosInLod, occupancy bit, type id) shared
// by every LOD's payload. It is generic over the payload type so that it
// depends only on memgrid and chunkpos, never on the concrete voxelgrid
// package that owns VoxelTLC — voxelgrid.EditChunk returns an
// editor.MultiLODEditor[VoxelTLC] without creating an import cycle.
package editor

import (
	"github.com/calvinhirsch/ox/voxelgrid/chunkpos"
	"github.com/calvinhirsch/ox/voxelgrid/memgrid"
)

// VoxelEditor is a short-lived view into one resident TLC's cells at a
// single LOD, addressed in cell coordinates rather than raw byte offsets.
// Like the memgrid.ChunkEditor it wraps, it must not be retained past the
// call that produced it.
type VoxelEditor[T memgrid.Payload[T]] struct {
	ed           *memgrid.ChunkEditor[T]
	cellsPerAxis int32
}

// NewVoxelEditor wraps ed for a LOD whose cells-per-TLC-edge is cellsPerAxis.
func NewVoxelEditor[T memgrid.Payload[T]](ed *memgrid.ChunkEditor[T], cellsPerAxis int32) *VoxelEditor[T] {
	return &VoxelEditor[T]{ed: ed, cellsPerAxis: cellsPerAxis}
}

// SetVoxel writes id into the voxel-id sub-buffer at cell pos.
func (v *VoxelEditor[T]) SetVoxel(pos chunkpos.VoxelPosInLod, id byte) {
	v.ed.SetByte(chunkpos.SubBufferIDs, pos.Index(v.cellsPerAxis), id)
}

// Voxel reads the voxel-id byte at cell pos.
func (v *VoxelEditor[T]) Voxel(pos chunkpos.VoxelPosInLod) byte {
	return v.ed.Byte(chunkpos.SubBufferIDs, pos.Index(v.cellsPerAxis))
}

// SetBitmaskBit sets or clears the occupancy bit for cell pos.
func (v *VoxelEditor[T]) SetBitmaskBit(pos chunkpos.VoxelPosInLod, occupied bool) {
	v.ed.SetBit(chunkpos.SubBufferBitmask, int(pos.Index(v.cellsPerAxis)), occupied)
}

// BitmaskBit reads the occupancy bit for cell pos.
func (v *VoxelEditor[T]) BitmaskBit(pos chunkpos.VoxelPosInLod) bool {
	return v.ed.Bit(chunkpos.SubBufferBitmask, int(pos.Index(v.cellsPerAxis)))
}

// CellsPerAxis returns the cell edge length this editor addresses.
func (v *VoxelEditor[T]) CellsPerAxis() int32 {
	return v.cellsPerAxis
}

// MultiLODEditor bundles one VoxelEditor per LOD for a single TLC, as
// returned by a grid's EditChunk. LODs[i] is nil for any LOD that doesn't
// currently hold the TLC as resident; callers must check before use.
type MultiLODEditor[T memgrid.Payload[T]] struct {
	LODs []*VoxelEditor[T]
}

// LOD returns the sub-editor for LOD i, and whether it is present (the TLC
// is resident at that LOD).
func (m *MultiLODEditor[T]) LOD(i int) (*VoxelEditor[T], bool) {
	if i < 0 || i >= len(m.LODs) || m.LODs[i] == nil {
		return nil, false
	}
	return m.LODs[i], true
}

// TakenVoxelEditor is the owned, cell-addressed counterpart to VoxelEditor,
// used by a chunk loader's worker while it generates a freshly taken TLC.
type TakenVoxelEditor[T memgrid.Payload[T]] struct {
	*memgrid.TakenEditor[T]
	cellsPerAxis int32
}

// NewTakenVoxelEditor wraps te for a LOD whose cells-per-TLC-edge is
// cellsPerAxis.
func NewTakenVoxelEditor[T memgrid.Payload[T]](te *memgrid.TakenEditor[T], cellsPerAxis int32) *TakenVoxelEditor[T] {
	return &TakenVoxelEditor[T]{TakenEditor: te, cellsPerAxis: cellsPerAxis}
}

// SetVoxel writes id into the voxel-id sub-buffer at cell pos.
func (e *TakenVoxelEditor[T]) SetVoxel(pos chunkpos.VoxelPosInLod, id byte) {
	e.SetByte(chunkpos.SubBufferIDs, pos.Index(e.cellsPerAxis), id)
}

// SetBitmaskBit sets or clears the occupancy bit for cell pos.
func (e *TakenVoxelEditor[T]) SetBitmaskBit(pos chunkpos.VoxelPosInLod, occupied bool) {
	e.SetBit(chunkpos.SubBufferBitmask, int(pos.Index(e.cellsPerAxis)), occupied)
}

// GenerateCellFunc produces the contents of one LOD cell. occupied false
// means the cell is empty; id is ignored in that case.
type GenerateCellFunc func(pos chunkpos.VoxelPosInLod) (id byte, occupied bool)

// LoadNew fills every cell of the taken TLC by calling gen once per cell in
// row-major (Y, X, Z) order, matching chunkpos.VoxelPosInLod.Index. Intended
// for a chunk loader's worker populating a chunk taken fresh (never
// previously resident) before returning it to the grid.
func (e *TakenVoxelEditor[T]) LoadNew(cellsPerAxis int32, gen GenerateCellFunc) {
	for y := int32(0); y < cellsPerAxis; y++ {
		for x := int32(0); x < cellsPerAxis; x++ {
			for z := int32(0); z < cellsPerAxis; z++ {
				pos := chunkpos.VoxelPosInLod{X: x, Y: y, Z: z}
				id, occupied := gen(pos)
				e.SetBitmaskBit(pos, occupied)
				if occupied {
					e.SetVoxel(pos, id)
				}
			}
		}
	}
}
