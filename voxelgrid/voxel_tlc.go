package voxelgrid

import "github.com/calvinhirsch/ox/voxelgrid/chunkpos"

// VoxelTLC is the per-TLC payload of one LOD's memgrid.Layer: a bitmask
// (one bit per LOD cell) and, if the LOD carries an id buffer, one byte per
// cell holding a VoxelTypeRegistry id.
type VoxelTLC struct {
	cellsPerAxis int32
	hasIDs       bool

	Bitmask  []byte
	VoxelIDs []byte
}

// newVoxelTLC allocates a zeroed VoxelTLC sized for cellsPerAxis^3 cells,
// with an id buffer only if hasIDs is set.
func newVoxelTLC(cellsPerAxis int32, hasIDs bool) VoxelTLC {
	cells := int(cellsPerAxis) * int(cellsPerAxis) * int(cellsPerAxis)
	t := VoxelTLC{
		cellsPerAxis: cellsPerAxis,
		hasIDs:       hasIDs,
		Bitmask:      make([]byte, (cells+7)/8),
	}
	if hasIDs {
		t.VoxelIDs = make([]byte, cells)
	}
	return t
}

// NewEmpty implements memgrid.Payload.
func (t VoxelTLC) NewEmpty() VoxelTLC {
	return newVoxelTLC(t.cellsPerAxis, t.hasIDs)
}

// Buffers implements memgrid.Payload.
func (t VoxelTLC) Buffers() map[int][]byte {
	bufs := map[int][]byte{chunkpos.SubBufferBitmask: t.Bitmask}
	if t.hasIDs {
		bufs[chunkpos.SubBufferIDs] = t.VoxelIDs
	}
	return bufs
}

// CellIndex returns the linear cell index of pos within this TLC, using the
// pinned chunkpos.VoxelPosInLod.Index formula.
func (t VoxelTLC) CellIndex(pos chunkpos.VoxelPosInLod) int {
	return pos.Index(t.cellsPerAxis)
}

// BitmaskBytes returns the byte size of the bitmask sub-buffer.
func (t VoxelTLC) BitmaskBytes() int {
	return len(t.Bitmask)
}

// VoxelIDBytes returns the byte size of the id sub-buffer (0 if this LOD
// carries no ids).
func (t VoxelTLC) VoxelIDBytes() int {
	return len(t.VoxelIDs)
}
