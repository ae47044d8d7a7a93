// Package chunkpos defines the coordinate model shared by every layer of the
// memory grid: top-level chunk (TLC) positions, unit-voxel positions, and the
// pinned cell-index formula used to address a single LOD cell inside a TLC.
package chunkpos

import "fmt"

// TlcPos identifies a top-level chunk globally, in TLC units. It is monotone
// with respect to camera translation: moving the camera by one TLC along an
// axis changes exactly that component by one.
type TlcPos [3]int32

// VoxelPos identifies a single unit voxel globally, in unit-voxel units.
type VoxelPos [3]int32

// String renders p as "(x, y, z)".
func (p TlcPos) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p[0], p[1], p[2])
}

// Add returns p + o component-wise.
func (p TlcPos) Add(o TlcPos) TlcPos {
	return TlcPos{p[0] + o[0], p[1] + o[1], p[2] + o[2]}
}

// Sub returns p - o component-wise.
func (p TlcPos) Sub(o TlcPos) TlcPos {
	return TlcPos{p[0] - o[0], p[1] - o[1], p[2] - o[2]}
}

// ToVoxelPos converts p to the voxel position of its minimal corner, given
// chunkSizeExp such that S = 1<<chunkSizeExp.
func (p TlcPos) ToVoxelPos(chunkSizeExp uint) VoxelPos {
	s := int32(1) << chunkSizeExp
	return VoxelPos{p[0] * s, p[1] * s, p[2] * s}
}

// ToTlcPos converts v to the TLC that contains it, given chunkSizeExp such
// that S = 1<<chunkSizeExp. Uses floor division so negative voxel positions
// map to the correct (possibly negative) TLC.
func (v VoxelPos) ToTlcPos(chunkSizeExp uint) TlcPos {
	s := int32(1) << chunkSizeExp
	return TlcPos{floorDiv(v[0], s), floorDiv(v[1], s), floorDiv(v[2], s)}
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// EuclidMod returns the non-negative remainder of a mod m, for m > 0. Unlike
// Go's %, the result is always in [0, m).
func EuclidMod(a, m int32) int32 {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// SubBufferBitmask and SubBufferIDs are the conventional memgrid.Payload
// sub-buffer ids used by every VoxelTLC-shaped payload: the occupancy
// bitmask and, optionally, the per-cell voxel-id bytes. They live here
// rather than in the voxelgrid package so that voxelgrid/editor can address
// sub-buffers without importing voxelgrid itself.
const (
	SubBufferBitmask = 0
	SubBufferIDs     = 1
)

// LODParams describes one level of detail of the voxel memory grid.
type LODParams struct {
	// VoxelResolution is the edge length, in unit-voxel units, of a single
	// "virtual voxel" cell at this LOD. The pyramid runs 1, 2, 4, 8, ..., S,
	// 2S, 4S, ...
	VoxelResolution int32

	// RenderAreaSize is the edge length, in TLCs, of the effective render
	// area stored by this LOD's layer. Must be odd; the layer allocates a
	// (RenderAreaSize+1)^3 cube of slots, the extra shell being preload
	// slack.
	RenderAreaSize int32

	// BitmaskBinding identifies the GPU mirror buffer backing this LOD's
	// occupancy bitmask. Required and must be unique across all LODs of a
	// grid.
	BitmaskBinding int

	// VoxelIDsBinding identifies the GPU mirror buffer backing this LOD's
	// voxel-id bytes. Optional; nil means this LOD carries no id buffer
	// (bitmask-only, e.g. a coarse occlusion LOD).
	VoxelIDsBinding *int
}

// D returns the ring buffer edge length, RenderAreaSize+1.
func (p LODParams) D() int32 {
	return p.RenderAreaSize + 1
}

// CellsPerAxis returns the number of LOD cells per TLC edge, S/VoxelResolution,
// given chunkSizeExp such that S = 1<<chunkSizeExp.
func (p LODParams) CellsPerAxis(chunkSizeExp uint) int32 {
	s := int32(1) << chunkSizeExp
	return s / p.VoxelResolution
}

// CellCount returns the number of LOD cells in one TLC at this LOD.
func (p LODParams) CellCount(chunkSizeExp uint) int {
	c := p.CellsPerAxis(chunkSizeExp)
	return int(c) * int(c) * int(c)
}

// Validate checks the LOD-local invariants that do not require knowledge of
// sibling LODs (oddness of RenderAreaSize, positive VoxelResolution).
func (p LODParams) Validate() error {
	if p.VoxelResolution <= 0 {
		return fmt.Errorf("chunkpos: voxel resolution must be positive, got %d", p.VoxelResolution)
	}
	if p.RenderAreaSize <= 0 || p.RenderAreaSize%2 == 0 {
		return fmt.Errorf("chunkpos: render area size must be a positive odd number, got %d", p.RenderAreaSize)
	}
	return nil
}

// VoxelPosInLod identifies a single cell within one LOD of one TLC, in
// cell-grid coordinates (0 <= X, Y, Z < CellsPerAxis).
type VoxelPosInLod struct {
	X, Y, Z int32
}

// Index returns the linear cell index of p within a TLC whose LOD has
// cellsPerAxis cells per edge. This formula is pinned: both the CPU writer
// (the chunk loader's generator) and the GPU reader (the compute shader,
// out of scope here) must use this exact mapping.
func (p VoxelPosInLod) Index(cellsPerAxis int32) int {
	return int((p.Y*cellsPerAxis+p.X)*cellsPerAxis + p.Z)
}

// VoxelPosInLodFromIndex inverts Index, recovering the cell coordinates from
// a linear index produced by it.
func VoxelPosInLodFromIndex(idx int, cellsPerAxis int32) VoxelPosInLod {
	c := int(cellsPerAxis)
	z := int32(idx % c)
	rest := idx / c
	x := int32(rest % c)
	y := int32(rest / c)
	return VoxelPosInLod{X: x, Y: y, Z: z}
}
