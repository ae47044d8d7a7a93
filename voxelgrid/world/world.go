// Package world sequences the per-frame phases of a voxel scene: recenter
// the memory grid (and any user-defined layers riding alongside it) on the
// camera, let callers edit resident chunks, then drain GPU update regions —
// owning the camera and grid the way engine/scene.Scene owns a camera and
// renderer.
package world

import (
	"math"

	"github.com/calvinhirsch/ox/engine/camera"
	"github.com/calvinhirsch/ox/voxelgrid"
	"github.com/calvinhirsch/ox/voxelgrid/chunkpos"
	"github.com/calvinhirsch/ox/voxelgrid/editor"
)

// BufferChunkState classifies whether a TLC edited via EditChunk sits inside
// a layer's effective render area or, on at least one axis, in its preload
// shell. It is a single value for the TLC, not one value per axis.
type BufferChunkState int

const (
	// NotBuffer means the chunk is within the effective render area on
	// every axis (the RenderAreaSize cube, not the +1 preload shell).
	NotBuffer BufferChunkState = iota
	// NegativeBuffer means the chunk sits in the preload shell on the
	// negative side of at least one axis.
	NegativeBuffer
	// PositiveBuffer means the chunk sits in the preload shell on the
	// positive side of at least one axis.
	PositiveBuffer
)

// UserLayer is the narrow capability a caller-owned layer must satisfy to
// ride alongside the voxel grid: recentering on the same TLC window as the
// grid's LOD 0. Any *memgrid.Layer[T] already satisfies this through its
// own Shift method, for whatever payload type T the caller chose — World
// never needs to name T, so a single []UserLayer can mix layers of
// different payload shapes (fog density, biome id, whatever a caller
// composes alongside the voxel data).
type UserLayer interface {
	Shift(newOrigin chunkpos.TlcPos) []chunkpos.TlcPos
}

// World owns the voxel memory grid, any number of user-typed layers
// composed alongside it, and the camera it is recentered on. It sequences
// MoveCamera -> EditChunk -> GetUpdates the way scene.Scene sequences
// PrepareCompute -> DrawCalls. The sequencing is documented convention, not
// type-enforced, matching the teacher's style elsewhere.
type World struct {
	Grid         *voxelgrid.VoxelMemoryGrid
	UserLayers   []UserLayer
	Cam          camera.Camera
	ChunkSizeExp uint
}

// New creates a World over an already-constructed grid and camera, with no
// user layers. Append to UserLayers directly to compose additional layers
// (e.g. *memgrid.Layer[FogDensity]) that should shift in lockstep with the
// grid's LOD 0 window.
func New(grid *voxelgrid.VoxelMemoryGrid, cam camera.Camera, chunkSizeExp uint) *World {
	return &World{Grid: grid, Cam: cam, ChunkSizeExp: chunkSizeExp}
}

// MoveCamera recenters every LOD layer of the grid, and every UserLayer, on
// the camera's current controller position, converted to the TLC containing
// it. User layers recenter on the same window as the grid's LOD 0 (the
// finest LOD), since a user layer's cadence is defined relative to render
// distance, not to any one LOD's own area size. MoveCamera returns the TLCs
// newly admitted as SlotLoading across the grid's LOD layers, keyed by
// layer index (callers normally hand this straight to a ChunkLoader,
// which re-derives it per layer from each layer's own pending list instead
// — this return value exists for callers that want to observe load pressure
// directly without a loader in the loop). UserLayers' own newly-admitted
// TLCs are not returned; a caller needing to load them keeps its own
// *memgrid.Layer[T] reference (not just the UserLayer view held here) and
// drives PendingRequests on it directly.
func (w *World) MoveCamera() map[int][]chunkpos.TlcPos {
	ctrl := w.Cam.Controller()
	if ctrl == nil {
		return nil
	}
	px, py, pz := ctrl.Position()
	voxelPos := chunkpos.VoxelPos{
		int32(math.Floor(float64(px))),
		int32(math.Floor(float64(py))),
		int32(math.Floor(float64(pz))),
	}
	newOrigin := voxelPos.ToTlcPos(w.ChunkSizeExp)

	out := make(map[int][]chunkpos.TlcPos, w.Grid.LODCount())
	for i := 0; i < w.Grid.LODCount(); i++ {
		layer := w.Grid.Layer(i)
		entered := layer.Shift(centeredOrigin(newOrigin, w.Grid.LODParams(i)))
		if len(entered) > 0 {
			out[i] = entered
		}
	}

	if len(w.UserLayers) > 0 {
		origin := centeredOrigin(newOrigin, w.Grid.LODParams(0))
		for _, ul := range w.UserLayers {
			ul.Shift(origin)
		}
	}
	return out
}

// centeredOrigin returns the minimal-corner TLC of a RenderAreaSize+1 window
// centered on cam, for a layer with the given LOD params.
func centeredOrigin(cam chunkpos.TlcPos, lod chunkpos.LODParams) chunkpos.TlcPos {
	half := lod.RenderAreaSize / 2
	return chunkpos.TlcPos{cam[0] - half, cam[1] - half, cam[2] - half}
}

// EditChunk returns a MultiLODEditor for tlc plus its BufferChunkState.
// The state is judged against every LOD layer whose window contains tlc,
// each with its own RenderAreaSize: PositiveBuffer if tlc sits in the
// preload shell of any of them, NotBuffer otherwise.
func (w *World) EditChunk(tlc chunkpos.TlcPos) (*editor.MultiLODEditor[voxelgrid.VoxelTLC], BufferChunkState) {
	ed := w.Grid.EditChunk(tlc)
	return ed, w.bufferState(tlc)
}

// bufferState classifies tlc against every layer's window and returns the
// most specific non-NotBuffer verdict found. centeredOrigin puts the
// window's entire single-slot preload slack on the positive side of each
// axis (origin = cam - RenderAreaSize/2, so offsets [0, RenderAreaSize-1]
// are the effective, fully-resident render area and only offset
// RenderAreaSize is preload shell); a TLC at offset 0 is therefore a
// legitimate render-area chunk, not a buffer slot. NegativeBuffer is
// reserved for layers recentered with the opposite slack placement (none
// currently exist in this package, but the type stays part of the public
// contract so a caller composing an asymmetric UserLayer has somewhere to
// report it).
func (w *World) bufferState(tlc chunkpos.TlcPos) BufferChunkState {
	for i := 0; i < w.Grid.LODCount(); i++ {
		layer := w.Grid.Layer(i)
		if !layer.Contains(tlc) {
			continue
		}
		origin := layer.OriginTLC()
		lod := w.Grid.LODParams(i)
		for a := 0; a < 3; a++ {
			offset := tlc[a] - origin[a]
			if offset == lod.RenderAreaSize {
				return PositiveBuffer
			}
		}
	}
	return NotBuffer
}
