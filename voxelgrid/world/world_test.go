package world_test

import (
	"testing"

	"github.com/calvinhirsch/ox/engine/camera"
	"github.com/calvinhirsch/ox/voxelgrid"
	"github.com/calvinhirsch/ox/voxelgrid/chunkpos"
	"github.com/calvinhirsch/ox/voxelgrid/memgrid"
	"github.com/calvinhirsch/ox/voxelgrid/world"
)

func buildTestWorld(t *testing.T) (*world.World, *voxelgrid.VoxelMemoryGrid) {
	t.Helper()
	lods := []chunkpos.LODParams{
		{VoxelResolution: 1, RenderAreaSize: 3, BitmaskBinding: 0},
	}
	grid, _, err := voxelgrid.NewVoxelMemoryGrid(lods, 3, chunkpos.TlcPos{}) // S = 8
	if err != nil {
		t.Fatalf("NewVoxelMemoryGrid: %v", err)
	}

	cam := camera.NewCamera(
		camera.WithController(camera.NewCameraController()),
	)

	return world.New(grid, cam, 3), grid
}

func TestMoveCameraRecentersOnControllerPosition(t *testing.T) {
	w, grid := buildTestWorld(t)
	w.Cam.Controller().SetPosition(100, 0, 0) // voxel x=100 -> TLC 12 at S=8

	entered := w.MoveCamera()
	if len(entered[0]) == 0 {
		t.Fatal("expected MoveCamera to admit newly-entered TLCs for layer 0")
	}

	layer := grid.Layer(0)
	wantCenter := chunkpos.VoxelPos{100, 0, 0}.ToTlcPos(3)
	if !layer.Contains(wantCenter) {
		t.Fatalf("expected layer window to contain the camera's TLC %v after recentering", wantCenter)
	}
}

func TestMoveCameraNilControllerIsNoop(t *testing.T) {
	lods := []chunkpos.LODParams{{VoxelResolution: 1, RenderAreaSize: 3, BitmaskBinding: 0}}
	grid, _, _ := voxelgrid.NewVoxelMemoryGrid(lods, 3, chunkpos.TlcPos{})
	cam := camera.NewCamera() // no controller attached
	w := world.New(grid, cam, 3)

	if entered := w.MoveCamera(); entered != nil {
		t.Fatalf("expected nil result with no controller, got %v", entered)
	}
}

func TestEditChunkBufferStateClassification(t *testing.T) {
	w, _ := buildTestWorld(t)

	// D=4, window offsets [0,3] on every axis; RenderAreaSize=3 means the
	// effective render area is offsets [0,2] and only offset 3 is preload
	// shell (centeredOrigin puts all the slack on the positive side).
	origin := w.Grid.Layer(0).OriginTLC()
	_, minCornerState := w.EditChunk(origin)
	if minCornerState != world.NotBuffer {
		t.Fatalf("chunk at the window's minimal corner is within the render area, should be NotBuffer, got %v", minCornerState)
	}

	interior := chunkpos.TlcPos{origin[0] + 1, origin[1] + 1, origin[2] + 1}
	_, interiorState := w.EditChunk(interior)
	if interiorState != world.NotBuffer {
		t.Fatalf("interior chunk should be NotBuffer, got %v", interiorState)
	}

	maxCorner := chunkpos.TlcPos{origin[0] + 3, origin[1] + 3, origin[2] + 3}
	_, maxCornerState := w.EditChunk(maxCorner)
	if maxCornerState != world.PositiveBuffer {
		t.Fatalf("chunk at the window's maximal corner (offset == RenderAreaSize) should be PositiveBuffer, got %v", maxCornerState)
	}
}

// fogLayerPayload is a minimal memgrid.Payload implementation standing in
// for a caller's own per-TLC data (fog density, biome id, etc.) composed
// alongside the voxel grid.
type fogLayerPayload struct {
	density byte
}

func (f fogLayerPayload) NewEmpty() fogLayerPayload { return fogLayerPayload{} }

func (f fogLayerPayload) Buffers() map[int][]byte {
	return map[int][]byte{0: {f.density}}
}

func TestMoveCameraShiftsUserLayersInLockstep(t *testing.T) {
	w, _ := buildTestWorld(t)

	fogLayer, err := memgrid.New[fogLayerPayload](3, chunkpos.TlcPos{}, fogLayerPayload{}, nil)
	if err != nil {
		t.Fatalf("memgrid.New: %v", err)
	}
	w.UserLayers = append(w.UserLayers, fogLayer)

	w.Cam.Controller().SetPosition(100, 0, 0)
	w.MoveCamera()

	wantCenter := chunkpos.VoxelPos{100, 0, 0}.ToTlcPos(3)
	if !fogLayer.Contains(wantCenter) {
		t.Fatalf("expected user layer window to contain the camera's TLC %v after MoveCamera", wantCenter)
	}
}
