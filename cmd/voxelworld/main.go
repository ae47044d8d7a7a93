// Command voxelworld is a minimal example wiring voxelgrid/world/loader
// into the engine render loop: a two-LOD terrain pyramid generated by a
// toy heightmap, recentered on an orbit camera every tick and mirrored to
// the GPU every frame.
package main

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/calvinhirsch/ox/engine"
	"github.com/calvinhirsch/ox/engine/camera"
	"github.com/calvinhirsch/ox/engine/renderer"
	"github.com/calvinhirsch/ox/engine/renderer/bind_group_provider"
	"github.com/calvinhirsch/ox/engine/window"
	"github.com/calvinhirsch/ox/voxelgrid"
	"github.com/calvinhirsch/ox/voxelgrid/chunkpos"
	"github.com/calvinhirsch/ox/voxelgrid/editor"
	"github.com/calvinhirsch/ox/voxelgrid/loader"
	"github.com/calvinhirsch/ox/voxelgrid/world"
)

const (
	chunkSizeExp  = 5 // S = 32 unit voxels per TLC edge
	terrainHeight = 24
	loaderThreads = 4
	loaderQueue   = 64
)

func main() {
	eng := engine.NewEngine(
		engine.WithProfiling(true),
		engine.WithTickRate(60),
		engine.WithWindow(window.NewWindow(
			window.WithTitle("Oxy Voxel World"),
			window.WithWidth(1600),
			window.WithHeight(900),
		)),
	)

	r := renderer.NewRenderer(renderer.BackendTypeWGPU, eng.Window())

	cam := camera.NewCamera(
		camera.WithFov(float32(60.0*math.Pi/180.0)),
		camera.WithAspect(float32(eng.Window().Width())/float32(eng.Window().Height())),
		camera.WithNear(0.1),
		camera.WithFar(10000),
		camera.WithController(camera.NewCameraController(
			camera.WithRadius(80),
			camera.WithTarget(0, float32(terrainHeight), 0),
			camera.WithElevation(0.5),
			camera.WithRadiusBounds(10, 2000),
		)),
	)

	idsBinding0, idsBinding1 := 1, 3
	lods := []chunkpos.LODParams{
		{VoxelResolution: 1, RenderAreaSize: 7, BitmaskBinding: 0, VoxelIDsBinding: &idsBinding0},
		{VoxelResolution: 4, RenderAreaSize: 5, BitmaskBinding: 2, VoxelIDsBinding: &idsBinding1},
	}

	grid, rc, err := voxelgrid.NewVoxelMemoryGrid(lods, chunkSizeExp, chunkpos.TlcPos{})
	if err != nil {
		log.Fatalf("voxelworld: failed to build memory grid: %v", err)
	}

	for i, lb := range rc.Layers {
		initLayerBindGroup(r, lb, lods[i])
	}

	w := world.New(grid, cam, chunkSizeExp)

	cl, err := loader.NewChunkLoader(grid, loaderThreads, loaderQueue, generateHeightmapChunk)
	if err != nil {
		log.Fatalf("voxelworld: failed to build chunk loader: %v", err)
	}

	eng.SetTickCallback(func(_ float32) {
		w.MoveCamera()
		stats := cl.Sync(context.Background(), nil)
		if stats.Dispatched > 0 || stats.Completed > 0 {
			log.Printf("voxelworld: dispatched=%d completed=%d discarded=%d failed=%d",
				stats.Dispatched, stats.Completed, stats.Discarded, stats.Failed)
		}
	})

	eng.SetRenderCallback(func(_ float32) {
		writes := grid.StageWrites(rc)
		if len(writes) > 0 {
			r.WriteBuffers(writes)
		}
	})

	log.Println("voxelworld: starting Oxy Voxel World example")
	eng.Run()
	_ = cl.Close(2 * time.Second)
}

// initLayerBindGroup creates the GPU storage buffers backing one LOD's
// bitmask (and, if present, voxel-id) mirror, using a hand-built layout
// descriptor since this example has no compute shader consumer of its own
// — the consumer is deliberately out of scope, matching the engine's
// existing separation between model-rendering shaders and this voxel
// subsystem.
func initLayerBindGroup(r renderer.Renderer, lb voxelgrid.LayerBuffers, lod chunkpos.LODParams) {
	entries := []wgpu.BindGroupLayoutEntry{
		{
			Binding:    uint32(lod.BitmaskBinding),
			Visibility: wgpu.ShaderStageCompute,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
		},
	}
	sizes := map[int]uint64{lod.BitmaskBinding: lb.BitmaskBufferSize}

	if lod.VoxelIDsBinding != nil {
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    uint32(*lod.VoxelIDsBinding),
			Visibility: wgpu.ShaderStageCompute,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
		})
		sizes[*lod.VoxelIDsBinding] = lb.IDsBufferSize
	}

	descriptor := wgpu.BindGroupLayoutDescriptor{Entries: entries}
	if err := r.InitBindGroup(lb.Bitmask, descriptor, nil, sizes); err != nil {
		log.Fatalf("voxelworld: failed to init bitmask bind group: %v", err)
	}
	if lod.VoxelIDsBinding != nil {
		if err := r.InitBindGroup(lb.IDs, descriptor, nil, sizes); err != nil {
			log.Fatalf("voxelworld: failed to init ids bind group: %v", err)
		}
	}
}

// generateHeightmapChunk fills a freshly taken TLC with a simple sine-wave
// heightmap: cells below the surface are solid stone (id 1), cells at the
// surface are grass (id 2), everything else is empty.
func generateHeightmapChunk(tlc chunkpos.TlcPos, lodIndex int, cellsPerAxis int32, ed *editor.TakenVoxelEditor[voxelgrid.VoxelTLC], _ any) error {
	voxelResolution := int32(1)
	if lodIndex == 1 {
		voxelResolution = 4
	}
	base := tlc.ToVoxelPos(chunkSizeExp)

	ed.LoadNew(cellsPerAxis, func(pos chunkpos.VoxelPosInLod) (byte, bool) {
		worldX := base[0] + pos.X*voxelResolution
		worldZ := base[2] + pos.Z*voxelResolution
		worldY := base[1] + pos.Y*voxelResolution

		surface := int32(terrainHeight) + int32(6*math.Sin(float64(worldX)*0.1)*math.Cos(float64(worldZ)*0.1))
		if worldY > surface {
			return 0, false
		}
		if worldY == surface {
			return 2, true
		}
		return 1, true
	})
	return nil
}
