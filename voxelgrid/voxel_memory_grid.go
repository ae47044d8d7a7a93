// Package voxelgrid composes the generic memgrid.Layer ring buffer into the
// N-layer LOD pyramid described by SPEC_FULL.md, and owns the GPU-visible
// renderer component each layer is mirrored into.
package voxelgrid

import (
	"fmt"

	"github.com/calvinhirsch/ox/engine/renderer/bind_group_provider"
	"github.com/calvinhirsch/ox/voxelgrid/chunkpos"
	"github.com/calvinhirsch/ox/voxelgrid/editor"
	"github.com/calvinhirsch/ox/voxelgrid/gpuupdate"
	"github.com/calvinhirsch/ox/voxelgrid/memgrid"
)

// LayerBuffers holds the provider and byte sizes for one LOD's GPU mirror.
// Providers are created uninitialized (no GPU resources yet); a caller with
// an actual renderer.Renderer must call InitBindGroup on them before the
// first GetUpdates-driven WriteBuffers, exactly as scene.NewScene does for
// the camera's BindGroupProvider.
type LayerBuffers struct {
	Bitmask bind_group_provider.BindGroupProvider
	IDs     bind_group_provider.BindGroupProvider // nil if this LOD has no id buffer

	BitmaskBufferSize uint64
	IDsBufferSize     uint64
}

// RendererComponent is the GPU-facing handle returned by NewVoxelMemoryGrid,
// one LayerBuffers per LOD.
type RendererComponent struct {
	Layers []LayerBuffers
}

// VoxelMemoryGrid composes N memgrid.Layer[VoxelTLC], one per LODParams,
// each independently recentered on the camera each frame.
type VoxelMemoryGrid struct {
	chunkSizeExp uint
	lods         []chunkpos.LODParams
	layers       []*memgrid.Layer[VoxelTLC]
	planner      *gpuupdate.Planner
}

// NewVoxelMemoryGrid allocates one layer per entry of lods and the
// RendererComponent that mirrors them to the GPU. Returns
// ConfigurationInvalid-wrapped errors for non-odd RenderAreaSize, duplicate
// GPU bindings across LODs, or byte-size overflow of D^3*bytesPerTLC.
func NewVoxelMemoryGrid(lods []chunkpos.LODParams, chunkSizeExp uint, startTLC chunkpos.TlcPos) (*VoxelMemoryGrid, *RendererComponent, error) {
	if len(lods) == 0 {
		return nil, nil, fmt.Errorf("voxelgrid: %w: at least one LOD is required", ErrConfigurationInvalid)
	}

	seenBindings := make(map[int]int) // binding -> lod index, across bitmask and ids bindings alike
	for i, lod := range lods {
		if err := lod.Validate(); err != nil {
			return nil, nil, fmt.Errorf("voxelgrid: %w: lod %d: %v", ErrConfigurationInvalid, i, err)
		}
		if prev, ok := seenBindings[lod.BitmaskBinding]; ok {
			return nil, nil, fmt.Errorf("voxelgrid: %w: lod %d and lod %d both use bitmask binding %d", ErrConfigurationInvalid, prev, i, lod.BitmaskBinding)
		}
		seenBindings[lod.BitmaskBinding] = i
		if lod.VoxelIDsBinding != nil {
			if prev, ok := seenBindings[*lod.VoxelIDsBinding]; ok {
				return nil, nil, fmt.Errorf("voxelgrid: %w: lod %d and lod %d share GPU binding %d", ErrConfigurationInvalid, prev, i, *lod.VoxelIDsBinding)
			}
			seenBindings[*lod.VoxelIDsBinding] = i
		}
	}

	grid := &VoxelMemoryGrid{
		chunkSizeExp: chunkSizeExp,
		lods:         append([]chunkpos.LODParams(nil), lods...),
		layers:       make([]*memgrid.Layer[VoxelTLC], len(lods)),
		planner:      gpuupdate.NewPlanner(),
	}
	rc := &RendererComponent{Layers: make([]LayerBuffers, len(lods))}

	for i, lod := range lods {
		cellsPerAxis := lod.CellsPerAxis(chunkSizeExp)
		template := newVoxelTLC(cellsPerAxis, lod.VoxelIDsBinding != nil)

		layer, err := memgrid.New(lod.RenderAreaSize, startTLC, template, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("voxelgrid: %w: lod %d: %v", ErrConfigurationInvalid, i, err)
		}
		grid.layers[i] = layer

		d3 := uint64(layer.SlotCount())
		bitmaskSize := d3 * uint64(template.BitmaskBytes())
		if template.BitmaskBytes() > 0 && bitmaskSize/uint64(template.BitmaskBytes()) != d3 {
			return nil, nil, fmt.Errorf("voxelgrid: %w: lod %d: bitmask buffer size overflows", ErrConfigurationInvalid, i)
		}

		lb := LayerBuffers{
			Bitmask:           bind_group_provider.NewBindGroupProvider(fmt.Sprintf("voxelgrid-lod%d-bitmask", i)),
			BitmaskBufferSize: bitmaskSize,
		}
		if lod.VoxelIDsBinding != nil {
			idsSize := d3 * uint64(template.VoxelIDBytes())
			if template.VoxelIDBytes() > 0 && idsSize/uint64(template.VoxelIDBytes()) != d3 {
				return nil, nil, fmt.Errorf("voxelgrid: %w: lod %d: ids buffer size overflows", ErrConfigurationInvalid, i)
			}
			lb.IDs = bind_group_provider.NewBindGroupProvider(fmt.Sprintf("voxelgrid-lod%d-ids", i))
			lb.IDsBufferSize = idsSize
		}
		rc.Layers[i] = lb
	}

	return grid, rc, nil
}

// ChunkSizeExp returns the configured chunk size exponent (S = 1<<exp).
func (g *VoxelMemoryGrid) ChunkSizeExp() uint { return g.chunkSizeExp }

// LODCount returns N, the number of LOD layers.
func (g *VoxelMemoryGrid) LODCount() int { return len(g.layers) }

// LODParams returns the LOD descriptor for layer i.
func (g *VoxelMemoryGrid) LODParams(i int) chunkpos.LODParams { return g.lods[i] }

// Layer returns the underlying memgrid.Layer for LOD i, for callers (the
// loader, World) that need direct access to Shift/EditChunk/etc.
func (g *VoxelMemoryGrid) Layer(i int) *memgrid.Layer[VoxelTLC] { return g.layers[i] }

// EditChunk returns a MultiLODEditor with one sub-editor per LOD, nil for
// any LOD that doesn't currently hold tlc as resident.
func (g *VoxelMemoryGrid) EditChunk(tlc chunkpos.TlcPos) *editor.MultiLODEditor[VoxelTLC] {
	subs := make([]*editor.VoxelEditor[VoxelTLC], len(g.layers))
	for i, layer := range g.layers {
		cellsPerAxis := g.lods[i].CellsPerAxis(g.chunkSizeExp)
		if ed, ok := layer.EditChunk(tlc); ok {
			subs[i] = editor.NewVoxelEditor[VoxelTLC](ed, cellsPerAxis)
		}
	}
	return &editor.MultiLODEditor[VoxelTLC]{LODs: subs}
}

// LayerUpdates is the per-LOD output of GetUpdates: one coalesced copy
// region list per GPU sub-buffer.
type LayerUpdates struct {
	Bitmask []gpuupdate.CopyRegion
	IDs     []gpuupdate.CopyRegion // empty if this LOD carries no id buffer
}

// GetUpdates drains every layer's dirty state through the GPU update
// planner and returns the resulting copy regions, keyed by LOD index.
// Source and destination offsets coincide (ring addresses match CPU/GPU
// side); the caller is responsible for slicing its own CPU-side mirror at
// each region's offset/length and staging it via
// renderer.Renderer.WriteBuffers against the matching LayerBuffers
// provider.
func (g *VoxelMemoryGrid) GetUpdates() map[int]LayerUpdates {
	out := make(map[int]LayerUpdates, len(g.layers))
	for i, layer := range g.layers {
		chunkDirty := layer.ChunkDirty()
		fine := layer.FineDirty()

		lod := g.lods[i]
		cellsPerAxis := lod.CellsPerAxis(g.chunkSizeExp)
		cells := int(cellsPerAxis) * int(cellsPerAxis) * int(cellsPerAxis)
		bitmaskBytes := (cells + 7) / 8

		lu := LayerUpdates{Bitmask: g.planner.Plan(bitmaskBytes, chunkDirty, fine, chunkpos.SubBufferBitmask)}
		if lod.VoxelIDsBinding != nil {
			lu.IDs = g.planner.Plan(cells, chunkDirty, fine, chunkpos.SubBufferIDs)
		}
		out[i] = lu
	}
	return out
}

// StageWrites drains GetUpdates and resolves each copy region's bytes back
// out of the owning layer's slots, returning ready-to-apply
// bind_group_provider.BufferWrite entries against rc (the RendererComponent
// returned alongside this grid by NewVoxelMemoryGrid). Callers normally
// pass the result straight to renderer.Renderer.WriteBuffers, exactly as
// scene.Scene does with its own writePool.
func (g *VoxelMemoryGrid) StageWrites(rc *RendererComponent) []bind_group_provider.BufferWrite {
	var writes []bind_group_provider.BufferWrite

	for i, lu := range g.GetUpdates() {
		lod := g.lods[i]
		layer := g.layers[i]
		cellsPerAxis := lod.CellsPerAxis(g.chunkSizeExp)
		cells := int(cellsPerAxis) * int(cellsPerAxis) * int(cellsPerAxis)
		bitmaskChunkBytes := (cells + 7) / 8

		for _, r := range lu.Bitmask {
			writes = append(writes, bind_group_provider.BufferWrite{
				Provider: rc.Layers[i].Bitmask,
				Binding:  lod.BitmaskBinding,
				Offset:   r.Offset,
				Data:     readRegion(layer, chunkpos.SubBufferBitmask, bitmaskChunkBytes, r),
			})
		}
		if lod.VoxelIDsBinding != nil {
			for _, r := range lu.IDs {
				writes = append(writes, bind_group_provider.BufferWrite{
					Provider: rc.Layers[i].IDs,
					Binding:  *lod.VoxelIDsBinding,
					Offset:   r.Offset,
					Data:     readRegion(layer, chunkpos.SubBufferIDs, cells, r),
				})
			}
		}
	}

	return writes
}

// readRegion copies the bytes of one coalesced copy region back out of a
// layer's slots, one slot's worth at a time. A region may span more than
// one physical slot once coalesced, since adjacent slots' full-chunk dirty
// ranges sit back-to-back in ring-address space with zero gap.
func readRegion[T memgrid.Payload[T]](layer *memgrid.Layer[T], subBuffer int, chunkBytes int, region gpuupdate.CopyRegion) []byte {
	out := make([]byte, region.Length)
	remaining := region.Length
	addr := region.Offset
	for remaining > 0 {
		slotIdx := int(addr / uint64(chunkBytes))
		localOff := int(addr % uint64(chunkBytes))
		avail := uint64(chunkBytes - localOff)
		n := avail
		if n > remaining {
			n = remaining
		}
		buf := layer.PayloadAtSlot(slotIdx).Buffers()[subBuffer]
		copy(out[region.Length-remaining:], buf[localOff:localOff+int(n)])
		addr += n
		remaining -= n
	}
	return out
}
