package loader_test

import (
	"context"
	"testing"
	"time"

	"github.com/calvinhirsch/ox/voxelgrid"
	"github.com/calvinhirsch/ox/voxelgrid/chunkpos"
	"github.com/calvinhirsch/ox/voxelgrid/editor"
	"github.com/calvinhirsch/ox/voxelgrid/loader"
)

func buildTestGrid(t *testing.T) *voxelgrid.VoxelMemoryGrid {
	t.Helper()
	lods := []chunkpos.LODParams{
		{VoxelResolution: 1, RenderAreaSize: 3, BitmaskBinding: 0},
	}
	grid, _, err := voxelgrid.NewVoxelMemoryGrid(lods, 2, chunkpos.TlcPos{}) // S = 4, D = 4
	if err != nil {
		t.Fatalf("NewVoxelMemoryGrid: %v", err)
	}
	return grid
}

func TestNewChunkLoaderValidatesConfig(t *testing.T) {
	grid := buildTestGrid(t)
	noop := func(chunkpos.TlcPos, int, int32, *editor.TakenVoxelEditor[voxelgrid.VoxelTLC], any) error { return nil }

	cases := []struct {
		name     string
		nThreads int
		queue    int
		gen      loader.GenerateFunc
	}{
		{"zero threads", 0, 8, noop},
		{"negative queue", 2, -1, noop},
		{"nil generator", 2, 8, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := loader.NewChunkLoader(grid, c.nThreads, c.queue, c.gen); err == nil {
				t.Fatal("expected a configuration error")
			}
		})
	}
}

func TestSyncDispatchesAndEventuallyCompletesAll(t *testing.T) {
	grid := buildTestGrid(t)
	total := grid.Layer(0).SlotCount()

	gen := func(_ chunkpos.TlcPos, _ int, cellsPerAxis int32, ed *editor.TakenVoxelEditor[voxelgrid.VoxelTLC], _ any) error {
		ed.LoadNew(cellsPerAxis, func(chunkpos.VoxelPosInLod) (byte, bool) {
			return 0, false
		})
		return nil
	}

	cl, err := loader.NewChunkLoader(grid, 4, total, gen)
	if err != nil {
		t.Fatalf("NewChunkLoader: %v", err)
	}
	defer cl.Close(time.Second)

	ctx := context.Background()
	completed := 0
	deadline := time.Now().Add(5 * time.Second)
	for completed < total && time.Now().Before(deadline) {
		stats := cl.Sync(ctx, nil)
		completed += stats.Completed
		if stats.Completed == 0 && stats.Dispatched == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}

	if completed != total {
		t.Fatalf("completed %d of %d chunks before deadline", completed, total)
	}
	if got := grid.Layer(0).PendingCount(); got != 0 {
		t.Fatalf("PendingCount = %d, want 0 once every chunk has loaded", got)
	}
}

func TestSyncRequeuesFailedGeneration(t *testing.T) {
	grid := buildTestGrid(t)

	failing := func(_ chunkpos.TlcPos, _ int, _ int32, _ *editor.TakenVoxelEditor[voxelgrid.VoxelTLC], _ any) error {
		return errAlways
	}

	cl, err := loader.NewChunkLoader(grid, 2, grid.Layer(0).SlotCount(), failing)
	if err != nil {
		t.Fatalf("NewChunkLoader: %v", err)
	}
	defer cl.Close(time.Second)

	ctx := context.Background()
	sawFailure := false
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		stats := cl.Sync(ctx, nil)
		if stats.Failed > 0 {
			sawFailure = true
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !sawFailure {
		t.Fatal("expected at least one Failed completion from the always-erroring generator")
	}
	// A failed chunk must be retried, not stranded: it should show back up
	// on the pending list.
	if got := grid.Layer(0).PendingCount(); got == 0 {
		t.Fatal("expected the failed chunk to have been requeued onto the pending list")
	}
}

type staticError string

func (e staticError) Error() string { return string(e) }

const errAlways = staticError("generator always fails")
