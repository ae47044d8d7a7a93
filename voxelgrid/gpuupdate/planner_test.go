package gpuupdate_test

import (
	"testing"

	"github.com/calvinhirsch/ox/voxelgrid/gpuupdate"
	"github.com/calvinhirsch/ox/voxelgrid/memgrid"
)

func TestPlanChunkDirtyProducesFullChunkRegions(t *testing.T) {
	p := gpuupdate.NewPlanner()
	const chunkBytes = 16

	regions := p.Plan(chunkBytes, []int{2}, nil, 0)
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(regions))
	}
	if regions[0].Offset != 2*chunkBytes || regions[0].Length != chunkBytes {
		t.Fatalf("got %+v, want offset=%d length=%d", regions[0], 2*chunkBytes, chunkBytes)
	}
}

func TestPlanFiltersBySubBuffer(t *testing.T) {
	p := gpuupdate.NewPlanner()
	const chunkBytes = 16

	fine := []memgrid.DirtyRange{
		{SlotIndex: 0, SubBuffer: 0, Offset: 3, Length: 1},
		{SlotIndex: 0, SubBuffer: 1, Offset: 5, Length: 1},
	}

	regions := p.Plan(chunkBytes, nil, fine, 1)
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(regions))
	}
	if regions[0].Offset != 5 {
		t.Fatalf("got offset %d, want 5 (only sub-buffer 1 range)", regions[0].Offset)
	}
}

func TestPlanCoalescesAdjacentAndNearbyRegions(t *testing.T) {
	p := gpuupdate.NewPlanner()
	const chunkBytes = 100

	// Two chunk-dirty slots that are physically adjacent should merge into
	// one region spanning both chunks.
	regions := p.Plan(chunkBytes, []int{0, 1}, nil, 0)
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1 merged region", len(regions))
	}
	if regions[0].Offset != 0 || regions[0].Length != 2*chunkBytes {
		t.Fatalf("got %+v, want offset=0 length=%d", regions[0], 2*chunkBytes)
	}
}

func TestPlanDoesNotMergeAcrossLargeGap(t *testing.T) {
	p := gpuupdate.NewPlanner()
	const chunkBytes = 1000 // gap between slot 0 and slot 5 far exceeds MergeThresholdBytes

	regions := p.Plan(chunkBytes, []int{0, 5}, nil, 0)
	if len(regions) != 2 {
		t.Fatalf("got %d regions, want 2 (gap too large to merge)", len(regions))
	}
}

func TestPlanSortsRegionsByOffset(t *testing.T) {
	p := gpuupdate.NewPlanner()
	const chunkBytes = 1000

	regions := p.Plan(chunkBytes, []int{5, 0}, nil, 0)
	if len(regions) != 2 {
		t.Fatalf("got %d regions, want 2", len(regions))
	}
	if regions[0].Offset > regions[1].Offset {
		t.Fatalf("regions not sorted: %+v", regions)
	}
}

func TestPlanWithNoInputReturnsNil(t *testing.T) {
	p := gpuupdate.NewPlanner()
	if regions := p.Plan(16, nil, nil, 0); regions != nil {
		t.Fatalf("got %v, want nil", regions)
	}
}
