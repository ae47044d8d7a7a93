// Package gpuupdate turns the dirty-range bookkeeping accumulated by a
// memgrid.Layer into the minimal list of copy regions the external GPU
// mirror must apply before its next compute dispatch. The planner never
// inspects payload content — it only ever sees offsets and lengths.
package gpuupdate

import (
	"sort"

	"github.com/calvinhirsch/ox/voxelgrid/memgrid"
)

// CopyRegion describes one contiguous byte range that must be copied from
// the CPU-side buffer to its GPU mirror at the same offset. Source and
// destination offsets coincide because a slot occupies the same ring
// address on both sides.
type CopyRegion struct {
	Offset uint64
	Length uint64
}

// MergeThresholdBytes is the maximum gap between two regions that still gets
// coalesced into one, trading a handful of redundant bytes copied for a
// smaller descriptor count.
const MergeThresholdBytes = 64

// Planner accumulates no state of its own beyond what is passed to Plan each
// call; it is stateless across frames apart from the dirty inputs it is
// given, exactly mirroring memgrid.Layer's own statelessness guarantee.
type Planner struct{}

// NewPlanner creates a Planner. There is no configuration: behavior is
// entirely determined by the per-call chunkBytes and dirty inputs.
func NewPlanner() *Planner {
	return &Planner{}
}

// Plan converts a layer's chunk-granular dirty slots and fine-grained dirty
// ranges for one sub-buffer into a coalesced list of copy regions, sorted by
// offset. chunkBytes is the byte size of one slot's worth of this
// sub-buffer (slot_base_offset = slotIndex * chunkBytes).
func (p *Planner) Plan(chunkBytes int, chunkDirtySlots []int, fine []memgrid.DirtyRange, subBuffer int) []CopyRegion {
	var regions []CopyRegion

	for _, slotIdx := range chunkDirtySlots {
		regions = append(regions, CopyRegion{
			Offset: uint64(slotIdx * chunkBytes),
			Length: uint64(chunkBytes),
		})
	}

	for _, r := range fine {
		if r.SubBuffer != subBuffer {
			continue
		}
		regions = append(regions, CopyRegion{
			Offset: uint64(r.SlotIndex*chunkBytes + r.Offset),
			Length: uint64(r.Length),
		})
	}

	return coalesce(regions)
}

func coalesce(regions []CopyRegion) []CopyRegion {
	if len(regions) == 0 {
		return nil
	}

	sort.Slice(regions, func(i, j int) bool { return regions[i].Offset < regions[j].Offset })

	out := make([]CopyRegion, 0, len(regions))
	cur := regions[0]
	for _, r := range regions[1:] {
		curEnd := cur.Offset + cur.Length
		gap := int64(r.Offset) - int64(curEnd)
		if gap <= MergeThresholdBytes {
			end := r.Offset + r.Length
			if end > curEnd {
				cur.Length = end - cur.Offset
			}
			continue
		}
		out = append(out, cur)
		cur = r
	}
	out = append(out, cur)
	return out
}
