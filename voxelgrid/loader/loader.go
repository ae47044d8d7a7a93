// Package loader runs voxel chunk generation on a persistent worker pool,
// draining and dispatching against a VoxelMemoryGrid each frame via Sync.
// It generalizes engine/scene.Scene's per-frame worker.DynamicWorkerPool
// usage from a one-shot barrier into a cross-frame pool whose tasks outlive
// the Sync call that submitted them.
package loader

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/calvinhirsch/ox/voxelgrid"
	"github.com/calvinhirsch/ox/voxelgrid/chunkpos"
	"github.com/calvinhirsch/ox/voxelgrid/editor"
	"github.com/calvinhirsch/ox/voxelgrid/memgrid"
)

// GenerateFunc fills a freshly taken, previously-absent TLC at one LOD.
// cellsPerAxis is that LOD's cell edge length, already resolved from the
// grid's ChunkSizeExp; implementations normally delegate to
// ed.LoadNew(cellsPerAxis, ...).
type GenerateFunc func(tlc chunkpos.TlcPos, lodIndex int, cellsPerAxis int32, ed *editor.TakenVoxelEditor[voxelgrid.VoxelTLC], metadata any) error

// SyncStats summarizes the work one Sync call did, for callers that want to
// log or profile loader throughput (see engine/profiler.Profiler for the
// kind of consumer this is intended for).
type SyncStats struct {
	Dispatched int // newly submitted to the worker pool this call
	Completed  int // drained from the completion queue and reinstated
	Discarded  int // drained but no longer matched by ReturnFromLoading (shift race)
	Failed     int // drained with a generator error or panic; requeued
}

type completion struct {
	lodIndex int
	tlc      chunkpos.TlcPos
	taken    memgrid.TakenChunk[voxelgrid.VoxelTLC]
	err      error
}

// ChunkLoader owns a bounded worker pool and, per layer of a
// VoxelMemoryGrid, drains pending load requests into it and reinstates
// completed ones. A single ChunkLoader serves every LOD layer of its grid.
type ChunkLoader struct {
	grid               *voxelgrid.VoxelMemoryGrid
	gen                GenerateFunc
	queueHighWatermark int

	pool        worker.DynamicWorkerPool
	completions chan completion
	inFlight    atomic.Int32
	nextTaskID  atomic.Int64

	wg        sync.WaitGroup // tracks in-flight Do closures, for Close's grace drain
	closeOnce sync.Once
}

// NewChunkLoader creates a ChunkLoader over grid with nThreads pool workers
// and a per-Sync dispatch budget of queueHighWatermark minus the current
// in-flight task count. Returns a ConfigurationInvalid-wrapped error if
// nThreads or queueHighWatermark is not positive, or gen is nil.
func NewChunkLoader(grid *voxelgrid.VoxelMemoryGrid, nThreads int, queueHighWatermark int, gen GenerateFunc) (*ChunkLoader, error) {
	if grid == nil {
		return nil, fmt.Errorf("loader: %w: grid must not be nil", voxelgrid.ErrConfigurationInvalid)
	}
	if nThreads <= 0 {
		return nil, fmt.Errorf("loader: %w: nThreads must be positive, got %d", voxelgrid.ErrConfigurationInvalid, nThreads)
	}
	if queueHighWatermark <= 0 {
		return nil, fmt.Errorf("loader: %w: queueHighWatermark must be positive, got %d", voxelgrid.ErrConfigurationInvalid, queueHighWatermark)
	}
	if gen == nil {
		return nil, fmt.Errorf("loader: %w: gen must not be nil", voxelgrid.ErrConfigurationInvalid)
	}

	return &ChunkLoader{
		grid:               grid,
		gen:                gen,
		queueHighWatermark: queueHighWatermark,
		pool:               worker.NewDynamicWorkerPool(nThreads, queueHighWatermark*2, 1*time.Second),
		completions:        make(chan completion, queueHighWatermark*2),
	}, nil
}

// Sync drains completed loads into the grid, then dispatches new ones up to
// the configured queue high watermark. metadata is passed through to every
// GenerateFunc call unchanged (a user-defined world seed, biome table,
// etc.); the loader never inspects it. Loads drained as failed are requeued
// only after this call's dispatch phase, so they are re-requested by the
// next Sync.
//
// ctx is observed only between dispatch iterations (not inside an
// in-flight task, which the teacher's worker pool gives no cancellation
// hook for); a cancelled ctx stops new dispatch but does not abort tasks
// already submitted.
func (cl *ChunkLoader) Sync(ctx context.Context, metadata any) SyncStats {
	var stats SyncStats
	var failed []completion

	for {
		select {
		case c, ok := <-cl.completions:
			if !ok {
				break
			}
			failed = cl.applyCompletion(c, &stats, failed)
			continue
		default:
		}
		break
	}

	remaining := cl.queueHighWatermark - int(cl.inFlight.Load())
	for i := 0; i < cl.grid.LODCount() && remaining > 0; i++ {
		if ctx.Err() != nil {
			break
		}
		layer := cl.grid.Layer(i)
		pending := layer.PendingRequests(remaining)
		for _, tlc := range pending {
			taken, ok := layer.TakeForLoading(tlc)
			if !ok {
				continue
			}
			cl.dispatch(i, tlc, taken, metadata)
			stats.Dispatched++
			remaining--
		}
	}

	for _, c := range failed {
		cl.grid.Layer(c.lodIndex).Requeue(c.tlc)
	}

	return stats
}

func (cl *ChunkLoader) applyCompletion(c completion, stats *SyncStats, failed []completion) []completion {
	layer := cl.grid.Layer(c.lodIndex)
	if c.err != nil {
		log.Printf("loader: lod %d tlc %s: generator failed: %v", c.lodIndex, c.tlc, c.err)
		stats.Failed++
		return append(failed, c)
	}
	if layer.ReturnFromLoading(c.tlc, c.taken) {
		stats.Completed++
	} else {
		stats.Discarded++
	}
	return failed
}

func (cl *ChunkLoader) dispatch(lodIndex int, tlc chunkpos.TlcPos, taken memgrid.TakenChunk[voxelgrid.VoxelTLC], metadata any) {
	cl.inFlight.Add(1)
	cl.wg.Add(1)
	id := int(cl.nextTaskID.Add(1))

	cl.pool.SubmitTask(worker.Task{
		ID: id,
		Do: func() (any, error) {
			defer cl.wg.Done()
			defer cl.inFlight.Add(-1)

			result, err := cl.runGenerate(lodIndex, tlc, taken, metadata)
			cl.completions <- completion{lodIndex: lodIndex, tlc: tlc, taken: result, err: err}
			return nil, nil
		},
	})
}

// runGenerate invokes the user generator with panic recovery, since the
// teacher's worker pool does not recover panics inside a submitted task's
// Do itself — an unrecovered panic here would take down the whole pool
// goroutine rather than just failing this one chunk.
func (cl *ChunkLoader) runGenerate(lodIndex int, tlc chunkpos.TlcPos, taken memgrid.TakenChunk[voxelgrid.VoxelTLC], metadata any) (result memgrid.TakenChunk[voxelgrid.VoxelTLC], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader: generator panicked: %v", r)
		}
	}()

	cellsPerAxis := cl.grid.LODParams(lodIndex).CellsPerAxis(cl.grid.ChunkSizeExp())
	takenEditor := &memgrid.TakenEditor[voxelgrid.VoxelTLC]{Taken: &taken}
	ed := editor.NewTakenVoxelEditor[voxelgrid.VoxelTLC](takenEditor, cellsPerAxis)

	if genErr := cl.gen(tlc, lodIndex, cellsPerAxis, ed, metadata); genErr != nil {
		return taken, genErr
	}
	return taken, nil
}

// Close waits up to grace for in-flight tasks to finish, then returns
// without further waiting. It does not stop the worker pool, and a Sync
// called after Close still dispatches pending loads. Safe to call more
// than once; only the first call has effect, matching engine.Quit's
// sync.Once-guarded shutdown discipline.
func (cl *ChunkLoader) Close(grace time.Duration) error {
	var err error
	cl.closeOnce.Do(func() {
		done := make(chan struct{})
		go func() {
			cl.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(grace):
			err = fmt.Errorf("loader: close timed out after %s with %d tasks still in flight", grace, cl.inFlight.Load())
		}
	})
	return err
}
