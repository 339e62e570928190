package malloc

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/brkheap/malloc/internal/utils"
	"github.com/vkngwrapper/brkheap/memutils"
	"github.com/vkngwrapper/brkheap/memutils/arena"
	"github.com/vkngwrapper/brkheap/memutils/metadata"
	"golang.org/x/exp/slog"
)

//go:generate mockgen -source allocator.go -destination internal/mocks/mock_arena.go -package mocks

// ArenaBackend is the region an Allocator grows into. It behaves like a program break: the
// region is reserved once and never moves, and Extend hands out the bytes directly above the
// current break. Offsets are relative to the start of Bytes.
type ArenaBackend interface {
	// Base returns the offset of the first byte the break may cover
	Base() int
	// Break returns the offset one past the last byte handed out by Extend
	Break() int
	// Capacity returns the size of the region in bytes
	Capacity() int
	// Bytes returns the whole region
	Bytes() []byte
	// Extend moves the break forward by n bytes and returns the old break
	Extend(n int) (int, error)
	// Reset moves the break back to the base
	Reset()
	// Release gives the region back. The backend cannot be used afterward.
	Release() error
}

var _ ArenaBackend = &arena.Arena{}

// Pointer is the offset of the first payload byte of an allocation within the arena's Bytes.
// It stays valid until the allocation is freed or the allocator is reset.
type Pointer int

// NilPointer is never the payload of an allocation, since every payload follows a header
const NilPointer Pointer = 0

// Allocator hands out variable-size regions of a single arena, growing the arena's break when
// no free block can satisfy a request. Freed blocks are merged with their free neighbors and
// reused according to the search mode the allocator was created with.
//
// Unless it was created with AllocatorCreateSynchronized, an Allocator must only be used from
// one goroutine at a time.
type Allocator struct {
	logger      *slog.Logger
	createFlags CreateFlags
	mutex       utils.OptionalRWMutex

	backend ArenaBackend
	base    int
	heap    *metadata.HeapMetadata
}

var _ memutils.Validatable = &Allocator{}

var errDestroyed = errors.New("the allocator has been destroyed")

// Allocate reserves at least size bytes and returns a pointer to the first of them. The size
// is rounded up to the machine word. When no free block is large enough the arena is
// extended, and if the arena is exhausted an error marked with memutils.ErrOutOfMemory is
// returned.
func (a *Allocator) Allocate(size int) (Pointer, error) {
	a.logger.Debug("Allocator::Allocate", slog.Int("Size", size))

	if size < 1 {
		return NilPointer, errors.Wrapf(memutils.ErrInvalidSize, "cannot allocate %d bytes", size)
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.backend == nil {
		return NilPointer, errDestroyed
	}

	if size > a.backend.Capacity()-a.base-metadata.HeaderSize {
		a.logger.Debug("  Allocate FAILED")
		return NilPointer, errors.Mark(
			errors.Wrapf(memutils.ErrOutOfArena, "a %d byte allocation can never fit in a %d byte arena", size, a.backend.Capacity()),
			memutils.ErrOutOfMemory,
		)
	}
	size = metadata.Align(size)

	success, req, err := a.heap.CreateAllocationRequest(size)
	if err != nil {
		return NilPointer, err
	}

	if success {
		err = a.heap.Alloc(req)
		if err != nil {
			return NilPointer, errors.Wrapf(err, "failed to commit allocation request for block %d", req.Block)
		}

		a.logger.LogAttrs(context.Background(), slog.LevelDebug, "    Reused free block",
			slog.Int("Block", req.Block),
			slog.Int("BlockSize", req.BlockSize),
			slog.Bool("Split", req.Split),
		)
		return a.pointerTo(req.Block), nil
	}

	oldBreak, err := a.backend.Extend(metadata.HeaderSize + size)
	if err != nil {
		a.logger.Debug("  Allocate FAILED")
		return NilPointer, errors.Mark(
			errors.Wrapf(err, "failed to extend the arena for a %d byte allocation", size),
			memutils.ErrOutOfMemory,
		)
	}

	block := oldBreak - a.base
	err = a.heap.Append(block, size)
	if err != nil {
		return NilPointer, errors.Wrapf(err, "arena returned break %d that does not continue the heap", oldBreak)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "    Extended arena",
		slog.Int("Block", block),
		slog.Int("Break", a.backend.Break()),
	)
	return a.pointerTo(block), nil
}

func (a *Allocator) pointerTo(block int) Pointer {
	return Pointer(a.base + metadata.PayloadOf(block))
}

func (a *Allocator) blockOf(p Pointer) int {
	return metadata.BlockFor(int(p) - a.base)
}

// Free returns an allocation to the allocator. It returns an error wrapping
// memutils.ErrInvalidFree if p is not a pointer returned by Allocate that is still live,
// which includes freeing the same pointer twice.
func (a *Allocator) Free(p Pointer) error {
	a.logger.Debug("Allocator::Free", slog.Int("Pointer", int(p)))

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.backend == nil {
		return errDestroyed
	}

	result, err := a.heap.Free(a.blockOf(p))
	if err != nil {
		return errors.Wrapf(err, "failed to free pointer %d", p)
	}

	if result.Merged > 0 {
		a.logger.LogAttrs(context.Background(), slog.LevelDebug, "    Coalesced free blocks",
			slog.Int("Block", result.Block),
			slog.Int("Size", result.Size),
			slog.Int("Merged", result.Merged),
		)
	}

	return nil
}

// Reset frees every allocation at once and moves the arena break back to its base. All
// pointers returned by Allocate become invalid.
func (a *Allocator) Reset() {
	a.logger.Debug("Allocator::Reset")

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.backend == nil {
		return
	}

	a.backend.Reset()
	a.heap.Clear()
}

// Bytes returns the memory of a live allocation. The slice covers the whole block, which
// may be larger than the size that was requested.
func (a *Allocator) Bytes(p Pointer) ([]byte, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if a.backend == nil {
		return nil, errDestroyed
	}

	size, err := a.heap.AllocationSize(a.blockOf(p))
	if err != nil {
		return nil, errors.Wrapf(err, "no allocation at pointer %d", p)
	}

	start := int(p)
	return a.backend.Bytes()[start : start+size : start+size], nil
}

// BlockSize returns the number of bytes reserved for a live allocation
func (a *Allocator) BlockSize(p Pointer) (int, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if a.backend == nil {
		return 0, errDestroyed
	}

	size, err := a.heap.AllocationSize(a.blockOf(p))
	if err != nil {
		return 0, errors.Wrapf(err, "no allocation at pointer %d", p)
	}

	return size, nil
}

// Validate walks the whole heap and reports the first inconsistency it finds. It is meant for
// tests and diagnostics.
func (a *Allocator) Validate() error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if a.backend == nil {
		return errDestroyed
	}

	err := a.heap.Validate()
	if err != nil {
		return errors.Wrap(err, "heap metadata is inconsistent")
	}

	brk := a.backend.Break() - a.base
	if a.heap.End() != brk {
		return errors.Newf("the heap ends at offset %d, but the arena break is at offset %d", a.heap.End(), brk)
	}

	return nil
}

// CalculateStatistics populates stats with the current state of the heap. Any values
// already in stats are discarded.
func (a *Allocator) CalculateStatistics(stats *memutils.DetailedStatistics) {
	a.logger.Debug("Allocator::CalculateStatistics")

	a.mutex.RLock()
	defer a.mutex.RUnlock()

	stats.Clear()
	if a.heap == nil {
		return
	}

	a.heap.AddDetailedStatistics(stats)
}

// BuildStatsString returns a JSON document describing the allocator. If detailedMap is true,
// every block in the heap is listed.
func (a *Allocator) BuildStatsString(detailedMap bool) string {
	a.logger.Debug("Allocator::BuildStatsString")

	var stats memutils.DetailedStatistics
	a.CalculateStatistics(&stats)

	a.mutex.RLock()
	defer a.mutex.RUnlock()

	writer := jwriter.NewWriter()
	objState := writer.Object()

	generalObj := objState.Name("General").Object()
	generalObj.Name("Flags").String(a.createFlags.String())
	if a.backend != nil {
		generalObj.Name("ArenaCapacity").Int(a.backend.Capacity())
		generalObj.Name("ArenaBreak").Int(a.backend.Break() - a.base)
	}
	generalObj.End()

	totalObj := objState.Name("Total").Object()
	printStatistics(&totalObj, &stats)
	totalObj.End()

	if a.heap != nil {
		heapObj := objState.Name("Heap").Object()
		a.heap.BlockJsonData(&heapObj)
		if detailedMap {
			a.heap.PrintDetailedMap(&heapObj)
		}
		heapObj.End()
	}

	objState.End()
	return string(writer.Bytes())
}

func printStatistics(json *jwriter.ObjectState, stats *memutils.DetailedStatistics) {
	json.Name("BlockCount").Int(stats.BlockCount)
	json.Name("BlockBytes").Int(stats.BlockBytes)
	json.Name("HeaderBytes").Int(stats.HeaderBytes)
	json.Name("AllocationCount").Int(stats.AllocationCount)
	json.Name("AllocationBytes").Int(stats.AllocationBytes)
	json.Name("FreeBlockCount").Int(stats.FreeBlockCount)

	if stats.AllocationCount > 0 {
		json.Name("AllocationSizeMin").Int(stats.AllocationSizeMin)
		json.Name("AllocationSizeMax").Int(stats.AllocationSizeMax)
	}
	if stats.FreeBlockCount > 0 {
		json.Name("FreeBlockSizeMin").Int(stats.FreeBlockSizeMin)
		json.Name("FreeBlockSizeMax").Int(stats.FreeBlockSizeMax)
	}
}

// Destroy releases the arena. Every allocation that is still live is logged at error level,
// and an error is returned if there were any. The arena is released either way.
func (a *Allocator) Destroy() error {
	a.logger.Debug("Allocator::Destroy")

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.backend == nil {
		return nil
	}

	var leakErr error
	if !a.heap.IsEmpty() {
		err := a.heap.VisitAllBlocks(func(region metadata.Region) error {
			if !region.Used {
				return nil
			}

			a.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed allocation",
				slog.Int("pointer", region.Payload()),
				slog.Int("size", region.Size),
			)
			return nil
		})
		if err != nil {
			a.logger.LogAttrs(context.Background(),
				slog.LevelError,
				"[UNRELEASED MEMORY] error while iterating unreleased memory",
				slog.Any("error", err))
		}

		leakErr = errors.Newf("%d allocations were not freed before the destruction of the allocator", a.heap.AllocationCount())
	}

	releaseErr := a.backend.Release()
	a.backend = nil
	a.heap = nil

	if releaseErr != nil {
		return errors.CombineErrors(errors.Wrap(releaseErr, "failed to release the arena"), leakErr)
	}

	return leakErr
}
