package malloc

import (
	"bytes"
	"io"
	"math/rand"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/brkheap/memutils"
	"github.com/vkngwrapper/brkheap/memutils/metadata"
	"golang.org/x/exp/slog"
)

var allSearchModes = []metadata.SearchMode{
	metadata.SearchModeFirstFit,
	metadata.SearchModeNextFit,
	metadata.SearchModeBestFit,
	metadata.SearchModeFreeList,
	metadata.SearchModeSegregatedList,
}

func readyAllocator(t *testing.T, options CreateOptions) *Allocator {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	allocator, err := New(logger, options)
	require.NoError(t, err)

	t.Cleanup(func() {
		allocator.Reset()
		require.NoError(t, allocator.Destroy())
	})

	return allocator
}

func allocate(t *testing.T, allocator *Allocator, size int) Pointer {
	p, err := allocator.Allocate(size)
	require.NoError(t, err)
	require.NoError(t, allocator.Validate())
	return p
}

func free(t *testing.T, allocator *Allocator, p Pointer) {
	require.NoError(t, allocator.Free(p))
	require.NoError(t, allocator.Validate())
}

func TestCreateFlagsString(t *testing.T) {
	require.Equal(t, "None", CreateFlags(0).String())
	require.Equal(t, "AllocatorCreateSynchronized", AllocatorCreateSynchronized.String())
	require.Equal(t, "AllocatorCreateSynchronized|AllocatorCreateBackwardCoalescing",
		(AllocatorCreateSynchronized | AllocatorCreateBackwardCoalescing).String())
	require.Equal(t, "AllocatorCreateBackwardCoalescing|CreateFlags(0x8)",
		(AllocatorCreateBackwardCoalescing | CreateFlags(8)).String())
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(nil, CreateOptions{ArenaCapacity: 100})
	require.ErrorIs(t, err, memutils.ErrInvalidSize)

	_, err = New(nil, CreateOptions{ArenaCapacity: -8})
	require.ErrorIs(t, err, memutils.ErrInvalidSize)

	_, err = New(nil, CreateOptions{ArenaCapacity: 16})
	require.ErrorIs(t, err, memutils.ErrInvalidSize)

	_, err = New(nil, CreateOptions{SearchMode: metadata.SearchMode(42)})
	require.Error(t, err)

	_, err = New(nil, CreateOptions{
		SearchMode:        metadata.SearchModeSegregatedList,
		SegregatedClasses: []int{1, 3},
	})
	require.ErrorIs(t, err, memutils.PowerOfTwoError)
}

func TestNewUsesDefaultCapacity(t *testing.T) {
	allocator, err := New(nil, CreateOptions{})
	require.NoError(t, err)

	require.Equal(t, 4*1024*1024, allocator.backend.Capacity())
	require.Equal(t, metadata.SearchModeFirstFit, allocator.heap.Mode())
	require.NoError(t, allocator.Destroy())
}

func TestAllocateMergeAndReuse(t *testing.T) {
	allocator := readyAllocator(t, CreateOptions{ArenaCapacity: 4096})

	p1 := allocate(t, allocator, 12)
	p2 := allocate(t, allocator, 12)
	require.Equal(t, Pointer(metadata.HeaderSize), p1)
	require.Equal(t, Pointer(2*metadata.HeaderSize+16), p2)
	require.Equal(t, 80, allocator.backend.Break())

	size, err := allocator.BlockSize(p1)
	require.NoError(t, err)
	require.Equal(t, 16, size)

	free(t, allocator, p2)
	free(t, allocator, p1)

	p3 := allocate(t, allocator, 24)
	require.Equal(t, p1, p3)
	require.Equal(t, 80, allocator.backend.Break())

	size, err = allocator.BlockSize(p3)
	require.NoError(t, err)
	require.Equal(t, 24, size)

	free(t, allocator, p3)
	p4 := allocate(t, allocator, 4)
	require.Equal(t, p1, p4)

	size, err = allocator.BlockSize(p4)
	require.NoError(t, err)
	require.Equal(t, 8, size)

	var stats memutils.DetailedStatistics
	allocator.CalculateStatistics(&stats)
	require.Equal(t, 2, stats.BlockCount)
	require.Equal(t, 1, stats.FreeBlockCount)
	require.Equal(t, 24, stats.FreeBlockSizeMax)
	require.Equal(t, 80, stats.BlockBytes)

	free(t, allocator, p4)
}

func TestAllocateInvalidSize(t *testing.T) {
	allocator := readyAllocator(t, CreateOptions{ArenaCapacity: 4096})

	_, err := allocator.Allocate(0)
	require.ErrorIs(t, err, memutils.ErrInvalidSize)

	_, err = allocator.Allocate(-12)
	require.ErrorIs(t, err, memutils.ErrInvalidSize)

	require.Equal(t, 0, allocator.backend.Break())
}

func TestFreeInvalidPointer(t *testing.T) {
	allocator := readyAllocator(t, CreateOptions{ArenaCapacity: 4096})

	p := allocate(t, allocator, 32)
	allocate(t, allocator, 32)

	require.ErrorIs(t, allocator.Free(NilPointer), memutils.ErrInvalidFree)
	require.ErrorIs(t, allocator.Free(p+8), memutils.ErrInvalidFree)
	require.ErrorIs(t, allocator.Free(Pointer(100000)), memutils.ErrInvalidFree)

	free(t, allocator, p)
	require.ErrorIs(t, allocator.Free(p), memutils.ErrInvalidFree)

	_, err := allocator.Bytes(p)
	require.ErrorIs(t, err, memutils.ErrInvalidFree)
	_, err = allocator.BlockSize(p)
	require.ErrorIs(t, err, memutils.ErrInvalidFree)

	require.NoError(t, allocator.Validate())
}

func TestAllocateOutOfMemory(t *testing.T) {
	allocator := readyAllocator(t, CreateOptions{ArenaCapacity: 128})

	p := allocate(t, allocator, 64)

	_, err := allocator.Allocate(64)
	require.True(t, errors.Is(err, memutils.ErrOutOfMemory))
	require.ErrorIs(t, err, memutils.ErrOutOfArena)
	require.Equal(t, 88, allocator.backend.Break())
	require.NoError(t, allocator.Validate())

	// The heap is still usable after a failed extension
	allocate(t, allocator, 8)
	require.Equal(t, 120, allocator.backend.Break())

	free(t, allocator, p)
	require.Equal(t, p, allocate(t, allocator, 64))

	_, err = allocator.Allocate(1 << 40)
	require.True(t, errors.Is(err, memutils.ErrOutOfMemory))
}

func TestReset(t *testing.T) {
	allocator := readyAllocator(t, CreateOptions{
		ArenaCapacity: 4096,
		SearchMode:    metadata.SearchModeFreeList,
	})

	first := allocate(t, allocator, 40)
	second := allocate(t, allocator, 40)
	free(t, allocator, first)

	allocator.Reset()
	require.NoError(t, allocator.Validate())
	require.Equal(t, 0, allocator.backend.Break())

	_, err := allocator.BlockSize(second)
	require.ErrorIs(t, err, memutils.ErrInvalidFree)

	var stats memutils.DetailedStatistics
	allocator.CalculateStatistics(&stats)
	require.Equal(t, 0, stats.BlockCount)

	require.Equal(t, first, allocate(t, allocator, 40))
}

func TestBytes(t *testing.T) {
	allocator := readyAllocator(t, CreateOptions{ArenaCapacity: 4096})

	a := allocate(t, allocator, 10)
	b := allocate(t, allocator, 16)

	aBytes, err := allocator.Bytes(a)
	require.NoError(t, err)
	require.Len(t, aBytes, 16)
	require.Equal(t, 16, cap(aBytes))

	bBytes, err := allocator.Bytes(b)
	require.NoError(t, err)

	copy(aBytes, bytes.Repeat([]byte{0xAB}, len(aBytes)))
	copy(bBytes, bytes.Repeat([]byte{0xCD}, len(bBytes)))

	// Writing one payload leaves the neighbor and the headers alone
	require.Equal(t, bytes.Repeat([]byte{0xAB}, 16), aBytes)
	require.NoError(t, allocator.Validate())

	reread, err := allocator.Bytes(a)
	require.NoError(t, err)
	require.Equal(t, aBytes, reread)
}

func TestSearchModesPreserveHeap(t *testing.T) {
	for _, mode := range allSearchModes {
		for _, flags := range []CreateFlags{0, AllocatorCreateBackwardCoalescing} {
			t.Run(mode.String()+"/"+flags.String(), func(t *testing.T) {
				allocator := readyAllocator(t, CreateOptions{
					SearchMode:    mode,
					ArenaCapacity: 1 << 20,
					Flags:         flags,
				})

				rng := rand.New(rand.NewSource(int64(mode)*2 + int64(flags)))
				var live []Pointer

				for i := 0; i < 1000; i++ {
					if len(live) > 0 && rng.Intn(5) < 2 {
						index := rng.Intn(len(live))
						free(t, allocator, live[index])
						live[index] = live[len(live)-1]
						live = live[:len(live)-1]
						continue
					}

					size := 1 + rng.Intn(200)
					p := allocate(t, allocator, size)

					blockSize, err := allocator.BlockSize(p)
					require.NoError(t, err)
					require.GreaterOrEqual(t, blockSize, size)
					require.Zero(t, blockSize%metadata.WordSize)

					live = append(live, p)
				}

				var stats memutils.DetailedStatistics
				allocator.CalculateStatistics(&stats)
				require.Equal(t, len(live), stats.AllocationCount)
				require.Equal(t, allocator.backend.Break(), stats.BlockBytes)
				require.Equal(t, stats.BlockCount*metadata.HeaderSize, stats.HeaderBytes)

				for _, p := range live {
					free(t, allocator, p)
				}
			})
		}
	}
}

func TestRoundTripDoesNotGrowArena(t *testing.T) {
	for _, mode := range allSearchModes {
		t.Run(mode.String(), func(t *testing.T) {
			allocator := readyAllocator(t, CreateOptions{SearchMode: mode, ArenaCapacity: 4096})

			p := allocate(t, allocator, 100)
			free(t, allocator, p)
			brk := allocator.backend.Break()

			for i := 0; i < 20; i++ {
				p = allocate(t, allocator, 100)
				free(t, allocator, p)
			}

			require.Equal(t, brk, allocator.backend.Break())
		})
	}
}

func TestBackwardCoalescingFlag(t *testing.T) {
	allocator := readyAllocator(t, CreateOptions{
		ArenaCapacity: 4096,
		Flags:         AllocatorCreateBackwardCoalescing,
	})

	a := allocate(t, allocator, 16)
	b := allocate(t, allocator, 16)
	allocate(t, allocator, 16)

	free(t, allocator, a)
	free(t, allocator, b)

	var stats memutils.DetailedStatistics
	allocator.CalculateStatistics(&stats)
	require.Equal(t, 1, stats.FreeBlockCount)
	require.Equal(t, 16+metadata.HeaderSize+16, stats.FreeBlockSizeMax)

	require.Equal(t, a, allocate(t, allocator, 56))
}

func TestSynchronizedAllocator(t *testing.T) {
	allocator := readyAllocator(t, CreateOptions{
		ArenaCapacity: 1 << 20,
		Flags:         AllocatorCreateSynchronized,
		SearchMode:    metadata.SearchModeSegregatedList,
	})

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			rng := rand.New(rand.NewSource(int64(worker)))
			for i := 0; i < 200; i++ {
				p, err := allocator.Allocate(1 + rng.Intn(128))
				if !assertNoError(t, err) {
					return
				}

				data, err := allocator.Bytes(p)
				if !assertNoError(t, err) {
					return
				}
				data[0] = byte(worker)

				if !assertNoError(t, allocator.Free(p)) {
					return
				}
			}
		}(worker)
	}
	wg.Wait()

	require.NoError(t, allocator.Validate())

	var stats memutils.DetailedStatistics
	allocator.CalculateStatistics(&stats)
	require.Equal(t, 0, stats.AllocationCount)
}

// assertNoError reports err from a goroutine that must not call t.FailNow
func assertNoError(t *testing.T, err error) bool {
	if err != nil {
		t.Errorf("unexpected error: %+v", err)
		return false
	}
	return true
}

func TestBuildStatsString(t *testing.T) {
	allocator := readyAllocator(t, CreateOptions{ArenaCapacity: 4096})

	a := allocate(t, allocator, 16)
	allocate(t, allocator, 8)
	free(t, allocator, a)

	require.JSONEq(t, `{
		"General": {"Flags": "None", "ArenaCapacity": 4096, "ArenaBreak": 72},
		"Total": {
			"BlockCount": 2,
			"BlockBytes": 72,
			"HeaderBytes": 48,
			"AllocationCount": 1,
			"AllocationBytes": 8,
			"FreeBlockCount": 1,
			"AllocationSizeMin": 8,
			"AllocationSizeMax": 8,
			"FreeBlockSizeMin": 16,
			"FreeBlockSizeMax": 16
		},
		"Heap": {
			"SearchMode": "FirstFit",
			"TotalBytes": 72,
			"FreeBytes": 16,
			"BlockCount": 2,
			"Allocations": 1,
			"FreeBlocks": 1
		}
	}`, allocator.BuildStatsString(false))

	require.JSONEq(t, `{
		"General": {"Flags": "None", "ArenaCapacity": 4096, "ArenaBreak": 72},
		"Total": {
			"BlockCount": 2,
			"BlockBytes": 72,
			"HeaderBytes": 48,
			"AllocationCount": 1,
			"AllocationBytes": 8,
			"FreeBlockCount": 1,
			"AllocationSizeMin": 8,
			"AllocationSizeMax": 8,
			"FreeBlockSizeMin": 16,
			"FreeBlockSizeMax": 16
		},
		"Heap": {
			"SearchMode": "FirstFit",
			"TotalBytes": 72,
			"FreeBytes": 16,
			"BlockCount": 2,
			"Allocations": 1,
			"FreeBlocks": 1,
			"Blocks": [
				{"Offset": 0, "Payload": 24, "Size": 16, "Type": "FREE"},
				{"Offset": 40, "Payload": 64, "Size": 8, "Type": "USED"}
			]
		}
	}`, allocator.BuildStatsString(true))
}

func TestDestroyReportsUnreleasedMemory(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	allocator, err := New(logger, CreateOptions{ArenaCapacity: 4096})
	require.NoError(t, err)

	a := allocate(t, allocator, 16)
	allocate(t, allocator, 32)
	allocate(t, allocator, 48)
	free(t, allocator, a)

	err = allocator.Destroy()
	require.Error(t, err)
	require.Contains(t, err.Error(), "2 allocations were not freed")
	require.Equal(t, 2, bytes.Count(logs.Bytes(), []byte("[UNRELEASED MEMORY] unfreed allocation")))
	require.Contains(t, logs.String(), `"size":48`)

	// The arena is gone either way
	_, err = allocator.Allocate(8)
	require.ErrorIs(t, err, errDestroyed)
	require.ErrorIs(t, allocator.Free(a), errDestroyed)
	require.ErrorIs(t, allocator.Validate(), errDestroyed)
	require.NoError(t, allocator.Destroy())
}
