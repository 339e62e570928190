package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/brkheap/memutils/metadata"
)

var allSearchModes = []metadata.SearchMode{
	metadata.SearchModeFirstFit,
	metadata.SearchModeNextFit,
	metadata.SearchModeBestFit,
	metadata.SearchModeFreeList,
	metadata.SearchModeSegregatedList,
}

func newHeap(t *testing.T, mode metadata.SearchMode, options metadata.Options, arenaSize int) *metadata.HeapMetadata {
	heap, err := metadata.NewHeapMetadata(mode, options)
	require.NoError(t, err)
	heap.Init(make([]byte, arenaSize))
	require.NoError(t, heap.Validate())
	return heap
}

// allocate satisfies the request from existing blocks if possible and otherwise grows the heap
// the way an arena extension would. It returns the block offset.
func allocate(t *testing.T, heap *metadata.HeapMetadata, size int) int {
	size = metadata.Align(size)

	success, req, err := heap.CreateAllocationRequest(size)
	require.NoError(t, err)

	if success {
		require.NoError(t, heap.Alloc(req))
		require.NoError(t, heap.Validate())
		return req.Block
	}

	block := heap.End()
	require.NoError(t, heap.Append(block, size))
	require.NoError(t, heap.Validate())
	return block
}

// tryReuse allocates only from existing blocks and reports whether that was possible
func tryReuse(t *testing.T, heap *metadata.HeapMetadata, size int) (int, bool) {
	success, req, err := heap.CreateAllocationRequest(metadata.Align(size))
	require.NoError(t, err)
	if !success {
		return metadata.NoBlock, false
	}

	require.NoError(t, heap.Alloc(req))
	require.NoError(t, heap.Validate())
	return req.Block, true
}

func free(t *testing.T, heap *metadata.HeapMetadata, block int) metadata.FreeResult {
	result, err := heap.Free(block)
	require.NoError(t, err)
	require.NoError(t, heap.Validate())
	return result
}

func regions(t *testing.T, heap *metadata.HeapMetadata) []metadata.Region {
	var out []metadata.Region
	err := heap.VisitAllBlocks(func(region metadata.Region) error {
		out = append(out, region)
		return nil
	})
	require.NoError(t, err)
	return out
}

func requireTiled(t *testing.T, heap *metadata.HeapMetadata) {
	expected := 0
	for _, region := range regions(t, heap) {
		require.Equal(t, expected, region.Offset)
		expected = region.End()
	}
	require.Equal(t, heap.End(), expected)
}
