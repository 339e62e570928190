package metadata

import (
	"github.com/pkg/errors"
	"github.com/vkngwrapper/brkheap/memutils"
)

// canSplit returns true if carving size bytes out of a free block of blockSize bytes leaves
// enough room for a header and at least one word of payload
func canSplit(blockSize, size int) bool {
	return blockSize-size >= MinSplitResidual
}

// Alloc commits an AllocationRequest created by CreateAllocationRequest. The chosen block is
// split when the request says so and is then marked used. It returns an error if the block
// is no longer free or no longer has the size it had when the request was created.
func (m *HeapMetadata) Alloc(req AllocationRequest) error {
	if req.Mode != m.strategy.Mode() {
		return errors.Errorf("allocation request was created by the %s strategy, but this metadata uses %s", req.Mode, m.strategy.Mode())
	}
	if req.Block < 0 || req.Block+HeaderSize > m.end {
		return errors.Errorf("allocation request block %d is outside the heap", req.Block)
	}

	block := req.Block
	if m.isUsed(block) {
		return errors.Errorf("allocation request block %d is no longer free", block)
	}

	size := m.blockSize(block)
	if size != req.BlockSize {
		return errors.Errorf("allocation request block %d has changed size from %d to %d", block, req.BlockSize, size)
	}
	if size < req.Size {
		return errors.New("allocation request had a block too small for the request")
	}

	m.strategy.Remove(block)
	m.freeCount--
	m.sumFreeSize -= size

	if req.Split && canSplit(size, req.Size) {
		m.split(block, req.Size)
	}

	m.setUsed(block, true)
	m.live.Put(block, struct{}{})
	m.allocCount++
	m.strategy.Taken(block)

	memutils.DebugValidate(m)
	return nil
}

// split shrinks block to size bytes and turns the leftover into a new free block linked in
// directly after it. The block must already be out of the strategy's index and out of the
// free accounting. The new residual is merged forward with a free successor before it is
// handed to the strategy, so a split never leaves two free blocks side by side.
func (m *HeapMetadata) split(block, size int) int {
	oldSize := m.blockSize(block)
	residual := block + HeaderSize + size
	residualSize := oldSize - size - HeaderSize

	m.writeHeader(residual, residualSize, false, m.nextBlock(block))
	m.setBlockSize(block, size)
	m.setNext(block, residual)
	if m.tail == block {
		m.tail = residual
	}

	m.blockCount++
	m.freeCount++
	m.sumFreeSize += residualSize

	m.coalesceForward(residual)
	m.strategy.Insert(residual)

	return residual
}
