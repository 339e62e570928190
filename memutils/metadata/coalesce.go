package metadata

import (
	"github.com/pkg/errors"
	"github.com/vkngwrapper/brkheap/memutils"
)

// FreeResult describes what happened to the heap list during a Free
type FreeResult struct {
	// Block is the offset of the free block that now contains the freed payload. It differs
	// from the freed block only when it was merged into its predecessor.
	Block int
	// Size is the payload size of Block after merging
	Size int
	// Merged is the number of neighboring free blocks that were absorbed
	Merged int
}

// Free marks a live allocation free and merges it with the free blocks that physically
// follow it. With Options.BackwardCoalescing, it is then merged into a free predecessor as
// well.
//
// Free returns an error wrapping memutils.ErrInvalidFree if block is not a live allocation,
// which includes a block that has already been freed.
func (m *HeapMetadata) Free(block int) (FreeResult, error) {
	if !m.live.Has(block) {
		return FreeResult{}, errors.Wrapf(memutils.ErrInvalidFree, "no live allocation at offset %d", block)
	}

	m.live.Delete(block)
	m.setUsed(block, false)
	m.allocCount--
	m.freeCount++
	m.sumFreeSize += m.blockSize(block)

	merged := m.coalesceForward(block)

	if m.backwardCoalescing {
		prev := m.findPredecessor(block)
		if prev != NoBlock && !m.isUsed(prev) {
			m.strategy.Remove(prev)
			m.absorbNext(prev)
			block = prev
			merged++
		}
	}

	m.strategy.Insert(block)

	memutils.DebugFill(m.data[PayloadOf(block):m.endOf(block)])
	memutils.DebugValidate(m)

	return FreeResult{
		Block:  block,
		Size:   m.blockSize(block),
		Merged: merged,
	}, nil
}

// coalesceForward absorbs every free block that directly follows block, which must itself be
// free. It returns the number of blocks absorbed.
func (m *HeapMetadata) coalesceForward(block int) int {
	merged := 0

	for next := m.nextBlock(block); next != NoBlock && !m.isUsed(next); next = m.nextBlock(block) {
		m.absorbNext(block)
		merged++
	}

	return merged
}

// absorbNext merges the free successor of block into block, header included, and unlinks it
// from the heap list and the strategy's index
func (m *HeapMetadata) absorbNext(block int) {
	next := m.nextBlock(block)
	if next == NoBlock {
		panic("cannot merge the tail block with its successor")
	}
	if m.isUsed(block) || m.isUsed(next) {
		panic("cannot merge a block that is in use")
	}

	m.strategy.Remove(next)
	m.strategy.Merged(next, block)

	m.setBlockSize(block, m.blockSize(block)+HeaderSize+m.blockSize(next))
	m.setNext(block, m.nextBlock(next))
	if m.tail == next {
		m.tail = block
	}

	m.blockCount--
	m.freeCount--
	// The absorbed header becomes payload
	m.sumFreeSize += HeaderSize
}

// findPredecessor walks the heap list from the head to find the block linked to block. The
// list only links forward, so this is linear in the number of blocks.
func (m *HeapMetadata) findPredecessor(block int) int {
	prev := NoBlock
	for current := m.head; current != NoBlock && current != block; current = m.nextBlock(current) {
		prev = current
	}

	return prev
}
