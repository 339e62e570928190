package metadata

import (
	"github.com/dolthub/swiss"
	"github.com/pkg/errors"
)

// freeListFit searches an explicit list of free blocks instead of the heap list. Blocks are
// appended when they become free, so the search is first-fit in the order blocks were freed.
type freeListFit struct {
	heap  *HeapMetadata
	index *freeIndex
}

var _ Strategy = &freeListFit{}

func (s *freeListFit) Mode() SearchMode { return SearchModeFreeList }

func (s *freeListFit) FindFreeBlock(size int) (int, bool) {
	for node := s.index.first(0); node != nil; node = node.next {
		if s.heap.blockSize(node.block) >= size {
			return node.block, true
		}
	}

	return NoBlock, false
}

func (s *freeListFit) Insert(block int) {
	s.index.push(0, block)
}

func (s *freeListFit) Remove(block int) {
	s.index.remove(block)
}

func (s *freeListFit) Taken(block int)           {}
func (s *freeListFit) Merged(absorbed, into int) {}

func (s *freeListFit) Clear() {
	s.index.clear()
}

func (s *freeListFit) Validate(freeBlocks *swiss.Map[int, struct{}]) error {
	if s.index.count() != freeBlocks.Count() {
		return errors.Errorf("the free list holds %d blocks, but the heap list has %d free blocks", s.index.count(), freeBlocks.Count())
	}

	for node := s.index.first(0); node != nil; node = node.next {
		if !freeBlocks.Has(node.block) {
			return errors.Errorf("block at offset %d is in the free list but is not a free block in the heap list", node.block)
		}
	}

	return nil
}
