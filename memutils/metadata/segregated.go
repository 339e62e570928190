package metadata

import (
	"github.com/dolthub/swiss"
	"github.com/pkg/errors"
)

// segregatedFit keeps one free list per size class. A search only ever looks at the bucket
// of the requested size: a larger bucket is never borrowed from, even if the matching bucket
// is empty.
type segregatedFit struct {
	heap    *HeapMetadata
	classes *sizeClassTable
	index   *freeIndex
}

var _ Strategy = &segregatedFit{}

func (s *segregatedFit) Mode() SearchMode { return SearchModeSegregatedList }

func (s *segregatedFit) FindFreeBlock(size int) (int, bool) {
	bucket := s.classes.sizeClass(size)

	for node := s.index.first(bucket); node != nil; node = node.next {
		if s.heap.blockSize(node.block) >= size {
			return node.block, true
		}
	}

	return NoBlock, false
}

func (s *segregatedFit) Insert(block int) {
	s.index.push(s.classes.sizeClass(s.heap.blockSize(block)), block)
}

func (s *segregatedFit) Remove(block int) {
	s.index.remove(block)
}

func (s *segregatedFit) Taken(block int)           {}
func (s *segregatedFit) Merged(absorbed, into int) {}

func (s *segregatedFit) Clear() {
	s.index.clear()
}

func (s *segregatedFit) Validate(freeBlocks *swiss.Map[int, struct{}]) error {
	if s.index.count() != freeBlocks.Count() {
		return errors.Errorf("the segregated lists hold %d blocks, but the heap list has %d free blocks", s.index.count(), freeBlocks.Count())
	}

	for bucket := range s.index.buckets {
		count := 0
		for node := s.index.first(bucket); node != nil; node = node.next {
			count++

			if !freeBlocks.Has(node.block) {
				return errors.Errorf("block at offset %d is in segregated list %d but is not a free block in the heap list", node.block, bucket)
			}

			expected := s.classes.sizeClass(s.heap.blockSize(node.block))
			if expected != bucket {
				return errors.Errorf("block at offset %d with size %d is in segregated list %d, but belongs in list %d", node.block, s.heap.blockSize(node.block), bucket, expected)
			}
		}

		if count != s.index.buckets[bucket].count {
			return errors.Errorf("segregated list %d should have %d blocks, but %d were found", bucket, s.index.buckets[bucket].count, count)
		}
	}

	return nil
}
