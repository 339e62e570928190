package metadata

import (
	"github.com/dolthub/swiss"
	"github.com/pkg/errors"
)

// nextFit is a first-fit search that resumes where the previous successful search left off.
// cursor is the block after the last block handed out, or NoBlock to start from the head.
type nextFit struct {
	heap   *HeapMetadata
	cursor int
}

var _ Strategy = &nextFit{}

func (s *nextFit) Mode() SearchMode { return SearchModeNextFit }

func (s *nextFit) FindFreeBlock(size int) (int, bool) {
	if s.heap.head == NoBlock {
		return NoBlock, false
	}

	start := s.cursor
	if start == NoBlock {
		start = s.heap.head
	}

	block := start
	for {
		if !s.heap.isUsed(block) && s.heap.blockSize(block) >= size {
			return block, true
		}

		block = s.heap.nextBlock(block)
		if block == NoBlock {
			block = s.heap.head
		}

		// Wrapped all the way around without a hit
		if block == start {
			return NoBlock, false
		}
	}
}

func (s *nextFit) Insert(block int) {}
func (s *nextFit) Remove(block int) {}

func (s *nextFit) Taken(block int) {
	s.cursor = s.heap.nextBlock(block)
}

func (s *nextFit) Merged(absorbed, into int) {
	if s.cursor == absorbed {
		s.cursor = into
	}
}

func (s *nextFit) Clear() {
	s.cursor = NoBlock
}

func (s *nextFit) Validate(freeBlocks *swiss.Map[int, struct{}]) error {
	if s.cursor == NoBlock {
		return nil
	}

	for block := s.heap.head; block != NoBlock; block = s.heap.nextBlock(block) {
		if block == s.cursor {
			return nil
		}
	}

	return errors.Errorf("next-fit cursor %d does not point at a block in the heap list", s.cursor)
}

