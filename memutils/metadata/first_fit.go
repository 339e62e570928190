package metadata

type firstFit struct {
	listScan
	heap *HeapMetadata
}

var _ Strategy = &firstFit{}

func (s *firstFit) Mode() SearchMode { return SearchModeFirstFit }

func (s *firstFit) FindFreeBlock(size int) (int, bool) {
	for block := s.heap.head; block != NoBlock; block = s.heap.nextBlock(block) {
		if s.heap.isUsed(block) || s.heap.blockSize(block) < size {
			continue
		}

		return block, true
	}

	return NoBlock, false
}
