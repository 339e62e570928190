package metadata

type bestFit struct {
	listScan
	heap *HeapMetadata
}

var _ Strategy = &bestFit{}

func (s *bestFit) Mode() SearchMode { return SearchModeBestFit }

func (s *bestFit) FindFreeBlock(size int) (int, bool) {
	fit := NoBlock
	fitSize := 0

	for block := s.heap.head; block != NoBlock; block = s.heap.nextBlock(block) {
		if s.heap.isUsed(block) {
			continue
		}

		blockSize := s.heap.blockSize(block)
		if blockSize < size {
			continue
		}

		// Strictly smaller so the earliest block wins a tie
		if fit == NoBlock || blockSize < fitSize {
			fit = block
			fitSize = blockSize

			if blockSize == size {
				break
			}
		}
	}

	return fit, fit != NoBlock
}
