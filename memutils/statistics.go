package memutils

import "math"

// Statistics is a summary of a heap's block list.
//
// BlockBytes counts headers and payloads alike, so for a consistent heap it is always equal
// to the distance between the arena base and the arena break.
type Statistics struct {
	BlockCount      int
	AllocationCount int
	BlockBytes      int
	AllocationBytes int
	HeaderBytes     int
}

func (s *Statistics) Clear() {
	*s = Statistics{}
}

// AddStatistics accumulates other into s
func (s *Statistics) AddStatistics(other *Statistics) {
	s.BlockCount += other.BlockCount
	s.AllocationCount += other.AllocationCount
	s.BlockBytes += other.BlockBytes
	s.AllocationBytes += other.AllocationBytes
	s.HeaderBytes += other.HeaderBytes
}

// FreeBytes is the payload capacity of all free blocks
func (s *Statistics) FreeBytes() int {
	return s.BlockBytes - s.HeaderBytes - s.AllocationBytes
}

// DetailedStatistics extends Statistics with the payload size range of used and free blocks.
// The minimums are math.MaxInt until a block of that kind has been added.
type DetailedStatistics struct {
	Statistics
	FreeBlockCount    int
	AllocationSizeMin int
	AllocationSizeMax int
	FreeBlockSizeMin  int
	FreeBlockSizeMax  int
}

func (s *DetailedStatistics) Clear() {
	*s = DetailedStatistics{
		AllocationSizeMin: math.MaxInt,
		FreeBlockSizeMin:  math.MaxInt,
	}
}

// AddFreeBlock records a free block with size bytes of payload. It does not touch the block
// counts, which the caller tracks for used and free blocks alike.
func (s *DetailedStatistics) AddFreeBlock(size int) {
	s.FreeBlockCount++
	s.FreeBlockSizeMin = min(s.FreeBlockSizeMin, size)
	s.FreeBlockSizeMax = max(s.FreeBlockSizeMax, size)
}

// AddAllocation records a used block with size bytes of payload
func (s *DetailedStatistics) AddAllocation(size int) {
	s.AllocationCount++
	s.AllocationBytes += size
	s.AllocationSizeMin = min(s.AllocationSizeMin, size)
	s.AllocationSizeMax = max(s.AllocationSizeMax, size)
}

// AddDetailedStatistics accumulates other into s
func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.FreeBlockCount += other.FreeBlockCount
	s.AllocationSizeMin = min(s.AllocationSizeMin, other.AllocationSizeMin)
	s.AllocationSizeMax = max(s.AllocationSizeMax, other.AllocationSizeMax)
	s.FreeBlockSizeMin = min(s.FreeBlockSizeMin, other.FreeBlockSizeMin)
	s.FreeBlockSizeMax = max(s.FreeBlockSizeMax, other.FreeBlockSizeMax)
}
