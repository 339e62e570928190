package metadata

import (
	"fmt"

	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/brkheap/memutils"
)

// Options contains optional settings for HeapMetadata. It is valid to leave all fields blank.
type Options struct {
	// SegregatedClasses are the size class boundaries, in words, used by SearchModeSegregatedList.
	// Each must be a power of two and they must be strictly ascending. When empty,
	// DefaultSegregatedClasses is used. Ignored by other search modes.
	SegregatedClasses []int
	// BackwardCoalescing merges a freed block into its predecessor when the predecessor is free.
	// The heap list only links forward, so this costs a scan from the head on every free.
	BackwardCoalescing bool
}

// HeapMetadata manages the list of blocks carved from an arena. Block headers live inside
// the arena itself, and every block is identified by the offset of its header. The list is
// ordered by address and exactly tiles the arena from its base to its break.
//
// HeapMetadata is not safe for concurrent use.
type HeapMetadata struct {
	data []byte

	head int
	tail int
	end  int

	blockCount  int
	allocCount  int
	freeCount   int
	sumFreeSize int

	backwardCoalescing bool
	strategy           Strategy
	live               *swiss.Map[int, struct{}]
}

var _ memutils.Validatable = &HeapMetadata{}

// NewHeapMetadata creates metadata that searches for free blocks with the provided mode.
// Init must be called before it is used.
func NewHeapMetadata(mode SearchMode, options Options) (*HeapMetadata, error) {
	classes, err := newSizeClassTable(options.SegregatedClasses)
	if err != nil {
		return nil, err
	}

	m := &HeapMetadata{
		head:               NoBlock,
		tail:               NoBlock,
		backwardCoalescing: options.BackwardCoalescing,
		live:               swiss.NewMap[int, struct{}](42),
	}

	m.strategy, err = newStrategy(mode, m, classes)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Init hands the metadata the arena memory that headers will be written into. The heap
// starts empty at offset 0 of data.
func (m *HeapMetadata) Init(data []byte) {
	m.data = data
	m.Clear()
}

// Mode returns the search mode the metadata was created with
func (m *HeapMetadata) Mode() SearchMode { return m.strategy.Mode() }

// Head returns the offset of the first block, or NoBlock if the heap is empty
func (m *HeapMetadata) Head() int { return m.head }

// Tail returns the offset of the last block, or NoBlock if the heap is empty
func (m *HeapMetadata) Tail() int { return m.tail }

// End returns the offset one past the last block, which always matches the arena break
func (m *HeapMetadata) End() int { return m.end }

func (m *HeapMetadata) BlockCount() int { return m.blockCount }

func (m *HeapMetadata) AllocationCount() int { return m.allocCount }

func (m *HeapMetadata) FreeRegionsCount() int { return m.freeCount }

// SumFreeSize returns the total payload bytes of all free blocks
func (m *HeapMetadata) SumFreeSize() int { return m.sumFreeSize }

// IsEmpty will return true if this heap has no live allocations
func (m *HeapMetadata) IsEmpty() bool { return m.allocCount == 0 }

// Block reads the header at the provided offset. The offset must be the start of a block in
// the heap list; only bounds are checked.
func (m *HeapMetadata) Block(block int) (Region, error) {
	if block < 0 || block+HeaderSize > m.end {
		return Region{}, errors.Errorf("offset %d is outside the heap [0, %d)", block, m.end)
	}

	return Region{
		Offset: block,
		Size:   m.blockSize(block),
		Used:   m.isUsed(block),
		Next:   m.nextBlock(block),
	}, nil
}

// IsLive returns true if the offset is the header of a block that is currently handed out
func (m *HeapMetadata) IsLive(block int) bool {
	return m.live.Has(block)
}

// AllocationSize returns the payload size of a live allocation
func (m *HeapMetadata) AllocationSize(block int) (int, error) {
	if !m.live.Has(block) {
		return 0, errors.Wrapf(memutils.ErrInvalidFree, "no live allocation at offset %d", block)
	}

	return m.blockSize(block), nil
}

// CreateAllocationRequest asks the search strategy for a free block with room for size bytes
// of payload. size must already be aligned. It returns false if no free block fits, in which
// case the consumer should extend the arena and call Append.
func (m *HeapMetadata) CreateAllocationRequest(size int) (bool, AllocationRequest, error) {
	var allocRequest AllocationRequest

	if size < 1 {
		return false, allocRequest, errors.Wrapf(memutils.ErrInvalidSize, "invalid allocSize: %d", size)
	}
	if size%WordSize != 0 {
		return false, allocRequest, errors.Wrapf(memutils.ErrInvalidSize, "allocSize %d is not aligned to %d", size, WordSize)
	}

	memutils.DebugValidate(m)

	if m.freeCount == 0 || size > m.sumFreeSize {
		return false, allocRequest, nil
	}

	block, found := m.strategy.FindFreeBlock(size)
	if !found {
		return false, allocRequest, nil
	}

	if m.isUsed(block) {
		panic(fmt.Sprintf("block at offset %d is already taken", block))
	}

	blockSize := m.blockSize(block)
	allocRequest.Block = block
	allocRequest.Size = size
	allocRequest.BlockSize = blockSize
	allocRequest.Split = canSplit(blockSize, size)
	allocRequest.Mode = m.strategy.Mode()

	return true, allocRequest, nil
}

// Append records a new used block at the end of the heap. block must be the old arena break
// returned when the arena was extended by HeaderSize+size bytes.
func (m *HeapMetadata) Append(block, size int) error {
	if block != m.end {
		return errors.Errorf("new block at offset %d does not start at the end of the heap (%d)", block, m.end)
	}
	if size < 1 || size%WordSize != 0 {
		return errors.Wrapf(memutils.ErrInvalidSize, "invalid block size: %d", size)
	}
	if block+HeaderSize+size > len(m.data) {
		return errors.Errorf("new block at offset %d with size %d extends past the arena (%d bytes)", block, size, len(m.data))
	}

	m.writeHeader(block, size, true, NoBlock)
	if m.tail != NoBlock {
		m.setNext(m.tail, block)
	} else {
		m.head = block
	}

	m.tail = block
	m.end = block + HeaderSize + size
	m.blockCount++
	m.allocCount++
	m.live.Put(block, struct{}{})

	return nil
}

// Clear instantly forgets every block. The arena memory itself is left as it is.
func (m *HeapMetadata) Clear() {
	m.head = NoBlock
	m.tail = NoBlock
	m.end = 0
	m.blockCount = 0
	m.allocCount = 0
	m.freeCount = 0
	m.sumFreeSize = 0
	m.live = swiss.NewMap[int, struct{}](42)
	m.strategy.Clear()
}

// Validate performs internal consistency checks on the heap list and the strategy's side
// state. It walks every block, so it should only be used for diagnostics and tests.
func (m *HeapMetadata) Validate() error {
	if m.data == nil {
		return errors.New("heap metadata has not been initialized")
	}

	if m.head == NoBlock {
		if m.tail != NoBlock || m.end != 0 || m.blockCount != 0 {
			return errors.New("heap has no head block but is not empty")
		}
		return m.strategy.Validate(swiss.NewMap[int, struct{}](1))
	}

	maxBlocks := len(m.data) / MinSplitResidual
	freeBlocks := swiss.NewMap[int, struct{}](uint32(m.freeCount + 1))
	var blockCount, allocCount, freeSize int
	expected := 0
	prevFree := false

	for block := m.head; block != NoBlock; block = m.nextBlock(block) {
		if blockCount > maxBlocks {
			return errors.New("heap list has more blocks than the arena can hold, it may contain a cycle")
		}
		if block != expected {
			return errors.Errorf("block at offset %d should start at offset %d, where the previous block ends", block, expected)
		}

		size := m.blockSize(block)
		if size < WordSize || size%WordSize != 0 {
			return errors.Errorf("block at offset %d has invalid size %d", block, size)
		}
		if block+HeaderSize+size > len(m.data) {
			return errors.Errorf("block at offset %d with size %d extends past the arena", block, size)
		}

		if m.isUsed(block) {
			allocCount++
			if !m.live.Has(block) {
				return errors.Errorf("block at offset %d is used but is not a live allocation", block)
			}
			prevFree = false
		} else {
			if m.live.Has(block) {
				return errors.Errorf("block at offset %d is free but is still a live allocation", block)
			}
			if prevFree && m.backwardCoalescing {
				return errors.Errorf("block at offset %d is free and follows another free block", block)
			}
			freeBlocks.Put(block, struct{}{})
			freeSize += size
			prevFree = true
		}

		if m.nextBlock(block) == NoBlock && block != m.tail {
			return errors.Errorf("block at offset %d ends the heap list, but the tail is at offset %d", block, m.tail)
		}

		blockCount++
		expected = block + HeaderSize + size
	}

	if expected != m.end {
		return errors.Errorf("the heap list ends at offset %d, but the heap end is %d", expected, m.end)
	}

	if blockCount != m.blockCount {
		return errors.Errorf("the block count of the metadata is %d, but the heap list has %d blocks", m.blockCount, blockCount)
	}

	if allocCount != m.allocCount {
		return errors.Errorf("the allocation count of the metadata is %d, but the used blocks only added up to %d", m.allocCount, allocCount)
	}

	if allocCount != m.live.Count() {
		return errors.Errorf("there are %d live allocations, but %d used blocks", m.live.Count(), allocCount)
	}

	if freeBlocks.Count() != m.freeCount {
		return errors.Errorf("the free block count of the metadata is %d, but there were only %d free blocks", m.freeCount, freeBlocks.Count())
	}

	if freeSize != m.sumFreeSize {
		return errors.Errorf("the free size of the metadata is %d, but the free blocks only added up to %d", m.sumFreeSize, freeSize)
	}

	return m.strategy.Validate(freeBlocks)
}

// VisitAllBlocks will call the provided callback once for each block in the heap list, in
// address order.
func (m *HeapMetadata) VisitAllBlocks(handleBlock func(region Region) error) error {
	for block := m.head; block != NoBlock; block = m.nextBlock(block) {
		err := handleBlock(Region{
			Offset: block,
			Size:   m.blockSize(block),
			Used:   m.isUsed(block),
			Next:   m.nextBlock(block),
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (m *HeapMetadata) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	for block := m.head; block != NoBlock; block = m.nextBlock(block) {
		size := m.blockSize(block)
		stats.BlockCount++
		stats.BlockBytes += HeaderSize + size
		stats.HeaderBytes += HeaderSize

		if m.isUsed(block) {
			stats.AddAllocation(size)
		} else {
			stats.AddFreeBlock(size)
		}
	}
}

func (m *HeapMetadata) AddStatistics(stats *memutils.Statistics) {
	stats.BlockCount += m.blockCount
	stats.AllocationCount += m.allocCount
	stats.BlockBytes += m.end
	stats.HeaderBytes += m.blockCount * HeaderSize
	stats.AllocationBytes += m.end - m.blockCount*HeaderSize - m.sumFreeSize
}

// BlockJsonData populates a json object with summary information about the heap
func (m *HeapMetadata) BlockJsonData(json *jwriter.ObjectState) {
	json.Name("SearchMode").String(m.Mode().String())
	json.Name("TotalBytes").Int(m.end)
	json.Name("FreeBytes").Int(m.sumFreeSize)
	json.Name("BlockCount").Int(m.blockCount)
	json.Name("Allocations").Int(m.allocCount)
	json.Name("FreeBlocks").Int(m.freeCount)
}

// PrintDetailedMap populates a json object with one entry per block in the heap list
func (m *HeapMetadata) PrintDetailedMap(json *jwriter.ObjectState) {
	arrayState := json.Name("Blocks").Array()
	defer arrayState.End()

	_ = m.VisitAllBlocks(func(region Region) error {
		obj := arrayState.Object()
		defer obj.End()

		obj.Name("Offset").Int(region.Offset)
		obj.Name("Payload").Int(region.Payload())
		obj.Name("Size").Int(region.Size)
		if region.Used {
			obj.Name("Type").String("USED")
		} else {
			obj.Name("Type").String("FREE")
		}

		return nil
	})
}
