package metadata

import (
	"github.com/dolthub/swiss"
	"github.com/pkg/errors"
)

// SearchMode selects the policy used to locate a free block for a new allocation. It is chosen
// once when the metadata is created and never changes afterward.
type SearchMode uint32

const (
	// SearchModeFirstFit scans the heap list from the head and takes the first free block that
	// is large enough
	SearchModeFirstFit SearchMode = iota
	// SearchModeNextFit scans like SearchModeFirstFit, but starts from the block after the one
	// handed out by the previous successful search and wraps around to the head
	SearchModeNextFit
	// SearchModeBestFit scans the whole heap list and takes the smallest free block that is large
	// enough, preferring the earliest one on ties
	SearchModeBestFit
	// SearchModeFreeList keeps free blocks in an index ordered by the time they became free and
	// takes the first entry that is large enough
	SearchModeFreeList
	// SearchModeSegregatedList keeps one free list per size class and only ever searches the list
	// matching the request's class
	SearchModeSegregatedList
)

var searchModeMapping = map[SearchMode]string{
	SearchModeFirstFit:       "FirstFit",
	SearchModeNextFit:        "NextFit",
	SearchModeBestFit:        "BestFit",
	SearchModeFreeList:       "FreeList",
	SearchModeSegregatedList: "SegregatedList",
}

func (m SearchMode) String() string {
	return searchModeMapping[m]
}

// Strategy is a search policy along with whatever side state it needs to answer "which free
// block should this allocation use". HeapMetadata drives the hooks as blocks change state, so
// an implementation never has to rescan the heap list to stay current.
type Strategy interface {
	// Mode identifies the implementation
	Mode() SearchMode
	// FindFreeBlock returns the offset of a free block with a payload of at least size bytes
	FindFreeBlock(size int) (int, bool)

	// Insert is called when a block has become free with its final size, after any merging
	Insert(block int)
	// Remove is called when a free block is about to be handed out, resized, or absorbed. The
	// block may not be present in the implementation's index.
	Remove(block int)
	// Taken is called after a search result has been committed and split
	Taken(block int)
	// Merged is called when the block at absorbed has been merged into the block at into and
	// no longer exists
	Merged(absorbed, into int)

	// Clear drops all side state
	Clear()
	// Validate checks the side state against the set of free blocks in the heap list
	Validate(freeBlocks *swiss.Map[int, struct{}]) error
}

func newStrategy(mode SearchMode, heap *HeapMetadata, classes *sizeClassTable) (Strategy, error) {
	switch mode {
	case SearchModeFirstFit:
		return &firstFit{heap: heap}, nil
	case SearchModeNextFit:
		return &nextFit{heap: heap, cursor: NoBlock}, nil
	case SearchModeBestFit:
		return &bestFit{heap: heap}, nil
	case SearchModeFreeList:
		return &freeListFit{heap: heap, index: newFreeIndex(1)}, nil
	case SearchModeSegregatedList:
		return &segregatedFit{heap: heap, classes: classes, index: newFreeIndex(classes.NumClasses() + 1)}, nil
	}

	return nil, errors.Errorf("unknown search mode: %d", mode)
}

// listScan provides no-op index hooks for the strategies that search the heap list directly
type listScan struct{}

func (listScan) Insert(block int)          {}
func (listScan) Remove(block int)          {}
func (listScan) Taken(block int)           {}
func (listScan) Merged(absorbed, into int) {}
func (listScan) Clear()                    {}

func (listScan) Validate(freeBlocks *swiss.Map[int, struct{}]) error {
	return nil
}
