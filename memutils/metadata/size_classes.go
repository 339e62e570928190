package metadata

import (
	"github.com/pkg/errors"
	"github.com/vkngwrapper/brkheap/memutils"
	"golang.org/x/exp/slices"
)

// DefaultSegregatedClasses are the upper bounds, in words, of the fixed size classes used by
// SearchModeSegregatedList. Anything larger than the last class goes to a catch-all bucket.
var DefaultSegregatedClasses = []int{1, 2, 4, 8, 16}

// sizeClassTable maps payload sizes to segregated buckets
type sizeClassTable struct {
	// boundaries holds the largest payload, in words, of each class
	boundaries []int
}

func newSizeClassTable(boundaries []int) (*sizeClassTable, error) {
	if len(boundaries) == 0 {
		boundaries = DefaultSegregatedClasses
	}

	for i, boundary := range boundaries {
		err := memutils.CheckPow2(boundary, "size class boundary")
		if err != nil {
			return nil, err
		}

		if i > 0 && boundary <= boundaries[i-1] {
			return nil, errors.Errorf("size class boundaries must be strictly ascending, but %d follows %d", boundary, boundaries[i-1])
		}
	}

	return &sizeClassTable{boundaries: slices.Clone(boundaries)}, nil
}

// sizeClass returns the bucket for a payload size in bytes. Sizes above the largest boundary
// map to NumClasses, the catch-all bucket.
func (t *sizeClassTable) sizeClass(size int) int {
	words := (size + WordSize - 1) / WordSize
	class, _ := slices.BinarySearch(t.boundaries, words)
	return class
}

// NumClasses returns the number of fixed size classes (excluding the catch-all bucket)
func (t *sizeClassTable) NumClasses() int {
	return len(t.boundaries)
}
