// Package arena emulates the classic program break over a region of memory that is
// reserved from the operating system exactly once.
//
// The region never moves and never grows: Extend only advances a logical break inside it,
// so offsets handed out by the arena stay valid until Reset or Release.
package arena

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/brkheap/memutils"
)

// DefaultCapacity is the size of the reserved region when the consumer does not choose one.
// It is equal to 4Mb.
const DefaultCapacity int = 4 * 1024 * 1024

// Arena is a fixed, zero-initialized region with a movable break. Offsets are relative to
// the start of the region, so Base is always 0.
type Arena struct {
	data    []byte
	brk     int
	release func([]byte) error
}

// Reserve maps capacity bytes of zero-filled memory. The capacity must be positive and a
// multiple of the machine word.
func Reserve(capacity int) (*Arena, error) {
	if capacity < 1 {
		return nil, errors.Wrapf(memutils.ErrInvalidSize, "arena capacity %d must be positive", capacity)
	}
	if !memutils.IsAligned(capacity, wordSize) {
		return nil, errors.Wrapf(memutils.ErrInvalidSize, "arena capacity %d is not a multiple of %d", capacity, wordSize)
	}

	data, release, err := mapRegion(capacity)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to reserve %d bytes for the arena", capacity)
	}

	return &Arena{
		data:    data,
		release: release,
	}, nil
}

// Base returns the offset of the first byte of the region
func (a *Arena) Base() int { return 0 }

// Break returns the current logical break: every byte below it has been handed out by Extend
func (a *Arena) Break() int { return a.brk }

// Capacity returns the size in bytes of the reserved region
func (a *Arena) Capacity() int { return len(a.data) }

// Bytes returns the whole reserved region, including the part above the break
func (a *Arena) Bytes() []byte { return a.data }

// Extend moves the break forward by n bytes and returns the previous break, which is the
// start of the newly available region. It fails with memutils.ErrOutOfArena when the new
// break would pass the end of the region, in which case the break does not move.
// Extend(0) returns the current break.
func (a *Arena) Extend(n int) (int, error) {
	if a.data == nil {
		return 0, errors.New("arena has been released")
	}
	if n < 0 {
		return 0, errors.Wrapf(memutils.ErrInvalidSize, "cannot extend the arena by %d bytes", n)
	}
	if n > len(a.data)-a.brk {
		return 0, errors.Wrapf(memutils.ErrOutOfArena, "extending by %d bytes would move the break from %d past capacity %d", n, a.brk, len(a.data))
	}

	prev := a.brk
	a.brk += n
	return prev, nil
}

// Reset rewinds the break to the base. All previously returned offsets become invalid, and
// the memory below the old break is zeroed so the region looks freshly reserved.
func (a *Arena) Reset() {
	clear(a.data[:a.brk])
	a.brk = 0
}

// Release returns the region to the operating system. The arena cannot be used afterward.
func (a *Arena) Release() error {
	if a.data == nil {
		return nil
	}

	data := a.data
	a.data = nil
	a.brk = 0

	return a.release(data)
}
