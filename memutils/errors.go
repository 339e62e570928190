package memutils

import "github.com/pkg/errors"

var (
	// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
	PowerOfTwoError error = errors.New("number must be a power of two")

	// ErrOutOfMemory is returned when an allocation could not be satisfied from existing blocks and
	// the arena could not be extended to make room for a new one
	ErrOutOfMemory = errors.New("out of memory")
	// ErrOutOfArena is returned by the arena backend when moving the break would pass the end of the
	// reserved region
	ErrOutOfArena = errors.New("arena exhausted")
	// ErrInvalidFree is returned when freeing a pointer that is not the payload of a live allocation,
	// including a pointer that has already been freed
	ErrInvalidFree = errors.New("pointer is not a live allocation")
	// ErrInvalidSize is returned for allocation or extension sizes that are zero, negative, or
	// otherwise malformed
	ErrInvalidSize = errors.New("invalid size")
)
