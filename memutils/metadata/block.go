package metadata

import (
	"encoding/binary"

	"github.com/vkngwrapper/brkheap/memutils"
)

const (
	// WordSize is the machine word. Every payload size is a multiple of it and every block
	// boundary falls on it.
	WordSize = 8
	// HeaderSize is the fixed overhead in front of every payload: the size word, the flags
	// word and the link to the next block.
	HeaderSize = 3 * WordSize
	// MinSplitResidual is the smallest leftover that is carved into its own free block
	// during a split: a header plus one word of payload.
	MinSplitResidual = HeaderSize + WordSize

	// NoBlock marks the absence of a block: the link of the tail block, an empty list, an
	// unset cursor.
	NoBlock = -1
)

const (
	sizeField  = 0
	flagsField = WordSize
	nextField  = 2 * WordSize

	flagUsed uint64 = 1 << 0
)

// Align rounds a payload size up to the nearest multiple of WordSize
func Align(size int) int {
	return memutils.AlignUp(size, WordSize)
}

// BlockFor recovers the offset of a block header from the offset of its payload.
// It is the exact inverse of PayloadOf.
func BlockFor(payload int) int {
	return payload - HeaderSize
}

// PayloadOf returns the offset of the first payload byte of the block at the provided offset
func PayloadOf(block int) int {
	return block + HeaderSize
}

func (m *HeapMetadata) blockSize(block int) int {
	return int(binary.LittleEndian.Uint64(m.data[block+sizeField:]))
}

func (m *HeapMetadata) setBlockSize(block, size int) {
	binary.LittleEndian.PutUint64(m.data[block+sizeField:], uint64(size))
}

func (m *HeapMetadata) isUsed(block int) bool {
	return binary.LittleEndian.Uint64(m.data[block+flagsField:])&flagUsed != 0
}

func (m *HeapMetadata) setUsed(block int, used bool) {
	flags := binary.LittleEndian.Uint64(m.data[block+flagsField:])
	if used {
		flags |= flagUsed
	} else {
		flags &^= flagUsed
	}
	binary.LittleEndian.PutUint64(m.data[block+flagsField:], flags)
}

func (m *HeapMetadata) nextBlock(block int) int {
	return int(int64(binary.LittleEndian.Uint64(m.data[block+nextField:])))
}

func (m *HeapMetadata) setNext(block, next int) {
	binary.LittleEndian.PutUint64(m.data[block+nextField:], uint64(int64(next)))
}

func (m *HeapMetadata) writeHeader(block, size int, used bool, next int) {
	m.setBlockSize(block, size)
	var flags uint64
	if used {
		flags = flagUsed
	}
	binary.LittleEndian.PutUint64(m.data[block+flagsField:], flags)
	m.setNext(block, next)
}

// endOf returns the offset one past the last payload byte of the block
func (m *HeapMetadata) endOf(block int) int {
	return block + HeaderSize + m.blockSize(block)
}
