package metadata

// Region describes one block of the heap list as seen from outside the metadata
type Region struct {
	// Offset is the offset of the block header within the arena
	Offset int
	// Size is the payload size in bytes, excluding the header
	Size int
	// Used is true when the payload is currently handed out
	Used bool
	// Next is the offset of the next block in the list, or NoBlock for the tail
	Next int
}

// Payload returns the offset of the region's first payload byte
func (r Region) Payload() int {
	return PayloadOf(r.Offset)
}

// End returns the offset one past the region's last payload byte
func (r Region) End() int {
	return r.Offset + HeaderSize + r.Size
}
