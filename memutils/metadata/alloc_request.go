package metadata

// AllocationRequest is a type returned from HeapMetadata.CreateAllocationRequest which indicates which
// free block the active search strategy chose for a new allocation and how it will be carved up. It
// can be committed with HeapMetadata.Alloc
type AllocationRequest struct {
	// Block is the offset of the free block's header
	Block int
	// Size is the aligned payload size that was requested
	Size int
	// BlockSize is the payload size of the free block at the time the request was created. Alloc
	// refuses the request if the block has changed since.
	BlockSize int
	// Split is true if the leftover is large enough to become its own free block. When false, the
	// whole block is handed out and the caller receives more than it asked for.
	Split bool
	// Mode identifies the search strategy that produced this request
	Mode SearchMode
}

// Payload returns the offset of the payload the request will hand out
func (r AllocationRequest) Payload() int {
	return PayloadOf(r.Block)
}
