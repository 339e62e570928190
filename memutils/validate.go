package memutils

// Validatable is used by the DebugValidate method to allow it to act upon
// all types with a Validate method, such as heap metadata and the allocator that owns it
type Validatable interface {
	Validate() error
}
