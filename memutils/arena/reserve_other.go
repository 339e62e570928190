//go:build !unix

package arena

const wordSize = 8

// mapRegion falls back to a Go heap allocation when anonymous mappings are not available.
func mapRegion(capacity int) ([]byte, func([]byte) error, error) {
	return make([]byte, capacity), func([]byte) error { return nil }, nil
}
