package malloc

import (
	"fmt"
	"io"
	"math/bits"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/brkheap/malloc/internal/utils"
	"github.com/vkngwrapper/brkheap/memutils"
	"github.com/vkngwrapper/brkheap/memutils/arena"
	"github.com/vkngwrapper/brkheap/memutils/metadata"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific allocator behaviors to activate or deactivate
type CreateFlags int32

const (
	// AllocatorCreateSynchronized guards every call on the allocator with an internal mutex so
	// that it can be shared between goroutines. Without it, the consumer must guarantee the
	// allocator is used from one goroutine at a time.
	AllocatorCreateSynchronized CreateFlags = 1 << iota
	// AllocatorCreateBackwardCoalescing merges a freed block into a free predecessor as well as
	// into free successors. Every free pays for a scan of the heap list from the head.
	AllocatorCreateBackwardCoalescing
)

var allocatorCreateFlagsMapping = map[CreateFlags]string{
	AllocatorCreateSynchronized:       "AllocatorCreateSynchronized",
	AllocatorCreateBackwardCoalescing: "AllocatorCreateBackwardCoalescing",
}

func (f CreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var sb strings.Builder
	remaining := uint32(f)
	for remaining != 0 {
		flag := CreateFlags(1 << bits.TrailingZeros32(remaining))
		remaining &^= uint32(flag)

		if sb.Len() > 0 {
			sb.WriteString("|")
		}

		name, known := allocatorCreateFlagsMapping[flag]
		if !known {
			name = fmt.Sprintf("CreateFlags(%#x)", uint32(flag))
		}
		sb.WriteString(name)
	}

	return sb.String()
}

// CreateOptions contains optional settings when creating an allocator. It is valid to leave
// all the fields blank.
type CreateOptions struct {
	// SearchMode is the policy used to find a free block for a new allocation. The zero value
	// is metadata.SearchModeFirstFit.
	SearchMode metadata.SearchMode
	// ArenaCapacity is the number of bytes reserved for the arena up front. The heap can never
	// grow past it. It must be a multiple of the machine word, and arena.DefaultCapacity is
	// used when it is 0.
	ArenaCapacity int
	// Flags indicates specific allocator behaviors to activate or deactivate
	Flags CreateFlags

	// SegregatedClasses are the size class boundaries, in words, used by
	// metadata.SearchModeSegregatedList. Each must be a power of two and they must be
	// ascending. metadata.DefaultSegregatedClasses is used when it is empty.
	SegregatedClasses []int
}

// New reserves an arena and creates an Allocator that carves it into blocks
//
// logger - Receives debug output for every call, and errors for allocations that are still
// live when the allocator is destroyed. It may be nil.
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, options CreateOptions) (*Allocator, error) {
	logger = loggerOrDiscard(logger)

	capacity := options.ArenaCapacity
	if capacity == 0 {
		capacity = arena.DefaultCapacity
	}

	backend, err := arena.Reserve(capacity)
	if err != nil {
		return nil, err
	}

	allocator, err := NewWithBackend(logger, backend, options)
	if err != nil {
		releaseErr := backend.Release()
		if releaseErr != nil {
			logger.Error("error attempting to release the arena after creation failure", slog.Any("error", releaseErr))
		}
		return nil, err
	}

	return allocator, nil
}

// NewWithBackend creates an Allocator over an arena the caller already owns. The backend's
// break must be at its base. options.ArenaCapacity is ignored. Destroy releases the backend.
func NewWithBackend(logger *slog.Logger, backend ArenaBackend, options CreateOptions) (*Allocator, error) {
	logger = loggerOrDiscard(logger)

	if backend == nil {
		return nil, errors.New("an arena backend is required")
	}

	base := backend.Base()
	brk := backend.Break()
	if brk != base {
		return nil, errors.Newf("the arena break is %d bytes past its base, the arena must be unused", brk-base)
	}
	if base < 0 || backend.Capacity()-base < metadata.MinSplitResidual {
		return nil, errors.Wrapf(memutils.ErrInvalidSize, "arena with base %d and capacity %d cannot hold a single block", base, backend.Capacity())
	}

	heap, err := metadata.NewHeapMetadata(options.SearchMode, metadata.Options{
		SegregatedClasses:  options.SegregatedClasses,
		BackwardCoalescing: options.Flags&AllocatorCreateBackwardCoalescing != 0,
	})
	if err != nil {
		return nil, errors.Wrap(err, "invalid allocator options")
	}
	heap.Init(backend.Bytes()[base:])

	allocator := &Allocator{
		logger:      logger,
		createFlags: options.Flags,
		mutex: utils.OptionalRWMutex{
			UseMutex: options.Flags&AllocatorCreateSynchronized != 0,
		},
		backend: backend,
		base:    base,
		heap:    heap,
	}

	logger.Debug("Allocator::New",
		slog.String("SearchMode", heap.Mode().String()),
		slog.String("Flags", options.Flags.String()),
		slog.Int("ArenaCapacity", backend.Capacity()),
	)

	return allocator, nil
}

func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}

	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
