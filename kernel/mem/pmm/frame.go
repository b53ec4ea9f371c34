// Package pmm tracks physical memory frames: a free-list allocator with a
// reference count per frame. A frame sits on the free list iff its refcount
// is zero and no page-table entry references it.
package pmm

import (
	"math"

	"github.com/gopheros/exo/kernel/mem"
)

// Frame describes a physical memory page index.
type Frame uint64

// InvalidFrame is returned by page allocators when they fail to reserve the
// requested frame, and is stored in descriptor links that point nowhere.
const InvalidFrame = Frame(math.MaxUint64)

// Valid returns true if this is not the sentinel InvalidFrame value.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical memory address for this frame.
func (f Frame) Address() uintptr {
	return uintptr(f << mem.PageShift)
}

// descriptor is the per-frame bookkeeping record: a reference count and a
// free-list link. It carries no page-order or size information — every
// frame this package manages is exactly mem.PageSize.
type descriptor struct {
	refCount uint16
	// next links this frame to the next free frame when refCount == 0 and
	// the frame is on the free list; InvalidFrame otherwise.
	next Frame
}

// RefCount returns the current reference count for frame f.
func RefCount(f Frame) uint16 {
	if int(f) >= len(descriptors) {
		return 0
	}
	return descriptors[f].refCount
}
