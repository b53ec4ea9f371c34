package pmm

import (
	"github.com/gopheros/exo/kernel"
	"github.com/gopheros/exo/kernel/kfmt/early"
	"github.com/gopheros/exo/kernel/mem"
)

// AllocFlag modifies the behaviour of Alloc.
type AllocFlag uint8

const (
	// Zero asks Alloc to fill the returned frame with zeroes via the
	// kernel direct map before returning it.
	Zero AllocFlag = 1 << iota
)

var (
	errDoubleFree = &kernel.Error{Module: "pmm", Message: "frame freed while still referenced or already free"}
	errNotTracked = &kernel.Error{Module: "pmm", Message: "frame is outside the tracked physical memory range"}

	// descriptors holds one entry per tracked physical frame, indexed by
	// Frame. It is sized by Init and never grows afterwards.
	descriptors []descriptor

	// freeListHead is the head of the singly linked free list threaded
	// through descriptor.next. InvalidFrame denotes an empty list.
	freeListHead = InvalidFrame

	// directMapBase is added to a frame's physical address to obtain a
	// kernel-virtual address the kernel can dereference directly,
	// modelling the KERNBASE direct map.
	directMapBase uintptr

	freeCount, totalCount uint32
)

// SetDirectMapBase records the virtual address that corresponds to physical
// address 0 under the kernel's direct map. PMEM and PGTAB use it to
// dereference frames without a temporary mapping.
func SetDirectMapBase(base uintptr) {
	directMapBase = base
}

// KernelAddress returns the kernel-virtual address of frame f under the
// direct map.
func KernelAddress(f Frame) uintptr {
	return directMapBase + f.Address()
}

// Init builds the frame descriptor table for the first frameCount physical
// frames and populates the free list, in ascending frame order, skipping any
// frame for which reserved returns true. Callers are
// expected to mark as reserved: frame 0, the 0xA0000..0x100000 I/O hole, any
// frames already consumed by the boot bump allocator, the kernel image, and
// the SMP startup trampoline page.
func Init(frameCount Frame, reserved func(Frame) bool) {
	descriptors = make([]descriptor, frameCount)
	freeListHead = InvalidFrame
	freeCount, totalCount = 0, uint32(frameCount)

	// Push in descending order so that the free list ends up ordered by
	// ascending frame number; the first Alloc then hands out the lowest
	// available frame, matching the "reverse push" ordering task ids also
	// use (ascending index on first use). Frame is
	// unsigned, so decrementing past 0 wraps to InvalidFrame and the loop
	// condition stops it there.
	for f := frameCount - 1; f.Valid() && f < frameCount; f-- {
		if reserved(f) {
			descriptors[f].refCount = 1
			descriptors[f].next = InvalidFrame
			continue
		}
		descriptors[f].refCount = 0
		descriptors[f].next = freeListHead
		freeListHead = f
		freeCount++
	}

	early.Printf("[pmm] tracking %d frames, %d free\n", totalCount, freeCount)
}

// Alloc removes the head of the free list and returns it. If flags has Zero
// set, the frame is filled with zeroes through the direct map before being
// returned. Alloc does not increment the frame's reference count — the
// caller does that via IncRef (or implicitly, via vmm.Insert) once the frame
// is linked into a page table. Alloc returns InvalidFrame when the free list
// is empty.
func Alloc(flags AllocFlag) Frame {
	f := freeListHead
	if !f.Valid() {
		return InvalidFrame
	}

	freeListHead = descriptors[f].next
	descriptors[f].next = InvalidFrame
	freeCount--

	if flags&Zero != 0 {
		mem.Memset(KernelAddress(f), 0, mem.PageSize)
	}

	return f
}

// Free pushes frame f onto the head of the free list. Its precondition is
// refCount == 0 and that f is not already linked on the free list. A nonzero
// refCount panics; a frame that is already on the free list is not
// detected.
func Free(f Frame) {
	if int(f) >= len(descriptors) {
		panic(errNotTracked)
	}
	if descriptors[f].refCount != 0 {
		panic(errDoubleFree)
	}

	descriptors[f].next = freeListHead
	freeListHead = f
	freeCount++
}

// IncRef increments the reference count of frame f. It is called whenever a
// new page-table entry is made to reference f.
func IncRef(f Frame) {
	descriptors[f].refCount++
}

// DecRef decrements the reference count of frame f and, if it reaches zero,
// returns it to the free list.
func DecRef(f Frame) {
	descriptors[f].refCount--
	if descriptors[f].refCount == 0 {
		Free(f)
	}
}

// FreeFrames returns the number of frames currently on the free list.
func FreeFrames() uint32 { return freeCount }

// TotalFrames returns the number of frames tracked by this allocator.
func TotalFrames() uint32 { return totalCount }
