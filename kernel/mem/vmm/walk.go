package vmm

import (
	"unsafe"

	"github.com/gopheros/exo/kernel"
	"github.com/gopheros/exo/kernel/config"
	"github.com/gopheros/exo/kernel/mem"
	"github.com/gopheros/exo/kernel/mem/pmm"
)

// FrameAllocatorFn is a function that can allocate a single zeroed physical
// frame, returning pmm.InvalidFrame when none is available.
type FrameAllocatorFn func() pmm.Frame

var (
	// errNoMem is returned by walk when create is set and the frame
	// allocator backing it runs out of frames.
	errNoMem = &kernel.Error{Module: "vmm", Message: "out of memory"}

	// ErrInvalidMapping is returned by Remove/Lookup/Translate when the
	// requested virtual address has no corresponding mapping.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "address not mapped"}
)

// pdIndex and ptIndex split a linear address into its page-directory and
// page-table indices, per the PDXShift/PTXShift split in config.
func pdIndex(va uintptr) uintptr { return (va >> config.PDXShift) & (config.NPDEntries - 1) }
func ptIndex(va uintptr) uintptr { return (va >> config.PTXShift) & (config.NPTEntries - 1) }

// pdtEntries returns the root page directory as a slice overlaying its
// frame's kernel direct-map address.
func pdtEntries(root pmm.Frame) []pageTableEntry {
	return entriesAt(pmm.KernelAddress(root))
}

func entriesAt(addr uintptr) []pageTableEntry {
	return unsafe.Slice((*pageTableEntry)(unsafe.Pointer(addr)), config.NPTEntries)
}

// walk returns a pointer to the leaf page-table entry for va within root. If
// the page table for va's directory entry does not exist, walk allocates and
// zeroes a frame for it (linking it into the directory with
// PRESENT|RW|USER) only when create is true; otherwise it
// returns ErrInvalidMapping.
func walk(root pmm.Frame, va uintptr, create bool, allocFn FrameAllocatorFn) (*pageTableEntry, *kernel.Error) {
	pde := &pdtEntries(root)[pdIndex(va)]

	if !pde.HasFlags(FlagPresent) {
		if !create {
			return nil, ErrInvalidMapping
		}

		ptFrame := allocFn()
		if !ptFrame.Valid() {
			return nil, errNoMem
		}
		mem.Memset(pmm.KernelAddress(ptFrame), 0, mem.PageSize)
		pmm.IncRef(ptFrame)

		*pde = 0
		pde.SetFrame(ptFrame)
		pde.SetFlags(FlagPresent | FlagRW | FlagUser)
	}

	pt := entriesAt(pmm.KernelAddress(pde.Frame()))
	return &pt[ptIndex(va)], nil
}
