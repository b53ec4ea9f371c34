package vmm

import (
	"github.com/gopheros/exo/kernel"
	"github.com/gopheros/exo/kernel/config"
	"github.com/gopheros/exo/kernel/cpu"
	"github.com/gopheros/exo/kernel/mem"
	"github.com/gopheros/exo/kernel/mem/pmm"
)

var (
	// flushTLBEntryFn is swapped out by tests; callers invoke it only when
	// the root they modified is the active address space.
	flushTLBEntryFn = cpu.FlushTLBEntry

	// mmioNext is the bump pointer for MMIOMapRegion, starting at the
	// base of the MMIO window and growing towards MMIOLim.
	mmioNext = uintptr(config.MMIOBase)
)

// Insert maps va to frame in root with the given permission flags, plus
// PRESENT. If another frame is already mapped at va, it is decref'd after
// the new frame's refcount is incremented and before the new entry is
// written — incrementing the new frame's refcount
// before removing the old one means remapping a frame at its own address
// never transiently drops its refcount to zero.
func Insert(root pmm.Frame, frame pmm.Frame, va uintptr, flags PageTableEntryFlag, allocFn FrameAllocatorFn) *kernel.Error {
	pte, err := walk(root, va, true, allocFn)
	if err != nil {
		return err
	}

	pmm.IncRef(frame)

	if pte.HasFlags(FlagPresent) {
		pmm.DecRef(pte.Frame())
	}

	*pte = 0
	pte.SetFrame(frame)
	pte.SetFlags(FlagPresent | flags)

	if root == activeRootFn() {
		flushTLBEntryFn(va)
	}

	return nil
}

// Lookup returns the frame and leaf entry mapped at va in root, or
// ErrInvalidMapping if va is unmapped.
func Lookup(root pmm.Frame, va uintptr) (pmm.Frame, *pageTableEntry, *kernel.Error) {
	pte, err := walk(root, va, false, nil)
	if err != nil {
		return pmm.InvalidFrame, nil, err
	}
	if !pte.HasFlags(FlagPresent) {
		return pmm.InvalidFrame, nil, ErrInvalidMapping
	}
	return pte.Frame(), pte, nil
}

// Remove decref's the frame mapped at va in root, clears the entry and
// flushes the TLB if root is the active address space. Removing an already
// unmapped va is a no-op.
func Remove(root pmm.Frame, va uintptr) *kernel.Error {
	pte, err := walk(root, va, false, nil)
	if err == ErrInvalidMapping {
		return nil
	} else if err != nil {
		return err
	}
	if !pte.HasFlags(FlagPresent) {
		return nil
	}

	pmm.DecRef(pte.Frame())
	*pte = 0

	if root == activeRootFn() {
		flushTLBEntryFn(va)
	}

	return nil
}

// BootMapRegion installs a static identity-style mapping of [va, va+size)
// to [pa, pa+size) in root without touching any frame's refcount; it is used
// only to publish the kernel's own always-present mappings (direct map,
// kernel image) where no frame is ever individually freed.
func BootMapRegion(root pmm.Frame, va, pa uintptr, size mem.Size, flags PageTableEntryFlag, allocFn FrameAllocatorFn) *kernel.Error {
	for off := mem.Size(0); off < size; off += mem.PageSize {
		pte, err := walk(root, va+uintptr(off), true, allocFn)
		if err != nil {
			return err
		}
		*pte = 0
		pte.SetFrame(pmm.Frame((pa + uintptr(off)) >> mem.PageShift))
		pte.SetFlags(FlagPresent | flags)
	}
	return nil
}

// MMIOMapRegion bump-allocates size bytes of the kernel's MMIO window and
// maps them to the physical MMIO range starting at pa with
// WRITABLE|CACHEDISABLE|WRITETHROUGH, returning the virtual address of the
// mapping's start.
func MMIOMapRegion(root pmm.Frame, pa uintptr, size mem.Size, allocFn FrameAllocatorFn) (uintptr, *kernel.Error) {
	va := mmioNext
	if va+uintptr(size) > config.MMIOLim {
		return 0, &kernel.Error{Module: "vmm", Message: "MMIO window exhausted"}
	}

	flags := FlagRW | FlagCacheDisable | FlagWriteThrough
	if err := BootMapRegion(root, va, pa, size, flags, allocFn); err != nil {
		return 0, err
	}

	mmioNext += uintptr(size)
	return va, nil
}
