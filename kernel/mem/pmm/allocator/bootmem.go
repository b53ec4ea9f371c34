// Package allocator bootstraps kernel/mem/pmm: it prints the multiboot memory
// map, sizes pmm's frame descriptor table from it, then hands control to
// pmm's free-list policy. It also provides a bump allocator over the
// available memory regions.
package allocator

import (
	"github.com/gopheros/exo/kernel"
	"github.com/gopheros/exo/kernel/hal/multiboot"
	"github.com/gopheros/exo/kernel/kfmt/early"
	"github.com/gopheros/exo/kernel/mem"
	"github.com/gopheros/exo/kernel/mem/pmm"
)

var errBootAllocOutOfMemory = &kernel.Error{Module: "boot_mem_alloc", Message: "out of memory"}

// bootMemAllocator is a rudimentary physical memory allocator that hands out
// the available frames reported by the bootloader in ascending order. It
// cannot free frames. Init uses it only to print the memory map, and the
// reservation predicate Init passes to pmm.Init does not cover frames it
// has handed out.
type bootMemAllocator struct {
	allocCount     uint64
	lastAllocFrame pmm.Frame
	started        bool
}

// init sets up the boot memory allocator internal state and prints out the
// system memory map.
func (alloc *bootMemAllocator) init() {
	alloc.started = false
	alloc.lastAllocFrame = pmm.InvalidFrame

	early.Printf("[boot_mem_alloc] system memory map:\n")
	var totalFree mem.Size
	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		early.Printf("\t[0x%10x - 0x%10x], size: %10d, type: %s\n", region.PhysAddress, region.PhysAddress+region.Length, region.Length, region.Type.String())

		if region.Type == multiboot.MemAvailable {
			totalFree += mem.Size(region.Length)
		}
		return true
	})
	early.Printf("[boot_mem_alloc] free memory: %dKb\n", uint64(totalFree/mem.Kb))
}

// AllocFrame scans the system memory regions reported by the bootloader and
// reserves the next available free frame after the last one it handed out.
func (alloc *bootMemAllocator) AllocFrame() (pmm.Frame, *kernel.Error) {
	var (
		foundFrame                       = pmm.InvalidFrame
		regionStartFrame, regionEndFrame pmm.Frame
	)

	lastAllocValid := alloc.started
	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type != multiboot.MemAvailable {
			return true
		}

		regionStartFrame = pmm.Frame(((mem.Size(region.PhysAddress) + mem.PageSize - 1) & ^(mem.PageSize - 1)) >> mem.PageShift)
		regionEndFrame = pmm.Frame(((mem.Size(region.PhysAddress+region.Length) - (mem.PageSize - 1)) & ^(mem.PageSize - 1)) >> mem.PageShift)

		if lastAllocValid && alloc.lastAllocFrame >= regionEndFrame {
			return true
		}

		if !lastAllocValid || alloc.lastAllocFrame < regionStartFrame {
			foundFrame = regionStartFrame
		} else {
			foundFrame = alloc.lastAllocFrame + 1
		}
		return false
	})

	if !foundFrame.Valid() {
		return pmm.InvalidFrame, errBootAllocOutOfMemory
	}

	alloc.started = true
	alloc.allocCount++
	alloc.lastAllocFrame = foundFrame

	return foundFrame, nil
}

var (
	// kernelImageStart and kernelImageEnd bound the frames occupied by the
	// loaded kernel image, set by SetKernelImageRange before Init runs.
	// They default to an empty range so tests that never call it still
	// observe a well-defined (always-false) reservation predicate.
	kernelImageStart, kernelImageEnd uintptr
)

// ioHoleStart and ioHoleEnd bound the legacy VGA/BIOS hole that is never
// usable RAM on PC-compatible hardware.
const (
	ioHoleStart uintptr = 0xA0000
	ioHoleEnd   uintptr = 0x100000
)

// SetKernelImageRange records the physical address range occupied by the
// loaded kernel image so that the next call to Init reserves it. The rt0
// entry point supplies this range to Kmain, which forwards it here before
// calling Init.
func SetKernelImageRange(start, end uintptr) {
	kernelImageStart, kernelImageEnd = start, end
}

// Init bootstraps physical frame tracking: it prints the multiboot memory
// map via the boot allocator, sizes the frame descriptor table to cover
// every frame up to the top of installed RAM, and populates pmm's free list
// while withholding frame 0, the legacy I/O hole, and the kernel image.
func Init() *kernel.Error {
	var alloc bootMemAllocator
	alloc.init()

	var highestAddr uintptr
	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		if end := uintptr(region.PhysAddress + region.Length); region.Type == multiboot.MemAvailable && end > highestAddr {
			highestAddr = end
		}
		return true
	})

	frameCount := pmm.Frame((mem.Size(highestAddr) + mem.PageSize - 1) >> mem.PageShift)
	if frameCount == 0 {
		return errBootAllocOutOfMemory
	}

	pmm.Init(frameCount, func(f pmm.Frame) bool {
		addr := f.Address()
		switch {
		case f == 0:
			return true
		case addr >= ioHoleStart && addr < ioHoleEnd:
			return true
		case kernelImageEnd > kernelImageStart && addr >= kernelImageStart && addr < kernelImageEnd:
			return true
		default:
			return false
		}
	})

	return nil
}
