// Package vmm implements the two-level x86 page-table walker: mapping,
// lookup and removal of individual pages, plus the fixed kernel mappings
// (direct map, MMIO window) every task's page directory inherits. Resolving
// a user-mode page fault — including copy-on-write — is not this package's
// job; it belongs to the trap-dispatch layer and, for COW specifically, to
// user-space fork.
package vmm

import (
	"github.com/gopheros/exo/kernel"
	"github.com/gopheros/exo/kernel/config"
	"github.com/gopheros/exo/kernel/kfmt/early"
	"github.com/gopheros/exo/kernel/mem"
	"github.com/gopheros/exo/kernel/mem/pmm"
)

var (
	// frameAllocator is registered via SetFrameAllocator and used whenever
	// this package needs a fresh page-table frame.
	frameAllocator FrameAllocatorFn = func() pmm.Frame { return pmm.Alloc(pmm.Zero) }

	// kernelPDT is the page directory shared (via cloning) by every task.
	kernelPDT PageDirectoryTable
)

// SetFrameAllocator overrides the frame allocator used by this package; it
// exists so tests can substitute a deterministic fake.
func SetFrameAllocator(allocFn FrameAllocatorFn) {
	frameAllocator = allocFn
}

// KernelRoot returns the frame backing the kernel's page directory, the
// template every task directory clones its high-half entries from.
func KernelRoot() pmm.Frame {
	return kernelPDT.root
}

// Init builds the kernel's page directory: a direct map of all physical
// memory at KERNBASE, sized to the frames pmm already tracks, and activates
// it as the running address space. PMEM must already be initialized, since
// this establishes pmm's direct-map base as a byproduct of the identity
// region it installs.
func Init() *kernel.Error {
	if err := kernelPDT.InitKernel(frameAllocator); err != nil {
		return err
	}

	// The direct map occupies every address from KERNBASE to the top of
	// the 32-bit address space; physical memory beyond that window has
	// no virtual address and is never handed out by the frame allocator,
	// the same assumption JOS makes about its own 256MiB direct-mapped
	// region (KERNBASE here is likewise fixed 256MiB below the top).
	totalBytes := mem.Size(pmm.TotalFrames()) * mem.PageSize
	directMapCap := mem.Size(1<<32 - uint64(config.KERNBASE)) // address space size above KERNBASE
	if totalBytes > directMapCap {
		early.Printf("[vmm] physical memory exceeds the direct-map window, clamping\n")
		totalBytes = directMapCap
	}
	if err := BootMapRegion(kernelPDT.root, config.KERNBASE, 0, totalBytes, FlagRW, frameAllocator); err != nil {
		return err
	}
	pmm.SetDirectMapBase(config.KERNBASE)

	kernelPDT.Activate()
	return nil
}
