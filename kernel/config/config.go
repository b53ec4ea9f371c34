// Package config centralizes the build-time tunables that size and lay out
// the kernel: the two-level page-table geometry, the fixed virtual-address
// map shared by every task, and the on-disk format used by the file server.
// Every other package imports config instead of redeclaring these numbers,
// the same way kernel/mem centralizes page-size constants.
package config

import "github.com/gopheros/exo/kernel/mem"

const (
	// PageShift/PageSize are re-exported from kernel/mem so packages that
	// only need address-map constants don't also need to import mem.
	PageShift = mem.PageShift
	PageSize  = mem.PageSize

	// PDXShift is the bit offset of the page-directory index within a
	// 32-bit linear address; PTXShift is the bit offset of the
	// page-table index.
	PDXShift = 22
	PTXShift = 12

	// NPDEntries and NPTEntries are the number of entries in a page
	// directory and a leaf page table respectively; both tables occupy
	// exactly one page.
	NPDEntries = 1024
	NPTEntries = 1024

	// PTSize is the amount of linear address space mapped by a single
	// page-directory entry (1024 pages of 4KiB each).
	PTSize = uintptr(NPTEntries) * uintptr(PageSize)
)

// Fixed virtual-address layout, identical in every task's address space.
// Values descend from KERNBASE in PTSize-sized windows so that each boundary
// lands on a page-directory entry, satisfying UTOP % PTSize == 0.
const (
	KERNBASE = uintptr(0xF0000000)

	// KStackTop is the top of the per-CPU kernel stack region; see
	// KStackAddr for how individual CPU stacks are carved out of it.
	KStackTop = KERNBASE
	KStkSize  = 8 * uintptr(PageSize)
	KStkGap   = 8 * uintptr(PageSize)

	MMIOLim  = KStackTop - PTSize
	MMIOBase = MMIOLim - PTSize

	// HeapLim/HeapBase bound the window the Go runtime's own allocator
	// reserves and maps through goruntime's sysReserve/sysAlloc hooks.
	// It sits below the MMIO window so neither can grow into the other.
	HeapLim  = MMIOBase
	HeapBase = HeapLim - 64*PTSize

	ULIM  = HeapBase
	UVPT  = ULIM - PTSize
	UPAGES = UVPT - PTSize
	UENVS = UPAGES - PTSize
	UTOP  = UENVS

	UXStackTop = UTOP
	USTACKTOP  = UTOP - 2*uintptr(PageSize)
)

// KStackAddr returns the top of the kernel stack reserved for the given CPU
// index, leaving a KStkGap-sized unmapped guard region below each stack so a
// kernel stack overflow faults instead of corrupting the next CPU's stack.
func KStackAddr(cpuID int) uintptr {
	return KStackTop - uintptr(cpuID)*(KStkSize+KStkGap)
}

// NCPU bounds the number of CPUs this kernel schedules across; it sizes the
// per-CPU tables (kernel/task's current-task slots and kernel/sched's
// lastRun).
const NCPU = 8

// NEnv is the maximum number of live tasks; task ids encode a 10-bit slot
// index, so NEnv must be a power of two no greater than 1024.
const NEnv = 1024

// GenShift is the bit position of the generation counter within a task id;
// the low GenShift bits hold the slot index.
const GenShift = 10

// Disk / file-server layout.
const (
	// DiskMap is the base of the FS task's block-cache window; DiskSize
	// bounds how much of the disk can be cached at once.
	DiskMap  = uintptr(0x10000000)
	DiskSize = uintptr(0x4000000)

	// BlkSize is the file-system block size; SectSize is the disk sector
	// size; BlkSects is the number of sectors read per block.
	BlkSize  = 4096
	SectSize = 512
	BlkSects = BlkSize / SectSize

	// NDirect is the number of direct block pointers in a File record;
	// NIndirect is the number of pointers an indirect block holds.
	NDirect   = 10
	NIndirect = BlkSize / 4

	// SuperBlockNo and the first two reserved blocks.
	BootBlockNo  = 0
	SuperBlockNo = 1
	FirstDataBlk = 2

	// FSMagic identifies a valid superblock.
	FSMagic = 0x4A0530AE
)
