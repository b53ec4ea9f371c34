package vmm

import (
	"github.com/gopheros/exo/kernel"
	"github.com/gopheros/exo/kernel/config"
	"github.com/gopheros/exo/kernel/cpu"
	"github.com/gopheros/exo/kernel/mem"
	"github.com/gopheros/exo/kernel/mem/pmm"
)

// activeRoot tracks the page directory frame currently loaded on this CPU.
// The kernel runs with a single big lock and switches address spaces only
// while holding it, so one package-level value is sufficient.
var activeRoot = pmm.InvalidFrame

// activeRootFn is swapped out by tests that exercise Insert/Remove without a
// real CPU to ask about CR3.
var activeRootFn = func() pmm.Frame { return activeRoot }

// switchPDTFn is swapped out by tests; it is the only call that touches CR3.
var switchPDTFn = cpu.SwitchPDT

// PageDirectoryTable is the root of a task's two-level address space.
type PageDirectoryTable struct {
	root pmm.Frame
}

// Root returns the frame backing this page directory.
func (pdt PageDirectoryTable) Root() pmm.Frame { return pdt.root }

// Adopt wraps an already-built page directory frame, for code that stores
// only the frame (as kernel/task does in its table) and needs to Activate
// it without retaining a PageDirectoryTable value across a task switch.
func (pdt *PageDirectoryTable) Adopt(root pmm.Frame) { pdt.root = root }

// Init allocates and builds a new page directory: entries at or above UTOP
// are cloned from the kernel directory so every task shares the kernel's
// mappings, entries below UTOP are left clear, and the directory is
// self-mapped read-only at UVPT for user-space introspection. kernelRoot
// is the already-initialized kernel page directory.
func (pdt *PageDirectoryTable) Init(kernelRoot pmm.Frame, allocFn FrameAllocatorFn) *kernel.Error {
	frame := allocFn()
	if !frame.Valid() {
		return errNoMem
	}
	pmm.IncRef(frame)
	mem.Memset(pmm.KernelAddress(frame), 0, mem.PageSize)

	dst := pdtEntries(frame)
	src := pdtEntries(kernelRoot)
	for i := pdIndex(config.UTOP); i < config.NPDEntries; i++ {
		dst[i] = src[i]
	}

	pdt.root = frame

	selfMapIdx := pdIndex(config.UVPT)
	dst[selfMapIdx] = 0
	dst[selfMapIdx].SetFrame(frame)
	dst[selfMapIdx].SetFlags(FlagPresent | FlagUser)

	return nil
}

// InitKernel builds the kernel's own page directory in place, without
// cloning from anything. It is used exactly once, during vmm.Init.
func (pdt *PageDirectoryTable) InitKernel(allocFn FrameAllocatorFn) *kernel.Error {
	frame := allocFn()
	if !frame.Valid() {
		return errNoMem
	}
	pmm.IncRef(frame)
	mem.Memset(pmm.KernelAddress(frame), 0, mem.PageSize)
	pdt.root = frame
	return nil
}

// Activate loads this page directory as the active address space and
// flushes the TLB. Called whenever the scheduler switches to a new task.
func (pdt PageDirectoryTable) Activate() {
	activeRoot = pdt.root
	switchPDTFn(pdt.root.Address())
}
