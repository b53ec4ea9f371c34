package trap

import (
	"unsafe"

	"github.com/gopheros/exo/kernel/config"
	"github.com/gopheros/exo/kernel/cpu"
	"github.com/gopheros/exo/kernel/kfmt/early"
)

// The page-fault path needs to read and write another task's address space
// (the exception stack lives in user memory) and to destroy a task outright;
// both are kernel/task operations wired in by kmain to avoid an import cycle
// (kernel/task embeds this package's Frame/Regs in its saved trap state).
var (
	// CurrentPgFaultUpcallFn returns the current task's registered
	// page-fault upcall entry point, or 0 if none is registered.
	CurrentPgFaultUpcallFn = func() uint32 { return 0 }

	// DestroyCurrentForFaultFn destroys the current task; used both when
	// no upcall is registered and when the exception stack itself is
	// unmapped or not writable.
	DestroyCurrentForFaultFn = func() {}

	// CurrentTrapTimeESPFn returns the esp the task had at the moment of
	// the fault (its saved frame's ESP field).
	CurrentTrapTimeESPFn = func() uint32 { return 0 }

	// CheckExceptionStackWritableFn reports whether the given user
	// virtual address range is mapped WRITABLE for the current task.
	CheckExceptionStackWritableFn = func(va uint32, size uint32) bool { return false }

	// WriteUTrapFrameFn copies a UTrapFrame into the current task's
	// address space at the given user virtual address.
	WriteUTrapFrameFn = func(va uint32, frame *UTrapFrame) {}

	// SetCurrentEntryFn rewrites the current task's saved eip/esp so that
	// resuming it lands in the upcall with the new frame as its stack.
	SetCurrentEntryFn = func(eip, esp uint32) {}
)

var (
	uxStackTop     = uint32(config.UXStackTop)
	pageSize       = uint32(config.PageSize)
	utrapFrameSize = uint32(unsafe.Sizeof(UTrapFrame{}))
)

// handlePageFault implements the kernel-mode side of the user page-fault
// upcall: a kernel-mode fault is always fatal, a user-mode fault with no
// registered upcall destroys the task, and otherwise a UTrapFrame is pushed
// onto the task's user exception stack and execution is redirected to the
// upcall entry point.
func handlePageFault(frame *Frame, regs *Regs) {
	faultVA := uint32(cpu.ReadCR2())

	if !frame.UserMode() {
		early.Printf("page fault in kernel mode at 0x%x, eip 0x%x\n", faultVA, frame.EIP)
		panic(frame)
	}

	upcall := CurrentPgFaultUpcallFn()
	if upcall == 0 {
		DestroyCurrentForFaultFn()
		return
	}

	trapTimeESP := CurrentTrapTimeESPFn()
	var dstVA uint32
	if trapTimeESP >= uxStackTop-pageSize && trapTimeESP < uxStackTop {
		// Nested fault: leave a 4-byte gap below the previous esp so
		// the restart stub can tell the two frames apart.
		dstVA = trapTimeESP - utrapFrameSize - 4
	} else {
		dstVA = uxStackTop - utrapFrameSize
	}

	if !CheckExceptionStackWritableFn(dstVA, utrapFrameSize) {
		DestroyCurrentForFaultFn()
		return
	}

	utf := UTrapFrame{
		Regs:      *regs,
		TrapNum:   frame.TrapNum,
		ErrorCode: frame.ErrorCode,
		FaultVA:   faultVA,
		EIP:       frame.EIP,
		CS:        frame.CS,
		EFlags:    frame.EFlags,
		ESP:       frame.ESP,
		SS:        frame.SS,
	}
	WriteUTrapFrameFn(dstVA, &utf)
	SetCurrentEntryFn(upcall, dstVA)
}

func init() {
	HandleVector(PageFault, handlePageFault)
}
