// Package trap wires the IDT, dispatches traps to the right handler, and
// implements the user-level page-fault upcall mechanism that copy-on-write
// fork is built on.
package trap

import "github.com/gopheros/exo/kernel/kfmt"

// Regs is the block of general-purpose registers saved by the kernel's
// pushal trap-entry stub.
type Regs struct {
	EDI, ESI, EBP uint32
	EBX, EDX, ECX, EAX uint32
}

// Print writes a register dump to the active console, in the same
// two-column layout used throughout this kernel's diagnostic output.
func (r *Regs) Print() {
	kfmt.Printf("EAX = %8x EBX = %8x\n", r.EAX, r.EBX)
	kfmt.Printf("ECX = %8x EDX = %8x\n", r.ECX, r.EDX)
	kfmt.Printf("ESI = %8x EDI = %8x\n", r.ESI, r.EDI)
	kfmt.Printf("EBP = %8x\n", r.EBP)
}

// Frame is the hardware-defined part of a trap: the fields the CPU pushes on
// a privilege-level change, plus the trap number and (possibly synthetic)
// error code the assembly entry stub pushes ahead of them.
type Frame struct {
	TrapNum   uint32
	ErrorCode uint32
	EIP       uint32
	CS        uint32
	EFlags    uint32
	ESP       uint32
	SS        uint32
}

// Print writes a trap-frame dump to the active console.
func (f *Frame) Print() {
	kfmt.Printf("trap %2d err %8x\n", f.TrapNum, f.ErrorCode)
	kfmt.Printf("EIP = %8x CS  = %8x\n", f.EIP, f.CS)
	kfmt.Printf("ESP = %8x SS  = %8x\n", f.ESP, f.SS)
	kfmt.Printf("EFL = %8x\n", f.EFlags)
}

// UserMode reports whether this frame was taken from CPL 3 — the low two
// bits of the saved CS selector are set.
func (f *Frame) UserMode() bool {
	return f.CS&0x3 == 0x3
}

// UTrapFrame is the structure the page-fault handler synthesises on a task's
// user exception stack: the general registers, segment selectors, the
// faulting virtual address, and the trap-time machine state, from low to
// high address exactly as the user-mode restart stub expects to pop them.
type UTrapFrame struct {
	Regs               Regs
	ES, DS             uint32
	TrapNum, ErrorCode uint32
	FaultVA            uint32
	EIP, CS, EFlags    uint32
	ESP, SS            uint32
}
