package trap

// SyscallFn dispatches a system call by number; kmain sets it to
// kernel/syscall.Dispatch at boot. The call number arrives in EAX, arguments in EDX, ECX, EBX, EDI,
// ESI, and the result is written back into EAX.
var SyscallFn = func(num, a1, a2, a3, a4, a5 uint32) uint32 { return 0 }

func handleSyscall(frame *Frame, regs *Regs) {
	regs.EAX = SyscallFn(regs.EAX, regs.EDX, regs.ECX, regs.EBX, regs.EDI, regs.ESI)
}

func init() {
	HandleVector(Syscall, handleSyscall)
}
