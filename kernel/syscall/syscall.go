// Package syscall implements the kernel side of the system-call ABI: a flat
// dispatch table keyed by call number, with every pointer argument run
// through kernel/memcheck before the kernel acts on it. kmain wires
// trap.SyscallFn to Dispatch so a raw int 0x30 from user mode ends up here.
package syscall

import (
	"unsafe"

	"github.com/gopheros/exo/kernel/config"
	"github.com/gopheros/exo/kernel/errno"
	"github.com/gopheros/exo/kernel/ipc"
	"github.com/gopheros/exo/kernel/mem/pmm"
	"github.com/gopheros/exo/kernel/mem/vmm"
	"github.com/gopheros/exo/kernel/memcheck"
	"github.com/gopheros/exo/kernel/task"
	"github.com/gopheros/exo/kernel/trap"
)

// Number identifies a system call; values are part of the user/kernel ABI
// and must never be renumbered once a libc depends on them.
type Number uint32

const (
	CPuts Number = iota
	CGetc
	GetEnvID
	EnvDestroy
	Yield
	Exofork
	EnvSetStatus
	EnvSetPgfaultUpcall
	EnvSetTrapframe
	PageAlloc
	PageMap
	PageUnmap
	IPCTrySend
	IPCRecv
)

// consoleWriteFn and consoleReadFn are wired in by kmain to the tty driver;
// this package only validates the buffer, it doesn't own the console.
var (
	consoleWriteFn = func(s string) {}
	consoleReadFn  = func() int32 { return -1 }
)

// SetConsole overrides the console hooks used by cputs/cgetc.
func SetConsole(write func(string), read func() int32) {
	consoleWriteFn = write
	consoleReadFn = read
}

// validPerm reports whether perm only sets bits a user task is allowed to
// request directly: PRESENT, USER, WRITABLE, and the two software AVAIL
// bits, the same PTE_SYSCALL mask the reference implementation's
// sys_page_alloc/sys_page_map check against. A caller must name USER and
// PRESENT itself — Insert already ORs PRESENT in on every mapping it makes,
// but rejecting it here would make permUser/permUserWrite, the permission
// words every user-space caller actually sends, invalid.
func validPerm(perm uint32) bool {
	const allowed = uint32(vmm.FlagPresent | vmm.FlagUser | vmm.FlagRW | vmm.FlagCopyOnWrite | vmm.FlagShare)
	return perm&^allowed == 0
}

func allocFrame() pmm.Frame { return pmm.Alloc(pmm.Zero) }

// resolveTarget implements "permission to name a task": id 0 means the
// caller itself; otherwise the target must be the caller or the caller's
// child.
func resolveTarget(caller *task.Task, id uint32) (*task.Task, errno.Errno) {
	if id == 0 {
		return caller, errno.Unspecified
	}
	t, err := task.Lookup(task.ID(id))
	if err != nil {
		return nil, errno.BadEnv
	}
	if t != caller && t.ParentID != caller.ID {
		return nil, errno.BadEnv
	}
	return t, errno.Unspecified
}

// Dispatch runs one system call on behalf of the currently running task and
// returns the value to load into eax. num/a1..a5 arrive in eax/edx/ecx/ebx
// edi/esi per the ABI; out-of-range numbers return -INVAL.
func Dispatch(num, a1, a2, a3, a4, a5 uint32) uint32 {
	caller := task.Current()
	r := dispatch(caller, Number(num), a1, a2, a3, a4, a5)
	return uint32(r)
}

func dispatch(caller *task.Task, num Number, a1, a2, a3, a4, a5 uint32) int32 {
	switch num {
	case CPuts:
		return sysCPuts(caller, a1, a2)
	case CGetc:
		return consoleReadFn()
	case GetEnvID:
		return int32(caller.ID)
	case EnvDestroy:
		return sysEnvDestroy(caller, a1)
	case Yield:
		// Demoting the caller out of Running makes trap.CurrentIsRunningFn
		// false, so Trap calls RunSchedulerFn instead of resuming it.
		task.SetStatus(caller, task.Runnable)
		return 0
	case Exofork:
		return sysExofork(caller)
	case EnvSetStatus:
		return sysEnvSetStatus(caller, a1, a2)
	case EnvSetPgfaultUpcall:
		return sysEnvSetPgfaultUpcall(caller, a1, a2)
	case EnvSetTrapframe:
		return sysEnvSetTrapframe(caller, a1, a2)
	case PageAlloc:
		return sysPageAlloc(caller, a1, a2, a3)
	case PageMap:
		return sysPageMap(caller, a1, a2, a3, a4, a5)
	case PageUnmap:
		return sysPageUnmap(caller, a1, a2)
	case IPCTrySend:
		return sysIPCTrySend(caller, a1, a2, a3, a4)
	case IPCRecv:
		return sysIPCRecv(caller, a1)
	default:
		return int32(errno.INVAL)
	}
}

func sysCPuts(caller *task.Task, va, n uint32) int32 {
	if !memcheck.CheckRange(caller, va, n, memcheck.Read) {
		return int32(errno.Fault)
	}
	consoleWriteFn(string(caller.ReadBytes(va, n)))
	return 0
}

func sysEnvDestroy(caller *task.Task, id uint32) int32 {
	t, e := resolveTarget(caller, id)
	if e != errno.Unspecified {
		return int32(e)
	}
	task.Destroy(t)
	return 0
}

func sysExofork(caller *task.Task) int32 {
	child, err := task.Alloc(caller.ID)
	if err != nil {
		return int32(errno.NoFreeEnv)
	}
	child.Regs = caller.Regs
	child.Frame = caller.Frame
	child.Regs.EAX = 0 // the child observes exofork returning 0
	task.SetStatus(child, task.NotRunnable)
	return int32(child.ID)
}

func sysEnvSetStatus(caller *task.Task, id, status uint32) int32 {
	t, e := resolveTarget(caller, id)
	if e != errno.Unspecified {
		return int32(e)
	}
	s := task.Status(status)
	if s != task.Runnable && s != task.NotRunnable {
		return int32(errno.INVAL)
	}
	task.SetStatus(t, s)
	return 0
}

func sysEnvSetPgfaultUpcall(caller *task.Task, id, entry uint32) int32 {
	t, e := resolveTarget(caller, id)
	if e != errno.Unspecified {
		return int32(e)
	}
	task.SetPgFaultUpcall(t, entry)
	return 0
}

// rawTrapframe mirrors the layout a user task pushes for env_set_trapframe:
// general registers followed by eip/cs/eflags/esp/ss, the same order the
// resume stub expects to pop them back off in.
type rawTrapframe struct {
	Regs             trap.Regs
	EIP, CS, EFlags  uint32
	ESP, SS          uint32
}

var frameSize = uint32(unsafe.Sizeof(rawTrapframe{}))

func sysEnvSetTrapframe(caller *task.Task, id, tfVA uint32) int32 {
	t, e := resolveTarget(caller, id)
	if e != errno.Unspecified {
		return int32(e)
	}
	if !memcheck.CheckRange(caller, tfVA, frameSize, memcheck.Read) {
		return int32(errno.Fault)
	}
	buf := caller.ReadBytes(tfVA, frameSize)
	raw := (*rawTrapframe)(unsafe.Pointer(&buf[0]))

	// Forcing CPL=3, IF set and IOPL clear: a user task may not hand
	// itself kernel privilege or disable interrupts on resume.
	t.Regs = raw.Regs
	t.Frame.EIP = raw.EIP
	t.Frame.CS = 0x1B
	t.Frame.EFlags = (raw.EFlags | 0x200) &^ 0x3000
	t.Frame.ESP = raw.ESP
	t.Frame.SS = 0x23
	return 0
}

func sysPageAlloc(caller *task.Task, id, va, perm uint32) int32 {
	t, e := resolveTarget(caller, id)
	if e != errno.Unspecified {
		return int32(e)
	}
	if uintptr(va) >= config.UTOP || va&uint32(config.PageSize-1) != 0 {
		return int32(errno.INVAL)
	}
	if !validPerm(perm) {
		return int32(errno.INVAL)
	}
	frame := pmm.Alloc(pmm.Zero)
	if !frame.Valid() {
		return int32(errno.NoMem)
	}
	flags := vmm.PageTableEntryFlag(perm)
	if err := vmm.Insert(t.Root, frame, uintptr(va), flags, allocFrame); err != nil {
		pmm.Free(frame)
		return int32(errno.NoMem)
	}
	return 0
}

func sysPageMap(caller *task.Task, srcID, srcVA, dstID, dstVA, perm uint32) int32 {
	src, e := resolveTarget(caller, srcID)
	if e != errno.Unspecified {
		return int32(e)
	}
	dst, e := resolveTarget(caller, dstID)
	if e != errno.Unspecified {
		return int32(e)
	}
	if uintptr(srcVA) >= config.UTOP || srcVA&uint32(config.PageSize-1) != 0 {
		return int32(errno.INVAL)
	}
	if uintptr(dstVA) >= config.UTOP || dstVA&uint32(config.PageSize-1) != 0 {
		return int32(errno.INVAL)
	}
	if !validPerm(perm) {
		return int32(errno.INVAL)
	}
	frame, srcPTE, err := vmm.Lookup(src.Root, uintptr(srcVA))
	if err != nil {
		return int32(errno.INVAL)
	}
	if vmm.PageTableEntryFlag(perm)&vmm.FlagRW != 0 && !srcPTE.HasFlags(vmm.FlagRW) {
		return int32(errno.INVAL)
	}
	flags := vmm.PageTableEntryFlag(perm)
	if err := vmm.Insert(dst.Root, frame, uintptr(dstVA), flags, allocFrame); err != nil {
		return int32(errno.NoMem)
	}
	return 0
}

func sysPageUnmap(caller *task.Task, id, va uint32) int32 {
	t, e := resolveTarget(caller, id)
	if e != errno.Unspecified {
		return int32(e)
	}
	if uintptr(va) >= config.UTOP || va&uint32(config.PageSize-1) != 0 {
		return int32(errno.INVAL)
	}
	vmm.Remove(t.Root, uintptr(va))
	return 0
}

func sysIPCTrySend(caller *task.Task, id, value, srcVA, perm uint32) int32 {
	// srcVA == UTOP is the noPage sentinel user/ipc.Send passes when no page
	// is offered, matching sys_ipc_try_send's "srcva < UTOP" check in the
	// reference implementation — anything at or above UTOP, including the
	// sentinel itself, means no page transfer is being attempted.
	if uintptr(srcVA) < config.UTOP {
		if srcVA&uint32(config.PageSize-1) != 0 {
			return int32(errno.INVAL)
		}
		if !validPerm(perm) {
			return int32(errno.INVAL)
		}
		_, srcPTE, err := vmm.Lookup(caller.Root, uintptr(srcVA))
		if err != nil {
			return int32(errno.INVAL)
		}
		if vmm.PageTableEntryFlag(perm)&vmm.FlagRW != 0 && !srcPTE.HasFlags(vmm.FlagRW) {
			return int32(errno.INVAL)
		}
	}
	r := ipc.TrySend(caller, task.ID(id), value, srcVA, vmm.PageTableEntryFlag(perm))
	return int32(r)
}

func sysIPCRecv(caller *task.Task, dstVA uint32) int32 {
	if uintptr(dstVA) < config.UTOP && dstVA&uint32(config.PageSize-1) != 0 {
		return int32(errno.INVAL)
	}
	ipc.Recv(caller, dstVA)
	return 0
}
