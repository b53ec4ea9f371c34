// Package memcheck validates that a user-supplied buffer is actually
// mapped, in the calling task's address space, with the permissions the
// kernel is about to use it with, before the kernel dereferences it. Every
// syscall argument that is a pointer into user memory goes through here
// first; skipping this check is how a user task could make the kernel
// dereference an arbitrary or unmapped address on its behalf.
package memcheck

import (
	"unsafe"

	"github.com/gopheros/exo/kernel/config"
	"github.com/gopheros/exo/kernel/errno"
	"github.com/gopheros/exo/kernel/mem/pmm"
	"github.com/gopheros/exo/kernel/mem/vmm"
	"github.com/gopheros/exo/kernel/task"
)

// Perm describes the access a user buffer must support to pass a check.
type Perm uint8

const (
	// Read requires the range to be present and user-accessible.
	Read Perm = 1 << iota
	// Write additionally requires the range to be writable.
	Write
)

// FaultAddr records the first address CheckRange found invalid, the way the
// reference implementation's user_mem_check leaves the bad address behind
// for its caller to report in a page-fault-style error message. It is only
// meaningful immediately after a CheckRange call that returned false.
var FaultAddr uint32

// CheckRange reports whether every page in [va, va+size) is mapped in t's
// address space with at least the requested permission, entirely below
// UTOP so a buffer can never be used to trick the kernel into touching its
// own high-half mappings.
func CheckRange(t *task.Task, va uint32, size uint32, perm Perm) bool {
	if size == 0 {
		return true
	}

	start := uintptr(va)
	end := start + uintptr(size)
	if end < start || end > config.UTOP {
		FaultAddr = va
		return false
	}

	pageStart := start &^ uintptr(config.PageSize-1)
	for p := pageStart; p < end; p += uintptr(config.PageSize) {
		_, pte, err := vmm.Lookup(t.Root, p)
		bad := err != nil || !pte.HasFlags(vmm.FlagUser) || (perm&Write != 0 && !pte.HasFlags(vmm.FlagRW))
		if bad {
			if p > start {
				FaultAddr = uint32(p)
			} else {
				FaultAddr = va
			}
			return false
		}
	}
	return true
}

// CheckString validates a NUL-terminated user string up to maxLen bytes and
// returns it copied into a fresh kernel-space string, or an error if the
// byte at any scanned offset turns out to be in unmapped or inaccessible
// memory before a NUL is found.
func CheckString(t *task.Task, va uint32, maxLen uint32) (string, errno.Errno) {
	buf := make([]byte, 0, 64)
	for i := uint32(0); i < maxLen; i++ {
		if !CheckRange(t, va+i, 1, Read) {
			return "", errno.Fault
		}
		b := readUserByte(t, va+i)
		if b == 0 {
			return string(buf), errno.Unspecified
		}
		buf = append(buf, b)
	}
	return "", errno.INVAL
}

// readUserByte reads a single byte from a task's address space via the
// kernel's direct map rather than that task's own page directory, so it
// works whether or not t is the currently active address space.
func readUserByte(t *task.Task, va uint32) byte {
	frame, _, err := vmm.Lookup(t.Root, uintptr(va)&^uintptr(config.PageSize-1))
	if err != nil {
		return 0
	}
	off := uintptr(va) & uintptr(config.PageSize-1)
	return *(*byte)(unsafe.Pointer(pmm.KernelAddress(frame) + off))
}
