// Package ipc is the user-space convenience layer over the raw
// ipc_try_send/ipc_recv system calls: Send retries until the target is
// actually receiving, and Recv packages up the sender/value/permission
// triple the kernel leaves behind for IPCRecv's caller to look up, matching
// lib/ipc.c's ipc_send and ipc_recv in the reference implementation this
// primitive is modelled on.
package ipc

import (
	"github.com/gopheros/exo/kernel/config"
	"github.com/gopheros/exo/kernel/errno"
	"github.com/gopheros/exo/user/syscall"
)

// noPage is passed as the page argument to the kernel when a message carries
// no page transfer; 0 is not available as a sentinel because it is a
// perfectly legal address to map a page at, so UTOP (never a valid user
// page) is used instead, exactly as lib/ipc.c does.
const noPage = uint32(config.UTOP)

// Recv blocks until another task sends this one a message, then returns its
// value. If pg is nonzero, it is offered as the destination for a shared
// page transfer. from and perm, if non-nil, receive the sender's id and the
// permission bits of any page actually transferred (0 if none was).
func Recv(pg uint32, from *uint32, perm *uint32) int32 {
	dst := pg
	if dst == 0 {
		dst = noPage
	}

	r := syscall.IPCRecv(dst)
	if errno.IsError(r) {
		if from != nil {
			*from = 0
		}
		if perm != nil {
			*perm = 0
		}
		return r
	}

	senderID, value, msgPerm := syscall.IPCInfo()
	if from != nil {
		*from = senderID
	}
	if perm != nil {
		*perm = msgPerm
	}
	return int32(value)
}

// Send delivers val (and, if pg is nonzero, the page at pg with the given
// permission) to toID, retrying with a yield between attempts until the
// target is blocked in Recv. Any error other than IPCNotRecv is fatal —
// Send panics, matching lib/ipc.c's ipc_send, which does the same rather
// than return a partial-failure code to its own caller.
func Send(toID, val, pg, perm uint32) {
	va := pg
	if va == 0 {
		va = noPage
	}

	for {
		r := syscall.IPCTrySend(toID, val, va, perm)
		if r == 0 {
			return
		}
		if errno.Errno(r) != errno.IPCNotRecv {
			panic("ipc.Send failed")
		}
		syscall.Yield()
	}
}
