// Package lock implements the kernel's single big lock: the mutex held by
// whichever CPU is currently executing kernel-mode code that touches shared
// state (the task table, the free-frame list, the IDT). It also tracks the
// small amount of per-CPU state (whether a CPU is halted) that every other
// kernel package needs TLS-like access
// to without there being real thread-local storage.
package lock

import "sync/atomic"

// BigLock is a spinlock: a CPU trying to Acquire it busy-waits until the
// holder calls Release. Re-acquiring a lock already held by the calling CPU
// deadlocks, the same as a non-reentrant mutex.
type BigLock struct {
	state uint32
}

// Acquire blocks until the lock is free and then takes it.
func (l *BigLock) Acquire() {
	for !atomic.CompareAndSwapUint32(&l.state, 0, 1) {
	}
}

// TryAcquire attempts to take the lock without blocking.
func (l *BigLock) TryAcquire() bool {
	return atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

// Release relinquishes a held lock. Calling it while the lock is free has no
// effect.
func (l *BigLock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// Held reports whether the lock is currently held by some CPU. It exists
// for diagnostics and assertions only; it is not safe to branch on.
func (l *BigLock) Held() bool {
	return atomic.LoadUint32(&l.state) != 0
}

// Big is the single kernel lock; every kernel-mode entry path acquires it on
// the way in (trap.AcquireBigLockFn) and releases it on the way out to user
// mode or into the halt loop.
var Big BigLock

// CPUState is the small set of per-CPU fields kept outside the task table:
// whether this CPU is idle-looping in the scheduler. Packages that need
// per-CPU state of their own, such as kernel/task's current task, keep it in
// their own arrays indexed by CurrentCPUFn, rather than this package knowing
// about kernel/task.
type CPUState struct {
	Halted bool
}

var cpus [maxCPUs]CPUState

// maxCPUs mirrors config.NCPU; it is duplicated here as a literal instead of
// importing kernel/config to keep this package at the bottom of the
// dependency graph, where every other kernel package can import it freely.
const maxCPUs = 8

// CurrentCPUFn identifies which CPU is running the calling goroutine. Nothing
// reassigns it, so it always reports the boot processor, 0.
var CurrentCPUFn = func() int { return 0 }

// CPU returns the calling CPU's state.
func CPU() *CPUState { return &cpus[CurrentCPUFn()] }
