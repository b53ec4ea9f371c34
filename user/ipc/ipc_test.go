package ipc

import (
	"testing"

	"github.com/gopheros/exo/kernel/config"
	"github.com/gopheros/exo/kernel/errno"
	ksyscall "github.com/gopheros/exo/kernel/syscall"
	"github.com/gopheros/exo/user/syscall"
)

func TestNoPageSentinelIsUTOP(t *testing.T) {
	if noPage != uint32(config.UTOP) {
		t.Fatalf("expected noPage to equal UTOP (%d), got %d", config.UTOP, noPage)
	}
}

func TestRecvReturnsErrorWithoutConsultingIPCInfo(t *testing.T) {
	restore := syscall.SetTrapFn(func(num, a1, a2, a3, a4, a5 uint32) uint32 {
		if num != uint32(ksyscall.IPCRecv) {
			t.Fatalf("expected IPCRecv, got call number %d", num)
		}
		r := int32(errno.Fault)
		return uint32(r)
	})
	defer restore()

	from, perm := uint32(9), uint32(9)
	r := Recv(0, &from, &perm)

	if r != int32(errno.Fault) {
		t.Fatalf("expected errno.Fault, got %d", r)
	}
	if from != 0 || perm != 0 {
		t.Fatalf("expected out-params zeroed on error, got from=%d perm=%d", from, perm)
	}
}

func TestSendRetriesUntilReceiverIsBlocked(t *testing.T) {
	attempts := 0
	restore := syscall.SetTrapFn(func(num, a1, a2, a3, a4, a5 uint32) uint32 {
		if num != uint32(ksyscall.IPCTrySend) {
			// Send yields between retries; let that call through untouched.
			return 0
		}
		attempts++
		if attempts < 3 {
			r := int32(errno.IPCNotRecv)
			return uint32(r)
		}
		return 0
	})
	defer restore()

	Send(5, 42, 0, 0)

	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestSendPanicsOnFatalError(t *testing.T) {
	restore := syscall.SetTrapFn(func(num, a1, a2, a3, a4, a5 uint32) uint32 {
		r := int32(errno.BadEnv)
		return uint32(r)
	})
	defer restore()

	defer func() {
		if recover() == nil {
			t.Fatal("expected Send to panic on a non-IPCNotRecv error")
		}
	}()

	Send(5, 42, 0, 0)
}
