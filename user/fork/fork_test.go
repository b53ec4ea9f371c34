package fork

import (
	"testing"

	ksyscall "github.com/gopheros/exo/kernel/syscall"
	"github.com/gopheros/exo/kernel/trap"
	"github.com/gopheros/exo/user/syscall"
)

func withFakePageFlags(t *testing.T, present, writable, cow, share bool) {
	t.Helper()
	old := pageFlagsFn
	pageFlagsFn = func(va uint32) (bool, bool, bool, bool) { return present, writable, cow, share }
	t.Cleanup(func() { pageFlagsFn = old })
}

func withFakeUpcallAddr(t *testing.T, addr uint32) {
	t.Helper()
	old := upcallEntryAddrFn
	upcallEntryAddrFn = func() uint32 { return addr }
	t.Cleanup(func() { upcallEntryAddrFn = old })
}

// recordingTrap records every system call made through it, in order, and
// answers each one with success.
type recordingTrap struct {
	calls []call
}

type call struct {
	num            uint32
	a1, a2, a3, a4 uint32
}

func (r *recordingTrap) trap(num, a1, a2, a3, a4, a5 uint32) uint32 {
	r.calls = append(r.calls, call{num, a1, a2, a3, a4})
	return 0
}

func withRecordingTrap(t *testing.T) *recordingTrap {
	t.Helper()
	r := &recordingTrap{}
	restore := syscall.SetTrapFn(r.trap)
	t.Cleanup(restore)
	return r
}

func TestDuppageSharedPageMapsVerbatim(t *testing.T) {
	withFakePageFlags(t, true, false, false, true)
	rt := withRecordingTrap(t)

	duppage(5, 0x1000)

	if len(rt.calls) != 1 || rt.calls[0].num != uint32(ksyscall.PageMap) {
		t.Fatalf("expected a single PageMap call, got %+v", rt.calls)
	}
	if rt.calls[0].a3 != 5 {
		t.Fatalf("expected destination task 5, got %d", rt.calls[0].a3)
	}
}

func TestDuppageWritablePageRemapsCOWTwice(t *testing.T) {
	withFakePageFlags(t, true, true, false, false)
	rt := withRecordingTrap(t)

	duppage(5, 0x1000)

	if len(rt.calls) != 2 {
		t.Fatalf("expected two PageMap calls (child + self), got %d", len(rt.calls))
	}
	if rt.calls[0].a3 != 5 {
		t.Fatalf("expected first remap to target child 5, got %d", rt.calls[0].a3)
	}
	if rt.calls[1].a3 != 0 {
		t.Fatalf("expected second remap to target self (0), got %d", rt.calls[1].a3)
	}
}

func TestDuppageReadOnlyPageMapsOnceWithoutCOW(t *testing.T) {
	withFakePageFlags(t, true, false, false, false)
	rt := withRecordingTrap(t)

	duppage(5, 0x1000)

	if len(rt.calls) != 1 {
		t.Fatalf("expected one PageMap call, got %d", len(rt.calls))
	}
	if rt.calls[0].a4&pteCOW != 0 {
		t.Fatalf("expected no COW bit on a read-only duppage, got perm %#x", rt.calls[0].a4)
	}
}

func TestDuppageSkipsUnmappedPages(t *testing.T) {
	withFakePageFlags(t, false, false, false, false)
	rt := withRecordingTrap(t)

	duppage(5, 0x1000)

	if len(rt.calls) != 0 {
		t.Fatalf("expected no syscalls for an unmapped page, got %+v", rt.calls)
	}
}

func TestPgfaultPanicsOnNonCOWFault(t *testing.T) {
	withFakePageFlags(t, true, true, false, false)

	defer func() {
		if recover() == nil {
			t.Fatal("expected pgfault to panic on a non-COW page")
		}
	}()

	pgfault(&trap.UTrapFrame{ErrorCode: 0x2, FaultVA: 0x2000})
}

func TestForkChildReturnsZero(t *testing.T) {
	withFakeUpcallAddr(t, 0xDEADBEEF)
	restore := syscall.SetTrapFn(func(num, a1, a2, a3, a4, a5 uint32) uint32 { return 0 })
	defer restore()
	defer func() { handlerFn = nil }()

	if got := Fork(); got != 0 {
		t.Fatalf("expected child to see 0, got %d", got)
	}
}

func TestForkParentGetsChildIDAndMarksRunnable(t *testing.T) {
	withFakeUpcallAddr(t, 0xDEADBEEF)
	withFakePageFlags(t, false, false, false, false)

	const childID = 7
	rt := &recordingTrap{}
	restore := syscall.SetTrapFn(func(num, a1, a2, a3, a4, a5 uint32) uint32 {
		rt.calls = append(rt.calls, call{num, a1, a2, a3, a4})
		if num == uint32(ksyscall.Exofork) {
			return childID
		}
		return 0
	})
	defer restore()
	defer func() { handlerFn = nil }()

	got := Fork()
	if got != childID {
		t.Fatalf("expected parent to see child id %d, got %d", childID, got)
	}

	found := false
	for _, c := range rt.calls {
		if c.num == uint32(ksyscall.EnvSetStatus) && c.a1 == childID && c.a2 == runnable {
			found = true
		}
	}
	if !found {
		t.Fatal("expected Fork to mark the child runnable")
	}
}

