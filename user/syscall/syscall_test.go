package syscall

import (
	"testing"

	ksyscall "github.com/gopheros/exo/kernel/syscall"
)

// fakeTrap records the last call made through trapFn and returns a
// caller-supplied result, standing in for the real int 0x30 trampoline with
// the same package-level substitution idiom kernel/mem/vmm uses for its
// CPU-touching calls.
type fakeTrap struct {
	gotNum uint32
	gotA   [5]uint32
	result uint32
}

func (f *fakeTrap) trap(num, a1, a2, a3, a4, a5 uint32) uint32 {
	f.gotNum = num
	f.gotA = [5]uint32{a1, a2, a3, a4, a5}
	return f.result
}

func withFakeTrap(t *testing.T, result uint32) *fakeTrap {
	t.Helper()
	f := &fakeTrap{result: result}
	old := trapFn
	trapFn = f.trap
	t.Cleanup(func() { trapFn = old })
	return f
}

func TestCallPacksArgumentsAndNumber(t *testing.T) {
	f := withFakeTrap(t, 0)

	r := call(ksyscall.PageMap, 1, 2, 3, 4, 5)
	if r != 0 {
		t.Fatalf("expected 0, got %d", r)
	}
	if f.gotNum != uint32(ksyscall.PageMap) {
		t.Fatalf("expected call number %d, got %d", ksyscall.PageMap, f.gotNum)
	}
	if f.gotA != [5]uint32{1, 2, 3, 4, 5} {
		t.Fatalf("unexpected argument packing: %+v", f.gotA)
	}
}

func TestCallSurfacesNegativeResultAsError(t *testing.T) {
	result := int32(-4)
	withFakeTrap(t, uint32(result))

	if r := EnvDestroy(7); r != -4 {
		t.Fatalf("expected -4, got %d", r)
	}
}

func TestYieldIssuesYieldSyscall(t *testing.T) {
	f := withFakeTrap(t, 0)

	Yield()

	if f.gotNum != uint32(ksyscall.Yield) {
		t.Fatalf("expected Yield call number %d, got %d", ksyscall.Yield, f.gotNum)
	}
}

func TestGetEnvIDReturnsTrapResult(t *testing.T) {
	withFakeTrap(t, 42)

	if got := GetEnvID(); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}
