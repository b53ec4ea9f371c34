package task

import (
	"unsafe"

	"github.com/gopheros/exo/kernel/mem"
	"github.com/gopheros/exo/kernel/mem/pmm"
	"github.com/gopheros/exo/kernel/mem/vmm"
)

// ReadBytes copies n bytes out of t's address space starting at va, via the
// kernel's direct map rather than t's own page tables, so it works whether
// or not t is the currently active address space. The caller is expected to
// have already validated the range with kernel/memcheck; a page that turns
// out to be unmapped ends the copy there, and the rest of the n-byte result
// stays zero.
func (t *Task) ReadBytes(va uint32, n uint32) []byte {
	out := make([]byte, n)
	t.copyBytes(va, out, false)
	return out
}

// WriteBytes copies data into t's address space starting at va, the
// write-side counterpart of ReadBytes.
func (t *Task) WriteBytes(va uint32, data []byte) {
	t.copyBytes(va, data, true)
}

// copyBytes walks buf against t's page tables one page at a time, since the
// range may span a page table boundary. toUser selects the copy direction:
// false reads from t into buf, true writes buf into t.
func (t *Task) copyBytes(va uint32, buf []byte, toUser bool) {
	done := uint32(0)
	n := uint32(len(buf))
	for done < n {
		cur := va + done
		frame, _, err := vmm.Lookup(t.Root, uintptr(cur)&^uintptr(mem.PageSize-1))
		if err != nil {
			return
		}
		off := uintptr(cur) & uintptr(mem.PageSize-1)
		chunk := uint32(mem.PageSize) - uint32(off)
		if chunk > n-done {
			chunk = n - done
		}
		kaddr := pmm.KernelAddress(frame) + off
		if toUser {
			mem.Memcopy(uintptr(unsafe.Pointer(&buf[done])), kaddr, mem.Size(chunk))
		} else {
			mem.Memcopy(kaddr, uintptr(unsafe.Pointer(&buf[done])), mem.Size(chunk))
		}
		done += chunk
	}
}
