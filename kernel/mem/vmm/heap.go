package vmm

import (
	"github.com/gopheros/exo/kernel"
	"github.com/gopheros/exo/kernel/config"
)

// heapNext is the bump pointer backing EarlyReserveRegion, growing from
// HeapBase towards HeapLim.
var heapNext = uintptr(config.HeapBase)

var errHeapExhausted = &kernel.Error{Module: "vmm", Message: "kernel heap window exhausted"}

// EarlyReserveRegion reserves size bytes of kernel virtual address space for
// the Go runtime's allocator (via goruntime's sysReserve/sysAlloc hooks)
// without mapping any physical memory to it. size must already be page
// aligned; the runtime only ever asks for page-sized or larger regions.
func EarlyReserveRegion(size uintptr) (uintptr, *kernel.Error) {
	if heapNext+size > config.HeapLim {
		return 0, errHeapExhausted
	}
	start := heapNext
	heapNext += size
	return start, nil
}
