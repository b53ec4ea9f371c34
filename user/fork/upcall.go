package fork

import "github.com/gopheros/exo/kernel/trap"

// upcallEntry is the trampoline the kernel redirects a task's EIP to after
// handlePageFault has pushed a UTrapFrame onto the exception stack: it reads
// the frame back off the top of the exception stack, calls dispatchUpcall,
// and on return either restarts the faulting instruction on the original
// stack (normal fault) or resumes one frame lower (nested fault, leaving the
// 4-byte gap trap/pagefault.go leaves between the two), the same two-case
// restart pfentry.S implements for lib/pgfault.c's _pgfault_upcall.
func upcallEntry()

// upcallEntryAddr returns the linear address of upcallEntry, the value
// registered with the kernel via sys_env_set_pgfault_upcall. Fetching it is
// itself implemented in assembly (there is no portable way to take the
// address of a Go function from Go code) rather than reflect.ValueOf(fn)
// .Pointer(), which this codebase never relies on anywhere else.
func upcallEntryAddr() uint32

// dispatchUpcall is called by upcallEntry with the UTrapFrame it found on
// the exception stack; it exists so the trampoline's assembly has a single,
// stable Go symbol to call rather than needing to know about handlerFn
// itself.
func dispatchUpcall(utf *trap.UTrapFrame) {
	h := handlerFn
	if h == nil {
		panic("fork: page fault with no handler registered")
	}
	h(utf)
}
