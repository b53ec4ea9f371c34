package trap

// Handler is invoked once a trap has been dispatched to its vector's
// registered handler, with the saved registers and hardware frame of the
// interrupted task.
type Handler func(frame *Frame, regs *Regs)

var handlers [256]Handler

// installIDTFn and loadIDTFn are swapped out by tests; in the kernel build
// they are implemented in assembly and touch the live IDT register.
var (
	installIDTFn = installIDT
	loadIDTFn    = loadIDT
)

// installIDT populates the IDT with gate descriptors for every vector this
// package knows how to dispatch, with PageFault/GPFault/timer/IRQ vectors at
// DPLKernel and Breakpoint/Syscall at DPLUser so user mode may enter them
// directly via int.
func installIDT()

// loadIDT loads the IDT register (lidt) with the table installIDT built.
func loadIDT()

// HandleVector registers handler for the given vector. Calling it again for
// the same vector replaces the previous handler.
func HandleVector(v Vector, handler Handler) {
	handlers[v] = handler
}

// dispatch is called by the common assembly trap-entry stub once it has
// pushed Regs and Frame onto the kernel stack; it is the single Go entry
// point every IDT gate ultimately reaches.
func dispatch(frame *Frame, regs *Regs) {
	if h := handlers[frame.TrapNum]; h != nil {
		h(frame, regs)
		return
	}
	unhandled(frame, regs)
}

// Init builds and loads the IDT.
func Init() {
	installIDTFn()
	loadIDTFn()
}
