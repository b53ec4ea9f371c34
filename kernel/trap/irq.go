package trap

import "github.com/gopheros/exo/kernel/kfmt/early"

// Hardware IRQ handling below the LAPIC/IOAPIC programming level is an
// external collaborator; these hooks let kmain wire in the driver calls
// without this package depending on kernel/driver.
var (
	// AckLAPICFn acknowledges the current interrupt at the local APIC.
	AckLAPICFn = func() {}
	// BumpTimeFn advances the system tick counter; only called on CPU 0.
	BumpTimeFn = func() {}
	// CPUIDFn identifies which CPU is handling this trap.
	CPUIDFn = func() int { return 0 }
	// DrainKeyboardFn and DrainSerialFn consume pending device bytes so
	// the IRQ line deasserts.
	DrainKeyboardFn = func() {}
	DrainSerialFn   = func() {}
)

func handleTimer(_ *Frame, _ *Regs) {
	AckLAPICFn()
	if CPUIDFn() == 0 {
		BumpTimeFn()
	}
	RunSchedulerFn()
}

func handleKeyboard(_ *Frame, _ *Regs) {
	AckLAPICFn()
	DrainKeyboardFn()
}

func handleSerial(_ *Frame, _ *Regs) {
	AckLAPICFn()
	DrainSerialFn()
}

func handleSpurious(_ *Frame, _ *Regs) {
	// IRQ 7 can fire spuriously on the legacy PIC; no EOI is sent for it.
}

func handleBreakpoint(frame *Frame, regs *Regs) {
	early.Printf("breakpoint at eip=0x%x\n", frame.EIP)
}

func init() {
	HandleVector(IRQTimer, handleTimer)
	HandleVector(IRQKeyboard, handleKeyboard)
	HandleVector(IRQSerial, handleSerial)
	HandleVector(IRQSpurious, handleSpurious)
	HandleVector(Breakpoint, handleBreakpoint)
}
