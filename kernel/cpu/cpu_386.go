package cpu

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// Halt stops instruction execution.
func Halt()

// FlushTLBEntry flushes a TLB entry for a particular virtual address.
func FlushTLBEntry(virtAddr uintptr)

// SwitchPDT sets the root page table directory to point to the specified
// physical address and flushes the TLB.
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the physical address of the currently active page table.
func ActivePDT() uintptr

// ReadCR2 returns the contents of the CR2 register, which the CPU loads with
// the faulting linear address whenever a page fault occurs.
func ReadCR2() uint32

// ReadEFlags returns the current value of the EFLAGS register.
func ReadEFlags() uint32

// ClearDirectionFlag clears EFLAGS.DF; the trap-entry path runs it on every
// trap since the ABI guarantees DF clear at a call boundary and some code
// generators assume it.
func ClearDirectionFlag()

// PortIn8 reads a single byte from the given I/O port.
func PortIn8(port uint16) uint8

// PortOut8 writes a single byte to the given I/O port.
func PortOut8(port uint16, value uint8)

// PortIn16 reads a 16-bit word from the given I/O port.
func PortIn16(port uint16) uint16

// PortOut16 writes a 16-bit word to the given I/O port.
func PortOut16(port uint16, value uint16)

// PortInsl reads count 32-bit words from the given I/O port into the buffer
// starting at addr. It is used by the IDE driver for bulk sector transfers.
func PortInsl(port uint16, addr uintptr, count int)

// PortOutsl writes count 32-bit words from the buffer starting at addr to the
// given I/O port.
func PortOutsl(port uint16, addr uintptr, count int)
