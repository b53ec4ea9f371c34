package fs

import (
	"github.com/gopheros/exo/kernel/config"
	"github.com/gopheros/exo/kernel/cpu"
)

const sectSize = uint32(config.SectSize)

// Polled-PIO ATA PIO driver for the primary IDE channel, sector-addressed
// via LBA28. There is no interrupt handling here on purpose: every access
// busy-waits on the status register, the same synchronous protocol
// fs/ide.c's ide_read/ide_write implement, just without the disk-1 probe
// (this kernel always talks to drive 0).
const (
	ideIOBase = 0x1F0
	ideCtl    = 0x3F6

	regData    = ideIOBase + 0
	regError   = ideIOBase + 1
	regSectCnt = ideIOBase + 2
	regLBALow  = ideIOBase + 3
	regLBAMid  = ideIOBase + 4
	regLBAHigh = ideIOBase + 5
	regDrvHead = ideIOBase + 6
	regStatus  = ideIOBase + 7
	regCommand = ideIOBase + 7

	statusBSY = 0x80
	statusDRQ = 0x08
	statusERR = 0x01

	cmdReadSectors  = 0x20
	cmdWriteSectors = 0x30
)

func ideWait() {
	for cpu.PortIn8(regStatus)&statusBSY != 0 {
	}
}

func ideSelect(lba uint32, sectorCount uint8) {
	cpu.PortOut8(regSectCnt, sectorCount)
	cpu.PortOut8(regLBALow, uint8(lba))
	cpu.PortOut8(regLBAMid, uint8(lba>>8))
	cpu.PortOut8(regLBAHigh, uint8(lba>>16))
	cpu.PortOut8(regDrvHead, 0xE0|uint8(lba>>24&0x0F))
}

// ideReadSectors reads count sectors starting at lba into dst, a buffer of
// at least count*config.SectSize bytes laid out as config.SectSize/4
// 32-bit words per sector.
func ideReadSectors(lba uint32, dst uintptr, count uint8) {
	ideWait()
	ideSelect(lba, count)
	cpu.PortOut8(regCommand, cmdReadSectors)

	for i := uint8(0); i < count; i++ {
		ideWait()
		for cpu.PortIn8(regStatus)&statusDRQ == 0 {
		}
		cpu.PortInsl(regData, dst, int(sectSize/4))
		dst += uintptr(sectSize)
	}
}

// ideWriteSectors writes count sectors starting at lba from src.
func ideWriteSectors(lba uint32, src uintptr, count uint8) {
	ideWait()
	ideSelect(lba, count)
	cpu.PortOut8(regCommand, cmdWriteSectors)

	for i := uint8(0); i < count; i++ {
		ideWait()
		for cpu.PortIn8(regStatus)&statusDRQ == 0 {
		}
		cpu.PortOutsl(regData, src, int(sectSize/4))
		src += uintptr(sectSize)
	}
}
