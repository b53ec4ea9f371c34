// Package fs is the user-space file server: a disk block cache populated
// lazily through page faults, a free-block bitmap, and the directory and
// file operations built on top of them. It is grounded throughout on
// fs/bc.c and fs/fs.c in the reference implementation this server's on-disk
// format and block-cache design are taken from.
package fs

import (
	"github.com/gopheros/exo/kernel/config"
	"github.com/gopheros/exo/kernel/errno"
	"github.com/gopheros/exo/kernel/trap"
	"github.com/gopheros/exo/user/fork"
	"github.com/gopheros/exo/user/syscall"
)

const (
	diskMap  = uint32(config.DiskMap)
	diskSize = uint32(config.DiskSize)
	blkSize  = uint32(config.BlkSize)
	blkSects = uint32(config.BlkSects)
)

// nblocks is the disk's block count as recorded in the superblock; it is 0
// until Init has read the superblock in, and bounds-checks every diskAddr
// and bcPageFault call once it is known.
var nblocks uint32

// diskAddr returns the virtual address of blockno within the block cache
// window. Block 0 is the boot sector and is never cached, matching
// fs/bc.c's diskaddr.
func diskAddr(blockno uint32) uint32 {
	if blockno == 0 || (nblocks != 0 && blockno >= nblocks) {
		panic("fs: bad block number")
	}
	return diskMap + blockno*blkSize
}

// vaIsMapped reports whether va is currently backed by a frame in the
// caller's address space.
func vaIsMapped(va uint32) bool {
	present, _, _, _ := syscall.PageFlags(va)
	return present
}

// vaIsDirty reports whether the page mapping va has its hardware dirty bit
// set, i.e. has been written to since it was last read in or flushed.
func vaIsDirty(va uint32) bool {
	return syscall.PageDirty(va)
}

// bcPageFault is the block cache's page-fault handler: a fault inside the
// disk-cache window is satisfied by allocating a frame and reading the
// corresponding block in from disk, matching fs/bc.c's bc_pgfault. Faults
// outside the window are not this server's to handle.
func bcPageFault(utf *trap.UTrapFrame) {
	va := utf.FaultVA
	if va < diskMap || va >= diskMap+diskSize {
		panic("fs: page fault outside block cache")
	}

	blockno := (va - diskMap) / blkSize
	if nblocks != 0 && blockno >= nblocks {
		panic("fs: fault on non-existent block")
	}

	pageVA := va &^ (blkSize - 1)
	id := syscall.GetEnvID()
	if r := syscall.PageAlloc(id, pageVA, permUserWrite); errno.IsError(r) {
		panic("fs: bc_pgfault page_alloc failed")
	}

	readBlock(blockno, pageVA)

	// Clear the dirty bit picked up by the read: re-map the page with its
	// existing permissions by way of a self page_map, exactly the
	// convention fs/bc.c's bc_pgfault uses.
	if r := syscall.PageMap(id, pageVA, id, pageVA, permUserWrite); errno.IsError(r) {
		panic("fs: bc_pgfault dirty-clear remap failed")
	}

	if bitmapReady() && blockIsFree(blockno) {
		panic("fs: reading free block")
	}
}

// readBlock loads one block's worth of sectors from disk into the frame
// mapped at va.
func readBlock(blockno uint32, va uint32) {
	ideReadSectors(blockno*blkSects, uintptr(va), uint8(blkSects))
}

// writeBlock writes one block's worth of sectors from the frame mapped at
// va back to disk.
func writeBlock(blockno uint32, va uint32) {
	ideWriteSectors(blockno*blkSects, uintptr(va), uint8(blkSects))
}

// flushBlock writes the block mapped at addr back to disk and clears its
// dirty bit, doing nothing if the block is not cached or is already clean.
// Matches fs/bc.c's flush_block.
func flushBlock(addr uint32) {
	if !vaIsMapped(addr) || !vaIsDirty(addr) {
		return
	}
	pageVA := addr &^ (blkSize - 1)
	blockno := (pageVA - diskMap) / blkSize

	writeBlock(blockno, pageVA)

	id := syscall.GetEnvID()
	if r := syscall.PageMap(id, pageVA, id, pageVA, permUserWrite); errno.IsError(r) {
		panic("fs: flush_block remap failed")
	}
}

const permUserWrite = 0x7 // present | writable | user

// initBlockCache installs bcPageFault as the page-fault handler for the
// disk-cache window. Called once from Init.
func initBlockCache() {
	fork.SetPgFaultHandler(bcPageFault)
}
