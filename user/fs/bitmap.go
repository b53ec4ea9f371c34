package fs

import (
	"github.com/gopheros/exo/kernel/config"
	"github.com/gopheros/exo/kernel/errno"
)

// bitmapVA is the virtual address of the first free-block bitmap block,
// set once Init has located the superblock. One bitmap block covers
// blkBitSize blocks.
var bitmapVA uint32

const blkBitSize = blkSize * 8

// bitmapReady reports whether Init has finished locating the bitmap, so
// bcPageFault's free-block sanity check can be skipped during the very
// first reads that bring the bitmap itself in.
func bitmapReady() bool { return bitmapVA != 0 }

func bitmapWord(blockno uint32) *uint32 {
	va := bitmapVA + (blockno/32)*4
	return ptrAt[uint32](va)
}

// blockIsFree reports whether blockno is marked free in the bitmap.
// Matches fs/fs.c's block_is_free.
func blockIsFree(blockno uint32) bool {
	if !bitmapReady() || blockno >= nblocks {
		return false
	}
	return *bitmapWord(blockno)&(1<<(blockno%32)) != 0
}

// freeBlock marks blockno free in the bitmap. Block 0 is never freed since
// it is the sentinel "no block" value used throughout the on-disk format.
func freeBlock(blockno uint32) {
	if blockno == 0 {
		panic("fs: attempt to free block 0")
	}
	*bitmapWord(blockno) |= 1 << (blockno % 32)
}

// allocBlock finds a free block, marks it in-use, flushes the bitmap block
// that covers it, and returns its number. Matches fs/fs.c's alloc_block,
// including skipping the three reserved blocks (boot, super, first bitmap
// block) that always start the scan.
func allocBlock() (uint32, *errno.Errno) {
	for i := uint32(config.FirstDataBlk + 1); i < nblocks; i++ {
		if blockIsFree(i) {
			*bitmapWord(i) &^= 1 << (i % 32)
			flushBlock(diskAddr(bitmapBlockOf(i)))
			return i, nil
		}
	}
	e := errno.NoDisk
	return 0, &e
}

func bitmapBlockOf(blockno uint32) uint32 {
	return uint32(config.SuperBlockNo) + 1 + blockno/blkBitSize
}

// checkBitmap validates that every reserved block (boot, super, and the
// bitmap blocks themselves) is marked in-use. Matches fs/fs.c's
// check_bitmap; panics rather than returning an error since a corrupt
// on-disk bitmap is not something the file server can recover from.
func checkBitmap() {
	for i := uint32(0); i*blkBitSize < nblocks; i++ {
		if blockIsFree(uint32(config.SuperBlockNo) + 1 + i) {
			panic("fs: bitmap block incorrectly marked free")
		}
	}
	if blockIsFree(config.BootBlockNo) || blockIsFree(config.SuperBlockNo) {
		panic("fs: reserved block incorrectly marked free")
	}
}
