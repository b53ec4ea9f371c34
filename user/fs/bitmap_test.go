package fs

import (
	"testing"
	"unsafe"

	"github.com/gopheros/exo/kernel/config"
)

// withFakeDisk points the package's disk-cache globals at a plain Go byte
// buffer instead of a real page-fault-backed mapping: since this kernel
// keeps every task in one process's address space rather than enforcing
// real ring3 isolation, a uint32 "virtual address" and a real pointer into
// a test-owned buffer are interchangeable for unit tests.
func withFakeDisk(t *testing.T, n, bitmapBlocks uint32) (diskBase uint32) {
	t.Helper()
	buf := make([]byte, (bitmapBlocks+1)*blkSize)
	base := uint32(uintptr(unsafe.Pointer(&buf[0])))

	oldN, oldBitmap := nblocks, bitmapVA
	nblocks = n
	bitmapVA = base + blkSize // first block in buf stands in for the superblock

	t.Cleanup(func() {
		nblocks = oldN
		bitmapVA = oldBitmap
	})
	return base
}

func markAllInUse(base uint32, n uint32) {
	for i := uint32(0); i < n; i++ {
		w := (*uint32)(unsafe.Pointer(uintptr(base + blkSize + (i/32)*4)))
		*w &^= 1 << (i % 32)
	}
}

func TestBlockIsFreeDefaultsToInUse(t *testing.T) {
	base := withFakeDisk(t, 40, 1)
	markAllInUse(base, 40)

	if blockIsFree(10) {
		t.Fatal("expected block 10 to be marked in-use")
	}

	freeBlock(10)
	if !blockIsFree(10) {
		t.Fatal("expected block 10 to be free after freeBlock")
	}
}

func TestFreeBlockZeroPanics(t *testing.T) {
	withFakeDisk(t, 40, 1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected freeBlock(0) to panic")
		}
	}()
	freeBlock(0)
}

func TestAllocBlockSkipsReservedBlocksAndReturnsFirstFree(t *testing.T) {
	base := withFakeDisk(t, 40, 1)
	markAllInUse(base, 40)
	freeBlock(5)
	freeBlock(10)

	// allocBlock's flushBlock call would reach the real IDE ports through
	// writeBlock; here it returns early instead, because no task is
	// current, so the bitmap block's address reads as unmapped.
	got, err := allocBlock()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 5 {
		t.Fatalf("expected first free block (5), got %d", got)
	}
	if blockIsFree(5) {
		t.Fatal("expected allocBlock to mark the block in-use")
	}
}

func TestCheckBitmapPanicsOnFreeReservedBlock(t *testing.T) {
	base := withFakeDisk(t, 40, 1)
	markAllInUse(base, 40)
	freeBlock(config.SuperBlockNo)

	defer func() {
		if recover() == nil {
			t.Fatal("expected checkBitmap to panic on a free reserved block")
		}
	}()
	checkBitmap()
}
