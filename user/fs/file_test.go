package fs

import "testing"

func TestBlockWalkDirectSlot(t *testing.T) {
	var f File
	f.Direct[3] = 99

	slot, err := blockWalk(&f, 3, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *slot != 99 {
		t.Fatalf("expected slot to read back 99, got %d", *slot)
	}
}

func TestBlockWalkOutOfRangeIsInvalid(t *testing.T) {
	var f File
	_, err := blockWalk(&f, uint32(len(f.Direct))+blkSize/4, false)
	if err == nil {
		t.Fatal("expected an error for a filebno past NDirect+NIndirect")
	}
}

func TestBlockWalkIndirectWithoutAllocFails(t *testing.T) {
	var f File
	_, err := blockWalk(&f, uint32(len(f.Direct)), false)
	if err == nil {
		t.Fatal("expected NotFound when the indirect block isn't allocated and alloc=false")
	}
}

func TestTruncateBlocksFreesTrailingDirectBlocks(t *testing.T) {
	base := withFakeDisk(t, 40, 1)
	markAllInUse(base, 40)
	// Leave blocks 5, 6 and 7 marked in-use so truncateBlocks below can
	// free 6 and 7 without first needing a real allocBlock.

	var f File
	f.Size = 3 * blkSize
	f.Direct[0] = 5
	f.Direct[1] = 6
	f.Direct[2] = 7

	truncateBlocks(&f, blkSize) // keep only block 0

	if blockIsFree(5) {
		t.Fatal("block 0 should not have been freed")
	}
	if !blockIsFree(6) || !blockIsFree(7) {
		t.Fatal("expected blocks past the new size to be freed")
	}
	if f.Direct[1] != 0 || f.Direct[2] != 0 {
		t.Fatalf("expected freed slots to be zeroed, got %v", f.Direct)
	}
}
