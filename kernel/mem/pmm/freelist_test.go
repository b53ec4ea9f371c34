package pmm

import (
	"testing"
	"unsafe"

	"github.com/gopheros/exo/kernel/driver/video/console"
	"github.com/gopheros/exo/kernel/hal"
)

func resetForTest(frameCount Frame, reserved func(Frame) bool) {
	// Init reports its frame counts through early.Printf, which writes to
	// hal.ActiveTerminal; give it a console to write into.
	fb := make([]byte, 160*25)
	cons := &console.Ega{}
	cons.Init(80, 25, uintptr(unsafe.Pointer(&fb[0])))
	hal.ActiveTerminal.AttachTo(cons)

	SetDirectMapBase(0)
	Init(frameCount, reserved)
}

func TestAllocFreeRoundTrip(t *testing.T) {
	resetForTest(8, func(Frame) bool { return false })

	if got := FreeFrames(); got != 8 {
		t.Fatalf("expected 8 free frames, got %d", got)
	}

	f := Alloc(0)
	if !f.Valid() {
		t.Fatal("expected a valid frame")
	}
	if got := FreeFrames(); got != 7 {
		t.Fatalf("expected 7 free frames after alloc, got %d", got)
	}

	IncRef(f)
	DecRef(f)
	if got := FreeFrames(); got != 8 {
		t.Fatalf("expected frame to return to the free list after DecRef reached 0, got %d free", got)
	}
}

func TestInitReservesFramesOffFreeList(t *testing.T) {
	reserved := map[Frame]bool{0: true, 3: true}
	resetForTest(8, func(f Frame) bool { return reserved[f] })

	if got := FreeFrames(); got != 6 {
		t.Fatalf("expected 6 free frames, got %d", got)
	}

	seen := make(map[Frame]bool)
	for f := Alloc(0); f.Valid(); f = Alloc(0) {
		if reserved[f] {
			t.Fatalf("allocator handed out reserved frame %d", f)
		}
		seen[f] = true
	}
	if len(seen) != 6 {
		t.Fatalf("expected to drain 6 frames, drained %d", len(seen))
	}
}

func TestAllocExhaustion(t *testing.T) {
	resetForTest(1, func(Frame) bool { return false })

	if f := Alloc(0); !f.Valid() {
		t.Fatal("expected the single frame to be allocated")
	}
	if f := Alloc(0); f.Valid() {
		t.Fatalf("expected InvalidFrame once the list is exhausted, got %d", f)
	}
}

func TestDecRefOnlyFreesAtZero(t *testing.T) {
	resetForTest(4, func(Frame) bool { return false })

	f := Alloc(0)
	IncRef(f)
	IncRef(f)
	DecRef(f)
	if RefCount(f) != 1 {
		t.Fatalf("expected refcount 1, got %d", RefCount(f))
	}
	before := FreeFrames()
	DecRef(f)
	if RefCount(f) != 0 {
		t.Fatalf("expected refcount 0, got %d", RefCount(f))
	}
	if got := FreeFrames(); got != before+1 {
		t.Fatalf("expected frame back on free list, free count %d -> %d", before, got)
	}
}
