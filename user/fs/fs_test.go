package fs

import (
	"testing"
	"unsafe"

	"github.com/gopheros/exo/kernel/config"
)

func withFakeSuper(t *testing.T, magic, nb uint32) {
	t.Helper()
	old := super
	super = &superblock{Magic: magic, NBlocks: nb}
	t.Cleanup(func() { super = old })
}

func TestCheckSuperRejectsBadMagic(t *testing.T) {
	withFakeSuper(t, 0xBAD, 10)
	defer func() {
		if recover() == nil {
			t.Fatal("expected checkSuper to panic on a bad magic number")
		}
	}()
	checkSuper()
}

func TestCheckSuperAcceptsValidSuperblock(t *testing.T) {
	withFakeSuper(t, uint32(config.FSMagic), 10)
	checkSuper() // must not panic
}

func TestCheckSuperRejectsOversizedFilesystem(t *testing.T) {
	withFakeSuper(t, uint32(config.FSMagic), diskSize/blkSize+1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected checkSuper to panic on a filesystem larger than the disk map")
		}
	}()
	checkSuper()
}

func TestFileStructIsExactlyOneDiskRecord(t *testing.T) {
	if sz := int(unsafe.Sizeof(File{})); sz != fileSize {
		t.Fatalf("expected File to be exactly %d bytes, got %d", fileSize, sz)
	}
}
