package fs

import (
	"unsafe"

	"github.com/gopheros/exo/kernel/config"
)

// File types, matching fs/fs.h's FTYPE_REG/FTYPE_DIR.
const (
	FTypeReg = 0
	FTypeDir = 1
)

const (
	maxNameLen = 128
	fileSize   = 256
	blkFiles   = int(config.BlkSize) / fileSize
)

// File is the on-disk and in-cache representation of one file or directory
// entry, laid out to match fs/fs.c's struct File exactly (256 bytes, so
// blkFiles of them pack into one directory block) since it is read and
// written in place through the block cache rather than marshalled.
type File struct {
	Name     [maxNameLen]byte
	Size     uint32
	Type     uint32
	Direct   [config.NDirect]uint32
	Indirect uint32
	pad      [fileSize - maxNameLen - 4 - 4 - 4*config.NDirect - 4]byte
}

// superblock mirrors fs/fs.h's struct Super: a magic number, the disk's
// block count, and the File record for the filesystem root directory.
type superblock struct {
	Magic   uint32
	NBlocks uint32
	Root    File
}

// super points at the cached superblock once Init has read it in.
var super *superblock

// ptrAt reinterprets a disk-cache virtual address as a pointer of type T.
func ptrAt[T any](va uint32) *T {
	return (*T)(unsafe.Pointer(uintptr(va)))
}

// ptrAtBytes reinterprets a disk-cache virtual address as an untyped
// pointer, for call sites that need a fixed-size byte array view instead of
// a named type.
func ptrAtBytes(va uint32) unsafe.Pointer {
	return unsafe.Pointer(uintptr(va))
}

// vaOf returns the disk-cache virtual address backing f, the inverse of
// ptrAt[File] — every File this package hands out is a pointer straight
// into the cache window, so its address already is its virtual address.
func vaOf(f *File) uint32 {
	return uint32(uintptr(unsafe.Pointer(f)))
}

// checkSuper validates the magic number and size recorded in the
// superblock. Matches fs/fs.c's check_super.
func checkSuper() {
	if super.Magic != uint32(config.FSMagic) {
		panic("fs: bad file system magic number")
	}
	if uintptr(super.NBlocks)*uintptr(blkSize) > uintptr(diskSize) {
		panic("fs: file system too large for disk map")
	}
}

// Init locates the superblock and free-block bitmap, validates them, and
// installs the block-cache page-fault handler. It must run before any
// other function in this package. Matches fs/fs.c's fs_init, minus the
// second-disk probe this kernel has no use for (single-disk only).
func Init() {
	initBlockCache()

	super = ptrAt[superblock](diskAddr(uint32(config.SuperBlockNo)))
	nblocks = super.NBlocks
	checkSuper()

	bitmapVA = diskAddr(uint32(config.SuperBlockNo) + 1)
	checkBitmap()
}

// Sync writes every dirty cached block back to disk. A big hammer, matching
// fs/fs.c's fs_sync.
func Sync() {
	for i := uint32(1); i < nblocks; i++ {
		flushBlock(diskAddr(i))
	}
}
