package fs

import (
	"github.com/gopheros/exo/kernel/config"
	"github.com/gopheros/exo/kernel/errno"
)

// blockWalk finds the disk-block-number slot for f's filebno'th block,
// returning a pointer to that slot (inside f's direct array or, past
// NDirect, inside its indirect block) so callers can both read and write
// through it. When the slot would live in an as-yet-unallocated indirect
// block, alloc controls whether one is allocated on the spot. Matches
// fs/fs.c's file_block_walk.
func blockWalk(f *File, filebno uint32, alloc bool) (*uint32, *errno.Errno) {
	if filebno >= uint32(len(f.Direct))+uint32(blkSize)/4 {
		e := errno.INVAL
		return nil, &e
	}
	if filebno < uint32(len(f.Direct)) {
		return &f.Direct[filebno], nil
	}

	if f.Indirect == 0 {
		if !alloc {
			e := errno.NotFound
			return nil, &e
		}
		blockno, ierr := allocBlock()
		if ierr != nil {
			return nil, ierr
		}
		zeroBlock(diskAddr(blockno))
		f.Indirect = blockno
	}

	indirect := ptrAt[[config.NIndirect]uint32](diskAddr(f.Indirect))
	return &indirect[filebno-uint32(len(f.Direct))], nil
}

// zeroBlock clears every byte of the block mapped at va.
func zeroBlock(va uint32) {
	buf := (*[config.BlkSize]byte)(ptrAtBytes(va))
	for i := range buf {
		buf[i] = 0
	}
}

// GetBlock returns the virtual address of f's filebno'th block, allocating
// a fresh block (and, if needed, an indirect block) the first time this
// block is touched. Matches fs/fs.c's file_get_block.
func GetBlock(f *File, filebno uint32) (uint32, *errno.Errno) {
	slot, err := blockWalk(f, filebno, true)
	if err != nil {
		return 0, err
	}
	if *slot == 0 {
		blockno, ierr := allocBlock()
		if ierr != nil {
			return 0, ierr
		}
		zeroBlock(diskAddr(blockno))
		*slot = blockno
	}
	return diskAddr(*slot), nil
}

// Read copies up to len(buf) bytes from f starting at offset into buf,
// returning the number of bytes actually read (0 at or past end of file).
// Matches fs/fs.c's file_read.
func Read(f *File, buf []byte, offset uint32) (uint32, *errno.Errno) {
	if offset >= f.Size {
		return 0, nil
	}
	count := uint32(len(buf))
	if rem := f.Size - offset; count > rem {
		count = rem
	}

	var done uint32
	for done < count {
		pos := offset + done
		blkVA, err := GetBlock(f, pos/blkSize)
		if err != nil {
			return done, err
		}
		blk := (*[config.BlkSize]byte)(ptrAtBytes(blkVA))
		n := blkSize - pos%blkSize
		if rem := count - done; n > rem {
			n = rem
		}
		copy(buf[done:done+n], blk[pos%blkSize:pos%blkSize+n])
		done += n
	}
	return done, nil
}

// Write copies buf into f starting at offset, extending f's size if the
// write runs past the current end of file. Matches fs/fs.c's file_write.
func Write(f *File, buf []byte, offset uint32) (uint32, *errno.Errno) {
	count := uint32(len(buf))
	if offset+count > f.Size {
		if err := SetSize(f, offset+count); err != nil {
			return 0, err
		}
	}

	var done uint32
	for done < count {
		pos := offset + done
		blkVA, err := GetBlock(f, pos/blkSize)
		if err != nil {
			return done, err
		}
		blk := (*[config.BlkSize]byte)(ptrAtBytes(blkVA))
		n := blkSize - pos%blkSize
		if rem := count - done; n > rem {
			n = rem
		}
		copy(blk[pos%blkSize:pos%blkSize+n], buf[done:done+n])
		done += n
	}
	return done, nil
}

// freeFileBlock releases the disk block backing f's filebno'th block, if
// any, silently succeeding if there is none. Matches fs/fs.c's
// file_free_block.
func freeFileBlock(f *File, filebno uint32) {
	slot, err := blockWalk(f, filebno, false)
	if err != nil || slot == nil || *slot == 0 {
		return
	}
	freeBlock(*slot)
	*slot = 0
}

// truncateBlocks releases every block f holds beyond what newsize needs,
// and frees f's indirect block too if it is no longer needed. Matches
// fs/fs.c's file_truncate_blocks.
func truncateBlocks(f *File, newsize uint32) {
	oldN := (f.Size + blkSize - 1) / blkSize
	newN := (newsize + blkSize - 1) / blkSize
	for bno := newN; bno < oldN; bno++ {
		freeFileBlock(f, bno)
	}
	if newN <= uint32(len(f.Direct)) && f.Indirect != 0 {
		freeBlock(f.Indirect)
		f.Indirect = 0
	}
}

// SetSize changes f's size, truncating blocks that are no longer needed
// when shrinking, and flushes f's own metadata block. Matches fs/fs.c's
// file_set_size.
func SetSize(f *File, newsize uint32) *errno.Errno {
	if f.Size > newsize {
		truncateBlocks(f, newsize)
	}
	f.Size = newsize
	flushBlock(vaOf(f))
	return nil
}

// Flush writes every dirty block belonging to f, plus f's own metadata
// block and indirect block if it has one, back to disk. Matches
// fs/fs.c's file_flush.
func Flush(f *File) {
	n := (f.Size + blkSize - 1) / blkSize
	for i := uint32(0); i < n; i++ {
		slot, err := blockWalk(f, i, false)
		if err != nil || slot == nil || *slot == 0 {
			continue
		}
		flushBlock(diskAddr(*slot))
	}
	flushBlock(vaOf(f))
	if f.Indirect != 0 {
		flushBlock(diskAddr(f.Indirect))
	}
}
