package task

import (
	"bytes"
	"debug/elf"
	"unsafe"

	"github.com/gopheros/exo/kernel"
	"github.com/gopheros/exo/kernel/config"
	"github.com/gopheros/exo/kernel/mem"
	"github.com/gopheros/exo/kernel/mem/pmm"
	"github.com/gopheros/exo/kernel/mem/vmm"
)

var (
	errNotELF    = &kernel.Error{Module: "task", Message: "not an ELF executable"}
	errBadSegment = &kernel.Error{Module: "task", Message: "ELF segment outside user address space"}
)

// LoadELF maps every PT_LOAD segment of image into t's address space at its
// specified virtual address, zero-filling the gap between a segment's file
// size and its memory size (the standard mechanism for an uninitialized
// .bss), and sets the task's entry point. It does not make t runnable.
func LoadELF(t *Task, image []byte) *kernel.Error {
	f, err := elf.NewFile(bytes.NewReader(image))
	if err != nil {
		return errNotELF
	}
	if f.Class != elf.ELFCLASS32 || f.Machine != elf.EM_386 || f.Type != elf.ET_EXEC {
		return errNotELF
	}

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if err := loadSegment(t, image, prog); err != nil {
			return err
		}
	}

	// A minimal user stack, one page just below USTACKTOP.
	stackFrame := pmm.Alloc(pmm.Zero)
	if !stackFrame.Valid() {
		return &kernel.Error{Module: "task", Message: "out of memory"}
	}
	if err := vmm.Insert(t.Root, stackFrame, config.USTACKTOP-uintptr(config.PageSize), vmm.FlagRW|vmm.FlagUser, allocFrame); err != nil {
		return err
	}

	t.Frame.EIP = uint32(f.Entry)
	return nil
}

// loadSegment maps the pages backing one PT_LOAD segment and copies its
// file contents in, relying on the frames pmm.Alloc(pmm.Zero) returns
// already zeroed to supply the bytes between Filesz and Memsz.
func loadSegment(t *Task, image []byte, prog *elf.Prog) *kernel.Error {
	vaStart := uintptr(prog.Vaddr)
	vaEnd := vaStart + uintptr(prog.Memsz)
	if vaStart >= config.UTOP || vaEnd > config.UTOP {
		return errBadSegment
	}

	pageStart := vaStart &^ uintptr(config.PageSize-1)
	for va := pageStart; va < vaEnd; va += uintptr(config.PageSize) {
		frame := pmm.Alloc(pmm.Zero)
		if !frame.Valid() {
			return &kernel.Error{Module: "task", Message: "out of memory"}
		}
		perm := vmm.FlagUser
		if prog.Flags&elf.PF_W != 0 {
			perm |= vmm.FlagRW
		}
		if err := vmm.Insert(t.Root, frame, va, perm, allocFrame); err != nil {
			return err
		}

		dst := pmm.KernelAddress(frame)
		fileEnd := vaStart + uintptr(prog.Filesz)
		copyStart, copyEnd := max(va, vaStart), min(va+uintptr(config.PageSize), fileEnd)
		if copyEnd > copyStart {
			n := copyEnd - copyStart
			srcOff := int64(copyStart) - int64(vaStart) + int64(prog.Off)
			src := uintptr(unsafe.Pointer(&image[srcOff]))
			mem.Memcopy(src, dst+(copyStart-va), mem.Size(n))
		}
	}
	return nil
}
