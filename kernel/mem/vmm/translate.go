package vmm

import (
	"github.com/gopheros/exo/kernel"
	"github.com/gopheros/exo/kernel/mem"
	"github.com/gopheros/exo/kernel/mem/pmm"
)

// Translate returns the physical address that corresponds to va under root,
// or ErrInvalidMapping if va has no mapping.
func Translate(root pmm.Frame, va uintptr) (uintptr, *kernel.Error) {
	frame, _, err := Lookup(root, va)
	if err != nil {
		return 0, err
	}
	return frame.Address() + (va & uintptr(mem.PageSize-1)), nil
}
