package vmm

import (
	"github.com/gopheros/exo/kernel/mem/pmm"
)

// FreeUserSpace decref's every page mapped below limit in root and the page
// tables that mapped them, leaving the directory entries at or above
// pdIndex(limit) untouched. It is used to tear down a task's address space;
// limit is normally config.UTOP so the kernel's shared high-half mappings
// are never touched.
func FreeUserSpace(root pmm.Frame, limit uintptr) {
	entries := pdtEntries(root)
	for pdi := uintptr(0); pdi < pdIndex(limit); pdi++ {
		pde := &entries[pdi]
		if !pde.HasFlags(FlagPresent) {
			continue
		}

		ptFrame := pde.Frame()
		pt := entriesAt(pmm.KernelAddress(ptFrame))
		for pti := range pt {
			if pt[pti].HasFlags(FlagPresent) {
				pmm.DecRef(pt[pti].Frame())
				pt[pti] = 0
			}
		}

		pmm.DecRef(ptFrame)
		*pde = 0
	}
}
