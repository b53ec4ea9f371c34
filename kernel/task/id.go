package task

import "github.com/gopheros/exo/kernel/config"

// ID identifies a task. The low GenShift bits are the task's slot index into
// the table; the remaining high bits are a generation counter that changes
// every time the slot is reused, so a stale ID from a destroyed task can
// never be mistaken for whatever is allocated into its old slot next.
type ID uint32

// NoTask is never a valid task ID; it marks "no task" in fields like a
// parent ID or a pending IPC sender.
const NoTask ID = 0

const slotMask = config.NEnv - 1

// slot returns the table index this ID names.
func (id ID) slot() uint32 { return uint32(id) & slotMask }

// nextID computes the ID for a fresh occupant of a slot, given the last ID
// that slot held (0 the first time it is used). Bumping the generation field
// and clearing the sign bit keeps IDs small, positive, and guarantees the
// new ID differs from every ID previously issued for this slot.
func nextID(slot uint32, lastID ID) ID {
	gen := (uint32(lastID) + (1 << config.GenShift)) &^ slotMask &^ (1 << 31)
	return ID(gen | slot)
}
