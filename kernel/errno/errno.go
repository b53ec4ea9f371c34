// Package errno defines the small set of negative error codes that cross the
// user/kernel boundary as plain return values. System calls cannot return a
// *kernel.Error — a pointer is meaningless to the caller once control returns
// to user mode — so they surface one of these instead.
package errno

// Errno is a small negative integer error code returned directly by a system
// call or IPC primitive. Zero or any positive value denotes success.
type Errno int32

// Error implements the error interface so an Errno can be logged with
// kfmt.Printf's %s verb or wrapped like any other Go error where convenient.
func (e Errno) Error() string {
	if msg, ok := messages[e]; ok {
		return msg
	}
	return "unknown error"
}

const (
	// Unspecified marks the zero value as "no error" rather than a valid
	// Errno; success is communicated by returning 0 (Unspecified) or a
	// positive value, never one of the negative members of this block.
	Unspecified Errno = 0

	// INVAL denotes a malformed argument.
	INVAL Errno = -1
	// NoMem denotes physical frame or page-table exhaustion.
	NoMem Errno = -2
	// NoFreeEnv denotes that the task table has no free slot.
	NoFreeEnv Errno = -3
	// BadEnv denotes that the named task does not exist, or that the
	// caller lacks permission to name it.
	BadEnv Errno = -4
	// NoDisk denotes that the free-block bitmap has no free block left.
	NoDisk Errno = -5
	// IPCNotRecv denotes that ipc_try_send targeted a task that is not
	// blocked in ipc_recv.
	IPCNotRecv Errno = -6
	// Fault denotes that a user buffer failed the MEMCHK permission
	// check.
	Fault Errno = -7
	// NotFound denotes a missing file, directory entry, or block
	// pointer.
	NotFound Errno = -8
	// FileExists denotes a name collision during file creation.
	FileExists Errno = -9
	// BadPath denotes a malformed or unresolvable path.
	BadPath Errno = -10
)

var messages = map[Errno]string{
	INVAL:      "invalid argument",
	NoMem:      "out of memory",
	NoFreeEnv:  "no free task slot",
	BadEnv:     "bad task id",
	NoDisk:     "disk is full",
	IPCNotRecv: "target task is not receiving",
	Fault:      "user memory fault",
	NotFound:   "not found",
	FileExists: "file already exists",
	BadPath:    "bad path",
}

// IsError reports whether v is a negative return value, i.e. an Errno rather
// than a successful result.
func IsError(v int32) bool { return v < 0 }
