package appmgr

import (
	"fmt"
	"io"
)

type (
	// ModuleHandle is the opaque token returned by [OSPort.ModuleLoad],
	// required for unload and info queries. Zero is never a valid handle.
	ModuleHandle uint32

	// TaskHandle is the opaque token for an OS task. It is convertible to a
	// dense task table index via [OSPort.TaskIndex].
	TaskHandle uint32

	// ObjectID identifies an arbitrary OS object during enumeration.
	ObjectID uint32

	// EntryAddress is the opaque address of a resolved entry point symbol.
	// The manager never dereferences it; [OSPort.TaskCreate] and
	// [OSPort.LibraryInit] perform the indirect call on their own stack.
	EntryAddress uintptr
)

// ObjKind classifies the OS objects a task may own.
type ObjKind int

const (
	ObjUnknown ObjKind = iota
	ObjTask
	ObjQueue
	ObjBinSem
	ObjCountSem
	ObjMutex
	ObjTimer
	ObjStream
	ObjModule
)

// String returns a human-readable representation of the object kind.
func (k ObjKind) String() string {
	switch k {
	case ObjTask:
		return "task"
	case ObjQueue:
		return "queue"
	case ObjBinSem:
		return "binsem"
	case ObjCountSem:
		return "countsem"
	case ObjMutex:
		return "mutex"
	case ObjTimer:
		return "timer"
	case ObjStream:
		return "stream"
	case ObjModule:
		return "module"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ModuleInfo describes the loaded segments of a module image. Valid is false
// when the underlying loader cannot report addresses for the module.
type ModuleInfo struct {
	Valid       bool
	CodeAddress uint64
	CodeSize    uint64
	DataAddress uint64
	DataSize    uint64
	BSSAddress  uint64
	BSSSize     uint64
}

// OSPort is the capability set the manager requires from the underlying
// operating system abstraction. Implementations are expected to be safe for
// concurrent use.
//
// Failures are opaque error values; the manager maps them to its own error
// taxonomy at the call site and never inspects them beyond non-nil-ness.
//
// TaskCreate and TaskIndex are invoked while the manager holds its global
// critical section, and therefore must not call back into the manager from
// the calling goroutine; TaskIndex is additionally expected to be a cheap,
// non-blocking conversion. Every other method is invoked lock-released.
type OSPort interface {
	// ModuleLoad loads the module image at path under the given name.
	ModuleLoad(name, path string) (ModuleHandle, error)

	// ModuleUnload releases a previously loaded module image.
	ModuleUnload(handle ModuleHandle) error

	// ModuleInfo reports segment addresses for a loaded module.
	ModuleInfo(handle ModuleHandle) (ModuleInfo, error)

	// SymbolLookup resolves a global symbol to its entry address.
	SymbolLookup(name string) (EntryAddress, error)

	// TaskCreate creates a task executing at entry with the given stack
	// size and priority. The floating-point context is enabled when
	// fpEnabled is set. The new task begins execution immediately.
	TaskCreate(name string, entry EntryAddress, stackSize uint32, priority uint16, fpEnabled bool) (TaskHandle, error)

	// TaskDelete forcibly deletes a task.
	TaskDelete(handle TaskHandle) error

	// TaskIndex converts a task handle to its dense table index.
	TaskIndex(handle TaskHandle) (int, error)

	// LibraryInit performs the indirect call of a library init function at
	// entry, passing the library's slot index. A non-nil error is treated
	// as a permanent load failure.
	LibraryInit(entry EntryAddress, slot int) error

	// ForEachObject enumerates the OS objects created by the given task,
	// invoking fn once per object. Enumeration reflects a snapshot; objects
	// deleted by fn are not revisited within the same call.
	ForEachObject(owner TaskHandle, fn func(id ObjectID, kind ObjKind))

	// IdentifyObject reports the kind of an arbitrary object.
	IdentifyObject(id ObjectID) ObjKind

	// DeleteObject deletes the object using its kind-specific delete.
	DeleteObject(id ObjectID, kind ObjKind) error

	// OpenScript opens a startup script for byte-oriented reading.
	OpenScript(path string) (io.ReadCloser, error)
}
