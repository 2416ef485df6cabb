package appmgr

import (
	"errors"
)

// Standard errors.
var (
	// ErrAppCreate is returned when application creation fails at any stage:
	// slot exhaustion, module load failure, missing entry point symbol, or
	// task create failure. The slot is always rolled back to free.
	ErrAppCreate = errors.New("appmgr: application create failed")

	// ErrLoadLib is returned when library loading fails: slot exhaustion,
	// module load failure, missing init symbol, or an init function that
	// reported failure.
	ErrLoadLib = errors.New("appmgr: library load failed")

	// ErrBadArgument is returned for empty or over-length names and paths,
	// and for out-of-range slot or handle arguments.
	ErrBadArgument = errors.New("appmgr: bad argument")

	// ErrNotFound is returned by queries when no matching record exists.
	ErrNotFound = errors.New("appmgr: no matching record")

	// ErrAppCleanup indicates one or more OS objects owned by a task could
	// not be deleted during teardown.
	ErrAppCleanup = errors.New("appmgr: application cleanup incomplete")

	// ErrTaskDelete indicates the task itself could not be deleted after its
	// owned objects were reclaimed.
	ErrTaskDelete = errors.New("appmgr: task delete failed")
)

// Kind-specific first-failure flags for resource reclamation. The first
// delete that fails during a cleanup pass determines which of these is
// recorded; the overall result may additionally wrap [ErrAppCleanup] or
// [ErrTaskDelete].
var (
	ErrChildTaskDelete = errors.New("appmgr: child task delete failed")
	ErrQueueDelete     = errors.New("appmgr: queue delete failed")
	ErrBinSemDelete    = errors.New("appmgr: binary semaphore delete failed")
	ErrCountSemDelete  = errors.New("appmgr: counting semaphore delete failed")
	ErrMutSemDelete    = errors.New("appmgr: mutex delete failed")
	ErrTimerDelete     = errors.New("appmgr: timer delete failed")
)

// deleteErrorForKind maps an object kind to its first-failure flag.
func deleteErrorForKind(kind ObjKind) error {
	switch kind {
	case ObjTask:
		return ErrChildTaskDelete
	case ObjQueue:
		return ErrQueueDelete
	case ObjBinSem:
		return ErrBinSemDelete
	case ObjCountSem:
		return ErrCountSemDelete
	case ObjMutex:
		return ErrMutSemDelete
	case ObjTimer:
		return ErrTimerDelete
	default:
		return ErrAppCleanup
	}
}
