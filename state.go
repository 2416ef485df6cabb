package appmgr

import "fmt"

// AppState is the lifecycle state of an application slot.
//
// State Machine:
//
//	StateUndefined → StateEarlyInit   [slot reserved under lock]
//	StateEarlyInit → StateLateInit    [module loaded + entry resolved]
//	StateLateInit  → StateRunning     [primary task created + registered]
//	StateRunning   → StateWaiting     [control request observed by scanner]
//	StateWaiting   → StateStopped     [kill timer expired, teardown begins]
//	StateStopped   → StateUndefined   [teardown complete, slot free]
//
// Any failure during EarlyInit/LateInit transitions directly back to
// StateUndefined after rollback. The ordering of values is significant: the
// scanner treats every state greater than StateRunning as "teardown pending".
type AppState uint32

const (
	// StateUndefined marks a free slot.
	StateUndefined AppState = iota
	// StateEarlyInit marks a slot reserved under lock, with no kernel
	// resources allocated yet.
	StateEarlyInit
	// StateLateInit marks a slot whose module is loaded and entry resolved,
	// prior to (or during) primary task creation.
	StateLateInit
	// StateRunning marks a fully created application.
	StateRunning
	// StateWaiting marks an application counting down its kill timer after a
	// control request was observed.
	StateWaiting
	// StateStopped marks an application whose teardown is in progress.
	StateStopped
)

// String returns a human-readable representation of the state.
func (s AppState) String() string {
	switch s {
	case StateUndefined:
		return "Undefined"
	case StateEarlyInit:
		return "EarlyInit"
	case StateLateInit:
		return "LateInit"
	case StateRunning:
		return "Running"
	case StateWaiting:
		return "Waiting"
	case StateStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(s))
	}
}

// AppType distinguishes core applications (never manipulated by this
// manager) from externally loaded ones.
type AppType uint32

const (
	AppTypeCore AppType = iota + 1
	AppTypeExternal
)

// String returns a human-readable representation of the app type.
func (t AppType) String() string {
	switch t {
	case AppTypeCore:
		return "Core"
	case AppTypeExternal:
		return "External"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(t))
	}
}

// ControlRequest is the value written by command processors to drive an
// application's teardown. Any value greater than RequestAppRun causes the
// scanner to transition a running application to StateWaiting.
type ControlRequest uint32

const (
	// RequestAppRun is the steady-state request: keep running.
	RequestAppRun ControlRequest = iota
	// RequestAppExit is a voluntary clean exit.
	RequestAppExit
	// RequestAppError is a voluntary exit reporting an error.
	RequestAppError
	// RequestSysDelete deletes the application.
	RequestSysDelete
	// RequestSysRestart deletes then re-creates the application from its
	// original start parameters.
	RequestSysRestart
	// RequestSysReload is identical to restart; the file may have been
	// replaced on disk since the original load.
	RequestSysReload
	// RequestSysException records that the application faulted. It is
	// rewritten to RequestSysDelete on first observation to prevent event
	// storms.
	RequestSysException
)

// String returns a human-readable representation of the control request.
func (r ControlRequest) String() string {
	switch r {
	case RequestAppRun:
		return "AppRun"
	case RequestAppExit:
		return "AppExit"
	case RequestAppError:
		return "AppError"
	case RequestSysDelete:
		return "SysDelete"
	case RequestSysRestart:
		return "SysRestart"
	case RequestSysReload:
		return "SysReload"
	case RequestSysException:
		return "SysException"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(r))
	}
}

// ExceptionAction selects the recovery performed when an application faults.
type ExceptionAction uint8

const (
	// ExceptionRestartApp restarts only the faulting application.
	ExceptionRestartApp ExceptionAction = iota
	// ExceptionProcRestart restarts the whole processor.
	ExceptionProcRestart
)

// String returns a human-readable representation of the exception action.
func (a ExceptionAction) String() string {
	switch a {
	case ExceptionRestartApp:
		return "RestartApp"
	case ExceptionProcRestart:
		return "ProcRestart"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(a))
	}
}

// ResetType selects which startup script path is used by
// [Manager.StartApps].
type ResetType uint32

const (
	// ResetPowerOn always uses the non-volatile startup script.
	ResetPowerOn ResetType = iota + 1
	// ResetProcessor tries the volatile startup script first, falling back
	// to the non-volatile one if it cannot be opened.
	ResetProcessor
)

// String returns a human-readable representation of the reset type.
func (r ResetType) String() string {
	switch r {
	case ResetPowerOn:
		return "PowerOn"
	case ResetProcessor:
		return "Processor"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(r))
	}
}
