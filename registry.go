package appmgr

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

type (
	// StartParams is the immutable-after-creation description of how an
	// application was started. It is snapshotted before teardown so that
	// restart and reload can re-create the application after the slot has
	// been cleared.
	StartParams struct {
		Name            string
		EntryPointName  string
		FileName        string
		StackSize       uint32
		Priority        uint16
		ExceptionAction ExceptionAction
		StartAddress    EntryAddress
		ModuleHandle    ModuleHandle
	}

	// AppRecord is one slot of the application table. A slot's index is its
	// identity: it never changes while State != StateUndefined.
	AppRecord struct {
		State AppState
		Type  AppType
		Start StartParams

		MainTaskHandle TaskHandle
		MainTaskName   string

		// Request and TimerMillis form the control-request field observed
		// by the scanner. TimerMillis is non-increasing within StateWaiting
		// until it reaches zero and the request is dispatched.
		Request     ControlRequest
		TimerMillis uint32
	}

	// LibRecord is one slot of the library table.
	LibRecord struct {
		InUse        bool
		Name         string
		ModuleHandle ModuleHandle
	}

	// TaskRecord is one slot of the task table, indexed by the dense task
	// index derived from the task handle. The OwningApp back-edge is
	// non-owning; ownership flows only from application to task.
	TaskRecord struct {
		InUse            bool
		OwningApp        int
		Handle           TaskHandle
		Name             string
		ExecutionCounter uint32
	}
)

// Manager owns the application, library, and task tables, the scanner state,
// and the OS port. Construct with [New]; the zero value is not usable.
type Manager struct {
	port OSPort
	cfg  config

	log     *logiface.Logger[logiface.Event]
	limiter *catrate.Limiter
	sysLog  struct {
		mu sync.Mutex
		w  io.Writer
	}

	// commandCount is bumped on every external control-request write; the
	// scanner snapshots it to decide whether an idle tick may be skipped.
	commandCount atomic.Uint32

	// mu is the single process-wide critical section. It guards every field
	// below: all three tables, the registered counters, and the scanner
	// bookkeeping. It is never held across the port's blocking surfaces
	// (module load/unload, symbol lookup, object enumeration, task delete,
	// script I/O) nor external callbacks, with the single documented
	// exception of TaskCreate during application creation.
	mu    sync.Mutex
	apps  []AppRecord
	libs  []LibRecord
	tasks []TaskRecord

	registeredExternalApps uint32
	registeredLibs         uint32
	registeredTasks        uint32

	pendingStateChanges  uint32
	backgroundTimer      uint32
	lastScanCommandCount uint32
}

// New creates a Manager bound to the given OS port.
func New(port OSPort, opts ...Option) (*Manager, error) {
	if port == nil {
		return nil, fmt.Errorf("%w: nil port", ErrBadArgument)
	}
	m := &Manager{
		port: port,
		cfg: config{
			appTableSize:          DefaultAppTableSize,
			libTableSize:          DefaultLibTableSize,
			taskTableSize:         DefaultTaskTableSize,
			maxAPINameLen:         DefaultMaxAPINameLen,
			maxPathLen:            DefaultMaxPathLen,
			scanRateMillis:        DefaultScanRate,
			killTimeout:           DefaultKillTimeout,
			volatileScriptPath:    DefaultVolatileScriptPath,
			nonVolatileScriptPath: DefaultNonVolatileScriptPath,
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(m); err != nil {
			return nil, err
		}
	}
	m.apps = make([]AppRecord, m.cfg.appTableSize)
	m.libs = make([]LibRecord, m.cfg.libTableSize)
	m.tasks = make([]TaskRecord, m.cfg.taskTableSize)
	m.backgroundTimer = m.cfg.scanRateMillis
	return m, nil
}

// reserveAppSlotLocked linearly scans for the first free application slot,
// zeroes it, and reserves it in StateEarlyInit. Returns -1 when the table is
// full. Caller must hold mu; the reservation linearizes, so two concurrent
// creators always observe disjoint slots.
func (m *Manager) reserveAppSlotLocked() int {
	for i := range m.apps {
		if m.apps[i].State == StateUndefined {
			m.apps[i] = AppRecord{State: StateEarlyInit}
			return i
		}
	}
	return -1
}

// releaseAppSlotLocked returns a partially constructed slot to the free
// state. Caller must hold mu.
func (m *Manager) releaseAppSlotLocked(slot int) {
	m.apps[slot] = AppRecord{}
}

// findAppByNameLocked returns the slot of the named non-free application, or
// -1. Caller must hold mu. App names are unique across non-free slots.
func (m *Manager) findAppByNameLocked(name string) int {
	for i := range m.apps {
		if m.apps[i].State != StateUndefined && m.apps[i].Start.Name == name {
			return i
		}
	}
	return -1
}

// reserveLibSlotLocked performs the single-pass duplicate check and slot
// reservation for libraries: a matching in-use name returns that slot with
// already set (not an error); otherwise the first free slot is reserved with
// the name copied in. Returns slot -1 when the table is full. Caller must
// hold mu.
func (m *Manager) reserveLibSlotLocked(name string) (slot int, already bool) {
	free := -1
	for i := range m.libs {
		if m.libs[i].InUse {
			if m.libs[i].Name == name {
				return i, true
			}
		} else if free < 0 {
			free = i
		}
	}
	if free >= 0 {
		m.libs[free] = LibRecord{InUse: true, Name: name}
	}
	return free, false
}

// Registered reports the current registered-entity counters: external
// applications, libraries, and tasks.
func (m *Manager) Registered() (apps, libs, tasks uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registeredExternalApps, m.registeredLibs, m.registeredTasks
}

// AppIDByName resolves an application name to its slot.
func (m *Manager) AppIDByName(name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slot := m.findAppByNameLocked(name); slot >= 0 {
		return slot, nil
	}
	return 0, fmt.Errorf("%w: app %q", ErrNotFound, name)
}

// LibIDByName resolves a library name to its slot.
func (m *Manager) LibIDByName(name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.libs {
		if m.libs[i].InUse && m.libs[i].Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: lib %q", ErrNotFound, name)
}

// IncrementTaskExecutionCounter bumps the liveness counter of a registered
// task. Tasks call this from their own execution context.
func (m *Manager) IncrementTaskExecutionCounter(handle TaskHandle) error {
	idx, err := m.port.TaskIndex(handle)
	if err != nil || idx < 0 || idx >= len(m.tasks) {
		return fmt.Errorf("%w: task handle %d", ErrBadArgument, handle)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.tasks[idx].InUse || m.tasks[idx].Handle != handle {
		return fmt.Errorf("%w: task handle %d", ErrNotFound, handle)
	}
	m.tasks[idx].ExecutionCounter++
	return nil
}
