package appmgr

import (
	"fmt"
)

// AppCreate loads the module at fileName, resolves entryPoint, and creates
// the application's primary task. It is a linear sequence of fallible
// stages; the first failure compensates in reverse order, returning the slot
// to StateUndefined with no kernel resources retained. On success the slot
// index is returned with the application in StateRunning.
//
// A task-create failure unloads the module image before releasing the slot.
func (m *Manager) AppCreate(fileName, entryPoint, appName string, priority uint16, stackSize uint32, excAction ExceptionAction) (int, error) {
	if appName == "" || len(appName) > m.cfg.maxAPINameLen {
		return 0, fmt.Errorf("%w: app name %q", ErrBadArgument, appName)
	}
	if entryPoint == "" || len(entryPoint) > m.cfg.maxPathLen {
		return 0, fmt.Errorf("%w: entry point %q", ErrBadArgument, entryPoint)
	}
	if fileName == "" || len(fileName) > m.cfg.maxPathLen {
		return 0, fmt.Errorf("%w: file name %q", ErrBadArgument, fileName)
	}

	// Stage 1: name check and slot reservation, one pass under lock. App
	// names are unique across live slots.
	m.mu.Lock()
	if m.findAppByNameLocked(appName) >= 0 {
		m.mu.Unlock()
		m.sendEvent(EventAppCreateErr, true, appName, "application name already in use")
		return 0, fmt.Errorf("%w: app %q already exists", ErrAppCreate, appName)
	}
	slot := m.reserveAppSlotLocked()
	m.mu.Unlock()
	if slot < 0 {
		m.sendEvent(EventAppCreateErr, true, appName, "no free application slots")
		return 0, fmt.Errorf("%w: application table full", ErrAppCreate)
	}

	// Stage 2: module load (lock released).
	handle, err := m.port.ModuleLoad(appName, fileName)
	if err != nil {
		m.mu.Lock()
		m.releaseAppSlotLocked(slot)
		m.mu.Unlock()
		m.sendEvent(EventAppCreateErr, true, appName, "could not load file %s: %v", fileName, err)
		return 0, fmt.Errorf("%w: load %s: %v", ErrAppCreate, fileName, err)
	}

	// Stage 3: entry point resolution (lock released).
	addr, err := m.port.SymbolLookup(entryPoint)
	if err != nil {
		_ = m.port.ModuleUnload(handle)
		m.mu.Lock()
		m.releaseAppSlotLocked(slot)
		m.mu.Unlock()
		m.sendEvent(EventAppCreateErr, true, appName, "could not find symbol %s in %s: %v", entryPoint, fileName, err)
		return 0, fmt.Errorf("%w: symbol %s: %v", ErrAppCreate, entryPoint, err)
	}

	// Stages 4-6 run under one lock acquisition so the created task is
	// registered atomically with respect to every other reader. The port's
	// TaskCreate must not call back into the manager (see OSPort).
	m.mu.Lock()
	rec := &m.apps[slot]
	rec.State = StateLateInit
	rec.Type = AppTypeExternal
	rec.Start = StartParams{
		Name:            appName,
		EntryPointName:  entryPoint,
		FileName:        fileName,
		StackSize:       stackSize,
		Priority:        priority,
		ExceptionAction: excAction,
		StartAddress:    addr,
		ModuleHandle:    handle,
	}
	rec.Request = RequestAppRun
	rec.TimerMillis = 0

	// Stage 5: primary task, floating-point context enabled.
	taskHandle, err := m.port.TaskCreate(appName, addr, stackSize, priority, true)
	if err != nil {
		m.releaseAppSlotLocked(slot)
		m.mu.Unlock()
		_ = m.port.ModuleUnload(handle)
		m.sendEvent(EventAppCreateErr, true, appName, "could not create main task: %v", err)
		return 0, fmt.Errorf("%w: task create: %v", ErrAppCreate, err)
	}

	// Stage 6: task record registration.
	idx, err := m.port.TaskIndex(taskHandle)
	if err != nil || idx < 0 || idx >= len(m.tasks) {
		m.releaseAppSlotLocked(slot)
		m.mu.Unlock()
		_ = m.port.TaskDelete(taskHandle)
		_ = m.port.ModuleUnload(handle)
		m.sendEvent(EventAppCreateErr, true, appName, "main task handle %d not convertible to index", taskHandle)
		return 0, fmt.Errorf("%w: task index: %v", ErrAppCreate, err)
	}
	collision := m.tasks[idx].InUse
	collisionName := m.tasks[idx].Name
	m.tasks[idx] = TaskRecord{
		InUse:     true,
		OwningApp: slot,
		Handle:    taskHandle,
		Name:      appName,
	}
	if !collision {
		m.registeredTasks++
	}
	rec.MainTaskHandle = taskHandle
	rec.MainTaskName = appName
	rec.State = StateRunning
	m.registeredExternalApps++
	m.mu.Unlock()

	if collision {
		// Indicates an earlier leak in that task slot; last writer wins.
		m.sendEvent(EventTaskRegWarn, true, appName,
			"task slot %d already in use by %q, overwritten", idx, collisionName)
	}
	m.writeSysLog("app %s created in slot %d (task handle %d)", appName, slot, taskHandle)
	return slot, nil
}

// LoadLibrary loads the module at fileName (when non-empty), optionally
// resolves and invokes its init function, and commits the library slot.
// Loading an already-loaded name returns the existing slot with already set
// and is not an error.
//
// All failure paths after slot reservation funnel through a single cleanup
// epilogue: the module is unloaded if it was loaded, and the slot is
// cleared.
func (m *Manager) LoadLibrary(fileName, entryPoint, libName string) (slot int, already bool, err error) {
	if libName == "" || len(libName) > m.cfg.maxAPINameLen {
		return 0, false, fmt.Errorf("%w: library name %q", ErrBadArgument, libName)
	}
	if len(fileName) > m.cfg.maxPathLen {
		return 0, false, fmt.Errorf("%w: file name %q", ErrBadArgument, fileName)
	}
	if len(entryPoint) > m.cfg.maxPathLen {
		return 0, false, fmt.Errorf("%w: entry point %q", ErrBadArgument, entryPoint)
	}

	// Stage 1: duplicate check and slot reservation, one pass under lock.
	m.mu.Lock()
	slot, already = m.reserveLibSlotLocked(libName)
	m.mu.Unlock()
	if already {
		m.writeSysLog("library %s already loaded in slot %d", libName, slot)
		return slot, true, nil
	}
	if slot < 0 {
		m.sendEvent(EventLibLoadErr, true, libName, "no free library slots")
		return 0, false, fmt.Errorf("%w: library table full", ErrLoadLib)
	}

	var (
		handle ModuleHandle
		loaded bool
		addr   EntryAddress
		status error
	)

	// Stage 2: optional module load.
	if fileName != "" {
		if handle, err = m.port.ModuleLoad(libName, fileName); err != nil {
			status = fmt.Errorf("load %s: %v", fileName, err)
		} else {
			loaded = true
		}
	}

	// Stage 3: optional entry resolution. The literal name "NULL" keeps
	// compatibility with startup scripts written for loaders that use it to
	// mean "no init function".
	if status == nil && entryPoint != "" && entryPoint != "NULL" {
		if addr, err = m.port.SymbolLookup(entryPoint); err != nil {
			status = fmt.Errorf("symbol %s: %v", entryPoint, err)
		}
	}

	// Stage 4: optional init call, lock released. Non-nil is a fatal load
	// error; there is no retry.
	if status == nil && addr != 0 {
		if err = m.port.LibraryInit(addr, slot); err != nil {
			status = fmt.Errorf("init %s: %v", entryPoint, err)
		}
	}

	// Stage 5: commit or roll back. No early returns above this point once
	// the slot is reserved; every failure reaches this epilogue.
	if status == nil {
		m.mu.Lock()
		m.libs[slot].ModuleHandle = handle
		m.registeredLibs++
		m.mu.Unlock()
		m.writeSysLog("library %s loaded in slot %d", libName, slot)
		return slot, false, nil
	}
	if loaded {
		_ = m.port.ModuleUnload(handle)
	}
	m.mu.Lock()
	m.libs[slot] = LibRecord{}
	m.mu.Unlock()
	m.sendEvent(EventLibLoadErr, true, libName, "%v", status)
	return 0, false, fmt.Errorf("%w: %v", ErrLoadLib, status)
}
