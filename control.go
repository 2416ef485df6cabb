package appmgr

import (
	"fmt"
)

// SetControlRequest records a control request against a running external
// application and bumps the command counter, guaranteeing the scanner
// observes the request on its next invocation even when otherwise idle.
//
// Request values outside the known enumeration are accepted here and coerced
// to RequestSysDelete by the state machine on first observation.
func (m *Manager) SetControlRequest(slot int, req ControlRequest) error {
	m.mu.Lock()
	if slot < 0 || slot >= len(m.apps) {
		m.mu.Unlock()
		return fmt.Errorf("%w: app slot %d", ErrBadArgument, slot)
	}
	rec := &m.apps[slot]
	if rec.State == StateUndefined {
		m.mu.Unlock()
		return fmt.Errorf("%w: app slot %d", ErrNotFound, slot)
	}
	if rec.Type != AppTypeExternal {
		m.mu.Unlock()
		return fmt.Errorf("%w: app slot %d is not external", ErrBadArgument, slot)
	}
	rec.Request = req
	m.mu.Unlock()
	m.commandCount.Add(1)
	return nil
}

// processControlRequest dispatches one expired control request. It is called
// by the scanner with the global lock released; slot state is re-read under
// a fresh lock acquisition, and the start parameters are snapshotted before
// any mutation so restart and reload can reference them after the slot has
// been cleared.
func (m *Manager) processControlRequest(slot int) {
	m.mu.Lock()
	rec := &m.apps[slot]
	if rec.State == StateUndefined {
		// Torn down by a competing path while the scanner held no lock.
		m.mu.Unlock()
		return
	}
	req := rec.Request
	start := rec.Start
	switch req {
	case RequestAppExit, RequestAppError, RequestSysDelete, RequestSysRestart, RequestSysReload:
		rec.State = StateStopped
		m.mu.Unlock()
	case RequestSysException:
		// Rewrite to delete before reporting, so a fault observed on every
		// scan produces a single event rather than a storm.
		rec.Request = RequestSysDelete
		m.mu.Unlock()
		m.sendEvent(EventControlInvalidErr, true, start.Name,
			"exception control request, converting to delete")
		return
	default:
		rec.Request = RequestSysDelete
		m.mu.Unlock()
		m.sendEvent(EventControlUnknownErr, true, start.Name,
			"unknown control request %d, converting to delete", uint32(req))
		return
	}

	cleanupErr := m.CleanUpApp(slot)

	switch req {
	case RequestAppExit:
		if cleanupErr != nil {
			m.sendEvent(EventAppExitErr, true, start.Name, "exit cleanup incomplete: %v", cleanupErr)
		} else {
			m.sendEvent(EventAppExitInf, false, start.Name, "application exit completed")
		}
	case RequestAppError:
		m.sendEvent(EventAppErrExit, true, start.Name, "application error exit completed")
	case RequestSysDelete:
		if cleanupErr != nil {
			m.sendEvent(EventAppStopErr, true, start.Name, "stop cleanup incomplete: %v", cleanupErr)
		} else {
			m.sendEvent(EventAppStopInf, false, start.Name, "application stopped")
		}
	case RequestSysRestart, RequestSysReload:
		infID, errID := EventAppRestartInf, EventAppRestartErr
		if req == RequestSysReload {
			infID, errID = EventAppReloadInf, EventAppReloadErr
		}
		if cleanupErr != nil {
			m.writeSysLog("app %s: cleanup before %s incomplete: %v", start.Name, req, cleanupErr)
		}
		newSlot, err := m.AppCreate(start.FileName, start.EntryPointName, start.Name,
			start.Priority, start.StackSize, start.ExceptionAction)
		if err != nil {
			m.sendEvent(errID, true, start.Name, "re-create failed: %v", err)
		} else {
			m.sendEvent(infID, false, start.Name, "application restarted in slot %d", newSlot)
		}
	}
}
