package appmgr

import (
	"fmt"
)

// AppInfo is a point-in-time snapshot of one application slot, assembled
// under the global lock (module segment addresses are queried from the port
// afterwards).
type AppInfo struct {
	Slot  int
	Name  string
	State AppState
	Type  AppType

	EntryPointName  string
	FileName        string
	StackSize       uint32
	Priority        uint16
	ExceptionAction ExceptionAction
	StartAddress    EntryAddress
	ModuleHandle    ModuleHandle

	MainTaskHandle   TaskHandle
	MainTaskName     string
	ExecutionCounter uint32

	Module ModuleInfo
}

// AppInfo returns a snapshot of the given application slot.
func (m *Manager) AppInfo(slot int) (AppInfo, error) {
	m.mu.Lock()
	if slot < 0 || slot >= len(m.apps) {
		m.mu.Unlock()
		return AppInfo{}, fmt.Errorf("%w: app slot %d", ErrBadArgument, slot)
	}
	rec := &m.apps[slot]
	if rec.State == StateUndefined {
		m.mu.Unlock()
		return AppInfo{}, fmt.Errorf("%w: app slot %d", ErrNotFound, slot)
	}
	info := AppInfo{
		Slot:            slot,
		Name:            rec.Start.Name,
		State:           rec.State,
		Type:            rec.Type,
		EntryPointName:  rec.Start.EntryPointName,
		FileName:        rec.Start.FileName,
		StackSize:       rec.Start.StackSize,
		Priority:        rec.Start.Priority,
		ExceptionAction: rec.Start.ExceptionAction,
		StartAddress:    rec.Start.StartAddress,
		ModuleHandle:    rec.Start.ModuleHandle,
		MainTaskHandle:  rec.MainTaskHandle,
		MainTaskName:    rec.MainTaskName,
	}
	if idx, err := m.port.TaskIndex(rec.MainTaskHandle); err == nil && idx >= 0 && idx < len(m.tasks) &&
		m.tasks[idx].InUse && m.tasks[idx].Handle == rec.MainTaskHandle {
		info.ExecutionCounter = m.tasks[idx].ExecutionCounter
	}
	m.mu.Unlock()

	if mi, err := m.port.ModuleInfo(info.ModuleHandle); err == nil {
		info.Module = mi
	}
	return info, nil
}
