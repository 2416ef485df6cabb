package appmgr

import (
	"fmt"
)

// CleanUpApp tears down one application: external per-app cleanup hooks run
// first (outside the global lock), then every child task's resources, then
// the main task's, then the module image is unloaded and the slot freed.
// Failures are logged and aggregated into the worst observed status; cleanup
// never aborts mid-way.
func (m *Manager) CleanUpApp(slot int) error {
	m.mu.Lock()
	if slot < 0 || slot >= len(m.apps) || m.apps[slot].State == StateUndefined {
		m.mu.Unlock()
		return fmt.Errorf("%w: app slot %d", ErrNotFound, slot)
	}
	rec := &m.apps[slot]
	var (
		name     = rec.Start.Name
		appType  = rec.Type
		module   = rec.Start.ModuleHandle
		mainTask = rec.MainTaskHandle
		children []TaskHandle
	)
	for i := range m.tasks {
		if m.tasks[i].InUse && m.tasks[i].OwningApp == slot && m.tasks[i].Handle != mainTask {
			children = append(children, m.tasks[i].Handle)
		}
	}
	m.mu.Unlock()

	var worst error
	for _, hook := range m.cfg.cleanupHooks {
		if err := hook.fn(slot); err != nil {
			m.writeSysLog("app %s: %s cleanup hook failed: %v", name, hook.name, err)
			if worst == nil {
				worst = err
			}
		}
	}

	// Children before the main task; each may report partial failure.
	for _, child := range children {
		if err := m.cleanupTaskResources(child); err != nil {
			m.writeSysLog("app %s: child task %d cleanup: %v", name, child, err)
			if worst == nil {
				worst = err
			}
		}
	}
	if err := m.cleanupTaskResources(mainTask); err != nil {
		m.writeSysLog("app %s: main task %d cleanup: %v", name, mainTask, err)
		if worst == nil {
			worst = err
		}
	}

	// The module image is owned by the record that loaded it; unload errors
	// are logged, not fatal.
	if appType == AppTypeExternal {
		if err := m.port.ModuleUnload(module); err != nil {
			m.writeSysLog("app %s: module unload failed: %v", name, err)
		}
	}

	m.mu.Lock()
	if appType == AppTypeExternal {
		m.registeredExternalApps--
	}
	m.apps[slot] = AppRecord{}
	m.mu.Unlock()
	return worst
}

// cleanupTaskResources reclaims every OS object owned by a task, then
// deletes the task itself and invalidates its record. The reclaim loop is
// convergent: it repeats enumeration until a pass finds nothing, and a
// progress guard (no deletes, or no shrink versus the previous pass) breaks
// out when an object refuses to delete, so a stuck object can never loop
// forever.
func (m *Manager) cleanupTaskResources(handle TaskHandle) error {
	var (
		found   int
		prev    = -1
		overall error
	)
	for {
		found = 0
		deleted := 0
		m.port.ForEachObject(handle, func(id ObjectID, kind ObjKind) {
			found++
			if err := m.port.DeleteObject(id, kind); err != nil {
				if overall == nil {
					overall = fmt.Errorf("%w: object %d: %v", deleteErrorForKind(kind), id, err)
				}
			} else {
				deleted++
			}
		})
		if found == 0 {
			break
		}
		if deleted == 0 || (prev >= 0 && found >= prev) {
			break
		}
		prev = found
	}

	deleteErr := m.port.TaskDelete(handle)

	// Invalidate the task record regardless of reclaim outcome.
	if idx, err := m.port.TaskIndex(handle); err == nil && idx >= 0 && idx < len(m.tasks) {
		m.mu.Lock()
		if m.tasks[idx].InUse && m.tasks[idx].Handle == handle {
			m.tasks[idx] = TaskRecord{}
			m.registeredTasks--
		}
		m.mu.Unlock()
	}

	switch {
	case deleteErr != nil:
		return fmt.Errorf("%w: task %d: %v", ErrTaskDelete, handle, deleteErr)
	case found > 0 && overall != nil:
		return fmt.Errorf("%w: %w", ErrAppCleanup, overall)
	case found > 0:
		return fmt.Errorf("%w: %d objects remain for task %d", ErrAppCleanup, found, handle)
	default:
		// Transient delete failures that converged anyway are not reported;
		// every owned object was ultimately reclaimed.
		return nil
	}
}
