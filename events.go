package appmgr

import (
	"fmt"
	"time"

	"github.com/joeycumines/logiface"
)

// EventID enumerates the manager's outbound notifications: the six
// control-request outcomes (each with an INFO and an ERROR form where both
// can occur), plus creation and load failures.
type EventID uint16

const (
	EventAppExitInf EventID = iota + 1
	EventAppExitErr
	EventAppErrExit
	EventAppStopInf
	EventAppStopErr
	EventAppRestartInf
	EventAppRestartErr
	EventAppReloadInf
	EventAppReloadErr
	EventControlInvalidErr
	EventControlUnknownErr
	EventAppCreateErr
	EventLibLoadErr
	EventScriptErr
	EventTaskRegWarn
)

// String returns the event's stable tag, suitable for filtering downstream.
func (e EventID) String() string {
	switch e {
	case EventAppExitInf:
		return "EXIT_APP_INF"
	case EventAppExitErr:
		return "EXIT_APP_ERR"
	case EventAppErrExit:
		return "ERREXIT_APP_ERR"
	case EventAppStopInf:
		return "STOP_INF"
	case EventAppStopErr:
		return "STOP_ERR"
	case EventAppRestartInf:
		return "RESTART_APP_INF"
	case EventAppRestartErr:
		return "RESTART_APP_ERR"
	case EventAppReloadInf:
		return "RELOAD_APP_INF"
	case EventAppReloadErr:
		return "RELOAD_APP_ERR"
	case EventControlInvalidErr:
		return "PCR_ERR1"
	case EventControlUnknownErr:
		return "PCR_ERR2"
	case EventAppCreateErr:
		return "APP_CREATE_ERR"
	case EventLibLoadErr:
		return "LOAD_LIB_ERR"
	case EventScriptErr:
		return "SCRIPT_ERR"
	case EventTaskRegWarn:
		return "TASK_REG_WARN"
	default:
		return fmt.Sprintf("UNKNOWN_EID(%d)", uint16(e))
	}
}

// eventCategory is the rate-limiting key for error events: repeats of the
// same event for the same application share one budget.
type eventCategory struct {
	id  EventID
	app string
}

// sendEvent emits one structured notification, mirrored to the syslog sink.
// Error-severity events are subject to the configured rate limiter; INFO
// events never are.
func (m *Manager) sendEvent(id EventID, severe bool, app, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if severe && m.limiter != nil {
		if _, ok := m.limiter.Allow(eventCategory{id: id, app: app}); !ok {
			return
		}
	}
	if m.log != nil {
		var b *logiface.Builder[logiface.Event]
		if severe {
			b = m.log.Err()
		} else {
			b = m.log.Info()
		}
		b.Stringer(`event`, id).
			Str(`app`, app).
			Log(msg)
	}
	m.writeSysLog("%s %s: %s", id, app, msg)
}

// writeSysLog appends one timestamped line to the syslog sink, if any.
func (m *Manager) writeSysLog(format string, args ...any) {
	m.sysLog.mu.Lock()
	defer m.sysLog.mu.Unlock()
	if m.sysLog.w == nil {
		return
	}
	args = append([]any{time.Now().UTC().Format(time.RFC3339)}, args...)
	_, _ = fmt.Fprintf(m.sysLog.w, "%s "+format+"\n", args...)
}
