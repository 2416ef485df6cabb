package appmgr

import (
	"fmt"
	"io"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Defaults for build-time style configuration. All of them can be overridden
// at construction via options.
const (
	DefaultAppTableSize  = 32
	DefaultLibTableSize  = 16
	DefaultTaskTableSize = 64
	DefaultMaxAPINameLen = 20
	DefaultMaxPathLen    = 64

	// DefaultScanRate is the scanner cadence in milliseconds.
	DefaultScanRate = 1000
	// DefaultKillTimeout is the number of scan periods a waiting application
	// is granted before forced teardown.
	DefaultKillTimeout = 5

	DefaultVolatileScriptPath    = "/ram/startup.scr"
	DefaultNonVolatileScriptPath = "/cf/startup.scr"
)

// CleanupHook is an external per-app teardown callback (table, software-bus,
// time, and event subsystems register these). Hooks are invoked outside the
// global lock, before any owned OS resource is reclaimed; a non-nil error is
// aggregated into the teardown status but never aborts it.
type CleanupHook func(slot int) error

type config struct {
	appTableSize  int
	libTableSize  int
	taskTableSize int
	maxAPINameLen int
	maxPathLen    int

	scanRateMillis uint32
	killTimeout    uint32

	volatileScriptPath    string
	nonVolatileScriptPath string

	cleanupHooks []namedCleanupHook
}

type namedCleanupHook struct {
	name string
	fn   CleanupHook
}

// Option configures a Manager instance.
type Option interface {
	apply(*Manager) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyFunc func(*Manager) error
}

func (o *optionImpl) apply(m *Manager) error {
	return o.applyFunc(m)
}

// WithAppTableSize sets the fixed capacity of the application table.
func WithAppTableSize(n int) Option {
	return &optionImpl{func(m *Manager) error {
		if n <= 0 {
			return fmt.Errorf("%w: app table size %d", ErrBadArgument, n)
		}
		m.cfg.appTableSize = n
		return nil
	}}
}

// WithLibTableSize sets the fixed capacity of the library table.
func WithLibTableSize(n int) Option {
	return &optionImpl{func(m *Manager) error {
		if n <= 0 {
			return fmt.Errorf("%w: lib table size %d", ErrBadArgument, n)
		}
		m.cfg.libTableSize = n
		return nil
	}}
}

// WithTaskTableSize sets the fixed capacity of the task table. Task handles
// must convert (via [OSPort.TaskIndex]) to indices below this size.
func WithTaskTableSize(n int) Option {
	return &optionImpl{func(m *Manager) error {
		if n <= 0 {
			return fmt.Errorf("%w: task table size %d", ErrBadArgument, n)
		}
		m.cfg.taskTableSize = n
		return nil
	}}
}

// WithMaxAPINameLen bounds application and library names.
func WithMaxAPINameLen(n int) Option {
	return &optionImpl{func(m *Manager) error {
		if n <= 0 {
			return fmt.Errorf("%w: max api name length %d", ErrBadArgument, n)
		}
		m.cfg.maxAPINameLen = n
		return nil
	}}
}

// WithMaxPathLen bounds file paths and entry point names.
func WithMaxPathLen(n int) Option {
	return &optionImpl{func(m *Manager) error {
		if n <= 0 {
			return fmt.Errorf("%w: max path length %d", ErrBadArgument, n)
		}
		m.cfg.maxPathLen = n
		return nil
	}}
}

// WithScanRate sets the scanner cadence in milliseconds. The product of the
// scan rate and the kill timeout is the graceful-shutdown deadline.
func WithScanRate(millis uint32) Option {
	return &optionImpl{func(m *Manager) error {
		if millis == 0 {
			return fmt.Errorf("%w: zero scan rate", ErrBadArgument)
		}
		m.cfg.scanRateMillis = millis
		return nil
	}}
}

// WithKillTimeout sets the number of scan periods granted to a waiting
// application before forced teardown.
func WithKillTimeout(periods uint32) Option {
	return &optionImpl{func(m *Manager) error {
		if periods == 0 {
			return fmt.Errorf("%w: zero kill timeout", ErrBadArgument)
		}
		m.cfg.killTimeout = periods
		return nil
	}}
}

// WithStartupScript sets the volatile and non-volatile startup script paths
// used by [Manager.StartApps]. Either may be empty to disable that path.
func WithStartupScript(volatile, nonVolatile string) Option {
	return &optionImpl{func(m *Manager) error {
		m.cfg.volatileScriptPath = volatile
		m.cfg.nonVolatileScriptPath = nonVolatile
		return nil
	}}
}

// WithCleanupHook registers an external per-app teardown callback. Hooks run
// in registration order during [Manager.CleanUpApp], outside the global
// lock. The name appears in failure notifications.
func WithCleanupHook(name string, fn CleanupHook) Option {
	return &optionImpl{func(m *Manager) error {
		if fn == nil {
			return fmt.Errorf("%w: nil cleanup hook %q", ErrBadArgument, name)
		}
		m.cfg.cleanupHooks = append(m.cfg.cleanupHooks, namedCleanupHook{name: name, fn: fn})
		return nil
	}}
}

// WithLogger sets the structured notification sink. A nil logger disables
// structured events (the syslog sink, if any, still receives lines).
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(m *Manager) error {
		m.log = logger
		return nil
	}}
}

// WithSysLog sets the append-only syslog sink. Writes are serialized by the
// manager; the writer itself need not be safe for concurrent use.
func WithSysLog(w io.Writer) Option {
	return &optionImpl{func(m *Manager) error {
		m.sysLog.w = w
		return nil
	}}
}

// WithEventRateLimit enables rate limiting of repeated error events, per
// (event, application) category. Rates follow the semantics of
// [catrate.NewLimiter]: a map of sliding window durations to maximum event
// counts. INFO events are never limited.
func WithEventRateLimit(rates map[time.Duration]int) Option {
	return &optionImpl{func(m *Manager) error {
		m.limiter = catrate.NewLimiter(rates)
		return nil
	}}
}
