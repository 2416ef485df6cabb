package appmgr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptions_Applied(t *testing.T) {
	port := newMockPort()
	m, err := New(port,
		WithAppTableSize(4),
		WithLibTableSize(2),
		WithTaskTableSize(8),
		WithMaxAPINameLen(10),
		WithMaxPathLen(32),
		WithScanRate(250),
		WithKillTimeout(3),
		WithStartupScript("/v/boot.scr", "/nv/boot.scr"),
		nil, // nil options are skipped
	)
	require.NoError(t, err)
	require.Len(t, m.apps, 4)
	require.Len(t, m.libs, 2)
	require.Len(t, m.tasks, 8)
	require.EqualValues(t, 250, m.cfg.scanRateMillis)
	require.EqualValues(t, 3, m.cfg.killTimeout)
	require.Equal(t, "/v/boot.scr", m.cfg.volatileScriptPath)
	require.Equal(t, "/nv/boot.scr", m.cfg.nonVolatileScriptPath)
	require.EqualValues(t, 10, m.cfg.maxAPINameLen)
	require.EqualValues(t, 32, m.cfg.maxPathLen)
}

func TestOptions_Invalid(t *testing.T) {
	port := newMockPort()
	for _, opt := range []Option{
		WithAppTableSize(-1),
		WithLibTableSize(0),
		WithTaskTableSize(0),
		WithMaxAPINameLen(0),
		WithMaxPathLen(-5),
		WithScanRate(0),
		WithKillTimeout(0),
		WithCleanupHook("nil", nil),
	} {
		_, err := New(port, opt)
		require.ErrorIs(t, err, ErrBadArgument)
	}
}

func TestEnum_Strings(t *testing.T) {
	require.Equal(t, "Running", StateRunning.String())
	require.Equal(t, "Undefined", StateUndefined.String())
	require.Equal(t, "SysRestart", RequestSysRestart.String())
	require.Equal(t, "External", AppTypeExternal.String())
	require.Equal(t, "ProcRestart", ExceptionProcRestart.String())
	require.Equal(t, "Processor", ResetProcessor.String())
	require.Equal(t, "queue", ObjQueue.String())
	require.Contains(t, AppState(99).String(), "99")
	require.Contains(t, ControlRequest(42).String(), "42")
}
