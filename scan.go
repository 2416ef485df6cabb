package appmgr

import (
	"context"
	"time"
)

// ScanApps is one pass of the background scanner, with elapsedMillis the
// wall time since the previous pass. It advances the control-request state
// machine for every external application and dispatches expired requests.
// The return value reports whether state changes are still pending, which a
// driver may use to shorten its next interval.
//
// An idle pass is cheap: when nothing was pending, no command has been
// issued since the last pass, and the background timer has not expired, the
// scanner only decrements the timer.
//
// Slots are visited in index order. The lock is dropped around request
// dispatch (which may re-enter creation) and re-acquired afterwards; no slot
// state observed before the drop is assumed to persist across it.
func (m *Manager) ScanApps(elapsedMillis uint32) bool {
	cmd := m.commandCount.Load()

	m.mu.Lock()
	if m.pendingStateChanges == 0 && m.lastScanCommandCount == cmd && m.backgroundTimer > elapsedMillis {
		m.backgroundTimer -= elapsedMillis
		m.mu.Unlock()
		return false
	}
	m.backgroundTimer = m.cfg.scanRateMillis
	m.lastScanCommandCount = cmd
	m.pendingStateChanges = 0

	for i := range m.apps {
		rec := &m.apps[i]
		if rec.Type != AppTypeExternal || rec.State == StateUndefined {
			continue
		}
		if rec.State > StateRunning {
			m.pendingStateChanges++
			if rec.TimerMillis > elapsedMillis {
				rec.TimerMillis -= elapsedMillis
			} else {
				rec.TimerMillis = 0
				m.mu.Unlock()
				m.processControlRequest(i)
				m.mu.Lock()
			}
		} else if rec.State == StateRunning && rec.Request > RequestAppRun {
			rec.State = StateWaiting
			rec.TimerMillis = m.cfg.killTimeout * m.cfg.scanRateMillis
		}
	}
	pending := m.pendingStateChanges != 0
	m.mu.Unlock()
	return pending
}

// RunScanner drives ScanApps on the configured cadence until ctx is done,
// shortening the interval while state changes are pending. It returns the
// context's error.
func (m *Manager) RunScanner(ctx context.Context) error {
	interval := time.Duration(m.cfg.scanRateMillis) * time.Millisecond
	fast := interval / 4
	timer := time.NewTimer(interval)
	defer timer.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-timer.C:
			elapsed := now.Sub(last)
			last = now
			if elapsed < 0 {
				elapsed = 0
			}
			next := interval
			if m.ScanApps(uint32(elapsed / time.Millisecond)) {
				next = fast
			}
			timer.Reset(next)
		}
	}
}
