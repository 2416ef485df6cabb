// Package appmgr implements an application lifecycle manager for a
// flight-software style executive: it loads external application and library
// images through an operating-system port, binds their entry points, creates
// their primary task of execution, tracks their runtime state in fixed
// capacity slotted tables, and performs controlled teardown (exit, error
// exit, delete, restart, reload) including recovery of every owned
// operating-system resource.
//
// # Architecture
//
// The package is built around a [Manager] that composes four tightly coupled
// concerns:
//
//   - A module loader port ([OSPort]) abstracting module load/unload, symbol
//     lookup, task creation, and object enumeration.
//   - A slotted registry of applications, libraries, and tasks protected by a
//     single process-wide critical section.
//   - A control-request state machine with timeouts for graceful shutdown,
//     advanced by a background scanner ([Manager.ScanApps], driven either
//     externally or by [Manager.RunScanner]).
//   - A resource reclaimer that enumerates and deletes all kernel objects
//     owned by a task, with convergence detection.
//
// Applications are started from a line-oriented startup script (records
// terminated by ';', tokens by ',', end-of-file sentinel '!') via
// [Manager.StartApps], or individually via [Manager.AppCreate] and
// [Manager.LoadLibrary].
//
// # Concurrency
//
// One coarse mutex guards all registry tables, counters, and scanner state.
// The lock is never held across the OS port's blocking surfaces (module
// load/unload, symbol lookup, object enumeration, task delete, script I/O)
// nor across external callbacks (cleanup hooks, library init); the scanner
// explicitly drops and re-acquires the lock around control-request
// processing, re-reading slot state afterwards. Task creation and task
// record registration are the one deliberate exception: they execute under
// the lock so that a created task is registered atomically with respect to
// every other reader.
//
// # Observability
//
// Structured notifications are emitted through a
// [github.com/joeycumines/logiface] logger, with an optional append-only
// syslog sink, and optional rate limiting of repeated error events via
// [github.com/joeycumines/go-catrate].
package appmgr
