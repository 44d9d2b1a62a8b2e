// Package manager owns the loaded model and the conversation bound to it.
// It is structured into small files by concern:
//
//   - manager.go: Manager, SelectModel/SelectByName, Shutdown, getters.
//   - config.go: ManagerConfig and defaults; NewWithConfig applies them.
//   - handle.go: Handle, the loaded engine of one descriptor.
//   - budget.go: Budget, the token accounting of a conversation.
//   - session.go: Session state machine (Submit, Cancel, Reset, Close).
//   - queue.go: StreamEvent and the unbounded queue feeding Submit's channel.
//   - events.go: lifecycle events, EventPublisher, Broadcaster.
//   - eventpub_memory.go: MemoryPublisher, an in-memory recorder for tests.
//   - errors.go: sentinels, LoadError and IsX helpers for the HTTP mapping.
//   - metrics.go: Prometheus collectors for loads and generations.
//   - status_report.go: Snapshot/Status/Models reporting helpers.
//
// Lifecycle: Unselected -> Loading -> Ready | Failed. Selecting another
// descriptor always closes the old session and unloads the old handle before
// the new handle is loaded, so at most one engine is alive.
//
// Session states: Idle -> Generating -> Idle (done), Cancelled -> Idle, or
// Failed (reset required). Everything else fails fast with a sentinel error.
package manager
