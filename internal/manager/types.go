package manager

// State is the lifecycle state of the manager.
type State string

const (
	StateUnselected State = "unselected"
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateFailed     State = "failed"
)

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State State
	// Model is the selected descriptor name; empty when unselected.
	Model string
	Path  string
	Err   string
}
