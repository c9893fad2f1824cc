// Package state holds the shared coordinator state for TinyImage.
//
// CoordinatorState is built once per process and injected into the router,
// the batch coordinator, the lifecycle controller and the GUI bindings.
// Each container carries its own lock; there is no global lock.
package state

// CoordinatorState groups the state shared by the invocation subsystem.
type CoordinatorState struct {
	// Startup holds the queue of files received before the UI was ready,
	// together with the readiness flag. Both share one lock.
	Startup *Startup

	// Background is the sticky background-mode flag.
	Background *Background

	// Batch tracks the in-flight logical batch.
	Batch *BatchState
}

// New creates an empty CoordinatorState.
func New() *CoordinatorState {
	return &CoordinatorState{
		Startup:    &Startup{},
		Background: &Background{},
		Batch:      &BatchState{},
	}
}
