package types

// EngineState is the orchestrator's lifecycle state.
type EngineState string

const (
	EngineStateStopped      EngineState = "stopped"
	EngineStateInitializing EngineState = "initializing"
	EngineStateRunning      EngineState = "running"
	EngineStateStopping     EngineState = "stopping"
	// EngineStateFailed is terminal, reached from initializing on an
	// unrecoverable startup error. There is no automatic restart.
	EngineStateFailed EngineState = "failed"
)
