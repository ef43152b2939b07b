package orchestrator

import (
	"github.com/rxtech-lab/pulse-trading/internal/types"
)

// Lifecycle callback types for engine phases.

// OnStateChangeCallback is called on every engine state transition.
type OnStateChangeCallback func(state types.EngineState)

// OnSignalCallback is called for each signal the arbiter promotes, before the
// order is submitted.
type OnSignalCallback func(signal types.Signal)

// OnOrderFilledCallback is called when an order is filled, entries and exits
// both.
type OnOrderFilledCallback func(order types.Order)

// OnExitCallback is called when the monitor closes a position.
type OnExitCallback func(position types.Position, reason types.Reason)

// OnErrorCallback is called when a non-fatal error occurs.
type OnErrorCallback func(err error)

// Callbacks holds all lifecycle callback functions for the engine.
// All fields are pointers - nil means no callback will be invoked.
type Callbacks struct {
	// OnStateChange is called on every engine state transition.
	OnStateChange *OnStateChangeCallback

	// OnSignal is called for each promoted signal.
	OnSignal *OnSignalCallback

	// OnOrderFilled is called when an order is filled.
	OnOrderFilled *OnOrderFilledCallback

	// OnExit is called when the monitor closes a position.
	OnExit *OnExitCallback

	// OnError is called when a non-fatal error occurs.
	OnError *OnErrorCallback
}

func (a *Application) notifyStateChange(state types.EngineState) {
	if cb := a.callbacks.OnStateChange; cb != nil {
		(*cb)(state)
	}
}

func (a *Application) notifySignal(signal types.Signal) {
	if cb := a.callbacks.OnSignal; cb != nil {
		(*cb)(signal)
	}
}

func (a *Application) notifyOrderFilled(order types.Order) {
	if cb := a.callbacks.OnOrderFilled; cb != nil {
		(*cb)(order)
	}
}

func (a *Application) notifyExit(position types.Position, reason types.Reason) {
	if cb := a.callbacks.OnExit; cb != nil {
		(*cb)(position, reason)
	}
}

func (a *Application) notifyError(err error) {
	if cb := a.callbacks.OnError; cb != nil {
		(*cb)(err)
	}
}
