package orchestrator

import (
	"github.com/rxtech-lab/pulse-trading/internal/types"
)

// Status is a point-in-time report of the engine's lifecycle state, its
// supervised connections and its risk posture.
type Status struct {
	State types.EngineState `yaml:"state" json:"state"`
	// Healthy is true only while the engine is running with both the broker
	// gateway and the market feed connected. A degraded cache does not affect
	// health.
	Healthy          bool                     `yaml:"healthy" json:"healthy"`
	ActiveStrategies int                      `yaml:"active_strategies" json:"active_strategies"`
	OpenPositions    int                      `yaml:"open_positions" json:"open_positions"`
	Connections      []types.ConnectionHealth `yaml:"connections" json:"connections"`
	// CacheDegraded is true when the shared cache was enabled but unreachable
	// at startup and the engine fell back to its in-memory cache.
	CacheDegraded bool            `yaml:"cache_degraded" json:"cache_degraded"`
	Risk          types.RiskState `yaml:"risk" json:"risk"`
}

// Status reports the engine's current state. It is valid in every lifecycle
// state; before Initialize the connection list is empty.
func (a *Application) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()

	state := a.State()
	status := Status{
		State:            state,
		Healthy:          false,
		ActiveStrategies: a.registry.ActiveCount(),
		OpenPositions:    0,
		Connections:      []types.ConnectionHealth{},
		CacheDegraded:    a.cacheDegraded,
		Risk:             types.RiskState{}, //nolint:exhaustruct
	}

	if a.book != nil {
		status.OpenPositions = a.book.OpenPositionCount()
	}

	if a.governor != nil {
		status.Risk = a.governor.Snapshot(status.OpenPositions)
	}

	feedHealthy := false
	gatewayHealthy := false

	if a.feedSup != nil {
		health := a.feedSup.Health()
		feedHealthy = health.Healthy()
		status.Connections = append(status.Connections, health)
	}

	if a.gatewaySup != nil {
		health := a.gatewaySup.Health()
		gatewayHealthy = health.Healthy()
		status.Connections = append(status.Connections, health)
	}

	if a.cacheSup != nil {
		status.Connections = append(status.Connections, a.cacheSup.Health())
	}

	status.Healthy = state == types.EngineStateRunning && feedHealthy && gatewayHealthy

	return status
}
