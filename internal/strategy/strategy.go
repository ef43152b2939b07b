package strategy

import (
	"github.com/rxtech-lab/pulse-trading/internal/types"
)

// Strategy is the contract every signal producer implements. Implementations
// are pure signal generators: they never place orders or mutate positions,
// and the scheduler stamps identity onto whatever they emit.
type Strategy interface {
	// Name returns the unique strategy identifier used for signal attribution
	// and registry lookups.
	Name() string
	// APIVersion returns the engine API version the strategy was built
	// against, checked for semver compatibility at registration.
	APIVersion() string
	// Initialize configures the strategy from its serialized config blob.
	Initialize(config string) error
	// OnTick evaluates one normalized snapshot and returns zero or more
	// signals. The scheduler fills in signal ID, strategy ID and timestamp.
	OnTick(snapshot types.Snapshot) ([]types.Signal, error)
}
