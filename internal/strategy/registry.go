package strategy

import (
	"sync"

	"github.com/rxtech-lab/pulse-trading/internal/version"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
)

type registration struct {
	strategy Strategy
	active   bool
}

// Registry holds the registered strategies and their active flags.
// Registration order is preserved so cycles and status output stay
// deterministic.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]*registration
	order      []string
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{
		mu:         sync.RWMutex{},
		strategies: make(map[string]*registration),
		order:      nil,
	}
}

// Register validates the strategy's API version against the engine version,
// initializes it with the given config blob and activates it. Names must be
// unique.
func (r *Registry) Register(s Strategy, config string) error {
	name := s.Name()
	if name == "" {
		return errors.New(errors.ErrCodeInvalidParameter, "strategy name must not be empty")
	}

	if err := version.CheckVersionCompatibility(version.GetVersion(), s.APIVersion()); err != nil {
		return errors.Wrapf(errors.ErrCodeVersionMismatch, err, "strategy %s is not compatible with this engine", name)
	}

	if err := s.Initialize(config); err != nil {
		return errors.Wrapf(errors.ErrCodeStrategyConfigError, err, "failed to initialize strategy %s", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[name]; exists {
		return errors.Newf(errors.ErrCodeStrategyAlreadyExists, "strategy %s is already registered", name)
	}

	r.strategies[name] = &registration{strategy: s, active: true}
	r.order = append(r.order, name)

	return nil
}

// Enable activates a registered strategy.
func (r *Registry) Enable(name string) error {
	return r.setActive(name, true)
}

// Disable deactivates a registered strategy. It stays registered and can be
// re-enabled later.
func (r *Registry) Disable(name string) error {
	return r.setActive(name, false)
}

func (r *Registry) setActive(name string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, exists := r.strategies[name]
	if !exists {
		return errors.Newf(errors.ErrCodeStrategyNotRegistered, "strategy %s is not registered", name)
	}

	reg.active = active

	return nil
}

// Active returns the active strategies in registration order.
func (r *Registry) Active() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make([]Strategy, 0, len(r.order))

	for _, name := range r.order {
		if reg := r.strategies[name]; reg.active {
			active = append(active, reg.strategy)
		}
	}

	return active
}

// ActiveCount returns the number of active strategies.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0

	for _, reg := range r.strategies {
		if reg.active {
			count++
		}
	}

	return count
}

// Names returns all registered strategy names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)

	return names
}
