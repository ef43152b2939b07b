package gateway

import (
	"context"
	"sort"
	"sync"

	"github.com/rxtech-lab/pulse-trading/internal/config"
	"github.com/rxtech-lab/pulse-trading/internal/connection"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
)

// Gateway is the broker gateway consumed by the engine core. Implementations
// wrap one venue SDK and double as the connection.Capability for their own
// supervisor, which supplies retry and health handling on top.
type Gateway interface {
	connection.Capability

	// PlaceOrder submits an order and returns the venue-assigned order ID.
	// A rejection by the venue surfaces as ErrCodeOrderRejected; transport
	// failures surface as connection-class errors.
	PlaceOrder(ctx context.Context, order types.Order) (string, error)
	// CancelOrder cancels an open order by its venue order ID.
	CancelOrder(ctx context.Context, venueOrderID string) error
	// GetPositions returns the venue's view of current holdings.
	GetPositions(ctx context.Context) ([]types.VenuePosition, error)
	// GetQuotes returns one raw quote per requested instrument. Instruments
	// the venue does not know are absent from the result, not an error.
	GetQuotes(ctx context.Context, instruments []string) (map[string]types.RawQuote, error)
	// UpdateSessionToken swaps the credential used for subsequent calls.
	// Session renewal policy is the caller's concern.
	UpdateSessionToken(token string) error
}

// Factory builds a Gateway from the gateway config section.
type Factory func(cfg config.GatewayConfig) (Gateway, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a gateway implementation available under the given venue
// name. The engine registers binance at init; tests register their own.
func Register(venue string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[venue] = factory
}

// New builds the Gateway selected by cfg.Venue.
func New(cfg config.GatewayConfig) (Gateway, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Venue]
	registryMu.RUnlock()

	if !ok {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported gateway venue: %s", cfg.Venue)
	}

	return factory(cfg)
}

// SupportedVenues returns the registered venue names, sorted.
func SupportedVenues() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	venues := make([]string, 0, len(registry))
	for venue := range registry {
		venues = append(venues, venue)
	}

	sort.Strings(venues)

	return venues
}
