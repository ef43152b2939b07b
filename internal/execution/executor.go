package execution

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/pulse-trading/internal/connection"
	"github.com/rxtech-lab/pulse-trading/internal/gateway"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"github.com/shopspring/decimal"
)

// OrderExecutor carries one order to a venue, real or simulated. The
// executor is chosen once at engine construction; the submission pipeline
// above it is identical for paper and live trading.
type OrderExecutor interface {
	// Execute attempts the order once and returns the resulting fill. The
	// reference price is the last known market price, used as the fill price
	// where the venue does not report one synchronously.
	Execute(ctx context.Context, order types.Order, referencePrice float64) (types.Fill, error)
}

var (
	_ OrderExecutor = (*PaperExecutor)(nil)
	_ OrderExecutor = (*LiveExecutor)(nil)
)

// PaperExecutor fills orders against the last known market price from an
// in-memory cash ledger, without contacting any venue.
type PaperExecutor struct {
	feeFraction decimal.Decimal

	mu      sync.Mutex
	balance decimal.Decimal
}

// NewPaperExecutor creates a paper executor with the given starting cash
// balance. feeFraction is charged on each fill's notional value.
func NewPaperExecutor(initialBalance, feeFraction float64) *PaperExecutor {
	return &PaperExecutor{
		feeFraction: decimal.NewFromFloat(feeFraction),
		mu:          sync.Mutex{},
		balance:     decimal.NewFromFloat(initialBalance),
	}
}

// Execute fills the order from the paper ledger. Buys debit cash and fail
// with an insufficient-funds error when the ledger cannot cover them; sells
// credit cash. Limit and stop orders fill only when marketable against the
// reference price.
func (e *PaperExecutor) Execute(ctx context.Context, order types.Order, referencePrice float64) (types.Fill, error) {
	if err := ctx.Err(); err != nil {
		return types.Fill{}, errors.Wrap(errors.ErrCodeOrderFailed, "paper fill aborted", err) //nolint:exhaustruct
	}

	price, err := paperFillPrice(order, referencePrice)
	if err != nil {
		return types.Fill{}, err //nolint:exhaustruct
	}

	notional := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(order.Quantity))
	fee := notional.Mul(e.feeFraction)

	e.mu.Lock()
	defer e.mu.Unlock()

	if order.Side == types.SideBuy {
		cost := notional.Add(fee)
		if e.balance.LessThan(cost) {
			return types.Fill{}, errors.NewInsufficientFundsError( //nolint:exhaustruct
				cost.InexactFloat64(), e.balance.InexactFloat64(), order.Instrument,
				"paper balance cannot cover the order")
		}

		e.balance = e.balance.Sub(cost)
	} else {
		e.balance = e.balance.Add(notional.Sub(fee))
	}

	return types.Fill{
		OrderID:      order.ID,
		VenueOrderID: "paper-" + uuid.New().String(),
		Instrument:   order.Instrument,
		Side:         order.Side,
		Quantity:     order.Quantity,
		Price:        price,
		Fee:          fee.InexactFloat64(),
		ExecutedAt:   time.Now(),
	}, nil
}

// Balance returns the current paper cash balance.
func (e *PaperExecutor) Balance() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.balance.InexactFloat64()
}

func paperFillPrice(order types.Order, referencePrice float64) (float64, error) {
	if referencePrice <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidPrice,
			"no reference price for %s, cannot simulate fill", order.Instrument)
	}

	switch order.Kind {
	case types.OrderKindMarket:
		return referencePrice, nil
	case types.OrderKindLimit:
		marketable := (order.Side == types.SideBuy && referencePrice <= order.LimitPrice) ||
			(order.Side == types.SideSell && referencePrice >= order.LimitPrice)
		if !marketable {
			return 0, errors.Newf(errors.ErrCodeOrderRejected,
				"limit price %.2f not marketable against %.2f", order.LimitPrice, referencePrice)
		}

		return referencePrice, nil
	case types.OrderKindStop:
		triggered := (order.Side == types.SideBuy && referencePrice >= order.TriggerPrice) ||
			(order.Side == types.SideSell && referencePrice <= order.TriggerPrice)
		if !triggered {
			return 0, errors.Newf(errors.ErrCodeOrderRejected,
				"stop trigger %.2f not reached at %.2f", order.TriggerPrice, referencePrice)
		}

		return referencePrice, nil
	default:
		return 0, errors.Newf(errors.ErrCodeInvalidOrder, "unsupported order kind: %s", order.Kind)
	}
}

// LiveExecutor routes orders to the broker gateway through its connection
// supervisor, which transparently retries once across a reconnect when the
// venue link drops mid-call.
type LiveExecutor struct {
	supervisor *connection.Supervisor
	gateway    gateway.Gateway
}

// NewLiveExecutor creates a live executor on top of a supervised gateway.
func NewLiveExecutor(supervisor *connection.Supervisor, gw gateway.Gateway) *LiveExecutor {
	return &LiveExecutor{supervisor: supervisor, gateway: gw}
}

// Execute submits the order to the venue. The venue does not report the
// fill price synchronously for market orders, so the fill is marked at the
// reference price; position queries reconcile the real average later.
func (e *LiveExecutor) Execute(ctx context.Context, order types.Order, referencePrice float64) (types.Fill, error) {
	price := referencePrice

	switch order.Kind {
	case types.OrderKindLimit:
		price = order.LimitPrice
	case types.OrderKindStop:
		price = order.TriggerPrice
	case types.OrderKindMarket:
	}

	if price <= 0 {
		return types.Fill{}, errors.Newf(errors.ErrCodeInvalidPrice, //nolint:exhaustruct
			"no reference price for %s, cannot mark fill", order.Instrument)
	}

	var venueOrderID string

	err := e.supervisor.Execute(ctx, func(ctx context.Context) error {
		id, err := e.gateway.PlaceOrder(ctx, order)
		if err != nil {
			return err
		}

		venueOrderID = id

		return nil
	})
	if err != nil {
		return types.Fill{}, err //nolint:exhaustruct
	}

	return types.Fill{
		OrderID:      order.ID,
		VenueOrderID: venueOrderID,
		Instrument:   order.Instrument,
		Side:         order.Side,
		Quantity:     order.Quantity,
		Price:        price,
		Fee:          0,
		ExecutedAt:   time.Now(),
	}, nil
}
