package execution

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/pulse-trading/internal/connection"
	"github.com/rxtech-lab/pulse-trading/internal/logger"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

func paperOrder(side types.Side, kind types.OrderKind, quantity float64) types.Order {
	return types.Order{ //nolint:exhaustruct
		ID:         uuid.New().String(),
		Instrument: "NIFTY",
		Side:       side,
		Quantity:   quantity,
		Kind:       kind,
		Status:     types.OrderStatusPending,
		Reason:     types.Reason{Reason: types.OrderReasonStrategy, Message: "test order"},
		StrategyID: "momentum",
		CreatedAt:  time.Now(),
	}
}

type PaperExecutorTestSuite struct {
	suite.Suite

	executor *PaperExecutor
}

func TestPaperExecutorTestSuite(t *testing.T) {
	suite.Run(t, new(PaperExecutorTestSuite))
}

func (suite *PaperExecutorTestSuite) SetupTest() {
	suite.executor = NewPaperExecutor(10_000, 0)
}

func (suite *PaperExecutorTestSuite) TestMarketBuyDebitsBalance() {
	fill, err := suite.executor.Execute(context.Background(), paperOrder(types.SideBuy, types.OrderKindMarket, 10), 100)

	suite.Require().NoError(err)
	suite.InDelta(100.0, fill.Price, 1e-9)
	suite.InDelta(10.0, fill.Quantity, 1e-9)
	suite.Contains(fill.VenueOrderID, "paper-")
	suite.InDelta(9_000.0, suite.executor.Balance(), 1e-9)
}

func (suite *PaperExecutorTestSuite) TestSellCreditsBalance() {
	_, err := suite.executor.Execute(context.Background(), paperOrder(types.SideSell, types.OrderKindMarket, 10), 100)

	suite.Require().NoError(err)
	suite.InDelta(11_000.0, suite.executor.Balance(), 1e-9)
}

func (suite *PaperExecutorTestSuite) TestInsufficientFunds() {
	_, err := suite.executor.Execute(context.Background(), paperOrder(types.SideBuy, types.OrderKindMarket, 200), 100)

	suite.Require().Error(err)
	suite.True(errors.IsInsufficientFundsError(err))
	suite.InDelta(10_000.0, suite.executor.Balance(), 1e-9, "failed fill must not move the ledger")
}

func (suite *PaperExecutorTestSuite) TestFeeChargedOnNotional() {
	executor := NewPaperExecutor(10_000, 0.001)

	fill, err := executor.Execute(context.Background(), paperOrder(types.SideBuy, types.OrderKindMarket, 10), 100)

	suite.Require().NoError(err)
	suite.InDelta(1.0, fill.Fee, 1e-9)
	suite.InDelta(8_999.0, executor.Balance(), 1e-9)
}

func (suite *PaperExecutorTestSuite) TestLimitFillsOnlyWhenMarketable() {
	buy := paperOrder(types.SideBuy, types.OrderKindLimit, 10)
	buy.LimitPrice = 99

	_, err := suite.executor.Execute(context.Background(), buy, 100)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeOrderRejected))

	buy.LimitPrice = 101
	fill, err := suite.executor.Execute(context.Background(), buy, 100)
	suite.Require().NoError(err)
	suite.InDelta(100.0, fill.Price, 1e-9, "marketable limit fills at the reference price")
}

func (suite *PaperExecutorTestSuite) TestStopFillsOnlyWhenTriggered() {
	sell := paperOrder(types.SideSell, types.OrderKindStop, 10)
	sell.TriggerPrice = 95

	_, err := suite.executor.Execute(context.Background(), sell, 100)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeOrderRejected))

	fill, err := suite.executor.Execute(context.Background(), sell, 94)
	suite.Require().NoError(err)
	suite.InDelta(94.0, fill.Price, 1e-9)
}

func (suite *PaperExecutorTestSuite) TestNoReferencePriceFails() {
	_, err := suite.executor.Execute(context.Background(), paperOrder(types.SideBuy, types.OrderKindMarket, 10), 0)

	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPrice))
}

func (suite *PaperExecutorTestSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := suite.executor.Execute(ctx, paperOrder(types.SideBuy, types.OrderKindMarket, 10), 100)
	suite.Require().Error(err)
}

// stubVenue is a minimal in-process Gateway for live-executor tests.
type stubVenue struct {
	placedOrders []types.Order
	venueOrderID string
	placeErr     error
}

func (v *stubVenue) Name() string { return "stub-venue" }

func (v *stubVenue) DoConnect(_ context.Context) error { return nil }

func (v *stubVenue) DoDisconnect(_ context.Context) error { return nil }

func (v *stubVenue) ProbeAlive(_ context.Context) error { return nil }

func (v *stubVenue) CancelOrder(_ context.Context, _ string) error { return nil }

func (v *stubVenue) UpdateSessionToken(_ string) error { return nil }

func (v *stubVenue) PlaceOrder(_ context.Context, order types.Order) (string, error) {
	v.placedOrders = append(v.placedOrders, order)
	if v.placeErr != nil {
		return "", v.placeErr
	}

	return v.venueOrderID, nil
}

func (v *stubVenue) GetPositions(_ context.Context) ([]types.VenuePosition, error) {
	return nil, nil
}

func (v *stubVenue) GetQuotes(_ context.Context, _ []string) (map[string]types.RawQuote, error) {
	return map[string]types.RawQuote{}, nil
}

type LiveExecutorTestSuite struct {
	suite.Suite

	venue      *stubVenue
	supervisor *connection.Supervisor
	executor   *LiveExecutor
}

func TestLiveExecutorTestSuite(t *testing.T) {
	suite.Run(t, new(LiveExecutorTestSuite))
}

func (suite *LiveExecutorTestSuite) SetupTest() {
	suite.venue = &stubVenue{venueOrderID: "venue-42"} //nolint:exhaustruct
	suite.supervisor = connection.NewSupervisor(suite.venue, connection.Policy{ //nolint:exhaustruct
		MaxRetries:    1,
		ProbeInterval: time.Hour,
	}, logger.NewNopLogger())
	suite.Require().NoError(suite.supervisor.Connect(context.Background()))

	suite.executor = NewLiveExecutor(suite.supervisor, suite.venue)
}

func (suite *LiveExecutorTestSuite) TearDownTest() {
	suite.Require().NoError(suite.supervisor.Disconnect(context.Background()))
}

func (suite *LiveExecutorTestSuite) TestPlacesOrderAndMarksAtReference() {
	order := paperOrder(types.SideBuy, types.OrderKindMarket, 10)

	fill, err := suite.executor.Execute(context.Background(), order, 100)

	suite.Require().NoError(err)
	suite.Equal("venue-42", fill.VenueOrderID)
	suite.InDelta(100.0, fill.Price, 1e-9)
	suite.Require().Len(suite.venue.placedOrders, 1)
	suite.Equal(order.ID, suite.venue.placedOrders[0].ID)
}

func (suite *LiveExecutorTestSuite) TestLimitOrderMarksAtLimitPrice() {
	order := paperOrder(types.SideSell, types.OrderKindLimit, 10)
	order.LimitPrice = 101.5

	fill, err := suite.executor.Execute(context.Background(), order, 100)

	suite.Require().NoError(err)
	suite.InDelta(101.5, fill.Price, 1e-9)
}

func (suite *LiveExecutorTestSuite) TestVenueRejectionPropagates() {
	suite.venue.placeErr = errors.New(errors.ErrCodeOrderRejected, "margin exceeded")

	_, err := suite.executor.Execute(context.Background(), paperOrder(types.SideBuy, types.OrderKindMarket, 10), 100)

	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeOrderRejected))
}

func (suite *LiveExecutorTestSuite) TestMissingReferencePriceFails() {
	_, err := suite.executor.Execute(context.Background(), paperOrder(types.SideBuy, types.OrderKindMarket, 10), 0)

	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPrice))
	suite.Empty(suite.venue.placedOrders, "order must not reach the venue without a mark price")
}
