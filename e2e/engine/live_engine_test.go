package engine_test

import (
	"context"
	"time"

	"github.com/rxtech-lab/pulse-trading/e2e/mockserver"
	"github.com/rxtech-lab/pulse-trading/e2e/testhelper"
	"github.com/rxtech-lab/pulse-trading/internal/config"
	"github.com/rxtech-lab/pulse-trading/internal/feed"
	"github.com/rxtech-lab/pulse-trading/internal/logger"
	"github.com/rxtech-lab/pulse-trading/internal/strategy/builtin"
	"github.com/rxtech-lab/pulse-trading/internal/types"
)

// TestLiveOrderReachesVenue runs the full live path: klines stream from the
// mock venue over websocket into the real feed, a strategy signal becomes a
// market order over the real gateway, and the venue fills it.
func (suite *EngineE2ETestSuite) TestLiveOrderReachesVenue() {
	suite.startServer(mockserver.ServerConfig{
		InitialBalances: map[string]float64{"USDT": 10000},
		Stream: &mockserver.StreamConfig{
			Symbols:      []string{"BTCUSDT"},
			InitialPrice: 100,
			Volatility:   0.002,
			Trend:        0,
			Seed:         42,
			Interval:     20 * time.Millisecond,
		},
		FeeFraction: 0.001,
	})

	app := suite.newEngine(suite.engineConfig(config.ModeLive, "BTCUSDT"))

	klines := feed.NewFeed([]string{"BTCUSDT"}, feed.DefaultKlineInterval,
		testhelper.NewDialKlineService(suite.server.WebSocketURL()), logger.NewNopLogger())
	suite.Require().NoError(app.SetQuoteSource(klines))
	suite.Require().NoError(app.RegisterStrategy(testhelper.NewBuyOnceStrategy(), ""))

	ctx := context.Background()
	suite.Require().NoError(app.Initialize(ctx))
	suite.Require().NoError(app.Start())

	suite.Require().Eventually(func() bool {
		return len(suite.server.Fills()) >= 1
	}, 5*time.Second, 20*time.Millisecond, "venue never saw the order")

	fills := suite.server.Fills()
	suite.Require().Len(fills, 1)
	suite.Equal("BTCUSDT", fills[0].Symbol)
	suite.Equal("BUY", fills[0].Side)

	filled := suite.recorder.filledOrders()
	suite.Require().Len(filled, 1)
	suite.Equal(fills[0].ClientOrderID, filled[0].ID, "venue fill must reference the engine order")
	suite.Equal(types.OrderStatusFilled, filled[0].Status)
	suite.NotEmpty(filled[0].VenueOrderID)

	suite.Less(suite.server.Balance("USDT").Free, 10000.0, "the buy must move venue balances")
	suite.Equal(1, app.Status().OpenPositions)
}

// TestVenueRejectionKeepsBookFlat scripts the venue to refuse every order.
// Submission retries must exhaust without a fill and without opening a
// position.
func (suite *EngineE2ETestSuite) TestVenueRejectionKeepsBookFlat() {
	suite.startServer(mockserver.ServerConfig{
		InitialBalances: map[string]float64{"USDT": 10000},
		Stream:          nil,
		FeeFraction:     0,
	})
	suite.server.SetPrice("BTCUSDT", 100)
	suite.server.RejectOrders("Account has insufficient balance for requested action.")

	app := suite.newEngine(suite.engineConfig(config.ModeLive, "BTCUSDT"))

	replay := testhelper.NewReplayQuoteSource(map[string][]types.RawQuote{
		"BTCUSDT": testhelper.RampQuotes("BTCUSDT", 100, 0, 50),
	})
	suite.Require().NoError(app.SetQuoteSource(replay))
	suite.Require().NoError(app.RegisterStrategy(testhelper.NewBuyOnceStrategy(), ""))

	ctx := context.Background()
	suite.Require().NoError(app.Initialize(ctx))
	suite.Require().NoError(app.Start())

	suite.Require().Eventually(func() bool {
		return suite.recorder.signalCount() >= 1 && suite.recorder.errorCount() >= 1
	}, 5*time.Second, 20*time.Millisecond, "the refused submission never surfaced")

	suite.Zero(suite.recorder.filledCount())
	suite.Empty(suite.server.Fills())
	suite.Zero(app.Status().OpenPositions)
}

// TestSessionTokenRotation rotates the venue API key mid-session. After
// UpdateGatewayToken the close-out order must authenticate with the new key.
func (suite *EngineE2ETestSuite) TestSessionTokenRotation() {
	suite.startServer(mockserver.ServerConfig{
		InitialBalances: map[string]float64{"USDT": 10000},
		Stream:          nil,
		FeeFraction:     0,
	})
	suite.server.SetPrice("BTCUSDT", 100)
	suite.server.RequireAPIKey("key-initial")

	cfg := suite.engineConfig(config.ModeLive, "BTCUSDT")
	cfg.Gateway.APIKey = "key-initial"
	app := suite.newEngine(cfg)

	replay := testhelper.NewReplayQuoteSource(map[string][]types.RawQuote{
		"BTCUSDT": testhelper.RampQuotes("BTCUSDT", 100, 0, 50),
	})
	suite.Require().NoError(app.SetQuoteSource(replay))
	suite.Require().NoError(app.RegisterStrategy(testhelper.NewBuyOnceStrategy(), ""))

	ctx := context.Background()
	suite.Require().NoError(app.Initialize(ctx))
	suite.Require().NoError(app.Start())

	suite.Require().Eventually(func() bool {
		return len(suite.server.Fills()) == 1
	}, 5*time.Second, 20*time.Millisecond, "entry order never filled")

	suite.server.RequireAPIKey("key-rotated")
	suite.Require().NoError(app.UpdateGatewayToken(ctx, "key-rotated"))

	closed, err := app.ForceCloseAll(ctx, "session token rotation drill")
	suite.Require().NoError(err)
	suite.Equal(1, closed)

	fills := suite.server.Fills()
	suite.Require().Len(fills, 2, "close-out must reach the venue under the new key")
	suite.Equal("SELL", fills[1].Side)
	suite.Zero(app.Status().OpenPositions)
	suite.Equal(1, suite.recorder.exitCount())
}

// TestPaperSessionMomentum trades a trending replay in paper mode: the
// momentum strategy fires, fills happen locally and the venue stays idle.
func (suite *EngineE2ETestSuite) TestPaperSessionMomentum() {
	suite.startServer(mockserver.ServerConfig{
		InitialBalances: map[string]float64{"USDT": 10000},
		Stream:          nil,
		FeeFraction:     0,
	})

	app := suite.newEngine(suite.engineConfig(config.ModePaper, "ETHUSDT"))

	replay := testhelper.NewReplayQuoteSource(map[string][]types.RawQuote{
		"ETHUSDT": testhelper.RampQuotes("ETHUSDT", 2000, 0.01, 400),
	})
	suite.Require().NoError(app.SetQuoteSource(replay))
	suite.Require().NoError(app.RegisterStrategy(builtin.NewMomentum(), ""))

	ctx := context.Background()
	suite.Require().NoError(app.Initialize(ctx))
	suite.Require().NoError(app.Start())

	suite.Require().Eventually(func() bool {
		return suite.recorder.filledCount() >= 1
	}, 5*time.Second, 20*time.Millisecond, "momentum never traded the ramp")

	filled := suite.recorder.filledOrders()
	suite.Equal("momentum", filled[0].StrategyID)
	suite.Equal(types.OrderStatusFilled, filled[0].Status)
	suite.Empty(suite.server.Fills(), "paper fills must not reach the venue")
}
