package engine_test

import (
	"context"
	"time"

	"github.com/rxtech-lab/pulse-trading/e2e/mockserver"
	"github.com/rxtech-lab/pulse-trading/e2e/testhelper"
	"github.com/rxtech-lab/pulse-trading/internal/feed"
	"github.com/rxtech-lab/pulse-trading/internal/logger"
)

// TestKlineStreamFillsQuoteBuffer connects the real feed to the mock venue's
// websocket and waits for streamed klines to surface as fetchable quotes.
func (suite *EngineE2ETestSuite) TestKlineStreamFillsQuoteBuffer() {
	suite.startServer(mockserver.ServerConfig{
		InitialBalances: nil,
		Stream: &mockserver.StreamConfig{
			Symbols:      []string{"BTCUSDT"},
			InitialPrice: 250,
			Volatility:   0.002,
			Trend:        0,
			Seed:         11,
			Interval:     20 * time.Millisecond,
		},
		FeeFraction: 0,
	})

	klines := feed.NewFeed([]string{"BTCUSDT"}, feed.DefaultKlineInterval,
		testhelper.NewDialKlineService(suite.server.WebSocketURL()), logger.NewNopLogger())

	ctx := context.Background()
	suite.Require().NoError(klines.DoConnect(ctx))

	defer func() {
		_ = klines.DoDisconnect(ctx)
	}()

	suite.Require().Eventually(func() bool {
		quotes, err := klines.Fetch(ctx)
		if err != nil {
			return false
		}

		quote, ok := quotes["BTCUSDT"]

		return ok && quote.Last > 0 && quote.Volume > 0
	}, 3*time.Second, 20*time.Millisecond, "streamed klines never reached the quote buffer")

	suite.Require().NoError(klines.ProbeAlive(ctx))
}
