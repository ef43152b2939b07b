package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/pulse-trading/internal/cache"
	"github.com/rxtech-lab/pulse-trading/internal/config"
	"github.com/rxtech-lab/pulse-trading/internal/gateway"
	"github.com/rxtech-lab/pulse-trading/internal/logger"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/internal/version"
	"github.com/rxtech-lab/pulse-trading/mocks"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

// scriptedSource serves a fixed quote table as the engine's market data
// source. An empty table yields empty cycles, not an error.
type scriptedSource struct {
	mu         sync.Mutex
	quotes     map[string]types.RawQuote
	fetchErr   error
	connectErr error
}

func newScriptedSource(quotes ...types.RawQuote) *scriptedSource {
	table := make(map[string]types.RawQuote, len(quotes))
	for _, quote := range quotes {
		table[quote.Instrument] = quote
	}

	return &scriptedSource{quotes: table} //nolint:exhaustruct
}

func (s *scriptedSource) Name() string { return "feed" }

func (s *scriptedSource) DoConnect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.connectErr
}

func (s *scriptedSource) DoDisconnect(_ context.Context) error { return nil }

func (s *scriptedSource) ProbeAlive(_ context.Context) error { return nil }

func (s *scriptedSource) Fetch(_ context.Context) (map[string]types.RawQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fetchErr != nil {
		return nil, s.fetchErr
	}

	out := make(map[string]types.RawQuote, len(s.quotes))
	for instrument, quote := range s.quotes {
		out[instrument] = quote
	}

	return out, nil
}

func (s *scriptedSource) setFetchError(err error) {
	s.mu.Lock()
	s.fetchErr = err
	s.mu.Unlock()
}

// buyOnceStrategy emits one high-confidence buy per instrument on its first
// sight of a non-empty snapshot, then stays quiet.
type buyOnceStrategy struct {
	mu    sync.Mutex
	calls int
	fired bool
}

func (s *buyOnceStrategy) Name() string { return "buy-once" }

func (s *buyOnceStrategy) APIVersion() string { return version.GetVersion() }

func (s *buyOnceStrategy) Initialize(_ string) error { return nil }

func (s *buyOnceStrategy) OnTick(snapshot types.Snapshot) ([]types.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++

	if s.fired || len(snapshot.Ticks) == 0 {
		return nil, nil
	}

	s.fired = true

	signals := make([]types.Signal, 0, len(snapshot.Ticks))
	for instrument, tick := range snapshot.Ticks {
		signals = append(signals, types.Signal{ //nolint:exhaustruct
			Instrument: instrument,
			Action:     types.SignalActionBuy,
			Confidence: 0.9,
			StopLoss:   optional.Some(tick.Last * 0.99),
			Target:     optional.Some(tick.Last * 1.02),
		})
	}

	return signals, nil
}

func (s *buyOnceStrategy) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

// callbackRecorder captures every callback invocation for assertions.
type callbackRecorder struct {
	mu      sync.Mutex
	states  []types.EngineState
	signals []types.Signal
	orders  []types.Order
	exits   []types.Position
	errs    []error
}

func (r *callbackRecorder) callbacks() Callbacks {
	onState := OnStateChangeCallback(func(state types.EngineState) {
		r.mu.Lock()
		r.states = append(r.states, state)
		r.mu.Unlock()
	})
	onSignal := OnSignalCallback(func(signal types.Signal) {
		r.mu.Lock()
		r.signals = append(r.signals, signal)
		r.mu.Unlock()
	})
	onOrder := OnOrderFilledCallback(func(order types.Order) {
		r.mu.Lock()
		r.orders = append(r.orders, order)
		r.mu.Unlock()
	})
	onExit := OnExitCallback(func(position types.Position, _ types.Reason) {
		r.mu.Lock()
		r.exits = append(r.exits, position)
		r.mu.Unlock()
	})
	onErr := OnErrorCallback(func(err error) {
		r.mu.Lock()
		r.errs = append(r.errs, err)
		r.mu.Unlock()
	})

	return Callbacks{
		OnStateChange: &onState,
		OnSignal:      &onSignal,
		OnOrderFilled: &onOrder,
		OnExit:        &onExit,
		OnError:       &onErr,
	}
}

func (r *callbackRecorder) stateLog() []types.EngineState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.EngineState, len(r.states))
	copy(out, r.states)

	return out
}

func (r *callbackRecorder) signalCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.signals)
}

func (r *callbackRecorder) filledOrders() []types.Order {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.Order, len(r.orders))
	copy(out, r.orders)

	return out
}

func (r *callbackRecorder) exitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.exits)
}

func (r *callbackRecorder) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.errs)
}

type OrchestratorTestSuite struct {
	suite.Suite

	ctrl    *gomock.Controller
	tempDir string
	now     time.Time
}

func TestOrchestratorTestSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}

func (suite *OrchestratorTestSuite) SetupSuite() {
	tempDir, err := os.MkdirTemp("", "orchestrator_test")
	suite.Require().NoError(err)
	suite.tempDir = tempDir
}

func (suite *OrchestratorTestSuite) TearDownSuite() {
	os.RemoveAll(suite.tempDir)
}

func (suite *OrchestratorTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())

	// Noon on the current date keeps the always-open session schedule open
	// and avoids a date roll against the session folder.
	now := time.Now().UTC()
	suite.now = time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, time.UTC)
}

func (suite *OrchestratorTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

// testConfig returns a paper-mode config with an always-open session, tight
// timings and no external services.
func (suite *OrchestratorTestSuite) testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Engine.Instruments = []string{"NIFTY"}
	cfg.Engine.CycleInterval = config.Duration(20 * time.Millisecond)
	cfg.Engine.MarketOpen = "00:00"
	cfg.Engine.MarketClose = "23:59"
	cfg.Engine.Timezone = "UTC"
	cfg.Connection.MaxRetries = 1
	cfg.Connection.BackoffBase = config.Duration(5 * time.Millisecond)
	cfg.Connection.BackoffMax = config.Duration(10 * time.Millisecond)
	cfg.Connection.AttemptTimeout = config.Duration(500 * time.Millisecond)
	cfg.Connection.ProbeInterval = config.Duration(time.Hour)
	cfg.Execution.OrdersPerSecond = 100
	cfg.Execution.Burst = 5
	cfg.Execution.RetryDelay = config.Duration(5 * time.Millisecond)
	cfg.Monitor.CycleInterval = config.Duration(20 * time.Millisecond)
	cfg.Monitor.SquareOffCutoff = "23:58"
	cfg.Cache.Enabled = false
	cfg.Journal.OutputDir = filepath.Join(suite.tempDir, suite.T().Name())
	cfg.Journal.ExportParquet = false
	cfg.Warmup.Enabled = false

	return &cfg
}

// mockGateway returns a gateway that connects and disconnects cleanly.
func (suite *OrchestratorTestSuite) mockGateway() *mocks.MockGateway {
	gw := mocks.NewMockGateway(suite.ctrl)
	gw.EXPECT().Name().Return("gateway").AnyTimes()
	gw.EXPECT().DoConnect(gomock.Any()).Return(nil).AnyTimes()
	gw.EXPECT().DoDisconnect(gomock.Any()).Return(nil).AnyTimes()
	gw.EXPECT().ProbeAlive(gomock.Any()).Return(nil).AnyTimes()

	return gw
}

func (suite *OrchestratorTestSuite) newApp(cfg *config.Config, source QuoteSource, gw gateway.Gateway) *Application {
	app := NewApplication(cfg, logger.NewNopLogger())
	app.nowFn = func() time.Time { return suite.now }

	suite.Require().NoError(app.SetQuoteSource(source))
	suite.Require().NoError(app.SetGateway(gw))

	return app
}

func (suite *OrchestratorTestSuite) quote(instrument string, last float64) types.RawQuote {
	return types.RawQuote{
		Instrument: instrument,
		Last:       last,
		Volume:     1000,
		Open:       last * 0.99,
		High:       last * 1.01,
		Low:        last * 0.98,
		Close:      last,
		Bid:        last - 0.05,
		Ask:        last + 0.05,
		Timestamp:  suite.now,
	}
}

func (suite *OrchestratorTestSuite) TestInitializeBuildsComponents() {
	app := suite.newApp(suite.testConfig(), newScriptedSource(), suite.mockGateway())
	recorder := &callbackRecorder{} //nolint:exhaustruct
	suite.Require().NoError(app.SetCallbacks(recorder.callbacks()))

	suite.Equal(types.EngineStateStopped, app.State())
	suite.Require().NoError(app.Initialize(context.Background()))
	suite.Equal(types.EngineStateInitializing, app.State())

	status := app.Status()
	suite.Equal(types.EngineStateInitializing, status.State)
	suite.False(status.Healthy)
	suite.False(status.CacheDegraded)
	suite.Zero(status.OpenPositions)
	suite.Require().Len(status.Connections, 2)

	for _, health := range status.Connections {
		suite.True(health.Healthy(), "connection %s should be connected", health.Name)
	}

	suite.Equal([]types.EngineState{types.EngineStateInitializing}, recorder.stateLog())
	suite.NoError(app.Stop(context.Background()))
}

func (suite *OrchestratorTestSuite) TestInitializeFailsWhenGatewayUnreachable() {
	gw := mocks.NewMockGateway(suite.ctrl)
	gw.EXPECT().Name().Return("gateway").AnyTimes()
	gw.EXPECT().DoConnect(gomock.Any()).
		Return(errors.New(errors.ErrCodeConnectionFailed, "venue down")).AnyTimes()

	app := suite.newApp(suite.testConfig(), newScriptedSource(), gw)
	recorder := &callbackRecorder{} //nolint:exhaustruct
	suite.Require().NoError(app.SetCallbacks(recorder.callbacks()))

	err := app.Initialize(context.Background())
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInitFailed))
	suite.Equal(types.EngineStateFailed, app.State())
	suite.Equal([]types.EngineState{types.EngineStateInitializing, types.EngineStateFailed}, recorder.stateLog())
	suite.GreaterOrEqual(recorder.errorCount(), 1)

	// Failed is terminal: no re-initialization, and Stop stays a no-op.
	err = app.Initialize(context.Background())
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidStateTransition))
	suite.NoError(app.Stop(context.Background()))
	suite.Equal(types.EngineStateFailed, app.State())
}

func (suite *OrchestratorTestSuite) TestInitializeRejectedWhileInitialized() {
	app := suite.newApp(suite.testConfig(), newScriptedSource(), suite.mockGateway())

	suite.Require().NoError(app.Initialize(context.Background()))

	err := app.Initialize(context.Background())
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidStateTransition))

	suite.NoError(app.Stop(context.Background()))
}

func (suite *OrchestratorTestSuite) TestStartBeforeInitializeRejected() {
	app := suite.newApp(suite.testConfig(), newScriptedSource(), suite.mockGateway())

	err := app.Start()
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidStateTransition))
	suite.Equal(types.EngineStateStopped, app.State())
}

func (suite *OrchestratorTestSuite) TestStartStopLifecycle() {
	app := suite.newApp(suite.testConfig(), newScriptedSource(), suite.mockGateway())
	recorder := &callbackRecorder{} //nolint:exhaustruct
	suite.Require().NoError(app.SetCallbacks(recorder.callbacks()))
	suite.Require().NoError(app.Initialize(context.Background()))

	suite.Require().NoError(app.Start())
	suite.Equal(types.EngineStateRunning, app.State())
	suite.True(app.Status().Healthy)

	err := app.Start()
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeAlreadyRunning))

	// Let the loops take a few ticks before shutting down.
	time.Sleep(60 * time.Millisecond)

	suite.Require().NoError(app.Stop(context.Background()))
	suite.Equal(types.EngineStateStopped, app.State())
	suite.False(app.Status().Healthy)

	suite.Equal([]types.EngineState{
		types.EngineStateInitializing,
		types.EngineStateRunning,
		types.EngineStateStopping,
		types.EngineStateStopped,
	}, recorder.stateLog())

	// Stopping again is a no-op.
	suite.NoError(app.Stop(context.Background()))
	suite.Equal(types.EngineStateStopped, app.State())
}

func (suite *OrchestratorTestSuite) TestRunCycleExecutesPromotedSignal() {
	source := newScriptedSource(suite.quote("NIFTY", 100))
	app := suite.newApp(suite.testConfig(), source, suite.mockGateway())
	recorder := &callbackRecorder{} //nolint:exhaustruct
	strategy := &buyOnceStrategy{}  //nolint:exhaustruct

	suite.Require().NoError(app.SetCallbacks(recorder.callbacks()))
	suite.Require().NoError(app.RegisterStrategy(strategy, ""))
	suite.Require().NoError(app.Initialize(context.Background()))

	app.runCycle(context.Background())

	suite.Equal(1, recorder.signalCount())

	orders := recorder.filledOrders()
	suite.Require().Len(orders, 1)
	suite.Equal("NIFTY", orders[0].Instrument)
	suite.Equal(types.SideBuy, orders[0].Side)
	suite.Equal(types.OrderStatusFilled, orders[0].Status)
	suite.Equal("buy-once", orders[0].StrategyID)

	status := app.Status()
	suite.Equal(1, status.OpenPositions)
	suite.Equal(1, status.ActiveStrategies)

	counts, err := app.journal.CountByDisposition()
	suite.Require().NoError(err)
	suite.Equal(1, counts[string(types.SignalDispositionExecuted)])

	suite.NoError(app.Stop(context.Background()))
}

func (suite *OrchestratorTestSuite) TestRunCyclePublishesEmptyCycleOnFetchFailure() {
	source := newScriptedSource(suite.quote("NIFTY", 100))
	app := suite.newApp(suite.testConfig(), source, suite.mockGateway())
	recorder := &callbackRecorder{} //nolint:exhaustruct
	strategy := &buyOnceStrategy{}  //nolint:exhaustruct

	suite.Require().NoError(app.SetCallbacks(recorder.callbacks()))
	suite.Require().NoError(app.RegisterStrategy(strategy, ""))
	suite.Require().NoError(app.Initialize(context.Background()))

	source.setFetchError(errors.New(errors.ErrCodeMarketDataFetchFailed, "stream stalled"))
	app.runCycle(context.Background())

	// The empty cycle is skipped by the scheduler and nothing is traded.
	suite.Zero(strategy.callCount())
	suite.GreaterOrEqual(recorder.errorCount(), 1)
	suite.Zero(recorder.signalCount())
	suite.Zero(app.Status().OpenPositions)

	// Once the feed recovers the same strategy trades normally.
	source.setFetchError(nil)
	app.runCycle(context.Background())
	suite.Equal(1, strategy.callCount())
	suite.Equal(1, recorder.signalCount())

	suite.NoError(app.Stop(context.Background()))
}

func (suite *OrchestratorTestSuite) TestRunCycleSkipsClosedMarket() {
	cfg := suite.testConfig()
	cfg.Engine.MarketOpen = "09:15"
	cfg.Engine.MarketClose = "15:30"
	cfg.Monitor.SquareOffCutoff = "15:15"

	source := newScriptedSource(suite.quote("NIFTY", 100))
	app := suite.newApp(cfg, source, suite.mockGateway())
	strategy := &buyOnceStrategy{} //nolint:exhaustruct

	suite.Require().NoError(app.RegisterStrategy(strategy, ""))
	suite.Require().NoError(app.Initialize(context.Background()))

	suite.now = time.Date(suite.now.Year(), suite.now.Month(), suite.now.Day(), 8, 0, 0, 0, time.UTC)
	app.runCycle(context.Background())

	suite.Zero(strategy.callCount())
	suite.Zero(app.Status().OpenPositions)

	suite.NoError(app.Stop(context.Background()))
}

func (suite *OrchestratorTestSuite) TestRunCycleResetsRiskOnNewTradingDay() {
	source := newScriptedSource(suite.quote("NIFTY", 100))
	app := suite.newApp(suite.testConfig(), source, suite.mockGateway())

	suite.Require().NoError(app.Initialize(context.Background()))

	day1 := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	suite.now = day1
	app.runCycle(context.Background())

	app.governor.RecordPnL(decimal.NewFromInt(-500))
	suite.Equal("-500", app.governor.DailyPnL().String())

	suite.now = day1.AddDate(0, 0, 1)
	app.runCycle(context.Background())

	suite.True(app.governor.DailyPnL().IsZero())

	suite.NoError(app.Stop(context.Background()))
}

func (suite *OrchestratorTestSuite) TestForceCloseAll() {
	source := newScriptedSource(suite.quote("NIFTY", 100))
	app := suite.newApp(suite.testConfig(), source, suite.mockGateway())
	recorder := &callbackRecorder{} //nolint:exhaustruct
	strategy := &buyOnceStrategy{}  //nolint:exhaustruct

	suite.Require().NoError(app.SetCallbacks(recorder.callbacks()))
	suite.Require().NoError(app.RegisterStrategy(strategy, ""))
	suite.Require().NoError(app.Initialize(context.Background()))

	app.runCycle(context.Background())
	suite.Require().Equal(1, app.Status().OpenPositions)

	// Only a running or stopping engine may force-close.
	_, err := app.ForceCloseAll(context.Background(), "manual flat")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNotRunning))

	// Pin the lifecycle gate open without launching the loops.
	app.setState(types.EngineStateRunning)

	issued, err := app.ForceCloseAll(context.Background(), "manual flat")
	suite.Require().NoError(err)
	suite.Equal(1, issued)
	suite.Equal(1, recorder.exitCount())
	suite.Zero(app.Status().OpenPositions)

	// Repeating with a flat book issues nothing.
	issued, err = app.ForceCloseAll(context.Background(), "manual flat")
	suite.Require().NoError(err)
	suite.Zero(issued)

	suite.NoError(app.Stop(context.Background()))
}

func (suite *OrchestratorTestSuite) TestUpdateGatewayToken() {
	gw := suite.mockGateway()
	app := suite.newApp(suite.testConfig(), newScriptedSource(), gw)

	err := app.UpdateGatewayToken(context.Background(), "tok-1")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNotRunning))

	suite.Require().NoError(app.Initialize(context.Background()))

	err = app.UpdateGatewayToken(context.Background(), "")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	gw.EXPECT().UpdateSessionToken("tok-renewed").Return(nil)
	suite.Require().NoError(app.UpdateGatewayToken(context.Background(), "tok-renewed"))

	persisted, err := app.cacheStore.Get(context.Background(), app.sessionTokenKey())
	suite.Require().NoError(err)
	suite.Equal("tok-renewed", string(persisted))

	suite.NoError(app.Stop(context.Background()))
}

func (suite *OrchestratorTestSuite) TestRestoreSessionToken() {
	app := suite.newApp(suite.testConfig(), newScriptedSource(), suite.mockGateway())

	store := cache.NewMemoryCache()
	suite.Require().NoError(store.Set(context.Background(), app.sessionTokenKey(), []byte("tok-42"), 0))

	gw := mocks.NewMockGateway(suite.ctrl)
	gw.EXPECT().UpdateSessionToken("tok-42").Return(nil)
	app.restoreSessionToken(context.Background(), store, gw)

	// A cache miss applies nothing.
	quiet := mocks.NewMockGateway(suite.ctrl)
	app.restoreSessionToken(context.Background(), cache.NewMemoryCache(), quiet)
}

func (suite *OrchestratorTestSuite) TestSettersRejectedAfterInitialize() {
	app := suite.newApp(suite.testConfig(), newScriptedSource(), suite.mockGateway())

	suite.Require().NoError(app.Initialize(context.Background()))

	err := app.SetGateway(suite.mockGateway())
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidStateTransition))

	err = app.SetQuoteSource(newScriptedSource())
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidStateTransition))

	err = app.SetCallbacks(Callbacks{}) //nolint:exhaustruct
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidStateTransition))

	suite.NoError(app.Stop(context.Background()))
}

func (suite *OrchestratorTestSuite) TestCacheDegradesToMemoryWhenUnreachable() {
	cfg := suite.testConfig()
	cfg.Cache.Enabled = true
	cfg.Cache.Address = "127.0.0.1:1"

	app := suite.newApp(cfg, newScriptedSource(suite.quote("NIFTY", 100)), suite.mockGateway())
	recorder := &callbackRecorder{} //nolint:exhaustruct
	suite.Require().NoError(app.SetCallbacks(recorder.callbacks()))

	suite.Require().NoError(app.Initialize(context.Background()))

	status := app.Status()
	suite.True(status.CacheDegraded)
	suite.Len(status.Connections, 2)
	suite.GreaterOrEqual(recorder.errorCount(), 1)

	// The degraded cache still backs the session token store.
	suite.Require().NoError(app.cacheStore.Set(context.Background(), "probe", []byte("x"), 0))

	suite.NoError(app.Stop(context.Background()))
}

func (suite *OrchestratorTestSuite) TestStopLeavesPositionsOpen() {
	source := newScriptedSource(suite.quote("NIFTY", 100))
	app := suite.newApp(suite.testConfig(), source, suite.mockGateway())
	strategy := &buyOnceStrategy{} //nolint:exhaustruct

	suite.Require().NoError(app.RegisterStrategy(strategy, ""))
	suite.Require().NoError(app.Initialize(context.Background()))

	app.runCycle(context.Background())
	suite.Require().Equal(1, app.Status().OpenPositions)

	suite.Require().NoError(app.Stop(context.Background()))
	suite.Equal(types.EngineStateStopped, app.State())
	suite.Equal(1, app.Status().OpenPositions)
}
