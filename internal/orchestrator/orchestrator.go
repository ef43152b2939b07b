package orchestrator

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/rxtech-lab/pulse-trading/internal/arbiter"
	"github.com/rxtech-lab/pulse-trading/internal/cache"
	"github.com/rxtech-lab/pulse-trading/internal/config"
	"github.com/rxtech-lab/pulse-trading/internal/connection"
	"github.com/rxtech-lab/pulse-trading/internal/execution"
	"github.com/rxtech-lab/pulse-trading/internal/feed"
	"github.com/rxtech-lab/pulse-trading/internal/gateway"
	"github.com/rxtech-lab/pulse-trading/internal/journal"
	"github.com/rxtech-lab/pulse-trading/internal/logger"
	"github.com/rxtech-lab/pulse-trading/internal/market"
	"github.com/rxtech-lab/pulse-trading/internal/monitor"
	"github.com/rxtech-lab/pulse-trading/internal/risk"
	"github.com/rxtech-lab/pulse-trading/internal/strategy"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/internal/warmup"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"go.uber.org/zap"
)

// QuoteSource supplies the raw quotes one tick cycle consumes. The live
// implementation is the websocket feed; tests inject scripted sources. The
// embedded capability lets a Supervisor own the source's connection
// lifecycle.
type QuoteSource interface {
	connection.Capability

	Fetch(ctx context.Context) (map[string]types.RawQuote, error)
}

var _ QuoteSource = (*feed.Feed)(nil)

// Application wires every engine component together and drives the trading
// lifecycle: stopped -> initializing -> running -> stopping -> stopped.
// A startup error moves the engine from initializing to failed, which is
// terminal. One Application is one engine process.
//
// Initialize, Start and Stop are expected to be called sequentially from one
// goroutine; Status, ForceCloseAll and UpdateGatewayToken are safe to call
// concurrently at any time.
type Application struct {
	config *config.Config
	log    *logger.Logger

	registry  *strategy.Registry
	callbacks Callbacks

	// Overrides installed by the setters before Initialize.
	gatewayOverride gateway.Gateway
	sourceOverride  QuoteSource

	// mu guards the component fields below. The run loops read them without
	// locking: components are published before Start launches the loops and
	// torn down only after the loops have drained.
	mu sync.RWMutex

	cacheStore    cache.Cache
	cacheSup      *connection.Supervisor
	cacheDegraded bool
	gw            gateway.Gateway
	gatewaySup    *connection.Supervisor
	source        QuoteSource
	feedSup       *connection.Supervisor
	session       *journal.SessionManager
	journal       *journal.Journal
	schedule      *market.Schedule
	pipeline      *market.Pipeline
	governor      *risk.Governor
	book          *execution.PositionBook
	scheduler     *strategy.Scheduler
	arbiter       *arbiter.Arbiter
	engine        *execution.Engine
	monitor       *monitor.Monitor
	warmup        *warmup.Manager

	cancel context.CancelFunc
	wg     sync.WaitGroup

	stateMu sync.RWMutex
	state   types.EngineState

	nowFn func() time.Time
}

// NewApplication creates an engine from its config. Dependencies default to
// the real venue implementations; tests swap them out via the setters.
func NewApplication(cfg *config.Config, log *logger.Logger) *Application {
	if log == nil {
		log = logger.NewNopLogger()
	}

	//nolint:exhaustruct
	return &Application{
		config:   cfg,
		log:      log.Named("engine"),
		registry: strategy.NewRegistry(),
		state:    types.EngineStateStopped,
		nowFn:    time.Now,
	}
}

// SetCallbacks installs the lifecycle callbacks. Must be called before
// Initialize.
func (a *Application) SetCallbacks(callbacks Callbacks) error {
	if state := a.State(); state != types.EngineStateStopped {
		return errors.Newf(errors.ErrCodeInvalidStateTransition,
			"callbacks can only be set before initialization, state is %s", state)
	}

	a.mu.Lock()
	a.callbacks = callbacks
	a.mu.Unlock()

	return nil
}

// SetGateway replaces the broker gateway built from config. Must be called
// before Initialize.
func (a *Application) SetGateway(gw gateway.Gateway) error {
	if state := a.State(); state != types.EngineStateStopped {
		return errors.Newf(errors.ErrCodeInvalidStateTransition,
			"gateway can only be set before initialization, state is %s", state)
	}

	a.mu.Lock()
	a.gatewayOverride = gw
	a.mu.Unlock()

	return nil
}

// SetQuoteSource replaces the market data source built from config. Must be
// called before Initialize.
func (a *Application) SetQuoteSource(source QuoteSource) error {
	if state := a.State(); state != types.EngineStateStopped {
		return errors.Newf(errors.ErrCodeInvalidStateTransition,
			"quote source can only be set before initialization, state is %s", state)
	}

	a.mu.Lock()
	a.sourceOverride = source
	a.mu.Unlock()

	return nil
}

// RegisterStrategy adds a strategy to the engine's registry. Registered
// strategies run on every tick cycle once the engine starts.
func (a *Application) RegisterStrategy(s strategy.Strategy, strategyConfig string) error {
	return a.registry.Register(s, strategyConfig)
}

// State returns the engine's lifecycle state.
func (a *Application) State() types.EngineState {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()

	return a.state
}

// Initialize builds and connects every component: the shared cache (degrading
// to in-memory when unreachable), the broker gateway and the market feed, the
// session journal and the trading pipeline, then prefetches warmup history.
// A failure on any required dependency moves the engine to failed.
func (a *Application) Initialize(ctx context.Context) error {
	if err := a.transition(types.EngineStateStopped, types.EngineStateInitializing); err != nil {
		return err
	}

	cfg := a.config

	a.log.Info("initializing engine",
		zap.Strings("instruments", cfg.Engine.Instruments),
		zap.String("mode", string(cfg.Execution.Mode)),
		zap.String("venue", cfg.Gateway.Venue))

	schedule, err := market.NewSchedule(cfg.Engine, cfg.Monitor.SquareOffCutoff)
	if err != nil {
		return a.failInit(nil, err)
	}

	cacheStore, cacheSup, cacheDegraded := a.connectCache(ctx)

	gw, gatewaySup, err := a.connectGateway(ctx)
	if err != nil {
		return a.failInit([]*connection.Supervisor{cacheSup}, err)
	}

	a.restoreSessionToken(ctx, cacheStore, gw)

	source, feedSup, err := a.connectSource(ctx)
	if err != nil {
		return a.failInit([]*connection.Supervisor{cacheSup, gatewaySup}, err)
	}

	supervisors := []*connection.Supervisor{cacheSup, gatewaySup, feedSup}

	session, err := journal.NewSessionManager(cfg.Journal.OutputDir, a.log)
	if err != nil {
		return a.failInit(supervisors, err)
	}

	jrnl, err := journal.NewJournal(session, cfg.Journal.ExportParquet, a.log)
	if err != nil {
		return a.failInit(supervisors, err)
	}

	warm, err := warmup.NewManager(cfg.Warmup, filepath.Join(cfg.Journal.OutputDir, "warmup"), a.log)
	if err != nil {
		if closeErr := jrnl.Close(); closeErr != nil {
			a.log.Warn("journal close failed", zap.Error(closeErr))
		}

		return a.failInit(supervisors, err)
	}

	a.prefetchHistory(ctx, warm)

	governor := risk.NewGovernor(cfg.Risk, a.log)
	book := execution.NewPositionBook(a.log)

	var executor execution.OrderExecutor
	if cfg.Execution.Mode == config.ModeLive {
		executor = execution.NewLiveExecutor(gatewaySup, gw)
	} else {
		executor = execution.NewPaperExecutor(cfg.Risk.Capital, cfg.Execution.PaperFeeFraction)
	}

	engine := execution.NewEngine(cfg.Execution, executor, book, jrnl, governor, a.log)
	exits := &exitNotifier{app: a, engine: engine}

	a.mu.Lock()
	a.cacheStore = cacheStore
	a.cacheSup = cacheSup
	a.cacheDegraded = cacheDegraded
	a.gw = gw
	a.gatewaySup = gatewaySup
	a.source = source
	a.feedSup = feedSup
	a.session = session
	a.journal = jrnl
	a.schedule = schedule
	a.pipeline = market.NewPipeline(cfg.Engine.Instruments, cacheStore, cfg.Cache.TTL.Std(), cfg.Cache.KeyPrefix, a.log)
	a.governor = governor
	a.book = book
	a.scheduler = strategy.NewScheduler(a.registry, a.log)
	a.arbiter = arbiter.NewArbiter(cfg.EffectiveCooldown(), cfg.Arbiter.MinConfidence,
		cfg.Execution.OrderQuantity, jrnl, governor, book, a.log)
	a.engine = engine
	a.monitor = monitor.NewMonitor(cfg.Monitor, book, exits, schedule, governor, a.log)
	a.warmup = warm
	a.mu.Unlock()

	a.log.Info("engine initialized",
		zap.String("run_id", session.RunID()),
		zap.Int("registered_strategies", len(a.registry.Names())),
		zap.Bool("cache_degraded", cacheDegraded))

	return nil
}

// connectCache brings up the shared cache when enabled. An unreachable cache
// is not fatal: the engine degrades to an in-memory cache and reports the
// degradation through Status.
func (a *Application) connectCache(ctx context.Context) (cache.Cache, *connection.Supervisor, bool) {
	if !a.config.Cache.Enabled {
		return cache.NewMemoryCache(), nil, false
	}

	redisCache := cache.NewRedisCache(a.config.Cache)
	sup := connection.NewSupervisor(redisCache, connection.PolicyFromConfig(a.config.Connection), a.log)

	if err := sup.Connect(ctx); err != nil {
		a.log.Warn("shared cache unreachable, degrading to in-memory cache", zap.Error(err))
		a.notifyError(err)

		return cache.NewMemoryCache(), nil, true
	}

	return redisCache, sup, false
}

func (a *Application) connectGateway(ctx context.Context) (gateway.Gateway, *connection.Supervisor, error) {
	gw := a.gatewayOverride
	if gw == nil {
		built, err := gateway.New(a.config.Gateway)
		if err != nil {
			return nil, nil, err
		}

		gw = built
	}

	sup := connection.NewSupervisor(gw, connection.PolicyFromConfig(a.config.Connection), a.log)
	if err := sup.Connect(ctx); err != nil {
		return nil, nil, err
	}

	return gw, sup, nil
}

func (a *Application) connectSource(ctx context.Context) (QuoteSource, *connection.Supervisor, error) {
	source := a.sourceOverride
	if source == nil {
		source = feed.NewBinanceFeed(a.config.Engine.Instruments, feed.DefaultKlineInterval, a.log)
	}

	sup := connection.NewSupervisor(source, connection.PolicyFromConfig(a.config.Connection), a.log)
	if err := sup.Connect(ctx); err != nil {
		return nil, nil, err
	}

	return source, sup, nil
}

// restoreSessionToken reapplies the gateway session token persisted by a
// previous run, if any. A miss or a stale token is not an error.
func (a *Application) restoreSessionToken(ctx context.Context, store cache.Cache, gw gateway.Gateway) {
	token, err := store.Get(ctx, a.sessionTokenKey())
	if err != nil {
		if errors.GetCode(err) != errors.ErrCodeCacheMiss {
			a.log.Warn("session token lookup failed", zap.Error(err))
		}

		return
	}

	if len(token) == 0 {
		return
	}

	if err := gw.UpdateSessionToken(string(token)); err != nil {
		a.log.Warn("failed to restore gateway session token", zap.Error(err))

		return
	}

	a.log.Info("gateway session token restored from cache")
}

// prefetchHistory downloads warmup candles for every instrument. Prefetch
// failures never block startup.
func (a *Application) prefetchHistory(ctx context.Context, warm *warmup.Manager) {
	paths, err := warm.Prefetch(ctx, a.config.Engine.Instruments)
	if err != nil {
		a.log.Warn("warmup prefetch failed, continuing without historical data", zap.Error(err))
		a.notifyError(err)

		return
	}

	for _, path := range paths {
		last, err := warmup.LastCandleTime(path)
		if err != nil {
			a.log.Warn("could not inspect warmup data", zap.String("path", path), zap.Error(err))

			continue
		}

		a.log.Debug("warmup data ready", zap.String("path", path), zap.Time("last_candle", last))
	}
}

// failInit tears down whatever connected before the failure and moves the
// engine to failed.
func (a *Application) failInit(supervisors []*connection.Supervisor, cause error) error {
	for _, sup := range supervisors {
		if sup == nil {
			continue
		}

		if err := sup.Disconnect(context.Background()); err != nil {
			a.log.Warn("cleanup disconnect failed", zap.Error(err))
		}
	}

	wrapped := errors.Wrap(errors.ErrCodeInitFailed, "engine initialization failed", cause)
	a.log.Error("engine initialization failed", zap.Error(cause))
	a.setState(types.EngineStateFailed)
	a.notifyError(wrapped)

	return wrapped
}

func (a *Application) sessionTokenKey() string {
	return cache.Key(a.config.Cache.KeyPrefix, "gateway", "session_token")
}

// Start launches the tick loop and the position monitor. It is valid only
// after Initialize has returned successfully.
func (a *Application) Start() error {
	if a.State() == types.EngineStateRunning {
		return errors.New(errors.ErrCodeAlreadyRunning, "engine is already running")
	}

	if err := a.transition(types.EngineStateInitializing, types.EngineStateRunning); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	a.mu.Lock()
	a.cancel = cancel
	mon := a.monitor
	a.mu.Unlock()

	a.wg.Add(2)

	go func() {
		defer a.wg.Done()
		a.tickLoop(runCtx)
	}()

	go func() {
		defer a.wg.Done()
		mon.Run(runCtx)
	}()

	a.log.Info("engine started")

	return nil
}

// Stop drains the tick and monitor loops, closes the external connections
// and flushes the journal. Open positions are left untouched; callers that
// want a flat book invoke ForceCloseAll first. Stopping a stopped or failed
// engine is a no-op. Stop must not be called from inside a callback.
func (a *Application) Stop(ctx context.Context) error {
	a.stateMu.Lock()

	switch a.state {
	case types.EngineStateStopped, types.EngineStateFailed, types.EngineStateStopping:
		a.stateMu.Unlock()

		return nil
	case types.EngineStateRunning, types.EngineStateInitializing:
	}

	a.state = types.EngineStateStopping
	a.stateMu.Unlock()

	a.log.Info("engine stopping")
	a.notifyStateChange(types.EngineStateStopping)

	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	a.wg.Wait()

	a.mu.Lock()
	a.teardown(ctx)
	a.mu.Unlock()

	a.setState(types.EngineStateStopped)
	a.log.Info("engine stopped")

	return nil
}

// teardown closes connections and the journal. Callers must hold a.mu.
func (a *Application) teardown(ctx context.Context) {
	if a.feedSup != nil {
		if err := a.feedSup.Disconnect(ctx); err != nil {
			a.log.Warn("feed disconnect failed", zap.Error(err))
		}

		a.feedSup = nil
	}

	if a.gatewaySup != nil {
		if err := a.gatewaySup.Disconnect(ctx); err != nil {
			a.log.Warn("gateway disconnect failed", zap.Error(err))
		}

		a.gatewaySup = nil
	}

	if a.cacheSup != nil {
		if err := a.cacheSup.Disconnect(ctx); err != nil {
			a.log.Warn("cache disconnect failed", zap.Error(err))
		}

		a.cacheSup = nil
	}

	if a.journal != nil {
		if err := a.journal.Flush(); err != nil {
			a.log.Warn("journal flush failed", zap.Error(err))
		}

		if err := a.journal.Close(); err != nil {
			a.log.Warn("journal close failed", zap.Error(err))
		}

		a.journal = nil
	}
}

// ForceCloseAll issues an emergency close for every open position. It is
// valid while the engine is running or stopping and safe to call repeatedly.
func (a *Application) ForceCloseAll(ctx context.Context, reason string) (int, error) {
	state := a.State()
	if state != types.EngineStateRunning && state != types.EngineStateStopping {
		return 0, errors.Newf(errors.ErrCodeNotRunning,
			"force close requires a running engine, state is %s", state)
	}

	a.mu.RLock()
	mon := a.monitor
	a.mu.RUnlock()

	if mon == nil {
		return 0, errors.New(errors.ErrCodeNotRunning, "engine is not initialized")
	}

	return mon.ForceCloseAll(ctx, reason)
}

// UpdateGatewayToken swaps the broker session credential at runtime and
// persists it to the cache so the next engine start can restore the session.
func (a *Application) UpdateGatewayToken(ctx context.Context, token string) error {
	if token == "" {
		return errors.New(errors.ErrCodeInvalidParameter, "session token must not be empty")
	}

	a.mu.RLock()
	gw := a.gw
	store := a.cacheStore
	a.mu.RUnlock()

	if gw == nil {
		return errors.New(errors.ErrCodeNotRunning, "gateway is not initialized")
	}

	if err := gw.UpdateSessionToken(token); err != nil {
		return err
	}

	if err := store.Set(ctx, a.sessionTokenKey(), []byte(token), 0); err != nil {
		a.log.Warn("failed to persist session token", zap.Error(err))
	}

	return nil
}

// tickLoop drives trading cycles at the configured interval until cancelled.
func (a *Application) tickLoop(ctx context.Context) {
	interval := a.config.Engine.CycleInterval.Std()
	ticker := time.NewTicker(interval)

	defer ticker.Stop()

	a.log.Info("tick loop started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			a.log.Info("tick loop stopped")

			return
		case <-ticker.C:
			a.runCycle(ctx)
		}
	}
}

// runCycle executes one tick: fetch, normalize, evaluate, arbitrate, submit.
// A fetch failure publishes an empty snapshot so downstream consumers see an
// explicit empty cycle rather than stale data.
func (a *Application) runCycle(ctx context.Context) {
	now := a.nowFn()

	if rolled, err := a.session.RollDate(now); err != nil {
		a.log.Warn("session date roll failed", zap.Error(err))
	} else if rolled {
		a.governor.ResetDaily()
	}

	if !a.schedule.IsOpen(now) {
		return
	}

	raw, err := a.source.Fetch(ctx)
	if err != nil {
		a.log.Warn("market data fetch failed, publishing empty cycle", zap.Error(err))
		a.notifyError(err)

		raw = nil
	}

	snapshot := a.pipeline.Process(ctx, raw)
	a.book.UpdateMarks(snapshot)

	signals := a.scheduler.RunCycle(ctx, snapshot)
	promoted := a.arbiter.Process(signals)

	for _, signal := range promoted {
		a.notifySignal(signal)

		tick, ok := snapshot.Ticks[signal.Instrument]
		if !ok {
			a.failUnpriced(signal)

			continue
		}

		order, err := a.engine.SubmitSignal(ctx, signal, tick.Last)
		if err != nil {
			a.log.Warn("order submission failed",
				zap.String("instrument", signal.Instrument),
				zap.String("signal_id", signal.ID),
				zap.Error(err))
			a.notifyError(err)

			continue
		}

		a.notifyOrderFilled(order)
	}
}

// failUnpriced finalizes a promoted signal whose instrument produced no tick
// this cycle. Without a reference price no executor can fill it.
func (a *Application) failUnpriced(signal types.Signal) {
	a.log.Warn("promoted signal has no reference price",
		zap.String("instrument", signal.Instrument),
		zap.String("signal_id", signal.ID))

	if err := a.journal.FinalizeSignal(signal.ID, types.SignalDispositionFailed,
		"no market data for instrument this cycle"); err != nil {
		a.log.Error("failed to finalize signal", zap.String("signal_id", signal.ID), zap.Error(err))
	}
}

// transition atomically moves the state machine between two known states.
func (a *Application) transition(from, to types.EngineState) error {
	a.stateMu.Lock()

	if a.state != from {
		current := a.state
		a.stateMu.Unlock()

		return errors.Newf(errors.ErrCodeInvalidStateTransition,
			"cannot move to %s from %s", to, current)
	}

	a.state = to
	a.stateMu.Unlock()

	a.log.Info("engine state changed", zap.String("from", string(from)), zap.String("to", string(to)))
	a.notifyStateChange(to)

	return nil
}

// setState is the unconditional variant of transition, used on failure and
// shutdown paths where the origin state is already pinned.
func (a *Application) setState(to types.EngineState) {
	a.stateMu.Lock()
	a.state = to
	a.stateMu.Unlock()

	a.log.Info("engine state changed", zap.String("to", string(to)))
	a.notifyStateChange(to)
}

// exitNotifier threads monitor-issued exits through the execution engine and
// fans the outcome out to the registered callbacks.
type exitNotifier struct {
	app    *Application
	engine *execution.Engine
}

var _ monitor.ExitSubmitter = (*exitNotifier)(nil)

func (n *exitNotifier) SubmitExit(ctx context.Context, position types.Position, reason types.Reason, referencePrice float64) (types.Order, error) {
	order, err := n.engine.SubmitExit(ctx, position, reason, referencePrice)
	if err != nil {
		n.app.notifyError(err)

		return order, err
	}

	n.app.notifyOrderFilled(order)
	n.app.notifyExit(position, reason)

	return order, nil
}
