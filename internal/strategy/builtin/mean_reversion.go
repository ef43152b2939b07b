package builtin

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/pulse-trading/internal/indicator"
	"github.com/rxtech-lab/pulse-trading/internal/strategy"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/internal/version"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"gopkg.in/yaml.v3"
)

// MeanReversionConfig configures the mean reversion strategy.
type MeanReversionConfig struct {
	// RSIPeriod is the lookback for the RSI oscillator.
	RSIPeriod int `yaml:"rsi_period" json:"rsi_period"`
	// Oversold is the RSI level at or below which a buy is emitted.
	Oversold float64 `yaml:"oversold" json:"oversold"`
	// Overbought is the RSI level at or above which a sell is emitted.
	Overbought float64 `yaml:"overbought" json:"overbought"`
	// EMAPeriod is the lookback for the trend filter; buys require price at
	// or below the EMA, sells require price at or above it.
	EMAPeriod int `yaml:"ema_period" json:"ema_period"`
	// ATRPeriod is the lookback for the volatility-scaled stop and target.
	ATRPeriod int `yaml:"atr_period" json:"atr_period"`
	// StopATRMultiple places the suggested stop this many ATRs from entry.
	StopATRMultiple float64 `yaml:"stop_atr_multiple" json:"stop_atr_multiple"`
	// TargetATRMultiple places the suggested target this many ATRs from entry.
	TargetATRMultiple float64 `yaml:"target_atr_multiple" json:"target_atr_multiple"`
	// Confidence assigned to emitted signals.
	Confidence float64 `yaml:"confidence" json:"confidence"`
}

// instrumentState holds the per-instrument indicator set.
type instrumentState struct {
	rsi *indicator.RSI
	ema *indicator.EMA
	atr *indicator.ATR
}

// MeanReversion emits a buy when an instrument's RSI drops to the oversold
// level while price sits below its EMA, and the mirror sell at the
// overbought level above the EMA. Stops and targets scale with ATR so quiet
// instruments get tighter exits than volatile ones. It is a reference
// strategy: the alpha content is intentionally simple.
type MeanReversion struct {
	config      MeanReversionConfig
	initialized bool
	states      map[string]*instrumentState
}

var _ strategy.Strategy = (*MeanReversion)(nil)

// NewMeanReversion creates an uninitialized mean reversion strategy.
func NewMeanReversion() *MeanReversion {
	//nolint:exhaustruct
	return &MeanReversion{}
}

// Name implements strategy.Strategy.
func (m *MeanReversion) Name() string {
	return "mean-reversion"
}

// APIVersion implements strategy.Strategy.
func (m *MeanReversion) APIVersion() string {
	return version.GetVersion()
}

// Initialize implements strategy.Strategy. An empty config keeps defaults.
func (m *MeanReversion) Initialize(config string) error {
	cfg := MeanReversionConfig{
		RSIPeriod:         14,
		Oversold:          30,
		Overbought:        70,
		EMAPeriod:         20,
		ATRPeriod:         14,
		StopATRMultiple:   1.5,
		TargetATRMultiple: 3.0,
		Confidence:        0.7,
	}

	if config != "" {
		if err := yaml.Unmarshal([]byte(config), &cfg); err != nil {
			return errors.Wrap(errors.ErrCodeStrategyConfigError, "invalid mean reversion config", err)
		}
	}

	if cfg.RSIPeriod <= 0 || cfg.EMAPeriod <= 0 || cfg.ATRPeriod <= 0 {
		return errors.New(errors.ErrCodeStrategyConfigError, "indicator periods must be positive")
	}

	if cfg.Oversold >= cfg.Overbought {
		return errors.New(errors.ErrCodeStrategyConfigError, "oversold level must be below overbought level")
	}

	if cfg.StopATRMultiple <= 0 || cfg.TargetATRMultiple <= 0 {
		return errors.New(errors.ErrCodeStrategyConfigError, "ATR multiples must be positive")
	}

	if cfg.Confidence < 0 || cfg.Confidence > 1 {
		return errors.New(errors.ErrCodeStrategyConfigError, "confidence must be in [0, 1]")
	}

	m.config = cfg
	m.states = make(map[string]*instrumentState)
	m.initialized = true

	return nil
}

// OnTick implements strategy.Strategy.
func (m *MeanReversion) OnTick(snapshot types.Snapshot) ([]types.Signal, error) {
	if !m.initialized {
		return nil, errors.New(errors.ErrCodeStrategyConfigError, "mean reversion strategy not initialized")
	}

	var signals []types.Signal

	for _, instrument := range sortedInstruments(snapshot) {
		tick := snapshot.Ticks[instrument]
		state := m.stateFor(instrument)

		rsi := state.rsi.Update(tick)
		ema := state.ema.Update(tick)
		atr := state.atr.Update(tick)

		if !state.rsi.Ready() || !state.ema.Ready() || !state.atr.Ready() || atr <= 0 {
			continue
		}

		switch {
		case rsi <= m.config.Oversold && tick.Last <= ema:
			//nolint:exhaustruct
			signals = append(signals, types.Signal{
				Instrument: instrument,
				Action:     types.SignalActionBuy,
				Confidence: m.config.Confidence,
				StopLoss:   optional.Some(tick.Last - m.config.StopATRMultiple*atr),
				Target:     optional.Some(tick.Last + m.config.TargetATRMultiple*atr),
			})
		case rsi >= m.config.Overbought && tick.Last >= ema:
			//nolint:exhaustruct
			signals = append(signals, types.Signal{
				Instrument: instrument,
				Action:     types.SignalActionSell,
				Confidence: m.config.Confidence,
				StopLoss:   optional.Some(tick.Last + m.config.StopATRMultiple*atr),
				Target:     optional.Some(tick.Last - m.config.TargetATRMultiple*atr),
			})
		}
	}

	return signals, nil
}

func (m *MeanReversion) stateFor(instrument string) *instrumentState {
	state, ok := m.states[instrument]
	if !ok {
		state = &instrumentState{
			rsi: indicator.NewRSI(m.config.RSIPeriod),
			ema: indicator.NewEMA(m.config.EMAPeriod),
			atr: indicator.NewATR(m.config.ATRPeriod),
		}
		m.states[instrument] = state
	}

	return state
}
