package builtin

import (
	"sort"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/pulse-trading/internal/strategy"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/internal/version"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"gopkg.in/yaml.v3"
)

// MomentumConfig configures the momentum strategy.
type MomentumConfig struct {
	// ThresholdPercent is the minimum price change versus the previous cycle
	// that triggers a signal, in percent.
	ThresholdPercent float64 `yaml:"threshold_percent" json:"threshold_percent"`
	// Confidence assigned to emitted signals.
	Confidence float64 `yaml:"confidence" json:"confidence"`
	// StopFraction places the suggested stop this fraction away from entry.
	StopFraction float64 `yaml:"stop_fraction" json:"stop_fraction"`
	// TargetFraction places the suggested target this fraction away from entry.
	TargetFraction float64 `yaml:"target_fraction" json:"target_fraction"`
}

// Momentum emits a buy when an instrument's price moves up more than the
// configured threshold between consecutive cycles, and a sell on the mirror
// move down. It is a reference strategy: the alpha content is intentionally
// simple.
type Momentum struct {
	config      MomentumConfig
	initialized bool
	lastPrice   map[string]float64
}

var _ strategy.Strategy = (*Momentum)(nil)

// NewMomentum creates an uninitialized momentum strategy.
func NewMomentum() *Momentum {
	//nolint:exhaustruct
	return &Momentum{}
}

// Name implements strategy.Strategy.
func (m *Momentum) Name() string {
	return "momentum"
}

// APIVersion implements strategy.Strategy.
func (m *Momentum) APIVersion() string {
	return version.GetVersion()
}

// Initialize implements strategy.Strategy. An empty config keeps defaults.
func (m *Momentum) Initialize(config string) error {
	cfg := MomentumConfig{
		ThresholdPercent: 0.5,
		Confidence:       0.75,
		StopFraction:     0.01,
		TargetFraction:   0.02,
	}

	if config != "" {
		if err := yaml.Unmarshal([]byte(config), &cfg); err != nil {
			return errors.Wrap(errors.ErrCodeStrategyConfigError, "invalid momentum config", err)
		}
	}

	if cfg.ThresholdPercent <= 0 {
		return errors.New(errors.ErrCodeStrategyConfigError, "threshold_percent must be positive")
	}

	if cfg.Confidence < 0 || cfg.Confidence > 1 {
		return errors.New(errors.ErrCodeStrategyConfigError, "confidence must be in [0, 1]")
	}

	m.config = cfg
	m.lastPrice = make(map[string]float64)
	m.initialized = true

	return nil
}

// OnTick implements strategy.Strategy.
func (m *Momentum) OnTick(snapshot types.Snapshot) ([]types.Signal, error) {
	if !m.initialized {
		return nil, errors.New(errors.ErrCodeStrategyConfigError, "momentum strategy not initialized")
	}

	var signals []types.Signal

	for _, instrument := range sortedInstruments(snapshot) {
		tick := snapshot.Ticks[instrument]

		prev, seen := m.lastPrice[instrument]
		m.lastPrice[instrument] = tick.Last

		if !seen || prev <= 0 {
			continue
		}

		changePercent := (tick.Last - prev) / prev * 100

		switch {
		case changePercent >= m.config.ThresholdPercent:
			//nolint:exhaustruct
			signals = append(signals, types.Signal{
				Instrument: instrument,
				Action:     types.SignalActionBuy,
				Confidence: m.config.Confidence,
				StopLoss:   optional.Some(tick.Last * (1 - m.config.StopFraction)),
				Target:     optional.Some(tick.Last * (1 + m.config.TargetFraction)),
			})
		case changePercent <= -m.config.ThresholdPercent:
			//nolint:exhaustruct
			signals = append(signals, types.Signal{
				Instrument: instrument,
				Action:     types.SignalActionSell,
				Confidence: m.config.Confidence,
				StopLoss:   optional.Some(tick.Last * (1 + m.config.StopFraction)),
				Target:     optional.Some(tick.Last * (1 - m.config.TargetFraction)),
			})
		}
	}

	return signals, nil
}

func sortedInstruments(snapshot types.Snapshot) []string {
	instruments := make([]string, 0, len(snapshot.Ticks))
	for instrument := range snapshot.Ticks {
		instruments = append(instruments, instrument)
	}

	sort.Strings(instruments)

	return instruments
}
