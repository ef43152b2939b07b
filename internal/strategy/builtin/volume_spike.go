package builtin

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/pulse-trading/internal/strategy"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/internal/version"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"gopkg.in/yaml.v3"
)

// VolumeSpikeConfig configures the volume spike strategy.
type VolumeSpikeConfig struct {
	// SpikePercent is the minimum volume-delta-percent that counts as a
	// spike.
	SpikePercent float64 `yaml:"spike_percent" json:"spike_percent"`
	// Confidence assigned to emitted signals.
	Confidence float64 `yaml:"confidence" json:"confidence"`
	// StopFraction places the suggested stop this fraction away from entry.
	StopFraction float64 `yaml:"stop_fraction" json:"stop_fraction"`
	// TargetFraction places the suggested target this fraction away from entry.
	TargetFraction float64 `yaml:"target_fraction" json:"target_fraction"`
}

// VolumeSpike trades volume surges in the direction of the intraday move: a
// spike with price above the open is read as accumulation (buy), below the
// open as distribution (sell). Like Momentum, it is a reference strategy.
type VolumeSpike struct {
	config      VolumeSpikeConfig
	initialized bool
}

var _ strategy.Strategy = (*VolumeSpike)(nil)

// NewVolumeSpike creates an uninitialized volume spike strategy.
func NewVolumeSpike() *VolumeSpike {
	//nolint:exhaustruct
	return &VolumeSpike{}
}

// Name implements strategy.Strategy.
func (v *VolumeSpike) Name() string {
	return "volume-spike"
}

// APIVersion implements strategy.Strategy.
func (v *VolumeSpike) APIVersion() string {
	return version.GetVersion()
}

// Initialize implements strategy.Strategy. An empty config keeps defaults.
func (v *VolumeSpike) Initialize(config string) error {
	cfg := VolumeSpikeConfig{
		SpikePercent:   150,
		Confidence:     0.65,
		StopFraction:   0.008,
		TargetFraction: 0.015,
	}

	if config != "" {
		if err := yaml.Unmarshal([]byte(config), &cfg); err != nil {
			return errors.Wrap(errors.ErrCodeStrategyConfigError, "invalid volume spike config", err)
		}
	}

	if cfg.SpikePercent <= 0 {
		return errors.New(errors.ErrCodeStrategyConfigError, "spike_percent must be positive")
	}

	if cfg.Confidence < 0 || cfg.Confidence > 1 {
		return errors.New(errors.ErrCodeStrategyConfigError, "confidence must be in [0, 1]")
	}

	v.config = cfg
	v.initialized = true

	return nil
}

// OnTick implements strategy.Strategy.
func (v *VolumeSpike) OnTick(snapshot types.Snapshot) ([]types.Signal, error) {
	if !v.initialized {
		return nil, errors.New(errors.ErrCodeStrategyConfigError, "volume spike strategy not initialized")
	}

	var signals []types.Signal

	for _, instrument := range sortedInstruments(snapshot) {
		tick := snapshot.Ticks[instrument]

		if tick.VolumeDeltaPercent < v.config.SpikePercent || tick.Open <= 0 {
			continue
		}

		switch {
		case tick.Last > tick.Open:
			//nolint:exhaustruct
			signals = append(signals, types.Signal{
				Instrument: instrument,
				Action:     types.SignalActionBuy,
				Confidence: v.config.Confidence,
				StopLoss:   optional.Some(tick.Last * (1 - v.config.StopFraction)),
				Target:     optional.Some(tick.Last * (1 + v.config.TargetFraction)),
			})
		case tick.Last < tick.Open:
			//nolint:exhaustruct
			signals = append(signals, types.Signal{
				Instrument: instrument,
				Action:     types.SignalActionSell,
				Confidence: v.config.Confidence,
				StopLoss:   optional.Some(tick.Last * (1 + v.config.StopFraction)),
				Target:     optional.Some(tick.Last * (1 - v.config.TargetFraction)),
			})
		}
	}

	return signals, nil
}
