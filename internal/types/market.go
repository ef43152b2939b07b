package types

import "time"

// RawQuote is one instrument's entry in the raw feed snapshot, before
// normalization by the market data pipeline.
type RawQuote struct {
	Instrument string    `yaml:"instrument" json:"instrument"`
	Last       float64   `yaml:"last" json:"last"`
	Volume     float64   `yaml:"volume" json:"volume"`
	Open       float64   `yaml:"open" json:"open"`
	High       float64   `yaml:"high" json:"high"`
	Low        float64   `yaml:"low" json:"low"`
	Close      float64   `yaml:"close" json:"close"`
	// Bid and Ask are zero when the feed carries no quote depth; the pipeline
	// synthesizes a spread in that case.
	Bid       float64   `yaml:"bid" json:"bid"`
	Ask       float64   `yaml:"ask" json:"ask"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
}

// Tick is a normalized per-instrument tick produced by the market data
// pipeline for strategy consumption.
type Tick struct {
	Instrument string  `yaml:"instrument" json:"instrument"`
	Last       float64 `yaml:"last" json:"last"`
	Open       float64 `yaml:"open" json:"open"`
	High       float64 `yaml:"high" json:"high"`
	Low        float64 `yaml:"low" json:"low"`
	Close      float64 `yaml:"close" json:"close"`
	Volume     float64 `yaml:"volume" json:"volume"`
	// VolumeDelta is the volume traded since the previous pipeline cycle.
	VolumeDelta float64 `yaml:"volume_delta" json:"volume_delta"`
	// VolumeDeltaPercent is VolumeDelta relative to the previous cycle's
	// cumulative volume, in percent.
	VolumeDeltaPercent float64 `yaml:"volume_delta_percent" json:"volume_delta_percent"`
	Bid                float64 `yaml:"bid" json:"bid"`
	Ask                float64 `yaml:"ask" json:"ask"`
	// SyntheticSpread marks bid/ask values derived from the last price
	// because the feed carried no quote depth.
	SyntheticSpread bool      `yaml:"synthetic_spread" json:"synthetic_spread"`
	Timestamp       time.Time `yaml:"timestamp" json:"timestamp"`
}

// Spread returns the bid/ask spread of the tick.
func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}

// Snapshot is one cycle's normalized view of the market, keyed by instrument.
type Snapshot struct {
	Ticks     map[string]Tick `yaml:"ticks" json:"ticks"`
	Timestamp time.Time       `yaml:"timestamp" json:"timestamp"`
}

// Empty reports whether the snapshot carries no ticks. The pipeline returns
// an empty snapshot when a cycle fails, and the scheduler skips it.
func (s Snapshot) Empty() bool {
	return len(s.Ticks) == 0
}

// MarketData is a single OHLCV candle, used by the historical data providers
// for warmup downloads.
type MarketData struct {
	Id     string    `csv:"id" parquet:"id"`
	Symbol string    `csv:"symbol" parquet:"symbol"`
	Time   time.Time `csv:"time" parquet:"time"`
	Open   float64   `csv:"open" parquet:"open"`
	High   float64   `csv:"high" parquet:"high"`
	Low    float64   `csv:"low" parquet:"low"`
	Close  float64   `csv:"close" parquet:"close"`
	Volume float64   `csv:"volume" parquet:"volume"`
}
