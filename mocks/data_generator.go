package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/pulse-trading/internal/types"
)

// DataGenerator produces deterministic synthetic market data for tests and
// benchmarks. Prices follow geometric Brownian motion so generated series
// look like real instruments rather than noise around a constant.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a generator. Use a fixed seed for reproducible
// test runs.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig controls one generated series.
type GeneratorConfig struct {
	// Symbol is the instrument name stamped on every bar.
	Symbol string
	// StartTime is the timestamp of the first bar.
	StartTime time.Time
	// Interval is the duration between bars.
	Interval time.Duration
	// Count is the number of bars to generate.
	Count int
	// InitialPrice is the price of the first bar's open.
	InitialPrice float64
	// Volatility is the per-bar standard deviation as a fraction of price.
	Volatility float64
	// Trend drifts the series up or down across the whole run.
	Trend float64
	// VolumeBase is the average per-bar volume.
	VolumeBase float64
	// VolumeVariance scales the per-bar volume noise, 0 to 1.
	VolumeVariance float64
}

// DefaultConfig returns a neutral intraday series: one minute bars around
// price 100 with mild volatility.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:         "TEST",
		StartTime:      time.Date(2024, 8, 19, 9, 15, 0, 0, time.UTC),
		Interval:       time.Minute,
		Count:          10000,
		InitialPrice:   100.0,
		Volatility:     0.002,
		Trend:          0.0,
		VolumeBase:     10000,
		VolumeVariance: 0.3,
	}
}

// Generate produces OHLCV candles for the configured series.
func (g *DataGenerator) Generate(config GeneratorConfig) []types.MarketData {
	data := make([]types.MarketData, config.Count)
	currentPrice := config.InitialPrice
	currentTime := config.StartTime

	for i := 0; i < config.Count; i++ {
		open := currentPrice
		closePrice := open * (1 + g.priceStep(config))

		if closePrice <= 0 {
			closePrice = open * 0.99
		}

		highExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)
		lowExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)

		high := math.Max(open, closePrice) + highExtension
		low := math.Min(open, closePrice) - lowExtension

		if low <= 0 {
			low = math.Min(open, closePrice) * 0.99
		}

		data[i] = types.MarketData{
			Id:     "",
			Symbol: config.Symbol,
			Time:   currentTime,
			Open:   roundTo(open, 4),
			High:   roundTo(high, 4),
			Low:    roundTo(low, 4),
			Close:  roundTo(closePrice, 4),
			Volume: roundTo(g.barVolume(config), 2),
		}

		currentPrice = closePrice
		currentTime = currentTime.Add(config.Interval)
	}

	return data
}

// GenerateQuotes produces a raw quote walk for the configured series, with
// bid and ask bracketing the last price and cumulative session volume. Feed
// fakes and the paper venue replay these as polling snapshots.
func (g *DataGenerator) GenerateQuotes(config GeneratorConfig, spreadFraction float64) []types.RawQuote {
	quotes := make([]types.RawQuote, config.Count)
	last := config.InitialPrice
	sessionOpen := config.InitialPrice
	high := config.InitialPrice
	low := config.InitialPrice
	cumulativeVolume := 0.0
	currentTime := config.StartTime

	for i := 0; i < config.Count; i++ {
		last *= 1 + g.priceStep(config)
		if last <= 0 {
			last = sessionOpen * 0.5
		}

		high = math.Max(high, last)
		low = math.Min(low, last)
		cumulativeVolume += g.barVolume(config)

		halfSpread := last * spreadFraction / 2

		quotes[i] = types.RawQuote{
			Instrument: config.Symbol,
			Last:       roundTo(last, 4),
			Volume:     roundTo(cumulativeVolume, 2),
			Open:       roundTo(sessionOpen, 4),
			High:       roundTo(high, 4),
			Low:        roundTo(low, 4),
			Close:      roundTo(last, 4),
			Bid:        roundTo(last-halfSpread, 4),
			Ask:        roundTo(last+halfSpread, 4),
			Timestamp:  currentTime,
		}

		currentTime = currentTime.Add(config.Interval)
	}

	return quotes
}

// GenerateMultiSymbol generates one series per symbol, varying price level
// and volatility so instruments do not move in lockstep.
func (g *DataGenerator) GenerateMultiSymbol(symbols []string, baseConfig GeneratorConfig) []types.MarketData {
	var allData []types.MarketData

	for _, symbol := range symbols {
		config := baseConfig
		config.Symbol = symbol
		config.InitialPrice = baseConfig.InitialPrice * (0.8 + g.rng.Float64()*0.4)
		config.Volatility = baseConfig.Volatility * (0.8 + g.rng.Float64()*0.4)

		allData = append(allData, g.Generate(config)...)
	}

	return allData
}

// Generate10K returns 10,000 bars with default settings, for benchmarks.
func Generate10K(symbol string) []types.MarketData {
	gen := NewDataGenerator(42)
	config := DefaultConfig()
	config.Symbol = symbol
	config.Count = 10000

	return gen.Generate(config)
}

// priceStep draws one normally distributed relative price move using the
// Box-Muller transform.
func (g *DataGenerator) priceStep(config GeneratorConfig) float64 {
	u1 := g.rng.Float64()
	u2 := g.rng.Float64()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

	drift := 0.0
	if config.Count > 0 {
		drift = config.Trend / float64(config.Count)
	}

	return config.Volatility*z + drift
}

func (g *DataGenerator) barVolume(config GeneratorConfig) float64 {
	variation := 1.0 + (g.rng.Float64()*2-1)*config.VolumeVariance

	volume := config.VolumeBase * variation
	if volume < 0 {
		volume = config.VolumeBase * 0.1
	}

	return volume
}

func roundTo(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))

	return math.Round(val*pow) / pow
}
