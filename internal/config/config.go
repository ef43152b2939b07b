package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Mode selects how orders reach the venue.
type Mode string

const (
	// ModePaper fills orders against the last known market price without
	// contacting the venue.
	ModePaper Mode = "paper"
	// ModeLive routes orders through the broker gateway.
	ModeLive Mode = "live"
)

// Config is the full engine configuration tree, loaded from a single YAML file.
type Config struct {
	Engine     EngineConfig     `yaml:"engine" json:"engine" jsonschema:"title=Engine,description=Tick loop and market session settings"`
	Connection ConnectionConfig `yaml:"connection" json:"connection" jsonschema:"title=Connection,description=Retry and health-check policy for external connections"`
	Arbiter    ArbiterConfig    `yaml:"arbiter" json:"arbiter" jsonschema:"title=Arbiter,description=Signal deduplication and quality filtering"`
	Execution  ExecutionConfig  `yaml:"execution" json:"execution" jsonschema:"title=Execution,description=Order submission mode and rate limiting"`
	Risk       RiskConfig       `yaml:"risk" json:"risk" jsonschema:"title=Risk,description=Daily loss limits and position caps"`
	Monitor    MonitorConfig    `yaml:"monitor" json:"monitor" jsonschema:"title=Monitor,description=Position exit evaluation"`
	Gateway    GatewayConfig    `yaml:"gateway" json:"gateway" jsonschema:"title=Gateway,description=Broker gateway credentials and venue selection"`
	Cache      CacheConfig      `yaml:"cache" json:"cache" jsonschema:"title=Cache,description=Optional shared tick cache"`
	Journal    JournalConfig    `yaml:"journal" json:"journal" jsonschema:"title=Journal,description=Signal and order journaling"`
	Warmup     WarmupConfig     `yaml:"warmup" json:"warmup" jsonschema:"title=Warmup,description=Historical candle prefetch before the session"`
}

// EngineConfig drives the tick loop and defines the trading session window.
type EngineConfig struct {
	Instruments   []string `yaml:"instruments" json:"instruments" jsonschema:"title=Instruments,description=Underlying instruments the engine trades" validate:"required,min=1"`
	CycleInterval Duration `yaml:"cycle_interval" json:"cycle_interval" jsonschema:"title=Cycle Interval,description=Delay between tick cycles (e.g. 1s)" validate:"required,gt=0"`
	MarketOpen    string   `yaml:"market_open" json:"market_open" jsonschema:"title=Market Open,description=Session open time in HH:MM" validate:"required,datetime=15:04"`
	MarketClose   string   `yaml:"market_close" json:"market_close" jsonschema:"title=Market Close,description=Hard close time in HH:MM; all positions are force-closed at this time" validate:"required,datetime=15:04"`
	Timezone      string   `yaml:"timezone" json:"timezone" jsonschema:"title=Timezone,description=IANA timezone of the market session" validate:"required"`
}

// Location resolves the configured market timezone.
func (c EngineConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "unknown timezone %q", c.Timezone)
	}

	return loc, nil
}

// ConnectionConfig is the retry/backoff/health policy applied to every
// supervised external connection.
type ConnectionConfig struct {
	MaxRetries     int      `yaml:"max_retries" json:"max_retries" jsonschema:"title=Max Retries,description=Connection attempts before giving up" validate:"required,gt=0"`
	BackoffBase    Duration `yaml:"backoff_base" json:"backoff_base" jsonschema:"title=Backoff Base,description=Initial delay between connection attempts" validate:"required,gt=0"`
	BackoffMax     Duration `yaml:"backoff_max" json:"backoff_max" jsonschema:"title=Backoff Max,description=Upper bound on the delay between attempts" validate:"required,gt=0"`
	AttemptTimeout Duration `yaml:"attempt_timeout" json:"attempt_timeout" jsonschema:"title=Attempt Timeout,description=Timeout applied to each individual connection attempt" validate:"required,gt=0"`
	ProbeInterval  Duration `yaml:"probe_interval" json:"probe_interval" jsonschema:"title=Probe Interval,description=Period of the background health-check loop" validate:"required,gt=0"`
}

// ArbiterConfig controls signal deduplication and the quality floor.
type ArbiterConfig struct {
	// CooldownWindow of zero means "align to the engine cycle interval".
	CooldownWindow Duration `yaml:"cooldown_window" json:"cooldown_window" jsonschema:"title=Cooldown Window,description=Window in which one (instrument, strategy) pair may emit at most one signal; 0s aligns to the cycle interval"`
	MinConfidence  float64  `yaml:"min_confidence" json:"min_confidence" jsonschema:"title=Min Confidence,description=Signals below this confidence are discarded,minimum=0,maximum=1" validate:"gte=0,lte=1"`
}

// ExecutionConfig controls order submission.
type ExecutionConfig struct {
	Mode            Mode     `yaml:"mode" json:"mode" jsonschema:"title=Mode,description=paper fills locally; live routes to the venue,enum=paper,enum=live" validate:"required,oneof=paper live"`
	OrdersPerSecond float64  `yaml:"orders_per_second" json:"orders_per_second" jsonschema:"title=Orders Per Second,description=Token-bucket refill rate for order submission" validate:"required,gt=0"`
	Burst           int      `yaml:"burst" json:"burst" jsonschema:"title=Burst,description=Token-bucket burst size" validate:"required,gt=0"`
	MaxRetries      int      `yaml:"max_retries" json:"max_retries" jsonschema:"title=Max Retries,description=Submission attempts before an order is reported failed" validate:"required,gt=0"`
	RetryDelay      Duration `yaml:"retry_delay" json:"retry_delay" jsonschema:"title=Retry Delay,description=Fixed delay between submission attempts" validate:"required,gt=0"`
	OrderQuantity   float64  `yaml:"order_quantity" json:"order_quantity" jsonschema:"title=Order Quantity,description=Quantity used for strategy-initiated orders" validate:"required,gt=0"`
	// PaperFeeFraction only applies in paper mode; live fees come from the venue.
	PaperFeeFraction float64 `yaml:"paper_fee_fraction" json:"paper_fee_fraction" jsonschema:"title=Paper Fee Fraction,description=Simulated fee charged on paper fills as a fraction of notional" validate:"gte=0,lt=1"`
}

// RiskConfig bounds daily losses and open exposure.
type RiskConfig struct {
	Capital              float64 `yaml:"capital" json:"capital" jsonschema:"title=Capital,description=Trading capital the daily loss limit is computed against" validate:"required,gt=0"`
	MaxDailyLossFraction float64 `yaml:"max_daily_loss_fraction" json:"max_daily_loss_fraction" jsonschema:"title=Max Daily Loss Fraction,description=Fraction of capital that triggers the kill-switch when lost in one day,minimum=0,maximum=1" validate:"required,gt=0,lte=1"`
	MaxOpenPositions     int     `yaml:"max_open_positions" json:"max_open_positions" jsonschema:"title=Max Open Positions,description=New entry signals are blocked once this many positions are open" validate:"required,gt=0"`
	MaxPositionQuantity  float64 `yaml:"max_position_quantity" json:"max_position_quantity" jsonschema:"title=Max Position Quantity,description=Upper bound on the quantity of a single position" validate:"required,gt=0"`
}

// MonitorConfig controls the position monitor loop.
type MonitorConfig struct {
	CycleInterval    Duration `yaml:"cycle_interval" json:"cycle_interval" jsonschema:"title=Cycle Interval,description=Delay between exit-condition evaluations" validate:"required,gt=0"`
	SquareOffCutoff  string   `yaml:"square_off_cutoff" json:"square_off_cutoff" jsonschema:"title=Square-off Cutoff,description=Intraday time in HH:MM after which positions are wound down ahead of the hard close" validate:"required,datetime=15:04"`
	TrailingFraction float64  `yaml:"trailing_fraction" json:"trailing_fraction" jsonschema:"title=Trailing Fraction,description=Fraction behind the best seen price at which the trailing stop rides,minimum=0,maximum=1" validate:"gte=0,lt=1"`
}

// GatewayConfig selects and authenticates the broker gateway.
type GatewayConfig struct {
	Venue     string `yaml:"venue" json:"venue" jsonschema:"title=Venue,description=Registered gateway provider name,enum=binance,enum=mock" validate:"required"`
	APIKey    string `yaml:"api_key" json:"api_key" jsonschema:"title=API Key,description=Venue API key"`
	SecretKey string `yaml:"secret_key" json:"secret_key" jsonschema:"title=Secret Key,description=Venue API secret"`
	Testnet   bool   `yaml:"testnet" json:"testnet" jsonschema:"title=Testnet,description=Route to the venue's test environment"`
	BaseURL   string `yaml:"base_url" json:"base_url" jsonschema:"title=Base URL,description=Override the venue endpoint (used by the mock venue in tests)"`
}

// CacheConfig configures the optional shared tick cache. When the cache is
// unreachable at startup the engine degrades to an in-memory cache.
type CacheConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled" jsonschema:"title=Enabled,description=Publish ticks to a shared Redis cache"`
	Address   string   `yaml:"address" json:"address" jsonschema:"title=Address,description=Redis host:port"`
	Password  string   `yaml:"password" json:"password" jsonschema:"title=Password,description=Redis password"`
	DB        int      `yaml:"db" json:"db" jsonschema:"title=DB,description=Redis database index" validate:"gte=0"`
	TTL       Duration `yaml:"ttl" json:"ttl" jsonschema:"title=TTL,description=Expiry on published tick entries"`
	KeyPrefix string   `yaml:"key_prefix" json:"key_prefix" jsonschema:"title=Key Prefix,description=Namespace prefix for all cache keys"`
}

// JournalConfig controls session journaling.
type JournalConfig struct {
	OutputDir     string `yaml:"output_dir" json:"output_dir" jsonschema:"title=Output Dir,description=Directory session run folders are created under" validate:"required"`
	ExportParquet bool   `yaml:"export_parquet" json:"export_parquet" jsonschema:"title=Export Parquet,description=Write journal tables to Parquet when the session closes"`
}

// WarmupConfig controls the historical candle prefetch that runs before the
// tick loop starts.
type WarmupConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled" jsonschema:"title=Enabled,description=Prefetch historical candles before trading"`
	Provider      string `yaml:"provider" json:"provider" jsonschema:"title=Provider,description=Historical data source,enum=binance,enum=polygon" validate:"omitempty,oneof=binance polygon"`
	Days          int    `yaml:"days" json:"days" jsonschema:"title=Days,description=How many calendar days of history to fetch" validate:"gte=0"`
	Interval      string `yaml:"interval" json:"interval" jsonschema:"title=Interval,description=Candle interval,enum=1m,enum=5m,enum=15m,enum=1h,enum=1d" validate:"omitempty,oneof=1m 5m 15m 1h 1d"`
	PolygonAPIKey string `yaml:"polygon_api_key" json:"polygon_api_key" jsonschema:"title=Polygon API Key,description=API key used when provider is polygon"`
}

// DefaultConfig returns a Config with every field set to its default value.
// LoadConfig applies the YAML file on top of these defaults.
func DefaultConfig() Config {
	return Config{
		Engine: EngineConfig{
			Instruments:   []string{},
			CycleInterval: Duration(2 * time.Second),
			MarketOpen:    "09:15",
			MarketClose:   "15:30",
			Timezone:      "Asia/Kolkata",
		},
		Connection: ConnectionConfig{
			MaxRetries:     5,
			BackoffBase:    Duration(1 * time.Second),
			BackoffMax:     Duration(30 * time.Second),
			AttemptTimeout: Duration(10 * time.Second),
			ProbeInterval:  Duration(30 * time.Second),
		},
		Arbiter: ArbiterConfig{
			CooldownWindow: Duration(0),
			MinConfidence:  0.6,
		},
		Execution: ExecutionConfig{
			Mode:             ModePaper,
			OrdersPerSecond:  2,
			Burst:            1,
			MaxRetries:       3,
			RetryDelay:       Duration(500 * time.Millisecond),
			OrderQuantity:    1,
			PaperFeeFraction: 0,
		},
		Risk: RiskConfig{
			Capital:              1_000_000,
			MaxDailyLossFraction: 0.02,
			MaxOpenPositions:     10,
			MaxPositionQuantity:  100,
		},
		Monitor: MonitorConfig{
			CycleInterval:    Duration(5 * time.Second),
			SquareOffCutoff:  "15:15",
			TrailingFraction: 0.01,
		},
		Gateway: GatewayConfig{
			Venue:     "binance",
			APIKey:    "",
			SecretKey: "",
			Testnet:   false,
			BaseURL:   "",
		},
		Cache: CacheConfig{
			Enabled:   false,
			Address:   "localhost:6379",
			Password:  "",
			DB:        0,
			TTL:       Duration(30 * time.Second),
			KeyPrefix: "pulse",
		},
		Journal: JournalConfig{
			OutputDir:     "sessions",
			ExportParquet: true,
		},
		Warmup: WarmupConfig{
			Enabled:       false,
			Provider:      "binance",
			Days:          1,
			Interval:      "1m",
			PolygonAPIKey: "",
		},
	}
}

// LoadConfig reads a YAML config file, applies it on top of DefaultConfig and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML config bytes on top of DefaultConfig and validates
// the result.
func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate validates the full config tree. Gateway credentials are not
// required here; the venue rejects bad or missing keys at connect time, and
// paper sessions run without any.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	if _, err := c.Engine.Location(); err != nil {
		return err
	}

	if c.Connection.BackoffMax < c.Connection.BackoffBase {
		return errors.New(errors.ErrCodeInvalidConfiguration, "connection.backoff_max must be >= connection.backoff_base")
	}

	return nil
}

// EffectiveCooldown resolves the arbiter cooldown window, aligning a zero
// value to the engine cycle interval.
func (c *Config) EffectiveCooldown() time.Duration {
	if c.Arbiter.CooldownWindow > 0 {
		return c.Arbiter.CooldownWindow.Std()
	}

	return c.Engine.CycleInterval.Std()
}
