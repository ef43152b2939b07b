package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v3"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) TestDefaultConfig() {
	config := DefaultConfig()

	suite.Equal(2*time.Second, config.Engine.CycleInterval.Std())
	suite.Equal("09:15", config.Engine.MarketOpen)
	suite.Equal("15:30", config.Engine.MarketClose)
	suite.Equal(5, config.Connection.MaxRetries)
	suite.Equal(30*time.Second, config.Connection.ProbeInterval.Std())
	suite.Equal(0.6, config.Arbiter.MinConfidence)
	suite.Equal(ModePaper, config.Execution.Mode)
	suite.Equal(3, config.Execution.MaxRetries)
	suite.Equal(0.02, config.Risk.MaxDailyLossFraction)
	suite.Equal(5*time.Second, config.Monitor.CycleInterval.Std())
	suite.Equal("15:15", config.Monitor.SquareOffCutoff)
	suite.False(config.Cache.Enabled)
	suite.Equal("sessions", config.Journal.OutputDir)
}

func (suite *ConfigTestSuite) TestParseConfigOverridesDefaults() {
	yamlData := `
engine:
  instruments:
    - NIFTY
    - BANKNIFTY
  cycle_interval: 1s
  timezone: UTC
execution:
  mode: live
  orders_per_second: 5
risk:
  capital: 500000
`

	config, err := ParseConfig([]byte(yamlData))
	suite.Require().NoError(err)

	suite.Equal([]string{"NIFTY", "BANKNIFTY"}, config.Engine.Instruments)
	suite.Equal(1*time.Second, config.Engine.CycleInterval.Std())
	suite.Equal("UTC", config.Engine.Timezone)
	suite.Equal(ModeLive, config.Execution.Mode)
	suite.Equal(5.0, config.Execution.OrdersPerSecond)
	suite.Equal(500000.0, config.Risk.Capital)

	// Untouched sections keep their defaults.
	suite.Equal("09:15", config.Engine.MarketOpen)
	suite.Equal(5, config.Connection.MaxRetries)
	suite.Equal(0.6, config.Arbiter.MinConfidence)
}

func (suite *ConfigTestSuite) TestParseConfigMissingInstruments() {
	yamlData := `
engine:
  cycle_interval: 1s
`

	_, err := ParseConfig([]byte(yamlData))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestParseConfigInvalidMode() {
	yamlData := `
engine:
  instruments: [NIFTY]
execution:
  mode: dryrun
`

	_, err := ParseConfig([]byte(yamlData))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestParseConfigInvalidMarketHours() {
	yamlData := `
engine:
  instruments: [NIFTY]
  market_open: "nine fifteen"
`

	_, err := ParseConfig([]byte(yamlData))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestParseConfigInvalidTimezone() {
	yamlData := `
engine:
  instruments: [NIFTY]
  timezone: Mars/Olympus
`

	_, err := ParseConfig([]byte(yamlData))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestParseConfigBackoffMaxBelowBase() {
	yamlData := `
engine:
  instruments: [NIFTY]
connection:
  backoff_base: 10s
  backoff_max: 1s
`

	_, err := ParseConfig([]byte(yamlData))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestParseConfigInvalidDuration() {
	yamlData := `
engine:
  instruments: [NIFTY]
  cycle_interval: fast
`

	_, err := ParseConfig([]byte(yamlData))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestLoadConfigFromFile() {
	dir := suite.T().TempDir()
	path := filepath.Join(dir, "config.yaml")

	yamlData := `
engine:
  instruments: [NIFTY]
cache:
  enabled: true
  address: redis:6379
  ttl: 10s
`
	suite.Require().NoError(os.WriteFile(path, []byte(yamlData), 0o644))

	config, err := LoadConfig(path)
	suite.Require().NoError(err)
	suite.True(config.Cache.Enabled)
	suite.Equal("redis:6379", config.Cache.Address)
	suite.Equal(10*time.Second, config.Cache.TTL.Std())
}

func (suite *ConfigTestSuite) TestLoadConfigMissingFile() {
	_, err := LoadConfig("/nonexistent/config.yaml")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestEffectiveCooldown() {
	config := DefaultConfig()
	config.Engine.CycleInterval = Duration(2 * time.Second)

	// Zero cooldown aligns to the cycle interval.
	config.Arbiter.CooldownWindow = 0
	suite.Equal(2*time.Second, config.EffectiveCooldown())

	config.Arbiter.CooldownWindow = Duration(10 * time.Second)
	suite.Equal(10*time.Second, config.EffectiveCooldown())
}

func (suite *ConfigTestSuite) TestDurationRoundTrip() {
	d := Duration(1500 * time.Millisecond)

	yamlBytes, err := yaml.Marshal(d)
	suite.Require().NoError(err)
	suite.Equal("1.5s\n", string(yamlBytes))

	var parsed Duration
	suite.Require().NoError(yaml.Unmarshal(yamlBytes, &parsed))
	suite.Equal(d, parsed)

	jsonBytes, err := json.Marshal(d)
	suite.Require().NoError(err)
	suite.Equal(`"1.5s"`, string(jsonBytes))

	var parsedJSON Duration
	suite.Require().NoError(json.Unmarshal(jsonBytes, &parsedJSON))
	suite.Equal(d, parsedJSON)
}

func (suite *ConfigTestSuite) TestGenerateSchemaJSON() {
	config := DefaultConfig()

	schemaJSON, err := config.GenerateSchemaJSON()
	suite.Require().NoError(err)
	suite.Contains(schemaJSON, "pulse-trading-config")
	suite.Contains(schemaJSON, "cycle_interval")
	suite.Contains(schemaJSON, "max_daily_loss_fraction")

	var decoded map[string]interface{}
	suite.Require().NoError(json.Unmarshal([]byte(schemaJSON), &decoded))
}

func (suite *ConfigTestSuite) TestEngineLocation() {
	config := DefaultConfig()
	loc, err := config.Engine.Location()
	suite.Require().NoError(err)
	suite.Equal("Asia/Kolkata", loc.String())
}
