package types

// RiskState is a snapshot of the risk governor's running state. One
// process-wide instance, reset once per trading day.
type RiskState struct {
	// TradingDay is the session date in YYYY-MM-DD format.
	TradingDay string `yaml:"trading_day" json:"trading_day"`
	// DailyPnL is the running realized profit/loss for the day.
	DailyPnL      float64 `yaml:"daily_pnl" json:"daily_pnl"`
	OpenPositions int     `yaml:"open_positions" json:"open_positions"`
	// KillSwitch is true once the daily loss limit has been breached. It stays
	// true until the governor is reset for a new trading day.
	KillSwitch bool `yaml:"kill_switch" json:"kill_switch"`
}
