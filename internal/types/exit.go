package types

// ExitKind identifies which rule produced an exit condition.
type ExitKind string

const (
	ExitKindTime         ExitKind = "time"
	ExitKindStopLoss     ExitKind = "stop_loss"
	ExitKindTarget       ExitKind = "target"
	ExitKindTrailingStop ExitKind = "trailing_stop"
	ExitKindRisk         ExitKind = "risk"
)

// Exit priorities. Lower numbers are more urgent; for one position in one
// monitor cycle, only the lowest-numbered condition is acted on.
const (
	ExitPriorityEmergency = 1
	ExitPriorityUrgent    = 2
	ExitPriorityNormal    = 3
)

// ExitCondition is a candidate reason to close a position, computed fresh
// each monitor cycle and never persisted.
type ExitCondition struct {
	Kind       ExitKind `yaml:"kind" json:"kind"`
	Instrument string   `yaml:"instrument" json:"instrument"`
	// TriggerValue is the level or measurement that fired the condition
	// (stop level, target level, current price at time exit).
	TriggerValue float64 `yaml:"trigger_value" json:"trigger_value"`
	Priority     int     `yaml:"priority" json:"priority"`
	Reason       string  `yaml:"reason" json:"reason"`
}
