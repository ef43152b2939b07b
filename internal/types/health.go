package types

import "time"

// ConnectionState is the lifecycle state of one supervised connection.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
	ConnectionStateReconnecting ConnectionState = "reconnecting"
	// ConnectionStateError means connect attempts were exhausted without success.
	ConnectionStateError ConnectionState = "error"
)

// ConnectionHealth is a point-in-time snapshot of a supervised connection,
// one instance per external dependency.
type ConnectionHealth struct {
	Name                string          `yaml:"name" json:"name"`
	State               ConnectionState `yaml:"state" json:"state"`
	LastConnectedAt     time.Time       `yaml:"last_connected_at" json:"last_connected_at"`
	LastError           string          `yaml:"last_error" json:"last_error"`
	ConsecutiveFailures int             `yaml:"consecutive_failures" json:"consecutive_failures"`
	// LastLatency is the duration of the most recent successful probe.
	LastLatency time.Duration `yaml:"last_latency" json:"last_latency"`
}

// Healthy reports whether the connection is currently usable.
func (h ConnectionHealth) Healthy() bool {
	return h.State == ConnectionStateConnected
}
