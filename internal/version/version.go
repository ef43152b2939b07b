package version

// Version is the engine's strategy API version. Strategies declare the
// version they were built against through APIVersion, and the registry
// rejects incompatible ones at registration (see CheckVersionCompatibility).
//
// Release builds stamp it with ldflags:
// -ldflags "-X github.com/rxtech-lab/pulse-trading/internal/version.Version=1.2.3"
// The value "main" marks a development build, which skips the check.
var Version = "v1.0.0"

// GetVersion returns the engine's strategy API version.
func GetVersion() string {
	return Version
}
