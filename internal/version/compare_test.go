package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckVersionCompatibility(t *testing.T) {
	tests := []struct {
		name            string
		engineVersion   string
		strategyVersion string
		expectError     bool
		errorContains   string
	}{
		// Compatible cases
		{
			name:            "exact match",
			engineVersion:   "1.2.0",
			strategyVersion: "1.2.0",
			expectError:     false,
		},
		{
			name:            "engine patch higher",
			engineVersion:   "1.2.1",
			strategyVersion: "1.2.0",
			expectError:     false,
		},
		{
			name:            "strategy patch higher",
			engineVersion:   "1.2.0",
			strategyVersion: "1.2.5",
			expectError:     false,
		},
		{
			name:            "same major minor different patch",
			engineVersion:   "2.5.10",
			strategyVersion: "2.5.3",
			expectError:     false,
		},

		{
			name:            "strategy minor older",
			engineVersion:   "1.3.0",
			strategyVersion: "1.2.0",
			expectError:     false,
		},

		// Incompatible cases
		{
			name:            "strategy minor newer",
			engineVersion:   "1.1.0",
			strategyVersion: "1.2.0",
			expectError:     true,
			errorContains:   "minor version mismatch",
		},
		{
			name:            "major version differs",
			engineVersion:   "2.0.0",
			strategyVersion: "1.2.0",
			expectError:     true,
			errorContains:   "major version mismatch",
		},
		{
			name:            "major version differs reversed",
			engineVersion:   "1.2.0",
			strategyVersion: "2.2.0",
			expectError:     true,
			errorContains:   "major version mismatch",
		},

		// Development build cases
		{
			name:            "engine is main",
			engineVersion:   "main",
			strategyVersion: "1.2.0",
			expectError:     false,
		},
		{
			name:            "strategy is main",
			engineVersion:   "1.2.0",
			strategyVersion: "main",
			expectError:     false,
		},
		{
			name:            "both are main",
			engineVersion:   "main",
			strategyVersion: "main",
			expectError:     false,
		},

		// v-prefix handling
		{
			name:            "v prefix on engine",
			engineVersion:   "v1.2.0",
			strategyVersion: "1.2.0",
			expectError:     false,
		},
		{
			name:            "v prefix on strategy",
			engineVersion:   "1.2.0",
			strategyVersion: "v1.2.3",
			expectError:     false,
		},
		{
			name:            "v prefix on both with mismatch",
			engineVersion:   "v1.2.0",
			strategyVersion: "v1.3.0",
			expectError:     true,
			errorContains:   "minor version mismatch",
		},

		// Invalid version cases
		{
			name:            "invalid engine version",
			engineVersion:   "not-a-version",
			strategyVersion: "1.2.0",
			expectError:     true,
			errorContains:   "invalid engine version",
		},
		{
			name:            "invalid strategy version",
			engineVersion:   "1.2.0",
			strategyVersion: "banana",
			expectError:     true,
			errorContains:   "invalid strategy version",
		},
		{
			name:            "empty engine version",
			engineVersion:   "",
			strategyVersion: "1.2.0",
			expectError:     true,
			errorContains:   "invalid engine version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckVersionCompatibility(tt.engineVersion, tt.strategyVersion)

			if tt.expectError {
				require.Error(t, err)

				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestGetVersion(t *testing.T) {
	v := GetVersion()
	assert.NotEmpty(t, v)
	assert.Equal(t, Version, v)
}
