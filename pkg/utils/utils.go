// Package utils carries small cross-cutting helpers shared by commands and
// tests.
package utils

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
)

// GetSchemaFromConfig reflects a JSON schema from a config struct. The schema
// command uses it for strategy config blobs; the engine config tree has its
// own generator with custom type mappings.
func GetSchemaFromConfig(config any) (string, error) {
	schema := jsonschema.Reflect(config)

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidParameter, "failed to marshal schema", err)
	}

	return string(data), nil
}
