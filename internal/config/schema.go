package config

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
)

// GenerateSchema generates a JSON schema for the Config tree.
func (c *Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if strings.HasSuffix(t.String(), "config.Duration") {
				return &jsonschema.Schema{
					Type:        "string",
					Description: "Go duration string, e.g. 5s or 500ms",
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "pulse-trading-config"
	schema.Description = "Configuration schema for the pulse trading engine"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates an indented JSON schema string for the Config
// tree. Used by the schema subcommand for editor tooling.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
