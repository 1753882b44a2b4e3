// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

package plugin

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the manifest JSON schema.
const SchemaID = "https://fragloop.dev/schemas/plugin-manifest.schema.json"

var (
	compiledSchema    *jschema.Schema
	compiledSchemaErr error
	compileOnce       sync.Once
)

// GenerateSchema generates the manifest JSON schema from Manifest.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Manifest{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Fragloop Plugin Manifest"
	schema.Description = "Schema for <plugin>.yaml sidecar manifests"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.In("schema").Wrapf(err, "marshal schema")
	}
	return data, nil
}

// ValidateSchema validates manifest YAML against the manifest schema.
func ValidateSchema(data []byte) error {
	if len(data) == 0 {
		return oops.In("schema").Errorf("manifest data is empty")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.In("schema").Wrapf(err, "invalid YAML")
	}

	sch, err := schema()
	if err != nil {
		return err
	}
	if err := sch.Validate(toJSONTypes(doc)); err != nil {
		return oops.In("schema").Wrapf(err, "schema validation failed")
	}
	return nil
}

func schema() (*jschema.Schema, error) {
	compileOnce.Do(func() {
		compiledSchema, compiledSchemaErr = compileSchema()
	})
	return compiledSchema, compiledSchemaErr
}

func compileSchema() (*jschema.Schema, error) {
	raw, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	doc, err := jschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, oops.In("schema").Wrapf(err, "parse schema JSON")
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("manifest.json", doc); err != nil {
		return nil, oops.In("schema").Wrapf(err, "add schema resource")
	}
	sch, err := c.Compile("manifest.json")
	if err != nil {
		return nil, oops.In("schema").Wrapf(err, "compile schema")
	}
	return sch, nil
}

// toJSONTypes converts yaml.v3 decoded values into the shapes the JSON
// schema validator accepts.
func toJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = toJSONTypes(v)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = toJSONTypes(v)
		}
		return out
	case int:
		return json.Number(jsonNumber(val))
	case float64:
		return val
	default:
		return val
	}
}

func jsonNumber(i int) string {
	b, _ := json.Marshal(i) //nolint:errcheck // ints always marshal
	return string(b)
}

// FormatSchemaError returns the part of a validation error worth showing to
// a plugin author.
func FormatSchemaError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.Index(msg, "schema validation failed: "); i >= 0 {
		msg = msg[i+len("schema validation failed: "):]
	}
	return msg
}
