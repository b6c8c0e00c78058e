package config

import (
	_ "embed"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/testenv/testenv/internal/failure"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON string

// SchemaJSON returns the JSON Schema that testenv.toml documents must satisfy.
func SchemaJSON() string {
	return schemaJSON
}

// validateDocument checks the raw TOML document against the embedded schema
// and reports every violation in a single error.
func validateDocument(data []byte) error {
	var doc map[string]interface{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return failure.Config("", "invalid %s: %v", FileName, err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}

	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return failure.Config("", "failed to validate %s: %v", FileName, err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return failure.Config("", "invalid %s:\n  - %s", FileName, strings.Join(problems, "\n  - "))
}
