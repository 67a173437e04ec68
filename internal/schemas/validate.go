// Package schemas provides JSON Schema validation for values read back from
// the key/value store.
package schemas

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed snapshot.schema.json
var snapshotSchema string

//go:embed wallpapers.schema.json
var wallpapersSchema string

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Name    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Name, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Name, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

type compiled struct {
	once   sync.Once
	name   string
	source string
	schema *gojsonschema.Schema
	err    error
}

func (c *compiled) load() (*gojsonschema.Schema, error) {
	c.once.Do(func() {
		c.schema, c.err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(c.source))
		if c.err != nil {
			c.err = &SchemaLoadError{Name: c.name, Message: "invalid schema", Cause: c.err}
		}
	})
	return c.schema, c.err
}

var (
	snapshot   = &compiled{name: "snapshot", source: snapshotSchema}
	wallpapers = &compiled{name: "wallpapers", source: wallpapersSchema}
)

// ValidateSnapshot validates a stored snapshot value.
func ValidateSnapshot(jsonContent string) error {
	return validateCompiled(snapshot, jsonContent)
}

// ValidateWallpapers validates a stored custom wallpaper list.
func ValidateWallpapers(jsonContent string) error {
	return validateCompiled(wallpapers, jsonContent)
}

func validateCompiled(c *compiled, jsonContent string) error {
	schema, err := c.load()
	if err != nil {
		return err
	}
	result, err := schema.Validate(gojsonschema.NewStringLoader(jsonContent))
	if err != nil {
		return fmt.Errorf("failed to read %s document: %w", c.name, err)
	}
	return toValidationError(result)
}

// ValidateJSONString validates JSON string content against schema string content
func ValidateJSONString(schemaContent, jsonContent string) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaContent)
	documentLoader := gojsonschema.NewStringLoader(jsonContent)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &SchemaLoadError{
			Name:    "(string schema)",
			Message: "schema validation failed during load",
			Cause:   err,
		}
	}
	return toValidationError(result)
}

func toValidationError(result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
