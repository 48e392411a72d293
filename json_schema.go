package docpipe

import (
	"strings"

	"github.com/autom8ter/docpipe/errors"
	"github.com/autom8ter/docpipe/model"
	"github.com/xeipuuv/gojsonschema"
)

// JSONSchema validates documents against a json schema - https://json-schema.org/
type JSONSchema struct {
	schema *gojsonschema.Schema
}

// NewJSONSchema compiles the schema content
func NewJSONSchema(schemaContent []byte) (*JSONSchema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaContent))
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "failed to load json schema")
	}
	return &JSONSchema{schema: schema}, nil
}

// MustJSONSchema compiles the schema content and panics if it is invalid
func MustJSONSchema(schemaContent []byte) *JSONSchema {
	s, err := NewJSONSchema(schemaContent)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate validates the document. field is the descriptor path reported on failure.
func (j *JSONSchema) Validate(field string, doc *model.Document) error {
	result, err := j.schema.Validate(gojsonschema.NewBytesLoader(doc.Bytes()))
	if err != nil {
		return errors.Wrap(err, errors.Validation, "failed to validate document")
	}
	if !result.Valid() {
		var errs []string
		for _, err := range result.Errors() {
			errs = append(errs, err.String())
		}
		return errors.Validationf(field, "%s", strings.Join(errs, ","))
	}
	return nil
}
