// Package validation checks API request bodies against embedded JSON Schemas.
package validation

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	ErrInvalid       = errors.New("invalid request")
	ErrUnknownSchema = errors.New("unknown schema")
)

// FieldError names a failing field and the kind of failure. It never carries
// the submitted value.
type FieldError struct {
	Field string `json:"field"`
	Type  string `json:"type"`
	Msg   string `json:"message"`
}

// Error is returned when a document fails its schema.
type Error struct {
	Schema string
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Msg
	}
	return "payload failed schema validation: " + strings.Join(parts, "; ")
}

func (e *Error) Unwrap() error { return ErrInvalid }

// Validator holds the compiled request schemas.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
	audit   *log.Logger
}

// NewValidator compiles every embedded schema. Failures are written to
// auditLog (field paths only); a nil auditLog discards them.
func NewValidator(auditLog *log.Logger) (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema), audit: auditLog}
	files, err := fs.Glob(schemaFS, "schemas/*.json")
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		data, err := schemaFS.ReadFile(f)
		if err != nil {
			return nil, err
		}
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", f, err)
		}
		v.schemas[strings.TrimSuffix(path.Base(f), ".json")] = s
	}
	return v, nil
}

// Schemas lists the loaded schema names.
func (v *Validator) Schemas() []string {
	names := make([]string, 0, len(v.schemas))
	for n := range v.schemas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks a raw JSON document against the named schema.
func (v *Validator) Validate(schema string, doc []byte) error {
	s, ok := v.schemas[schema]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSchema, schema)
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		v.auditf("%s | parse_error", schema)
		return fmt.Errorf("%w: malformed JSON", ErrInvalid)
	}
	if result.Valid() {
		return nil
	}
	verr := &Error{Schema: schema}
	for _, re := range result.Errors() {
		verr.Fields = append(verr.Fields, FieldError{Field: re.Field(), Type: re.Type(), Msg: re.Description()})
		v.auditf("%s | %s | %s", schema, re.Field(), re.Type())
	}
	return verr
}

func (v *Validator) auditf(format string, args ...any) {
	if v.audit != nil {
		v.audit.Printf(format, args...)
	}
}
