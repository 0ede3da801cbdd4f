package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var fieldDescriptions = map[string]string{
	"date":        "The date of the course (YYYY-MM-DD)",
	"time":        "The time range of the course",
	"studentName": "The name of the student",
	"courseName":  "The name of the course/subject",
	"teacherName": "The name of the teacher",
}

var fieldOrder = []string{"date", "time", "studentName", "courseName", "teacherName"}

// ResponseSchema returns the JSON Schema given to the extraction service: an
// array of objects with five required string fields.
func ResponseSchema() map[string]any {
	props := make(map[string]any, len(fieldOrder))
	for _, name := range fieldOrder {
		props[name] = map[string]any{"type": "string", "description": fieldDescriptions[name]}
	}
	return map[string]any{
		"type":        "array",
		"description": "List of extracted course records",
		"items": map[string]any{
			"type":       "object",
			"properties": props,
			"required":   append([]string(nil), fieldOrder...),
		},
	}
}

// validationSchema checks the decoded response locally. It is looser than
// ResponseSchema: missing or null fields are accepted and become "".
func validationSchema() map[string]any {
	props := make(map[string]any, len(fieldOrder))
	for _, name := range fieldOrder {
		props[name] = map[string]any{"type": []string{"string", "null"}}
	}
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":       "object",
			"properties": props,
		},
	}
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func compiled() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := json.Marshal(validationSchema())
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("course_records.json", bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("course_records.json")
	})
	return compiledSchema, compileErr
}

// validate checks a decoded JSON value against the record array schema.
func validate(v any) error {
	schema, err := compiled()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
