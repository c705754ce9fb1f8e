// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package task

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// CreateRequest is the wire payload for creating a task.
type CreateRequest struct {
	AccountID   string `json:"accountId" jsonschema:"minLength=26,maxLength=26"`
	Title       string `json:"title" jsonschema:"minLength=1"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty" jsonschema:"enum=Completed,enum=InProgress,enum=Pending"`
}

// UpdateRequest is the wire payload for updating a task.
type UpdateRequest struct {
	ID          string `json:"id" jsonschema:"minLength=26,maxLength=26"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty" jsonschema:"enum=Completed,enum=InProgress,enum=Pending"`
}

// Compiled schema cache. The schemas are derived from the request structs on
// first use; compilation is guarded so concurrent validations share one copy.
var (
	createSchemaOnce  sync.Once
	createSchemaCache *jschema.Schema
	createSchemaErr   error

	updateSchemaOnce  sync.Once
	updateSchemaCache *jschema.Schema
	updateSchemaErr   error
)

// GenerateCreateSchema generates the JSON Schema for CreateRequest.
func GenerateCreateSchema() ([]byte, error) {
	return generateSchema(&CreateRequest{}, "TaskHub Task Create Request")
}

// GenerateUpdateSchema generates the JSON Schema for UpdateRequest.
func GenerateUpdateSchema() ([]byte, error) {
	return generateSchema(&UpdateRequest{}, "TaskHub Task Update Request")
}

func generateSchema(v any, title string) ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(v)
	schema.Title = title

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").Wrap(err)
	}
	return data, nil
}

// ValidateCreate validates a raw create payload against the schema.
func ValidateCreate(data []byte) error {
	createSchemaOnce.Do(func() {
		createSchemaCache, createSchemaErr = compileSchema(GenerateCreateSchema)
	})
	if createSchemaErr != nil {
		return createSchemaErr
	}
	return validate(createSchemaCache, data)
}

// ValidateUpdate validates a raw update payload against the schema.
func ValidateUpdate(data []byte) error {
	updateSchemaOnce.Do(func() {
		updateSchemaCache, updateSchemaErr = compileSchema(GenerateUpdateSchema)
	})
	if updateSchemaErr != nil {
		return updateSchemaErr
	}
	return validate(updateSchemaCache, data)
}

func compileSchema(generate func() ([]byte, error)) (*jschema.Schema, error) {
	schemaBytes, err := generate()
	if err != nil {
		return nil, err
	}

	var schemaData any
	if err := json.Unmarshal(schemaBytes, &schemaData); err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").
			With("operation", "parse schema JSON").
			Wrap(err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaData); err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").
			With("operation", "add schema resource").
			Wrap(err)
	}

	sch, err := c.Compile("schema.json")
	if err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").
			With("operation", "compile schema").
			Wrap(err)
	}
	return sch, nil
}

func validate(sch *jschema.Schema, data []byte) error {
	if len(data) == 0 {
		return oops.Code("TASK_PAYLOAD_INVALID").Errorf("payload is empty")
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return oops.Code("TASK_PAYLOAD_INVALID").
			With("operation", "parse payload").
			Wrap(err)
	}

	if err := sch.Validate(payload); err != nil {
		return oops.Code("TASK_PAYLOAD_INVALID").Wrap(err)
	}
	return nil
}
