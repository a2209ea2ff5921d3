package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrMalformedJSON is returned when the document is not JSON at all.
var ErrMalformedJSON = errors.New("malformed json")

const webhookSchemaURL = "https://glpisum.local/schemas/webhook.json"

var (
	// Only the envelope is constrained; fields are interpreted per event by the handler.
	webhookSchemaBytes = []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {"type": "object"}
}`)

	webhookSchemaOnce sync.Once
	webhookCompiled   *jsonschema.Schema
	webhookSchemaErr  error
)

// WebhookSchema returns the raw JSON schema for GLPI webhook deliveries.
func WebhookSchema() []byte {
	return append([]byte(nil), webhookSchemaBytes...)
}

// ValidateWebhookDocument checks that data is a JSON array of objects.
func ValidateWebhookDocument(data []byte) error {
	webhookSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(webhookSchemaURL, bytes.NewReader(webhookSchemaBytes)); err != nil {
			webhookSchemaErr = fmt.Errorf("add webhook schema: %w", err)
			return
		}
		webhookCompiled, webhookSchemaErr = compiler.Compile(webhookSchemaURL)
	})
	if webhookSchemaErr != nil {
		return webhookSchemaErr
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var payload interface{}
	if err := dec.Decode(&payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after document", ErrMalformedJSON)
	}
	if err := webhookCompiled.Validate(payload); err != nil {
		return describe(err)
	}
	return nil
}

// describe reduces a validation error to its innermost instance location and message.
func describe(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Errorf("%s: %s", loc, ve.Message)
}
