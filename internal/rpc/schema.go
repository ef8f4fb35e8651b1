package rpc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// sendParamsSchema is the JSON Schema every tasks/send and tasks/sendSubscribe
// params payload must satisfy before the service looks at its fields: a
// message with at least one part is the one structural requirement shared by
// both methods (tasks/sendSubscribe's additional metadata.taskType
// requirement is checked separately, since it is method-specific).
const sendParamsSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["message"],
	"properties": {
		"id": {"type": "string"},
		"sessionId": {"type": "string"},
		"message": {
			"type": "object",
			"required": ["parts"],
			"properties": {
				"role": {"type": "string"},
				"parts": {
					"type": "array",
					"minItems": 1,
					"items": {
						"type": "object",
						"required": ["type"],
						"properties": {
							"type": {"type": "string", "enum": ["text", "image", "audio", "video", "file"]},
							"text": {"type": "string"},
							"url": {"type": "string"},
							"audioUrl": {"type": "string"},
							"file": {"type": "string"}
						}
					}
				}
			}
		},
		"metadata": {"type": "object"},
		"notification": {
			"type": "object",
			"properties": {
				"mode": {"type": "string", "enum": ["sse", "webhook"]},
				"url": {"type": "string"},
				"eventTypes": {"type": "array", "items": {"type": "string"}}
			}
		}
	}
}`

// paramsValidator validates decoded JSON-RPC params against sendParamsSchema.
type paramsValidator struct {
	loader gojsonschema.JSONLoader
}

// newParamsValidator prepares sendParamsSchema as a reusable schema loader.
func newParamsValidator() (*paramsValidator, error) {
	loader := gojsonschema.NewStringLoader(sendParamsSchema)
	// Validate once against an empty document so a malformed schema fails
	// at startup rather than on the first request.
	if _, err := gojsonschema.Validate(loader, gojsonschema.NewBytesLoader([]byte(`{}`))); err != nil {
		return nil, fmt.Errorf("rpc: failed to compile params schema: %w", err)
	}
	return &paramsValidator{loader: loader}, nil
}

// Validate checks a raw JSON params payload against the schema, returning a
// human-readable error describing every violation found.
func (v *paramsValidator) Validate(raw json.RawMessage) error {
	result, err := gojsonschema.Validate(v.loader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid params: %s", strings.Join(msgs, "; "))
}
