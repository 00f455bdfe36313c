// Package validation decodes generative model output against fixed JSON
// schemas. Every component that asks the model for structured output funnels
// the raw text through DecodeStrict and takes its deterministic default when
// the result does not conform.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	commonerrors "parts-agent/internal/common/errors"
)

// DecodeStrict validates raw model output against schemaJSON and decodes it
// into out. Markdown code fences around the JSON are tolerated since models
// add them even when told not to. Any failure is reported as a
// StructuredOutputParseError; callers never surface it.
func DecodeStrict(component, schemaJSON, raw string, out interface{}) error {
	payload := StripFences(raw)
	if strings.TrimSpace(payload) == "" {
		return commonerrors.NewStructuredOutputParseError(component, fmt.Errorf("empty output"))
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewStringLoader(payload),
	)
	if err != nil {
		return commonerrors.NewStructuredOutputParseError(component, err)
	}
	if !result.Valid() {
		return commonerrors.NewStructuredOutputParseError(component, fmt.Errorf("schema violations: %s", formatViolations(result)))
	}

	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return commonerrors.NewStructuredOutputParseError(component, err)
	}
	return nil
}

// StripFences removes a surrounding markdown code fence, if present.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func formatViolations(result *gojsonschema.Result) string {
	parts := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, "; ")
}
