// Package classifier turns a free-text message into an intent label plus
// extracted entities, using the configured model provider.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"parts-agent/internal/common/llm"
	"parts-agent/internal/common/logger"
	"parts-agent/internal/common/validation"
	"parts-agent/internal/models"
)

const historyWindow = 5

// resultSchema constrains the provider's JSON output. Entity slots may be
// string or null; the model is inconsistent about which it emits.
const resultSchema = `{
	"type": "object",
	"required": ["intent", "entities"],
	"properties": {
		"intent": {
			"type": "string",
			"enum": ["compatibility_check", "installation_help", "troubleshooting", "general_info"]
		},
		"entities": {
			"type": "object",
			"properties": {
				"part_number":    {"type": ["string", "null"]},
				"model_number":   {"type": ["string", "null"]},
				"brand":          {"type": ["string", "null"]},
				"appliance_type": {"type": ["string", "null"]},
				"symptom":        {"type": ["string", "null"]},
				"part_type":      {"type": ["string", "null"]}
			}
		}
	}
}`

// Classifier labels messages with one of four intents and extracts entity
// slots. It never returns an error: unusable provider output falls back
// to the general_info default.
type Classifier struct {
	provider llm.Provider
	logger   logger.Logger
}

func New(provider llm.Provider, log logger.Logger) *Classifier {
	return &Classifier{
		provider: provider,
		logger:   log.WithFields(map[string]interface{}{"component": "classifier"}),
	}
}

// Classify runs the model over the message plus recent history.
func (c *Classifier) Classify(ctx context.Context, message string, history []models.Turn) models.ClassificationResult {
	raw, err := c.provider.Generate(ctx, buildPrompt(message, history), llm.Options{
		Temperature:    0,
		MaxTokens:      500,
		ResponseFormat: llm.ResponseFormatJSON,
	})
	if err != nil {
		c.logger.Warn("classification call failed, using default", map[string]interface{}{
			"error": err.Error(),
		})
		return models.DefaultClassification()
	}

	var result models.ClassificationResult
	if err := validation.DecodeStrict("classifier", resultSchema, raw, &result); err != nil {
		c.logger.Warn("classification output did not parse, using default", map[string]interface{}{
			"error": err.Error(),
		})
		return models.DefaultClassification()
	}

	normalizeEntities(&result.Entities)
	return result
}

// normalizeEntities clears slots the model filled with the literal string
// "null" instead of JSON null.
func normalizeEntities(e *models.Entities) {
	for _, field := range []*string{&e.PartNumber, &e.ModelNumber, &e.Brand, &e.ApplianceType, &e.Symptom, &e.PartType} {
		if strings.EqualFold(strings.TrimSpace(*field), "null") {
			*field = ""
		} else {
			*field = strings.TrimSpace(*field)
		}
	}
}

func buildPrompt(message string, history []models.Turn) string {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	var context strings.Builder
	for _, turn := range history {
		fmt.Fprintf(&context, "%s: %s\n", turn.Role, turn.Content)
	}

	return fmt.Sprintf(`You are a query classification assistant for an appliance parts chat agent specializing in refrigerator and dishwasher parts.

Conversation history:
%s
Current user query: %s

Your task:
1. Determine the user's intent from these categories:
- compatibility_check: Verifying if a part fits a model
- installation_help: How to install a part
- troubleshooting: Diagnosing appliance issues
- general_info: General questions about parts/models

2. Extract relevant entities:
- part_number (e.g., PS11752778)
- model_number (e.g., WDT780SAEM1)
- brand (e.g., Whirlpool, GE, Samsung)
- appliance_type (refrigerator or dishwasher)
- symptom (e.g., "ice maker not working", "leaking water")

Return ONLY a JSON object with this exact format:
{
    "intent": "intent_name",
    "entities": {
        "part_number": "value or null",
        "model_number": "value or null",
        "brand": "value or null",
        "appliance_type": "value or null",
        "symptom": "value or null"
    }
}`, context.String(), message)
}
