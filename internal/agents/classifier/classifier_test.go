package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"parts-agent/internal/common/llm"
	"parts-agent/internal/common/logger"
	"parts-agent/internal/models"
)

type fakeProvider struct {
	reply      string
	err        error
	lastPrompt string
	lastOpts   llm.Options
}

func (f *fakeProvider) Generate(_ context.Context, prompt string, opts llm.Options) (string, error) {
	f.lastPrompt = prompt
	f.lastOpts = opts
	return f.reply, f.err
}

func (f *fakeProvider) Enabled() bool { return true }

func TestClassify_ParsesWellFormedResult(t *testing.T) {
	provider := &fakeProvider{reply: `{
		"intent": "compatibility_check",
		"entities": {
			"part_number": "PS11752778",
			"model_number": "WDT780SAEM1",
			"brand": "Whirlpool",
			"appliance_type": "dishwasher",
			"symptom": null
		}
	}`}
	c := New(provider, logger.NewTestLogger(t))

	result := c.Classify(context.Background(), "will PS11752778 fit my WDT780SAEM1?", nil)

	assert.Equal(t, models.IntentCompatibilityCheck, result.Intent)
	assert.Equal(t, "PS11752778", result.Entities.PartNumber)
	assert.Equal(t, "WDT780SAEM1", result.Entities.ModelNumber)
	assert.Equal(t, "Whirlpool", result.Entities.Brand)
	assert.Empty(t, result.Entities.Symptom)
}

func TestClassify_UsesDeterministicOptions(t *testing.T) {
	provider := &fakeProvider{reply: `{"intent": "general_info", "entities": {}}`}
	c := New(provider, logger.NewTestLogger(t))

	c.Classify(context.Background(), "what is a door bin?", nil)

	assert.Equal(t, 0.0, provider.lastOpts.Temperature)
	assert.Equal(t, 500, provider.lastOpts.MaxTokens)
	assert.Equal(t, llm.ResponseFormatJSON, provider.lastOpts.ResponseFormat)
}

func TestClassify_IncludesOnlyRecentHistory(t *testing.T) {
	provider := &fakeProvider{reply: `{"intent": "general_info", "entities": {}}`}
	c := New(provider, logger.NewTestLogger(t))

	history := make([]models.Turn, 0, 8)
	for _, content := range []string{"one", "two", "three", "four", "five", "six", "seven", "eight"} {
		history = append(history, models.Turn{Role: models.RoleUser, Content: content})
	}

	c.Classify(context.Background(), "and this one?", history)

	assert.NotContains(t, provider.lastPrompt, "user: three\n")
	assert.Contains(t, provider.lastPrompt, "user: four\n")
	assert.Contains(t, provider.lastPrompt, "user: eight\n")
}

func TestClassify_FallsBackOnProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("quota exceeded")}
	c := New(provider, logger.NewTestLogger(t))

	result := c.Classify(context.Background(), "ice maker broken", nil)

	assert.Equal(t, models.DefaultClassification(), result)
}

func TestClassify_FallsBackOnMalformedOutput(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"not json", "Sure! The intent is troubleshooting."},
		{"unknown intent", `{"intent": "order_status", "entities": {}}`},
		{"missing entities", `{"intent": "general_info"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&fakeProvider{reply: tt.reply}, logger.NewTestLogger(t))
			result := c.Classify(context.Background(), "hello", nil)
			assert.Equal(t, models.DefaultClassification(), result)
		})
	}
}

func TestClassify_ToleratesFencedJSON(t *testing.T) {
	provider := &fakeProvider{reply: "```json\n{\"intent\": \"troubleshooting\", \"entities\": {\"symptom\": \"leaking water\"}}\n```"}
	c := New(provider, logger.NewTestLogger(t))

	result := c.Classify(context.Background(), "my dishwasher is leaking", nil)

	assert.Equal(t, models.IntentTroubleshooting, result.Intent)
	assert.Equal(t, "leaking water", result.Entities.Symptom)
}

func TestClassify_NormalizesLiteralNullStrings(t *testing.T) {
	provider := &fakeProvider{reply: `{"intent": "general_info", "entities": {"brand": "null", "part_number": " PS123 "}}`}
	c := New(provider, logger.NewTestLogger(t))

	result := c.Classify(context.Background(), "hi", nil)

	assert.Empty(t, result.Entities.Brand)
	assert.Equal(t, "PS123", result.Entities.PartNumber)
}

func TestClassify_PromptNamesAllIntents(t *testing.T) {
	provider := &fakeProvider{reply: `{"intent": "general_info", "entities": {}}`}
	c := New(provider, logger.NewTestLogger(t))

	c.Classify(context.Background(), "hello", nil)

	for _, intent := range []string{"compatibility_check", "installation_help", "troubleshooting", "general_info"} {
		assert.True(t, strings.Contains(provider.lastPrompt, intent), "prompt should mention %s", intent)
	}
}
