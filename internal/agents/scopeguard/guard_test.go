package scopeguard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"parts-agent/internal/common/llm"
	"parts-agent/internal/common/logger"
)

type fakeProvider struct {
	reply string
	err   error
}

func (f *fakeProvider) Generate(context.Context, string, llm.Options) (string, error) {
	return f.reply, f.err
}

func (f *fakeProvider) Enabled() bool { return true }

func TestGuard_DeniesOutOfScopeAppliances(t *testing.T) {
	guard := New(llm.Disabled{}, logger.NewTestLogger(t))

	tests := []struct {
		name    string
		message string
	}{
		{"oven", "my oven won't heat up"},
		{"washer", "the washer is leaking"},
		{"tv capitalized", "My TV remote is broken"},
		{"laptop", "can you fix my laptop"},
		{"hvac", "HVAC filter replacement"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := guard.Check(context.Background(), tt.message)
			assert.False(t, verdict.Allowed)
			assert.Equal(t, DenialMessage, verdict.Denial)
		})
	}
}

func TestGuard_AllowsInScopeMessages(t *testing.T) {
	guard := New(llm.Disabled{}, logger.NewTestLogger(t))

	tests := []struct {
		name    string
		message string
	}{
		{"refrigerator", "my refrigerator ice maker stopped working"},
		{"dishwasher", "dishwasher top rack replacement"},
		{"part number", "is PS11752778 in stock?"},
		{"greeting", "hello there"},
		{"substring not whole word", "the stovetop-safe drawer in my fridge"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := guard.Check(context.Background(), tt.message)
			assert.True(t, verdict.Allowed)
		})
	}
}

func TestGuard_ModelCheckDenies(t *testing.T) {
	guard := New(&fakeProvider{reply: "DENY"}, logger.NewTestLogger(t))

	verdict := guard.Check(context.Background(), "tell me a story about pirates")
	assert.False(t, verdict.Allowed)
	assert.Equal(t, DenialMessage, verdict.Denial)
}

func TestGuard_ModelCheckNormalizesReply(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		allowed bool
	}{
		{"trailing newline", "DENY\n", false},
		{"lowercase", "deny", false},
		{"padded", "  Deny  ", false},
		{"allow", "ALLOW", true},
		{"allow lowercase", "allow\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guard := New(&fakeProvider{reply: tt.reply}, logger.NewTestLogger(t))
			verdict := guard.Check(context.Background(), "tell me a story about pirates")
			assert.Equal(t, tt.allowed, verdict.Allowed)
		})
	}
}

func TestGuard_FailsOpenOnModelError(t *testing.T) {
	guard := New(&fakeProvider{err: errors.New("provider down")}, logger.NewTestLogger(t))

	verdict := guard.Check(context.Background(), "need a new door shelf")
	assert.True(t, verdict.Allowed)
}
