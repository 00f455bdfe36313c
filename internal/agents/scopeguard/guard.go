// Package scopeguard filters chat messages to the supported appliance
// domain before any model call is spent on them.
package scopeguard

import (
	"context"
	"regexp"
	"strings"

	"parts-agent/internal/common/llm"
	"parts-agent/internal/common/logger"
)

// DenialMessage is returned verbatim for out-of-scope messages.
const DenialMessage = "I can only assist with Refrigerator and Dishwasher parts. Please ask me about those appliances!"

// deniedTerms matches appliances and devices the agent does not support.
// Word boundaries keep substrings like "stovetop-safe" from matching "tv".
var deniedTerms = regexp.MustCompile(`(?i)\b(oven|washer|dryer|microwave|stove|range|phone|laptop|computer|tv|hvac)\b`)

// Verdict is the outcome of a scope check.
type Verdict struct {
	Allowed bool
	// Denial is the user-facing message when Allowed is false.
	Denial string
}

// Guard decides whether a message is in scope. The regex deny-list is
// the primary check; an optional model-backed check can be layered on
// when the keyword list proves too coarse.
type Guard struct {
	provider llm.Provider
	logger   logger.Logger
}

// New creates a Guard. provider may be a disabled placeholder; the
// keyword check works without it.
func New(provider llm.Provider, log logger.Logger) *Guard {
	return &Guard{
		provider: provider,
		logger:   log.WithFields(map[string]interface{}{"component": "scope_guard"}),
	}
}

// Check classifies the message as in or out of scope. The guard fails
// open: any internal error lets the message through so a guard outage
// never blocks legitimate traffic.
func (g *Guard) Check(ctx context.Context, message string) Verdict {
	if deniedTerms.MatchString(message) {
		g.logger.Info("message denied by scope guard", map[string]interface{}{
			"matched": deniedTerms.FindString(message),
		})
		return Verdict{Allowed: false, Denial: DenialMessage}
	}

	if g.provider != nil && g.provider.Enabled() {
		allowed, err := g.modelCheck(ctx, message)
		if err != nil {
			g.logger.Warn("scope guard model check failed, allowing message", map[string]interface{}{
				"error": err.Error(),
			})
			return Verdict{Allowed: true}
		}
		if !allowed {
			return Verdict{Allowed: false, Denial: DenialMessage}
		}
	}

	return Verdict{Allowed: true}
}

func (g *Guard) modelCheck(ctx context.Context, message string) (bool, error) {
	prompt := "You screen messages for a refrigerator and dishwasher parts assistant.\n" +
		"Reply with exactly ALLOW if the message is about refrigerators, dishwashers, their parts, " +
		"or general conversation, and DENY otherwise.\n\nMessage: " + message
	reply, err := g.provider.Generate(ctx, prompt, llm.Options{Temperature: 0, MaxTokens: 5})
	if err != nil {
		return false, err
	}
	return strings.ToUpper(strings.TrimSpace(reply)) != "DENY", nil
}
