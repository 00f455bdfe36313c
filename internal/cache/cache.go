// Package cache stores per-session conversation history and a short-lived
// response cache keyed by message text. A Redis backend is preferred; an
// in-memory backend serves as fallback when Redis is unreachable.
package cache

import (
	"context"
	"time"

	"parts-agent/internal/models"
)

const (
	// HistoryLimit is the maximum number of turns kept per session.
	HistoryLimit = 20

	// DefaultResponseTTL is how long a synthesized answer is cached.
	DefaultResponseTTL = 15 * time.Minute

	// NoMatchTTL is the shorter TTL for "no products found" answers, so a
	// catalog refresh becomes visible sooner.
	NoMatchTTL = 5 * time.Minute
)

// Store is the conversation and response cache contract.
type Store interface {
	// AppendTurns appends turns to the session history, trimming to the
	// most recent HistoryLimit turns.
	AppendTurns(ctx context.Context, sessionID string, turns ...models.Turn) error

	// History returns the session turns, oldest first.
	History(ctx context.Context, sessionID string) ([]models.Turn, error)

	// GetResponse returns the cached answer for a message, or nil on miss.
	GetResponse(ctx context.Context, message string) (*models.Answer, error)

	// SetResponse caches an answer under the message text for ttl.
	SetResponse(ctx context.Context, message string, answer *models.Answer, ttl time.Duration) error

	// Get returns the raw value stored under key, or "" on miss.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a raw value under key. A ttl of zero or less means the
	// value does not expire.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes keys from the cache.
	Delete(ctx context.Context, keys ...string) error
}

func historyKey(sessionID string) string { return "chat:" + sessionID }
func responseKey(message string) string  { return "resp:" + message }
