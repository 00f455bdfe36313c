// Package orchestrator runs the chat pipeline: response cache, scope
// guard, classification, retrieval, and synthesis, in that order. Cache
// failures never fail a request; the pipeline degrades to uncached
// operation instead.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"parts-agent/internal/agents/classifier"
	"parts-agent/internal/agents/retrieval"
	"parts-agent/internal/agents/scopeguard"
	"parts-agent/internal/agents/synthesizer"
	"parts-agent/internal/cache"
	"parts-agent/internal/common/logger"
	"parts-agent/internal/common/metrics"
	"parts-agent/internal/models"
)

// noMatchFormat invites the user to narrow the query when retrieval
// comes up empty. The %s is the original message.
const noMatchFormat = "I couldn't find parts that match '%s'. Tell me the appliance type, brand, and any part number you have. I can help with refrigerators and dishwashers."

// NoGuideMessage is returned when no troubleshooting guide matches.
const NoGuideMessage = "I couldn't find a troubleshooting guide for that issue. Tell me the appliance type and symptom (e.g., 'dishwasher not draining'). I can help with refrigerators and dishwashers."

// Config tunes the pipeline. Zero values fall back to the package
// defaults in cache.
type Config struct {
	ResponseTTL time.Duration
	NoMatchTTL  time.Duration
}

// Orchestrator wires the agents into one request pipeline.
type Orchestrator struct {
	guard       *scopeguard.Guard
	classifier  *classifier.Classifier
	retrieval   *retrieval.Engine
	synthesizer *synthesizer.Synthesizer
	store       cache.Store
	responseTTL time.Duration
	noMatchTTL  time.Duration
	logger      logger.Logger
}

func New(cfg *Config, guard *scopeguard.Guard, cls *classifier.Classifier, engine *retrieval.Engine, synth *synthesizer.Synthesizer, store cache.Store, log logger.Logger) *Orchestrator {
	if cfg == nil {
		cfg = &Config{}
	}
	responseTTL := cfg.ResponseTTL
	if responseTTL <= 0 {
		responseTTL = cache.DefaultResponseTTL
	}
	noMatchTTL := cfg.NoMatchTTL
	if noMatchTTL <= 0 {
		noMatchTTL = cache.NoMatchTTL
	}
	return &Orchestrator{
		guard:       guard,
		classifier:  cls,
		retrieval:   engine,
		synthesizer: synth,
		store:       store,
		responseTTL: responseTTL,
		noMatchTTL:  noMatchTTL,
		logger:      log.WithFields(map[string]interface{}{"component": "orchestrator"}),
	}
}

// HandleChat processes one message end to end and always produces a
// response.
func (o *Orchestrator) HandleChat(ctx context.Context, req models.ChatRequest) models.ChatResponse {
	start := time.Now()
	message := strings.TrimSpace(req.Message)
	log := o.logger.WithFields(map[string]interface{}{
		"request_id": uuid.NewString(),
		"session_id": req.SessionID,
	})

	history, err := o.store.History(ctx, req.SessionID)
	if err != nil {
		log.Warn("history unavailable, continuing without context", map[string]interface{}{
			"error": err.Error(),
		})
		history = nil
	}

	if cached := o.lookupCached(ctx, message, log); cached != nil {
		o.recordTurns(ctx, req.SessionID, message, cached.Response, log)
		o.observe("cached", start)
		return cached.ToChatResponse(true)
	}

	if verdict := o.guard.Check(ctx, message); !verdict.Allowed {
		answer := &models.Answer{Response: verdict.Denial}
		o.finish(ctx, req.SessionID, message, answer, o.responseTTL, log)
		o.observe("denied", start)
		return answer.ToChatResponse(false)
	}

	classification := o.classifier.Classify(ctx, message, history)
	log.Info("message classified", map[string]interface{}{
		"intent":         string(classification.Intent),
		"part_number":    classification.Entities.PartNumber,
		"model_number":   classification.Entities.ModelNumber,
		"appliance_type": classification.Entities.ApplianceType,
	})

	var answer *models.Answer
	ttl := o.responseTTL

	if classification.Intent == models.IntentTroubleshooting {
		answer, ttl = o.troubleshoot(ctx, message, classification.Entities)
	} else {
		answer, ttl = o.productFlow(ctx, message, classification, history)
	}

	o.finish(ctx, req.SessionID, message, answer, ttl, log)
	o.observe("ok", start)
	return answer.ToChatResponse(false)
}

func (o *Orchestrator) troubleshoot(ctx context.Context, message string, entities models.Entities) (*models.Answer, time.Duration) {
	entries := o.retrieval.SearchTroubleshooting(ctx, message, entities)
	if len(entries) == 0 {
		return &models.Answer{Response: NoGuideMessage}, o.noMatchTTL
	}
	return o.synthesizer.Troubleshoot(ctx, message, entries), o.responseTTL
}

func (o *Orchestrator) productFlow(ctx context.Context, message string, classification models.ClassificationResult, history []models.Turn) (*models.Answer, time.Duration) {
	entities := classification.Entities

	if entities.PartNumber != "" {
		if product := o.retrieval.ByPartNumber(ctx, entities.PartNumber); product != nil {
			// Compatibility questions with both identifiers get a direct
			// verdict with no cards or steps attached.
			if entities.ModelNumber != "" && synthesizer.WantsCompatibility(message) {
				return synthesizer.CompatibilityVerdict(product, entities.ModelNumber), o.responseTTL
			}

			products := []models.CatalogProduct{*product}
			steps := synthesizer.InstallationSteps(products, message)
			return o.synthesizer.Synthesize(ctx, message, classification.Intent, products, steps, history), o.responseTTL
		}
	}

	products, tier := o.retrieval.SearchProducts(ctx, message, entities)
	if len(products) == 0 {
		return &models.Answer{Response: noMatchMessage(message)}, o.noMatchTTL
	}

	o.logger.Debug("products retrieved", map[string]interface{}{
		"tier":  tier,
		"count": len(products),
	})
	steps := synthesizer.InstallationSteps(products, message)
	return o.synthesizer.Synthesize(ctx, message, classification.Intent, products, steps, history), o.responseTTL
}

func (o *Orchestrator) lookupCached(ctx context.Context, message string, log logger.Logger) *models.Answer {
	answer, err := o.store.GetResponse(ctx, message)
	if err != nil {
		log.Warn("response cache unavailable", map[string]interface{}{"error": err.Error()})
		return nil
	}
	if answer == nil {
		metrics.ResponseCacheEvents.WithLabelValues("miss").Inc()
		return nil
	}
	metrics.ResponseCacheEvents.WithLabelValues("hit").Inc()
	log.Info("serving cached response", map[string]interface{}{})
	return answer
}

// finish appends the turn pair and caches the answer under the message.
func (o *Orchestrator) finish(ctx context.Context, sessionID, message string, answer *models.Answer, ttl time.Duration, log logger.Logger) {
	o.recordTurns(ctx, sessionID, message, answer.Response, log)
	if err := o.store.SetResponse(ctx, message, answer, ttl); err != nil {
		log.Warn("failed to cache response", map[string]interface{}{"error": err.Error()})
		return
	}
	metrics.ResponseCacheEvents.WithLabelValues("store").Inc()
}

func (o *Orchestrator) recordTurns(ctx context.Context, sessionID, message, reply string, log logger.Logger) {
	err := o.store.AppendTurns(ctx, sessionID,
		models.Turn{Role: models.RoleUser, Content: message},
		models.Turn{Role: models.RoleAssistant, Content: reply},
	)
	if err != nil {
		log.Warn("failed to record conversation turns", map[string]interface{}{"error": err.Error()})
	}
}

func (o *Orchestrator) observe(outcome string, start time.Time) {
	metrics.ChatRequestsTotal.WithLabelValues(outcome).Inc()
	metrics.ChatRequestDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

func noMatchMessage(message string) string {
	return fmt.Sprintf(noMatchFormat, message)
}
