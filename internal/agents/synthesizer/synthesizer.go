// Package synthesizer turns retrieved products and troubleshooting guides
// into the final user-facing answer. Model output is validated as strict
// JSON; every generative path has a deterministic fallback built from the
// retrieved data, so the pipeline always produces an answer.
package synthesizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"parts-agent/internal/common/llm"
	"parts-agent/internal/common/logger"
	"parts-agent/internal/common/validation"
	"parts-agent/internal/models"
)

const (
	maxCards        = 5
	maxSteps        = 8
	historyWindow   = 3
	maxGuideEntries = 3
)

// answerSchema accepts the structured reply: a message plus optional
// product cards and steps echoing what was provided.
const answerSchema = `{
	"type": "object",
	"required": ["message"],
	"properties": {
		"message":  {"type": "string", "minLength": 1},
		"products": {"type": "array", "items": {"type": "object"}},
		"steps":    {"type": "array", "items": {"type": "object"}}
	}
}`

// guideSchema constrains the troubleshooting reply.
const guideSchema = `{
	"type": "object",
	"required": ["message"],
	"properties": {
		"message":  {"type": "string", "minLength": 1},
		"steps":    {"type": "array", "items": {"type": "object"}},
		"metadata": {"type": "object"}
	}
}`

type structuredAnswer struct {
	Message  string               `json:"message"`
	Products []models.ProductCard `json:"products"`
	Steps    []models.Step        `json:"steps"`
}

type structuredGuide struct {
	Message  string                 `json:"message"`
	Steps    []models.Step          `json:"steps"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Synthesizer composes answers with the model provider.
type Synthesizer struct {
	provider llm.Provider
	logger   logger.Logger
}

func New(provider llm.Provider, log logger.Logger) *Synthesizer {
	return &Synthesizer{
		provider: provider,
		logger:   log.WithFields(map[string]interface{}{"component": "synthesizer"}),
	}
}

// Synthesize produces the answer for a product-oriented request. The
// candidates and steps are passed to the model as context and reused as-is
// when the model omits or mangles them.
func (s *Synthesizer) Synthesize(ctx context.Context, message string, intent models.Intent, products []models.CatalogProduct, steps []models.Step, history []models.Turn) *models.Answer {
	cards := cardsFrom(products)
	if len(steps) > maxSteps {
		steps = steps[:maxSteps]
	}

	fallback := &models.Answer{
		Response: deterministicProductText(cards),
		Products: cards,
		Steps:    steps,
	}

	if !s.provider.Enabled() {
		return fallback
	}

	raw, err := s.provider.Generate(ctx, buildAnswerPrompt(message, intent, cards, steps, history), llm.Options{
		Temperature:    0.3,
		MaxTokens:      1000,
		ResponseFormat: llm.ResponseFormatJSON,
	})
	if err != nil {
		s.logger.Warn("answer generation failed, using deterministic text", map[string]interface{}{
			"error": err.Error(),
		})
		return fallback
	}

	var parsed structuredAnswer
	if err := validation.DecodeStrict("synthesizer", answerSchema, raw, &parsed); err != nil {
		// The model replied, just not in the agreed shape. Its prose is
		// still the best answer we have.
		if text := strings.TrimSpace(validation.StripFences(raw)); text != "" {
			fallback.Response = text
		}
		return fallback
	}

	answer := &models.Answer{Response: parsed.Message, Products: parsed.Products, Steps: parsed.Steps}
	if len(answer.Products) == 0 {
		answer.Products = cards
	}
	if len(answer.Steps) == 0 {
		answer.Steps = steps
	}
	return answer
}

// WantsCompatibility reports whether the message is asking if a part fits
// a model.
func WantsCompatibility(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range []string{"compatib", "fit", "work with", "works with", "fit my", "compatible with"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// CompatibilityVerdict is the fast-path answer for "does part X fit model
// Y": a plain yes/no sentence with no cards or steps attached.
func CompatibilityVerdict(product *models.CatalogProduct, modelNumber string) *models.Answer {
	if product.IsCompatibleWith(modelNumber) {
		return &models.Answer{
			Response: fmt.Sprintf("Yes. %s (%s) fits model %s.", product.Name, product.PartNumber, modelNumber),
		}
	}
	return &models.Answer{
		Response: fmt.Sprintf("No. %s (%s) is not listed as compatible with model %s. I can help you find the right part for that model.",
			product.Name, product.PartNumber, modelNumber),
	}
}

// InstallationSteps returns numbered steps when the user hints at
// installing or replacing, or when a single product already carries
// curated steps. Multi-result answers stay uncluttered otherwise.
func InstallationSteps(products []models.CatalogProduct, message string) []models.Step {
	if len(products) == 0 {
		return nil
	}

	lower := strings.ToLower(message)
	wantInstall := strings.Contains(lower, "install") || strings.Contains(lower, "replace")
	if !wantInstall && len(products) != 1 {
		return nil
	}

	steps := make([]models.Step, 0, len(products[0].InstallationSteps))
	for i, detail := range products[0].InstallationSteps {
		steps = append(steps, models.Step{Step: i + 1, Detail: detail})
	}
	return steps
}

// Troubleshoot produces a diagnosis answer from up to three guides. The
// model gets the full records; if its reply is unusable, the top guide is
// formatted deterministically instead.
func (s *Synthesizer) Troubleshoot(ctx context.Context, message string, entries []models.TroubleshootingEntry) *models.Answer {
	if len(entries) > maxGuideEntries {
		entries = entries[:maxGuideEntries]
	}

	if s.provider.Enabled() {
		raw, err := s.provider.Generate(ctx, buildGuidePrompt(message, entries), llm.Options{
			Temperature:    0.4,
			MaxTokens:      1000,
			ResponseFormat: llm.ResponseFormatJSON,
		})
		if err == nil {
			var parsed structuredGuide
			if err := validation.DecodeStrict("synthesizer", guideSchema, raw, &parsed); err == nil {
				return &models.Answer{
					Response: parsed.Message,
					Steps:    parsed.Steps,
					Metadata: parsed.Metadata,
				}
			}
		} else {
			s.logger.Warn("troubleshooting generation failed, using guide directly", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return TroubleshootFallback(entries[0])
}

// TroubleshootFallback formats a guide without any model help: summary
// and repair stats, the likely cause, other candidates, a clarifying
// question, and safety-first diagnostic steps for the primary component.
func TroubleshootFallback(entry models.TroubleshootingEntry) *models.Answer {
	title := entry.SymptomDisplay
	if title == "" {
		title = entry.SymptomKey()
	}
	summary := entry.Summary
	if summary == "" {
		summary = "Let's walk through the most common fixes."
	}

	lines := []string{
		fmt.Sprintf("%s on your %s:", title, entry.ApplianceType),
		summary,
	}

	var stats []string
	if entry.AboutRepair.Difficulty != "" {
		stats = append(stats, "Difficulty: "+titleCase(entry.AboutRepair.Difficulty))
	}
	if entry.AboutRepair.RepairStoriesCount > 0 {
		stats = append(stats, fmt.Sprintf("%d owner fixes logged", entry.AboutRepair.RepairStoriesCount))
	}
	if entry.AboutRepair.StepByStepVideosCount > 0 {
		stats = append(stats, fmt.Sprintf("%d video guides available", entry.AboutRepair.StepByStepVideosCount))
	}
	if len(stats) > 0 {
		lines = append(lines, strings.Join(stats, " • "))
	}

	primary := entry.PrimaryPath()
	if primary != nil && primary.Component != "" && primary.WhyItCausesSymptom != "" {
		lines = append(lines, fmt.Sprintf("Likely cause: %s — %s", primary.Component, primary.WhyItCausesSymptom))
		if primary.Replacement.CategoryLabel != "" && primary.Replacement.CategoryURL != "" {
			lines = append(lines, fmt.Sprintf("Parts: %s (%s)", primary.Replacement.CategoryLabel, primary.Replacement.CategoryURL))
		}
	}

	var causes []string
	for _, path := range entry.RankedPaths(3) {
		if path.Component != "" && path.WhyItCausesSymptom != "" {
			causes = append(causes, path.Component+": "+path.WhyItCausesSymptom)
		}
	}
	if len(causes) > 0 {
		lines = append(lines, "Other possible causes: "+strings.Join(causes, " | "))
	}

	if len(entry.ClarifyingQuestions) > 0 {
		lines = append(lines, "Question to narrow it down: "+entry.ClarifyingQuestions[0])
	}

	var steps []models.Step
	if primary != nil {
		for _, note := range primary.Diagnostic.SafetyNotes {
			steps = append(steps, models.Step{Step: len(steps) + 1, Title: "Safety", Detail: note, Safety: true})
		}
		for _, ds := range primary.Diagnostic.Steps {
			steps = append(steps, models.Step{Step: len(steps) + 1, Title: primary.Component, Detail: ds.Detail})
		}
	}

	metadata := map[string]interface{}{
		"common_causes":        entry.CommonCauses,
		"tags":                 entry.Tags,
		"about_repair":         entry.AboutRepair,
		"repair_paths":         entry.RepairPaths,
		"clarifying_questions": entry.ClarifyingQuestions,
		"source":               entry.Source,
	}
	if primary != nil {
		metadata["primary_component"] = primary.Component
		metadata["replacement"] = primary.Replacement
	}

	return &models.Answer{
		Response: strings.Join(lines, "\n"),
		Steps:    steps,
		Metadata: metadata,
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func cardsFrom(products []models.CatalogProduct) []models.ProductCard {
	if len(products) > maxCards {
		products = products[:maxCards]
	}
	cards := make([]models.ProductCard, 0, len(products))
	for _, p := range products {
		cards = append(cards, models.CardFromProduct(p))
	}
	return cards
}

// deterministicProductText renders candidates as a plain list when no
// model text is available.
func deterministicProductText(cards []models.ProductCard) string {
	if len(cards) == 0 {
		return "I couldn't find matching parts."
	}
	if len(cards) == 1 {
		c := cards[0]
		stock := "In stock"
		if !c.InStock {
			stock = "Currently out of stock"
		}
		return fmt.Sprintf("%s (%s) - $%.2f. %s. Ask if you want compatibility or installation steps.", c.Name, c.PartNumber, c.Price, stock)
	}

	var b strings.Builder
	b.WriteString("Here are matches:\n")
	for _, c := range cards {
		stock := "In stock"
		if !c.InStock {
			stock = "Out of stock"
		}
		fmt.Fprintf(&b, "- %s (%s) $%.2f | %s | %s\n", c.Name, c.PartNumber, c.Price, c.ApplianceType, stock)
	}
	return strings.TrimRight(b.String(), "\n")
}

func buildAnswerPrompt(message string, intent models.Intent, cards []models.ProductCard, steps []models.Step, history []models.Turn) string {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	var historyText strings.Builder
	for _, turn := range history {
		fmt.Fprintf(&historyText, "%s: %s\n", turn.Role, turn.Content)
	}

	cardsJSON, _ := json.Marshal(cards)
	stepsJSON, _ := json.Marshal(steps)

	return fmt.Sprintf(`You are an appliance parts chat agent.
User asked: %s
Intent: %s
Recent history:
%s
Products JSON: %s
Steps JSON: %s

Produce STRICT JSON only (no markdown, no extra text) with keys:
- "message": 3-5 sentences answering the user's query directly; mention price and stock where relevant.
- "products": reuse the provided products, do not invent new parts; keep provided URLs and images, otherwise use empty string.
- "steps": reuse the provided steps as-is, each {"step": int, "detail": string}.
`, message, intent, historyText.String(), cardsJSON, stepsJSON)
}

func buildGuidePrompt(message string, entries []models.TroubleshootingEntry) string {
	entriesJSON, _ := json.MarshalIndent(entries, "", "  ")

	return fmt.Sprintf(`You are a repair assistant. The user asked: %q.
You have up to 3 troubleshooting entries (JSON). Use them to craft a concise, helpful response.
Return STRICT JSON with keys: "message" (3-5 sentences), "steps" (list of {"step": int, "title": string, "detail": string, "safety": bool}), "metadata" (object with common_causes, tags, about_repair, primary_component, replacement, repair_paths, clarifying_questions, source).

Entries:
%s

Rules:
- Focus on the most relevant entry; include up to 3 likely components from all candidates.
- Steps: include safety notes first, then diagnostic steps for the top component.
- Keep message brief; mention difficulty or story count if provided.
- Do not include markdown.`, message, entriesJSON)
}
