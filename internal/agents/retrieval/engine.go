// Package retrieval finds catalog products and troubleshooting guides for
// a message. Product search is tiered: exact part-number lookup, then
// semantic search over the vector index, then deterministic keyword
// scoring over the in-memory catalog.
package retrieval

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"parts-agent/internal/catalog"
	"parts-agent/internal/common/logger"
	"parts-agent/internal/common/metrics"
	"parts-agent/internal/common/vectorstore"
	"parts-agent/internal/models"
)

const (
	maxProducts        = 5
	maxTroubleshooting = 3
)

// Tier labels for the retrieval path that produced a result set.
const (
	TierExact    = "exact"
	TierSemantic = "semantic"
	TierKeyword  = "keyword"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// Engine answers product and troubleshooting retrieval against the static
// catalog and, when available, the vector index.
type Engine struct {
	catalog *catalog.Catalog
	vectors vectorstore.Provider
	logger  logger.Logger
}

func New(cat *catalog.Catalog, vectors vectorstore.Provider, log logger.Logger) *Engine {
	return &Engine{
		catalog: cat,
		vectors: vectors,
		logger:  log.WithFields(map[string]interface{}{"component": "retrieval"}),
	}
}

// ByPartNumber resolves an exact part number. The vector index metadata is
// consulted first, enriched from the catalog; the catalog alone serves the
// lookup when the index is down or missing the part. Returns nil when the
// part is unknown everywhere.
func (e *Engine) ByPartNumber(ctx context.Context, partNumber string) *models.CatalogProduct {
	if e.vectors.Enabled() {
		retrieved, err := e.vectors.GetProductByPartNumber(ctx, partNumber)
		if err != nil {
			e.logger.Warn("vector part lookup failed, using catalog", map[string]interface{}{
				"part_number": partNumber,
				"error":       err.Error(),
			})
		} else if retrieved != nil {
			enriched := e.enrich(*retrieved)
			return &enriched
		}
	}
	return e.catalog.ByPartNumber(partNumber)
}

// SearchProducts runs the tier chain and returns up to five products plus
// the tier that produced them.
func (e *Engine) SearchProducts(ctx context.Context, message string, entities models.Entities) ([]models.CatalogProduct, string) {
	if entities.PartNumber != "" {
		if product := e.ByPartNumber(ctx, entities.PartNumber); product != nil {
			metrics.RetrievalTierTotal.WithLabelValues(TierExact).Inc()
			return []models.CatalogProduct{*product}, TierExact
		}
	}

	if e.vectors.Enabled() {
		candidates, err := e.semanticSearch(ctx, message, entities)
		if err != nil {
			e.logger.Warn("semantic search failed, falling back to keyword scoring", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			metrics.RetrievalTierTotal.WithLabelValues(TierSemantic).Inc()
			return candidates, TierSemantic
		}
	}

	metrics.RetrievalTierTotal.WithLabelValues(TierKeyword).Inc()
	return e.scoreProducts(message, entities), TierKeyword
}

func (e *Engine) semanticSearch(ctx context.Context, message string, entities models.Entities) ([]models.CatalogProduct, error) {
	query := message
	for _, extra := range []string{entities.ApplianceType, entities.Brand, entities.PartType} {
		if extra != "" {
			query += " " + extra
		}
	}

	hits, err := e.vectors.SearchProducts(ctx, query, vectorstore.ProductFilter{
		ApplianceType: entities.ApplianceType,
		Brand:         entities.Brand,
		Category:      entities.PartType,
	}, maxProducts)
	if err != nil {
		return nil, err
	}

	products := make([]models.CatalogProduct, 0, len(hits))
	for _, hit := range hits {
		product := e.enrich(hit.Product)
		if entities.ModelNumber != "" && !product.IsCompatibleWith(entities.ModelNumber) {
			continue
		}
		products = append(products, product)
	}
	return products, nil
}

// scoreProducts is the deterministic fallback: exact weighted matches on
// extracted entities plus one point per query token found in the name or
// description. Ties keep catalog order, so results are stable across runs.
func (e *Engine) scoreProducts(message string, entities models.Entities) []models.CatalogProduct {
	terms := tokenize(message)

	type scored struct {
		score   int
		product models.CatalogProduct
	}
	var candidates []scored

	for _, p := range e.catalog.Products {
		score := 0
		if entities.ApplianceType != "" && p.ApplianceType == entities.ApplianceType {
			score += 3
		}
		if entities.Brand != "" && strings.EqualFold(p.Brand, entities.Brand) {
			score += 2
		}
		if entities.PartType != "" && strings.Contains(strings.ToLower(p.Category), strings.ToLower(entities.PartType)) {
			score += 2
		}
		if entities.ModelNumber != "" && p.IsCompatibleWith(entities.ModelNumber) {
			score += 3
		}
		name := strings.ToLower(p.Name)
		description := strings.ToLower(p.Description)
		for _, term := range terms {
			if strings.Contains(name, term) || strings.Contains(description, term) {
				score++
			}
		}
		if score > 0 {
			candidates = append(candidates, scored{score: score, product: p})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > maxProducts {
		candidates = candidates[:maxProducts]
	}
	products := make([]models.CatalogProduct, 0, len(candidates))
	for _, c := range candidates {
		products = append(products, c.product)
	}
	return products
}

// enrich overlays a vector-index record with the authoritative catalog
// record. Catalog fields win; fields only the index carries are kept.
func (e *Engine) enrich(retrieved models.CatalogProduct) models.CatalogProduct {
	original := e.catalog.ByPartNumber(retrieved.PartNumber)
	if original == nil {
		return retrieved
	}

	merged := *original
	if merged.Description == "" {
		merged.Description = retrieved.Description
	}
	if merged.ProductURL == "" {
		merged.ProductURL = retrieved.ProductURL
	}
	if merged.MainImage == "" {
		merged.MainImage = retrieved.MainImage
	}
	if merged.Manufacturer == "" {
		merged.Manufacturer = retrieved.Manufacturer
	}
	if merged.ManufacturerPartNumber == "" {
		merged.ManufacturerPartNumber = retrieved.ManufacturerPartNumber
	}
	if len(merged.CompatibleModels) == 0 {
		merged.CompatibleModels = retrieved.CompatibleModels
	}
	if len(merged.Replaces) == 0 {
		merged.Replaces = retrieved.Replaces
	}
	if len(merged.Symptoms) == 0 {
		merged.Symptoms = retrieved.Symptoms
	}
	if merged.RatingValue == 0 {
		merged.RatingValue = retrieved.RatingValue
	}
	if merged.RatingCount == 0 {
		merged.RatingCount = retrieved.RatingCount
	}
	if merged.InstallationTimeMinutes == 0 {
		merged.InstallationTimeMinutes = retrieved.InstallationTimeMinutes
	}
	return merged
}

// SearchTroubleshooting returns up to three distinct guides. Vector hits
// are mapped back to full records by symptom key; when the index yields
// nothing, entries are filtered by appliance and symptom match, widening
// to the whole appliance pool as a last resort.
func (e *Engine) SearchTroubleshooting(ctx context.Context, message string, entities models.Entities) []models.TroubleshootingEntry {
	var ranked []models.TroubleshootingEntry

	if e.vectors.Enabled() {
		hits, err := e.vectors.SearchTroubleshooting(ctx, message, vectorstore.TroubleshootFilter{
			ApplianceType: entities.ApplianceType,
		}, 5)
		if err != nil {
			e.logger.Warn("troubleshooting vector search failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		byKey := make(map[string]models.TroubleshootingEntry, len(e.catalog.Troubleshooting))
		for _, t := range e.catalog.Troubleshooting {
			byKey[t.SymptomKey()] = t
		}
		for _, hit := range hits {
			if entry, ok := byKey[hit.SymptomKey]; ok {
				ranked = append(ranked, entry)
			}
		}
	}

	if len(ranked) == 0 {
		for _, t := range e.catalog.Troubleshooting {
			if entities.ApplianceType != "" && t.ApplianceType != entities.ApplianceType {
				continue
			}
			if entities.Symptom != "" {
				if entities.Symptom == t.SymptomSlug || entities.Symptom == t.SymptomDisplay {
					ranked = append(ranked, t)
					continue
				}
				if strings.Contains(strings.ToLower(t.SymptomDisplay), strings.ToLower(entities.Symptom)) {
					ranked = append(ranked, t)
				}
			}
		}
		if len(ranked) == 0 {
			for _, t := range e.catalog.Troubleshooting {
				if entities.ApplianceType == "" || t.ApplianceType == entities.ApplianceType {
					ranked = append(ranked, t)
				}
			}
		}
	}

	seen := make(map[string]bool, len(ranked))
	unique := make([]models.TroubleshootingEntry, 0, maxTroubleshooting)
	for _, t := range ranked {
		key := t.SymptomKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, t)
		if len(unique) == maxTroubleshooting {
			break
		}
	}
	return unique
}

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}
