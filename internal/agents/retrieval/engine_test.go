package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parts-agent/internal/catalog"
	"parts-agent/internal/common/logger"
	"parts-agent/internal/common/vectorstore"
	"parts-agent/internal/models"
)

type fakeVectors struct {
	enabled     bool
	productHits []vectorstore.ProductHit
	sympHits    []vectorstore.TroubleshootHit
	byPart      map[string]*models.CatalogProduct
	err         error
	lastQuery   string
	lastFilter  vectorstore.ProductFilter
}

func (f *fakeVectors) Enabled() bool { return f.enabled }

func (f *fakeVectors) SearchProducts(_ context.Context, query string, filter vectorstore.ProductFilter, _ int) ([]vectorstore.ProductHit, error) {
	f.lastQuery = query
	f.lastFilter = filter
	return f.productHits, f.err
}

func (f *fakeVectors) SearchTroubleshooting(context.Context, string, vectorstore.TroubleshootFilter, int) ([]vectorstore.TroubleshootHit, error) {
	return f.sympHits, f.err
}

func (f *fakeVectors) GetProductByPartNumber(_ context.Context, partNumber string) (*models.CatalogProduct, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byPart[partNumber], nil
}

func (f *fakeVectors) AddProducts(context.Context, []models.CatalogProduct) error { return nil }

func (f *fakeVectors) AddTroubleshooting(context.Context, []models.TroubleshootingEntry) error {
	return nil
}

func testProducts() []models.CatalogProduct {
	return []models.CatalogProduct{
		{
			PartNumber:       "PS11752778",
			Name:             "Refrigerator Door Shelf Bin",
			Description:      "Clear door bin for the fresh food section",
			Brand:            "Whirlpool",
			ApplianceType:    "refrigerator",
			Category:         "Shelves & Bins",
			Price:            36.08,
			InStock:          true,
			CompatibleModels: []string{"WRS325SDHZ", "WRF535SWHZ"},
		},
		{
			PartNumber:       "PS11756692",
			Name:             "Dishwasher Upper Rack Adjuster Kit",
			Description:      "Repairs the adjustable upper rack mechanism",
			Brand:            "Whirlpool",
			ApplianceType:    "dishwasher",
			Category:         "Racks",
			Price:            42.99,
			InStock:          true,
			CompatibleModels: []string{"WDT780SAEM1"},
		},
		{
			PartNumber:    "PS972325",
			Name:          "Dishwasher Rack Roller",
			Description:   "Lower rack wheel assembly",
			Brand:         "GE",
			ApplianceType: "dishwasher",
			Category:      "Racks",
			Price:         12.99,
			InStock:       false,
		},
	}
}

func testTroubleshooting() []models.TroubleshootingEntry {
	return []models.TroubleshootingEntry{
		{ApplianceType: "refrigerator", SymptomSlug: "ice-maker-not-working", SymptomDisplay: "Ice maker not working"},
		{ApplianceType: "dishwasher", SymptomSlug: "not-draining", SymptomDisplay: "Not draining"},
		{ApplianceType: "dishwasher", SymptomSlug: "not-cleaning", SymptomDisplay: "Not cleaning dishes properly"},
		{ApplianceType: "refrigerator", SymptomSlug: "too-warm", SymptomDisplay: "Fridge too warm"},
	}
}

func newEngine(t *testing.T, vectors vectorstore.Provider) *Engine {
	t.Helper()
	cat := catalog.New(testProducts(), testTroubleshooting())
	return New(cat, vectors, logger.NewTestLogger(t))
}

func TestByPartNumber_CatalogFallback(t *testing.T) {
	engine := newEngine(t, vectorstore.Disabled{})

	product := engine.ByPartNumber(context.Background(), "PS11752778")
	require.NotNil(t, product)
	assert.Equal(t, "Refrigerator Door Shelf Bin", product.Name)

	assert.Nil(t, engine.ByPartNumber(context.Background(), "PS0000000"))
}

func TestByPartNumber_EnrichesVectorRecord(t *testing.T) {
	vectors := &fakeVectors{
		enabled: true,
		byPart: map[string]*models.CatalogProduct{
			"PS11752778": {
				PartNumber:  "PS11752778",
				Name:        "stale indexed name",
				ProductURL:  "https://example.com/PS11752778",
				RatingValue: 4.6,
				RatingCount: 312,
			},
		},
	}
	engine := newEngine(t, vectors)

	product := engine.ByPartNumber(context.Background(), "PS11752778")
	require.NotNil(t, product)
	// Catalog fields are authoritative.
	assert.Equal(t, "Refrigerator Door Shelf Bin", product.Name)
	assert.Equal(t, 36.08, product.Price)
	// Index-only fields survive the merge.
	assert.Equal(t, "https://example.com/PS11752778", product.ProductURL)
	assert.Equal(t, 4.6, product.RatingValue)
	assert.Equal(t, 312, product.RatingCount)
}

func TestByPartNumber_VectorErrorFallsBackToCatalog(t *testing.T) {
	vectors := &fakeVectors{enabled: true, err: errors.New("index down")}
	engine := newEngine(t, vectors)

	product := engine.ByPartNumber(context.Background(), "PS11752778")
	require.NotNil(t, product)
	assert.Equal(t, "Refrigerator Door Shelf Bin", product.Name)
}

func TestSearchProducts_ExactTierWins(t *testing.T) {
	engine := newEngine(t, vectorstore.Disabled{})

	products, tier := engine.SearchProducts(context.Background(), "anything", models.Entities{PartNumber: "PS972325"})
	assert.Equal(t, TierExact, tier)
	require.Len(t, products, 1)
	assert.Equal(t, "PS972325", products[0].PartNumber)
}

func TestSearchProducts_SemanticTierFiltersByModel(t *testing.T) {
	vectors := &fakeVectors{
		enabled: true,
		productHits: []vectorstore.ProductHit{
			{Product: models.CatalogProduct{PartNumber: "PS11756692"}, Score: 0.91},
			{Product: models.CatalogProduct{PartNumber: "PS972325"}, Score: 0.78},
		},
	}
	engine := newEngine(t, vectors)

	products, tier := engine.SearchProducts(context.Background(), "upper rack keeps falling", models.Entities{
		ApplianceType: "dishwasher",
		ModelNumber:   "WDT780SAEM1",
	})
	assert.Equal(t, TierSemantic, tier)
	require.Len(t, products, 1)
	assert.Equal(t, "PS11756692", products[0].PartNumber)
	assert.Equal(t, "dishwasher", vectors.lastFilter.ApplianceType)
	assert.Contains(t, vectors.lastQuery, "dishwasher")
}

func TestSearchProducts_SemanticErrorFallsBackToKeyword(t *testing.T) {
	vectors := &fakeVectors{enabled: true, err: errors.New("index down")}
	engine := newEngine(t, vectors)

	products, tier := engine.SearchProducts(context.Background(), "dishwasher rack", models.Entities{})
	assert.Equal(t, TierKeyword, tier)
	assert.NotEmpty(t, products)
}

func TestSearchProducts_KeywordScoringOrdersByRelevance(t *testing.T) {
	engine := newEngine(t, vectorstore.Disabled{})

	products, tier := engine.SearchProducts(context.Background(), "dishwasher rack", models.Entities{
		ApplianceType: "dishwasher",
		Brand:         "Whirlpool",
	})
	assert.Equal(t, TierKeyword, tier)
	require.NotEmpty(t, products)
	// Appliance, brand, and both query tokens put the adjuster kit first;
	// the GE roller matches appliance plus one token; the fridge bin only
	// matches the brand.
	require.Len(t, products, 3)
	assert.Equal(t, "PS11756692", products[0].PartNumber)
	assert.Equal(t, "PS972325", products[1].PartNumber)
	assert.Equal(t, "PS11752778", products[2].PartNumber)
}

func TestSearchProducts_KeywordScoringIsDeterministic(t *testing.T) {
	engine := newEngine(t, vectorstore.Disabled{})
	entities := models.Entities{ApplianceType: "dishwasher"}

	first, _ := engine.SearchProducts(context.Background(), "rack wheel", entities)
	for i := 0; i < 5; i++ {
		again, _ := engine.SearchProducts(context.Background(), "rack wheel", entities)
		assert.Equal(t, first, again)
	}
}

func TestSearchProducts_KeywordScoringIsMonotonic(t *testing.T) {
	engine := newEngine(t, vectorstore.Disabled{})

	rankOf := func(message, partNumber string) int {
		products, tier := engine.SearchProducts(context.Background(), message, models.Entities{})
		require.Equal(t, TierKeyword, tier)
		for i, p := range products {
			if p.PartNumber == partNumber {
				return i
			}
		}
		return len(products)
	}

	// Each query adds one more token matching the rack roller's name or
	// description; its rank must never get worse.
	queries := []string{
		"dishwasher",
		"dishwasher rack",
		"dishwasher rack roller",
		"dishwasher rack roller wheel",
	}
	prev := rankOf(queries[0], "PS972325")
	for _, q := range queries[1:] {
		rank := rankOf(q, "PS972325")
		assert.LessOrEqual(t, rank, prev, "query %q demoted the roller", q)
		prev = rank
	}

	// The extra "roller" token breaks the tie with the adjuster kit.
	assert.Equal(t, 1, rankOf("dishwasher rack", "PS972325"))
	assert.Equal(t, 0, rankOf("dishwasher rack roller", "PS972325"))
}

func TestSearchProducts_NoSignalReturnsEmpty(t *testing.T) {
	engine := newEngine(t, vectorstore.Disabled{})

	products, _ := engine.SearchProducts(context.Background(), "zzzz qqqq", models.Entities{})
	assert.Empty(t, products)
}

func TestSearchTroubleshooting_MapsVectorHitsToRecords(t *testing.T) {
	vectors := &fakeVectors{
		enabled: true,
		sympHits: []vectorstore.TroubleshootHit{
			{SymptomKey: "not-draining", Score: 0.9},
			{SymptomKey: "unknown-symptom", Score: 0.8},
			{SymptomKey: "not-cleaning", Score: 0.7},
			{SymptomKey: "not-draining", Score: 0.6},
		},
	}
	engine := newEngine(t, vectors)

	entries := engine.SearchTroubleshooting(context.Background(), "water left in the bottom", models.Entities{})
	require.Len(t, entries, 2)
	assert.Equal(t, "not-draining", entries[0].SymptomSlug)
	assert.Equal(t, "not-cleaning", entries[1].SymptomSlug)
}

func TestSearchTroubleshooting_FallbackFiltersBySymptom(t *testing.T) {
	engine := newEngine(t, vectorstore.Disabled{})

	entries := engine.SearchTroubleshooting(context.Background(), "it won't drain", models.Entities{
		ApplianceType: "dishwasher",
		Symptom:       "not draining",
	})
	require.Len(t, entries, 1)
	assert.Equal(t, "not-draining", entries[0].SymptomSlug)
}

func TestSearchTroubleshooting_WidensToAppliancePool(t *testing.T) {
	engine := newEngine(t, vectorstore.Disabled{})

	entries := engine.SearchTroubleshooting(context.Background(), "acting strange", models.Entities{
		ApplianceType: "refrigerator",
	})
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "refrigerator", e.ApplianceType)
	}
}

func TestSearchTroubleshooting_CapsAtThree(t *testing.T) {
	engine := newEngine(t, vectorstore.Disabled{})

	entries := engine.SearchTroubleshooting(context.Background(), "help", models.Entities{})
	assert.Len(t, entries, maxTroubleshooting)
}
