// Package vectorstore abstracts the optional semantic index. The provider
// must be treated as optionally absent: callers check Enabled before use and
// degrade to keyword scoring when it is off.
package vectorstore

import (
	"context"

	"parts-agent/internal/models"
)

// ProductFilter narrows a product search with equality filters.
type ProductFilter struct {
	ApplianceType string
	Brand         string
	Category      string
}

// TroubleshootFilter narrows a troubleshooting search.
type TroubleshootFilter struct {
	ApplianceType string
}

// ProductHit is a semantic product match. Product carries the index's
// enrichment payload; Score is normalized similarity (higher is better).
type ProductHit struct {
	Product models.CatalogProduct
	Score   float64
}

// TroubleshootHit identifies a matching symptom; callers map the key back to
// the full catalog entry.
type TroubleshootHit struct {
	SymptomKey    string
	ApplianceType string
	Score         float64
}

// Provider is the semantic index surface used by the retrieval engine.
type Provider interface {
	Enabled() bool

	SearchProducts(ctx context.Context, query string, filter ProductFilter, topK int) ([]ProductHit, error)
	SearchTroubleshooting(ctx context.Context, query string, filter TroubleshootFilter, topK int) ([]TroubleshootHit, error)
	GetProductByPartNumber(ctx context.Context, partNumber string) (*models.CatalogProduct, error)

	AddProducts(ctx context.Context, products []models.CatalogProduct) error
	AddTroubleshooting(ctx context.Context, entries []models.TroubleshootingEntry) error
}

// Disabled is the explicit no-index variant selected when the vector
// backend is unreachable or unconfigured.
type Disabled struct{}

func (Disabled) Enabled() bool { return false }

func (Disabled) SearchProducts(ctx context.Context, query string, filter ProductFilter, topK int) ([]ProductHit, error) {
	return nil, nil
}

func (Disabled) SearchTroubleshooting(ctx context.Context, query string, filter TroubleshootFilter, topK int) ([]TroubleshootHit, error) {
	return nil, nil
}

func (Disabled) GetProductByPartNumber(ctx context.Context, partNumber string) (*models.CatalogProduct, error) {
	return nil, nil
}

func (Disabled) AddProducts(ctx context.Context, products []models.CatalogProduct) error {
	return nil
}

func (Disabled) AddTroubleshooting(ctx context.Context, entries []models.TroubleshootingEntry) error {
	return nil
}
