// Package catalog loads the static product and troubleshooting reference
// data the pipeline retrieves against. Loaded once before the service
// becomes ready; read-only afterwards.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"parts-agent/internal/models"
)

// Catalog holds the loaded reference data. Products keep their file order so
// keyword-score ties break deterministically.
type Catalog struct {
	Products        []models.CatalogProduct
	Troubleshooting []models.TroubleshootingEntry

	byPart map[string]int
}

// Load reads products.json and troubleshooting.json from dataDir.
func Load(dataDir string) (*Catalog, error) {
	var products []models.CatalogProduct
	if err := readJSON(filepath.Join(dataDir, "products.json"), &products); err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	var troubleshooting []models.TroubleshootingEntry
	if err := readJSON(filepath.Join(dataDir, "troubleshooting.json"), &troubleshooting); err != nil {
		return nil, fmt.Errorf("load troubleshooting: %w", err)
	}

	return New(products, troubleshooting), nil
}

// New builds a catalog from already-decoded records.
func New(products []models.CatalogProduct, troubleshooting []models.TroubleshootingEntry) *Catalog {
	byPart := make(map[string]int, len(products))
	for i, p := range products {
		if _, dup := byPart[p.PartNumber]; dup {
			continue // first occurrence wins
		}
		byPart[p.PartNumber] = i
	}
	return &Catalog{
		Products:        products,
		Troubleshooting: troubleshooting,
		byPart:          byPart,
	}
}

// ByPartNumber returns the authoritative record for a part number, or nil.
func (c *Catalog) ByPartNumber(partNumber string) *models.CatalogProduct {
	idx, ok := c.byPart[partNumber]
	if !ok {
		return nil
	}
	return &c.Products[idx]
}

func readJSON(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
