package models

// CatalogProduct is a read-only catalog record keyed by part number. The
// catalog is the authoritative source of truth; enrichment records from the
// semantic index lose on field conflicts.
type CatalogProduct struct {
	PartNumber              string          `json:"part_number"`
	Name                    string          `json:"name"`
	Price                   float64         `json:"price"`
	InStock                 bool            `json:"in_stock"`
	Availability            string          `json:"availability,omitempty"`
	Brand                   string          `json:"brand"`
	ApplianceType           string          `json:"appliance_type"`
	Category                string          `json:"category"`
	Description             string          `json:"description"`
	CompatibleModels        []string        `json:"compatible_models,omitempty"`
	InstallationSteps       []string        `json:"installation_steps,omitempty"`
	InstallationTimeMinutes int             `json:"installation_time_minutes,omitempty"`
	ProductURL              string          `json:"product_url,omitempty"`
	MainImage               string          `json:"main_image,omitempty"`
	Manufacturer            string          `json:"manufacturer,omitempty"`
	ManufacturerPartNumber  string          `json:"manufacturer_part_number,omitempty"`
	Replaces                []string        `json:"replaces,omitempty"`
	Symptoms                []string        `json:"symptoms,omitempty"`
	RatingValue             float64         `json:"rating_value,omitempty"`
	RatingCount             int             `json:"rating_count,omitempty"`
	ModelCrossReference     []ModelCrossRef `json:"model_cross_reference,omitempty"`
}

// ModelCrossRef links a compatible model back to its listing.
type ModelCrossRef struct {
	Brand       string `json:"brand"`
	ModelNumber string `json:"model_number"`
	ModelURL    string `json:"model_url,omitempty"`
	Description string `json:"description,omitempty"`
}

// IsCompatibleWith reports whether modelNumber appears in the product's
// compatible model list.
func (p *CatalogProduct) IsCompatibleWith(modelNumber string) bool {
	for _, m := range p.CompatibleModels {
		if m == modelNumber {
			return true
		}
	}
	return false
}

// ProductCard is the bounded product shape lowered into generative prompts
// and returned to the client.
type ProductCard struct {
	Name                    string          `json:"name"`
	PartNumber              string          `json:"part_number"`
	Price                   float64         `json:"price"`
	InStock                 bool            `json:"in_stock"`
	Availability            string          `json:"availability"`
	ApplianceType           string          `json:"appliance_type"`
	Category                string          `json:"category"`
	CompatibleModels        []string        `json:"compatible_models"`
	InstallationTimeMinutes int             `json:"installation_time_minutes"`
	ProductURL              string          `json:"product_url"`
	MainImage               string          `json:"main_image"`
	Manufacturer            string          `json:"manufacturer"`
	ManufacturerPartNumber  string          `json:"manufacturer_part_number"`
	Replaces                []string        `json:"replaces"`
	Symptoms                []string        `json:"symptoms"`
	RatingValue             float64         `json:"rating_value"`
	RatingCount             int             `json:"rating_count"`
	ModelCrossReference     []ModelCrossRef `json:"model_cross_reference"`
	Description             string          `json:"description"`
}

// CardFromProduct reduces a catalog record to the prompt payload shape.
// List fields are capped so a record with hundreds of compatible models does
// not blow up the prompt budget.
func CardFromProduct(p CatalogProduct) ProductCard {
	manufacturer := p.Manufacturer
	if manufacturer == "" {
		manufacturer = p.Brand
	}
	return ProductCard{
		Name:                    p.Name,
		PartNumber:              p.PartNumber,
		Price:                   p.Price,
		InStock:                 p.InStock,
		Availability:            p.Availability,
		ApplianceType:           p.ApplianceType,
		Category:                p.Category,
		CompatibleModels:        capStrings(p.CompatibleModels, 5),
		InstallationTimeMinutes: p.InstallationTimeMinutes,
		ProductURL:              p.ProductURL,
		MainImage:               p.MainImage,
		Manufacturer:            manufacturer,
		ManufacturerPartNumber:  p.ManufacturerPartNumber,
		Replaces:                p.Replaces,
		Symptoms:                p.Symptoms,
		RatingValue:             p.RatingValue,
		RatingCount:             p.RatingCount,
		ModelCrossReference:     capCrossRefs(p.ModelCrossReference, 5),
		Description:             p.Description,
	}
}

func capStrings(in []string, n int) []string {
	if len(in) <= n {
		return in
	}
	return in[:n]
}

func capCrossRefs(in []ModelCrossRef, n int) []ModelCrossRef {
	if len(in) <= n {
		return in
	}
	return in[:n]
}
