package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"parts-agent/internal/common/errors"
	"parts-agent/internal/common/logger"
	"parts-agent/internal/models"
)

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the Qdrant server address (e.g., "https://example.qdrant.io:6334").
	URL string

	// APIKey is optional API key for authentication.
	APIKey string

	ProductsCollection        string
	TroubleshootingCollection string

	// VectorSize must match the embeddings service output dimension.
	VectorSize int
}

// Qdrant implements Provider against a Qdrant server.
type Qdrant struct {
	client   *qdrant.Client
	embedder Embedder
	config   Config
	logger   logger.Logger
}

// New creates a Qdrant-backed provider and ensures both collections exist.
func New(ctx context.Context, cfg Config, embedder Embedder, log logger.Logger) (*Qdrant, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}

	parsedURL := cfg.URL
	if !strings.HasPrefix(parsedURL, "http://") && !strings.HasPrefix(parsedURL, "https://") {
		parsedURL = "https://" + parsedURL
	}

	u, err := url.Parse(parsedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	host := u.Hostname()
	port := 6334 // default gRPC port
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid port: %w", err)
		}
		port = p
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	q := &Qdrant{
		client:   client,
		embedder: embedder,
		config:   cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "vectorstore"}),
	}

	for _, name := range []string{cfg.ProductsCollection, cfg.TroubleshootingCollection} {
		if err := q.ensureCollection(ctx, name); err != nil {
			return nil, err
		}
	}

	return q, nil
}

func (q *Qdrant) Enabled() bool { return true }

// Close releases the underlying gRPC connection.
func (q *Qdrant) Close() error {
	return q.client.Close()
}

func (q *Qdrant) ensureCollection(ctx context.Context, name string) error {
	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.config.VectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

// AddProducts upserts catalog products into the index. A collection that
// already holds points is left alone so restarts do not re-embed the
// catalog.
func (q *Qdrant) AddProducts(ctx context.Context, products []models.CatalogProduct) error {
	count, err := q.client.Count(ctx, &qdrant.CountPoints{CollectionName: q.config.ProductsCollection})
	if err == nil && count > 0 {
		return nil
	}

	seen := make(map[string]bool, len(products))
	points := make([]*qdrant.PointStruct, 0, len(products))
	texts := make([]string, 0, len(products))
	kept := make([]models.CatalogProduct, 0, len(products))

	for _, p := range products {
		if p.PartNumber == "" || seen[p.PartNumber] {
			continue
		}
		seen[p.PartNumber] = true
		kept = append(kept, p)
		texts = append(texts, fmt.Sprintf("%s %s %s %s %s", p.Name, p.Description, p.Brand, p.Category, p.ApplianceType))
	}

	vectors, err := q.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed products: %w", err)
	}

	for i, p := range kept {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID("product", p.PartNumber)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(productPayload(p)),
		})
	}

	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.config.ProductsCollection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert products: %w", err)
	}

	q.logger.Info("seeded product collection", map[string]interface{}{"points": len(points)})
	return nil
}

// AddTroubleshooting upserts troubleshooting entries keyed by symptom.
func (q *Qdrant) AddTroubleshooting(ctx context.Context, entries []models.TroubleshootingEntry) error {
	count, err := q.client.Count(ctx, &qdrant.CountPoints{CollectionName: q.config.TroubleshootingCollection})
	if err == nil && count > 0 {
		return nil
	}

	texts := make([]string, 0, len(entries))
	for _, t := range entries {
		texts = append(texts, fmt.Sprintf("%s %s %s", t.ApplianceType, t.SymptomKey(), strings.Join(t.CommonCauses, " ")))
	}

	vectors, err := q.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed troubleshooting: %w", err)
	}

	points := make([]*qdrant.PointStruct, 0, len(entries))
	for i, t := range entries {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID("symptom", t.SymptomKey())),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]interface{}{
				"appliance_type": t.ApplianceType,
				"symptom":        t.SymptomKey(),
				"common_causes":  strings.Join(t.CommonCauses, "; "),
			}),
		})
	}

	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.config.TroubleshootingCollection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert troubleshooting: %w", err)
	}

	q.logger.Info("seeded troubleshooting collection", map[string]interface{}{"points": len(points)})
	return nil
}

// SearchProducts embeds the query and runs a payload-filtered similarity
// search. Scores are cosine similarity, higher is better.
func (q *Qdrant) SearchProducts(ctx context.Context, query string, filter ProductFilter, topK int) ([]ProductHit, error) {
	vector, err := q.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var conditions []*qdrant.Condition
	if filter.ApplianceType != "" {
		conditions = append(conditions, matchCondition("appliance_type", filter.ApplianceType))
	}
	if filter.Brand != "" {
		conditions = append(conditions, matchCondition("brand", filter.Brand))
	}
	if filter.Category != "" {
		conditions = append(conditions, matchCondition("category", filter.Category))
	}

	var qdrantFilter *qdrant.Filter
	if len(conditions) > 0 {
		qdrantFilter = &qdrant.Filter{Must: conditions}
	}

	limit := uint64(topK)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.config.ProductsCollection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		Filter:         qdrantFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, errors.NewRetrievalUnavailableError("product search: " + err.Error())
	}

	hits := make([]ProductHit, 0, len(points))
	for _, point := range points {
		hits = append(hits, ProductHit{
			Product: productFromPayload(point.Payload),
			Score:   float64(point.Score),
		})
	}
	return hits, nil
}

// SearchTroubleshooting returns symptom keys ranked by similarity.
func (q *Qdrant) SearchTroubleshooting(ctx context.Context, query string, filter TroubleshootFilter, topK int) ([]TroubleshootHit, error) {
	vector, err := q.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var qdrantFilter *qdrant.Filter
	if filter.ApplianceType != "" {
		qdrantFilter = &qdrant.Filter{Must: []*qdrant.Condition{matchCondition("appliance_type", filter.ApplianceType)}}
	}

	limit := uint64(topK)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.config.TroubleshootingCollection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		Filter:         qdrantFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, errors.NewRetrievalUnavailableError("troubleshooting search: " + err.Error())
	}

	hits := make([]TroubleshootHit, 0, len(points))
	for _, point := range points {
		hits = append(hits, TroubleshootHit{
			SymptomKey:    payloadString(point.Payload, "symptom"),
			ApplianceType: payloadString(point.Payload, "appliance_type"),
			Score:         float64(point.Score),
		})
	}
	return hits, nil
}

// GetProductByPartNumber looks a product up in the index metadata store.
// Returns nil without error when absent.
func (q *Qdrant) GetProductByPartNumber(ctx context.Context, partNumber string) (*models.CatalogProduct, error) {
	limit := uint32(1)
	points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.config.ProductsCollection,
		Filter:         &qdrant.Filter{Must: []*qdrant.Condition{matchCondition("part_number", partNumber)}},
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, errors.NewRetrievalUnavailableError("part lookup: " + err.Error())
	}
	if len(points) == 0 {
		return nil, nil
	}
	product := productFromPayload(points[0].Payload)
	return &product, nil
}

// pointID derives a stable UUID from the record key so upserts are
// idempotent.
func pointID(kind, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(kind+":"+key)).String()
}

func matchCondition(key, keyword string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: keyword}},
			},
		},
	}
}

// productPayload flattens a product to primitive payload values; list
// fields are comma-joined the way the index stores them.
func productPayload(p models.CatalogProduct) map[string]interface{} {
	return map[string]interface{}{
		"part_number":               p.PartNumber,
		"name":                      p.Name,
		"price":                     p.Price,
		"in_stock":                  p.InStock,
		"availability":              p.Availability,
		"appliance_type":            p.ApplianceType,
		"brand":                     p.Brand,
		"category":                  p.Category,
		"compatible_models":         strings.Join(p.CompatibleModels, ","),
		"description":               p.Description,
		"product_url":               p.ProductURL,
		"main_image":                p.MainImage,
		"manufacturer":              p.Manufacturer,
		"manufacturer_part_number":  p.ManufacturerPartNumber,
		"installation_time_minutes": int64(p.InstallationTimeMinutes),
		"rating_value":              p.RatingValue,
		"rating_count":              int64(p.RatingCount),
		"replaces":                  strings.Join(p.Replaces, ","),
		"symptoms":                  strings.Join(p.Symptoms, ","),
	}
}

func productFromPayload(payload map[string]*qdrant.Value) models.CatalogProduct {
	return models.CatalogProduct{
		PartNumber:              payloadString(payload, "part_number"),
		Name:                    payloadString(payload, "name"),
		Price:                   payloadFloat(payload, "price"),
		InStock:                 payloadBool(payload, "in_stock"),
		Availability:            payloadString(payload, "availability"),
		ApplianceType:           payloadString(payload, "appliance_type"),
		Brand:                   payloadString(payload, "brand"),
		Category:                payloadString(payload, "category"),
		CompatibleModels:        splitList(payloadString(payload, "compatible_models")),
		Description:             payloadString(payload, "description"),
		ProductURL:              payloadString(payload, "product_url"),
		MainImage:               payloadString(payload, "main_image"),
		Manufacturer:            payloadString(payload, "manufacturer"),
		ManufacturerPartNumber:  payloadString(payload, "manufacturer_part_number"),
		InstallationTimeMinutes: int(payloadInt(payload, "installation_time_minutes")),
		RatingValue:             payloadFloat(payload, "rating_value"),
		RatingCount:             int(payloadInt(payload, "rating_count")),
		Replaces:                splitList(payloadString(payload, "replaces")),
		Symptoms:                splitList(payloadString(payload, "symptoms")),
	}
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func payloadFloat(payload map[string]*qdrant.Value, key string) float64 {
	if v, ok := payload[key]; ok {
		if d := v.GetDoubleValue(); d != 0 {
			return d
		}
		return float64(v.GetIntegerValue())
	}
	return 0
}

func payloadInt(payload map[string]*qdrant.Value, key string) int64 {
	if v, ok := payload[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}

func payloadBool(payload map[string]*qdrant.Value, key string) bool {
	if v, ok := payload[key]; ok {
		return v.GetBoolValue()
	}
	return false
}

func splitList(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}

// Compile-time check that Qdrant implements Provider.
var _ Provider = (*Qdrant)(nil)
