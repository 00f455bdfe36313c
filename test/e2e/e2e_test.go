// test/e2e/e2e_test.go
//
// End-to-end tests: the full pipeline behind the real HTTP handler,
// backed by miniredis. The model provider is stubbed so runs are
// deterministic and free.
package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parts-agent/internal/agents/classifier"
	"parts-agent/internal/agents/orchestrator"
	"parts-agent/internal/agents/retrieval"
	"parts-agent/internal/agents/scopeguard"
	"parts-agent/internal/agents/synthesizer"
	"parts-agent/internal/cache"
	"parts-agent/internal/catalog"
	"parts-agent/internal/common/config"
	"parts-agent/internal/common/database"
	"parts-agent/internal/common/llm"
	"parts-agent/internal/common/logger"
	"parts-agent/internal/common/vectorstore"
	"parts-agent/internal/models"
	"parts-agent/internal/server"
)

// scriptedLLM returns canned replies keyed by a substring of the prompt.
type scriptedLLM struct {
	replies map[string]string
}

func (s *scriptedLLM) Generate(_ context.Context, prompt string, _ llm.Options) (string, error) {
	for key, reply := range s.replies {
		if strings.Contains(prompt, key) {
			return reply, nil
		}
	}
	return `{"intent": "general_info", "entities": {}}`, nil
}

func (s *scriptedLLM) Enabled() bool { return true }

func e2eCatalog() *catalog.Catalog {
	products := []models.CatalogProduct{
		{
			PartNumber:        "PS11752778",
			Name:              "Refrigerator Door Shelf Bin",
			Price:             36.08,
			InStock:           true,
			Brand:             "Whirlpool",
			ApplianceType:     "refrigerator",
			Category:          "Shelves & Bins",
			Description:       "Clear bin for the fresh food door",
			CompatibleModels:  []string{"WRS325SDHZ"},
			InstallationSteps: []string{"Open the door fully.", "Lift the old bin off.", "Press the new bin down."},
		},
		{
			PartNumber:    "PS972325",
			Name:          "Dishwasher Rack Roller",
			Price:         12.99,
			InStock:       true,
			Brand:         "GE",
			ApplianceType: "dishwasher",
			Category:      "Racks",
			Description:   "Lower rack wheel assembly",
		},
	}
	guides := []models.TroubleshootingEntry{
		{
			ApplianceType:  "dishwasher",
			SymptomSlug:    "not-draining",
			SymptomDisplay: "Not draining",
			Summary:        "Standing water usually points at the drain path.",
			RepairPaths: []models.RepairPath{
				{
					Component:          "Drain Pump",
					WhyItCausesSymptom: "Debris jams the impeller.",
					PathRank:           1,
					Diagnostic: models.Diagnostic{
						SafetyNotes: []string{"Unplug the dishwasher first."},
						Steps:       []models.DiagnosticStep{{Detail: "Check the impeller for debris."}},
					},
				},
			},
		},
	}
	return catalog.New(products, guides)
}

func newStack(t *testing.T, provider llm.Provider) (*server.Server, cache.Store) {
	t.Helper()
	log := logger.NewTestLogger(t)

	mr := miniredis.RunT(t)
	db, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := cache.NewRedisStore(db, log)

	orch := orchestrator.New(
		nil,
		scopeguard.New(llm.Disabled{}, log),
		classifier.New(provider, log),
		retrieval.New(e2eCatalog(), vectorstore.Disabled{}, log),
		synthesizer.New(provider, log),
		store,
		log,
	)
	srv := server.New(server.Config{Address: ":0", AllowedOrigin: "http://localhost:3000"}, orch, log)
	srv.Ready()
	return srv, store
}

func chat(t *testing.T, srv *server.Server, message, sessionID string) models.ChatResponse {
	t.Helper()
	body, err := json.Marshal(models.ChatRequest{Message: message, SessionID: sessionID})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestChatFlow_ProductLookupThenCacheHit(t *testing.T) {
	provider := &scriptedLLM{replies: map[string]string{
		"query classification": `{"intent": "general_info", "entities": {"part_number": "PS11752778"}}`,
		"parts chat agent":     `{"message": "The door bin PS11752778 is $36.08 and in stock."}`,
	}}
	srv, _ := newStack(t, provider)

	first := chat(t, srv, "tell me about PS11752778", "session-a")
	assert.False(t, first.Cached)
	assert.Equal(t, "The door bin PS11752778 is $36.08 and in stock.", first.Response)
	require.Len(t, first.Products, 1)
	assert.Equal(t, "PS11752778", first.Products[0].PartNumber)
	// Single result carries its curated installation steps.
	require.Len(t, first.Steps, 3)

	// Identical message from another session is served from cache.
	second := chat(t, srv, "tell me about PS11752778", "session-b")
	assert.True(t, second.Cached)
	assert.Equal(t, first.Response, second.Response)
}

func TestChatFlow_CompatibilityVerdict(t *testing.T) {
	provider := &scriptedLLM{replies: map[string]string{
		"query classification": `{"intent": "compatibility_check", "entities": {"part_number": "PS11752778", "model_number": "WRS325SDHZ"}}`,
	}}
	srv, _ := newStack(t, provider)

	resp := chat(t, srv, "will PS11752778 fit my WRS325SDHZ?", "session-a")

	assert.Equal(t, "Yes. Refrigerator Door Shelf Bin (PS11752778) fits model WRS325SDHZ.", resp.Response)
	assert.Empty(t, resp.Products)
	assert.Empty(t, resp.Steps)
}

func TestChatFlow_OutOfScopeDenied(t *testing.T) {
	srv, store := newStack(t, llm.Disabled{})

	resp := chat(t, srv, "my washer is leaking", "session-a")
	assert.Equal(t, scopeguard.DenialMessage, resp.Response)

	// Both turns landed in the session history.
	turns, err := store.History(context.Background(), "session-a")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, models.RoleUser, turns[0].Role)
	assert.Equal(t, scopeguard.DenialMessage, turns[1].Content)
}

func TestChatFlow_TroubleshootingFallback(t *testing.T) {
	provider := &scriptedLLM{replies: map[string]string{
		"query classification": `{"intent": "troubleshooting", "entities": {"appliance_type": "dishwasher", "symptom": "not draining"}}`,
		"repair assistant":     "not valid json at all",
	}}
	srv, _ := newStack(t, provider)

	resp := chat(t, srv, "my dishwasher won't drain", "session-a")

	assert.Contains(t, resp.Response, "Not draining on your dishwasher:")
	require.NotEmpty(t, resp.Steps)
	assert.True(t, resp.Steps[0].Safety)
}

func TestChatFlow_ConversationHistoryAccumulates(t *testing.T) {
	provider := &scriptedLLM{replies: map[string]string{
		"parts chat agent": `{"message": "Here are some options."}`,
	}}
	srv, store := newStack(t, provider)

	chat(t, srv, "dishwasher rack roller", "session-a")
	chat(t, srv, "refrigerator door bin", "session-a")

	turns, err := store.History(context.Background(), "session-a")
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, "dishwasher rack roller", turns[0].Content)
	assert.Equal(t, "refrigerator door bin", turns[2].Content)
}
