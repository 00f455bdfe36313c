package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedBatch(t *testing.T) {
	var gotTexts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embed", r.URL.Path)
		var body struct {
			Texts []string `json:"texts"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotTexts = body.Texts

		vectors := make([][]float32, len(body.Texts))
		for i := range vectors {
			vectors[i] = []float32{0.1, 0.2, 0.3}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": vectors})
	}))
	defer srv.Close()

	embedder := NewHTTPEmbedder(srv.URL, time.Second)
	vectors, err := embedder.EmbedBatch(context.Background(), []string{"door bin", "rack roller"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vectors[0])
	assert.Equal(t, []string{"door bin", "rack roller"}, gotTexts)
}

func TestEmbed_SingleText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": [][]float32{{1, 2}}})
	}))
	defer srv.Close()

	embedder := NewHTTPEmbedder(srv.URL, time.Second)
	vector, err := embedder.Embed(context.Background(), "ice maker")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vector)
}

func TestEmbedBatch_RetriesOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": [][]float32{{1}}})
	}))
	defer srv.Close()

	embedder := NewHTTPEmbedder(srv.URL, time.Second)
	vectors, err := embedder.EmbedBatch(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	assert.Equal(t, 3, attempts)
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": [][]float32{{1}}})
	}))
	defer srv.Close()

	embedder := NewHTTPEmbedder(srv.URL, time.Second)
	_, err := embedder.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count mismatch")
}

func TestEmbedBatch_GivesUpAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	embedder := NewHTTPEmbedder(srv.URL, time.Second)
	_, err := embedder.EmbedBatch(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}
