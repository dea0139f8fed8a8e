package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/herbid/internal/config"
)

func newTestClient(url string) *Client {
	return NewClient(config.EmbeddingConfig{
		APIKey:  "test-key",
		BaseURL: url,
		Model:   "text-embedding-ada-002",
		Timeout: 2 * time.Second,
	})
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-ada-002", req["model"])

		w.Write([]byte(`{"data":[{"embedding":[0.1, 0.2, 0.3]}]}`))
	}))
	defer srv.Close()

	vec, err := newTestClient(srv.URL).Embed(context.Background(), "Plant image: abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbedNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Embed(context.Background(), "input")
	assert.Error(t, err)
}

func TestEmbedEmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Embed(context.Background(), "input")
	assert.Error(t, err)
}

func TestStrategyTruncatesPrompt(t *testing.T) {
	var gotInput string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotInput = req["input"].(string)
		w.Write([]byte(`{"data":[{"embedding":[0.5]}]}`))
	}))
	defer srv.Close()

	s := NewStrategy(newTestClient(srv.URL))
	assert.Equal(t, "remote-embedding", s.Name())

	vec, err := s.Extract(context.Background(), make([]byte, 4096))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, vec)

	// "Plant image: " prefix plus at most 100 base64 characters.
	assert.LessOrEqual(t, len(gotInput), len("Plant image: ")+100)
}
