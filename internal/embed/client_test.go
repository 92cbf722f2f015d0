package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"recap/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

func TestClient_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, "Hello world", req.Input)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": [{"embedding": [0.1, -0.2, 0.3], "index": 0}]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", "text-embedding-3-small", nil)

	vector, err := c.Embed(context.Background(), "Hello world")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, -0.2, 0.3}, vector)
}

func TestClient_Embed_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "model overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", "text-embedding-3-small", nil)

	_, err := c.Embed(context.Background(), "Hello world")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status=503")
}

func TestClient_Embed_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "invalid input", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", "text-embedding-3-small", nil)

	_, err := c.Embed(context.Background(), "Hello world")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")
}

func TestClient_Embed_EmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", "text-embedding-3-small", nil)

	_, err := c.Embed(context.Background(), "Hello world")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no data")
}
