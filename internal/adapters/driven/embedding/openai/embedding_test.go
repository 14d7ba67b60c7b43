package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// echoEmbeddings answers with [len(input), index] per input, in reverse
// order to check results are placed by index.
func echoEmbeddings(requests *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type item struct {
			Embedding []float64 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Embedding: []float64{float64(len(req.Input[i])), float64(i)}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}
}

func TestNewEmbeddingService(t *testing.T) {
	_, err := NewEmbeddingService(Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	svc, err := NewEmbeddingService(Config{APIKey: "sk"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, 1536, svc.Dimensions())

	svc, err = NewEmbeddingService(Config{APIKey: "sk", Model: "text-embedding-3-large"})
	require.NoError(t, err)
	assert.Equal(t, 3072, svc.Dimensions())

	svc, err = NewEmbeddingService(Config{APIKey: "sk", Dimensions: 256})
	require.NoError(t, err)
	assert.Equal(t, 256, svc.Dimensions())
}

func TestEmbedBatch_SplitsAndOrders(t *testing.T) {
	var requests atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		echoEmbeddings(&requests)(w, r)
	})

	svc, err := NewEmbeddingService(Config{APIKey: "sk-test", BaseURL: srv.URL + "/", BatchSize: 2})
	require.NoError(t, err)

	vectors, err := svc.EmbedBatch(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	assert.Equal(t, int32(3), requests.Load())
	for i, v := range vectors {
		assert.Equal(t, float32(i+1), v[0], "vector %d out of order", i)
	}

	empty, err := svc.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, empty)

	one, err := svc.Embed(context.Background(), "xyz")
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 0}, one)
}

func TestEmbedBatch_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		permanent bool
	}{
		{"rate limited", http.StatusTooManyRequests, false},
		{"server error", http.StatusServiceUnavailable, false},
		{"bad request", http.StatusBadRequest, true},
		{"unauthorised", http.StatusUnauthorized, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"error":{"message":"nope"}}`, tt.status)
			})
			svc, err := NewEmbeddingService(Config{APIKey: "sk", BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = svc.EmbedBatch(context.Background(), []string{"a"})
			require.Error(t, err)
			assert.Equal(t, tt.permanent, domain.IsPermanent(err))
		})
	}
}

func TestEmbedBatch_MissingEmbeddingIsTransient(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1],"index":0}]}`))
	})
	svc, err := NewEmbeddingService(Config{APIKey: "sk", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = svc.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.False(t, domain.IsPermanent(err))
}

func TestEmbedBatch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	svc, err := NewEmbeddingService(Config{APIKey: "sk", BaseURL: url})
	require.NoError(t, err)

	_, err = svc.Embed(context.Background(), "a")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.False(t, domain.IsPermanent(err))
}

func TestPing(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	good, err := NewEmbeddingService(Config{APIKey: "good", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.NoError(t, good.Ping(context.Background()))

	bad, err := NewEmbeddingService(Config{APIKey: "bad", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Error(t, bad.Ping(context.Background()))
}
