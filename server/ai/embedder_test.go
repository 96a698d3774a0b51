package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	svcerrors "github.com/usesemdex/semdex/server/internal/errors"
)

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// newFakeModel serves an OpenAI-compatible /embeddings endpoint that
// returns a vector of dim elements derived from the input, so identical
// inputs produce identical vectors.
func newFakeModel(t *testing.T, dim int, gotInputs *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Input, 1)
		if gotInputs != nil {
			*gotInputs = append(*gotInputs, req.Input[0])
		}

		vector := make([]float32, dim)
		for i := range vector {
			vector[i] = float32(len(req.Input[0])%(i+2)) / float32(i+2)
		}
		resp := map[string]any{
			"object": "list",
			"model":  req.Model,
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": vector},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestService(t *testing.T, baseURL string, dim, maxTextLen int) *EmbeddingService {
	t.Helper()
	svc, err := NewEmbeddingService(&Config{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		Model:      "text-embedding-3-small",
		Dimension:  dim,
		MaxTextLen: maxTextLen,
		MaxRetries: 1,
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)
	return svc
}

func TestEmbedReturnsFixedDimension(t *testing.T) {
	ts := newFakeModel(t, 8, nil)
	defer ts.Close()
	svc := newTestService(t, ts.URL, 8, 0)

	vector, err := svc.Embed(context.Background(), "Paris is the capital of France")
	require.NoError(t, err)
	require.Len(t, vector, 8)
}

func TestEmbedDeterministicForIdenticalInput(t *testing.T) {
	ts := newFakeModel(t, 8, nil)
	defer ts.Close()
	svc := newTestService(t, ts.URL, 8, 0)

	a, err := svc.Embed(context.Background(), "same text")
	require.NoError(t, err)
	b, err := svc.Embed(context.Background(), "same text")
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestEmbedRejectsEmptyText(t *testing.T) {
	ts := newFakeModel(t, 8, nil)
	defer ts.Close()
	svc := newTestService(t, ts.URL, 8, 0)

	_, err := svc.Embed(context.Background(), "   \n\t ")
	require.Error(t, err)
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeInvalidArgument))
}

func TestEmbedTruncatesLongText(t *testing.T) {
	var inputs []string
	ts := newFakeModel(t, 8, &inputs)
	defer ts.Close()
	svc := newTestService(t, ts.URL, 8, 10)

	_, err := svc.Embed(context.Background(), strings.Repeat("a", 100))
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	require.Len(t, inputs[0], 10)
}

func TestEmbedWrongDimensionIsFailure(t *testing.T) {
	ts := newFakeModel(t, 4, nil)
	defer ts.Close()
	// Service expects 8, fake model returns 4.
	svc := newTestService(t, ts.URL, 8, 0)

	_, err := svc.Embed(context.Background(), "hello")
	require.Error(t, err)
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeEmbeddingFailed))
}

func TestEmbedModelFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()
	svc := newTestService(t, ts.URL, 8, 0)

	_, err := svc.Embed(context.Background(), "hello")
	require.Error(t, err)
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeEmbeddingFailed))
}

func TestEmbedRetriesTransientFailure(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "temporarily unavailable", http.StatusInternalServerError)
			return
		}
		vector := make([]float32, 8)
		resp := map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": vector},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	svc, err := NewEmbeddingService(&Config{
		BaseURL:    ts.URL,
		APIKey:     "test-key",
		Dimension:  8,
		MaxRetries: 2,
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)

	_, err = svc.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}
