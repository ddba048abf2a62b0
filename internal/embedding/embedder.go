// Package embedding generates and stores vector embeddings for evidence facets.
package embedding

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/config"
	"interview-insights-go/internal/logger"
)

// Embedder turns texts into vectors. The result is index-aligned with texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// HTTPEmbedder calls an OpenAI-compatible /embeddings endpoint.
type HTTPEmbedder struct {
	url      string
	apiKey   string
	model    string
	http     *http.Client
	maxRetry time.Duration
	log      *logger.Logger
}

func NewHTTPEmbedder(cfg config.Embedding, log *logger.Logger) *HTTPEmbedder {
	return &HTTPEmbedder{
		url:      cfg.URL,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		http:     &http.Client{Timeout: cfg.RequestTimeout()},
		maxRetry: 30 * time.Second,
		log:      log.Component("embedding-client"),
	}
}

func (e *HTTPEmbedder) Model() string { return e.model }

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	const op = "embedding.embed"
	if e.url == "" {
		return nil, apperr.Errorf(apperr.KindInvalidArgument, op, "embedding url not configured")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	data, _ := json.Marshal(map[string]any{"model": e.model, "input": texts})

	var out [][]float32
	kind := apperr.KindTransientUpstream
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if e.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+e.apiKey)
		}

		resp, err := e.http.Do(req)
		if err != nil {
			e.log.WithError(err).Warn("embedding request failed")
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			kind = apperr.KindValidation
			return backoff.Permanent(fmt.Errorf("embedding client error: status=%d", resp.StatusCode))
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("embedding server error: status=%d", resp.StatusCode)
		}

		var parsed embeddingResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("decode embedding response: %w", err)
		}
		vecs := make([][]float32, len(texts))
		for _, d := range parsed.Data {
			if d.Index < 0 || d.Index >= len(texts) {
				return backoff.Permanent(fmt.Errorf("embedding index %d out of range", d.Index))
			}
			vecs[d.Index] = d.Embedding
		}
		for i, v := range vecs {
			if len(v) == 0 {
				return fmt.Errorf("embedding missing for input %d", i)
			}
		}
		out = vecs
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = e.maxRetry
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, apperr.E(kind, op, err)
	}
	return out, nil
}

// MockEmbedder derives deterministic unit vectors from a hash of the text.
// Identical texts always produce identical vectors. Enabled by
// USE_MOCK_EMBEDDING=true.
type MockEmbedder struct {
	Dimension int
}

func (m MockEmbedder) Model() string { return "mock-embedding" }

func (m MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	dim := m.Dimension
	if dim <= 0 {
		dim = 8
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, dim)
		var norm float64
		seed := sha256.Sum256([]byte(text))
		for j := range vec {
			block := sha256.Sum256(append(seed[:], byte(j), byte(j>>8)))
			v := float64(int32(binary.BigEndian.Uint32(block[:4]))) / math.MaxInt32
			vec[j] = float32(v)
			norm += v * v
		}
		norm = math.Sqrt(norm)
		if norm > 0 {
			for j := range vec {
				vec[j] = float32(float64(vec[j]) / norm)
			}
		}
		out[i] = vec
	}
	return out, nil
}
