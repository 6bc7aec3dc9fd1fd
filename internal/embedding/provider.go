// Package embedding turns text into fixed-dimension L2-normalized vectors.
//
// The primary provider calls a multilingual embedding model; when the model
// is unreachable the provider degrades once to a deterministic hash-derived
// vector of the same dimension, so the vector index schema stays compatible
// in degraded mode.
package embedding

import (
	"context"
	"errors"
	"log"
	"math"
	"sync"
	"sync/atomic"
)

// Dim is the embedding dimension shared by every chunk, the provider and
// the vector collection.
const Dim = 1536

// ErrEmptyText is returned when text is empty
var ErrEmptyText = errors.New("text cannot be empty")

// Mode identifies which implementation currently serves Embed calls.
type Mode string

const (
	ModeModel    Mode = "model"
	ModeFallback Mode = "fallback"
)

// Provider generates embeddings for text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Mode() Mode
}

// ModelAPI is the transport to the backing embedding model.
type ModelAPI interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ModelProvider serves embeddings from a shared model client and degrades
// to the hash fallback on the first failure. The mode never flips back
// within a session; the single transition is logged.
type ModelProvider struct {
	api      ModelAPI
	fallback *HashProvider
	degraded atomic.Bool
	logOnce  sync.Once
}

// NewModelProvider creates a provider backed by the given model API.
func NewModelProvider(api ModelAPI) *ModelProvider {
	return &ModelProvider{
		api:      api,
		fallback: NewHashProvider(),
	}
}

// Embed returns the embedding for text. Model failures do not propagate:
// the provider switches to fallback mode and keeps serving.
func (p *ModelProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	if p.degraded.Load() {
		return p.fallback.Embed(ctx, text)
	}

	vec, err := p.api.CreateEmbedding(ctx, text)
	if err != nil {
		p.degrade(err)
		return p.fallback.Embed(ctx, text)
	}
	if len(vec) != Dim {
		p.degrade(errors.New("embedding has wrong dimensions"))
		return p.fallback.Embed(ctx, text)
	}

	return normalize(vec), nil
}

// Mode reports the active embedding mode for diagnostics.
func (p *ModelProvider) Mode() Mode {
	if p.degraded.Load() {
		return ModeFallback
	}
	return ModeModel
}

func (p *ModelProvider) degrade(err error) {
	p.degraded.Store(true)
	p.logOnce.Do(func() {
		log.Printf("embedding: model unavailable, switching to hash fallback mode: %v", err)
	})
}

// normalize scales a vector to unit L2 norm so cosine similarity reduces
// to a dot product. A zero vector is returned unchanged.
func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
