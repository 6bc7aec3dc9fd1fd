package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// HashProvider derives a deterministic pseudo-embedding from a content
// hash. It carries no semantic signal, but it is stable across runs and
// keeps the index schema intact when the model cannot be loaded.
type HashProvider struct{}

// NewHashProvider creates a deterministic fallback provider.
func NewHashProvider() *HashProvider {
	return &HashProvider{}
}

// Embed returns an L2-normalized Dim-length vector derived from the
// sha256 of the text. Identical text always yields an identical vector.
func (p *HashProvider) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	vec := make([]float32, Dim)
	seed := sha256.Sum256([]byte(text))

	// Expand the seed by hash chaining, 8 float32 values per block.
	block := seed[:]
	for i := 0; i < Dim; {
		digest := sha256.Sum256(block)
		block = digest[:]
		for j := 0; j+4 <= len(digest) && i < Dim; j += 4 {
			bits := binary.BigEndian.Uint32(digest[j : j+4])
			// Map to [-1, 1).
			vec[i] = float32(int32(bits)) / float32(1<<31)
			i++
		}
	}

	return normalize(vec), nil
}

// Mode always reports fallback.
func (p *HashProvider) Mode() Mode {
	return ModeFallback
}
