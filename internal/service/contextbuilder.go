package service

import (
	"fmt"
	"strings"
)

// Context assembly bounds, in runes of assembled text.
const (
	MaxContextLength = 8000
	MinContextLength = 100
	MaxChunkChars    = 1500
)

// BuiltContext is the grounding block handed to the answer generator.
type BuiltContext struct {
	Text             string
	Sources          []string
	DocumentsUsed    int
	ChunksUsed       int
	AverageRelevance float32
	// ContentLength counts chunk content runes only, headers excluded.
	ContentLength int
}

// Sufficient reports whether enough grounding material was assembled for
// the answer to be trusted. Callers treat an insufficient context as a
// low-confidence condition even when some chunks were found.
func (b BuiltContext) Sufficient() bool {
	return b.ContentLength >= MinContextLength
}

// ContextBuilderConfig bounds the assembled context.
type ContextBuilderConfig struct {
	MaxContextLength int
	MaxChunkChars    int
}

func DefaultContextBuilderConfig() ContextBuilderConfig {
	return ContextBuilderConfig{
		MaxContextLength: MaxContextLength,
		MaxChunkChars:    MaxChunkChars,
	}
}

// ContextBuilder assembles ranked search results into a single bounded
// text block with citation headers. It never re-ranks: the input order is
// the fusion order and is preserved.
type ContextBuilder struct {
	cfg ContextBuilderConfig
}

func NewContextBuilder(cfg ContextBuilderConfig) *ContextBuilder {
	if cfg.MaxContextLength <= 0 {
		cfg = DefaultContextBuilderConfig()
	}
	return &ContextBuilder{cfg: cfg}
}

// Build greedily appends truncated chunk content until the context budget
// is exhausted or results run out.
func (b *ContextBuilder) Build(query string, results []SearchResult) BuiltContext {
	if len(results) == 0 {
		return BuiltContext{}
	}

	var (
		blocks        []string
		sources       []string
		seenSources   = map[string]bool{}
		seenDocuments = map[string]bool{}
		used          int
		contentRunes  int
		scoreSum      float32
		budget        = b.cfg.MaxContextLength
	)

	for _, r := range results {
		content := truncateRunes(strings.TrimSpace(r.Content), b.cfg.MaxChunkChars)
		if content == "" {
			continue
		}

		block := fmt.Sprintf("[%s | %s | релевантность %.2f]\n%s",
			r.DocumentTitle, r.ClauseID, r.CombinedScore, content)
		if budget-len([]rune(block)) < 0 && used > 0 {
			break
		}

		blocks = append(blocks, block)
		budget -= len([]rune(block))
		contentRunes += len([]rune(content))
		scoreSum += r.CombinedScore
		used++

		if r.ClauseID != "" && !seenSources[r.ClauseID] {
			seenSources[r.ClauseID] = true
			sources = append(sources, r.ClauseID)
		}
		if r.DocumentID != "" {
			seenDocuments[r.DocumentID] = true
		}
	}

	if used == 0 {
		return BuiltContext{}
	}

	avg := scoreSum / float32(used)
	header := fmt.Sprintf("Запрос: %s\nИспользовано документов: %d, фрагментов: %d. Средняя релевантность: %.2f.",
		strings.TrimSpace(query), len(seenDocuments), used, avg)

	return BuiltContext{
		Text:             header + "\n\n" + strings.Join(blocks, "\n\n"),
		Sources:          sources,
		DocumentsUsed:    len(seenDocuments),
		ChunksUsed:       used,
		AverageRelevance: avg,
		ContentLength:    contentRunes,
	}
}

// truncateRunes cuts text to at most max runes. Cutting on runes keeps
// Cyrillic text intact where a byte cut would split a code point.
func truncateRunes(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
