package service

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/stroyassist/normax/internal/domain"
)

// ChunkerConfig controls semantic chunking of normative text.
type ChunkerConfig struct {
	// MaxTokens bounds every produced chunk except single unsplittable tokens.
	MaxTokens int
	// OverlapTokens are carried from the end of a chunk into the next one
	// to preserve context across the boundary.
	OverlapTokens int
}

// DefaultChunkerConfig provides sane defaults for chunking.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MaxTokens:     300,
		OverlapTokens: 30,
	}
}

// DocumentMeta is the document context a chunk inherits.
type DocumentMeta struct {
	DocumentID    string
	DocumentTitle string
	Code          string
	Chapter       string
	Section       string
	PageNumber    int
}

// Chunker splits document text into classified, semantically bounded chunks.
type Chunker struct {
	cfg ChunkerConfig
}

func NewChunker(cfg ChunkerConfig) *Chunker {
	if cfg.MaxTokens <= 0 {
		cfg = DefaultChunkerConfig()
	}
	return &Chunker{cfg: cfg}
}

// Ordered regulatory-reference patterns; the first match wins, so ties
// between patterns resolve deterministically by pattern order.
var clausePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(СП|СНиП|ГОСТ)\s*([\d.]+(?:-\d+)*)\s+п\.\s*(\d+(?:\.\d+)*)`),
	regexp.MustCompile(`(?i)(?:^|[\s(])п\.\s*(\d+(?:\.\d+)*)`),
	regexp.MustCompile(`(?i)пункт[ае]?\s+(\d+(?:\.\d+)*)`),
	regexp.MustCompile(`(?i)(?:^|[\s(])ст\.\s*(\d+(?:\.\d+)*)`),
	regexp.MustCompile(`(?i)стать[яие]\s+(\d+(?:\.\d+)*)`),
	regexp.MustCompile(`^(\d+(?:\.\d+)+)[\s.]`),
}

// Chunk splits text into ordered chunks. Empty or whitespace-only input
// yields an empty slice, not an error.
func (c *Chunker) Chunk(text string, meta DocumentMeta) []domain.Chunk {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return []domain.Chunk{}
	}

	chunks := make([]domain.Chunk, 0, len(paragraphs))
	for _, para := range paragraphs {
		for _, piece := range c.splitToBudget(para) {
			chunks = append(chunks, c.buildChunk(piece, meta))
		}
	}

	return chunks
}

func (c *Chunker) buildChunk(content string, meta DocumentMeta) domain.Chunk {
	chunkType := classifyChunkType(content)
	tags := detectTags(content)
	importance := assignImportance(content, chunkType)
	clauseID := extractClauseID(content, meta.Code)

	return domain.Chunk{
		ChunkID:         chunkID(meta.DocumentID, clauseID, content),
		ClauseID:        clauseID,
		DocumentID:      meta.DocumentID,
		DocumentTitle:   meta.DocumentTitle,
		Content:         content,
		Type:            chunkType,
		Tags:            tags,
		ImportanceLevel: importance,
		PageNumber:      meta.PageNumber,
		Section:         meta.Section,
		Chapter:         meta.Chapter,
		TokenCount:      countTokens(content),
	}
}

// extractClauseID ties a chunk back to a numbered provision. When no
// pattern matches, a short content hash keeps the id stable across runs.
func extractClauseID(content, code string) string {
	for i, pattern := range clausePatterns {
		m := pattern.FindStringSubmatch(content)
		if m == nil {
			continue
		}
		if i == 0 {
			// Full reference with the standard's own code, e.g. "СП 70.13330 п.9.2".
			return strings.ToUpper(m[1]) + " " + m[2] + " п." + m[3]
		}
		clause := m[1]
		if code != "" {
			return code + " п." + clause
		}
		return "п." + clause
	}

	sum := sha256.Sum256([]byte(content))
	return "hash-" + hex.EncodeToString(sum[:])[:12]
}

// chunkID is stable for identical content and metadata.
func chunkID(documentID, clauseID, content string) string {
	sum := sha256.Sum256([]byte(documentID + "\x00" + clauseID + "\x00" + content))
	return hex.EncodeToString(sum[:])[:16]
}

func splitParagraphs(text string) []string {
	raw := regexp.MustCompile(`\n\s*\n`).Split(text, -1)
	paragraphs := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		paragraphs = append(paragraphs, p)
	}
	return paragraphs
}

var sentenceBoundary = regexp.MustCompile(`(?:[.!?…]+)\s+`)

// splitToBudget returns the paragraph unchanged when it fits the token
// budget, otherwise splits it on sentence boundaries and greedily packs
// sentences, carrying an overlap into each following chunk.
func (c *Chunker) splitToBudget(para string) []string {
	if countTokens(para) <= c.cfg.MaxTokens {
		return []string{para}
	}

	sentences := splitSentences(para)
	pieces := make([]string, 0, 4)
	var current []string
	currentTokens := 0
	// Tokens added since the last flush; a buffer holding only overlap
	// carry is never emitted on its own.
	freshTokens := 0

	flush := func() {
		if freshTokens == 0 {
			return
		}
		pieces = append(pieces, strings.Join(current, " "))
		overlap := overlapTail(current, c.cfg.OverlapTokens)
		current = overlap
		currentTokens = countTokens(strings.Join(overlap, " "))
		freshTokens = 0
	}

	for _, sentence := range sentences {
		tokens := countTokens(sentence)
		if tokens > c.cfg.MaxTokens {
			flush()
			current = nil
			currentTokens = 0
			pieces = append(pieces, c.splitByTokens(sentence)...)
			continue
		}
		if currentTokens+tokens > c.cfg.MaxTokens && currentTokens > 0 {
			flush()
			// The overlap carry may leave no room for the sentence; drop
			// the carry rather than exceed the budget.
			if currentTokens+tokens > c.cfg.MaxTokens {
				current = nil
				currentTokens = 0
			}
		}
		current = append(current, sentence)
		currentTokens += tokens
		freshTokens += tokens
	}
	flush()

	return pieces
}

// splitByTokens hard-splits an oversized sentence on token windows. A
// single token longer than the budget still becomes its own chunk; text
// is never dropped.
func (c *Chunker) splitByTokens(sentence string) []string {
	tokens := strings.Fields(sentence)
	if len(tokens) == 0 {
		return nil
	}

	var pieces []string
	for start := 0; start < len(tokens); {
		end := start + c.cfg.MaxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		pieces = append(pieces, strings.Join(tokens[start:end], " "))
		if end >= len(tokens) {
			break
		}
		next := end - c.cfg.OverlapTokens
		if next <= start {
			next = end
		}
		start = next
	}
	return pieces
}

func splitSentences(text string) []string {
	bounds := sentenceBoundary.FindAllStringIndex(text, -1)
	if len(bounds) == 0 {
		return []string{strings.TrimSpace(text)}
	}

	sentences := make([]string, 0, len(bounds)+1)
	prev := 0
	for _, b := range bounds {
		s := strings.TrimSpace(text[prev:b[1]])
		if s != "" {
			sentences = append(sentences, s)
		}
		prev = b[1]
	}
	if tail := strings.TrimSpace(text[prev:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func overlapTail(sentences []string, overlapTokens int) []string {
	if overlapTokens <= 0 || len(sentences) == 0 {
		return nil
	}
	last := sentences[len(sentences)-1]
	if countTokens(last) > overlapTokens {
		return nil
	}
	return []string{last}
}

func countTokens(text string) int {
	return len(strings.Fields(text))
}

// Classification cue lists. Mandatory-language cues mirror the wording of
// Russian construction codes.
var (
	mandatoryCues = []string{
		"должн", "необходимо", "требуется", "не допускается",
		"запрещается", "обязательн", "не разрешается",
	}
	recommendedCues = []string{
		"рекомендуется", "следует", "целесообразно", "допускается",
	}
	noteCues    = []string{"примечание"}
	exampleCues = []string{"например", "пример "}
	tableCues   = []string{"таблица", "табл."}
	figureCues  = []string{"рисунок", "рис.", "чертеж", "чертёж", "схема"}
)

var tagCues = map[string][]string{
	"signatures":      {"подпись", "подписан", "утвержден", "утверждён", "согласован"},
	"formatting":      {"шрифт", "оформлени", "форматировани", "поля документа"},
	"structure":       {"раздел", "глава", "приложение", "содержание"},
	"tables":          {"таблица", "табл."},
	"graphics":        {"рисунок", "рис.", "график", "схема", "чертеж", "чертёж"},
	"calculations":    {"расчет", "расчёт", "формул", "коэффициент", "вычисл"},
	"requirements":    {"должн", "требовани", "требуется", "не допускается", "запрещается"},
	"recommendations": {"рекомендуется", "следует", "целесообразно"},
	"examples":        {"например", "пример "},
	"notes":           {"примечание"},
}

// Tag order is fixed so classification output is deterministic.
var tagOrder = []string{
	"signatures", "formatting", "structure", "tables", "graphics",
	"calculations", "requirements", "recommendations", "examples", "notes",
}

func classifyChunkType(content string) domain.ChunkType {
	lower := strings.ToLower(content)

	switch {
	case containsAny(lower, noteCues):
		return domain.ChunkTypeNote
	case containsAny(lower, exampleCues):
		return domain.ChunkTypeExample
	case containsAny(lower, tableCues):
		return domain.ChunkTypeTable
	case containsAny(lower, figureCues):
		return domain.ChunkTypeFigure
	case looksLikeHeader(content):
		return domain.ChunkTypeHeader
	case containsAny(lower, mandatoryCues):
		return domain.ChunkTypeRequirement
	case containsAny(lower, recommendedCues):
		return domain.ChunkTypeRecommendation
	default:
		return domain.ChunkTypeText
	}
}

func detectTags(content string) []string {
	lower := strings.ToLower(content)
	tags := make([]string, 0, 2)
	for _, tag := range tagOrder {
		if containsAny(lower, tagCues[tag]) {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		tags = append(tags, "text")
	}
	return tags
}

// assignImportance applies the priority rules: mandatory language beats
// everything, then recommended language, then the chunk type itself.
func assignImportance(content string, chunkType domain.ChunkType) int {
	lower := strings.ToLower(content)

	if containsAny(lower, mandatoryCues) {
		return domain.ImportanceMandatory
	}
	if containsAny(lower, recommendedCues) {
		return domain.ImportanceRecommended
	}

	switch chunkType {
	case domain.ChunkTypeRequirement:
		return domain.ImportanceRequirement
	case domain.ChunkTypeRecommendation:
		return domain.ImportanceAdvisory
	default:
		return domain.ImportanceDefault
	}
}

// looksLikeHeader detects short numbered section titles without sentence
// punctuation, e.g. "5.2 Монтаж сборных конструкций".
func looksLikeHeader(content string) bool {
	if countTokens(content) > 12 {
		return false
	}
	if strings.ContainsAny(content, ".!?") && !regexp.MustCompile(`^\d+(\.\d+)*\.?\s`).MatchString(content) {
		return false
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return false
	}
	return regexp.MustCompile(`^\d+(\.\d+)*\.?\s+\p{Lu}`).MatchString(trimmed) ||
		trimmed == strings.ToUpper(trimmed)
}

func containsAny(text string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}
