package domain

// ChunkType classifies the role of a chunk within a normative document.
type ChunkType string

const (
	ChunkTypeRequirement    ChunkType = "requirement"
	ChunkTypeRecommendation ChunkType = "recommendation"
	ChunkTypeExample        ChunkType = "example"
	ChunkTypeNote           ChunkType = "note"
	ChunkTypeTable          ChunkType = "table"
	ChunkTypeFigure         ChunkType = "figure"
	ChunkTypeHeader         ChunkType = "header"
	ChunkTypeText           ChunkType = "text"
)

// IsValid checks if the chunk type is a known value.
func (t ChunkType) IsValid() bool {
	switch t {
	case ChunkTypeRequirement, ChunkTypeRecommendation, ChunkTypeExample,
		ChunkTypeNote, ChunkTypeTable, ChunkTypeFigure, ChunkTypeHeader, ChunkTypeText:
		return true
	}
	return false
}

// Importance levels assigned during classification. Mandatory-language
// provisions rank highest; plain narrative text lowest.
const (
	ImportanceMandatory   = 5
	ImportanceRecommended = 4
	ImportanceRequirement = 3
	ImportanceAdvisory    = 2
	ImportanceDefault     = 1
)

// Chunk is the smallest indexed unit of normative text. ChunkID is stable
// for identical content and metadata; the embedding is owned by the chunk
// and recomputed whenever the content changes.
type Chunk struct {
	ChunkID         string
	ClauseID        string
	DocumentID      string
	DocumentTitle   string
	Content         string
	Type            ChunkType
	Tags            []string
	ImportanceLevel int
	PageNumber      int
	Section         string
	Chapter         string
	TokenCount      int
	Embedding       []float32
}

// Validate checks chunk invariants before it is written to either index.
func (c *Chunk) Validate() error {
	if c.ChunkID == "" {
		return ErrMissingChunkID
	}
	if c.DocumentID == "" {
		return ErrMissingDocumentID
	}
	if c.Content == "" {
		return ErrEmptyChunkContent
	}
	if !c.Type.IsValid() {
		return ErrInvalidChunkType
	}
	if c.ImportanceLevel < ImportanceDefault || c.ImportanceLevel > ImportanceMandatory {
		return ErrInvalidImportance
	}
	return nil
}

// HasTag reports whether the chunk carries the given classification tag.
func (c *Chunk) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
