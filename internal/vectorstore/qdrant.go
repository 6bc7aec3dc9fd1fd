// Package vectorstore is the dense-vector leg of hybrid retrieval, backed
// by a Qdrant collection of chunk embeddings with payload filtering.
package vectorstore

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/stroyassist/normax/internal/domain"
	"github.com/stroyassist/normax/internal/embedding"
)

// Point is a chunk embedding plus its payload, upserted as one unit.
type Point struct {
	ChunkID string
	Vector  []float32
	Payload map[string]any
}

// Filter narrows the candidate set by exact-match payload constraints
// before similarity ranking.
type Filter struct {
	DocumentID    string
	Chapter       string
	ChunkType     string
	Tags          []string
	MinImportance int
}

// Hit is a single similarity match.
type Hit struct {
	ChunkID string
	Score   float32
	Payload map[string]any
}

// CollectionInfo describes the backing collection.
type CollectionInfo struct {
	VectorSize  int
	PointsCount int
	Status      string
}

// QdrantStore implements the vector index over a single Qdrant collection.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantStore creates a Qdrant-backed vector store. Port is the gRPC
// port (typically 6334).
func NewQdrantStore(host string, port int, collection string) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
		// Indexing bursts can leave the connection idle between batches;
		// keepalives stop intermediaries from dropping it.
		GrpcOptions: []grpc.DialOption{
			grpc.WithKeepaliveParams(keepalive.ClientParameters{
				Time:    30 * time.Second,
				Timeout: 10 * time.Second,
			}),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantStore{
		client:     client,
		collection: collection,
	}, nil
}

// PointID derives the stable Qdrant point id for a chunk id. Re-upserting
// the same chunk always overwrites the same point.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

// EnsureCollection creates the collection with the fixed embedding
// dimension and cosine distance. It is a no-op if the collection exists.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "failed to check collection existence", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(embedding.Dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "failed to create collection", err)
	}

	log.Printf("vectorstore: created collection %q (dim=%d, distance=cosine)", s.collection, embedding.Dim)
	return nil
}

// Upsert writes points into the collection. A repeated chunk id overwrites
// the previous vector and payload atomically as one point.
func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		point := &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(p.ChunkID)),
			Vectors: qdrant.NewVectors(p.Vector...),
		}
		if len(p.Payload) > 0 {
			point.Payload = qdrant.NewValueMap(p.Payload)
		}
		qdrantPoints = append(qdrantPoints, point)
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         qdrantPoints,
	})
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "failed to upsert points", err)
	}

	return nil
}

// Search runs filtered nearest-neighbor retrieval and returns up to k hits
// ranked by cosine similarity.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, k int, filter Filter) ([]Hit, error) {
	if k <= 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "k must be greater than 0")
	}

	limit := uint64(k)
	req := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if qf := buildFilter(filter); qf != nil {
		req.Filter = qf
	}

	scored, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "failed to search points", err)
	}

	hits := make([]Hit, 0, len(scored))
	for _, point := range scored {
		payload := map[string]any{}
		if point.Payload != nil {
			payload = payloadToMap(point.Payload)
		}
		chunkID, _ := payload["chunk_id"].(string)
		hits = append(hits, Hit{
			ChunkID: chunkID,
			Score:   point.Score,
			Payload: payload,
		})
	}

	return hits, nil
}

// Delete removes the points for the given chunk ids. Absent ids are a no-op.
func (s *QdrantStore) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	ids := make([]*qdrant.PointId, 0, len(chunkIDs))
	for _, chunkID := range chunkIDs {
		ids = append(ids, qdrant.NewID(PointID(chunkID)))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(ids...),
	})
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "failed to delete points", err)
	}

	return nil
}

// DeleteByDocument removes every point belonging to a document.
func (s *QdrantStore) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
		}),
	})
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "failed to delete document points", err)
	}
	return nil
}

// DeleteAll drops and recreates the collection.
func (s *QdrantStore) DeleteAll(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "failed to drop collection", err)
	}
	return s.EnsureCollection(ctx)
}

// Info returns collection size and status for stats/health reporting.
func (s *QdrantStore) Info(ctx context.Context) (*CollectionInfo, error) {
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIndexUnavailable, "failed to get collection info", err)
	}

	var vectorSize int
	if config := info.Config; config != nil && config.Params != nil {
		if vectorsConfig := config.Params.GetVectorsConfig(); vectorsConfig != nil {
			if params := vectorsConfig.GetParams(); params != nil {
				vectorSize = int(params.Size)
			}
		}
	}

	var pointsCount int
	if info.PointsCount != nil {
		pointsCount = int(*info.PointsCount)
	}

	status := "unknown"
	if info.Status != 0 {
		status = info.Status.String()
	}

	return &CollectionInfo{
		VectorSize:  vectorSize,
		PointsCount: pointsCount,
		Status:      status,
	}, nil
}

func buildFilter(filter Filter) *qdrant.Filter {
	must := make([]*qdrant.Condition, 0, 4)

	if filter.DocumentID != "" {
		must = append(must, qdrant.NewMatch("document_id", filter.DocumentID))
	}
	if filter.Chapter != "" {
		must = append(must, qdrant.NewMatch("chapter", filter.Chapter))
	}
	if filter.ChunkType != "" {
		must = append(must, qdrant.NewMatch("chunk_type", filter.ChunkType))
	}
	for _, tag := range filter.Tags {
		if tag != "" {
			must = append(must, qdrant.NewMatch("tags", tag))
		}
	}
	if filter.MinImportance > 0 {
		gte := float64(filter.MinImportance)
		must = append(must, qdrant.NewRange("importance", &qdrant.Range{Gte: &gte}))
	}

	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		result[k] = convertValue(v)
	}
	return result
}

func convertValue(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			list[i] = convertValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return payloadToMap(val.StructValue.Fields)
	default:
		return nil
	}
}

// ChunkPayload builds the point payload stored alongside a chunk vector.
func ChunkPayload(c *domain.Chunk) map[string]any {
	tags := make([]any, 0, len(c.Tags))
	for _, t := range c.Tags {
		tags = append(tags, t)
	}
	return map[string]any{
		"chunk_id":       c.ChunkID,
		"clause_id":      c.ClauseID,
		"document_id":    c.DocumentID,
		"document_title": c.DocumentTitle,
		"chapter":        c.Chapter,
		"section":        c.Section,
		"page_number":    int64(c.PageNumber),
		"chunk_type":     string(c.Type),
		"importance":     int64(c.ImportanceLevel),
		"tags":           tags,
		"content":        c.Content,
	}
}
