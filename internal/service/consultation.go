package service

import (
	"context"
	"log"
	"time"

	"github.com/stroyassist/normax/internal/domain"
	"github.com/stroyassist/normax/internal/telemetry"
)

const consultSearchLimit = 5

// Polite user-facing fallbacks; consultation never propagates internal
// failures to the end user.
const (
	noInformationResponse = "К сожалению, в нормативной базе не найдено информации по вашему вопросу. Уточните формулировку или укажите нормативный документ."
	consultErrorResponse  = "Произошла ошибка при обработке запроса. Пожалуйста, повторите попытку позже."
)

// ConsultResult is the outcome of one consultation turn.
type ConsultResult struct {
	Response       string
	Sources        []string
	Confidence     float32
	DocumentsUsed  int
	ProcessingTime time.Duration
	Cached         bool
}

// AnswerGenerator produces a grounded answer from an assembled context
// block. Implementations live outside this package.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, query, contextBlock string, history []string) (string, error)
}

// ConsultationService answers normative questions: cache lookup, hybrid
// retrieval, context assembly, answer generation, cache write-back.
type ConsultationService struct {
	search  *SearchService
	builder *ContextBuilder
	cache   *ConsultationCache
	answers AnswerGenerator
}

func NewConsultationService(search *SearchService, builder *ContextBuilder, cache *ConsultationCache, answers AnswerGenerator) *ConsultationService {
	return &ConsultationService{
		search:  search,
		builder: builder,
		cache:   cache,
		answers: answers,
	}
}

// Consult runs one consultation turn. Internal retrieval or generation
// failures produce a polite fallback with confidence 0.0 and an empty
// source list instead of an error; only an empty message is rejected.
func (s *ConsultationService) Consult(ctx context.Context, message string, history []string) (ConsultResult, error) {
	start := time.Now()

	if err := validateQuery(message); err != nil {
		return ConsultResult{}, err
	}

	ctx, span := telemetry.StartSpan(ctx, "consultation.consult", telemetry.SpanAttributes{Operation: "consult"})
	defer span.End()

	key := CacheKey(message, history)
	if cached, ok := s.cache.Get(key); ok {
		cached.Cached = true
		cached.ProcessingTime = time.Since(start)
		return cached, nil
	}

	results, err := s.search.Search(ctx, SearchInput{Query: message, Limit: consultSearchLimit})
	if err != nil {
		log.Printf("consultation: search failed: %v", err)
		telemetry.CaptureError(ctx, err)
		return fallbackResult(consultErrorResponse, start), nil
	}

	built := s.builder.Build(message, results)
	if !built.Sufficient() {
		return fallbackResult(noInformationResponse, start), nil
	}

	answer, err := s.answers.GenerateAnswer(ctx, message, built.Text, history)
	if err != nil {
		log.Printf("consultation: answer generation failed: %v", err)
		telemetry.CaptureError(ctx, err)
		return fallbackResult(consultErrorResponse, start), nil
	}

	result := ConsultResult{
		Response:      answer,
		Sources:       built.Sources,
		Confidence:    answerConfidence(built),
		DocumentsUsed: built.DocumentsUsed,
	}
	s.cache.Put(key, result)

	result.ProcessingTime = time.Since(start)
	return result, nil
}

// CacheStats exposes the cache population for the stats surface.
func (s *ConsultationService) CacheStats() CacheStats {
	return s.cache.Stats()
}

// ClearCache drops all cached consultations.
func (s *ConsultationService) ClearCache() {
	s.cache.Clear()
}

func validateQuery(message string) error {
	for _, r := range message {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return nil
		}
	}
	return domain.ErrEmptyQuery
}

func fallbackResult(response string, start time.Time) ConsultResult {
	return ConsultResult{
		Response:       response,
		Sources:        []string{},
		Confidence:     0.0,
		ProcessingTime: time.Since(start),
	}
}

// answerConfidence maps assembled-context quality to [0,1]. The fused
// relevance is capped at 1 since the lexical leg's contribution is
// unbounded.
func answerConfidence(built BuiltContext) float32 {
	conf := built.AverageRelevance
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}
