package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/liliang-cn/askbook/internal/logger"
	"github.com/liliang-cn/askbook/internal/metrics"
	"github.com/liliang-cn/askbook/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Synthetic chunk used when answering from a user selection
const (
	SelectedTextSource  = "selected_text"
	SelectedTextChunkID = "selected_text_chunk"
	SelectedTextTitle   = "Selected Text"
)

const outcomeStrictEmpty = "strict_empty"

// OrchestratorService answers queries: it picks the context source by mode,
// generates a grounded answer and records the turn in the session store.
type OrchestratorService struct {
	retriever   *Retriever
	generator   *Generator
	guard       Guard
	store       domain.SessionStore
	persona     Persona
	defaultTopK int
	logger      *zap.Logger
}

// NewOrchestratorService creates the orchestrator. guard may be nil.
func NewOrchestratorService(
	retriever *Retriever,
	generator *Generator,
	guard Guard,
	store domain.SessionStore,
	persona Persona,
	defaultTopK int,
	logger *zap.Logger,
) *OrchestratorService {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &OrchestratorService{
		retriever:   retriever,
		generator:   generator,
		guard:       guard,
		store:       store,
		persona:     persona,
		defaultTopK: defaultTopK,
		logger:      logger,
	}
}

// Query runs one request through the pipeline. The only error returned is
// ErrInvalidRequest; every other failure becomes a degraded answer.
func (o *OrchestratorService) Query(ctx context.Context, req domain.QueryRequest) (resp *domain.QueryResponse, err error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}
	if req.Mode != "" && req.Mode != domain.ModeAugment && req.Mode != domain.ModeStrict {
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidRequest, req.Mode)
	}
	req.Normalize(o.defaultTopK)

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	ctx, span := tracing.Start(ctx, "orchestrator.Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("mode", string(req.Mode)),
		attribute.String("session_id", sessionID),
	)

	log := logger.FromContext(ctx, o.logger).With(
		zap.String("session_id", sessionID),
		zap.String("mode", string(req.Mode)),
	)
	ctx = logger.WithContext(ctx, log)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Query pipeline panicked", zap.Any("panic", r), zap.Stack("stack"))
			metrics.QueryTotal.WithLabelValues(string(req.Mode), string(OutcomeDegraded)).Inc()
			resp = &domain.QueryResponse{
				Answer:    o.persona.DegradedMessage(),
				Retrieved: []domain.RetrievedChunk{},
				SessionID: sessionID,
				Mode:      req.Mode,
			}
			err = nil
		}
	}()

	// blank selection short-circuits: no generation and no assistant turn
	if req.Mode == domain.ModeStrict && req.SelectedTextBlank() {
		o.persist(ctx, sessionID, domain.RoleUser, req.Query, nil)
		metrics.QueryTotal.WithLabelValues(string(req.Mode), outcomeStrictEmpty).Inc()
		span.SetAttributes(attribute.String("outcome", outcomeStrictEmpty))
		return &domain.QueryResponse{
			Answer:    domain.FallbackAnswer,
			Retrieved: []domain.RetrievedChunk{},
			SessionID: sessionID,
			Mode:      req.Mode,
		}, nil
	}

	answer, retrieved := o.answer(ctx, req)
	if retrieved == nil {
		retrieved = []domain.RetrievedChunk{}
	}

	o.persist(ctx, sessionID, domain.RoleUser, req.Query, nil)
	o.persist(ctx, sessionID, domain.RoleAssistant, answer.Text, retrieved)

	metrics.QueryTotal.WithLabelValues(string(req.Mode), string(answer.Outcome)).Inc()
	span.SetAttributes(
		attribute.String("outcome", string(answer.Outcome)),
		attribute.Int("retrieved", len(retrieved)),
	)
	log.Info("Query answered",
		zap.String("outcome", string(answer.Outcome)),
		zap.Int("retrieved", len(retrieved)),
	)

	return &domain.QueryResponse{
		Answer:    answer.Text,
		Retrieved: retrieved,
		SessionID: sessionID,
		Mode:      req.Mode,
	}, nil
}

// answer gathers context for the request's mode and generates over it
func (o *OrchestratorService) answer(ctx context.Context, req domain.QueryRequest) (Answer, []domain.RetrievedChunk) {
	if o.guard != nil && o.guard.InputTripped(ctx, req.Query) {
		return Answer{Text: o.persona.ScopeMessage(), Outcome: OutcomeOutOfScope}, nil
	}

	if req.Mode == domain.ModeStrict && req.HasSelectedText() {
		answer := o.generate(ctx, req.Query, []domain.RetrievedChunk{selectedTextChunk(*req.SelectedText)})
		if !answer.Grounded() {
			// an unused selection is no evidence
			return answer, nil
		}
		return answer, []domain.RetrievedChunk{selectedTextChunk(*req.SelectedText)}
	}

	chunks, err := o.retriever.Retrieve(ctx, req.Query, req.TopK)
	if err != nil {
		logger.FromContext(ctx, o.logger).Error("Retrieval failed", zap.Error(err))
		return Answer{Text: o.persona.DegradedMessage(), Outcome: OutcomeDegraded}, nil
	}

	answer := o.generate(ctx, req.Query, chunks)
	if answer.Outcome == OutcomeOutOfScope {
		return answer, nil
	}
	return answer, chunks
}

// generate runs the completion and applies the output guard to real answers
func (o *OrchestratorService) generate(ctx context.Context, query string, chunks []domain.RetrievedChunk) Answer {
	answer := o.generator.Generate(ctx, query, chunks)
	if answer.Grounded() && o.guard != nil && o.guard.OutputTripped(ctx, answer.Text) {
		return Answer{Text: o.persona.ScopeMessage(), Outcome: OutcomeOutOfScope}
	}
	return answer
}

// persist logs store failures instead of failing the request
func (o *OrchestratorService) persist(ctx context.Context, sessionID string, role domain.Role, content string, chunks []domain.RetrievedChunk) {
	if o.store == nil {
		return
	}
	if _, err := o.store.Save(ctx, sessionID, role, content, chunks); err != nil {
		logger.FromContext(ctx, o.logger).Error("Failed to save message",
			zap.String("role", string(role)),
			zap.Error(err),
		)
	}
}

func selectedTextChunk(text string) domain.RetrievedChunk {
	return domain.RetrievedChunk{
		SourcePath: SelectedTextSource,
		ChunkID:    SelectedTextChunkID,
		Text:       text,
		Score:      1.0,
		PageTitle:  SelectedTextTitle,
	}
}
