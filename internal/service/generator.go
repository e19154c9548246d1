package service

import (
	"context"
	"strings"

	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/liliang-cn/askbook/internal/logger"
	"github.com/liliang-cn/askbook/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Outcome tags how an answer was produced
type Outcome string

const (
	OutcomeAnswered    Outcome = "answered"
	OutcomeNoGrounding Outcome = "no_grounding"
	OutcomeDegraded    Outcome = "degraded"
	OutcomeOutOfScope  Outcome = "out_of_scope"
)

// Answer is the generator result. Text is always safe to show to the user.
type Answer struct {
	Text    string
	Outcome Outcome
}

// Grounded reports whether the answer drew on the supplied context
func (a Answer) Grounded() bool {
	return a.Outcome == OutcomeAnswered
}

// Generator produces grounded answers with the completion client
type Generator struct {
	rt      *Runtime
	persona Persona
	logger  *zap.Logger
}

// NewGenerator creates a generator
func NewGenerator(rt *Runtime, persona Persona, logger *zap.Logger) *Generator {
	return &Generator{rt: rt, persona: persona, logger: logger}
}

// Generate answers query from chunks only. Upstream failures never escape;
// they become a Degraded answer.
func (g *Generator) Generate(ctx context.Context, query string, chunks []domain.RetrievedChunk) Answer {
	ctx, span := tracing.Start(ctx, "generator.Generate")
	defer span.End()
	span.SetAttributes(attribute.Int("chunks", len(chunks)))

	if g.rt == nil || g.rt.Completer == nil {
		return Answer{Text: NotReadyMessage, Outcome: OutcomeDegraded}
	}

	text, err := g.rt.Completer.Complete(ctx, g.persona.SystemPrompt(), g.persona.UserPrompt(query, chunks))
	if err != nil {
		span.RecordError(err)
		logger.FromContext(ctx, g.logger).Error("Answer generation failed", zap.Error(err))
		return Answer{Text: g.persona.ScopeMessage(), Outcome: OutcomeDegraded}
	}

	text = strings.TrimSpace(text)
	if strings.Contains(text, domain.FallbackAnswer) {
		return Answer{Text: domain.FallbackAnswer, Outcome: OutcomeNoGrounding}
	}
	return Answer{Text: text, Outcome: OutcomeAnswered}
}
