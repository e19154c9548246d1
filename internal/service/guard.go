package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/liliang-cn/askbook/internal/logger"
	"go.uber.org/zap"
)

// Guard classifies queries and answers against the assistant's topic scope.
// Implementations fail open: a classification error reports "not tripped".
type Guard interface {
	InputTripped(ctx context.Context, query string) bool
	OutputTripped(ctx context.Context, answer string) bool
}

// TopicGuard asks the completion model to classify text as JSON
type TopicGuard struct {
	completer domain.Completer
	persona   Persona
	logger    *zap.Logger
}

var _ Guard = (*TopicGuard)(nil)

// NewTopicGuard creates a guard backed by completer
func NewTopicGuard(completer domain.Completer, persona Persona, logger *zap.Logger) *TopicGuard {
	return &TopicGuard{completer: completer, persona: persona, logger: logger}
}

type inputVerdict struct {
	IsUnrelatedQuery bool   `json:"is_unrelated_query"`
	Reasoning        string `json:"reasoning"`
}

type outputVerdict struct {
	ContainsOffTopicContent bool   `json:"contains_off_topic_content"`
	Reasoning               string `json:"reasoning"`
}

func (g *TopicGuard) inputInstructions() string {
	return fmt.Sprintf("Check if the user is asking about topics unrelated to %s. "+
		"The course covers %s. Greetings and questions about the assistant itself are related. "+
		`Reply with JSON only: {"is_unrelated_query": true|false, "reasoning": "..."}`, g.persona.Book, g.persona.Topics)
}

func (g *TopicGuard) outputInstructions() string {
	return fmt.Sprintf("Check if the response contains information unrelated to %s. "+
		"The course covers %s. "+
		`Reply with JSON only: {"contains_off_topic_content": true|false, "reasoning": "..."}`, g.persona.Book, g.persona.Topics)
}

// InputTripped reports whether query is outside the topic scope
func (g *TopicGuard) InputTripped(ctx context.Context, query string) bool {
	var v inputVerdict
	if !g.classify(ctx, "input", g.inputInstructions(), query, &v) {
		return false
	}
	if v.IsUnrelatedQuery {
		logger.FromContext(ctx, g.logger).Info("Input guard tripped", zap.String("reasoning", v.Reasoning))
	}
	return v.IsUnrelatedQuery
}

// OutputTripped reports whether answer leaks off-topic content
func (g *TopicGuard) OutputTripped(ctx context.Context, answer string) bool {
	var v outputVerdict
	if !g.classify(ctx, "output", g.outputInstructions(), answer, &v) {
		return false
	}
	if v.ContainsOffTopicContent {
		logger.FromContext(ctx, g.logger).Info("Output guard tripped", zap.String("reasoning", v.Reasoning))
	}
	return v.ContainsOffTopicContent
}

func (g *TopicGuard) classify(ctx context.Context, kind, instructions, text string, out any) bool {
	log := logger.FromContext(ctx, g.logger)
	if g.completer == nil {
		return false
	}

	raw, err := g.completer.Complete(ctx, instructions, text)
	if err != nil {
		log.Error("Guard evaluation failed", zap.String("guard", kind), zap.Error(err))
		return false
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), out); err != nil {
		log.Error("Guard returned malformed verdict", zap.String("guard", kind), zap.Error(err))
		return false
	}
	return true
}

// extractJSON trims code fences and prose around the first JSON object
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
