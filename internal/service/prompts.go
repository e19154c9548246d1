package service

import (
	"fmt"
	"strings"

	"github.com/liliang-cn/askbook/internal/config"
	"github.com/liliang-cn/askbook/internal/domain"
)

// NotReadyMessage is answered when no completion client is available
const NotReadyMessage = "Service is not ready, please try again."

// Persona names what the assistant answers about
type Persona struct {
	Book   string
	Topics string
}

// NewPersona creates a persona from the assistant config section
func NewPersona(cfg config.AssistantConfig) Persona {
	return Persona{Book: cfg.Book, Topics: cfg.Topics}
}

// SystemPrompt constrains the model to the supplied context
func (p Persona) SystemPrompt() string {
	return fmt.Sprintf("You are a helpful assistant for %s. Answer questions based on the provided context. "+
		"If the answer is not in the context, say exactly: '%s'", p.Book, domain.FallbackAnswer)
}

// UserPrompt embeds the context block and the question
func (p Persona) UserPrompt(query string, chunks []domain.RetrievedChunk) string {
	return fmt.Sprintf("Use the following context to answer the question. If the answer is not in the context, "+
		"say exactly: %q\n\nContext:\n%s\n\nQuestion: %s\n\nAnswer:", domain.FallbackAnswer, ContextBlock(chunks), query)
}

// ScopeMessage is the fixed reply for off-topic questions and failed completions
func (p Persona) ScopeMessage() string {
	return fmt.Sprintf("I'm an AI assistant for %s. I can only provide information related to the course topics like %s. "+
		"Please ask questions related to these topics, and I'll be happy to help!", p.Book, p.Topics)
}

// DegradedMessage is answered when the query pipeline itself failed
func (p Persona) DegradedMessage() string {
	return fmt.Sprintf("I'm experiencing some technical difficulties right now. I'm an AI assistant for %s. "+
		"I can only provide information related to the course topics. Please try asking a question about %s.", p.Book, p.Topics)
}

// ContextBlock renders chunks as "Source/Content" pairs separated by blank lines
func ContextBlock(chunks []domain.RetrievedChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, fmt.Sprintf("Source: %s\nContent: %s", c.SourcePath, c.Text))
	}
	return strings.Join(parts, "\n\n")
}
