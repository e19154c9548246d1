package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/askbook/internal/api/response"
	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/liliang-cn/askbook/internal/service"
)

// Handler handles public chat API requests
type Handler struct {
	orchestrator *service.OrchestratorService
	chatService  *service.ChatService
}

// NewHandler creates a new chat handler
func NewHandler(orchestrator *service.OrchestratorService, chatService *service.ChatService) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		chatService:  chatService,
	}
}

// RegisterRoutes registers chat routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/query", h.Query)
	r.POST("/chatkit/session", h.CreateSession)

	sessions := r.Group("/sessions")
	{
		sessions.GET("/:id/messages", h.GetMessages)
		sessions.DELETE("/:id", h.ClearSession)
	}
}

// Query answers a question in augment or strict mode
func (h *Handler) Query(c *gin.Context) {
	var req domain.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	resp, err := h.orchestrator.Query(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CreateSession creates a new session or returns an existing one with its history
func (h *Handler) CreateSession(c *gin.Context) {
	var req domain.SessionRequest
	// an empty body starts a fresh session
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err)
			return
		}
	}

	resp, err := h.chatService.CreateOrGetSession(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetMessages returns a session's messages in order
func (h *Handler) GetMessages(c *gin.Context) {
	sessionID := c.Param("id")

	messages, err := h.chatService.History(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"messages":   messages,
	})
}

// ClearSession deletes a session's messages and preferences
func (h *Handler) ClearSession(c *gin.Context) {
	if err := h.chatService.ClearSession(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
